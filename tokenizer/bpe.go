package tokenizer

// bpe.go: merge-table BPE tokenizer (CLIP family)
//
// Per word: split into character units, mark the last unit with </w>, then
// repeatedly merge the adjacent pair with the lowest rank until nothing merges.

import (
	"strings"

	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

const (
	// DefaultMaxLength is CLIP's context length, used when Encode gets maxLength <= 0.
	DefaultMaxLength = 77

	DefaultEndOfWordMarker = "</w>"
	defaultWordCacheSize   = 4096
)

// BPE encodes text with a vocabulary and merge table. Safe for concurrent use.
type BPE struct {
	vocab    *Vocabulary
	merges   *MergeTable
	specials *SpecialTokens
	cfg      bpeConfig

	bosID, eosID, unkID int
	byteToUnicode       [256]rune
	cache               *lru.Cache // word -> []int, nil when disabled
}

type bpeConfig struct {
	marker      string
	addBOS      bool
	addEOS      bool
	unkFallback bool
	byteLevel   bool
	splitPunct  bool
	cacheSize   int
	maxLength   int
}

// BPEOption configures NewBPE and NewDecodingBPE.
type BPEOption func(*bpeConfig)

// WithEndOfWordMarker replaces the "</w>" suffix. An empty marker disables it.
func WithEndOfWordMarker(m string) BPEOption { return func(c *bpeConfig) { c.marker = m } }

// WithBOS prepends the begin-of-sequence id.
func WithBOS() BPEOption { return func(c *bpeConfig) { c.addBOS = true } }

// WithEOS appends the end-of-sequence id and keeps it through truncation.
func WithEOS() BPEOption { return func(c *bpeConfig) { c.addEOS = true } }

// WithUnknownFallback maps symbols missing from the vocabulary to [UNK]
// instead of dropping them.
func WithUnknownFallback() BPEOption { return func(c *bpeConfig) { c.unkFallback = true } }

// WithByteLevel maps each UTF-8 byte of a word to a printable rune before merging (GPT-2).
func WithByteLevel() BPEOption { return func(c *bpeConfig) { c.byteLevel = true } }

// WithSplitPunctuation makes every punctuation rune a word of its own.
func WithSplitPunctuation() BPEOption { return func(c *bpeConfig) { c.splitPunct = true } }

// WithCacheSize bounds the per-word LRU cache. 0 disables caching.
func WithCacheSize(n int) BPEOption { return func(c *bpeConfig) { c.cacheSize = n } }

// WithDefaultMaxLength overrides the 77-token default used when Encode gets maxLength <= 0.
func WithDefaultMaxLength(n int) BPEOption { return func(c *bpeConfig) { c.maxLength = n } }

// NewBPE builds a tokenizer. Roles needed by the chosen options must be present in specials.
func NewBPE(vocab *Vocabulary, merges *MergeTable, specials *SpecialTokens, opts ...BPEOption) (*BPE, error) {
	if vocab == nil || merges == nil {
		return nil, errors.New("bpe: vocabulary and merge table are required")
	}
	cfg := bpeConfig{
		marker:    DefaultEndOfWordMarker,
		cacheSize: defaultWordCacheSize,
		maxLength: DefaultMaxLength,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.maxLength <= 0 {
		return nil, errors.Errorf("bpe: default max length must be positive, got %d", cfg.maxLength)
	}
	if cfg.cacheSize < 0 {
		return nil, errors.Errorf("bpe: negative cache size %d", cfg.cacheSize)
	}

	t := &BPE{vocab: vocab, merges: merges, specials: specials, cfg: cfg}
	if cfg.addBOS {
		if err := specials.Require(RoleBeginOfSeq); err != nil {
			return nil, errors.Wrap(err, "bpe")
		}
		t.bosID, _ = specials.ID(RoleBeginOfSeq)
	}
	if cfg.addEOS {
		if err := specials.Require(RoleEndOfSeq); err != nil {
			return nil, errors.Wrap(err, "bpe")
		}
		t.eosID, _ = specials.ID(RoleEndOfSeq)
	}
	if cfg.unkFallback {
		if err := specials.Require(RoleUnknown); err != nil {
			return nil, errors.Wrap(err, "bpe")
		}
		t.unkID, _ = specials.ID(RoleUnknown)
	}
	if cfg.byteLevel {
		t.byteToUnicode, _ = buildByteTable()
	}
	if cfg.cacheSize > 0 {
		c, err := lru.New(cfg.cacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "bpe: word cache")
		}
		t.cache = c
	}
	log.Debug("BPE tokenizer ready", "vocab", vocab.Len(), "merges", merges.Len(),
		"bos", cfg.addBOS, "eos", cfg.addEOS, "byteLevel", cfg.byteLevel, "cache", cfg.cacheSize)
	return t, nil
}

func (t *BPE) structuralSize() int {
	n := 0
	if t.cfg.addBOS {
		n++
	}
	if t.cfg.addEOS {
		n++
	}
	return n
}

// Encode returns [BOS?] + ids + [EOS?] padded with 0 or truncated to maxLength.
// maxLength <= 0 selects the configured default.
func (t *BPE) Encode(text string, maxLength int) (*EncodedInput, error) {
	if maxLength <= 0 {
		maxLength = t.cfg.maxLength
	}
	structural := t.structuralSize()
	if maxLength < structural {
		return nil, errors.Errorf("bpe: max length %d is below %d structural tokens", maxLength, structural)
	}

	content := t.contentIDs(text)
	if room := maxLength - structural; len(content) > room {
		content = content[:room]
	}

	ids := make([]int, 0, len(content)+structural)
	if t.cfg.addBOS {
		ids = append(ids, t.bosID)
	}
	ids = append(ids, content...)
	if t.cfg.addEOS {
		ids = append(ids, t.eosID)
	}
	return newEncodedInput(ids, maxLength), nil
}

// Tokens returns the merged symbols for text, before vocabulary lookup.
func (t *BPE) Tokens(text string) []string {
	var out []string
	for _, word := range splitWords(Normalize(text), t.cfg.splitPunct) {
		out = append(out, t.mergeWord(word)...)
	}
	return out
}

func (t *BPE) contentIDs(text string) []int {
	var ids []int
	for _, word := range splitWords(Normalize(text), t.cfg.splitPunct) {
		ids = append(ids, t.wordIDs(word)...)
	}
	return ids
}

func (t *BPE) wordIDs(word string) []int {
	if t.cache != nil {
		if v, ok := t.cache.Get(word); ok {
			return v.([]int)
		}
	}
	symbols := t.mergeWord(word)
	ids := make([]int, 0, len(symbols))
	for _, sym := range symbols {
		if id, ok := t.vocab.ID(sym); ok {
			ids = append(ids, id)
			continue
		}
		if t.cfg.unkFallback {
			ids = append(ids, t.unkID)
			continue
		}
		log.Trace("BPE dropped unmapped symbol", "symbol", sym, "word", word)
	}
	if t.cache != nil {
		t.cache.Add(word, ids)
	}
	return ids
}

// mergeWord splits word into units, marks the last one, and applies merges
// lowest rank first. Each merge removes one symbol, so the loop is bounded by
// the word length.
func (t *BPE) mergeWord(word string) []string {
	symbols := t.units(word)
	if len(symbols) == 0 {
		return nil
	}
	symbols[len(symbols)-1] += t.cfg.marker

	for len(symbols) > 1 {
		best, bestRank := -1, 0
		for i := 0; i+1 < len(symbols); i++ {
			if r, ok := t.merges.Rank(symbols[i], symbols[i+1]); ok && (best < 0 || r < bestRank) {
				best, bestRank = i, r
			}
		}
		if best < 0 {
			break
		}
		symbols[best] += symbols[best+1]
		symbols = append(symbols[:best+1], symbols[best+2:]...)
	}
	return symbols
}

func (t *BPE) units(word string) []string {
	if t.cfg.byteLevel {
		units := make([]string, 0, len(word))
		for i := 0; i < len(word); i++ {
			units = append(units, string(t.byteToUnicode[word[i]]))
		}
		return units
	}
	units := make([]string, 0, len(word))
	for _, r := range word {
		units = append(units, string(r))
	}
	return units
}

// buildByteTable is GPT-2's bytes_to_unicode: printable Latin-1 bytes map to
// themselves, everything else to U+0100 onward.
func buildByteTable() (byteToUni [256]rune, uniToByte map[rune]byte) {
	uniToByte = make(map[rune]byte, 256)
	n := 0
	for b := 0; b < 256; b++ {
		var r rune
		if (b >= 33 && b <= 126) || (b >= 161 && b <= 172) || (b >= 174 && b <= 255) {
			r = rune(b)
		} else {
			r = rune(256 + n)
			n++
		}
		byteToUni[b] = r
		uniToByte[r] = byte(b)
	}
	return
}

// DecodingBPE is a BPE tokenizer that can also map ids back to text.
type DecodingBPE struct {
	*BPE
	unicodeToByte map[rune]byte
}

// NewDecodingBPE builds an encoder/decoder pair over the same tables.
func NewDecodingBPE(vocab *Vocabulary, merges *MergeTable, specials *SpecialTokens, opts ...BPEOption) (*DecodingBPE, error) {
	enc, err := NewBPE(vocab, merges, specials, opts...)
	if err != nil {
		return nil, err
	}
	d := &DecodingBPE{BPE: enc}
	if enc.cfg.byteLevel {
		_, d.unicodeToByte = buildByteTable()
	}
	return d, nil
}

// Decode joins the fragments of ids, skipping special and unmapped ids.
// End-of-word markers become single spaces; the trailing one is trimmed.
func (d *DecodingBPE) Decode(ids []int) string {
	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(d.DecodeID(id))
	}
	return strings.TrimRight(sb.String(), " ")
}

// DecodeID returns the text fragment for one id, or "" for special and unmapped ids.
func (d *DecodingBPE) DecodeID(id int) string {
	if d.specials.IsSpecial(id) {
		return ""
	}
	tok, err := d.vocab.Token(id)
	if err != nil {
		return ""
	}
	wordEnd := false
	if m := d.cfg.marker; m != "" && strings.HasSuffix(tok, m) {
		tok = strings.TrimSuffix(tok, m)
		wordEnd = true
	}
	if d.unicodeToByte != nil {
		tok = d.unmapBytes(tok)
	}
	if wordEnd {
		tok += " "
	}
	return tok
}

func (d *DecodingBPE) unmapBytes(s string) string {
	buf := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := d.unicodeToByte[r]; ok {
			buf = append(buf, b)
		} else {
			buf = append(buf, string(r)...)
		}
	}
	return string(buf)
}
