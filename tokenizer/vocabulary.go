package tokenizer

// vocabulary.go: token string <-> id table
//
// Two on-disk formats are accepted:
//   vocab.json  flat {"token": id} map (CLIP, GPT-2, RoBERTa)
//   vocab.txt   one token per line, id = line index (BERT)

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnknownID is returned when an id has no token in the vocabulary.
var ErrUnknownID = errors.New("unknown token id")

// Vocabulary is a frozen bidirectional token/id mapping. Safe for concurrent reads.
type Vocabulary struct {
	tokenToID map[string]int
	idToToken map[int]string
	maxID     int
}

// VocabularyBuilder accumulates entries; Build validates and freezes them.
type VocabularyBuilder struct {
	entries []vocabEntry
}

type vocabEntry struct {
	token string
	id    int
}

// NewVocabularyBuilder returns an empty builder.
func NewVocabularyBuilder() *VocabularyBuilder {
	return &VocabularyBuilder{}
}

// Add records token -> id. Validation is deferred to Build.
func (b *VocabularyBuilder) Add(token string, id int) *VocabularyBuilder {
	b.entries = append(b.entries, vocabEntry{token: token, id: id})
	return b
}

// Build freezes the accumulated entries. Any invalid entry fails the whole build.
func (b *VocabularyBuilder) Build() (*Vocabulary, error) {
	v := &Vocabulary{
		tokenToID: make(map[string]int, len(b.entries)),
		idToToken: make(map[int]string, len(b.entries)),
		maxID:     -1,
	}
	for _, e := range b.entries {
		if e.token == "" {
			return nil, errors.Errorf("vocabulary: empty token for id %d", e.id)
		}
		if e.id < 0 {
			return nil, errors.Errorf("vocabulary: negative id %d for token %q", e.id, e.token)
		}
		if prev, ok := v.tokenToID[e.token]; ok {
			return nil, errors.Errorf("vocabulary: token %q bound to both %d and %d", e.token, prev, e.id)
		}
		if prev, ok := v.idToToken[e.id]; ok {
			return nil, errors.Errorf("vocabulary: id %d bound to both %q and %q", e.id, prev, e.token)
		}
		v.tokenToID[e.token] = e.id
		v.idToToken[e.id] = e.token
		if e.id > v.maxID {
			v.maxID = e.id
		}
	}
	return v, nil
}

// NewVocabulary builds a vocabulary from an in-memory token -> id map.
func NewVocabulary(m map[string]int) (*Vocabulary, error) {
	b := NewVocabularyBuilder()
	for tok, id := range m {
		b.Add(tok, id)
	}
	return b.Build()
}

// ID looks up the id of a token.
func (v *Vocabulary) ID(token string) (int, bool) {
	id, ok := v.tokenToID[token]
	return id, ok
}

// Token looks up the token string of an id.
func (v *Vocabulary) Token(id int) (string, error) {
	tok, ok := v.idToToken[id]
	if !ok {
		return "", errors.Wrapf(ErrUnknownID, "id %d", id)
	}
	return tok, nil
}

// Len is the number of entries.
func (v *Vocabulary) Len() int { return len(v.tokenToID) }

// MaxID is the largest id, or -1 for an empty vocabulary.
func (v *Vocabulary) MaxID() int { return v.maxID }

// ReadVocabularyJSON parses a flat {"token": id} map.
func ReadVocabularyJSON(r io.Reader) (*Vocabulary, error) {
	var raw map[string]json.Number
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "parse vocab")
	}
	b := NewVocabularyBuilder()
	for tok, num := range raw {
		id, err := num.Int64()
		if err != nil {
			return nil, errors.Errorf("parse vocab: token %q has non-integer id %s", tok, num)
		}
		b.Add(tok, int(id))
	}
	return b.Build()
}

// ReadVocabularyText parses one token per line; the id is the 0-based line index.
func ReadVocabularyText(r io.Reader) (*Vocabulary, error) {
	b := NewVocabularyBuilder()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	id := 0
	for sc.Scan() {
		tok := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(tok) == "" {
			return nil, errors.Errorf("parse vocab: empty token on line %d", id+1)
		}
		b.Add(tok, id)
		id++
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read vocab")
	}
	return b.Build()
}

// LoadVocabulary reads a vocabulary file, choosing the format by extension
// (.json, anything else is line-per-token).
func LoadVocabulary(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "read vocab")
	}
	defer f.Close()

	var v *Vocabulary
	if strings.EqualFold(filepath.Ext(path), ".json") {
		v, err = ReadVocabularyJSON(f)
	} else {
		v, err = ReadVocabularyText(f)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return v, nil
}
