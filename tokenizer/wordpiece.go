package tokenizer

import (
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
)

const (
	continuationPrefix      = "##"
	defaultMaxCharsPerWord  = 100
	wordPieceStructuralSize = 2 // [CLS] + [SEP]
)

// WordPiece is a greedy longest-match subword tokenizer (BERT family).
type WordPiece struct {
	vocab           *Vocabulary
	specials        *SpecialTokens
	clsID           int
	sepID           int
	unkID           int
	maxCharsPerWord int
}

// WordPieceOption configures NewWordPiece.
type WordPieceOption func(*WordPiece)

// WithMaxInputCharsPerWord sets the word length (in runes) above which a word
// maps straight to [UNK].
func WithMaxInputCharsPerWord(n int) WordPieceOption {
	return func(w *WordPiece) { w.maxCharsPerWord = n }
}

// NewWordPiece builds a tokenizer. [CLS], [SEP] and [UNK] must be configured.
func NewWordPiece(vocab *Vocabulary, specials *SpecialTokens, opts ...WordPieceOption) (*WordPiece, error) {
	if vocab == nil {
		return nil, errors.New("wordpiece: nil vocabulary")
	}
	if err := specials.Require(RoleClassification, RoleSeparator, RoleUnknown); err != nil {
		return nil, errors.Wrap(err, "wordpiece")
	}
	w := &WordPiece{
		vocab:           vocab,
		specials:        specials,
		maxCharsPerWord: defaultMaxCharsPerWord,
	}
	w.clsID, _ = specials.ID(RoleClassification)
	w.sepID, _ = specials.ID(RoleSeparator)
	w.unkID, _ = specials.ID(RoleUnknown)
	for _, o := range opts {
		o(w)
	}
	if w.maxCharsPerWord <= 0 {
		return nil, errors.Errorf("wordpiece: max chars per word must be positive, got %d", w.maxCharsPerWord)
	}
	log.Debug("WordPiece tokenizer ready", "vocab", vocab.Len(), "cls", w.clsID, "sep", w.sepID, "unk", w.unkID)
	return w, nil
}

// Encode returns [CLS] + subword ids + [SEP], padded with 0 or truncated to
// maxLength with [SEP] kept last.
func (w *WordPiece) Encode(text string, maxLength int) (*EncodedInput, error) {
	if maxLength < wordPieceStructuralSize {
		return nil, errors.Errorf("wordpiece: max length %d is below %d", maxLength, wordPieceStructuralSize)
	}
	var sub []int
	for _, word := range splitWords(lowercase(text), true) {
		sub = append(sub, w.tokenizeWord(word)...)
	}
	if room := maxLength - wordPieceStructuralSize; len(sub) > room {
		sub = sub[:room]
	}
	ids := make([]int, 0, len(sub)+wordPieceStructuralSize)
	ids = append(ids, w.clsID)
	ids = append(ids, sub...)
	ids = append(ids, w.sepID)
	return newEncodedInput(ids, maxLength), nil
}

// Tokens returns the subword strings for text without structural tokens or padding.
func (w *WordPiece) Tokens(text string) []string {
	var out []string
	for _, word := range splitWords(lowercase(text), true) {
		for _, id := range w.tokenizeWord(word) {
			if tok, err := w.vocab.Token(id); err == nil {
				out = append(out, tok)
			} else {
				out = append(out, string(RoleUnknown))
			}
		}
	}
	return out
}

// tokenizeWord segments one word. The first failed position sends the whole word
// to [UNK]; there is no backtracking to an earlier split point.
func (w *WordPiece) tokenizeWord(word string) []int {
	runes := []rune(word)
	if len(runes) > w.maxCharsPerWord {
		return []int{w.unkID}
	}
	var ids []int
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := -1
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = continuationPrefix + piece
			}
			if id, ok := w.vocab.ID(piece); ok {
				found = id
				break
			}
			end--
		}
		if found < 0 {
			log.Trace("WordPiece unknown word", "word", word)
			return []int{w.unkID}
		}
		ids = append(ids, found)
		start = end
	}
	return ids
}
