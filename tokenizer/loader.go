package tokenizer

import (
	"path/filepath"

	"github.com/pkg/errors"
)

// CLIP and BERT special token spellings.
var (
	CLIPSpecialNames = map[Role]string{
		RoleBeginOfSeq: "<|startoftext|>",
		RoleEndOfSeq:   "<|endoftext|>",
	}
	BERTSpecialNames = map[Role]string{
		RoleClassification: "[CLS]",
		RoleSeparator:      "[SEP]",
		RoleUnknown:        "[UNK]",
	}
	bertOptionalNames = map[Role]string{
		RolePad:  "[PAD]",
		RoleMask: "[MASK]",
	}
)

// LoadCLIP loads vocab.json and merges.txt from dir and returns a CLIP-style
// tokenizer: BOS/EOS framing, punctuation split, 77-token default.
func LoadCLIP(dir string, opts ...BPEOption) (*DecodingBPE, error) {
	base := []BPEOption{WithBOS(), WithEOS(), WithSplitPunctuation()}
	return LoadBPE(filepath.Join(dir, "vocab.json"), filepath.Join(dir, "merges.txt"),
		CLIPSpecialNames, append(base, opts...)...)
}

// LoadBPE loads a vocabulary and merge table from explicit paths. Each entry
// of names found in the vocabulary becomes a special token; absent ones are
// skipped, so options that need them fail with ErrMissingSpecial.
func LoadBPE(vocabPath, mergesPath string, names map[Role]string, opts ...BPEOption) (*DecodingBPE, error) {
	vocab, err := LoadVocabulary(vocabPath)
	if err != nil {
		return nil, err
	}
	merges, err := LoadMergeTable(mergesPath)
	if err != nil {
		return nil, err
	}
	specials, err := ResolveSpecialTokens(vocab, presentNames(vocab, names))
	if err != nil {
		return nil, err
	}
	tok, err := NewDecodingBPE(vocab, merges, specials, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", vocabPath)
	}
	return tok, nil
}

func presentNames(vocab *Vocabulary, names map[Role]string) map[Role]string {
	out := make(map[Role]string, len(names))
	for r, n := range names {
		if _, ok := vocab.ID(n); ok {
			out[r] = n
		}
	}
	return out
}

// LoadBERT loads a vocab.txt (or vocab.json) and returns a WordPiece tokenizer.
func LoadBERT(vocabPath string, opts ...WordPieceOption) (*WordPiece, error) {
	vocab, err := LoadVocabulary(vocabPath)
	if err != nil {
		return nil, err
	}
	names := presentNames(vocab, bertOptionalNames)
	for r, n := range BERTSpecialNames {
		names[r] = n
	}
	specials, err := ResolveSpecialTokens(vocab, names)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", vocabPath)
	}
	return NewWordPiece(vocab, specials, opts...)
}
