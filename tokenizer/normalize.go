package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// lowercase applies Unicode case mapping. A Caser keeps state, so one is made per call.
func lowercase(text string) string {
	return cases.Lower(language.Und).String(text)
}

// collapseWhitespace trims and squeezes whitespace runs into single spaces.
func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Normalize is the text form both tokenizers operate on.
func Normalize(text string) string {
	return collapseWhitespace(lowercase(text))
}

func isPunctuation(r rune) bool {
	// ASCII symbols count as punctuation, matching BERT's basic tokenizer.
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

// splitWords splits on whitespace and, if punct is set, emits each punctuation
// rune as its own word.
func splitWords(text string, punct bool) []string {
	if !punct {
		return strings.Fields(text)
	}
	var words []string
	var current []rune
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if len(current) > 0 {
				words = append(words, string(current))
				current = current[:0]
			}
		case isPunctuation(r):
			if len(current) > 0 {
				words = append(words, string(current))
				current = current[:0]
			}
			words = append(words, string(r))
		default:
			current = append(current, r)
		}
	}
	if len(current) > 0 {
		words = append(words, string(current))
	}
	return words
}
