package tokenizer

// EncodedInput is the model-ready result of one Encode call. All three sequences
// have the same length; accessors hand out copies.
type EncodedInput struct {
	inputIDs      []int
	attentionMask []int
	tokenTypeIDs  []int
}

// Encoder turns text into a fixed-length EncodedInput.
type Encoder interface {
	Encode(text string, maxLength int) (*EncodedInput, error)
}

// Decoder maps ids back to text.
type Decoder interface {
	Decode(ids []int) string
	DecodeID(id int) string
}

// newEncodedInput pads ids with 0 up to maxLength. Callers have already truncated.
func newEncodedInput(ids []int, maxLength int) *EncodedInput {
	e := &EncodedInput{
		inputIDs:      make([]int, maxLength),
		attentionMask: make([]int, maxLength),
		tokenTypeIDs:  make([]int, maxLength),
	}
	copy(e.inputIDs, ids)
	for i := range ids {
		e.attentionMask[i] = 1
	}
	return e
}

func (e *EncodedInput) InputIDs() []int      { return append([]int(nil), e.inputIDs...) }
func (e *EncodedInput) AttentionMask() []int { return append([]int(nil), e.attentionMask...) }
func (e *EncodedInput) TokenTypeIDs() []int  { return append([]int(nil), e.tokenTypeIDs...) }

// Len is the padded length.
func (e *EncodedInput) Len() int { return len(e.inputIDs) }

// RealLength counts non-padding positions.
func (e *EncodedInput) RealLength() int {
	n := 0
	for _, m := range e.attentionMask {
		n += m
	}
	return n
}

// Int64 returns the three sequences widened for tensor feeds.
func (e *EncodedInput) Int64() (inputIDs, attentionMask, tokenTypeIDs []int64) {
	return widen(e.inputIDs), widen(e.attentionMask), widen(e.tokenTypeIDs)
}

func widen(src []int) []int64 {
	out := make([]int64, len(src))
	for i, v := range src {
		out[i] = int64(v)
	}
	return out
}

var (
	_ Encoder = (*WordPiece)(nil)
	_ Encoder = (*BPE)(nil)
	_ Encoder = (*DecodingBPE)(nil)
	_ Decoder = (*DecodingBPE)(nil)
)
