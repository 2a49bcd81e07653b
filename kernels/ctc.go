package kernels

import "github.com/pkg/errors"

// GreedySequenceDecode decodes a row-major [timeSteps x vocabSize] score
// matrix: the best class per step (lowest index on ties), consecutive
// repeats collapsed, blanks removed. A blank between two equal classes keeps
// both.
func GreedySequenceDecode(scores []float32, timeSteps, vocabSize, blankIndex int) ([]int, error) {
	if timeSteps < 0 || vocabSize < 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "negative dimensions %dx%d", timeSteps, vocabSize)
	}
	if len(scores) != timeSteps*vocabSize {
		return nil, errors.Wrapf(ErrShapeMismatch, "%d scores for %d steps x %d classes",
			len(scores), timeSteps, vocabSize)
	}
	if timeSteps == 0 {
		return []int{}, nil
	}
	if blankIndex < 0 || blankIndex >= vocabSize {
		return nil, errors.Errorf("blank index %d outside [0, %d)", blankIndex, vocabSize)
	}

	out := []int{}
	prev := -1
	for t := 0; t < timeSteps; t++ {
		best, _ := ArgMax(scores[t*vocabSize : (t+1)*vocabSize])
		if best != prev && best != blankIndex {
			out = append(out, best)
		}
		prev = best
	}
	return out, nil
}
