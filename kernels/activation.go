// Package kernels holds the numeric post-processing applied to raw model
// scores: activations, ranking, box suppression and CTC decoding.
//
// Inputs are float32 because that is what inference runtimes hand back.
// Arithmetic is carried out in float64 and results are narrowed on the way out.
// No function retains or mutates its arguments.
package kernels

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Softmax returns exp(x - max) normalized to sum to 1. When the max is
// infinite, the mass is shared evenly by the entries equal to it.
func Softmax(scores []float32) []float32 {
	out := make([]float32, len(scores))
	if len(scores) == 0 {
		return out
	}
	maxVal := maxOf(scores)
	exps := make([]float64, len(scores))
	sum := 0.0
	for i, v := range scores {
		e := math.Exp(shifted(float64(v), maxVal))
		exps[i] = e
		sum += e
	}
	for i, e := range exps {
		out[i] = float32(e / sum)
	}
	return out
}

// LogSoftmax returns (x - max) - log(sum(exp(x - max))), with infinities
// handled as in Softmax.
func LogSoftmax(scores []float32) []float32 {
	out := make([]float32, len(scores))
	if len(scores) == 0 {
		return out
	}
	maxVal := maxOf(scores)
	sum := 0.0
	for _, v := range scores {
		sum += math.Exp(shifted(float64(v), maxVal))
	}
	logSum := math.Log(sum)
	for i, v := range scores {
		out[i] = float32(shifted(float64(v), maxVal) - logSum)
	}
	return out
}

// Sigmoid applies 1 / (1 + exp(-x)) to each score.
func Sigmoid(scores []float32) []float32 {
	out := make([]float32, len(scores))
	for i, v := range scores {
		out[i] = float32(sigmoid(float64(v)))
	}
	return out
}

// sigmoid is split by sign so exp never overflows.
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// shifted is v - max, except that an infinite max maps entries equal to it
// to 0 and all others to -Inf.
func shifted(v, maxVal float64) float64 {
	if math.IsInf(maxVal, 0) {
		if v == maxVal {
			return 0
		}
		return math.Inf(-1)
	}
	return v - maxVal
}

func maxOf(scores []float32) float64 {
	m := math.Inf(-1)
	for _, v := range scores {
		if f := float64(v); f > m {
			m = f
		}
	}
	return m
}

// Activation selects the function turning logits into scores.
type Activation int

const (
	ActivationNone Activation = iota
	ActivationSoftmax
	ActivationSigmoid
)

var activationNames = map[Activation]string{
	ActivationNone:    "none",
	ActivationSoftmax: "softmax",
	ActivationSigmoid: "sigmoid",
}

func (a Activation) String() string {
	if n, ok := activationNames[a]; ok {
		return n
	}
	return "Activation(" + strconv.Itoa(int(a)) + ")"
}

// Apply runs the activation. ActivationNone returns a copy.
func (a Activation) Apply(scores []float32) []float32 {
	switch a {
	case ActivationSoftmax:
		return Softmax(scores)
	case ActivationSigmoid:
		return Sigmoid(scores)
	default:
		return append(make([]float32, 0, len(scores)), scores...)
	}
}

// ParseActivation accepts "none", "softmax" or "sigmoid" in any case. The empty
// string means none.
func ParseActivation(s string) (Activation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ActivationNone, nil
	}
	for a, n := range activationNames {
		if n == s {
			return a, nil
		}
	}
	return ActivationNone, errors.Errorf("unknown activation %q", s)
}
