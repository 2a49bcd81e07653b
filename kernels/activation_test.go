package kernels

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(xs []float32) float64 {
	s := 0.0
	for _, x := range xs {
		s += float64(x)
	}
	return s
}

func TestSoftmax(t *testing.T) {
	tests := [][]float32{
		{1, 2, 3},
		{0},
		{-5, -5, -5, -5},
		{1000, 1001, 999},
		{-1e4, 0, 1e4},
	}
	for _, in := range tests {
		out := Softmax(in)
		require.Len(t, out, len(in))
		assert.InDelta(t, 1.0, sum(out), 1e-5, "%v", in)
		for _, p := range out {
			assert.False(t, math.IsNaN(float64(p)))
			assert.GreaterOrEqual(t, p, float32(0))
		}
	}
	assert.Empty(t, Softmax(nil))

	out := Softmax([]float32{1, 2, 3})
	assert.InDelta(t, 0.09003057, out[0], 1e-6)
	assert.InDelta(t, 0.24472847, out[1], 1e-6)
	assert.InDelta(t, 0.66524096, out[2], 1e-6)
}

func TestSoftmaxShiftInvariant(t *testing.T) {
	base := []float32{0.5, -1.25, 3, 2}
	want := Softmax(base)
	for _, c := range []float32{-100, -1, 7, 250} {
		shifted := make([]float32, len(base))
		for i, v := range base {
			shifted[i] = v + c
		}
		got := Softmax(shifted)
		assert.InDeltaSlice(t, want, got, 1e-5, "shift %v", c)
	}
}

func TestSoftmaxDoesNotMutate(t *testing.T) {
	in := []float32{3, 1, 2}
	_ = Softmax(in)
	_ = LogSoftmax(in)
	_ = Sigmoid(in)
	assert.Equal(t, []float32{3, 1, 2}, in)
}

func TestLogSoftmax(t *testing.T) {
	in := []float32{1, 2, 3, -0.5}
	logs := LogSoftmax(in)
	probs := Softmax(in)
	for i := range in {
		assert.InDelta(t, math.Log(float64(probs[i])), float64(logs[i]), 1e-5)
		assert.Less(t, logs[i], float32(0))
	}

	// Stays finite where exp would underflow.
	logs = LogSoftmax([]float32{0, 1000})
	assert.InDelta(t, -1000, logs[0], 1e-3)
	assert.InDelta(t, 0, logs[1], 1e-6)
	assert.Empty(t, LogSoftmax([]float32{}))
}

func TestSoftmaxInfinities(t *testing.T) {
	posInf, negInf := float32(math.Inf(1)), float32(math.Inf(-1))

	assert.Equal(t, []float32{0, 1, 0}, Softmax([]float32{1, posInf, 3}))
	assert.Equal(t, []float32{0.5, 0, 0.5}, Softmax([]float32{posInf, 2, posInf}))
	assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25}, Softmax([]float32{negInf, negInf, negInf, negInf}))
	assert.Equal(t, []float32{0, 1}, Softmax([]float32{negInf, 4}))

	logs := LogSoftmax([]float32{1, posInf, 3})
	assert.True(t, math.IsInf(float64(logs[0]), -1))
	assert.Equal(t, float32(0), logs[1])
	assert.True(t, math.IsInf(float64(logs[2]), -1))

	logs = LogSoftmax([]float32{negInf, negInf})
	assert.InDeltaSlice(t, []float32{float32(-math.Ln2), float32(-math.Ln2)}, logs, 1e-6)
}

func TestSigmoid(t *testing.T) {
	out := Sigmoid([]float32{0, 2, -2, 1000, -1000})
	assert.InDelta(t, 0.5, out[0], 1e-7)
	assert.InDelta(t, 0.880797, out[1], 1e-6)
	assert.InDelta(t, 0.119203, out[2], 1e-6)
	assert.Equal(t, float32(1), out[3])
	assert.Equal(t, float32(0), out[4])
}

func TestActivation(t *testing.T) {
	tests := []struct {
		in   string
		want Activation
	}{
		{"", ActivationNone},
		{"none", ActivationNone},
		{"Softmax", ActivationSoftmax},
		{" SIGMOID ", ActivationSigmoid},
	}
	for _, tc := range tests {
		got, err := ParseActivation(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
	_, err := ParseActivation("relu")
	assert.Error(t, err)

	in := []float32{1, 2}
	assert.Equal(t, Softmax(in), ActivationSoftmax.Apply(in))
	assert.Equal(t, Sigmoid(in), ActivationSigmoid.Apply(in))
	none := ActivationNone.Apply(in)
	assert.Equal(t, in, none)
	none[0] = 9
	assert.Equal(t, float32(1), in[0])

	assert.Equal(t, "softmax", ActivationSoftmax.String())
	assert.Equal(t, "Activation(7)", Activation(7).String())
}
