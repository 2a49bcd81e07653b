package engine

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// extractFloat32 copies an ORT output into a fresh float32 slice, widening fp16.
func extractFloat32(v ort.Value) ([]float32, error) {
	switch t := v.(type) {
	case *ort.Tensor[float32]:
		return append([]float32(nil), t.GetData()...), nil
	case *ort.Tensor[float64]:
		src := t.GetData()
		out := make([]float32, len(src))
		for i, x := range src {
			out[i] = float32(x)
		}
		return out, nil
	case *ort.Tensor[uint16]:
		src := t.GetData()
		out := make([]float32, len(src))
		for i, bits := range src {
			out[i] = FP16ToFloat32(bits)
		}
		return out, nil
	case *ort.CustomDataTensor:
		// custom data is only produced for fp16 outputs
		return FP16BytesToFloat32(t.GetData()), nil
	}
	return nil, errors.Errorf("unsupported output tensor type %T", v)
}

// Float32ToFP16Bytes packs values as little-endian IEEE 754 half floats.
func Float32ToFP16Bytes(data []float32) []byte {
	out := make([]byte, len(data)*2)
	for i, v := range data {
		binary.LittleEndian.PutUint16(out[i*2:], Float32ToFP16(v))
	}
	return out
}

// FP16BytesToFloat32 unpacks little-endian half floats. A trailing odd byte is ignored.
func FP16BytesToFloat32(raw []byte) []float32 {
	out := make([]float32, len(raw)/2)
	for i := range out {
		out[i] = FP16ToFloat32(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return out
}

// Float32ToFP16 truncates f to half precision. Out of range values become
// infinities, tiny ones flush through subnormals to signed zero.
func Float32ToFP16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>31) << 15
	exp := int((bits>>23)&0xFF) - 127
	frac := bits & 0x7FFFFF

	switch {
	case exp == 128:
		if frac != 0 {
			return sign | 0x7C00 | 1 // NaN
		}
		return sign | 0x7C00
	case exp > 15:
		return sign | 0x7C00
	case exp < -24:
		return sign
	case exp < -14:
		frac |= 0x800000
		return sign | uint16(frac>>(uint(-14-exp)+13))
	}
	return sign | uint16(exp+15)<<10 | uint16(frac>>13)
}

// FP16ToFloat32 widens IEEE 754 half float bits.
func FP16ToFloat32(bits uint16) float32 {
	sign := uint32(bits>>15) & 1
	exp := uint32(bits>>10) & 0x1F
	frac := uint32(bits) & 0x3FF

	switch exp {
	case 31:
		if frac != 0 {
			return float32(math.NaN())
		}
		return float32(math.Inf(1 - 2*int(sign)))
	case 0:
		f := float32(math.Ldexp(float64(frac), -24))
		if sign == 1 {
			return -f
		}
		return f
	}
	return math.Float32frombits(sign<<31 | (exp-15+127)<<23 | frac<<13)
}
