package kernels

import (
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
)

// ErrShapeMismatch reports inputs whose sizes do not agree.
var ErrShapeMismatch = errors.New("shape mismatch")

// Box is an axis-aligned rectangle. Corner form is [x1, y1, x2, y2];
// center form is [cx, cy, w, h].
type Box [4]float32

// Area of a corner box. Inverted boxes have zero area.
func (b Box) Area() float64 {
	w := float64(b[2]) - float64(b[0])
	h := float64(b[3]) - float64(b[1])
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU is intersection over union of two corner boxes. A zero union yields 0.
func IoU(a, b Box) float32 {
	ix1 := max(float64(a[0]), float64(b[0]))
	iy1 := max(float64(a[1]), float64(b[1]))
	ix2 := min(float64(a[2]), float64(b[2]))
	iy2 := min(float64(a[3]), float64(b[3]))

	inter := 0.0
	if ix2 > ix1 && iy2 > iy1 {
		inter = (ix2 - ix1) * (iy2 - iy1)
	}
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return float32(inter / union)
}

// NonMaxSuppression greedily keeps the highest scoring box and discards every
// remaining box whose IoU with a kept box exceeds iouThreshold. Kept indices
// are returned in descending score order.
func NonMaxSuppression(boxes []Box, scores []float32, iouThreshold float32) ([]int, error) {
	if len(boxes) != len(scores) {
		return nil, errors.Wrapf(ErrShapeMismatch, "%d boxes, %d scores", len(boxes), len(scores))
	}
	order := TopK(scores, len(scores))
	suppressed := make([]bool, len(boxes))
	keep := make([]int, 0, len(boxes))
	for i, cur := range order {
		if suppressed[cur] {
			continue
		}
		keep = append(keep, cur)
		for _, other := range order[i+1:] {
			if !suppressed[other] && IoU(boxes[cur], boxes[other]) > iouThreshold {
				suppressed[other] = true
			}
		}
	}
	log.Trace("Suppressed overlapping boxes", "in", len(boxes), "kept", len(keep), "iou", iouThreshold)
	return keep, nil
}

// BoxesFromFlat groups a flat [n*4] buffer into boxes.
func BoxesFromFlat(flat []float32) ([]Box, error) {
	if len(flat)%4 != 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "%d values is not a multiple of 4", len(flat))
	}
	boxes := make([]Box, len(flat)/4)
	for i := range boxes {
		copy(boxes[i][:], flat[i*4:i*4+4])
	}
	return boxes, nil
}

// CenterToCornerBoxes converts [cx, cy, w, h] boxes to [x1, y1, x2, y2].
func CenterToCornerBoxes(boxes []Box) []Box {
	out := make([]Box, len(boxes))
	for i, b := range boxes {
		hw, hh := b[2]/2, b[3]/2
		out[i] = Box{b[0] - hw, b[1] - hh, b[0] + hw, b[1] + hh}
	}
	return out
}
