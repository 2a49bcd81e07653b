// Package imageproc converts images to model input tensors and renders
// detection results back onto them.
package imageproc

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// ImageNet channel statistics, the usual vision model normalization.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// ToTensor resizes img to width x height with Catmull-Rom and returns a CHW
// float32 buffer: RGB scaled to [0, 1], then (v - mean) / std per channel.
func ToTensor(img image.Image, width, height int, mean, std [3]float32) ([]float32, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid tensor size %dx%d", width, height)
	}
	for c, s := range std {
		if s == 0 {
			return nil, errors.Errorf("zero std for channel %d", c)
		}
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("empty image")
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	plane := width * height
	out := make([]float32, 3*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			px := dst.RGBAAt(x, y)
			i := y*width + x
			out[i] = (float32(px.R)/255 - mean[0]) / std[0]
			out[plane+i] = (float32(px.G)/255 - mean[1]) / std[1]
			out[2*plane+i] = (float32(px.B)/255 - mean[2]) / std[2]
		}
	}
	return out, nil
}

// FromTensor is the inverse of ToTensor for a CHW buffer of the given size.
func FromTensor(data []float32, width, height int, mean, std [3]float32) (*image.RGBA, error) {
	plane := width * height
	if width <= 0 || height <= 0 || len(data) != 3*plane {
		return nil, errors.Errorf("%d values do not form a 3x%dx%d tensor", len(data), height, width)
	}
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			rgba.SetRGBA(x, y, color.RGBA{
				R: clampByte(data[i]*std[0] + mean[0]),
				G: clampByte(data[plane+i]*std[1] + mean[1]),
				B: clampByte(data[2*plane+i]*std[2] + mean[2]),
				A: 255,
			})
		}
	}
	return rgba, nil
}

// clampByte maps [0, 1] to [0, 255], rounding and clamping.
func clampByte(v float32) uint8 {
	v = v*255 + 0.5
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
