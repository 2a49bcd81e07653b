package imageproc

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/ariannamethod/yentkit/kernels"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Detection is one kept box with its class.
type Detection struct {
	Box   kernels.Box // corner form, pixel coordinates
	Label string
	Score float32
}

var palette = []color.RGBA{
	{230, 25, 75, 255},
	{60, 180, 75, 255},
	{255, 225, 25, 255},
	{0, 130, 200, 255},
	{245, 130, 48, 255},
	{145, 30, 180, 255},
}

// basicfont glyph cell
const (
	charW = 7
	charH = 13
)

// DrawDetections returns a copy of img with each box outlined and labelled.
// Boxes are clipped to the image.
func DrawDetections(img image.Image, dets []Detection) *image.RGBA {
	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Src)

	for i, d := range dets {
		c := palette[i%len(palette)]
		r := image.Rect(int(d.Box[0]), int(d.Box[1]), int(d.Box[2]), int(d.Box[3])).Intersect(canvas.Bounds())
		if r.Empty() {
			continue
		}
		outline(canvas, r, c)
		caption(canvas, r, c, fmt.Sprintf("%s %.2f", d.Label, d.Score))
	}
	return canvas
}

func outline(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, c)
		img.SetRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, c)
		img.SetRGBA(r.Max.X-1, y, c)
	}
}

// caption draws text on a filled strip above the box, or inside it when the
// box touches the top edge.
func caption(img *image.RGBA, r image.Rectangle, c color.RGBA, text string) {
	top := r.Min.Y - charH
	if top < 0 {
		top = r.Min.Y
	}
	strip := image.Rect(r.Min.X, top, r.Min.X+len(text)*charW+2, top+charH).Intersect(img.Bounds())
	draw.Draw(img, strip, image.NewUniform(c), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{0, 0, 0, 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(r.Min.X+1, top+charH-2), // baseline offset
	}
	d.DrawString(text)
}
