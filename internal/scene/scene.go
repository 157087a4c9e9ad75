// Package scene renders the test pictures shown by the example programs.
package scene

import (
	"image"
	"image/color"

	"github.com/flavioheleno/sh8601/image565"
	"github.com/flavioheleno/sh8601/safearea"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

// Font is the font used for labels.
var Font tinyfont.Fonter = &proggy.TinySZ8pt7b

// Palette holds the colors of the bar pattern, left to right.
var Palette = []image565.RGB565{
	image565.FromRGB(0xFF, 0xFF, 0xFF),
	image565.FromRGB(0xFF, 0xFF, 0x00),
	image565.FromRGB(0x00, 0xFF, 0xFF),
	image565.FromRGB(0x00, 0xFF, 0x00),
	image565.FromRGB(0xFF, 0x00, 0xFF),
	image565.FromRGB(0xFF, 0x00, 0x00),
	image565.FromRGB(0x00, 0x00, 0xFF),
	image565.FromRGB(0x00, 0x00, 0x00),
}

// Gradient returns an image where red grows left to right and blue grows top
// to bottom.
func Gradient(r image.Rectangle) *image565.Image {
	img := image565.NewImage(r)
	w, h := r.Dx(), r.Dy()
	if w == 0 || h == 0 {
		return img
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		b := uint8((y - r.Min.Y) * 255 / max(h-1, 1))
		for x := r.Min.X; x < r.Max.X; x++ {
			red := uint8((x - r.Min.X) * 255 / max(w-1, 1))
			img.SetRGB565(x, y, image565.FromRGB(red, 0x40, b))
		}
	}
	return img
}

// Bars returns vertical bars in Palette order. Pixels outside c stay black.
func Bars(r image.Rectangle, c safearea.Circle) *image565.Image {
	img := image565.NewImage(r)
	w := r.Dx()
	if w == 0 {
		return img
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if !c.Contains(image.Pt(x, y)) {
				continue
			}
			img.SetRGB565(x, y, Palette[(x-r.Min.X)*len(Palette)/w])
		}
	}
	return img
}

// LabelSize returns the size of the image Label renders for text, with pad
// pixels around it.
func LabelSize(text string, pad int) image.Point {
	_, outbox := tinyfont.LineWidth(Font, text)
	return image.Pt(int(outbox)+2*pad, int(Font.GetYAdvance())+2*pad)
}

// Label renders text with pad pixels of bg around it.
func Label(text string, fg, bg color.RGBA, pad int) *image565.Image {
	size := LabelSize(text, pad)
	img := image565.NewImage(image.Rectangle{Max: size})
	img.Fill(image565.FromRGB(bg.R, bg.G, bg.B))
	// The y coordinate is the baseline.
	base := pad + int(Font.GetYAdvance())*3/4
	tinyfont.WriteLine(img, Font, int16(pad), int16(base), text, fg)
	return img
}

// Place returns the rectangle of the given size centered on p and moved onto
// the glass of c.
func Place(c safearea.Circle, p image.Point, size image.Point) image.Rectangle {
	r := image.Rectangle{Max: size}.Add(p.Sub(size.Div(2)))
	return c.Clamp(r)
}
