// Package image565 provides a 16-bit RGB565 image format matching the SH8601 and CO5300 GRAM.
//
// The panel expects RGB565 in RGB element order, most significant byte first on the wire.
// Pixels are stored in that order so a row band can be handed to the bus as-is.
package image565

import (
	"image"
	"image/color"

	"tinygo.org/x/drivers"
)

// RGB565 represents a packed 16-bit color: 5 bits red, 6 bits green, 5 bits blue.
type RGB565 struct {
	V uint16
}

// FromRGB packs 8-bit channels into RGB565, dropping the low bits.
func FromRGB(r, g, b uint8) RGB565 {
	return RGB565{V: uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)}
}

// RGB returns the 8-bit channels, replicating the high bits into the low ones.
func (c RGB565) RGB() (r, g, b uint8) {
	r5 := uint8(c.V >> 11)
	g6 := uint8(c.V>>5) & 0x3F
	b5 := uint8(c.V) & 0x1F
	return r5<<3 | r5>>2, g6<<2 | g6>>4, b5<<3 | b5>>2
}

// RGBA converts the RGB565 color to standard RGBA.
// Every 8-bit channel is scaled to 16-bit by multiplying with 0x101.
func (c RGB565) RGBA() (r, g, b, a uint32) {
	r8, g8, b8 := c.RGB()
	return uint32(r8) * 0x101, uint32(g8) * 0x101, uint32(b8) * 0x101, 0xFFFF
}

// toRGB565 converts any color.Color to RGB565.
func toRGB565(c color.Color) color.Color {
	if v, ok := c.(RGB565); ok {
		return v
	}
	r, g, b, _ := c.RGBA()
	// RGBA returns 16-bit channels
	return RGB565{V: uint16(r>>11)<<11 | uint16(g>>10)<<5 | uint16(b>>11)}
}

// RGB565Model converts colors to RGB565.
var RGB565Model = color.ModelFunc(toRGB565)

// Image is an RGB565 image with 2 bytes per pixel, high byte first.
type Image struct {
	Pix    []byte          // Pixel data (2 bytes per pixel, big-endian)
	Stride int             // Bytes per row
	Rect   image.Rectangle // Image bounds
}

var _ drivers.Displayer = (*Image)(nil)

// NewImage creates a new Image with the specified bounds.
func NewImage(r image.Rectangle) *Image {
	w, h := r.Dx(), r.Dy()
	if w < 0 || h < 0 {
		return &Image{Rect: r}
	}
	return &Image{
		Pix:    make([]byte, 2*w*h),
		Stride: 2 * w,
		Rect:   r,
	}
}

// ColorModel returns the color model of the image.
func (p *Image) ColorModel() color.Model {
	return RGB565Model
}

// Bounds returns the image bounds.
func (p *Image) Bounds() image.Rectangle {
	return p.Rect
}

// At returns the color of the pixel at (x, y).
// It implements the image.Image interface.
func (p *Image) At(x, y int) color.Color {
	return p.RGB565At(x, y)
}

// RGB565At returns the RGB565 color of the pixel at (x, y).
func (p *Image) RGB565At(x, y int) RGB565 {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return RGB565{}
	}
	i := p.PixOffset(x, y)
	return RGB565{V: uint16(p.Pix[i])<<8 | uint16(p.Pix[i+1])}
}

// Set sets the color of the pixel at (x, y).
func (p *Image) Set(x, y int, c color.Color) {
	p.SetRGB565(x, y, RGB565Model.Convert(c).(RGB565))
}

// SetRGB565 sets the RGB565 color of the pixel at (x, y).
// This is faster than Set() as it doesn't require color conversion.
func (p *Image) SetRGB565(x, y int, c RGB565) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	p.Pix[i] = byte(c.V >> 8)
	p.Pix[i+1] = byte(c.V)
}

// Fill sets every pixel of the image to c.
func (p *Image) Fill(c RGB565) {
	hi, lo := byte(c.V>>8), byte(c.V)
	for i := 0; i+1 < len(p.Pix); i += 2 {
		p.Pix[i] = hi
		p.Pix[i+1] = lo
	}
}

// PixOffset returns the index of the first byte of the pixel at (x, y).
func (p *Image) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*2
}

// Size reports the image dimensions for tinygo display consumers.
func (p *Image) Size() (x, y int16) {
	return int16(p.Rect.Dx()), int16(p.Rect.Dy())
}

// SetPixel sets the pixel at (x, y) relative to the image origin.
func (p *Image) SetPixel(x, y int16, c color.RGBA) {
	p.SetRGB565(p.Rect.Min.X+int(x), p.Rect.Min.Y+int(y), FromRGB(c.R, c.G, c.B))
}

// Display is a no-op: the image is flushed to the panel by the caller.
func (p *Image) Display() error {
	return nil
}
