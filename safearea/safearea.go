// Package safearea describes the visible part of a round panel.
//
// The 466×466 AMOLED glass is a circle inscribed in the framebuffer. Pixels
// outside it are addressable but never light up.
package safearea

import (
	"image"
	"math"
)

// Circle is the visible disc of a round panel.
type Circle struct {
	Center image.Point
	R      int
}

// Inscribed returns the largest circle centered in r.
func Inscribed(r image.Rectangle) Circle {
	return Circle{
		Center: image.Pt(r.Min.X+r.Dx()/2, r.Min.Y+r.Dy()/2),
		R:      min(r.Dx(), r.Dy()) / 2,
	}
}

// Display is the glass of the 466×466 panel.
var Display = Inscribed(image.Rect(0, 0, 466, 466))

// Contains reports whether p is on the glass.
func (c Circle) Contains(p image.Point) bool {
	d := p.Sub(c.Center)
	return d.X*d.X+d.Y*d.Y <= c.R*c.R
}

// ContainsRect reports whether every pixel of r is on the glass. An empty
// rectangle is never contained.
func (c Circle) ContainsRect(r image.Rectangle) bool {
	if r.Empty() {
		return false
	}
	return c.Contains(r.Min) &&
		c.Contains(image.Pt(r.Max.X-1, r.Min.Y)) &&
		c.Contains(image.Pt(r.Min.X, r.Max.Y-1)) &&
		c.Contains(image.Pt(r.Max.X-1, r.Max.Y-1))
}

// Clamp moves r the shortest way towards the center until it fits on the
// glass and returns the moved rectangle. A rectangle that cannot fit is
// centered.
func (c Circle) Clamp(r image.Rectangle) image.Rectangle {
	if c.ContainsRect(r) {
		return r
	}

	hw := float64(r.Dx()) / 2
	hh := float64(r.Dy()) / 2
	maxDist := float64(c.R) - math.Hypot(hw, hh)
	if maxDist < 0 {
		return r.Sub(r.Min).Add(c.Center.Sub(image.Pt(r.Dx()/2, r.Dy()/2)))
	}

	dx := float64(r.Min.X) + hw - float64(c.Center.X)
	dy := float64(r.Min.Y) + hh - float64(c.Center.Y)
	dist := math.Hypot(dx, dy)
	if dist <= maxDist {
		return r
	}

	scale := maxDist / dist
	moved := r.Sub(r.Min).Add(image.Pt(
		int(math.Round(float64(c.Center.X)+dx*scale-hw)),
		int(math.Round(float64(c.Center.Y)+dy*scale-hh)),
	))
	// Rounding can leave a corner one pixel out; step inwards.
	step := image.Pt(sign(-dx), sign(-dy))
	for i := 0; i < c.R && !c.ContainsRect(moved); i++ {
		moved = moved.Add(step)
	}
	return moved
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
