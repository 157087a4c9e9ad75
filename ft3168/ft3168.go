// Package ft3168 reads the FT3168 capacitive touch controller fitted to the
// round AMOLED boards.
//
// The controller sits on I²C at 0x38. Only the first touch point is read.
package ft3168

import (
	"errors"
	"fmt"
	"image"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// DefaultAddr is the I²C address of the controller.
const DefaultAddr = 0x38

// Registers
const (
	regMode       = 0x00
	regTouchCount = 0x02
	regTouch1     = 0x03 // X high, X low, Y high, Y low
)

// initSettle lets the controller come up after power on.
const initSettle = 200 * time.Millisecond

// Opts is the configuration for the touch controller.
type Opts struct {
	Addr uint16 // I²C address (default: 0x38)

	// Panel size used to clamp coordinates (default: 466x466)
	W, H int
}

// Dev is a handle to the touch controller.
type Dev struct {
	d    i2c.Dev
	size image.Point
}

// New returns a handle on bus b. opts can be nil to use defaults. Call Init
// once after power on before reading touches.
func New(b i2c.Bus, opts *Opts) (*Dev, error) {
	if b == nil {
		return nil, errors.New("ft3168: nil bus")
	}
	o := Opts{Addr: DefaultAddr, W: 466, H: 466}
	if opts != nil {
		if opts.Addr != 0 {
			o.Addr = opts.Addr
		}
		if opts.W != 0 {
			o.W = opts.W
		}
		if opts.H != 0 {
			o.H = opts.H
		}
	}
	if o.W < 0 || o.H < 0 || o.W > 4096 || o.H > 4096 {
		return nil, fmt.Errorf("ft3168: invalid size %dx%d", o.W, o.H)
	}
	return &Dev{d: i2c.Dev{Bus: b, Addr: o.Addr}, size: image.Pt(o.W, o.H)}, nil
}

// Init waits for the controller to settle and switches it to normal
// operating mode.
func (d *Dev) Init() error {
	time.Sleep(initSettle)
	if err := d.d.Tx([]byte{regMode, 0x00}, nil); err != nil {
		return fmt.Errorf("ft3168: set mode: %w", err)
	}
	return nil
}

// Touch returns the first touch point. ok is false when nothing touches the
// panel. Coordinates are clamped to the panel size.
func (d *Dev) Touch() (p image.Point, ok bool, err error) {
	count := []byte{0}
	if err := d.d.Tx([]byte{regTouchCount}, count); err != nil {
		return image.Point{}, false, fmt.Errorf("ft3168: read touch count: %w", err)
	}
	if count[0] == 0 {
		return image.Point{}, false, nil
	}

	buf := make([]byte, 4)
	if err := d.d.Tx([]byte{regTouch1}, buf); err != nil {
		return image.Point{}, false, fmt.Errorf("ft3168: read touch point: %w", err)
	}
	x := int(buf[0]&0x0F)<<8 | int(buf[1])
	y := int(buf[2]&0x0F)<<8 | int(buf[3])
	return image.Pt(min(x, d.size.X-1), min(y, d.size.Y-1)), true, nil
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("ft3168.Dev{%s}", d.d.String())
}
