package sh8601

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/flavioheleno/sh8601/image565"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Bus framing used by both controllers.
const (
	cmdBits    = 32
	paramBits  = 8
	queueDepth = 10
	bitsPerPix = 16
)

// Opts is the configuration for the panel.
type Opts struct {
	// Display dimensions in pixels
	W int // Width (default: 466, must be ≤480)
	H int // Height (default: 466, must be ≤480)

	// Pin assignment (default: DefaultPins)
	Pins Pins

	// Pixel clock (default: 40MHz)
	Clock physic.Frequency

	// Rows per band used by Draw (default: 20, clamped to H)
	DrawRows int

	// Maximum wait for a pixel transfer, 0 waits forever
	FlushTimeout time.Duration

	// Reset the controller with the 0x01 command instead of pulsing RST
	SoftReset bool

	// Logger (default: logrus standard logger)
	Logger logrus.FieldLogger
}

func (o *Opts) normalize() (Opts, error) {
	var n Opts
	if o != nil {
		n = *o
	}
	if n.W == 0 {
		n.W = 466
	}
	if n.H == 0 {
		n.H = 466
	}
	if n.W < 0 || n.W > 480 {
		return n, errors.New("sh8601: width must be between 1 and 480")
	}
	if n.H < 0 || n.H > 480 {
		return n, errors.New("sh8601: height must be between 1 and 480")
	}
	if n.Pins == (Pins{}) {
		n.Pins = DefaultPins
	}
	if err := n.Pins.validate(); err != nil {
		return n, err
	}
	if n.Clock == 0 {
		n.Clock = 40 * physic.MegaHertz
	}
	if n.DrawRows < 0 {
		return n, fmt.Errorf("%w: %d draw rows", ErrNoMem, n.DrawRows)
	}
	if n.DrawRows == 0 {
		n.DrawRows = 20
	}
	if n.DrawRows > n.H {
		n.DrawRows = n.H
	}
	if n.Logger == nil {
		n.Logger = logrus.StandardLogger()
	}
	return n, nil
}

// Dev is the device handle for the panel.
type Dev struct {
	// Communication
	port  Port
	bus   Bus
	panel *panel
	flush *flushSync

	// Identity
	id   byte
	ctrl Controller

	// Display geometry
	rect     image.Rectangle
	drawRows int

	// Band buffers used by Draw, one rendering while the other is on the bus
	bufs [2][]byte

	log    logrus.FieldLogger
	halted bool
}

var _ display.Drawer = (*Dev)(nil)

// New probes the panel identity, powers it up and brings up the bus and the
// controller with the matching init sequence.
//
// opts can be nil to use defaults (466x466 panel on DefaultPins).
//
// Every failure wraps one of the bring-up errors (ErrGPIO, ErrBusInit,
// ErrPanelIOCreate, ErrPanelCreate, ErrPanelReset, ErrPanelInit,
// ErrDisplayOn) together with its cause. Nothing is retried.
func New(port Port, bus Bus, opts *Opts) (*Dev, error) {
	if port == nil || bus == nil {
		return nil, errors.New("sh8601: port and bus are required")
	}
	o, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	d := &Dev{
		port:     port,
		bus:      bus,
		flush:    newFlushSync(o.FlushTimeout),
		rect:     image.Rect(0, 0, o.W, o.H),
		drawRows: o.DrawRows,
		log:      o.Logger,
	}
	band := o.W * o.DrawRows * bitsPerPix / 8
	d.bufs = [2][]byte{make([]byte, band), make([]byte, band)}

	id, err := ProbeID(port, o.Pins)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGPIO, err)
	}
	d.id = id
	d.ctrl = Classify(id)
	seq := SelectSequence(d.ctrl)
	d.log.WithFields(logrus.Fields{
		"id":         fmt.Sprintf("0x%02X", id),
		"controller": d.ctrl.String(),
	}).Info("panel identified")
	d.log.WithField("commands", len(seq)).Infof("using %s init sequence", d.ctrl)

	if err := PowerOn(port, o.Pins.PWREN); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGPIO, err)
	}

	if err := d.bringUp(&o, seq); err != nil {
		return nil, err
	}

	d.log.WithFields(logrus.Fields{
		"width":  o.W,
		"height": o.H,
		"clock":  o.Clock.String(),
	}).Info("panel ready")
	return d, nil
}

// bringUp configures the bus, binds the panel IO to the flush signal and runs
// reset, init and display-on in that order.
func (d *Dev) bringUp(o *Opts, seq InitSequence) error {
	pins := o.Pins
	err := d.bus.Init(BusConfig{
		SCLK:        pins.SCLK,
		D0:          pins.D0,
		D1:          pins.D1,
		D2:          pins.D2,
		D3:          pins.D3,
		MaxTransfer: o.W * o.H * bitsPerPix / 8,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBusInit, err)
	}

	io, err := d.bus.NewPanelIO(IOConfig{
		CS:         pins.CS,
		Clock:      o.Clock,
		Mode:       spi.Mode0,
		CmdBits:    cmdBits,
		ParamBits:  paramBits,
		QueueDepth: queueDepth,
		Quad:       true,
	}, d.flush.complete)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPanelIOCreate, err)
	}

	p, err := newPanel(io, d.port, panelConfig{
		rst:       pins.RST,
		softReset: o.SoftReset,
		bpp:       bitsPerPix,
		seq:       seq,
		quad:      true,
	}, d.log)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPanelCreate, err)
	}

	if err := p.reset(); err != nil {
		return fmt.Errorf("%w: %w", ErrPanelReset, err)
	}
	if err := p.init(); err != nil {
		return fmt.Errorf("%w: %w", ErrPanelInit, err)
	}
	if err := p.dispOn(true); err != nil {
		return fmt.Errorf("%w: %w", ErrDisplayOn, err)
	}
	p.setGap(d.ctrl.Gap())

	d.panel = p
	return nil
}

// submit starts a transfer of pix into [x1,x2)x[y1,y2). It reports false
// when the region is empty and nothing was sent.
func (d *Dev) submit(x1, y1, x2, y2 int, pix []byte) (bool, error) {
	if d.halted {
		return false, ErrHalted
	}
	if x1 == x2 || y1 == y2 {
		return false, nil
	}
	if x1 < 0 || y1 < 0 || x1 > x2 || y1 > y2 || x2 > d.rect.Max.X || y2 > d.rect.Max.Y {
		return false, fmt.Errorf("%w: (%d,%d)-(%d,%d) on %v", ErrInvalidRegion, x1, y1, x2, y2, d.rect)
	}
	if n := (x2 - x1) * (y2 - y1) * bitsPerPix / 8; len(pix) != n {
		return false, fmt.Errorf("%w: got %d bytes, want %d", ErrBufferSize, len(pix), n)
	}
	if !d.flush.begin() {
		return false, ErrFlushPending
	}
	if err := d.panel.drawBitmap(x1, y1, x2, y2, pix); err != nil {
		d.flush.abort()
		return false, err
	}
	return true, nil
}

// DrawBitmap writes RGB565 big-endian pixels into the half-open region
// [x1,x2)x[y1,y2) and returns once the transfer has completed.
//
// An empty region is a no-op. A transfer already in flight is not waited
// for; the call fails with ErrFlushPending.
func (d *Dev) DrawBitmap(x1, y1, x2, y2 int, pix []byte) error {
	sent, err := d.submit(x1, y1, x2, y2, pix)
	if err != nil || !sent {
		return err
	}
	return d.flush.wait()
}

// DrawBitmapAsync starts the same transfer as DrawBitmap and returns without
// waiting. pix must stay untouched until WaitFlushDone returns.
func (d *Dev) DrawBitmapAsync(x1, y1, x2, y2 int, pix []byte) error {
	_, err := d.submit(x1, y1, x2, y2, pix)
	return err
}

// WaitFlushDone blocks until the outstanding transfer completes and returns
// the error the bus reported for it. It returns immediately when nothing is
// outstanding.
//
// With Opts.FlushTimeout set it fails with ErrTransferTimeout; the transfer
// then stays outstanding and the next call waits for it again.
func (d *Dev) WaitFlushDone() error {
	return d.flush.wait()
}

// FlushState reports whether a transfer is outstanding.
func (d *Dev) FlushState() FlushState {
	return d.flush.current()
}

// ColorModel returns the color model of the display.
func (d *Dev) ColorModel() color.Model {
	return image565.RGB565Model
}

// Bounds returns the image bounds of the display.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Draw renders src onto the dst region of the display.
//
// The region is clipped to the display, converted to RGB565 in bands of
// Opts.DrawRows rows and streamed band by band; the next band is rendered
// while the previous one is on the bus. Draw returns once the last band has
// been transferred.
func (d *Dev) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	if d.halted {
		return ErrHalted
	}

	r := dst.Intersect(d.rect)
	if r.Empty() {
		return nil
	}
	sp = sp.Add(r.Min.Sub(dst.Min))

	// The band buffers may still be on the bus after a timed out Draw.
	if err := d.WaitFlushDone(); err != nil {
		return err
	}

	w := r.Dx()
	cur := 0
	for y := r.Min.Y; y < r.Max.Y; y += d.drawRows {
		y2 := min(y+d.drawRows, r.Max.Y)
		band := &image565.Image{
			Pix:    d.bufs[cur][:w*(y2-y)*bitsPerPix/8],
			Stride: w * bitsPerPix / 8,
			Rect:   image.Rect(r.Min.X, y, r.Max.X, y2),
		}
		render(band, src, sp.Add(image.Pt(0, y-r.Min.Y)))

		if err := d.WaitFlushDone(); err != nil {
			return err
		}
		if err := d.DrawBitmapAsync(r.Min.X, y, r.Max.X, y2, band.Pix); err != nil {
			return err
		}
		cur ^= 1
	}
	return d.WaitFlushDone()
}

// render fills band from src at sp, copying rows directly when src already
// holds wire-order pixels.
func render(band *image565.Image, src image.Image, sp image.Point) {
	if s, ok := src.(*image565.Image); ok {
		sr := image.Rectangle{Min: sp, Max: sp.Add(band.Rect.Size())}
		if sr.In(s.Rect) {
			n := band.Rect.Dx() * bitsPerPix / 8
			for y := 0; y < band.Rect.Dy(); y++ {
				so := s.PixOffset(sp.X, sp.Y+y)
				copy(band.Pix[y*band.Stride:y*band.Stride+n], s.Pix[so:so+n])
			}
			return
		}
	}
	draw.Draw(band, band.Rect, src, sp, draw.Src)
}

// Write writes a full frame of raw RGB565 big-endian pixels.
// The data must be exactly W * H * 2 bytes.
func (d *Dev) Write(pixels []byte) (int, error) {
	if d.halted {
		return 0, ErrHalted
	}
	if n := d.rect.Dx() * d.rect.Dy() * bitsPerPix / 8; len(pixels) != n {
		return 0, fmt.Errorf("%w: got %d bytes, want %d", ErrBufferSize, len(pixels), n)
	}
	if err := d.DrawBitmap(0, 0, d.rect.Dx(), d.rect.Dy(), pixels); err != nil {
		return 0, err
	}
	return len(pixels), nil
}

// SetBrightness sets the panel brightness (0-255).
func (d *Dev) SetBrightness(b byte) error {
	if d.halted {
		return ErrHalted
	}
	return d.panel.brightness(b)
}

// Halt waits for the outstanding transfer, turns the display off and puts
// the controller to sleep.
// After Halt succeeds, the display will not respond to further commands
// until a new Dev is created. A failed Halt can be retried.
func (d *Dev) Halt() error {
	if d.halted {
		return nil
	}
	if err := d.WaitFlushDone(); err != nil {
		return err
	}
	if err := d.panel.dispOn(false); err != nil {
		return err
	}
	if err := d.panel.sleep(); err != nil {
		return err
	}
	d.halted = true
	return nil
}

// Controller returns the controller selected by the identity probe.
func (d *Dev) Controller() Controller {
	return d.ctrl
}

// ID returns the raw RDID1 byte read by the identity probe.
func (d *Dev) ID() byte {
	return d.id
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("sh8601.Dev{%s %dx%d}", d.ctrl, d.rect.Dx(), d.rect.Dy())
}
