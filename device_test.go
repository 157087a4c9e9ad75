package sh8601_test

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/flavioheleno/sh8601"
	"github.com/flavioheleno/sh8601/image565"
	"github.com/flavioheleno/sh8601/paneltest"
	"github.com/flavioheleno/sh8601/qspi"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

func quiet() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func newDev(t *testing.T, id byte, opts *sh8601.Opts) (*sh8601.Dev, *paneltest.Port, *paneltest.Bus) {
	t.Helper()
	port, bus := paneltest.NewBoard(id)
	if opts == nil {
		opts = &sh8601.Opts{}
	}
	if opts.Logger == nil {
		opts.Logger = quiet()
	}
	dev, err := sh8601.New(port, bus, opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return dev, port, bus
}

func TestNewSelectsController(t *testing.T) {
	tests := []struct {
		name   string
		id     byte
		absent bool
		ctrl   sh8601.Controller
		cmds   []byte
		caset  []byte
	}{
		{
			name:  "SH8601",
			id:    0x86,
			ctrl:  sh8601.SH8601,
			cmds:  []byte{0x36, 0x3A, 0x11, 0x44, 0x35, 0x53, 0x51, 0x29, 0x51, 0x29},
			caset: []byte{0x00, 0x00, 0x00, 0x09},
		},
		{
			name:  "CO5300",
			id:    0x00,
			ctrl:  sh8601.CO5300,
			cmds:  []byte{0x36, 0x3A, 0x11, 0xC4, 0x53, 0x63, 0x51, 0x29, 0x51, 0x29},
			caset: []byte{0x00, 0x06, 0x00, 0x0F},
		},
		{
			name:   "no panel",
			id:     0x86,
			absent: true,
			ctrl:   sh8601.CO5300,
			cmds:   []byte{0x36, 0x3A, 0x11, 0xC4, 0x53, 0x63, 0x51, 0x29, 0x51, 0x29},
			caset:  []byte{0x00, 0x06, 0x00, 0x0F},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port, bus := paneltest.NewBoard(tt.id)
			port.Absent = tt.absent
			dev, err := sh8601.New(port, bus, &sh8601.Opts{Logger: quiet()})
			if err != nil {
				t.Fatal(err)
			}

			if got := dev.Controller(); got != tt.ctrl {
				t.Errorf("Controller() = %v, want %v", got, tt.ctrl)
			}
			if tt.absent && dev.ID() != 0xFF {
				t.Errorf("ID() = 0x%02X, want 0xFF", dev.ID())
			}
			if got, want := port.ProbeCommand(), []byte{0x03, 0x00, 0xDA, 0x00}; !bytes.Equal(got, want) {
				t.Errorf("probe sent % X, want % X", got, want)
			}
			for _, w := range port.Writes(port.Pins.CS) {
				if w.Level == gpio.High {
					t.Errorf("CS raised at %v during the identity read", w.At)
				}
			}
			if port.Level(port.Pins.CS) != gpio.Low {
				t.Error("CS not held low after the identity read")
			}
			if got := bus.Commands(); !bytes.Equal(got, tt.cmds) {
				t.Errorf("commands = % X, want % X", got, tt.cmds)
			}

			bus.ClearOps()
			if err := dev.DrawBitmap(0, 0, 10, 1, make([]byte, 20)); err != nil {
				t.Fatal(err)
			}
			ops := bus.Ops()
			if len(ops) != 3 {
				t.Fatalf("got %d transfers, want 3", len(ops))
			}
			if !bytes.Equal(ops[0].Data, tt.caset) {
				t.Errorf("CASET = % X, want % X", ops[0].Data, tt.caset)
			}
		})
	}
}

func TestNewBusConfig(t *testing.T) {
	_, _, bus := newDev(t, 0x86, &sh8601.Opts{Clock: 20 * physic.MegaHertz})
	busCfg, ioCfg := bus.Config()

	wantBus := sh8601.BusConfig{SCLK: 10, D0: 11, D1: 12, D2: 13, D3: 14, MaxTransfer: 466 * 466 * 2}
	if busCfg != wantBus {
		t.Errorf("BusConfig = %+v, want %+v", busCfg, wantBus)
	}
	wantIO := sh8601.IOConfig{
		CS:         9,
		Clock:      20 * physic.MegaHertz,
		Mode:       spi.Mode0,
		CmdBits:    32,
		ParamBits:  8,
		QueueDepth: 10,
		Quad:       true,
	}
	if ioCfg != wantIO {
		t.Errorf("IOConfig = %+v, want %+v", ioCfg, wantIO)
	}
}

func TestReset(t *testing.T) {
	port := paneltest.NewPort(nil, 0x86)
	if err := sh8601.Reset(port, 21); err != nil {
		t.Fatal(err)
	}

	writes := port.Writes(21)
	want := []gpio.Level{gpio.High, gpio.Low, gpio.High}
	if len(writes) != len(want) {
		t.Fatalf("RST written %d times, want %d", len(writes), len(want))
	}
	for i, w := range writes {
		if w.Level != want[i] {
			t.Errorf("write %d = %v, want %v", i, w.Level, want[i])
		}
		if w.At != time.Duration(i)*120*time.Millisecond {
			t.Errorf("write %d at %v, want %v", i, w.At, time.Duration(i)*120*time.Millisecond)
		}
	}
	if got := port.Clock.Now(); got != 360*time.Millisecond {
		t.Errorf("reset took %v, want 360ms", got)
	}
}

func TestNewPowerSequence(t *testing.T) {
	_, port, bus := newDev(t, 0x86, nil)

	rst := port.Writes(21)
	if len(rst) != 5 {
		t.Fatalf("RST written %d times, want 3 for the probe and 2 for the panel reset", len(rst))
	}
	pwr := port.Writes(42)
	if len(pwr) != 1 || pwr[0].Level != gpio.High {
		t.Fatalf("PWREN writes = %v, want one High", pwr)
	}
	if pwr[0].At <= rst[2].At {
		t.Errorf("power enabled at %v, before the probe finished", pwr[0].At)
	}
	if rst[3].At < pwr[0].At+10*time.Millisecond {
		t.Errorf("panel reset at %v, less than 10ms after power on at %v", rst[3].At, pwr[0].At)
	}
	ops := bus.Ops()
	if ops[0].At < rst[4].At+150*time.Millisecond {
		t.Errorf("first command at %v, before the panel left reset", ops[0].At)
	}
}

func TestNewInitDelays(t *testing.T) {
	for _, id := range []byte{0x86, 0x42} {
		ctrl := sh8601.Classify(id)
		t.Run(ctrl.String(), func(t *testing.T) {
			_, _, bus := newDev(t, id, nil)
			ops := bus.Ops()
			seq := sh8601.SelectSequence(ctrl)
			// ops[0:2] are MADCTL and COLMOD.
			for i, c := range seq {
				op := ops[2+i]
				if op.Cmd != c.Cmd || !bytes.Equal(op.Data, c.Data) {
					t.Fatalf("command %d = 0x%02X % X, want 0x%02X % X", i, op.Cmd, op.Data, c.Cmd, c.Data)
				}
				next := ops[3+i]
				if gap := next.At - op.At; gap < c.Delay {
					t.Errorf("command %d (0x%02X) followed after %v, want at least %v", i, c.Cmd, gap, c.Delay)
				}
			}
		})
	}
}

func TestDrawBitmapBlocksUntilComplete(t *testing.T) {
	dev, _, bus := newDev(t, 0x86, nil)
	bus.Hold = true

	done := make(chan error, 1)
	go func() {
		done <- dev.DrawBitmap(0, 0, 2, 2, make([]byte, 8))
	}()

	deadline := time.Now().Add(time.Second)
	for bus.Held() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("transfer never started")
		}
		time.Sleep(time.Millisecond)
	}

	select {
	case err := <-done:
		t.Fatalf("DrawBitmap returned before completion: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	bus.Complete()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("DrawBitmap did not return after completion")
	}
	if got := dev.FlushState(); got != sh8601.FlushIdle {
		t.Errorf("FlushState() = %v, want Idle", got)
	}
}

func TestWaitFlushDoneIdle(t *testing.T) {
	dev, _, _ := newDev(t, 0x86, nil)
	for i := 0; i < 2; i++ {
		if err := dev.WaitFlushDone(); err != nil {
			t.Fatalf("WaitFlushDone() #%d = %v", i, err)
		}
	}
}

func TestDrawBitmapAsync(t *testing.T) {
	dev, _, bus := newDev(t, 0x86, nil)
	bus.Hold = true
	bus.ClearOps()

	if err := dev.DrawBitmapAsync(0, 0, 1, 1, []byte{0xF8, 0x00}); err != nil {
		t.Fatal(err)
	}
	if got := dev.FlushState(); got != sh8601.FlushPending {
		t.Fatalf("FlushState() = %v, want Pending", got)
	}

	n := len(bus.Ops())
	if err := dev.DrawBitmapAsync(1, 0, 2, 1, []byte{0x00, 0x1F}); !errors.Is(err, sh8601.ErrFlushPending) {
		t.Fatalf("second DrawBitmapAsync() = %v, want ErrFlushPending", err)
	}
	if len(bus.Ops()) != n {
		t.Error("rejected submission reached the bus")
	}

	bus.Complete()
	if err := dev.WaitFlushDone(); err != nil {
		t.Fatal(err)
	}
	if err := dev.WaitFlushDone(); err != nil {
		t.Fatal(err)
	}
	if got := dev.FlushState(); got != sh8601.FlushIdle {
		t.Errorf("FlushState() = %v, want Idle", got)
	}
	if c := bus.Image().RGB565At(0, 0); c.V != 0xF800 {
		t.Errorf("GRAM(0,0) = 0x%04X, want 0xF800", c.V)
	}
}

func TestDrawBitmapZeroArea(t *testing.T) {
	dev, _, bus := newDev(t, 0x86, nil)
	bus.ClearOps()

	tests := []struct {
		name           string
		x1, y1, x2, y2 int
	}{
		{"zero width", 5, 5, 5, 10},
		{"zero height", 5, 5, 10, 5},
		{"point", 0, 0, 0, 0},
	}
	for _, tt := range tests {
		if err := dev.DrawBitmap(tt.x1, tt.y1, tt.x2, tt.y2, nil); err != nil {
			t.Errorf("%s: DrawBitmap() = %v", tt.name, err)
		}
		if err := dev.DrawBitmapAsync(tt.x1, tt.y1, tt.x2, tt.y2, nil); err != nil {
			t.Errorf("%s: DrawBitmapAsync() = %v", tt.name, err)
		}
	}
	if n := len(bus.Ops()); n != 0 {
		t.Errorf("%d transfers for empty regions", n)
	}
	if got := dev.FlushState(); got != sh8601.FlushIdle {
		t.Errorf("FlushState() = %v, want Idle", got)
	}
}

func TestDrawBitmapTimeout(t *testing.T) {
	dev, _, bus := newDev(t, 0x86, &sh8601.Opts{FlushTimeout: 20 * time.Millisecond})
	bus.Hold = true

	if err := dev.DrawBitmap(0, 0, 1, 1, []byte{0, 0}); !errors.Is(err, sh8601.ErrTransferTimeout) {
		t.Fatalf("DrawBitmap() = %v, want ErrTransferTimeout", err)
	}
	if got := dev.FlushState(); got != sh8601.FlushPending {
		t.Fatalf("FlushState() = %v, want Pending", got)
	}

	bus.Complete()
	if err := dev.WaitFlushDone(); err != nil {
		t.Fatal(err)
	}
	if err := dev.DrawBitmap(0, 0, 1, 1, []byte{0, 0}); !errors.Is(err, sh8601.ErrTransferTimeout) {
		t.Fatalf("DrawBitmap() = %v, want ErrTransferTimeout", err)
	}
}

func TestTransferError(t *testing.T) {
	dev, _, bus := newDev(t, 0x86, nil)
	bus.FlushErr = errors.New("dma fault")

	if err := dev.DrawBitmap(0, 0, 2, 2, make([]byte, 8)); !errors.Is(err, bus.FlushErr) {
		t.Errorf("DrawBitmap() = %v, want %v", err, bus.FlushErr)
	}
	if got := dev.FlushState(); got != sh8601.FlushIdle {
		t.Errorf("FlushState() = %v, want Idle", got)
	}

	if err := dev.DrawBitmapAsync(0, 0, 2, 2, make([]byte, 8)); err != nil {
		t.Fatal(err)
	}
	if err := dev.WaitFlushDone(); !errors.Is(err, bus.FlushErr) {
		t.Errorf("WaitFlushDone() = %v, want %v", err, bus.FlushErr)
	}

	img := image565.NewImage(dev.Bounds())
	if err := dev.Draw(dev.Bounds(), img, image.Point{}); !errors.Is(err, bus.FlushErr) {
		t.Errorf("Draw() = %v, want %v", err, bus.FlushErr)
	}
	if _, err := dev.Write(img.Pix); !errors.Is(err, bus.FlushErr) {
		t.Errorf("Write() = %v, want %v", err, bus.FlushErr)
	}

	bus.FlushErr = nil
	if err := dev.DrawBitmap(0, 0, 2, 2, make([]byte, 8)); err != nil {
		t.Errorf("DrawBitmap() after recovery = %v", err)
	}
}

// spiPort is a periph.io SPI port whose pixel transfers fail with err.
type spiPort struct {
	err error
}

func (p *spiPort) String() string                      { return "spi" }
func (p *spiPort) LimitSpeed(f physic.Frequency) error { return nil }

func (p *spiPort) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	return &spiConn{err: p.err}, nil
}

type spiConn struct {
	err error
}

func (c *spiConn) String() string                 { return "spi" }
func (c *spiConn) Duplex() conn.Duplex            { return conn.Half }
func (c *spiConn) Tx(w, r []byte) error           { return nil }
func (c *spiConn) TxPackets(p []spi.Packet) error { return c.err }

func TestTransferErrorOverQSPI(t *testing.T) {
	port, _ := paneltest.NewBoard(0x86)
	p := &spiPort{err: errors.New("dma fault")}
	dev, err := sh8601.New(port, qspi.New(p, &qspi.Opts{Logger: quiet()}), &sh8601.Opts{Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}

	err = dev.DrawBitmap(0, 0, 4, 1, make([]byte, 8))
	if !errors.Is(err, p.err) {
		t.Fatalf("DrawBitmap() = %v, want %v", err, p.err)
	}
	if got := dev.FlushState(); got != sh8601.FlushIdle {
		t.Errorf("FlushState() = %v, want Idle", got)
	}
}

// failingBus makes the panel IO reject the n-th send of one command.
type failingBus struct {
	*paneltest.Bus
	cmd   byte
	n     int
	err   error
	nilIO bool
}

func (b *failingBus) NewPanelIO(cfg sh8601.IOConfig, done func(err error)) (sh8601.PanelIO, error) {
	if b.nilIO {
		return nil, nil
	}
	io, err := b.Bus.NewPanelIO(cfg, done)
	if err != nil {
		return nil, err
	}
	return &failingIO{PanelIO: io, bus: b}, nil
}

type failingIO struct {
	sh8601.PanelIO
	bus  *failingBus
	seen int
}

func (f *failingIO) TxParam(cmd byte, data []byte) error {
	if cmd == f.bus.cmd {
		f.seen++
		if f.seen == f.bus.n {
			return f.bus.err
		}
	}
	return f.PanelIO.TxParam(cmd, data)
}

func TestNewErrors(t *testing.T) {
	cause := errors.New("injected")
	tests := []struct {
		name  string
		setup func(p *paneltest.Port, b *paneltest.Bus, fb *failingBus, o *sh8601.Opts)
		want  error
		cause bool
	}{
		{"probe gpio", func(p *paneltest.Port, _ *paneltest.Bus, _ *failingBus, _ *sh8601.Opts) {
			p.Fail = map[sh8601.Pin]error{21: cause}
		}, sh8601.ErrGPIO, true},
		{"power gpio", func(p *paneltest.Port, _ *paneltest.Bus, _ *failingBus, _ *sh8601.Opts) {
			p.Fail = map[sh8601.Pin]error{42: cause}
		}, sh8601.ErrGPIO, true},
		{"bus init", func(_ *paneltest.Port, b *paneltest.Bus, _ *failingBus, _ *sh8601.Opts) {
			b.InitErr = cause
		}, sh8601.ErrBusInit, true},
		{"panel io", func(_ *paneltest.Port, b *paneltest.Bus, _ *failingBus, _ *sh8601.Opts) {
			b.IOErr = cause
		}, sh8601.ErrPanelIOCreate, true},
		{"panel create", func(_ *paneltest.Port, _ *paneltest.Bus, fb *failingBus, _ *sh8601.Opts) {
			fb.nilIO = true
		}, sh8601.ErrPanelCreate, false},
		{"panel reset", func(_ *paneltest.Port, b *paneltest.Bus, _ *failingBus, o *sh8601.Opts) {
			o.SoftReset = true
			b.CmdErr = map[byte]error{0x01: cause}
		}, sh8601.ErrPanelReset, true},
		{"panel init", func(_ *paneltest.Port, b *paneltest.Bus, _ *failingBus, _ *sh8601.Opts) {
			b.CmdErr = map[byte]error{0x11: cause}
		}, sh8601.ErrPanelInit, true},
		{"display on", func(_ *paneltest.Port, _ *paneltest.Bus, fb *failingBus, _ *sh8601.Opts) {
			// The init sequence sends 0x29 once; the second is display on.
			fb.cmd, fb.n, fb.err = 0x29, 2, cause
		}, sh8601.ErrDisplayOn, true},
		{"draw rows", func(_ *paneltest.Port, _ *paneltest.Bus, _ *failingBus, o *sh8601.Opts) {
			o.DrawRows = -20
		}, sh8601.ErrNoMem, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port, bus := paneltest.NewBoard(0x86)
			fb := &failingBus{Bus: bus}
			opts := &sh8601.Opts{Logger: quiet()}
			tt.setup(port, bus, fb, opts)

			dev, err := sh8601.New(port, fb, opts)
			if !errors.Is(err, tt.want) {
				t.Fatalf("New() error = %v, want %v", err, tt.want)
			}
			if tt.cause && !errors.Is(err, cause) {
				t.Errorf("New() error %v does not wrap the cause", err)
			}
			if dev != nil {
				t.Error("New() returned a device on failure")
			}
		})
	}
}

func TestNewNilArguments(t *testing.T) {
	port, bus := paneltest.NewBoard(0x86)
	if _, err := sh8601.New(nil, bus, nil); err == nil {
		t.Error("New(nil port) succeeded")
	}
	if _, err := sh8601.New(port, nil, nil); err == nil {
		t.Error("New(nil bus) succeeded")
	}
}

func TestDraw(t *testing.T) {
	dev, _, bus := newDev(t, 0x00, nil)
	bus.ClearOps()

	red := color.RGBA{R: 255, A: 255}
	if err := dev.Draw(dev.Bounds(), image.NewUniform(red), image.Point{}); err != nil {
		t.Fatal(err)
	}

	var bands int
	for _, op := range bus.Ops() {
		if op.Color {
			bands++
		}
	}
	// 466 rows in bands of 20.
	if bands != 24 {
		t.Errorf("sent %d bands, want 24", bands)
	}

	gram := bus.Image()
	tests := []struct {
		x, y int
		want uint16
	}{
		{6, 0, 0xF800},     // first visible column
		{471, 465, 0xF800}, // last visible pixel
		{5, 0, 0x0000},     // left of the glass
		{472, 0, 0x0000},   // right of the glass
	}
	for _, tt := range tests {
		if c := gram.RGB565At(tt.x, tt.y); c.V != tt.want {
			t.Errorf("GRAM(%d,%d) = 0x%04X, want 0x%04X", tt.x, tt.y, c.V, tt.want)
		}
	}
	if got := dev.FlushState(); got != sh8601.FlushIdle {
		t.Errorf("FlushState() = %v, want Idle", got)
	}
}

func TestDrawSubImage(t *testing.T) {
	dev, _, bus := newDev(t, 0x86, &sh8601.Opts{DrawRows: 4})

	src := image565.NewImage(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			src.SetRGB565(x, y, image565.RGB565{V: uint16(y<<8 | x)})
		}
	}

	tests := []struct {
		name string
		src  image.Image
	}{
		{"wire order source", src},
		{"generic source", wrapped{src}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := image.Rect(100, 200, 110, 210)
			if err := dev.Draw(dst, tt.src, image.Pt(8, 16)); err != nil {
				t.Fatal(err)
			}
			gram := bus.Image()
			for y := 0; y < 10; y++ {
				for x := 0; x < 10; x++ {
					want := src.RGB565At(8+x, 16+y)
					if got := gram.RGB565At(100+x, 200+y); got != want {
						t.Fatalf("GRAM(%d,%d) = 0x%04X, want 0x%04X", 100+x, 200+y, got.V, want.V)
					}
				}
			}
		})
	}
}

// wrapped hides the concrete image type from Draw.
type wrapped struct {
	image.Image
}

func TestDrawClipped(t *testing.T) {
	dev, _, bus := newDev(t, 0x86, nil)
	bus.ClearOps()

	if err := dev.Draw(image.Rect(500, 500, 600, 600), image.NewUniform(color.White), image.Point{}); err != nil {
		t.Fatal(err)
	}
	if n := len(bus.Ops()); n != 0 {
		t.Errorf("off-screen Draw sent %d transfers", n)
	}

	if err := dev.Draw(image.Rect(-10, 460, 10, 480), image.NewUniform(color.White), image.Point{}); err != nil {
		t.Fatal(err)
	}
	ops := bus.Ops()
	if len(ops) != 3 {
		t.Fatalf("got %d transfers, want 3", len(ops))
	}
	if want := []byte{0x00, 0x00, 0x00, 0x09}; !bytes.Equal(ops[0].Data, want) {
		t.Errorf("CASET = % X, want % X", ops[0].Data, want)
	}
	if want := []byte{0x01, 0xCC, 0x01, 0xD1}; !bytes.Equal(ops[1].Data, want) {
		t.Errorf("RASET = % X, want % X", ops[1].Data, want)
	}
}

func TestWrite(t *testing.T) {
	dev, _, bus := newDev(t, 0x86, &sh8601.Opts{W: 16, H: 8})

	if _, err := dev.Write(make([]byte, 10)); !errors.Is(err, sh8601.ErrBufferSize) {
		t.Errorf("Write(short) = %v, want ErrBufferSize", err)
	}

	frame := bytes.Repeat([]byte{0x07, 0xE0}, 16*8)
	n, err := dev.Write(frame)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(frame) {
		t.Errorf("Write() = %d, want %d", n, len(frame))
	}
	if c := bus.Image().RGB565At(15, 7); c.V != 0x07E0 {
		t.Errorf("GRAM(15,7) = 0x%04X, want 0x07E0", c.V)
	}
}

func TestSetBrightnessAndHalt(t *testing.T) {
	dev, _, bus := newDev(t, 0x86, nil)
	bus.ClearOps()

	if err := dev.SetBrightness(0x80); err != nil {
		t.Fatal(err)
	}
	if err := dev.Halt(); err != nil {
		t.Fatal(err)
	}

	ops := bus.Ops()
	want := []struct {
		cmd  byte
		data []byte
	}{
		{0x51, []byte{0x80}},
		{0x28, nil},
		{0x10, nil},
	}
	if len(ops) != len(want) {
		t.Fatalf("got %d transfers, want %d", len(ops), len(want))
	}
	for i, w := range want {
		if ops[i].Cmd != w.cmd || !bytes.Equal(ops[i].Data, w.data) {
			t.Errorf("transfer %d = 0x%02X % X, want 0x%02X % X", i, ops[i].Cmd, ops[i].Data, w.cmd, w.data)
		}
	}

	if err := dev.DrawBitmap(0, 0, 1, 1, []byte{0, 0}); !errors.Is(err, sh8601.ErrHalted) {
		t.Errorf("DrawBitmap() after Halt = %v, want ErrHalted", err)
	}
}

func TestHaltRetry(t *testing.T) {
	for _, cmd := range []byte{0x28, 0x10} {
		t.Run(fmt.Sprintf("0x%02X", cmd), func(t *testing.T) {
			dev, _, bus := newDev(t, 0x86, nil)
			cause := errors.New("nak")
			bus.CmdErr = map[byte]error{cmd: cause}

			if err := dev.Halt(); !errors.Is(err, cause) {
				t.Fatalf("Halt() = %v, want %v", err, cause)
			}
			if err := dev.SetBrightness(0x10); err != nil {
				t.Errorf("SetBrightness() after failed Halt = %v", err)
			}

			bus.CmdErr = nil
			bus.ClearOps()
			if err := dev.Halt(); err != nil {
				t.Fatalf("retried Halt() = %v", err)
			}
			if got, want := bus.Commands(), []byte{0x28, 0x10}; !bytes.Equal(got, want) {
				t.Errorf("retried Halt sent % X, want % X", got, want)
			}
			if err := dev.SetBrightness(0x10); !errors.Is(err, sh8601.ErrHalted) {
				t.Errorf("SetBrightness() after Halt = %v, want ErrHalted", err)
			}
		})
	}
}

func TestIndependentDevices(t *testing.T) {
	a, _, busA := newDev(t, 0x86, nil)
	b, _, _ := newDev(t, 0x01, nil)
	busA.Hold = true

	if err := a.DrawBitmapAsync(0, 0, 1, 1, []byte{0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := b.DrawBitmap(0, 0, 1, 1, []byte{0, 0}); err != nil {
		t.Fatalf("second device blocked by the first: %v", err)
	}
	if a.FlushState() != sh8601.FlushPending || b.FlushState() != sh8601.FlushIdle {
		t.Errorf("states = %v, %v", a.FlushState(), b.FlushState())
	}
	busA.Complete()
	if err := a.WaitFlushDone(); err != nil {
		t.Fatal(err)
	}
	if a.Controller() == b.Controller() {
		t.Error("both devices report the same controller")
	}
}

func TestNewLogs(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	newDev(t, 0x86, &sh8601.Opts{Logger: logger})

	var identified, ready bool
	var initCmds int
	for _, e := range hook.AllEntries() {
		switch e.Message {
		case "panel identified":
			identified = true
			if e.Data["controller"] != "SH8601" || e.Data["id"] != "0x86" {
				t.Errorf("identity fields = %v", e.Data)
			}
		case "panel ready":
			ready = true
			if e.Level != logrus.InfoLevel {
				t.Errorf("panel ready logged at %v", e.Level)
			}
		case "init command":
			initCmds++
		}
	}
	if !identified || !ready {
		t.Errorf("missing log entries: identified=%v ready=%v", identified, ready)
	}
	if initCmds != 7 {
		t.Errorf("logged %d init commands, want 7", initCmds)
	}
}
