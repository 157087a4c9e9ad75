package paneltest

import (
	"errors"
	"image"
	"sync"
	"time"

	"github.com/flavioheleno/sh8601"
	"github.com/flavioheleno/sh8601/image565"
)

// Commands the GRAM model understands.
const (
	cmdCASET = 0x2A
	cmdRASET = 0x2B
)

// Op is one recorded panel IO transfer.
type Op struct {
	At    time.Duration
	Cmd   byte
	Data  []byte
	Color bool // sent with TxColor
}

// Bus simulates the QSPI bus and the controller RAM behind it.
//
// Pixel transfers land in a GRAM of GRAMWidth×GRAMHeight pixels at the
// window set by the last CASET/RASET pair. Completions are delivered from a
// new goroutine, or held until Complete when Hold is set.
type Bus struct {
	Clock *Clock

	GRAMWidth, GRAMHeight int

	// Hold keeps completions until Complete is called.
	Hold bool

	// Failure injection
	InitErr  error          // returned by Init
	IOErr    error          // returned by NewPanelIO
	CmdErr   map[byte]error // returned by TxParam for the command
	ColorErr error          // returned by TxColor
	FlushErr error          // delivered with every completion

	mu        sync.Mutex
	cfg       sh8601.BusConfig
	ioCfg     sh8601.IOConfig
	initCalls int
	done      func(error)
	ops       []Op
	gram      *image565.Image
	colWin    [2]int
	rowWin    [2]int
	held      int
}

// NewBus returns a bus with a 480×480 GRAM.
func NewBus(clock *Clock) *Bus {
	if clock == nil {
		clock = &Clock{}
	}
	return &Bus{Clock: clock, GRAMWidth: 480, GRAMHeight: 480}
}

// NewBoard returns a port and bus sharing one clock, with a panel answering
// id to the identity probe.
func NewBoard(id byte) (*Port, *Bus) {
	c := &Clock{}
	return NewPort(c, id), NewBus(c)
}

// Init implements sh8601.Bus.
func (b *Bus) Init(cfg sh8601.BusConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.InitErr != nil {
		return b.InitErr
	}
	if cfg.MaxTransfer <= 0 {
		return errors.New("paneltest: max transfer must be positive")
	}
	b.cfg = cfg
	b.initCalls++
	b.gram = image565.NewImage(image.Rect(0, 0, b.GRAMWidth, b.GRAMHeight))
	return nil
}

// NewPanelIO implements sh8601.Bus.
func (b *Bus) NewPanelIO(cfg sh8601.IOConfig, done func(err error)) (sh8601.PanelIO, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.IOErr != nil {
		return nil, b.IOErr
	}
	if b.initCalls == 0 {
		return nil, errors.New("paneltest: bus not initialized")
	}
	if done == nil {
		return nil, errors.New("paneltest: nil completion callback")
	}
	b.ioCfg = cfg
	b.done = done
	return &IO{bus: b}, nil
}

// Config returns the configurations passed to Init and NewPanelIO.
func (b *Bus) Config() (sh8601.BusConfig, sh8601.IOConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg, b.ioCfg
}

// Ops returns every recorded transfer.
func (b *Bus) Ops() []Op {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Op(nil), b.ops...)
}

// Commands returns the command byte of every recorded transfer.
func (b *Bus) Commands() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.ops))
	for i, o := range b.ops {
		out[i] = o.Cmd
	}
	return out
}

// ClearOps forgets the recorded transfers.
func (b *Bus) ClearOps() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = nil
}

// Held returns the number of completions waiting for Complete.
func (b *Bus) Held() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.held
}

// Complete delivers one held completion on the calling goroutine. It reports
// false when none is held.
func (b *Bus) Complete() bool {
	b.mu.Lock()
	if b.held == 0 {
		b.mu.Unlock()
		return false
	}
	b.held--
	done, err := b.done, b.FlushErr
	b.mu.Unlock()
	done(err)
	return true
}

// Image returns a copy of the GRAM.
func (b *Bus) Image() *image565.Image {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gram == nil {
		return image565.NewImage(image.Rect(0, 0, b.GRAMWidth, b.GRAMHeight))
	}
	img := *b.gram
	img.Pix = append([]byte(nil), b.gram.Pix...)
	return &img
}

// IO is the panel IO returned by Bus.NewPanelIO.
type IO struct {
	bus *Bus
}

// TxParam implements sh8601.PanelIO.
func (io *IO) TxParam(cmd byte, data []byte) error {
	b := io.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.CmdErr[cmd]; err != nil {
		return err
	}
	b.ops = append(b.ops, Op{At: b.Clock.Now(), Cmd: cmd, Data: append([]byte(nil), data...)})
	if len(data) == 4 {
		start := int(data[0])<<8 | int(data[1])
		end := int(data[2])<<8 | int(data[3])
		switch cmd {
		case cmdCASET:
			b.colWin = [2]int{start, end}
		case cmdRASET:
			b.rowWin = [2]int{start, end}
		}
	}
	return nil
}

// TxColor implements sh8601.PanelIO. The pixels are stored before it
// returns; only the completion is deferred.
func (io *IO) TxColor(cmd byte, pix []byte) error {
	b := io.bus
	b.mu.Lock()
	if b.ColorErr != nil {
		b.mu.Unlock()
		return b.ColorErr
	}
	b.ops = append(b.ops, Op{At: b.Clock.Now(), Cmd: cmd, Data: append([]byte(nil), pix...), Color: true})
	b.writeGRAM(pix)
	done, err := b.done, b.FlushErr
	hold := b.Hold
	if hold {
		b.held++
	}
	b.mu.Unlock()

	if !hold {
		go done(err)
	}
	return nil
}

// writeGRAM fills the current window row by row. Pixels outside the GRAM are
// dropped.
func (b *Bus) writeGRAM(pix []byte) {
	x0, x1 := b.colWin[0], b.colWin[1]
	y0, y1 := b.rowWin[0], b.rowWin[1]
	if b.gram == nil || x1 < x0 || y1 < y0 {
		return
	}
	x, y := x0, y0
	for i := 0; i+1 < len(pix) && y <= y1; i += 2 {
		if image.Pt(x, y).In(b.gram.Rect) {
			o := b.gram.PixOffset(x, y)
			b.gram.Pix[o] = pix[i]
			b.gram.Pix[o+1] = pix[i+1]
		}
		x++
		if x > x1 {
			x = x0
			y++
		}
	}
}
