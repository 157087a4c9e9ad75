// Package qspi implements sh8601.Bus on top of a periph.io SPI port.
//
// Every transfer starts with a 4-byte header: the write opcode, a zero byte,
// the controller command and another zero byte. Parameters follow on a
// single lane (opcode 0x02). Pixel data follows opcode 0x32 and is expected
// on four lanes; ports limited to one lane use Opts.SingleLane, which sends
// pixels with opcode 0x02 instead.
package qspi

import (
	"errors"
	"fmt"
	"sync"

	"github.com/flavioheleno/sh8601"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/spi"
)

// Write opcodes of the SH8601 serial interface.
const (
	opWrite     = 0x02 // single lane
	opWriteQuad = 0x32 // data phase on four lanes
)

const defaultChunk = 4096

// Opts is the configuration for the bus.
type Opts struct {
	// Send pixels with the single lane opcode
	SingleLane bool

	// Largest SPI transfer, 0 uses the port limit or 4096 bytes
	Chunk int

	// Logger (default: logrus standard logger)
	Logger logrus.FieldLogger
}

// Bus is an sh8601.Bus backed by a periph.io SPI port.
type Bus struct {
	port   spi.Port
	opts   Opts
	cfg    sh8601.BusConfig
	inited bool
}

var _ sh8601.Bus = (*Bus)(nil)

// New returns a bus on p. opts can be nil to use defaults.
func New(p spi.Port, opts *Opts) *Bus {
	b := &Bus{port: p}
	if opts != nil {
		b.opts = *opts
	}
	if b.opts.Logger == nil {
		b.opts.Logger = logrus.StandardLogger()
	}
	return b
}

// Init implements sh8601.Bus. The SPI driver owns the pins, so Init only
// checks the configuration.
func (b *Bus) Init(cfg sh8601.BusConfig) error {
	if b.port == nil {
		return errors.New("qspi: nil SPI port")
	}
	if cfg.MaxTransfer <= 0 {
		return fmt.Errorf("qspi: invalid max transfer %d", cfg.MaxTransfer)
	}
	seen := map[sh8601.Pin]bool{}
	for _, p := range []sh8601.Pin{cfg.SCLK, cfg.D0, cfg.D1, cfg.D2, cfg.D3} {
		if p < 0 || seen[p] {
			return fmt.Errorf("qspi: invalid bus pin %s", p)
		}
		seen[p] = true
	}
	b.cfg = cfg
	b.inited = true
	b.opts.Logger.WithFields(logrus.Fields{
		"port":         b.port.String(),
		"max_transfer": cfg.MaxTransfer,
	}).Debug("qspi bus initialized")
	return nil
}

// NewPanelIO implements sh8601.Bus. Only 32-bit commands with 8-bit
// parameters are supported.
func (b *Bus) NewPanelIO(cfg sh8601.IOConfig, done func(err error)) (sh8601.PanelIO, error) {
	if !b.inited {
		return nil, errors.New("qspi: bus not initialized")
	}
	if done == nil {
		return nil, errors.New("qspi: nil completion callback")
	}
	if cfg.CmdBits != 32 || cfg.ParamBits != 8 {
		return nil, fmt.Errorf("qspi: unsupported framing %d/%d bits", cfg.CmdBits, cfg.ParamBits)
	}

	c, err := b.port.Connect(cfg.Clock, cfg.Mode, 8)
	if err != nil {
		return nil, fmt.Errorf("qspi: connect: %w", err)
	}

	chunk := b.opts.Chunk
	if chunk <= 0 {
		chunk = defaultChunk
		if l, ok := c.(conn.Limits); ok && l.MaxTxSize() > 0 {
			chunk = l.MaxTxSize()
		}
	}

	pixOp := byte(opWriteQuad)
	if b.opts.SingleLane || !cfg.Quad {
		pixOp = opWrite
	}

	b.opts.Logger.WithFields(logrus.Fields{
		"clock": cfg.Clock.String(),
		"chunk": chunk,
		"quad":  pixOp == opWriteQuad,
	}).Debug("qspi panel io ready")

	return &IO{c: c, pixOp: pixOp, chunk: chunk, done: done, log: b.opts.Logger}, nil
}

// IO is the sh8601.PanelIO returned by Bus.NewPanelIO.
//
// At most one pixel transfer runs at a time; a TxParam or TxColor issued
// while one runs blocks until it finishes.
type IO struct {
	c     spi.Conn
	pixOp byte
	chunk int
	done  func(err error)
	log   logrus.FieldLogger

	// busy is held from TxColor until its transfer finished.
	busy sync.Mutex
}

var _ sh8601.PanelIO = (*IO)(nil)

func header(op, cmd byte) []byte {
	return []byte{op, 0x00, cmd, 0x00}
}

// TxParam implements sh8601.PanelIO.
func (io *IO) TxParam(cmd byte, data []byte) error {
	io.busy.Lock()
	defer io.busy.Unlock()
	w := append(header(opWrite, cmd), data...)
	if err := io.c.Tx(w, nil); err != nil {
		return fmt.Errorf("qspi: command 0x%02X: %w", cmd, err)
	}
	return nil
}

// TxColor implements sh8601.PanelIO. Chip select stays asserted from the
// header to the last pixel. The completion callback receives the transfer
// error, nil on success.
func (io *IO) TxColor(cmd byte, pix []byte) error {
	io.busy.Lock()
	pkts := io.packets(cmd, pix)
	go func() {
		err := io.c.TxPackets(pkts)
		if err != nil {
			io.log.WithError(err).Warn("qspi pixel transfer failed")
			err = fmt.Errorf("qspi: pixel transfer: %w", err)
		}
		io.busy.Unlock()
		io.done(err)
	}()
	return nil
}

func (io *IO) packets(cmd byte, pix []byte) []spi.Packet {
	pkts := make([]spi.Packet, 0, 1+(len(pix)+io.chunk-1)/io.chunk)
	pkts = append(pkts, spi.Packet{W: header(io.pixOp, cmd), KeepCS: true})
	for len(pix) > 0 {
		n := min(len(pix), io.chunk)
		pkts = append(pkts, spi.Packet{W: pix[:n], KeepCS: true})
		pix = pix[n:]
	}
	pkts[len(pkts)-1].KeepCS = false
	return pkts
}
