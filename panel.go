package sh8601

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
)

// Controller commands shared by the SH8601 and CO5300.
const (
	cmdSoftReset  = 0x01
	cmdSleepIn    = 0x10
	cmdDisplayOff = 0x28
	cmdDisplayOn  = 0x29
	cmdCASET      = 0x2A
	cmdRASET      = 0x2B
	cmdRAMWR      = 0x2C
	cmdMADCTL     = 0x36
	cmdCOLMOD     = 0x3A
	cmdBrightness = 0x51
)

const (
	madctlBGR = 0x08

	panelResetLow  = 10 * time.Millisecond
	panelResetHigh = 150 * time.Millisecond
	softResetDelay = 80 * time.Millisecond
	sleepInSettle  = 120 * time.Millisecond
)

type panelConfig struct {
	rst       Pin
	softReset bool // reset with 0x01 instead of pulsing rst
	bgr       bool
	bpp       int
	seq       InitSequence
	quad      bool
}

// panel issues the controller level operations over a PanelIO.
type panel struct {
	io     PanelIO
	port   Port
	log    logrus.FieldLogger
	rst    Pin
	soft   bool
	seq    InitSequence
	madctl byte
	colmod byte
	xGap   int
	yGap   int
}

func newPanel(io PanelIO, port Port, cfg panelConfig, log logrus.FieldLogger) (*panel, error) {
	if io == nil {
		return nil, errors.New("sh8601: nil panel IO")
	}
	if !cfg.quad {
		return nil, errors.New("sh8601: only the QSPI interface is supported")
	}
	if len(cfg.seq) == 0 {
		return nil, errors.New("sh8601: empty init sequence")
	}

	p := &panel{io: io, port: port, log: log, rst: cfg.rst, soft: cfg.softReset, seq: cfg.seq}
	switch cfg.bpp {
	case 16:
		p.colmod = 0x55
	case 18:
		p.colmod = 0x66
	case 24:
		p.colmod = 0x77
	default:
		return nil, fmt.Errorf("sh8601: unsupported pixel width %d", cfg.bpp)
	}
	if cfg.bgr {
		p.madctl |= madctlBGR
	}
	return p, nil
}

// reset pulses RST low, or issues a software reset when configured so.
func (p *panel) reset() error {
	if p.soft {
		if err := p.io.TxParam(cmdSoftReset, nil); err != nil {
			return err
		}
		p.port.Delay(softResetDelay)
		return nil
	}
	if err := p.port.Set(p.rst, gpio.Low); err != nil {
		return err
	}
	p.port.Delay(panelResetLow)
	if err := p.port.Set(p.rst, gpio.High); err != nil {
		return err
	}
	p.port.Delay(panelResetHigh)
	return nil
}

// init sets the memory layout and pixel format, then replays the vendor
// sequence. Every command's delay elapses before the next one is sent.
func (p *panel) init() error {
	if err := p.io.TxParam(cmdMADCTL, []byte{p.madctl}); err != nil {
		return err
	}
	if err := p.io.TxParam(cmdCOLMOD, []byte{p.colmod}); err != nil {
		return err
	}
	for i, c := range p.seq {
		if err := p.io.TxParam(c.Cmd, c.Data); err != nil {
			return fmt.Errorf("sh8601: init command %d (0x%02X): %w", i, c.Cmd, err)
		}
		p.log.WithFields(logrus.Fields{"cmd": fmt.Sprintf("0x%02X", c.Cmd), "delay": c.Delay}).Debug("init command")
		if c.Delay > 0 {
			p.port.Delay(c.Delay)
		}
	}
	return nil
}

func (p *panel) dispOn(on bool) error {
	if on {
		return p.io.TxParam(cmdDisplayOn, nil)
	}
	return p.io.TxParam(cmdDisplayOff, nil)
}

func (p *panel) setGap(x, y int) {
	p.xGap, p.yGap = x, y
}

func (p *panel) sleep() error {
	if err := p.io.TxParam(cmdSleepIn, nil); err != nil {
		return err
	}
	p.port.Delay(sleepInSettle)
	return nil
}

func (p *panel) brightness(b byte) error {
	return p.io.TxParam(cmdBrightness, []byte{b})
}

// drawBitmap sets the address window synchronously and starts the pixel
// transfer. x2 and y2 are exclusive.
func (p *panel) drawBitmap(x1, y1, x2, y2 int, pix []byte) error {
	x1 += p.xGap
	x2 += p.xGap
	y1 += p.yGap
	y2 += p.yGap

	if err := p.io.TxParam(cmdCASET, window(x1, x2-1)); err != nil {
		return err
	}
	if err := p.io.TxParam(cmdRASET, window(y1, y2-1)); err != nil {
		return err
	}
	return p.io.TxColor(cmdRAMWR, pix)
}

// window encodes an inclusive start/end address pair, high byte first.
func window(start, end int) []byte {
	return []byte{byte(start >> 8), byte(start), byte(end >> 8), byte(end)}
}
