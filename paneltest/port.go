package paneltest

import (
	"fmt"
	"sync"
	"time"

	"github.com/flavioheleno/sh8601"
	"periph.io/x/conn/v3/gpio"
)

// Clock is a virtual clock. It only moves when Advance is called, which
// Port.Delay does.
type Clock struct {
	mu  sync.Mutex
	now time.Duration
}

// Now returns the time elapsed since the clock was created.
func (c *Clock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// PinOpKind is the kind of a recorded Port call.
type PinOpKind uint8

const (
	OpConfigure PinOpKind = iota
	OpSet
)

// PinOp is one recorded Configure or Set call.
type PinOp struct {
	At    time.Duration
	Kind  PinOpKind
	Pin   sh8601.Pin
	Dir   sh8601.Direction // OpConfigure only
	Level gpio.Level       // OpSet only
}

func (o PinOp) String() string {
	if o.Kind == OpConfigure {
		return fmt.Sprintf("%v %s %s", o.At, o.Pin, o.Dir)
	}
	return fmt.Sprintf("%v %s=%s", o.At, o.Pin, o.Level)
}

// probeCmd is the RDID1 read the panel answers.
const probeCmd = 0x0300DA00

// Port simulates the GPIO side of a panel. It answers the bit-banged
// identity probe with ID and records every call.
//
// Like the controller, it only listens while CS is an output driven low.
// Raising CS aborts the exchange; SCLK edges seen while CS is inactive are
// ignored.
//
// Port is not safe for concurrent use, matching the sh8601.Port contract.
type Port struct {
	Clock *Clock
	Pins  sh8601.Pins
	// ID is returned by the identity probe.
	ID byte
	// Absent makes the panel ignore the probe; D0 then reads its pull-up.
	Absent bool
	// Fail makes Configure and Set on a pin return the error.
	Fail map[sh8601.Pin]error

	ops    []PinOp
	levels map[sh8601.Pin]gpio.Level
	dirs   map[sh8601.Pin]sh8601.Direction

	shift   uint32
	shifted int
	sent    []byte
	readBit int
}

// NewPort returns a port wired as sh8601.DefaultPins answering id.
func NewPort(clock *Clock, id byte) *Port {
	if clock == nil {
		clock = &Clock{}
	}
	return &Port{
		Clock:  clock,
		Pins:   sh8601.DefaultPins,
		ID:     id,
		levels: map[sh8601.Pin]gpio.Level{},
		dirs:   map[sh8601.Pin]sh8601.Direction{},
	}
}

// Configure implements sh8601.Port.
func (p *Port) Configure(pin sh8601.Pin, dir sh8601.Direction, pull gpio.Pull) error {
	if err := p.Fail[pin]; err != nil {
		return err
	}
	p.ops = append(p.ops, PinOp{At: p.Clock.Now(), Kind: OpConfigure, Pin: pin, Dir: dir})
	p.dirs[pin] = dir
	if dir == sh8601.Output {
		p.levels[pin] = gpio.Low
	}
	if pin == p.Pins.SCLK {
		p.shift, p.shifted, p.sent, p.readBit = 0, 0, nil, 0
	}
	return nil
}

// Set implements sh8601.Port.
func (p *Port) Set(pin sh8601.Pin, l gpio.Level) error {
	if err := p.Fail[pin]; err != nil {
		return err
	}
	p.ops = append(p.ops, PinOp{At: p.Clock.Now(), Kind: OpSet, Pin: pin, Level: l})
	prev := p.levels[pin]
	p.levels[pin] = l
	switch {
	case pin == p.Pins.CS && bool(l):
		p.shift, p.shifted, p.sent, p.readBit = 0, 0, nil, 0
	case pin == p.Pins.SCLK && !bool(prev) && bool(l) && p.selected():
		p.clockEdge()
	}
	return nil
}

// selected reports whether CS is asserted.
func (p *Port) selected() bool {
	return p.dirs[p.Pins.CS] == sh8601.Output && !bool(p.levels[p.Pins.CS])
}

// clockEdge shifts in one D0 bit during the command phase and advances the
// answer during the read phase.
func (p *Port) clockEdge() {
	if p.shifted < 32 {
		p.shift <<= 1
		if p.levels[p.Pins.D0] {
			p.shift |= 1
		}
		p.shifted++
		if p.shifted%8 == 0 {
			p.sent = append(p.sent, byte(p.shift))
		}
		return
	}
	p.readBit++
}

// Get implements sh8601.Port. While the probe reads, D0 carries the answer
// MSB first.
func (p *Port) Get(pin sh8601.Pin) gpio.Level {
	if pin == p.Pins.D0 && p.dirs[pin] == sh8601.Input && p.selected() && p.shifted == 32 && p.readBit < 8 {
		answer := byte(0xFF)
		if !p.Absent && p.shift == probeCmd {
			answer = p.ID
		}
		return answer&(0x80>>p.readBit) != 0
	}
	if p.dirs[pin] == sh8601.Input {
		return gpio.High
	}
	return p.levels[pin]
}

// Delay implements sh8601.Port by advancing the virtual clock.
func (p *Port) Delay(d time.Duration) {
	p.Clock.Advance(d)
}

// Level returns the last level driven on pin.
func (p *Port) Level(pin sh8601.Pin) gpio.Level {
	return p.levels[pin]
}

// Ops returns every recorded call.
func (p *Port) Ops() []PinOp {
	return append([]PinOp(nil), p.ops...)
}

// Writes returns the recorded Set calls on pin.
func (p *Port) Writes(pin sh8601.Pin) []PinOp {
	var out []PinOp
	for _, o := range p.ops {
		if o.Kind == OpSet && o.Pin == pin {
			out = append(out, o)
		}
	}
	return out
}

// ProbeCommand returns the bytes clocked in during the last probe.
func (p *Port) ProbeCommand() []byte {
	return append([]byte(nil), p.sent...)
}
