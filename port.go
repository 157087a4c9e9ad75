package sh8601

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Pin is a GPIO number as printed on the board schematic.
type Pin int

func (p Pin) String() string {
	return fmt.Sprintf("GPIO%d", int(p))
}

// Direction selects whether a pin is driven or sampled.
type Direction uint8

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "Out"
	}
	return "In"
}

// Pins assigns the panel signals to GPIOs.
type Pins struct {
	CS    Pin // QSPI chip select, active low
	SCLK  Pin // QSPI clock
	D0    Pin // QSPI data 0, also the single data line of the identity probe
	D1    Pin
	D2    Pin
	D3    Pin
	RST   Pin // Panel reset, active low
	PWREN Pin // Panel power enable, active high
}

// DefaultPins is the wiring of the 1.43" 466x466 AMOLED boards.
var DefaultPins = Pins{
	CS:    9,
	SCLK:  10,
	D0:    11,
	D1:    12,
	D2:    13,
	D3:    14,
	RST:   21,
	PWREN: 42,
}

// All returns every assigned pin, PWREN last.
func (p Pins) All() []Pin {
	return []Pin{p.CS, p.SCLK, p.D0, p.D1, p.D2, p.D3, p.RST, p.PWREN}
}

func (p Pins) validate() error {
	seen := make(map[Pin]bool, 8)
	for _, pin := range p.All() {
		if pin < 0 {
			return fmt.Errorf("sh8601: invalid pin %d", int(pin))
		}
		if seen[pin] {
			return fmt.Errorf("sh8601: %s assigned twice", pin)
		}
		seen[pin] = true
	}
	return nil
}

// Port is the digital IO needed before the QSPI bus takes over the pins.
//
// Implementations must be usable from a single goroutine; the driver never
// calls a Port concurrently.
type Port interface {
	Configure(pin Pin, dir Direction, pull gpio.Pull) error
	Set(pin Pin, l gpio.Level) error
	Get(pin Pin) gpio.Level
	Delay(d time.Duration)
}

// HostPort implements Port on top of periph.io pins.
type HostPort struct {
	pins map[Pin]gpio.PinIO
}

// NewHostPort returns a Port backed by the given pins.
func NewHostPort(pins map[Pin]gpio.PinIO) *HostPort {
	return &HostPort{pins: pins}
}

// OpenHostPort resolves every pin of p through the periph.io registry.
//
// host.Init() must have been called.
func OpenHostPort(p Pins) (*HostPort, error) {
	pins := make(map[Pin]gpio.PinIO, 8)
	for _, pin := range p.All() {
		io := gpioreg.ByName(pin.String())
		if io == nil {
			return nil, fmt.Errorf("sh8601: gpio %s not found", pin)
		}
		pins[pin] = io
	}
	return NewHostPort(pins), nil
}

func (h *HostPort) pin(p Pin) (gpio.PinIO, error) {
	io, ok := h.pins[p]
	if !ok {
		return nil, fmt.Errorf("sh8601: gpio %s not opened", p)
	}
	return io, nil
}

// Configure switches the pin direction. Outputs start low.
func (h *HostPort) Configure(p Pin, dir Direction, pull gpio.Pull) error {
	io, err := h.pin(p)
	if err != nil {
		return err
	}
	if dir == Output {
		if err := io.Out(gpio.Low); err != nil {
			return fmt.Errorf("sh8601: %s Out failed: %w", p, err)
		}
		return nil
	}
	if err := io.In(pull, gpio.NoEdge); err != nil {
		return fmt.Errorf("sh8601: %s In failed: %w", p, err)
	}
	return nil
}

// Set drives the pin to l.
func (h *HostPort) Set(p Pin, l gpio.Level) error {
	io, err := h.pin(p)
	if err != nil {
		return err
	}
	if err := io.Out(l); err != nil {
		return fmt.Errorf("sh8601: failed to drive %s %s: %w", p, l, err)
	}
	return nil
}

// Get samples the pin. Unknown pins read low.
func (h *HostPort) Get(p Pin) gpio.Level {
	io, err := h.pin(p)
	if err != nil {
		return gpio.Low
	}
	return io.Read()
}

// Delay sleeps for d.
func (h *HostPort) Delay(d time.Duration) {
	time.Sleep(d)
}
