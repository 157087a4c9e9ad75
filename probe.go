package sh8601

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Timing required by the panel power-on sequence.
const (
	resetSettle = 120 * time.Millisecond // each phase of the probe reset
	powerSettle = 10 * time.Millisecond  // after PWREN goes high
	readSettle  = time.Microsecond       // D0 turnaround while reading
)

// Identity probe command: read opcode, 24-bit address with RDID1 (0xDA) in
// the middle byte.
var probeCmd = [4]byte{0x03, 0x00, 0xDA, 0x00}

// ProbeID bit-bangs a read of the RDID1 register before the QSPI bus is set
// up and returns the byte read back.
//
// All bus pins and RST become outputs driven low; CS stays low for the whole
// exchange. The panel is reset first (see Reset). Bits are sent MSB first on
// D0 and clocked on the SCLK rising edge. During the read phase D0 is turned
// around to an input for every bit.
//
// A missing or unresponsive panel yields an arbitrary byte; it is not an
// error. Only a failing Port returns an error.
func ProbeID(p Port, pins Pins) (byte, error) {
	for _, pin := range []Pin{pins.CS, pins.SCLK, pins.D0, pins.D1, pins.D2, pins.D3, pins.RST} {
		if err := p.Configure(pin, Output, gpio.PullUp); err != nil {
			return 0, err
		}
	}

	if err := Reset(p, pins.RST); err != nil {
		return 0, err
	}

	for _, b := range probeCmd {
		if err := sendByte(p, pins, b); err != nil {
			return 0, err
		}
	}
	return readByte(p, pins)
}

// Reset drives RST high, low, then high again, holding each level for
// 120ms. It always writes RST exactly three times.
func Reset(p Port, rst Pin) error {
	for _, l := range [3]gpio.Level{gpio.High, gpio.Low, gpio.High} {
		if err := p.Set(rst, l); err != nil {
			return fmt.Errorf("sh8601: failed to drive RST %s: %w", l, err)
		}
		p.Delay(resetSettle)
	}
	return nil
}

// PowerOn enables the panel supply and waits for it to settle.
func PowerOn(p Port, pwren Pin) error {
	if err := p.Configure(pwren, Output, gpio.PullUp); err != nil {
		return err
	}
	if err := p.Set(pwren, gpio.High); err != nil {
		return fmt.Errorf("sh8601: failed to enable panel power: %w", err)
	}
	p.Delay(powerSettle)
	return nil
}

func sendByte(p Port, pins Pins, b byte) error {
	for i := 0; i < 8; i++ {
		if err := p.Set(pins.D0, gpio.Level(b&0x80 != 0)); err != nil {
			return err
		}
		b <<= 1
		if err := p.Set(pins.SCLK, gpio.Low); err != nil {
			return err
		}
		if err := p.Set(pins.SCLK, gpio.High); err != nil {
			return err
		}
	}
	return nil
}

func readByte(p Port, pins Pins) (byte, error) {
	var b byte
	for i := 0; i < 8; i++ {
		if err := p.Set(pins.SCLK, gpio.Low); err != nil {
			return 0, err
		}
		if err := p.Configure(pins.D0, Input, gpio.PullUp); err != nil {
			return 0, err
		}
		p.Delay(readSettle)
		b <<= 1
		if p.Get(pins.D0) {
			b |= 1
		}
		if err := p.Configure(pins.D0, Output, gpio.PullUp); err != nil {
			return 0, err
		}
		if err := p.Set(pins.SCLK, gpio.High); err != nil {
			return 0, err
		}
		p.Delay(readSettle)
	}
	return b, nil
}
