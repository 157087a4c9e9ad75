package sh8601

import "time"

// Controller identifies the display controller behind the glass.
type Controller uint8

const (
	// SH8601 answers 0x86 on RDID1.
	SH8601 Controller = iota
	// CO5300 is assumed for every other RDID1 value. Most 2024+ boards ship it.
	CO5300
)

// idSH8601 is the RDID1 value reported by the SH8601.
const idSH8601 = 0x86

// Classify maps a probed RDID1 byte to a controller.
func Classify(id byte) Controller {
	if id == idSH8601 {
		return SH8601
	}
	return CO5300
}

func (c Controller) String() string {
	switch c {
	case SH8601:
		return "SH8601"
	case CO5300:
		return "CO5300"
	default:
		return "Controller(?)"
	}
}

// Gap returns the offset of the visible area in controller RAM.
// The CO5300 glass starts 6 columns in.
func (c Controller) Gap() (x, y int) {
	if c == CO5300 {
		return 6, 0
	}
	return 0, 0
}

// InitCmd is one register write of a vendor init sequence.
type InitCmd struct {
	Cmd   byte
	Data  []byte
	Delay time.Duration // wait after the write
}

// InitSequence is replayed in order; entries must not be reordered.
type InitSequence []InitCmd

var sh8601Init = InitSequence{
	{Cmd: 0x11, Delay: 120 * time.Millisecond},                    // Sleep out
	{Cmd: 0x44, Data: []byte{0x01, 0xD1}},                         // Tear scanline
	{Cmd: 0x35, Data: []byte{0x00}},                               // Tear on
	{Cmd: 0x53, Data: []byte{0x20}, Delay: 10 * time.Millisecond}, // Write CTRL display
	{Cmd: 0x51, Data: []byte{0x00}, Delay: 10 * time.Millisecond}, // Brightness 0
	{Cmd: 0x29, Delay: 10 * time.Millisecond},                     // Display on
	{Cmd: 0x51, Data: []byte{0xFF}},                               // Brightness max
}

var co5300Init = InitSequence{
	{Cmd: 0x11, Delay: 80 * time.Millisecond},                // Sleep out
	{Cmd: 0xC4, Data: []byte{0x80}},                          // QSPI interface enable
	{Cmd: 0x53, Data: []byte{0x20}, Delay: time.Millisecond}, // Write CTRL display
	{Cmd: 0x63, Data: []byte{0xFF}, Delay: time.Millisecond}, // HBM brightness
	{Cmd: 0x51, Data: []byte{0x00}, Delay: time.Millisecond}, // Brightness 0
	{Cmd: 0x29, Delay: 10 * time.Millisecond},                // Display on
	{Cmd: 0x51, Data: []byte{0xFF}},                          // Brightness max
}

// SelectSequence returns a copy of the init sequence for c.
func SelectSequence(c Controller) InitSequence {
	src := co5300Init
	if c == SH8601 {
		src = sh8601Init
	}
	return append(InitSequence(nil), src...)
}
