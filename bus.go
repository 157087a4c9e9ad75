package sh8601

import (
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// BusConfig describes the four-lane bus the panel is attached to.
type BusConfig struct {
	SCLK           Pin
	D0, D1, D2, D3 Pin
	// MaxTransfer is the largest single pixel transfer in bytes. The driver
	// sizes it to one full frame.
	MaxTransfer int
}

// IOConfig describes how commands and pixels are framed on the bus.
type IOConfig struct {
	CS         Pin
	Clock      physic.Frequency
	Mode       spi.Mode
	CmdBits    int // width of the command phase, 32 for QSPI framing
	ParamBits  int
	QueueDepth int
	Quad       bool // pixels are clocked on four lanes
}

// Bus creates the panel control interface.
type Bus interface {
	// Init claims the bus pins. It is called once, before NewPanelIO.
	Init(cfg BusConfig) error
	// NewPanelIO binds a panel IO to the bus. done is called once for every
	// finished TxColor transfer with its result, possibly from another
	// goroutine. done never blocks.
	NewPanelIO(cfg IOConfig, done func(err error)) (PanelIO, error)
}

// PanelIO sends controller commands and pixel data.
//
// Transfers are executed in submission order: a TxParam issued while a
// TxColor is in flight is sent after it.
type PanelIO interface {
	// TxParam writes a command and its parameters and returns once sent.
	TxParam(cmd byte, data []byte) error
	// TxColor starts writing pix after cmd and returns without waiting.
	// pix must stay untouched until the completion callback fires.
	TxColor(cmd byte, pix []byte) error
}
