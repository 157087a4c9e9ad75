// Package paneltest simulates the board side of an sh8601 panel: a GPIO Port
// that answers the identity probe and a Bus that records every command and
// keeps a model of the controller RAM.
//
// Delays never sleep. Port.Delay advances a virtual Clock shared with the
// Bus, so tests can assert the timing of every recorded operation.
//
//	port, bus := paneltest.NewBoard(0x86)
//	dev, err := sh8601.New(port, bus, nil)
package paneltest
