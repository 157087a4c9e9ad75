// Package sh8601 drives the 466×466 round AMOLED panels built on the SH8601
// or CO5300 controller over a four-lane (QSPI) bus.
//
// Both controllers share one board wiring, so the driver tells them apart at
// run time: before the bus is set up it bit-bangs a read of the RDID1
// register on the bus pins. 0x86 selects the SH8601 init sequence, any other
// value the CO5300 one. A missing panel is not detected and ends up
// initialized as a CO5300.
//
// This driver implements the display.Drawer interface from periph.io.
//
// # Hardware Connection
//
//	Panel Pin  → Board GPIO (DefaultPins)
//	CS         → GPIO9
//	SCLK       → GPIO10
//	D0..D3     → GPIO11..GPIO14
//	RST        → GPIO21
//	PWREN      → GPIO42 (panel supply enable)
//
// # Bring-up
//
// New performs, in order:
//
//  1. The identity probe (ProbeID), which resets the panel via RST.
//  2. Power enable (PowerOn).
//  3. Bus init, panel IO creation, panel reset, vendor init sequence and
//     display on.
//  4. For the CO5300, a 6 column offset applied to every later window.
//
// The Port and Bus interfaces decouple the driver from the platform. HostPort
// serves Port with periph.io pins; package qspi serves Bus with a periph.io
// spi.Port; package paneltest simulates both.
//
// # Basic Usage
//
//	host.Init()
//
//	port, _ := sh8601.OpenHostPort(sh8601.DefaultPins)
//	p, _ := spireg.Open("")
//	dev, _ := sh8601.New(port, qspi.New(p, nil), nil)
//	defer dev.Halt()
//
//	img := image565.NewImage(dev.Bounds())
//	img.Fill(image565.FromRGB(0, 0, 255))
//	dev.Draw(dev.Bounds(), img, image.Point{})
//
// # Flushing
//
// Pixel data is pushed with half-open regions [x1,x2)×[y1,y2) of RGB565
// big-endian pixels. DrawBitmap returns once the transfer is done.
// DrawBitmapAsync returns right after the transfer started; the buffer must
// stay untouched until WaitFlushDone returns. Only one transfer may be
// outstanding; a second submission fails with ErrFlushPending. When the bus
// reports a failed transfer, the wait that consumes it returns the error.
//
//	dev.DrawBitmapAsync(0, 0, 466, 20, band0)
//	// render band1 meanwhile
//	dev.WaitFlushDone()
//	dev.DrawBitmapAsync(0, 20, 466, 40, band1)
//
// Draw does exactly this with two internal buffers of Opts.DrawRows rows.
package sh8601
