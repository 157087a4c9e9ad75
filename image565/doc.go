// Package image565 provides a 16-bit RGB565 image format for the SH8601 and CO5300 AMOLED controllers.
//
// Both controllers are configured for 16 bits per pixel (COLMOD 0x55) with RGB element order.
// Over QSPI the high byte of every pixel is clocked first, so Image keeps that byte order in memory.
//
// Memory layout example for a 2-pixel row:
//
//	Pixels: red     blue
//	Values: 0xF800  0x001F
//	Bytes:  F8 00   00 1F
//
// This package provides:
//
// - RGB565: A color type holding the packed 16-bit value
// - RGB565Model: A color model for converting standard Go colors to RGB565
// - Image: An image.Image and draw.Image implementation whose Pix can be flushed directly
//
// Image also implements drivers.Displayer from tinygo.org/x/drivers, so tinyfont and
// tinydraw can render straight into a band before it is sent to the panel:
//
//	img := image565.NewImage(image.Rect(0, 0, 466, 20))
//	img.Fill(image565.FromRGB(0, 0, 0))
//	tinyfont.WriteLine(img, &proggy.TinySZ8pt7b, 10, 14, "Hello", color.RGBA{255, 255, 255, 255})
//	dev.DrawBitmap(0, 200, 466, 220, img.Pix)
package image565
