package qr

import (
	"bytes"
	"image/color"
	"image/png"

	"github.com/fogleman/gg"
	"github.com/skip2/go-qrcode"
)

type Config struct {
	Content       string
	Caption       string // printed under the code; empty means no caption
	Size          int
	Background    color.Color
	Foreground    color.Color
	CornerRadius  float64 // module roundness, 0..0.5 of a module
	RecoveryLevel qrcode.RecoveryLevel
	QuietZone     int // quiet zone around the code, in modules
}

// Invite is the style used for club invite codes.
var Invite = Config{
	Size:          512,
	Background:    color.RGBA{R: 20, G: 20, B: 20, A: 255},
	Foreground:    color.RGBA{R: 230, G: 230, B: 230, A: 255},
	CornerRadius:  0.3,
	RecoveryLevel: qrcode.Medium,
	QuietZone:     2,
}

const captionHeight = 40

// Generate renders the QR code as PNG.
func (c Config) Generate() ([]byte, error) {
	qr, err := qrcode.New(c.Content, c.RecoveryLevel)
	if err != nil {
		return nil, err
	}
	qr.DisableBorder = true
	bitmap := qr.Bitmap()

	height := c.Size
	if c.Caption != "" {
		height += captionHeight
	}

	dc := gg.NewContext(c.Size, height)
	dc.SetColor(c.Background)
	dc.Clear()

	modules := len(bitmap) + 2*c.QuietZone
	module := float64(c.Size) / float64(modules)
	offset := float64(c.QuietZone) * module

	dc.SetColor(c.Foreground)
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			dc.DrawRoundedRectangle(
				offset+float64(x)*module,
				offset+float64(y)*module,
				module,
				module,
				module*c.CornerRadius,
			)
		}
	}
	dc.Fill()

	if c.Caption != "" {
		dc.DrawStringAnchored(c.Caption, float64(c.Size)/2, float64(c.Size)+captionHeight/2, 0.5, 0.5)
	}

	var buf bytes.Buffer
	if err = png.Encode(&buf, dc.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
