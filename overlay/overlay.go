// Package overlay draws the live body-language readout onto camera frames.
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	confidentColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	otherColor     = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	panel          = image.Rect(10, 10, 400, 80)
)

const quality = 85

// Annotate returns a copy of the JPEG with a label panel in the top-left corner.
func Annotate(src []byte, label string, confidence float64) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("overlay decode: %w", err)
	}

	bounds := img.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, img, bounds.Min, draw.Src)

	box := panel.Add(bounds.Min).Intersect(bounds)
	draw.Draw(canvas, box, image.NewUniform(color.Black), image.Point{}, draw.Src)

	labelColor := otherColor
	if strings.EqualFold(label, "confident") {
		labelColor = confidentColor
	}
	drawText(canvas, bounds.Min.Add(image.Pt(20, 40)), labelColor, "Body Language: "+strings.ToUpper(label))
	drawText(canvas, bounds.Min.Add(image.Pt(20, 65)), color.White, fmt.Sprintf("Confidence: %.1f%%", confidence))

	var out bytes.Buffer
	if err := jpeg.Encode(&out, canvas, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("overlay encode: %w", err)
	}
	return out.Bytes(), nil
}

func drawText(dst draw.Image, at image.Point, c color.Color, text string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(at.X, at.Y),
	}
	d.DrawString(text)
}
