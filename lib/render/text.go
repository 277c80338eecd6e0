package render

import (
	"math/rand/v2"

	"github.com/fogleman/gg"
)

const (
	TextWidth  = 200
	TextHeight = 50

	textPadding  = 10
	textBaseline = 40
	textFontSize = 36
	maxRotation  = 5 // degrees either way
	noiseLines   = 4
	noiseCurves  = 1
	dotDensity   = 0.015
)

// Text draws code onto a TextWidth by TextHeight canvas with a light
// gradient background, per-glyph rotation, noise lines, a curve, and
// scattered dots, and returns it as a PNG.
func Text(rnd *rand.Rand, code string) ([]byte, error) {
	face, err := fontFace(textFontSize)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	dc := gg.NewContext(TextWidth, TextHeight)

	grad := gg.NewLinearGradient(0, 0, TextWidth, TextHeight)
	grad.AddColorStop(0, randomColor(rnd, 180, 256))
	grad.AddColorStop(1, randomColor(rnd, 180, 256))
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, TextWidth, TextHeight)
	dc.Fill()

	dc.SetFontFace(face)

	glyphs := []rune(code)
	if len(glyphs) != 0 {
		spacing := (TextWidth - 2*textPadding) / len(glyphs)
		for i, ch := range glyphs {
			x := float64(textPadding + i*spacing + spacing/4)
			y := float64(textBaseline)
			deg := float64(rnd.IntN(2*maxRotation+1) - maxRotation)

			dc.Push()
			dc.SetColor(randomColor(rnd, 0, 100))
			dc.RotateAbout(gg.Radians(deg), x, y)
			dc.DrawString(string(ch), x, y)
			dc.Pop()
		}
	}

	dc.SetLineWidth(1)
	for range noiseLines {
		dc.SetColor(randomColor(rnd, 180, 220))
		dc.DrawLine(
			float64(rnd.IntN(TextWidth)), float64(rnd.IntN(TextHeight)),
			float64(rnd.IntN(TextWidth)), float64(rnd.IntN(TextHeight)),
		)
		dc.Stroke()
	}

	for range noiseCurves {
		dc.SetColor(randomColor(rnd, 150, 200))
		dc.MoveTo(0, float64(rnd.IntN(TextHeight)))
		dc.CubicTo(
			TextWidth/3.0, float64(rnd.IntN(TextHeight)),
			2*TextWidth/3.0, float64(rnd.IntN(TextHeight)),
			TextWidth, float64(rnd.IntN(TextHeight)),
		)
		dc.Stroke()
	}

	dots := int(TextWidth * TextHeight * dotDensity)
	for range dots {
		dc.SetColor(randomColor(rnd, 0, 255))
		dc.SetPixel(rnd.IntN(TextWidth), rnd.IntN(TextHeight))
	}

	return EncodePNG(dc.Image())
}
