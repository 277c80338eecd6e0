// Package render draws the raster payloads for text and slider challenges.
//
// Every function takes the random stream it should use; nothing in this
// package keeps random state of its own.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
)

var parseFont = sync.OnceValues(func() (*truetype.Font, error) {
	return truetype.Parse(gobold.TTF)
})

// fontFace returns a fresh face; truetype faces cache glyphs and must not be
// shared between goroutines.
func fontFace(size float64) (font.Face, error) {
	f, err := parseFont()
	if err != nil {
		return nil, fmt.Errorf("render: can't parse font: %w", err)
	}

	return truetype.NewFace(f, &truetype.Options{Size: size}), nil
}

// randomColor picks each channel uniformly in [lo, hi).
func randomColor(rnd *rand.Rand, lo, hi int) color.RGBA {
	lo = min(lo, 255)
	hi = min(hi, 255)
	span := max(1, hi-lo)

	return color.RGBA{
		R: uint8(lo + rnd.IntN(span)),
		G: uint8(lo + rnd.IntN(span)),
		B: uint8(lo + rnd.IntN(span)),
		A: 255,
	}
}

// EncodePNG encodes img with the default PNG encoder.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("render: can't encode png: %w", err)
	}
	return buf.Bytes(), nil
}
