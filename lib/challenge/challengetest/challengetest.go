// Package challengetest holds fixtures shared by the challenge generator
// and server tests.
package challengetest

import (
	"image"
	"image/color"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/google/uuid"
	"github.com/uvensys/captchad/lib/assets"
	"github.com/uvensys/captchad/lib/challenge"
	"github.com/uvensys/captchad/lib/config"
	"github.com/uvensys/captchad/lib/localization"
)

// Categories are the grid categories in Assets, in sorted order.
var Categories = []string{"bicycles", "cars", "traffic_lights"}

// TilesPerCategory is how many tiles Assets puts in each category.
const TilesPerCategory = 4

// DigitSampleRate is the sample rate of the digit clips in Assets.
const DigitSampleRate = 8000

func New(t *testing.T, typ challenge.Type, solution string) *challenge.Challenge {
	t.Helper()

	now := time.Now()

	return &challenge.Challenge{
		ID:        uuid.NewString(),
		Type:      typ,
		Solution:  solution,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Minute),
	}
}

// Rand returns a deterministic random stream.
func Rand(seed uint64) *rand.Rand {
	return challenge.NewSeededRand(seed)
}

// Input returns an IssueInput with synthetic assets, the default config, and
// an English localizer.
func Input(t *testing.T, seed uint64) *challenge.IssueInput {
	t.Helper()

	return &challenge.IssueInput{
		Rand:      Rand(seed),
		Assets:    Assets(t),
		Config:    config.Default(),
		Localizer: localization.ForLanguage("en"),
	}
}

func solid(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func gradient(w, h int, seed uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: seed, A: 255})
		}
	}
	return img
}

// Clip builds a mono 16 bit clip of the given length where every sample is
// value.
func Clip(frames, value int) *assets.Clip {
	data := make([]int, frames)
	for i := range data {
		data[i] = value
	}

	return &assets.Clip{
		Buffer: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: DigitSampleRate},
			Data:           data,
			SourceBitDepth: 16,
		},
		BitDepth: 16,
	}
}

// Assets builds small synthetic asset libraries: solid colored grid tiles,
// gradient slider backgrounds, and one clip per digit. Digit d is 400+40*d
// frames long.
func Assets(t *testing.T) *assets.Libraries {
	t.Helper()

	libs := assets.Empty()

	for i, category := range Categories {
		for j := range TilesPerCategory {
			img := solid(assets.TileSize, assets.TileSize, color.RGBA{
				R: uint8(60 * (i + 1)),
				G: uint8(40 * (j + 1)),
				B: 128,
				A: 255,
			})

			tile, err := assets.NewTile(category, string(rune('a'+j))+".png", img)
			if err != nil {
				t.Fatalf("can't build tile: %v", err)
			}

			libs.Grid[category] = append(libs.Grid[category], tile)
		}
	}

	for i := range 2 {
		libs.Backgrounds = append(libs.Backgrounds, gradient(assets.BackgroundWidth, assets.BackgroundHeight, uint8(100*i)))
	}

	for d := range 10 {
		libs.Digits[rune('0'+d)] = Clip(400+40*d, 1000*(d+1))
	}

	return libs
}
