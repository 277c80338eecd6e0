// Package assets holds the immutable image and audio pools that the
// image-grid, slider, and audio challenges draw from.
//
// Libraries are built once at startup and only read afterwards, so they are
// safe for concurrent use without locking.
package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"sort"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrNotWAV         = errors.New("assets: file is not a WAV file")
	ErrEmptyClip      = errors.New("assets: audio clip has no samples")
	ErrNotADigit      = errors.New("assets: audio clip name is not a single digit")
	ErrCantDecodeTile = errors.New("assets: can't decode image")
)

const (
	TileSize         = 200
	BackgroundWidth  = 300
	BackgroundHeight = 150
)

// Tile is one pre-rendered grid image.
type Tile struct {
	Category string
	Name     string
	Image    image.Image
	PNG      []byte
}

// NewTile encodes img once so challenge generation never has to.
func NewTile(category, name string, img image.Image) (Tile, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Tile{}, fmt.Errorf("can't encode tile %s/%s: %w", category, name, err)
	}

	return Tile{
		Category: category,
		Name:     name,
		Image:    img,
		PNG:      buf.Bytes(),
	}, nil
}

// GridLibrary maps a category name to its tiles.
type GridLibrary map[string][]Tile

// Categories returns every category in sorted order, including ones that
// ended up with no usable tiles.
func (g GridLibrary) Categories() []string {
	result := make([]string, 0, len(g))
	for name := range g {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// SliderPool is the set of slider background images. All images share one
// size.
type SliderPool []image.Image

// Clip is one decoded digit recording.
type Clip struct {
	Buffer   *audio.IntBuffer
	BitDepth int
}

// DecodeClip reads a PCM WAV file into memory.
func DecodeClip(r io.ReadSeeker) (*Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotWAV
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("can't read PCM data: %w", err)
	}

	if buf.NumFrames() == 0 {
		return nil, ErrEmptyClip
	}

	return &Clip{
		Buffer:   buf,
		BitDepth: int(dec.BitDepth),
	}, nil
}

func (c *Clip) SampleRate() int  { return c.Buffer.Format.SampleRate }
func (c *Clip) NumChannels() int { return c.Buffer.Format.NumChannels }
func (c *Clip) Frames() int      { return c.Buffer.NumFrames() }

// Duration is the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate())
}

// SameFormat reports whether two clips can be joined without resampling.
func (c *Clip) SameFormat(other *Clip) bool {
	return c.SampleRate() == other.SampleRate() &&
		c.NumChannels() == other.NumChannels() &&
		c.BitDepth == other.BitDepth
}

// DigitClips maps a digit character to its recording.
type DigitClips map[rune]*Clip

// Libraries is everything the asset-backed challenges need.
type Libraries struct {
	Grid        GridLibrary
	Backgrounds SliderPool
	Digits      DigitClips
}

// Empty returns libraries with no assets. Text and math challenges work
// with it; the asset-backed types fail to generate.
func Empty() *Libraries {
	return &Libraries{
		Grid:   GridLibrary{},
		Digits: DigitClips{},
	}
}

// Summary is used for startup logging.
func (l *Libraries) Summary() map[string]int {
	tiles := 0
	for _, ts := range l.Grid {
		tiles += len(ts)
	}

	return map[string]int{
		"categories":  len(l.Grid.Categories()),
		"tiles":       tiles,
		"backgrounds": len(l.Backgrounds),
		"digits":      len(l.Digits),
	}
}
