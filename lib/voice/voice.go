// Package voice joins pre-recorded digit clips into a single WAV file.
package voice

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/uvensys/captchad/lib/assets"
)

var (
	ErrNoDigits       = errors.New("voice: nothing to say")
	ErrMissingClip    = errors.New("voice: no clip for character")
	ErrFormatMismatch = errors.New("voice: clip format does not match the first clip")
	ErrEncode         = errors.New("voice: can't encode wav")
)

const wavPCM = 1

// Concat joins the clips for each character of text in order. Every clip
// must have the same format as the first one.
func Concat(clips assets.DigitClips, text string) (*assets.Clip, error) {
	if text == "" {
		return nil, ErrNoDigits
	}

	var first *assets.Clip
	var data []int

	for _, ch := range text {
		clip, ok := clips[ch]
		if !ok || clip == nil {
			return nil, fmt.Errorf("%w: %q", ErrMissingClip, ch)
		}

		if first == nil {
			first = clip
		} else if !clip.SameFormat(first) {
			return nil, fmt.Errorf("%w: %q is %d Hz/%d ch/%d bit, want %d Hz/%d ch/%d bit",
				ErrFormatMismatch, ch,
				clip.SampleRate(), clip.NumChannels(), clip.BitDepth,
				first.SampleRate(), first.NumChannels(), first.BitDepth,
			)
		}

		data = append(data, clip.Buffer.Data...)
	}

	return &assets.Clip{
		Buffer: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: first.NumChannels(),
				SampleRate:  first.SampleRate(),
			},
			Data:           data,
			SourceBitDepth: first.BitDepth,
		},
		BitDepth: first.BitDepth,
	}, nil
}

// Encode writes clip out as a PCM WAV file.
func Encode(clip *assets.Clip) ([]byte, error) {
	out := &seekBuffer{}
	enc := wav.NewEncoder(out, clip.SampleRate(), clip.BitDepth, clip.NumChannels(), wavPCM)

	if err := enc.Write(clip.Buffer); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	return out.Bytes(), nil
}

// Synthesize speaks text using the digit clips and returns WAV bytes.
func Synthesize(clips assets.DigitClips, text string) ([]byte, error) {
	clip, err := Concat(clips, text)
	if err != nil {
		return nil, err
	}

	return Encode(clip)
}

// seekBuffer is an in-memory io.WriteSeeker. The WAV encoder seeks back to
// patch chunk sizes once it knows them.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if end := s.pos + len(p); end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}

	n := copy(s.buf[s.pos:], p)
	s.pos += n
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(s.pos) + offset
	case io.SeekEnd:
		abs = int64(len(s.buf)) + offset
	default:
		return 0, fmt.Errorf("voice: invalid whence %d", whence)
	}

	if abs < 0 {
		return 0, fmt.Errorf("voice: negative seek position %d", abs)
	}

	s.pos = int(abs)
	return abs, nil
}

func (s *seekBuffer) Bytes() []byte {
	return s.buf
}
