// Package audio implements the spoken-digit challenge.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/uvensys/captchad/lib/challenge"
	"github.com/uvensys/captchad/lib/voice"
)

func init() {
	challenge.Register(challenge.TypeAudio, &Impl{})
}

type Impl struct{}

// Digits draws n decimal digits. Leading zeros are allowed.
func Digits(rnd *rand.Rand, n int) string {
	var sb strings.Builder
	sb.Grow(n)
	for range n {
		sb.WriteByte(byte('0' + rnd.IntN(10)))
	}
	return sb.String()
}

func (i *Impl) Issue(lg *slog.Logger, in *challenge.IssueInput) (*challenge.Issued, error) {
	code := Digits(in.Rand, in.Config.Audio.Digits)

	wav, err := voice.Synthesize(in.Assets.Digits, code)
	switch {
	case errors.Is(err, voice.ErrMissingClip):
		return nil, challenge.NewError("issue", challenge.TypeAudio, "audio clips are not available", fmt.Errorf("%w: %w", challenge.ErrAudioDigitMissing, err))
	case errors.Is(err, voice.ErrFormatMismatch):
		return nil, challenge.NewError("issue", challenge.TypeAudio, "audio clips are not usable", fmt.Errorf("%w: %w", challenge.ErrAudioFormatMismatch, err))
	case err != nil:
		return nil, challenge.NewError("issue", challenge.TypeAudio, "can't encode audio", fmt.Errorf("%w: %w", challenge.ErrEncodingFailure, err))
	}

	lg.Debug("issued audio challenge", "digits", len(code), "bytes", len(wav))

	return &challenge.Issued{
		Payload: challenge.AudioPayload{
			Audio:        wav,
			MimeType:     "audio/wav",
			Instructions: in.Localizer.T("instructions_audio"),
		},
		Solution: code,
	}, nil
}

func (i *Impl) Validate(lg *slog.Logger, in *challenge.ValidateInput) bool {
	return challenge.MatchFold(in.Challenge.Solution, in.Answer)
}
