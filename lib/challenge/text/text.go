package text

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/uvensys/captchad/lib/challenge"
	"github.com/uvensys/captchad/lib/render"
)

// Alphabet leaves out characters that are easy to confuse when distorted
// (I, O, 0, 1).
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func init() {
	challenge.Register(challenge.TypeText, &Impl{})
}

type Impl struct{}

// Code draws n characters from Alphabet.
func Code(rnd *rand.Rand, n int) string {
	var sb strings.Builder
	sb.Grow(n)
	for range n {
		sb.WriteByte(Alphabet[rnd.IntN(len(Alphabet))])
	}
	return sb.String()
}

func (i *Impl) Issue(lg *slog.Logger, in *challenge.IssueInput) (*challenge.Issued, error) {
	code := Code(in.Rand, in.Config.Text.Length)

	img, err := render.Text(in.Rand, code)
	if err != nil {
		return nil, challenge.NewError("issue", challenge.TypeText, "can't render challenge image", fmt.Errorf("%w: %w", challenge.ErrEncodingFailure, err))
	}

	lg.Debug("issued text challenge", "length", len(code))

	return &challenge.Issued{
		Payload: challenge.TextPayload{
			Image:        img,
			MimeType:     "image/png",
			Instructions: in.Localizer.T("instructions_text"),
		},
		Solution: code,
	}, nil
}

func (i *Impl) Validate(lg *slog.Logger, in *challenge.ValidateInput) bool {
	return challenge.MatchFold(in.Challenge.Solution, in.Answer)
}
