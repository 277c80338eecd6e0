// Package slider implements the sliding-puzzle challenge. The client drags a
// piece along a horizontal track until it covers the hole it was cut from.
package slider

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/uvensys/captchad"
	"github.com/uvensys/captchad/lib/challenge"
	"github.com/uvensys/captchad/lib/render"
)

func init() {
	challenge.Register(challenge.TypeSlider, &Impl{})
}

type Impl struct{}

func (i *Impl) Issue(lg *slog.Logger, in *challenge.IssueInput) (*challenge.Issued, error) {
	pool := in.Assets.Backgrounds
	if len(pool) == 0 {
		return nil, challenge.NewError("issue", challenge.TypeSlider, "no slider backgrounds available", challenge.ErrNoAssetsAvailable)
	}

	bg := pool[in.Rand.IntN(len(pool))]
	bounds := bg.Bounds()
	size := in.Config.Slider.PieceSize

	pl := render.NewPlacement(in.Rand, bounds.Dx(), bounds.Dy(), size)
	shape := render.NewPuzzleShape(in.Rand, size)
	holed, piece := render.Puzzle(bg, shape, pl)

	bgPNG, err := render.EncodePNG(holed)
	if err != nil {
		return nil, challenge.NewError("issue", challenge.TypeSlider, "can't encode background", fmt.Errorf("%w: %w", challenge.ErrEncodingFailure, err))
	}

	piecePNG, err := render.EncodePNG(piece)
	if err != nil {
		return nil, challenge.NewError("issue", challenge.TypeSlider, "can't encode piece", fmt.Errorf("%w: %w", challenge.ErrEncodingFailure, err))
	}

	lg.Debug("issued slider challenge", "y", pl.Y, "distance", pl.Distance())

	return &challenge.Issued{
		Payload: challenge.SliderPayload{
			Background:   bgPNG,
			Piece:        piecePNG,
			MimeType:     "image/png",
			PieceX:       pl.PieceX,
			PieceY:       pl.Y,
			PieceWidth:   size,
			PieceHeight:  size,
			Instructions: in.Localizer.T("instructions_slider"),
		},
		Solution: strconv.Itoa(pl.Distance()),
	}, nil
}

func (i *Impl) Validate(lg *slog.Logger, in *challenge.ValidateInput) bool {
	want, err := strconv.Atoi(in.Challenge.Solution)
	if err != nil {
		lg.Error("stored slider solution is not a number", "err", err)
		return false
	}

	got, err := strconv.Atoi(strings.TrimSpace(in.Answer))
	if err != nil {
		return false
	}

	tolerance := captchad.DefaultSliderTolerance
	if in.Config != nil {
		tolerance = in.Config.Slider.Tolerance
	}

	// want and tolerance are small, so these bounds cannot overflow.
	return got >= want-tolerance && got <= want+tolerance
}
