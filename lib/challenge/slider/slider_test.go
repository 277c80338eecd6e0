package slider

import (
	"bytes"
	"errors"
	"image/png"
	"log/slog"
	"math"
	"strconv"
	"testing"

	"github.com/uvensys/captchad/lib/assets"
	"github.com/uvensys/captchad/lib/challenge"
	"github.com/uvensys/captchad/lib/challenge/challengetest"
	"github.com/uvensys/captchad/lib/config"
)

func TestIssue(t *testing.T) {
	i := &Impl{}

	for seed := range uint64(20) {
		in := challengetest.Input(t, seed)

		issued, err := i.Issue(slog.Default(), in)
		if err != nil {
			t.Fatal(err)
		}

		payload, ok := issued.Payload.(challenge.SliderPayload)
		if !ok {
			t.Fatalf("wrong payload type %T", issued.Payload)
		}

		size := in.Config.Slider.PieceSize
		if payload.PieceWidth != size || payload.PieceHeight != size {
			t.Errorf("wrong piece size %dx%d", payload.PieceWidth, payload.PieceHeight)
		}

		if payload.PieceX != 0 {
			t.Errorf("piece should start at the left of the track, got %d", payload.PieceX)
		}

		if payload.PieceY < 30 || payload.PieceY+size > assets.BackgroundHeight {
			t.Errorf("piece y %d out of range", payload.PieceY)
		}

		distance, err := strconv.Atoi(issued.Solution)
		if err != nil {
			t.Fatalf("solution %q is not a number", issued.Solution)
		}

		if distance < 50 || distance+size > assets.BackgroundWidth-50 {
			t.Errorf("distance %d out of range", distance)
		}

		bg, err := png.Decode(bytes.NewReader(payload.Background))
		if err != nil {
			t.Fatalf("background is not a PNG: %v", err)
		}
		if b := bg.Bounds(); b.Dx() != assets.BackgroundWidth || b.Dy() != assets.BackgroundHeight {
			t.Errorf("wrong background size %v", b)
		}

		piece, err := png.Decode(bytes.NewReader(payload.Piece))
		if err != nil {
			t.Fatalf("piece is not a PNG: %v", err)
		}
		if b := piece.Bounds(); b.Dx() != size || b.Dy() != size {
			t.Errorf("wrong piece image size %v", b)
		}
	}
}

func TestIssueNoAssets(t *testing.T) {
	i := &Impl{}
	in := challengetest.Input(t, 1)
	in.Assets = assets.Empty()

	if _, err := i.Issue(slog.Default(), in); !errors.Is(err, challenge.ErrNoAssetsAvailable) {
		t.Fatalf("wanted ErrNoAssetsAvailable, got %v", err)
	}
}

func TestValidateTolerance(t *testing.T) {
	i := &Impl{}
	chall := challengetest.New(t, challenge.TypeSlider, "120")
	cfg := config.Default()

	for _, tt := range []struct {
		answer string
		want   bool
	}{
		{answer: "120", want: true},
		{answer: "126", want: true},
		{answer: "114", want: true},
		{answer: "127", want: false},
		{answer: "113", want: false},
		{answer: " 125 ", want: true},
		{answer: "120.5", want: false},
		{answer: "", want: false},
		{answer: "left", want: false},
		{answer: strconv.Itoa(math.MinInt + 120), want: false},
		{answer: strconv.Itoa(math.MaxInt), want: false},
	} {
		t.Run(tt.answer, func(t *testing.T) {
			got := i.Validate(slog.Default(), &challenge.ValidateInput{
				Challenge: chall,
				Answer:    tt.answer,
				Config:    cfg,
			})
			if got != tt.want {
				t.Errorf("Validate(%q) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}

func TestValidateConfiguredTolerance(t *testing.T) {
	i := &Impl{}
	chall := challengetest.New(t, challenge.TypeSlider, "120")
	cfg := config.Default()
	cfg.Slider.Tolerance = 0

	if i.Validate(slog.Default(), &challenge.ValidateInput{Challenge: chall, Answer: "121", Config: cfg}) {
		t.Error("off by one should fail with zero tolerance")
	}

	if !i.Validate(slog.Default(), &challenge.ValidateInput{Challenge: chall, Answer: "120", Config: cfg}) {
		t.Error("exact answer should pass with zero tolerance")
	}
}
