package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/uvensys/captchad"
	"k8s.io/apimachinery/pkg/util/yaml"
)

var (
	ErrTTLNotPositive           = errors.New("config: ttl must be positive")
	ErrSweepIntervalNotPositive = errors.New("config: sweepInterval must be positive")
	ErrTextLengthInvalid        = errors.New("config.Text: length must be between 1 and 12")
	ErrGridTilesInvalid         = errors.New("config.Grid: tiles must be between 2 and 16")
	ErrGridTargetsInvalid       = errors.New("config.Grid: targets must be between 1 and tiles-1")
	ErrSliderToleranceInvalid   = errors.New("config.Slider: tolerance must not be negative")
	ErrSliderPieceSizeInvalid   = errors.New("config.Slider: pieceSize must be between 40 and 100")
	ErrAudioDigitsInvalid       = errors.New("config.Audio: digits must be between 1 and 12")
)

// Duration is a time.Duration that reads and writes itself as a Go duration
// string such as "2m" or "90s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("config: duration must be a string: %w", err)
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: can't parse duration %q: %w", s, err)
	}

	*d = Duration(dur)
	return nil
}

type Text struct {
	Length int `json:"length"`
}

type Grid struct {
	Tiles   int `json:"tiles"`
	Targets int `json:"targets"`
}

type Slider struct {
	Tolerance int `json:"tolerance"`
	PieceSize int `json:"pieceSize"`
}

type Audio struct {
	Digits int `json:"digits"`
}

// Config is the challenge tuning document.
type Config struct {
	TTL           Duration `json:"ttl"`
	SweepInterval Duration `json:"sweepInterval"`
	Text          Text     `json:"text"`
	Grid          Grid     `json:"grid"`
	Slider        Slider   `json:"slider"`
	Audio         Audio    `json:"audio"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		TTL:           Duration(captchad.DefaultChallengeTTL),
		SweepInterval: Duration(captchad.DefaultSweepInterval),
		Text:          Text{Length: 5},
		Grid: Grid{
			Tiles:   captchad.DefaultGridTiles,
			Targets: captchad.DefaultGridTargets,
		},
		Slider: Slider{
			Tolerance: captchad.DefaultSliderTolerance,
			PieceSize: 50,
		},
		Audio: Audio{Digits: 4},
	}
}

func (c *Config) Valid() error {
	var errs []error

	if c.TTL <= 0 {
		errs = append(errs, ErrTTLNotPositive)
	}

	if c.SweepInterval <= 0 {
		errs = append(errs, ErrSweepIntervalNotPositive)
	}

	if c.Text.Length < 1 || c.Text.Length > 12 {
		errs = append(errs, fmt.Errorf("%w, got %d", ErrTextLengthInvalid, c.Text.Length))
	}

	if c.Grid.Tiles < 2 || c.Grid.Tiles > 16 {
		errs = append(errs, fmt.Errorf("%w, got %d", ErrGridTilesInvalid, c.Grid.Tiles))
	}

	if c.Grid.Targets < 1 || c.Grid.Targets >= c.Grid.Tiles {
		errs = append(errs, fmt.Errorf("%w, got %d", ErrGridTargetsInvalid, c.Grid.Targets))
	}

	if c.Slider.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("%w, got %d", ErrSliderToleranceInvalid, c.Slider.Tolerance))
	}

	if c.Slider.PieceSize < 40 || c.Slider.PieceSize > 100 {
		errs = append(errs, fmt.Errorf("%w, got %d", ErrSliderPieceSizeInvalid, c.Slider.PieceSize))
	}

	if c.Audio.Digits < 1 || c.Audio.Digits > 12 {
		errs = append(errs, fmt.Errorf("%w, got %d", ErrAudioDigitsInvalid, c.Audio.Digits))
	}

	if len(errs) != 0 {
		return fmt.Errorf("config is not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

// Load decodes a YAML or JSON document on top of the defaults, so a file only
// needs to name the settings it changes.
func Load(fin io.Reader, fname string) (*Config, error) {
	c := Default()

	if err := yaml.NewYAMLOrJSONDecoder(fin, 4096).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("can't parse config file %s: %w", fname, err)
	}

	if err := c.Valid(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", fname, err)
	}

	return c, nil
}
