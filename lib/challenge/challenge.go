package challenge

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"
	"time"
)

// Type is the kind of a challenge. The string form is the name used on the
// wire.
type Type string

const (
	TypeText   Type = "text"
	TypeMath   Type = "math"
	TypeGrid   Type = "image-grid"
	TypeSlider Type = "slider"
	TypeAudio  Type = "audio"
)

// Types lists every challenge type in a stable order.
var Types = []Type{TypeText, TypeMath, TypeGrid, TypeSlider, TypeAudio}

// ParseType maps a requested type name to a Type. Empty and unknown names
// (including the legacy "text-image") fall back to TypeText.
func ParseType(name string) Type {
	switch Type(name) {
	case TypeText, TypeMath, TypeGrid, TypeSlider, TypeAudio:
		return Type(name)
	default:
		return TypeText
	}
}

// Challenge is the metadata about a single challenge issuance.
type Challenge struct {
	ID        string    `json:"captchaId"` // UUID identifying the challenge
	Type      Type      `json:"type"`
	Payload   Payload   `json:"payload"` // Safe to show to the client
	Solution  string    `json:"-"`       // Canonical answer, never sent to the client
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Payload is the type-specific, client-visible part of a challenge.
type Payload interface {
	Kind() Type
}

type TextPayload struct {
	Image        []byte `json:"image"` // PNG
	MimeType     string `json:"mimeType"`
	Instructions string `json:"instructions"`
}

func (TextPayload) Kind() Type { return TypeText }

type MathPayload struct {
	Question     string `json:"question"`
	Instructions string `json:"instructions"`
}

func (MathPayload) Kind() Type { return TypeMath }

// Tile is one cell of an image-grid challenge. IDs are assigned by position
// in the shuffled grid.
type Tile struct {
	ID       string `json:"id"`
	Image    []byte `json:"image"`
	MimeType string `json:"mimeType"`
}

type GridPayload struct {
	Tiles        []Tile `json:"tiles"`
	Columns      int    `json:"columns"`
	Category     string `json:"category"`
	Instructions string `json:"instructions"`
}

func (GridPayload) Kind() Type { return TypeGrid }

type SliderPayload struct {
	Background   []byte `json:"background"` // PNG with the hole painted in
	Piece        []byte `json:"piece"`      // PNG of the cut-out piece
	MimeType     string `json:"mimeType"`
	PieceX       int    `json:"pieceX"` // where the piece starts on the track
	PieceY       int    `json:"pieceY"`
	PieceWidth   int    `json:"pieceWidth"`
	PieceHeight  int    `json:"pieceHeight"`
	Instructions string `json:"instructions"`
}

func (SliderPayload) Kind() Type { return TypeSlider }

type AudioPayload struct {
	Audio        []byte `json:"audio"` // WAV
	MimeType     string `json:"mimeType"`
	Instructions string `json:"instructions"`
}

func (AudioPayload) Kind() Type { return TypeAudio }

// NewRand returns a random stream for a single generation call, seeded from
// the operating system's CSPRNG.
func NewRand() *mrand.Rand {
	var seed [32]byte
	_, _ = rand.Read(seed[:])
	return mrand.New(mrand.NewChaCha8(seed))
}

// NewSeededRand returns a deterministic random stream for tests and tools.
func NewSeededRand(seed uint64) *mrand.Rand {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	return mrand.New(mrand.NewChaCha8(buf))
}
