package store

import (
	"context"
	"errors"

	"github.com/uvensys/captchad/lib/challenge"
)

var (
	// ErrNotFound is returned when a challenge is unknown, has expired, or
	// has already been consumed.
	ErrNotFound = errors.New("store: challenge not found")

	// ErrInvalid is returned when a challenge can't be stored, for example
	// because it has no ID.
	ErrInvalid = errors.New("store: challenge is not storable")
)

// Interface defines the calls that captchad uses to keep challenges between
// issuance and validation.
type Interface interface {
	// Insert stores a challenge until its ExpiresAt.
	Insert(ctx context.Context, c *challenge.Challenge) error

	// Get returns a live challenge. Expired challenges are removed and
	// reported as ErrNotFound.
	Get(ctx context.Context, id string) (*challenge.Challenge, error)

	// Consume atomically removes a live challenge and returns it. For any
	// inserted challenge at most one Consume call succeeds.
	Consume(ctx context.Context, id string) (*challenge.Challenge, error)

	// Len returns the number of stored challenges, including expired ones
	// that have not been swept yet.
	Len() int
}
