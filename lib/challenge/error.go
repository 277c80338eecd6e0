package challenge

import (
	"errors"
	"fmt"
)

var (
	ErrNoAssetsAvailable         = errors.New("challenge: no assets available")
	ErrAssetPoolEmptyForCategory = errors.New("challenge: asset pool is empty for category")
	ErrAudioDigitMissing         = errors.New("challenge: audio clip for digit is missing")
	ErrAudioFormatMismatch       = errors.New("challenge: audio clips have mismatched formats")
	ErrEncodingFailure           = errors.New("challenge: can't encode payload")
	ErrUnknownType               = errors.New("challenge: no implementation registered for type")
)

// NewError wraps a generation failure. The public reason is safe to show to
// clients; the private reason is for logs.
func NewError(verb string, typ Type, publicReason string, privateReason error) *Error {
	return &Error{
		Verb:          verb,
		Type:          typ,
		PublicReason:  publicReason,
		PrivateReason: privateReason,
	}
}

type Error struct {
	PrivateReason error
	Verb          string
	Type          Type
	PublicReason  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("challenge: error when processing %s challenge: %s: %v", e.Type, e.Verb, e.PrivateReason)
}

func (e *Error) Unwrap() error {
	return e.PrivateReason
}
