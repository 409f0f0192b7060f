package integrity

import (
	"crypto/subtle"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// TagSize is the size of the integrity tag.
const TagSize = 32

// Key sizes accepted by the BLAKE2b authenticator.
const (
	MinKeySize = 16
	MaxKeySize = blake2b.Size
)

// Tag is the authenticity tag computed over byte buffers.
type Tag [TagSize]byte

// ErrTagMismatch is returned if tag does not match the data.
var ErrTagMismatch = errors.New("integrity tag mismatch")

// Authenticator produces and verifies tags over byte buffers. The buffers are treated as one contiguous message.
type Authenticator interface {
	Tag(parts ...[]byte) (Tag, error)
	Verify(tag Tag, parts ...[]byte) error
}

// BLAKE2b authenticates data using keyed BLAKE2b-256.
type BLAKE2b struct {
	key []byte
}

// NewBLAKE2b returns new BLAKE2b authenticator.
func NewBLAKE2b(key []byte) (*BLAKE2b, error) {
	if len(key) < MinKeySize || len(key) > MaxKeySize {
		return nil, errors.Errorf("key size must be between %d and %d bytes, provided: %d",
			MinKeySize, MaxKeySize, len(key))
	}
	return &BLAKE2b{
		key: append([]byte{}, key...),
	}, nil
}

// Tag computes the tag of the data.
func (a *BLAKE2b) Tag(parts ...[]byte) (Tag, error) {
	h, err := blake2b.New256(a.key)
	if err != nil {
		return Tag{}, errors.WithStack(err)
	}
	for _, p := range parts {
		if _, err := h.Write(p); err != nil {
			return Tag{}, errors.WithStack(err)
		}
	}

	var tag Tag
	copy(tag[:], h.Sum(nil))
	return tag, nil
}

// Verify verifies that tag matches the data.
func (a *BLAKE2b) Verify(tag Tag, parts ...[]byte) error {
	computed, err := a.Tag(parts...)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(computed[:], tag[:]) != 1 {
		return errors.WithStack(ErrTagMismatch)
	}
	return nil
}
