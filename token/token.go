package token

import (
	"crypto/subtle"

	"github.com/pkg/errors"

	"github.com/outofforest/sst/types"
)

// Size is the size of the token.
const Size = 32

// Token is the opaque authorization value bound to the object at creation. It is never interpreted.
type Token [Size]byte

// FromBytes converts bytes to token. Only buffers of exactly Size bytes are accepted.
func FromBytes(b []byte) (Token, error) {
	var t Token
	if len(b) != Size {
		return t, errors.Wrapf(types.ErrNotAuthorized, "token must be %d bytes long, provided: %d", Size, len(b))
	}
	copy(t[:], b)
	return t, nil
}

// Validate returns true if supplied token matches the bound one.
// Comparison takes the same time regardless of the position of the first difference.
func Validate(bound, supplied Token) bool {
	return subtle.ConstantTimeCompare(bound[:], supplied[:]) == 1
}

// Operation is the operation subject to authorization.
type Operation int

// Operations requiring authorization.
const (
	OpRead Operation = iota
	OpWrite
	OpDelete
	OpGetInfo
	OpGetAttributes
	OpSetAttributes
)

var opNames = map[Operation]string{
	OpRead:          "read",
	OpWrite:         "write",
	OpDelete:        "delete",
	OpGetInfo:       "get_info",
	OpGetAttributes: "get_attributes",
	OpSetAttributes: "set_attributes",
}

func (op Operation) String() string {
	return opNames[op]
}

// Policy decides which operations are privileged.
// Read, write, delete and set-attributes always are. Get-info and get-attributes expose only metadata,
// so they may be made public, revealing existence, size and type of objects to anyone knowing their uuid.
type Policy struct {
	PublicInfo       bool
	PublicAttributes bool
}

// RequiresToken returns true if operation must be authorized.
func (p Policy) RequiresToken(op Operation) bool {
	switch op {
	case OpGetInfo:
		return !p.PublicInfo
	case OpGetAttributes:
		return !p.PublicAttributes
	default:
		return true
	}
}

// Authorize returns ErrNotAuthorized if operation requires token and supplied one does not match.
func (p Policy) Authorize(op Operation, bound, supplied Token) error {
	if !p.RequiresToken(op) || Validate(bound, supplied) {
		return nil
	}
	return errors.Wrapf(types.ErrNotAuthorized, "operation %s", op)
}
