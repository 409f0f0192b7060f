package types

import "github.com/pkg/errors"

// Errors returned by the object system. Each of them maps to a result code.
var (
	// ErrInitFailed is returned if no valid metadata exists or the system hasn't been prepared.
	ErrInitFailed = errors.New("secure storage initialization failed")

	// ErrNotFound is returned if object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrAlreadyExists is returned if object with the same uuid exists.
	ErrAlreadyExists = errors.New("object already exists")

	// ErrNotAuthorized is returned if token does not match the one bound to the object.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrInvalidOffset is returned if offset or size are outside the object bounds.
	ErrInvalidOffset = errors.New("invalid offset")

	// ErrNoSpace is returned if there is not enough contiguous space or table slots.
	ErrNoSpace = errors.New("no space")

	// ErrPolicyViolation is returned if operation is forbidden by object policy.
	ErrPolicyViolation = errors.New("policy violation")

	// ErrStorageIO is returned if underlying device failed.
	ErrStorageIO = errors.New("storage I/O error")

	// ErrCorruptMetadata is returned if metadata area fails validation.
	ErrCorruptMetadata = errors.New("corrupt metadata")

	// ErrCorruptData is returned if object payload does not match its tag.
	ErrCorruptData = errors.New("corrupt object data")
)
