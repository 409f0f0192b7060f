package types

import "github.com/pkg/errors"

// ResultCode is the code returned to the caller across the call gate.
type ResultCode uint32

// Result codes.
const (
	Success ResultCode = iota
	InitFailed
	NotFound
	AlreadyExists
	NotAuthorized
	InvalidOffset
	NoSpace
	PolicyViolation
	StorageIOError
	CorruptMetadata
	CorruptData
	Busy
	Unknown
)

var codes = []struct {
	err  error
	code ResultCode
}{
	{err: ErrInitFailed, code: InitFailed},
	{err: ErrNotFound, code: NotFound},
	{err: ErrAlreadyExists, code: AlreadyExists},
	{err: ErrNotAuthorized, code: NotAuthorized},
	{err: ErrInvalidOffset, code: InvalidOffset},
	{err: ErrNoSpace, code: NoSpace},
	{err: ErrPolicyViolation, code: PolicyViolation},
	{err: ErrCorruptMetadata, code: CorruptMetadata},
	{err: ErrCorruptData, code: CorruptData},
	{err: ErrStorageIO, code: StorageIOError},
}

// CodeOf maps error to the result code.
func CodeOf(err error) ResultCode {
	if err == nil {
		return Success
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return Unknown
}

var names = map[ResultCode]string{
	Success:         "success",
	InitFailed:      "init_failed",
	NotFound:        "not_found",
	AlreadyExists:   "already_exists",
	NotAuthorized:   "not_authorized",
	InvalidOffset:   "invalid_offset",
	NoSpace:         "no_space",
	PolicyViolation: "policy_violation",
	StorageIOError:  "storage_io_error",
	CorruptMetadata: "corrupt_metadata",
	CorruptData:     "corrupt_data",
	Busy:            "busy",
	Unknown:         "unknown",
}

func (c ResultCode) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return names[Unknown]
}
