package memdev

import (
	"io"

	"github.com/pkg/errors"
)

var (
	_ io.Seeker = &MemDev{}
	_ io.Reader = &MemDev{}
	_ io.Writer = &MemDev{}
)

// ErrPowerLoss is returned by all the writes and syncs issued after simulated power loss.
var ErrPowerLoss = errors.New("simulated power loss")

// MemDev simulates device io operations in memory.
// It is able to simulate power loss at any byte and failures of individual writes.
type MemDev struct {
	size   int64
	offset int64
	data   []byte

	// writeBudget is the number of bytes which may still be written, negative means unlimited.
	writeBudget int64
	powerLost   bool
	failWrites  int
	written     int64
}

// New returns new memdev.
func New(size int64) *MemDev {
	return &MemDev{
		size:        size,
		data:        make([]byte, size),
		writeBudget: -1,
	}
}

// Seek seeks the position.
func (md *MemDev) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset = md.offset + offset
	case io.SeekEnd:
		offset = md.size + offset
	default:
		return 0, errors.Errorf("invalid whence: %d", whence)
	}

	if offset < 0 || offset > md.size {
		return 0, errors.Errorf("invalid offset: %d", offset)
	}

	md.offset = offset
	return offset, nil
}

// Read reads data from the memdev.
func (md *MemDev) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := copy(p, md.data[md.offset:])
	md.offset += int64(n)
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

// Write writes data to the memdev.
// After power loss is triggered, only the bytes fitting in the remaining budget are stored and error is returned.
func (md *MemDev) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if md.powerLost {
		return 0, errors.WithStack(ErrPowerLoss)
	}
	if md.failWrites > 0 {
		md.failWrites--
		return 0, errors.New("simulated write failure")
	}

	toWrite := p
	if md.writeBudget >= 0 && int64(len(toWrite)) > md.writeBudget {
		toWrite = toWrite[:md.writeBudget]
		md.powerLost = true
	}

	n := copy(md.data[md.offset:], toWrite)
	md.offset += int64(n)
	md.written += int64(n)
	if md.writeBudget >= 0 {
		md.writeBudget -= int64(n)
	}

	switch {
	case md.powerLost:
		return n, errors.WithStack(ErrPowerLoss)
	case n < len(p):
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Sync does nothing unless power has been lost.
func (md *MemDev) Sync() error {
	if md.powerLost {
		return errors.WithStack(ErrPowerLoss)
	}
	return nil
}

// Size returns the byte size of the memdev.
func (md *MemDev) Size() int64 {
	return md.size
}

// CutPowerAfter makes the device accept only n more bytes. Everything written after that is lost.
func (md *MemDev) CutPowerAfter(n int64) {
	md.writeBudget = n
	md.powerLost = n == 0
}

// RestorePower brings device back to normal operation, content written before the power loss is preserved.
func (md *MemDev) RestorePower() {
	md.writeBudget = -1
	md.powerLost = false
}

// FailNextWrites makes n subsequent writes fail without storing anything.
func (md *MemDev) FailNextWrites(n int) {
	md.failWrites = n
}

// Written returns the total number of bytes stored so far.
func (md *MemDev) Written() int64 {
	return md.written
}

// Bytes returns the raw content of the device. It is meant for tampering in tests.
func (md *MemDev) Bytes() []byte {
	return md.data
}

// Snapshot returns a copy of the device content.
func (md *MemDev) Snapshot() []byte {
	snapshot := make([]byte, len(md.data))
	copy(snapshot, md.data)
	return snapshot
}

// Restore replaces the content of the device with the snapshot.
func (md *MemDev) Restore(snapshot []byte) {
	copy(md.data, snapshot)
	md.offset = 0
}
