package v0

import (
	"unsafe"

	"github.com/outofforest/photon"

	"github.com/outofforest/sst/blocks"
)

// TagSize is the size of the integrity tag.
const TagSize = 32

// TokenSize is the size of the token binding.
const TokenSize = 32

// Header is stored at the beginning of each metadata area.
// All the fields are 8-byte aligned, so there is no padding and byte representation is deterministic.
type Header struct {
	Subject       uint64
	SchemaVersion blocks.SchemaVersion
	InstanceID    [16]byte
	Sequence      uint64
	NEntries      uint64
	MaxEntries    uint64
	BlockSize     uint64
	AreaBlocks    uint64
	NBlocks       uint64
	UsedBlocks    uint64
	FreeCursor    uint64
	IntegrityTag  [TagSize]byte
	Checksum      blocks.Hash
}

// ComputeChecksum computes checksum of the header.
func (h Header) ComputeChecksum() blocks.Hash {
	h.Checksum = 0
	return blocks.Checksum(photon.NewFromValue(&h).B)
}

// VerifyChecksum verifies that stored checksum matches the header.
func (h Header) VerifyChecksum() error {
	checksum := h.Checksum
	h.Checksum = 0
	return blocks.VerifyChecksum(photon.NewFromValue(&h).B, checksum)
}

// TaggedBytes returns bytes of the header covered by the integrity tag.
func (h Header) TaggedBytes() []byte {
	h.Checksum = 0
	h.IntegrityTag = [TagSize]byte{}
	return photon.NewFromValue(&h).B
}

// Entry state bits.
const (
	// StateWritten is set after the first successful write to the object.
	StateWritten uint32 = 1 << iota
)

// Entry describes one object.
type Entry struct {
	UUID       uint32
	Type       uint32
	Size       uint32
	MaxSize    uint32
	Flags      uint32
	State      uint32
	Version    uint64
	FirstBlock uint64
	NBlocks    uint64
	Token      [TokenSize]byte
	DataTag    [TagSize]byte
}

// Sizes of the structures stored on the device.
var (
	HeaderSize = int64(unsafe.Sizeof(Header{}))
	EntrySize  = int64(unsafe.Sizeof(Entry{}))
)
