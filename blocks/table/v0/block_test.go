package v0

import (
	"testing"

	"github.com/outofforest/photon"
	"github.com/stretchr/testify/assert"
)

func TestSizes(t *testing.T) {
	assertT := assert.New(t)

	// Sizes are part of the persisted format, changing them requires new schema version.
	assertT.EqualValues(136, HeaderSize)
	assertT.EqualValues(112, EntrySize)
	assertT.Zero(HeaderSize % 8)
	assertT.Zero(EntrySize % 8)
}

func TestHeaderChecksum(t *testing.T) {
	assertT := assert.New(t)

	h := Header{Sequence: 1}
	h.Checksum = h.ComputeChecksum()

	h2 := h
	assertT.Equal(h.Checksum, h2.ComputeChecksum())
	assertT.NoError(h2.VerifyChecksum())

	h2.Sequence++
	assertT.NotEqual(h.Checksum, h2.ComputeChecksum())

	h3 := h
	h3.IntegrityTag[0] = 0x01
	assertT.NotEqual(h.Checksum, h3.ComputeChecksum())

	h4 := h
	h4.NEntries = 3
	assertT.NotEqual(h.Checksum, h4.ComputeChecksum())
	assertT.Error(h4.VerifyChecksum())
}

func TestTaggedBytesIgnoreTagAndChecksum(t *testing.T) {
	assertT := assert.New(t)

	h := Header{Sequence: 5, NEntries: 2}
	tagged := h.TaggedBytes()

	h.IntegrityTag[3] = 0xaa
	h.Checksum = 123
	assertT.Equal(tagged, h.TaggedBytes())

	h.Sequence = 6
	assertT.NotEqual(tagged, h.TaggedBytes())
}

func TestEntryRoundTrip(t *testing.T) {
	assertT := assert.New(t)

	e := Entry{UUID: 7, Type: 1, Size: 64, MaxSize: 64, Version: 2, FirstBlock: 10, NBlocks: 1}
	e.Token[0] = 0x11

	b := make([]byte, EntrySize)
	copy(b, photon.NewFromValue(&e).B)

	assertT.Equal(e, *photon.NewFromBytes[Entry](b).V)
}
