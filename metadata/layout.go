package metadata

import (
	"github.com/pkg/errors"

	tableV0 "github.com/outofforest/sst/blocks/table/v0"
	"github.com/outofforest/sst/types"
)

// MinDataBlocks is the minimum number of blocks which must be left for object payloads.
const MinDataBlocks = 8

// Number of metadata areas.
const nAreas = 2

// Layout describes placement of metadata areas and data region on the device.
type Layout struct {
	BlockSize  int64
	NBlocks    uint64
	MaxEntries uint64
	AreaBlocks uint64
}

// NewLayout computes the layout for the device geometry.
func NewLayout(blockSize int64, nBlocks, maxEntries uint64) (Layout, error) {
	if blockSize <= 0 {
		return Layout{}, errors.Errorf("invalid block size: %d", blockSize)
	}
	if maxEntries == 0 {
		return Layout{}, errors.New("table must be able to store at least one entry")
	}

	if tableV0.HeaderSize >= blockSize {
		return Layout{}, errors.Errorf("block size %d is too small for the header", blockSize)
	}

	// First block holds only the header followed by zero padding, so the last byte of it is never the erased one.
	entriesSize := maxEntries * uint64(tableV0.EntrySize)
	l := Layout{
		BlockSize:  blockSize,
		NBlocks:    nBlocks,
		MaxEntries: maxEntries,
		AreaBlocks: 1 + (entriesSize+uint64(blockSize)-1)/uint64(blockSize),
	}

	if nBlocks < nAreas*l.AreaBlocks+MinDataBlocks {
		return Layout{}, errors.Errorf("device is too small, %d blocks required, provided: %d",
			nAreas*l.AreaBlocks+MinDataBlocks, nBlocks)
	}
	return l, nil
}

// Area returns the range of blocks occupied by the metadata area.
func (l Layout) Area(area int) types.BlockRange {
	return types.BlockRange{
		Start:  types.BlockAddress(uint64(area) * l.AreaBlocks),
		Length: l.AreaBlocks,
	}
}

// DataRegion returns the range of blocks available for object payloads.
func (l Layout) DataRegion() types.BlockRange {
	start := nAreas * l.AreaBlocks
	return types.BlockRange{
		Start:  types.BlockAddress(start),
		Length: l.NBlocks - start,
	}
}

// EntriesOffset returns the offset of the first entry inside the area image.
func (l Layout) EntriesOffset() int64 {
	return l.BlockSize
}

// ImageSize returns the byte size of the area image.
func (l Layout) ImageSize() int64 {
	return int64(l.AreaBlocks) * l.BlockSize
}

// BlocksFor returns the number of blocks needed to store n bytes.
func (l Layout) BlocksFor(n uint32) uint64 {
	return (uint64(n) + uint64(l.BlockSize) - 1) / uint64(l.BlockSize)
}

// AreaName returns printable name of the area.
func AreaName(area int) string {
	if area < 0 || area >= nAreas {
		return "none"
	}
	return string(rune('A' + area))
}
