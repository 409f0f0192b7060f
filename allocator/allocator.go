package allocator

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"

	"github.com/outofforest/sst/types"
)

// Allocator assigns contiguous ranges of data blocks to object payloads.
// Its state is never persisted on its own, it is always rebuilt from the ranges stored in the object table,
// so allocations become real only when the table referencing them is committed.
type Allocator struct {
	region types.BlockRange
	used   *bitset.BitSet
	cursor uint64
}

// New returns allocator managing the region with all the blocks free.
func New(region types.BlockRange) *Allocator {
	return &Allocator{
		region: region,
		used:   bitset.New(uint(region.Length)),
	}
}

// Reserve marks the range as used. It is used to rebuild the state from the object table,
// so overlapping and out-of-region ranges are reported.
func (a *Allocator) Reserve(r types.BlockRange) error {
	if err := a.check(r); err != nil {
		return err
	}
	for i := a.index(r.Start); i < a.index(r.End()); i++ {
		if a.used.Test(uint(i)) {
			return errors.Errorf("block %d is already allocated", a.region.Start+types.BlockAddress(i))
		}
	}
	for i := a.index(r.Start); i < a.index(r.End()); i++ {
		a.used.Set(uint(i))
	}
	return nil
}

// Allocate returns free contiguous range of nBlocks blocks. Searching starts at the cursor and wraps around.
// Fragmented free space is not compacted, ErrNoSpace is returned if no hole is large enough.
func (a *Allocator) Allocate(nBlocks uint64) (types.BlockRange, error) {
	if nBlocks == 0 {
		return types.BlockRange{}, errors.New("zero blocks requested")
	}

	start, found := a.findHole(a.cursor, a.region.Length, nBlocks)
	if !found {
		start, found = a.findHole(0, a.region.Length, nBlocks)
	}
	if !found {
		return types.BlockRange{}, errors.Wrapf(types.ErrNoSpace,
			"no hole of %d blocks, free blocks: %d", nBlocks, a.Free())
	}

	for i := start; i < start+nBlocks; i++ {
		a.used.Set(uint(i))
	}
	a.cursor = (start + nBlocks) % a.region.Length

	return types.BlockRange{
		Start:  a.region.Start + types.BlockAddress(start),
		Length: nBlocks,
	}, nil
}

// Release marks the range as free. Releasing free blocks does nothing.
func (a *Allocator) Release(r types.BlockRange) {
	if a.check(r) != nil {
		return
	}
	for i := a.index(r.Start); i < a.index(r.End()); i++ {
		a.used.Clear(uint(i))
	}
}

// Used returns the number of used blocks.
func (a *Allocator) Used() uint64 {
	return uint64(a.used.Count())
}

// Free returns the number of free blocks.
func (a *Allocator) Free() uint64 {
	return a.region.Length - a.Used()
}

// Cursor returns the address where next search starts.
func (a *Allocator) Cursor() types.BlockAddress {
	return a.region.Start + types.BlockAddress(a.cursor)
}

// SetCursor sets the address where next search starts. Addresses outside the region reset it.
func (a *Allocator) SetCursor(address types.BlockAddress) {
	if address < a.region.Start || address >= a.region.End() {
		a.cursor = 0
		return
	}
	a.cursor = a.index(address)
}

func (a *Allocator) findHole(from, to, nBlocks uint64) (uint64, bool) {
	for i := from; i+nBlocks <= to; {
		clear, ok := a.used.NextClear(uint(i))
		if !ok {
			return 0, false
		}
		start := uint64(clear)
		if start+nBlocks > to {
			return 0, false
		}

		end := to
		if set, ok := a.used.NextSet(uint(start)); ok && uint64(set) < to {
			end = uint64(set)
		}
		if end-start >= nBlocks {
			return start, true
		}
		i = end
	}
	return 0, false
}

func (a *Allocator) check(r types.BlockRange) error {
	if r.IsZero() {
		return errors.New("empty range")
	}
	if r.Start < a.region.Start || r.End() > a.region.End() || r.End() < r.Start {
		return errors.Errorf("range [%d, %d) is outside the region [%d, %d)",
			r.Start, r.End(), a.region.Start, a.region.End())
	}
	return nil
}

func (a *Allocator) index(address types.BlockAddress) uint64 {
	return uint64(address - a.region.Start)
}
