package types

// UUID is the caller-chosen identifier of an object.
type UUID uint32

// ObjectType is the caller-defined classification tag of an object. It is never interpreted.
type ObjectType uint32

// BlockAddress is the address (index) of the block on the device.
type BlockAddress uint64

// BlockRange is the contiguous range of blocks assigned to the payload of an object.
type BlockRange struct {
	Start  BlockAddress
	Length uint64
}

// End returns the address of the first block following the range.
func (r BlockRange) End() BlockAddress {
	return r.Start + BlockAddress(r.Length)
}

// IsZero returns true if range contains no blocks.
func (r BlockRange) IsZero() bool {
	return r.Length == 0
}

// Overlaps returns true if ranges share at least one block.
func (r BlockRange) Overlaps(r2 BlockRange) bool {
	if r.IsZero() || r2.IsZero() {
		return false
	}
	return r.Start < r2.End() && r2.Start < r.End()
}

// Subtract returns the parts of the range which are not covered by r2.
func (r BlockRange) Subtract(r2 BlockRange) []BlockRange {
	if r.IsZero() {
		return nil
	}
	if !r.Overlaps(r2) {
		return []BlockRange{r}
	}

	var parts []BlockRange
	if r.Start < r2.Start {
		parts = append(parts, BlockRange{Start: r.Start, Length: uint64(r2.Start - r.Start)})
	}
	if r2.End() < r.End() {
		parts = append(parts, BlockRange{Start: r2.End(), Length: uint64(r.End() - r2.End())})
	}
	return parts
}

// Flags are policy bits attached to the object.
type Flags uint32

// Policy flags.
const (
	// FlagReadOnly rejects writes while set.
	FlagReadOnly Flags = 1 << iota

	// FlagWriteOnce rejects writes after the first successful one. It can't be cleared once set.
	FlagWriteOnce

	// FlagNoDelete rejects deletion while set.
	FlagNoDelete
)

// AllFlags is the set of flags known to the system.
const AllFlags = FlagReadOnly | FlagWriteOnce | FlagNoDelete

// StickyFlags can't be cleared once set.
const StickyFlags = FlagWriteOnce

// Has returns true if all the bits of f2 are set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// Info describes the object without exposing its payload.
type Info struct {
	Size    uint32
	MaxSize uint32
	Type    ObjectType
	Version uint64
}

// Attributes are the mutable attributes of the object.
type Attributes struct {
	Flags Flags
}

// Stats reports the state of the object table.
type Stats struct {
	Sequence     uint64
	Objects      uint64
	MaxObjects   uint64
	UsedBlocks   uint64
	FreeBlocks   uint64
	ActiveArea   int
	StandbyValid bool
}
