package metadata

import (
	"sort"

	"github.com/google/uuid"

	"github.com/outofforest/sst/integrity"
	"github.com/outofforest/sst/token"
	"github.com/outofforest/sst/types"
)

// Entry is the object table entry.
type Entry struct {
	UUID    types.UUID
	Type    types.ObjectType
	Size    uint32
	MaxSize uint32
	Token   token.Token
	Range   types.BlockRange
	Flags   types.Flags
	Written bool
	Version uint64
	DataTag integrity.Tag
}

// Table is the in-memory object table.
type Table struct {
	InstanceID uuid.UUID
	Sequence   uint64
	FreeCursor types.BlockAddress

	entries map[types.UUID]Entry
}

// NewTable returns empty table.
func NewTable() *Table {
	return &Table{
		entries: map[types.UUID]Entry{},
	}
}

// Clone returns deep copy of the table.
func (t *Table) Clone() *Table {
	t2 := &Table{
		InstanceID: t.InstanceID,
		Sequence:   t.Sequence,
		FreeCursor: t.FreeCursor,
		entries:    make(map[types.UUID]Entry, len(t.entries)),
	}
	for k, v := range t.entries {
		t2.entries[k] = v
	}
	return t2
}

// Get returns the entry.
func (t *Table) Get(u types.UUID) (Entry, bool) {
	e, exists := t.entries[u]
	return e, exists
}

// Put stores the entry.
func (t *Table) Put(e Entry) {
	t.entries[e.UUID] = e
}

// Delete removes the entry.
func (t *Table) Delete(u types.UUID) {
	delete(t.entries, u)
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Entries returns entries ordered by uuid.
func (t *Table) Entries() []Entry {
	entries := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].UUID < entries[j].UUID
	})
	return entries
}

// UsedBlocks returns the number of blocks allocated to entries.
func (t *Table) UsedBlocks() uint64 {
	var used uint64
	for _, e := range t.entries {
		used += e.Range.Length
	}
	return used
}
