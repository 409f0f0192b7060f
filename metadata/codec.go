package metadata

import (
	"github.com/google/uuid"
	"github.com/outofforest/photon"
	"github.com/pkg/errors"

	"github.com/outofforest/sst/allocator"
	"github.com/outofforest/sst/blocks"
	tableV0 "github.com/outofforest/sst/blocks/table/v0"
	"github.com/outofforest/sst/integrity"
	"github.com/outofforest/sst/types"
)

// encode serializes the table into the area image.
func encode(t *Table, l Layout, auth integrity.Authenticator) ([]byte, error) {
	entries := t.Entries()
	if uint64(len(entries)) > l.MaxEntries {
		return nil, errors.Wrapf(types.ErrNoSpace, "table holds %d entries, maximum is %d", len(entries), l.MaxEntries)
	}

	image := make([]byte, l.ImageSize())
	entriesBytes := image[l.EntriesOffset():]
	for i, e := range entries {
		raw := tableV0.Entry{
			UUID:       uint32(e.UUID),
			Type:       uint32(e.Type),
			Size:       e.Size,
			MaxSize:    e.MaxSize,
			Flags:      uint32(e.Flags),
			Version:    e.Version,
			FirstBlock: uint64(e.Range.Start),
			NBlocks:    e.Range.Length,
			Token:      e.Token,
			DataTag:    e.DataTag,
		}
		if e.Written {
			raw.State |= tableV0.StateWritten
		}
		copy(entriesBytes[int64(i)*tableV0.EntrySize:], photon.NewFromValue(&raw).B)
	}

	header := tableV0.Header{
		Subject:       blocks.TableSubject,
		SchemaVersion: blocks.TableV0,
		InstanceID:    t.InstanceID,
		Sequence:      t.Sequence,
		NEntries:      uint64(len(entries)),
		MaxEntries:    l.MaxEntries,
		BlockSize:     uint64(l.BlockSize),
		AreaBlocks:    l.AreaBlocks,
		NBlocks:       l.NBlocks,
		UsedBlocks:    t.UsedBlocks(),
		FreeCursor:    uint64(t.FreeCursor),
	}

	// Tag covers the whole image including padding, with tag and checksum fields zeroed.
	copy(image, header.TaggedBytes())
	tag, err := auth.Tag(image)
	if err != nil {
		return nil, err
	}
	header.IntegrityTag = tag
	header.Checksum = header.ComputeChecksum()
	copy(image, photon.NewFromValue(&header).B)

	return image, nil
}

// decode validates the area image and builds the table out of it.
// Every error returned wraps ErrCorruptMetadata.
func decode(image []byte, l Layout, auth integrity.Authenticator) (*Table, error) {
	if int64(len(image)) < tableV0.HeaderSize {
		return nil, errors.Wrap(types.ErrCorruptMetadata, "image is too short")
	}
	header := *photon.NewFromBytes[tableV0.Header](image[:tableV0.HeaderSize]).V

	if header.Subject != blocks.TableSubject {
		return nil, errors.Wrap(types.ErrCorruptMetadata, "area does not contain object table")
	}
	if header.SchemaVersion != blocks.TableV0 {
		return nil, errors.Wrapf(types.ErrCorruptMetadata, "unsupported schema version %d", header.SchemaVersion)
	}
	if err := header.VerifyChecksum(); err != nil {
		return nil, errors.Wrapf(types.ErrCorruptMetadata, "header: %s", err)
	}
	if header.BlockSize != uint64(l.BlockSize) || header.AreaBlocks != l.AreaBlocks ||
		header.MaxEntries != l.MaxEntries || header.NBlocks != l.NBlocks {
		return nil, errors.Wrapf(types.ErrCorruptMetadata,
			"geometry mismatch, stored: block size %d, area blocks %d, max entries %d, blocks %d",
			header.BlockSize, header.AreaBlocks, header.MaxEntries, header.NBlocks)
	}
	if header.NEntries > l.MaxEntries {
		return nil, errors.Wrapf(types.ErrCorruptMetadata, "too many entries: %d", header.NEntries)
	}

	if int64(len(image)) != l.ImageSize() {
		return nil, errors.Wrapf(types.ErrCorruptMetadata, "invalid image size: %d", len(image))
	}
	if err := auth.Verify(header.IntegrityTag, header.TaggedBytes(), image[tableV0.HeaderSize:]); err != nil {
		return nil, errors.Wrapf(types.ErrCorruptMetadata, "integrity: %s", err)
	}
	entriesBytes := image[l.EntriesOffset():]

	t := NewTable()
	t.InstanceID = uuid.UUID(header.InstanceID)
	t.Sequence = header.Sequence
	t.FreeCursor = types.BlockAddress(header.FreeCursor)

	region := allocator.New(l.DataRegion())
	var previous types.UUID
	for i := int64(0); i < int64(header.NEntries); i++ {
		raw := *photon.NewFromBytes[tableV0.Entry](entriesBytes[i*tableV0.EntrySize : (i+1)*tableV0.EntrySize]).V
		e := Entry{
			UUID:    types.UUID(raw.UUID),
			Type:    types.ObjectType(raw.Type),
			Size:    raw.Size,
			MaxSize: raw.MaxSize,
			Token:   raw.Token,
			Range:   types.BlockRange{Start: types.BlockAddress(raw.FirstBlock), Length: raw.NBlocks},
			Flags:   types.Flags(raw.Flags),
			Written: raw.State&tableV0.StateWritten != 0,
			Version: raw.Version,
			DataTag: raw.DataTag,
		}

		if i > 0 && e.UUID <= previous {
			return nil, errors.Wrapf(types.ErrCorruptMetadata, "entries are not ordered at uuid %d", e.UUID)
		}
		previous = e.UUID

		if e.Size > e.MaxSize || l.BlocksFor(e.MaxSize) > e.Range.Length || e.Flags&^types.AllFlags != 0 {
			return nil, errors.Wrapf(types.ErrCorruptMetadata, "invalid entry of uuid %d", e.UUID)
		}
		if err := region.Reserve(e.Range); err != nil {
			return nil, errors.Wrapf(types.ErrCorruptMetadata, "invalid range of uuid %d: %s", e.UUID, err)
		}
		t.Put(e)
	}

	if region.Used() != header.UsedBlocks {
		return nil, errors.Wrapf(types.ErrCorruptMetadata, "used blocks mismatch, stored: %d, computed: %d",
			header.UsedBlocks, region.Used())
	}

	return t, nil
}
