package sst

import (
	"github.com/outofforest/photon"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/outofforest/sst/allocator"
	"github.com/outofforest/sst/integrity"
	"github.com/outofforest/sst/metadata"
	"github.com/outofforest/sst/metrics"
	"github.com/outofforest/sst/persistence"
	"github.com/outofforest/sst/token"
	"github.com/outofforest/sst/types"
)

// DefaultMaxObjects is the default capacity of the object table.
const DefaultMaxObjects = 64

// Operation names used in logs and metrics.
const (
	opPrepare       = "prepare"
	opCreate        = "create"
	opRead          = "read"
	opWrite         = "write"
	opDelete        = "delete"
	opGetInfo       = "get_info"
	opGetAttributes = "get_attributes"
	opSetAttributes = "set_attributes"
	opWipeAll       = "wipe_all"
)

// Config is the configuration of the object system.
type Config struct {
	MaxObjects    uint64
	CommitRetries int
	Policy        token.Policy
	Log           zerolog.Logger
	Metrics       *metrics.Metrics
}

// System is the secure object system. Calls must be serialized by the caller.
type System struct {
	store   *persistence.Store
	auth    integrity.Authenticator
	meta    *metadata.Manager
	policy  token.Policy
	log     zerolog.Logger
	metrics *metrics.Metrics
	closer  func() error
}

// New creates the object system on top of the block store. Prepare or WipeAll must be called before objects
// are accessed.
func New(store *persistence.Store, auth integrity.Authenticator, config Config) (*System, error) {
	if config.MaxObjects == 0 {
		config.MaxObjects = DefaultMaxObjects
	}
	meta, err := metadata.New(store, auth, metadata.Config{
		MaxEntries:    config.MaxObjects,
		CommitRetries: config.CommitRetries,
		Log:           config.Log,
		Metrics:       config.Metrics,
	})
	if err != nil {
		return nil, err
	}

	return &System{
		store:   store,
		auth:    auth,
		meta:    meta,
		policy:  config.Policy,
		log:     config.Log,
		metrics: config.Metrics,
	}, nil
}

// Prepare loads and validates the object table.
func (s *System) Prepare() (retErr error) {
	defer s.observe(opPrepare, 0, &retErr)

	return s.meta.Prepare()
}

// Create creates an object of capacity size bound to the token.
func (s *System) Create(u types.UUID, tok token.Token, objectType types.ObjectType, size uint32) (retErr error) {
	defer s.observe(opCreate, u, &retErr)

	return s.create(u, tok, objectType, size, 0)
}

// CreateWithAttributes creates an object with initial policy flags.
func (s *System) CreateWithAttributes(
	u types.UUID,
	tok token.Token,
	objectType types.ObjectType,
	size uint32,
	attrs types.Attributes,
) (retErr error) {
	defer s.observe(opCreate, u, &retErr)

	if attrs.Flags&^types.AllFlags != 0 {
		return errors.Wrapf(types.ErrPolicyViolation, "unknown flags: %#x", uint32(attrs.Flags&^types.AllFlags))
	}
	return s.create(u, tok, objectType, size, attrs.Flags)
}

// Read copies len(out) bytes of the payload starting at offset.
func (s *System) Read(u types.UUID, tok token.Token, offset uint32, out []byte) (retErr error) {
	defer s.observe(opRead, u, &retErr)

	table, err := s.meta.Table()
	if err != nil {
		return err
	}
	e, err := s.authorizedEntry(table, u, tok, token.OpRead)
	if err != nil {
		return err
	}
	if uint64(offset)+uint64(len(out)) > uint64(e.Size) {
		return errors.Wrapf(types.ErrInvalidOffset, "reading %d bytes at offset %d, object size: %d",
			len(out), offset, e.Size)
	}

	payload, err := s.readPayload(e)
	if err != nil {
		return err
	}
	copy(out, payload[offset:])
	return nil
}

// Write stores data at offset. Offset may not exceed the current size, so payload never contains holes.
// New payload is programmed to the freshly allocated range and becomes visible when the table is committed.
// When the free space can't hold a copy of the object, payload is rewritten in place.
func (s *System) Write(u types.UUID, tok token.Token, offset uint32, data []byte) (retErr error) {
	defer s.observe(opWrite, u, &retErr)

	table, err := s.meta.Table()
	if err != nil {
		return err
	}
	e, err := s.authorizedEntry(table, u, tok, token.OpWrite)
	if err != nil {
		return err
	}
	if e.Flags.Has(types.FlagReadOnly) {
		return errors.Wrapf(types.ErrPolicyViolation, "object %d is read-only", u)
	}
	if e.Flags.Has(types.FlagWriteOnce) && e.Written {
		return errors.Wrapf(types.ErrPolicyViolation, "object %d has been written already", u)
	}
	if offset > e.Size {
		return errors.Wrapf(types.ErrInvalidOffset, "offset %d is beyond object size %d", offset, e.Size)
	}
	end := uint64(offset) + uint64(len(data))
	if end > uint64(e.MaxSize) {
		return errors.Wrapf(types.ErrInvalidOffset, "writing %d bytes at offset %d, object capacity: %d",
			len(data), offset, e.MaxSize)
	}
	if len(data) == 0 {
		return nil
	}

	payload, err := s.readPayload(e)
	if err != nil {
		return err
	}
	if end > uint64(len(payload)) {
		payload = append(payload, make([]byte, end-uint64(len(payload)))...)
	}
	copy(payload[offset:], data)

	alloc, err := s.allocator(table)
	if err != nil {
		return err
	}
	r, err := alloc.Allocate(e.Range.Length)
	if errors.Is(err, types.ErrNoSpace) {
		// There is no room for a copy, so payload is rewritten over the blocks it occupies.
		// If it is interrupted, the object reads as corrupted until it is deleted.
		alloc.Release(e.Range)
		r, err = alloc.Allocate(e.Range.Length)
		if err == nil {
			s.log.Debug().Uint32("uuid", uint32(u)).Uint64("block", uint64(r.Start)).
				Msg("No space for a copy, rewriting object in place")
		}
	}
	if err != nil {
		return err
	}
	if err := s.programPayload(r, payload); err != nil {
		return err
	}
	tag, err := s.payloadTag(u, payload)
	if err != nil {
		return err
	}

	previous := e.Range
	e.Range = r
	e.Size = uint32(len(payload))
	e.DataTag = tag
	e.Written = true
	e.Version++
	table.Put(e)
	table.FreeCursor = alloc.Cursor()

	if err := s.meta.Commit(table); err != nil {
		return err
	}
	for _, released := range previous.Subtract(r) {
		s.scrub(released)
	}
	return nil
}

// Delete deletes the object and releases its blocks.
func (s *System) Delete(u types.UUID, tok token.Token) (retErr error) {
	defer s.observe(opDelete, u, &retErr)

	table, err := s.meta.Table()
	if err != nil {
		return err
	}
	e, err := s.authorizedEntry(table, u, tok, token.OpDelete)
	if err != nil {
		return err
	}
	if e.Flags.Has(types.FlagNoDelete) {
		return errors.Wrapf(types.ErrPolicyViolation, "object %d can't be deleted", u)
	}

	table.Delete(u)
	if err := s.meta.Commit(table); err != nil {
		return err
	}
	s.scrub(e.Range)
	return nil
}

// GetInfo returns the information about the object.
func (s *System) GetInfo(u types.UUID, tok token.Token) (_ types.Info, retErr error) {
	defer s.observe(opGetInfo, u, &retErr)

	table, err := s.meta.Table()
	if err != nil {
		return types.Info{}, err
	}
	e, err := s.authorizedEntry(table, u, tok, token.OpGetInfo)
	if err != nil {
		return types.Info{}, err
	}
	return types.Info{
		Size:    e.Size,
		MaxSize: e.MaxSize,
		Type:    e.Type,
		Version: e.Version,
	}, nil
}

// GetAttributes returns the attributes of the object.
func (s *System) GetAttributes(u types.UUID, tok token.Token) (_ types.Attributes, retErr error) {
	defer s.observe(opGetAttributes, u, &retErr)

	table, err := s.meta.Table()
	if err != nil {
		return types.Attributes{}, err
	}
	e, err := s.authorizedEntry(table, u, tok, token.OpGetAttributes)
	if err != nil {
		return types.Attributes{}, err
	}
	return types.Attributes{Flags: e.Flags}, nil
}

// SetAttributes replaces the policy flags of the object. Sticky flags can't be cleared.
func (s *System) SetAttributes(u types.UUID, tok token.Token, attrs types.Attributes) (retErr error) {
	defer s.observe(opSetAttributes, u, &retErr)

	table, err := s.meta.Table()
	if err != nil {
		return err
	}
	e, err := s.authorizedEntry(table, u, tok, token.OpSetAttributes)
	if err != nil {
		return err
	}
	if unknown := attrs.Flags &^ types.AllFlags; unknown != 0 {
		return errors.Wrapf(types.ErrPolicyViolation, "unknown flags: %#x", uint32(unknown))
	}
	if cleared := e.Flags &^ attrs.Flags & types.StickyFlags; cleared != 0 {
		return errors.Wrapf(types.ErrPolicyViolation, "flags %#x can't be cleared", uint32(cleared))
	}
	if attrs.Flags == e.Flags {
		return nil
	}

	e.Flags = attrs.Flags
	e.Version++
	table.Put(e)
	return s.meta.Commit(table)
}

// WipeAll destroys all the objects and formats the device. System is prepared afterwards.
func (s *System) WipeAll() (retErr error) {
	defer s.observe(opWipeAll, 0, &retErr)

	return s.meta.Wipe()
}

// Stats returns the state of the object table.
func (s *System) Stats() (types.Stats, error) {
	table, err := s.meta.Table()
	if err != nil {
		return types.Stats{}, err
	}
	region := s.meta.Layout().DataRegion()
	used := table.UsedBlocks()
	return types.Stats{
		Sequence:     table.Sequence,
		Objects:      uint64(table.Len()),
		MaxObjects:   s.meta.Layout().MaxEntries,
		UsedBlocks:   used,
		FreeBlocks:   region.Length - used,
		ActiveArea:   s.meta.ActiveArea(),
		StandbyValid: s.meta.StandbyValid(),
	}, nil
}

// Close closes the device if it was opened by the system.
func (s *System) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func (s *System) create(
	u types.UUID,
	tok token.Token,
	objectType types.ObjectType,
	size uint32,
	flags types.Flags,
) error {
	table, err := s.meta.Table()
	if err != nil {
		return err
	}
	if _, exists := table.Get(u); exists {
		return errors.Wrapf(types.ErrAlreadyExists, "object %d", u)
	}
	if size == 0 {
		return errors.Wrap(types.ErrInvalidOffset, "object capacity must be greater than zero")
	}
	if uint64(table.Len()) >= s.meta.Layout().MaxEntries {
		return errors.Wrapf(types.ErrNoSpace, "object table is full, maximum number of objects: %d",
			s.meta.Layout().MaxEntries)
	}
	nBlocks := s.meta.Layout().BlocksFor(size)
	if nBlocks > s.meta.Layout().DataRegion().Length {
		return errors.Wrapf(types.ErrNoSpace, "capacity %d exceeds the data region", size)
	}

	alloc, err := s.allocator(table)
	if err != nil {
		return err
	}
	r, err := alloc.Allocate(nBlocks)
	if err != nil {
		return err
	}
	tag, err := s.payloadTag(u, nil)
	if err != nil {
		return err
	}

	table.Put(metadata.Entry{
		UUID:    u,
		Type:    objectType,
		MaxSize: size,
		Token:   tok,
		Range:   r,
		Flags:   flags,
		Version: 1,
		DataTag: tag,
	})
	table.FreeCursor = alloc.Cursor()
	return s.meta.Commit(table)
}

func (s *System) authorizedEntry(
	table *metadata.Table,
	u types.UUID,
	tok token.Token,
	op token.Operation,
) (metadata.Entry, error) {
	e, exists := table.Get(u)
	if !exists {
		return metadata.Entry{}, errors.Wrapf(types.ErrNotFound, "object %d", u)
	}
	if err := s.policy.Authorize(op, e.Token, tok); err != nil {
		return metadata.Entry{}, errors.Wrapf(err, "object %d", u)
	}
	return e, nil
}

// allocator rebuilds allocator state from the ranges referenced by the table.
func (s *System) allocator(table *metadata.Table) (*allocator.Allocator, error) {
	alloc := allocator.New(s.meta.Layout().DataRegion())
	for _, e := range table.Entries() {
		if err := alloc.Reserve(e.Range); err != nil {
			return nil, errors.Wrapf(types.ErrCorruptMetadata, "object %d: %s", e.UUID, err)
		}
	}
	alloc.SetCursor(table.FreeCursor)
	return alloc, nil
}

func (s *System) readPayload(e metadata.Entry) ([]byte, error) {
	payload := make([]byte, e.Size)
	if len(payload) > 0 {
		if err := s.store.Read(e.Range.Start, payload); err != nil {
			return nil, err
		}
	}
	if err := s.auth.Verify(e.DataTag, uuidBytes(e.UUID), payload); err != nil {
		return nil, errors.Wrapf(types.ErrCorruptData, "object %d: %s", e.UUID, err)
	}
	return payload, nil
}

func (s *System) programPayload(r types.BlockRange, payload []byte) error {
	if err := s.store.Erase(r); err != nil {
		return err
	}
	if err := s.store.Program(r.Start, payload); err != nil {
		return err
	}
	return s.store.Sync()
}

func (s *System) payloadTag(u types.UUID, payload []byte) (integrity.Tag, error) {
	return s.auth.Tag(uuidBytes(u), payload)
}

// scrub erases blocks which are no longer referenced by the committed table.
func (s *System) scrub(r types.BlockRange) {
	if err := s.store.Erase(r); err != nil {
		s.log.Warn().Err(err).Uint64("block", uint64(r.Start)).Uint64("blocks", r.Length).
			Msg("Erasing released blocks failed")
		return
	}
	if err := s.store.Sync(); err != nil {
		s.log.Warn().Err(err).Msg("Sync after erasing released blocks failed")
	}
}

func (s *System) observe(op string, u types.UUID, err *error) {
	s.metrics.ObserveOperation(op, *err)

	if *err != nil {
		s.log.Debug().Err(*err).Str("operation", op).Uint32("uuid", uint32(u)).
			Str("result", types.CodeOf(*err).String()).Msg("Operation failed")
		return
	}
	s.log.Debug().Str("operation", op).Uint32("uuid", uint32(u)).Msg("Operation succeeded")
}

func uuidBytes(u types.UUID) []byte {
	return photon.NewFromValue(&u).B
}
