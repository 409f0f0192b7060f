package metadata

import (
	"bytes"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/outofforest/sst/integrity"
	"github.com/outofforest/sst/metrics"
	"github.com/outofforest/sst/persistence"
	"github.com/outofforest/sst/types"
)

// DefaultCommitRetries is the default number of write-and-verify cycles done by commit.
const DefaultCommitRetries = 3

const noArea = -1

// Config is the configuration of the manager.
type Config struct {
	MaxEntries    uint64
	CommitRetries int
	Log           zerolog.Logger
	Metrics       *metrics.Metrics
}

// Manager keeps two copies of the object table on the device and switches between them atomically.
// The area holding the table with the higher sequence number among valid ones is authoritative.
// Commit always writes the other area, so a failure at any point leaves the authoritative one intact.
type Manager struct {
	store   *persistence.Store
	auth    integrity.Authenticator
	layout  Layout
	retries int
	log     zerolog.Logger
	metrics *metrics.Metrics

	table        *Table
	active       int
	standbyValid bool
}

// New creates the manager. Prepare or Wipe must be called before the table is available.
func New(store *persistence.Store, auth integrity.Authenticator, config Config) (*Manager, error) {
	layout, err := NewLayout(store.BlockSize(), store.NBlocks(), config.MaxEntries)
	if err != nil {
		return nil, err
	}
	retries := config.CommitRetries
	if retries <= 0 {
		retries = DefaultCommitRetries
	}

	return &Manager{
		store:   store,
		auth:    auth,
		layout:  layout,
		retries: retries,
		log:     config.Log,
		metrics: config.Metrics,
		active:  noArea,
	}, nil
}

// Layout returns the layout of the device.
func (m *Manager) Layout() Layout {
	return m.layout
}

// Prepared returns true if authoritative table is loaded.
func (m *Manager) Prepared() bool {
	return m.active != noArea
}

// ActiveArea returns the index of the authoritative area.
func (m *Manager) ActiveArea() int {
	return m.active
}

// StandbyValid returns true if the non-authoritative area contained valid table when it was last checked.
func (m *Manager) StandbyValid() bool {
	return m.standbyValid
}

// Table returns the copy of the authoritative table. Modifying it has no effect until it is committed.
func (m *Manager) Table() (*Table, error) {
	if !m.Prepared() {
		return nil, errors.Wrap(types.ErrInitFailed, "metadata has not been prepared")
	}
	return m.table.Clone(), nil
}

// Prepare reads both areas and selects the authoritative one.
func (m *Manager) Prepare() error {
	m.active = noArea
	m.table = nil
	m.standbyValid = false

	var tables [nAreas]*Table
	for area := 0; area < nAreas; area++ {
		t, err := m.loadArea(area)
		if err != nil {
			m.log.Warn().Err(err).Str("area", AreaName(area)).Msg("Metadata area is invalid")
			continue
		}
		tables[area] = t
	}

	switch {
	case tables[0] == nil && tables[1] == nil:
		return errors.Wrap(types.ErrInitFailed, "no valid metadata area found")
	case tables[0] == nil:
		m.active = 1
	case tables[1] == nil:
		m.active = 0
	default:
		m.standbyValid = true
		m.active = 0
		if tables[1].Sequence > tables[0].Sequence {
			m.active = 1
		}
		if tables[1].Sequence == tables[0].Sequence {
			m.log.Warn().Uint64("sequence", tables[0].Sequence).Msg("Both metadata areas have the same sequence")
		}
	}
	m.table = tables[m.active]

	if !m.standbyValid {
		m.log.Warn().Str("area", AreaName(1-m.active)).Msg("Standby metadata area will be rewritten on next commit")
	}
	m.log.Info().
		Str("area", AreaName(m.active)).
		Uint64("sequence", m.table.Sequence).
		Int("objects", m.table.Len()).
		Str("instance", m.table.InstanceID.String()).
		Msg("Metadata prepared")
	m.metrics.SetTableState(uint64(m.table.Len()), m.table.UsedBlocks())

	return nil
}

// Commit makes the table durable and authoritative. Sequence number of the table is set by the manager.
// If commit fails, the previously committed table stays authoritative both on the device and in memory.
// The only exception is a failure of erasing the unverified image. Then the manager becomes unprepared
// and Prepare must be called again to learn which table is authoritative.
func (m *Manager) Commit(t *Table) (retErr error) {
	defer func() {
		m.metrics.ObserveCommit(retErr)
	}()

	if !m.Prepared() {
		return errors.Wrap(types.ErrInitFailed, "metadata has not been prepared")
	}

	next := t.Clone()
	next.InstanceID = m.table.InstanceID
	next.Sequence = m.table.Sequence + 1

	target := 1 - m.active
	if err := m.writeTable(target, next); err != nil {
		m.standbyValid = false
		m.log.Error().Err(err).Str("area", AreaName(target)).Uint64("sequence", next.Sequence).
			Msg("Metadata commit failed")
		return err
	}

	m.table = next
	m.active = target
	m.standbyValid = true
	m.metrics.SetTableState(uint64(next.Len()), next.UsedBlocks())

	m.log.Debug().Str("area", AreaName(target)).Uint64("sequence", next.Sequence).Msg("Metadata committed")
	return nil
}

// Wipe erases both areas and all the object data, then stores empty table in area A with sequence number 1.
func (m *Manager) Wipe() error {
	m.active = noArea
	m.table = nil
	m.standbyValid = false

	for area := 0; area < nAreas; area++ {
		if err := m.store.Erase(m.layout.Area(area)); err != nil {
			return err
		}
	}
	if err := m.store.Erase(m.layout.DataRegion()); err != nil {
		return err
	}

	t := NewTable()
	t.InstanceID = uuid.New()
	t.Sequence = 1
	t.FreeCursor = m.layout.DataRegion().Start

	if err := m.writeTable(0, t); err != nil {
		return err
	}

	m.table = t
	m.active = 0
	m.metrics.SetTableState(0, 0)

	m.log.Info().Str("instance", t.InstanceID.String()).Msg("Secure storage wiped")
	return nil
}

func (m *Manager) writeTable(area int, t *Table) error {
	image, err := encode(t, m.layout, m.auth)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < m.retries; attempt++ {
		if attempt > 0 {
			m.metrics.CommitRetried()
			m.log.Warn().Err(err).Int("attempt", attempt+1).Str("area", AreaName(area)).
				Msg("Retrying metadata write")
		}
		if err = m.writeArea(area, image); err == nil {
			return nil
		}
	}

	// Image might have been written completely but not verified. It must not win the next prepare.
	if invalidateErr := m.invalidate(area); invalidateErr != nil {
		// Durable state is unknown now, so memory can't be trusted to match it until next prepare.
		m.active = noArea
		m.table = nil
		m.standbyValid = false
		m.log.Error().Err(invalidateErr).Str("area", AreaName(area)).
			Msg("Invalidating metadata area failed, metadata must be prepared again")
	}

	return errors.Wrapf(types.ErrStorageIO, "writing metadata area %s failed after %d attempts: %s",
		AreaName(area), m.retries, err)
}

func (m *Manager) invalidate(area int) error {
	if err := m.store.EraseBlock(m.layout.Area(area).Start); err != nil {
		return err
	}
	return m.store.Sync()
}

// writeArea erases the area, programs all the blocks but the first one, and programs the first block containing
// the header at the end. Then the image is read back and compared.
func (m *Manager) writeArea(area int, image []byte) error {
	r := m.layout.Area(area)
	if err := m.store.Erase(r); err != nil {
		return err
	}

	blockSize := m.layout.BlockSize
	if err := m.store.Program(r.Start+1, image[blockSize:]); err != nil {
		return err
	}
	if err := m.store.ProgramBlock(r.Start, image[:blockSize]); err != nil {
		return err
	}
	if err := m.store.Sync(); err != nil {
		return err
	}

	readBack := make([]byte, len(image))
	if err := m.store.Read(r.Start, readBack); err != nil {
		return err
	}
	if !bytes.Equal(image, readBack) {
		return errors.Errorf("verification of metadata area %s failed", AreaName(area))
	}
	return nil
}

func (m *Manager) loadArea(area int) (*Table, error) {
	image := make([]byte, m.layout.ImageSize())
	if err := m.store.Read(m.layout.Area(area).Start, image); err != nil {
		return nil, err
	}
	return decode(image, m.layout, m.auth)
}
