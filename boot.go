package sst

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/outofforest/sst/config"
	"github.com/outofforest/sst/integrity"
	"github.com/outofforest/sst/metrics"
	"github.com/outofforest/sst/persistence"
	"github.com/outofforest/sst/pkg/filedev"
	"github.com/outofforest/sst/token"
)

// Open opens the device file described by the configuration and creates the system on top of it.
// Logs are written to logOutput, metrics are registered if registerer is not nil.
// The system must be prepared or wiped before use and closed at the end.
func Open(cfg config.Config, logOutput io.Writer, registerer prometheus.Registerer) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := cfg.Logger(logOutput)
	if err != nil {
		return nil, err
	}
	key, err := cfg.IntegrityKey()
	if err != nil {
		return nil, err
	}
	auth, err := integrity.NewBLAKE2b(key)
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if registerer != nil {
		m, err = metrics.New(registerer)
		if err != nil {
			return nil, err
		}
	}

	dev, err := filedev.Open(cfg.Device.Path, cfg.Device.Size)
	if err != nil {
		return nil, err
	}
	store, err := persistence.Open(dev, cfg.Geometry.BlockSize)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}

	s, err := New(store, auth, Config{
		MaxObjects:    cfg.Geometry.MaxObjects,
		CommitRetries: cfg.CommitRetries,
		Policy: token.Policy{
			PublicInfo:       cfg.Policy.PublicInfo,
			PublicAttributes: cfg.Policy.PublicAttributes,
		},
		Log:     log,
		Metrics: m,
	})
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	s.closer = dev.Close

	log.Info().
		Str("device", cfg.Device.Path).
		Int64("blockSize", cfg.Geometry.BlockSize).
		Uint64("blocks", store.NBlocks()).
		Uint64("maxObjects", cfg.Geometry.MaxObjects).
		Msg("Secure storage opened")
	return s, nil
}
