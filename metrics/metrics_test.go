package metrics

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/sst/types"
)

func TestMetrics(t *testing.T) {
	requireT := require.New(t)

	m, err := New(prometheus.NewRegistry())
	requireT.NoError(err)

	m.ObserveOperation("create", nil)
	m.ObserveOperation("create", nil)
	m.ObserveOperation("read", errors.Wrap(types.ErrNotAuthorized, "object 7"))
	m.ObserveCommit(nil)
	m.ObserveCommit(types.ErrStorageIO)
	m.CommitRetried()
	m.SetTableState(3, 12)

	requireT.EqualValues(2, testutil.ToFloat64(m.operations.WithLabelValues("create", "success")))
	requireT.EqualValues(1, testutil.ToFloat64(m.operations.WithLabelValues("read", "not_authorized")))
	requireT.EqualValues(1, testutil.ToFloat64(m.commits.WithLabelValues("success")))
	requireT.EqualValues(1, testutil.ToFloat64(m.commits.WithLabelValues("storage_io_error")))
	requireT.EqualValues(1, testutil.ToFloat64(m.commitRetries))
	requireT.EqualValues(3, testutil.ToFloat64(m.objects))
	requireT.EqualValues(12, testutil.ToFloat64(m.usedBlocks))
}

func TestDoubleRegistration(t *testing.T) {
	requireT := require.New(t)

	registry := prometheus.NewRegistry()
	_, err := New(registry)
	requireT.NoError(err)

	_, err = New(registry)
	requireT.Error(err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("read", nil)
	m.ObserveCommit(nil)
	m.CommitRetried()
	m.SetTableState(1, 1)
}
