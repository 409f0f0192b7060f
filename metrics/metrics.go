package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/outofforest/sst/types"
)

const namespace = "sst"

// Metrics collects metrics of the object system. Nil value is valid and collects nothing.
type Metrics struct {
	operations    *prometheus.CounterVec
	commits       *prometheus.CounterVec
	commitRetries prometheus.Counter
	objects       prometheus.Gauge
	usedBlocks    prometheus.Gauge
}

// New creates metrics and registers them.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Number of object system operations by result.",
		}, []string{"operation", "result"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Number of metadata commits by result.",
		}, []string{"result"}),
		commitRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_retries_total",
			Help:      "Number of repeated write-and-verify cycles of metadata commits.",
		}),
		objects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "objects",
			Help:      "Number of objects in the committed table.",
		}),
		usedBlocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "used_blocks",
			Help:      "Number of data blocks allocated to objects in the committed table.",
		}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.commits, m.commitRetries, m.objects, m.usedBlocks} {
		if err := registerer.Register(c); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return m, nil
}

// ObserveOperation counts the operation together with its result.
func (m *Metrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, types.CodeOf(err).String()).Inc()
}

// ObserveCommit counts the commit together with its result.
func (m *Metrics) ObserveCommit(err error) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(types.CodeOf(err).String()).Inc()
}

// CommitRetried counts repeated write-and-verify cycle.
func (m *Metrics) CommitRetried() {
	if m == nil {
		return
	}
	m.commitRetries.Inc()
}

// SetTableState reports the state of the committed table.
func (m *Metrics) SetTableState(objects, usedBlocks uint64) {
	if m == nil {
		return
	}
	m.objects.Set(float64(objects))
	m.usedBlocks.Set(float64(usedBlocks))
}
