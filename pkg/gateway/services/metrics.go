package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/facilityhub/facility/pkg/types"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics counts record store and search mirror calls made by the services
type Metrics struct {
	StoreOperations  *prometheus.CounterVec
	MirrorOperations *prometheus.CounterVec
}

// NewMetrics creates the service counters and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		StoreOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facility",
			Name:      "store_operations_total",
			Help:      "Record store operations by kind, operation and result.",
		}, []string{"kind", "op", "result"}),
		MirrorOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facility",
			Name:      "mirror_operations_total",
			Help:      "Search mirror operations by kind, operation and result.",
		}, []string{"kind", "op", "result"}),
	}
}

func (m *Metrics) observeStore(kind types.Kind, op string, err error) {
	if m == nil {
		return
	}
	m.StoreOperations.WithLabelValues(string(kind), op, result(err)).Inc()
}

func (m *Metrics) observeMirror(kind types.Kind, op string, err error) {
	if m == nil {
		return
	}
	m.MirrorOperations.WithLabelValues(string(kind), op, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}
