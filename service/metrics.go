package service

import (
	"errors"

	"github.com/nspcc-dev/nosedive/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nosedive"

// Invocation results used as metric labels.
const (
	KindOK                = "ok"
	KindAlreadyRegistered = "already_registered"
	KindNotRegistered     = "not_registered"
	KindInvalidRating     = "invalid_rating"
	KindSelfRating        = "self_rating"
	KindThrottled         = "throttled"
	KindUnauthorized      = "unauthorized"
	KindInternal          = "internal"
)

// ErrorKind returns the name of the ledger error kind of err, KindOK for
// nil and KindInternal for failures outside the ledger error kinds.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ledger.ErrAlreadyRegistered):
		return KindAlreadyRegistered
	case errors.Is(err, ledger.ErrNotRegistered):
		return KindNotRegistered
	case errors.Is(err, ledger.ErrInvalidRating):
		return KindInvalidRating
	case errors.Is(err, ledger.ErrSelfRating):
		return KindSelfRating
	case errors.Is(err, ledger.ErrThrottled):
		return KindThrottled
	case errors.Is(err, ledger.ErrUnauthorized):
		return KindUnauthorized
	default:
		return KindInternal
	}
}

type metrics struct {
	invocations *prometheus.CounterVec
	registered  prometheus.Gauge
}

// newMetrics creates service metrics registered in reg. Nil reg leaves them
// unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)

	return &metrics{
		invocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Number of ledger invocations by method and result",
		}, []string{"method", "result"}),
		registered: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_identities",
			Help:      "Number of registered identities",
		}),
	}
}

func (m *metrics) observe(method, result string) {
	m.invocations.WithLabelValues(method, result).Inc()
}
