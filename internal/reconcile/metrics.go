package reconcile

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects reconciliation counters. All methods are nil-safe so
// callers can leave instrumentation unconfigured.
type Metrics struct {
	syncs          *prometheus.CounterVec
	submissions    *prometheus.CounterVec
	profileUpdates *prometheus.CounterVec
	syncDuration   prometheus.Histogram
}

// NewMetrics registers the reconciliation collectors on reg. Collectors
// that are already registered are reused, so repeated construction
// against the same registry is safe.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pioneer",
			Subsystem: "reconcile",
			Name:      "syncs_total",
			Help:      "Identity reconciliation attempts by result.",
		}, []string{"result"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pioneer",
			Subsystem: "reconcile",
			Name:      "onboarding_submissions_total",
			Help:      "Deferred onboarding submission attempts by result.",
		}, []string{"result"}),
		profileUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pioneer",
			Subsystem: "reconcile",
			Name:      "profile_updates_total",
			Help:      "Profile update attempts by result.",
		}, []string{"result"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pioneer",
			Subsystem: "reconcile",
			Name:      "sync_duration_seconds",
			Help:      "Wall time of a full reconciliation pass.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.syncs = registerCounterVec(reg, m.syncs)
	m.submissions = registerCounterVec(reg, m.submissions)
	m.profileUpdates = registerCounterVec(reg, m.profileUpdates)
	m.syncDuration = registerHistogram(reg, m.syncDuration)
	return m
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return c
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram) prometheus.Histogram {
	if err := reg.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(prometheus.Histogram)
		}
	}
	return h
}

func (m *Metrics) RecordSync(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.syncs.WithLabelValues(result).Inc()
	m.syncDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) RecordSubmission(result string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordProfileUpdate(result string) {
	if m == nil {
		return
	}
	m.profileUpdates.WithLabelValues(result).Inc()
}
