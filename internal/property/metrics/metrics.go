package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for risk-zone updates.
const (
	OutcomeUpdated  = "updated"
	OutcomeDenied   = "denied"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

var durationBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for the property registry.
type Metrics struct {
	PropertiesRegistered prometheus.Counter
	RiskZoneUpdates      *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec
	CacheHits            prometheus.Counter
	CacheMisses          prometheus.Counter
	AuditEmitFailures    prometheus.Counter
}

// New registers the property metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PropertiesRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "propreg_properties_registered_total",
			Help: "Total number of properties registered",
		}),
		RiskZoneUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "propreg_risk_zone_updates_total",
			Help: "Risk-zone update attempts by outcome",
		}, []string{"outcome"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "propreg_operation_duration_seconds",
			Help:    "Duration of registry operations",
			Buckets: durationBuckets,
		}, []string{"operation"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "propreg_cache_hits_total",
			Help: "Property reads served from the cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "propreg_cache_misses_total",
			Help: "Property reads that fell through to the store",
		}),
		AuditEmitFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "propreg_audit_emit_failures_total",
			Help: "Audit events that could not be handed to the publisher",
		}),
	}
}

func (m *Metrics) IncrementRegistered() {
	m.PropertiesRegistered.Inc()
}

func (m *Metrics) IncrementRiskZoneUpdate(outcome string) {
	m.RiskZoneUpdates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementAuditEmitFailure() {
	m.AuditEmitFailures.Inc()
}

// ObserveOperation records the duration of operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveCacheHit() {
	m.CacheHits.Inc()
}

func (m *Metrics) ObserveCacheMiss() {
	m.CacheMisses.Inc()
}
