// Package metrics holds the Prometheus metrics of the commission engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	// Ledger metrics
	CommissionsRecorded *prometheus.CounterVec
	NewStoreFailures    prometheus.Counter
	LegacyWriteFailures prometheus.Counter
	DuplicatesRejected  *prometheus.CounterVec
	LegacyStartup       *prometheus.CounterVec

	// Computation metrics
	RateNotFound         prometheus.Counter
	NormalizationDefault *prometheus.CounterVec

	// Read path metrics
	Reads *prometheus.CounterVec

	// Payout metrics
	PayoutItems *prometheus.CounterVec
}

// NewMetrics creates and registers metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		CommissionsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commission_recorded_total",
				Help: "Commissions written to the new store",
			},
			[]string{"commission_type"},
		),

		NewStoreFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "commission_new_store_write_failures_total",
				Help: "Failed authoritative commission writes",
			},
		),

		LegacyWriteFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "commission_legacy_write_failures_total",
				Help: "Failed best-effort legacy mirror writes (store drift)",
			},
		),

		DuplicatesRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commission_duplicates_rejected_total",
				Help: "Commission writes rejected by the uniqueness constraint",
			},
			[]string{"commission_type"},
		),

		LegacyStartup: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commission_legacy_startup_failures_total",
				Help: "Legacy store checks that failed at startup, by stage",
			},
			[]string{"stage"},
		),

		RateNotFound: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "commission_rate_not_found_total",
				Help: "Enrollments left without a commission because no rate matched",
			},
		),

		NormalizationDefault: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commission_normalization_defaults_total",
				Help: "Plan or coverage strings that matched no keyword",
			},
			[]string{"field"},
		),

		Reads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commission_reads_total",
				Help: "Commission queries by the store that served them",
			},
			[]string{"source"},
		),

		PayoutItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commission_payout_items_total",
				Help: "Per-commission payout outcomes",
			},
			[]string{"operation", "result"},
		),
	}
}

func (m *Metrics) IncRecorded(commissionType string) {
	if m == nil {
		return
	}
	m.CommissionsRecorded.WithLabelValues(commissionType).Inc()
}

func (m *Metrics) IncNewStoreFailure() {
	if m == nil {
		return
	}
	m.NewStoreFailures.Inc()
}

func (m *Metrics) IncLegacyFailure() {
	if m == nil {
		return
	}
	m.LegacyWriteFailures.Inc()
}

// IncLegacyStartupFailure records a legacy store startup check that failed:
// "open", "ping" or "index".
func (m *Metrics) IncLegacyStartupFailure(stage string) {
	if m == nil {
		return
	}
	m.LegacyStartup.WithLabelValues(stage).Inc()
}

func (m *Metrics) IncDuplicate(commissionType string) {
	if m == nil {
		return
	}
	m.DuplicatesRejected.WithLabelValues(commissionType).Inc()
}

func (m *Metrics) IncRateNotFound() {
	if m == nil {
		return
	}
	m.RateNotFound.Inc()
}

func (m *Metrics) IncNormalizationDefault(field string) {
	if m == nil {
		return
	}
	m.NormalizationDefault.WithLabelValues(field).Inc()
}

// IncRead records which store served a query: "new", "legacy" or "empty".
func (m *Metrics) IncRead(source string) {
	if m == nil {
		return
	}
	m.Reads.WithLabelValues(source).Inc()
}

func (m *Metrics) IncPayout(operation string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.PayoutItems.WithLabelValues(operation, result).Inc()
}
