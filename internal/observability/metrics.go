package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "interviewledger"

// Metrics groups the collectors emitted by the pricing and ledger services.
type Metrics struct {
	PriceChangesApplied    *prometheus.CounterVec
	PriceChangesSuperseded *prometheus.CounterVec
	PriceChangesFailed     *prometheus.CounterVec
	TickDuration           prometheus.Histogram
	CASConflicts           *prometheus.CounterVec
	StaleResolutions       prometheus.Counter
	PurchasesCompleted     prometheus.Counter
	SessionsConsumed       prometheus.Counter
	PurchaseAnomalies      *prometheus.CounterVec
}

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PriceChangesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricechange",
			Name:      "applied_total",
			Help:      "Scheduled price changes applied to the pricing store.",
		}, []string{"scope", "field"}),
		PriceChangesSuperseded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricechange",
			Name:      "superseded_total",
			Help:      "Scheduled price changes marked applied without writing because a later-dated change already applied.",
		}, []string{"scope", "field"}),
		PriceChangesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricechange",
			Name:      "failed_total",
			Help:      "Scheduled price changes left scheduled after a failed apply attempt.",
		}, []string{"scope", "field"}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pricechange",
			Name:      "tick_duration_seconds",
			Help:      "Duration of scheduler ticks.",
			Buckets:   prometheus.DefBuckets,
		}),
		CASConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cas_conflicts_total",
			Help:      "Optimistic concurrency conflicts that triggered a retry.",
		}, []string{"operation"}),
		StaleResolutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "stale_resolutions_total",
			Help:      "Resolutions served from the last-known-good snapshot.",
		}),
		PurchasesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "purchases_completed_total",
			Help:      "Session purchases completed.",
		}),
		SessionsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "sessions_consumed_total",
			Help:      "Interview sessions consumed.",
		}),
		PurchaseAnomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "purchase_anomalies_total",
			Help:      "Malformed purchase records flagged during ingestion or reads.",
		}, []string{"reason"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.PriceChangesApplied,
			m.PriceChangesSuperseded,
			m.PriceChangesFailed,
			m.TickDuration,
			m.CASConflicts,
			m.StaleResolutions,
			m.PurchasesCompleted,
			m.SessionsConsumed,
			m.PurchaseAnomalies,
		)
	}
	return m
}

// NewNopMetrics returns unregistered collectors, handy in tests.
func NewNopMetrics() *Metrics {
	return NewMetrics(nil)
}
