package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the core EnvMon platform metrics shared across components.
type Metrics struct {
	// SamplesIngested counts ingestion outcomes per transport.
	// Labels: transport (rpc|broker|http), outcome (accepted|unknown_device|inactive_device|malformed).
	SamplesIngested *prometheus.CounterVec

	// IngestLatency observes receivedAt - generatedAt per transport, in seconds.
	IngestLatency *prometheus.HistogramVec

	// ActiveDevices tracks the size of the active-device snapshot per protocol.
	ActiveDevices *prometheus.GaugeVec

	// CacheRefreshes counts active-device cache refresh outcomes.
	// Labels: outcome (success|failure).
	CacheRefreshes *prometheus.CounterVec
}

// NewMetrics creates the core metric set
func NewMetrics() *Metrics {
	return &Metrics{
		SamplesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "envmon_samples_ingested_total",
			Help: "Ingestion outcomes by transport",
		}, []string{"transport", "outcome"}),
		IngestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "envmon_ingest_latency_seconds",
			Help:    "Latency between sample generation and persistence",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"transport"}),
		ActiveDevices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "envmon_active_devices",
			Help: "Active devices in the snapshot by protocol",
		}, []string{"protocol"}),
		CacheRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "envmon_device_cache_refreshes_total",
			Help: "Active-device cache refresh outcomes",
		}, []string{"outcome"}),
	}
}

func (r *MetricsRegistry) registerCoreMetrics() {
	r.prometheusRegistry.MustRegister(
		r.Metrics.SamplesIngested,
		r.Metrics.IngestLatency,
		r.Metrics.ActiveDevices,
		r.Metrics.CacheRefreshes,
	)
}
