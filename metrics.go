package bundle

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "bundle"

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	// Fetches counts physical bundle transfers started.
	Fetches prometheus.Counter
	// FetchFailures counts transfers that failed.
	FetchFailures prometheus.Counter
	// FetchedBytes counts bundle bytes received from the origin.
	FetchedBytes prometheus.Counter
	// CacheHits counts acquisitions served from the durable store.
	CacheHits prometheus.Counter
	// StalePurges counts durable copies purged after a hash change.
	StalePurges prometheus.Counter
	// Coalesced counts acquisitions that joined an in-flight request.
	Coalesced prometheus.Counter
	// Resident tracks the number of resident bundles.
	Resident prometheus.Gauge
}

// NewMetrics creates the engine collectors and registers them with reg.
// A nil reg leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Fetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fetches_total",
			Help:      "Bundle transfers started.",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fetch_failures_total",
			Help:      "Bundle transfers that failed.",
		}),
		FetchedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fetched_bytes_total",
			Help:      "Bundle bytes received from the origin.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_hits_total",
			Help:      "Acquisitions served from the local store.",
		}),
		StalePurges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stale_purges_total",
			Help:      "Local copies purged because the published hash changed.",
		}),
		Coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "coalesced_total",
			Help:      "Acquisitions that joined an in-flight request.",
		}),
		Resident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "resident_bundles",
			Help:      "Bundles currently resident.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Fetches,
		m.FetchFailures,
		m.FetchedBytes,
		m.CacheHits,
		m.StalePurges,
		m.Coalesced,
		m.Resident,
	}
}
