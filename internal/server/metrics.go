package server

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"

	"github.com/AmanuelCh/whois-domain-lookup/internal/lookup"
)

// metricSet holds the server's Prometheus metrics
type metricSet struct {
	set      *metrics.Set
	duration *metrics.Histogram
	stale    *metrics.Counter
	sessions atomic.Int64
}

func newMetricSet() *metricSet {
	m := &metricSet{set: metrics.NewSet()}
	m.duration = m.set.NewHistogram("whoislookup_lookup_duration_seconds")
	m.stale = m.set.NewCounter("whoislookup_stale_responses_total")
	m.set.NewGauge("whoislookup_websocket_sessions", func() float64 {
		return float64(m.sessions.Load())
	})
	return m
}

// observe records one settled submission
func (m *metricSet) observe(r lookup.Report) {
	if r.Stale {
		m.stale.Inc()
	}

	name := `whoislookup_lookups_total{outcome="success"}`
	if f, ok := r.State.(lookup.Failure); ok {
		name = fmt.Sprintf(`whoislookup_lookups_total{outcome="failure",kind=%q}`, f.Kind)
	}
	m.set.GetOrCreateCounter(name).Inc()

	// Validation failures never reach the provider
	if f, ok := r.State.(lookup.Failure); !ok || f.Kind != lookup.KindValidation {
		m.duration.Update(r.Duration.Seconds())
	}
}

func (m *metricSet) write(w io.Writer) {
	m.set.WritePrometheus(w)
}
