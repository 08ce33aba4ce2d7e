package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LatencyBucketsMs covers gateway round trips and database transactions,
// from a few milliseconds up to the gateway client timeout.
var LatencyBucketsMs = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// Metric describes one collector. Type is one of counter_vec, histogram_vec
// or summary_vec.
type Metric struct {
	MetricCollector prometheus.Collector
	Name            string
	Description     string
	Type            string
	Args            []string
}

// NewMetric builds the collector for m under subsystem. It panics on an
// unknown type since metric definitions are static.
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	switch m.Type {
	case "counter_vec":
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      m.Name,
			Help:      m.Description,
		}, m.Args)
	case "histogram_vec":
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      m.Name,
			Help:      m.Description,
			Buckets:   LatencyBucketsMs,
		}, m.Args)
	case "summary_vec":
		return prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Subsystem: subsystem,
			Name:      m.Name,
			Help:      m.Description,
		}, m.Args)
	default:
		panic("metrics: unsupported metric type " + m.Type)
	}
}

var MetricsBusinessProcess = &Metric{
	Name:        "process_duration_ms",
	Description: "Business process latency in milliseconds, partitioned by process type and subtype.",
	Type:        "histogram_vec",
	Args:        []string{"type", "subtype"},
}
