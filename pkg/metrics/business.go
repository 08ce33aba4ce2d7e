package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var MetricsSubscriptionTransition = &Metric{
	Name:        "subscription_transition_total",
	Description: "Subscription lifecycle transitions, partitioned by from/to status and reason.",
	Type:        "counter_vec",
	Args:        []string{"from", "to", "reason"},
}

const Subsystem = "streambox"

// Business holds domain metrics recorded by services.
type Business struct {
	transitions *prometheus.CounterVec
	bpDur       *prometheus.HistogramVec
}

// NewBusiness registers the business metrics on reg. Already registered
// collectors are reused so repeated construction in tests stays safe.
func NewBusiness(reg prometheus.Registerer, log *zap.SugaredLogger) *Business {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	b := &Business{
		transitions: registerIn(reg, log, MetricsSubscriptionTransition, Subsystem).(*prometheus.CounterVec),
		bpDur:       registerIn(reg, log, MetricsBusinessProcess, Subsystem).(*prometheus.HistogramVec),
	}
	return b
}

func registerIn(reg prometheus.Registerer, log *zap.SugaredLogger, m *Metric, subsystem string) prometheus.Collector {
	c := NewMetric(m, subsystem)
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		if log != nil {
			log.Errorw("metric_register_failed", "metric", m.Name, "err", err)
		}
	}
	m.MetricCollector = c
	return c
}

// Transition counts a subscription status change.
func (b *Business) Transition(from, to, reason string) {
	if b == nil {
		return
	}
	if from == "" {
		from = "none"
	}
	b.transitions.WithLabelValues(from, to, reason).Inc()
}

// ObserveSince records a business process latency in milliseconds.
func (b *Business) ObserveSince(typ, subtype string, start time.Time) {
	if b == nil {
		return
	}
	b.bpDur.WithLabelValues(typ, subtype).Observe(MillisecondsSince(start))
}

func newDefaultBusiness(log *zap.SugaredLogger) *Business {
	return NewBusiness(prometheus.DefaultRegisterer, log)
}

var Module = fx.Options(
	fx.Provide(newDefaultBusiness),
)
