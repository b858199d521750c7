// Package metrics records poller, delivery, and query metrics on a private Prometheus registry.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "placardwatch"

// Recorder owns every collector the service exports.
type Recorder struct {
	registry *prometheus.Registry

	cycles        prometheus.Counter
	cycleFailures prometheus.Counter
	tradesSeen    prometheus.Counter
	watermark     prometheus.Gauge
	deliveries    *prometheus.CounterVec
	queryLatency  *prometheus.HistogramVec
	queryErrors   *prometheus.CounterVec
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycles_total",
			Help:      "Completed poll cycles",
		}),
		cycleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycle_failures_total",
			Help:      "Poll cycles aborted by a storage error",
		}),
		tradesSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "trades_total",
			Help:      "New trades handed to the notifier",
		}),
		watermark: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "watermark",
			Help:      "Highest trade id already processed",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification sends by outcome",
		}, []string{"outcome"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "latency_seconds",
			Help:      "Latency of analytics queries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
		queryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "errors_total",
			Help:      "Errors by analytics query",
		}, []string{"query"}),
	}
	r.registry.MustRegister(
		r.cycles, r.cycleFailures, r.tradesSeen, r.watermark,
		r.deliveries, r.queryLatency, r.queryErrors,
	)
	return r
}

// Registry exposes the registry for the /metrics handler.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// ObserveCycle records one poll cycle and the number of trades it handled.
func (r *Recorder) ObserveCycle(trades int, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.cycleFailures.Inc()
		return
	}
	r.cycles.Inc()
	r.tradesSeen.Add(float64(trades))
}

func (r *Recorder) SetWatermark(id int64) {
	if r == nil {
		return
	}
	r.watermark.Set(float64(id))
}

// ObserveDelivery counts one per-recipient send.
func (r *Recorder) ObserveDelivery(err error) {
	if r == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	r.deliveries.WithLabelValues(outcome).Inc()
}

// ObserveQuery records the latency of one analytics query, counting failures separately.
func (r *Recorder) ObserveQuery(query string, started time.Time, err error) {
	if r == nil {
		return
	}
	r.queryLatency.WithLabelValues(query).Observe(time.Since(started).Seconds())
	if err != nil {
		r.queryErrors.WithLabelValues(query).Inc()
	}
}
