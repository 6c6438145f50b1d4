package entity

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/istore/internal/fault"
)

// Metrics holds Prometheus metrics for a Store. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	live    prometheus.Gauge
	created prometheus.Counter
	freed   prometheus.Counter

	loads        *prometheus.CounterVec // By driver
	saves        *prometheus.CounterVec // By driver
	loadDuration *prometheus.HistogramVec
	saveDuration *prometheus.HistogramVec

	errors *prometheus.CounterVec // By operation and kind
}

// NewMetrics creates store metrics and registers them with reg.
// A nil registerer disables metrics.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "istore",
			Subsystem: "store",
			Name:      "instances",
			Help:      "Number of instances currently registered, root schemas included",
		}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "istore",
			Subsystem: "store",
			Name:      "instances_registered_total",
			Help:      "Total number of instances registered",
		}),
		freed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "istore",
			Subsystem: "store",
			Name:      "instances_freed_total",
			Help:      "Total number of instances freed after their last release",
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "istore",
			Subsystem: "storage",
			Name:      "loads_total",
			Help:      "Total number of documents loaded",
		}, []string{"driver"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "istore",
			Subsystem: "storage",
			Name:      "saves_total",
			Help:      "Total number of documents saved",
		}, []string{"driver"}),
		loadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "istore",
			Subsystem: "storage",
			Name:      "load_duration_seconds",
			Help:      "Load duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"driver"}),
		saveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "istore",
			Subsystem: "storage",
			Name:      "save_duration_seconds",
			Help:      "Save duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"driver"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "istore",
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Total number of failed operations",
		}, []string{"operation", "kind"}),
	}

	for _, c := range []prometheus.Collector{
		m.live, m.created, m.freed,
		m.loads, m.saves, m.loadDuration, m.saveDuration,
		m.errors,
	} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) registered() {
	if m == nil {
		return
	}
	m.live.Inc()
	m.created.Inc()
}

func (m *Metrics) released() {
	if m == nil {
		return
	}
	m.live.Dec()
	m.freed.Inc()
}

func (m *Metrics) loaded(driver string, start time.Time) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(driver).Inc()
	m.loadDuration.WithLabelValues(driver).Observe(time.Since(start).Seconds())
}

func (m *Metrics) saved(driver string, start time.Time) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(driver).Inc()
	m.saveDuration.WithLabelValues(driver).Observe(time.Since(start).Seconds())
}

func (m *Metrics) failed(op string, err error) {
	if m == nil || err == nil {
		return
	}
	kind := fault.KindOf(err)
	label := "Unknown"
	if kind != "" {
		label = string(kind)
	}
	m.errors.WithLabelValues(op, label).Inc()
}
