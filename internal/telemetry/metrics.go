package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"toastd/internal/toast"
)

// MetricsConfig configures the Prometheus sink.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "toastd").
	Namespace string
	// Registry receives the collectors (default: prometheus.DefaultRegisterer).
	Registry prometheus.Registerer
}

// Metrics counts scheduler activity in Prometheus collectors.
type Metrics struct {
	shown       *prometheus.CounterVec
	dismissed   *prometheus.CounterVec
	coalesced   prometheus.Counter
	dropped     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	duration    prometheus.Histogram
	active      prometheus.Gauge
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "toastd"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(cfg.Registry)
	const sub = "toast"

	return &Metrics{
		shown: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: sub,
			Name:      "shown_total",
			Help:      "Toasts handed to the presenter, by kind",
		}, []string{"kind"}),
		dismissed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: sub,
			Name:      "dismissed_total",
			Help:      "Toasts dismissed, by method",
		}, []string{"method"}),
		coalesced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: sub,
			Name:      "coalesced_total",
			Help:      "Arrivals merged into an existing toast",
		}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: sub,
			Name:      "dropped_total",
			Help:      "Arrivals rejected, by reason",
		}, []string{"reason"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: sub,
			Name:      "state_transitions_total",
			Help:      "Presentation state transitions",
		}, []string{"from", "to"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: sub,
			Name:      "display_duration_seconds",
			Help:      "Configured auto-dismiss duration of shown toasts (0 = sticky)",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 30, 60},
		}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: sub,
			Name:      "active",
			Help:      "1 while a toast is on screen",
		}),
	}
}

func (m *Metrics) ToastShown(_ toast.ID, kind toast.Kind, d time.Duration) {
	m.shown.WithLabelValues(string(kind)).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) ToastDismissed(_ toast.ID, method toast.DismissalMethod) {
	m.dismissed.WithLabelValues(method.String()).Inc()
}

func (m *Metrics) ToastCoalesced(toast.ID, toast.ID) { m.coalesced.Inc() }

func (m *Metrics) ToastDropped(_ toast.ID, reason toast.DropReason) {
	m.dropped.WithLabelValues(reason.String()).Inc()
}

func (m *Metrics) StateTransition(from, to toast.PresentationState) {
	m.transitions.WithLabelValues(from.Kind().String(), to.Kind().String()).Inc()
	if _, ok := to.Active(); ok && to.Kind() != toast.StateDismissing {
		m.active.Set(1)
	} else {
		m.active.Set(0)
	}
}
