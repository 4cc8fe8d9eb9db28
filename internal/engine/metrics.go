package engine

import (
	"github.com/colonyops/refine/internal/core/eventbus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks round outcomes from bus events.
type Metrics struct {
	rounds   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
	changed  *prometheus.CounterVec
	dropped  prometheus.Counter
}

// NewMetrics registers the round metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		rounds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "refine",
			Name:      "rounds_total",
			Help:      "Finished improvement rounds by status and rejection reason.",
		}, []string{"status", "reason"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "refine",
			Name:      "round_duration_seconds",
			Help:      "Wall time of improvement rounds, collaborator call included.",
			Buckets:   []float64{0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"status"}),
		inflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "refine",
			Name:      "rounds_in_flight",
			Help:      "Rounds started but not yet finished.",
		}),
		changed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "refine",
			Name:      "committed_lines_total",
			Help:      "Lines added and removed by committed rounds.",
		}, []string{"kind"}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "refine",
			Name:      "events_dropped_total",
			Help:      "Bus events dropped because the buffer was full.",
		}),
	}
}

// Subscribe wires the metrics to round events on bus.
func (m *Metrics) Subscribe(bus *eventbus.EventBus) {
	bus.SubscribeRoundStarted(func(eventbus.RoundStartedPayload) {
		m.inflight.Inc()
	})

	bus.SubscribeRoundCommitted(func(p eventbus.RoundCommittedPayload) {
		m.inflight.Dec()
		m.rounds.WithLabelValues(string(p.Result.Status), "").Inc()
		m.duration.WithLabelValues(string(p.Result.Status)).Observe(p.Result.Duration.Seconds())
		m.changed.WithLabelValues("added").Add(float64(p.Result.Stats.Added))
		m.changed.WithLabelValues("removed").Add(float64(p.Result.Stats.Removed))
	})

	bus.SubscribeRoundRejected(func(p eventbus.RoundRejectedPayload) {
		m.inflight.Dec()
		m.rounds.WithLabelValues(string(p.Result.Status), string(p.Result.Reason)).Inc()
		m.duration.WithLabelValues(string(p.Result.Status)).Observe(p.Result.Duration.Seconds())
	})

	bus.OnDrop(func(eventbus.Event, any) {
		m.dropped.Inc()
	})
}
