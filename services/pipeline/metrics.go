package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the build counters exported on /metrics when serving.
type Metrics struct {
	Recipes   *prometheus.CounterVec
	Items     *prometheus.CounterVec
	Pauses    prometheus.Counter
	LastBuild prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil
// registerer leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Recipes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "curator",
			Name:      "recipes_total",
			Help:      "Recipes processed by the catalog build, by outcome.",
		}, []string{"outcome"}),
		Items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "curator",
			Name:      "items_total",
			Help:      "Discovered movies, by whether an IMDb id was resolved.",
		}, []string{"outcome"}),
		Pauses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "curator",
			Name:      "resolve_pauses_total",
			Help:      "Pacing delays taken between lookup chunks.",
		}),
		LastBuild: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "curator",
			Name:      "last_build_timestamp_seconds",
			Help:      "Unix time the last catalog build finished.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Recipes, m.Items, m.Pauses, m.LastBuild)
	}
	return m
}
