package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set bundles the engine's prometheus collectors. A fresh Set with its own
// registry per process (and per test) avoids global registration conflicts.
type Set struct {
	Registry *prometheus.Registry

	Detections     *prometheus.CounterVec
	Actions        *prometheus.CounterVec
	RaidModeActive prometheus.Gauge
}

func New() *Set {
	set := &Set{
		Registry: prometheus.NewRegistry(),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartbot_detections_total",
			Help: "Detection triggers by detector kind.",
		}, []string{"kind"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartbot_actions_total",
			Help: "Moderation action requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		RaidModeActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartbot_raid_mode_active",
			Help: "Number of guilds currently in raid mode.",
		}),
	}
	set.Registry.MustRegister(set.Detections, set.Actions, set.RaidModeActive)
	return set
}

func (s *Set) ObserveAction(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.Actions.WithLabelValues(kind, outcome).Inc()
}
