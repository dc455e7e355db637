package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	SecondsToOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "optibase",
			Subsystem: "session",
			Name:      "seconds_to_open",
			Help:      "Seconds remaining until the session window opens",
		},
	)

	SessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "optibase",
			Subsystem: "session",
			Name:      "state",
			Help:      "Current orchestrator state (1 = active state)",
		},
		[]string{"state"},
	)

	MinuteHeartbeats = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "optibase",
			Subsystem: "session",
			Name:      "minute_heartbeats_total",
			Help:      "Minute boundaries processed during the session",
		},
	)

	HelperRestarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "optibase",
			Subsystem: "session",
			Name:      "helper_restarts_total",
			Help:      "Times the helper process was restarted",
		},
	)
)

// Register installs the session metrics exactly once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(SecondsToOpen, SessionState, MinuteHeartbeats, HelperRestarts)
	})
}
