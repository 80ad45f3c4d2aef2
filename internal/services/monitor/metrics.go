package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the prometheus instruments for the client.
type Metrics struct {
	ConnectionState prometheus.Gauge
	ConnectAttempts prometheus.Counter
	Readings        *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec
	Commands        *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConnectionState: f.NewGauge(prometheus.GaugeOpts{
			Name: "plantwatch_connection_state",
			Help: "Connection state (0 disconnected, 1 connecting, 2 connected, 3 reconnecting, 4 failed).",
		}),
		ConnectAttempts: f.NewCounter(prometheus.CounterOpts{
			Name: "plantwatch_connect_attempts_total",
			Help: "Gateway connect attempts.",
		}),
		Readings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "plantwatch_readings_total",
			Help: "Normalized sensor readings applied, per device.",
		}, []string{"device"}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "plantwatch_events_published_total",
			Help: "Events published on the hub, per kind.",
		}, []string{"event"}),
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "plantwatch_commands_total",
			Help: "Actuation commands, per action and outcome.",
		}, []string{"action", "outcome"}),
	}
}
