package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the process-wide counters exposed on /metrics.
type Metrics struct {
	EventsIn    *prometheus.CounterVec
	Broadcasts  *prometheus.CounterVec
	RateLimited prometheus.Counter
	Connections prometheus.Gauge
	Rooms       prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		EventsIn: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "syncplayer_events_in_total",
			Help: "Inbound protocol events by name.",
		}, []string{"event"}),
		Broadcasts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "syncplayer_broadcasts_total",
			Help: "Outbound broadcast events by name.",
		}, []string{"event"}),
		RateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "syncplayer_rate_limited_total",
			Help: "Events dropped by the per-address rate limiter.",
		}),
		Connections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "syncplayer_connections",
			Help: "Live websocket connections.",
		}),
		Rooms: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "syncplayer_rooms",
			Help: "Live rooms.",
		}),
	}
}
