package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "petstay"

// Metrics exposes the dashboard state as Prometheus collectors so the same
// numbers staff see are scrapeable.
type Metrics struct {
	CurrentGuests  prometheus.Gauge
	AvailableRooms prometheus.Gauge
	SpeciesGuests  *prometheus.GaugeVec
	UpdatesTotal   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CurrentGuests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_guests",
			Help:      "Pets currently boarded.",
		}),
		AvailableRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "available_rooms",
			Help:      "Rooms currently open for booking.",
		}),
		SpeciesGuests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "species_guests",
			Help:      "Boarded pets broken down by species.",
		}, []string{"species"}),
		UpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_updates_total",
			Help:      "Composite booking updates received on the stats channel.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.CurrentGuests, m.AvailableRooms, m.SpeciesGuests, m.UpdatesTotal)
	}
	return m
}
