// Package dashboard folds streamed metric events into the occupancy view
// served to front desk staff.
package dashboard

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"petstay-frontdesk/internal/domain"
)

// trendWindow caps how many trend points the dashboard retains.
const trendWindow = 20

// Snapshot is a point-in-time copy of the dashboard state, safe to hand to
// an encoder while events keep arriving.
type Snapshot struct {
	CurrentGuests  int            `json:"currentGuests"`
	AvailableRooms int            `json:"availableRooms"`
	Species        map[string]int `json:"petSpecies"`
	Trend          []float64      `json:"bookingTrends"`
}

// Stats accumulates metric events. All methods are safe for concurrent use.
type Stats struct {
	mu      sync.Mutex
	guests  int
	rooms   int
	species map[string]int
	trend   []float64
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Stats)

// WithMetrics mirrors every applied event onto Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Stats) { s.metrics = m }
}

func NewStats(logger *slog.Logger, opts ...Option) *Stats {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stats{
		species: make(map[string]int),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply merges one event into the state. Malformed values are logged and
// dropped so a bad publisher cannot wedge the dashboard.
func (s *Stats) Apply(event domain.MetricEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch event.Metric {
	case domain.MetricCurrentGuests:
		err = s.applyGuests(event.Value)
	case domain.MetricAvailableRooms:
		err = s.applyRooms(event.Value)
	case domain.MetricSpeciesStats:
		err = s.applySpecies(event.Value)
	case domain.MetricBookingTrends:
		err = s.applyTrends(event.Value)
	case domain.MetricBookingUpdate:
		err = s.applyUpdate(event.Value)
	default:
		err = fmt.Errorf("dashboard: unknown metric %q", event.Metric)
	}
	if err != nil {
		s.logger.Warn("dropping metric event", "metric", event.Metric, "error", err)
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	species := make(map[string]int, len(s.species))
	for k, v := range s.species {
		species[k] = v
	}
	trend := make([]float64, len(s.trend))
	copy(trend, s.trend)
	return Snapshot{
		CurrentGuests:  s.guests,
		AvailableRooms: s.rooms,
		Species:        species,
		Trend:          trend,
	}
}

func (s *Stats) applyGuests(value json.RawMessage) error {
	var n int
	if err := json.Unmarshal(value, &n); err != nil {
		return err
	}
	s.setGuests(n)
	return nil
}

func (s *Stats) applyRooms(value json.RawMessage) error {
	var n int
	if err := json.Unmarshal(value, &n); err != nil {
		return err
	}
	s.setRooms(n)
	return nil
}

func (s *Stats) applySpecies(value json.RawMessage) error {
	var counts map[string]int
	if err := json.Unmarshal(value, &counts); err != nil {
		return err
	}
	s.setSpecies(counts)
	return nil
}

func (s *Stats) applyTrends(value json.RawMessage) error {
	var points []float64
	if err := json.Unmarshal(value, &points); err != nil {
		return err
	}
	if len(points) > trendWindow {
		points = points[len(points)-trendWindow:]
	}
	s.trend = append(s.trend[:0], points...)
	return nil
}

// applyUpdate handles the composite bookingUpdate shape, where only the
// fields present in the payload change.
func (s *Stats) applyUpdate(value json.RawMessage) error {
	var update domain.BookingUpdate
	if err := json.Unmarshal(value, &update); err != nil {
		return err
	}
	if update.CurrentGuests != nil {
		s.setGuests(*update.CurrentGuests)
	}
	if update.AvailableRooms != nil {
		s.setRooms(*update.AvailableRooms)
	}
	if update.PetSpecies != nil {
		s.setSpecies(update.PetSpecies)
	}
	if update.BookingTrendPoint != nil {
		s.pushTrendPoint(*update.BookingTrendPoint)
	}
	if s.metrics != nil {
		s.metrics.UpdatesTotal.Inc()
	}
	return nil
}

func (s *Stats) setGuests(n int) {
	s.guests = n
	if s.metrics != nil {
		s.metrics.CurrentGuests.Set(float64(n))
	}
}

func (s *Stats) setRooms(n int) {
	s.rooms = n
	if s.metrics != nil {
		s.metrics.AvailableRooms.Set(float64(n))
	}
}

func (s *Stats) setSpecies(counts map[string]int) {
	s.species = make(map[string]int, len(counts))
	for k, v := range counts {
		s.species[k] = v
	}
	if s.metrics != nil {
		s.metrics.SpeciesGuests.Reset()
		for k, v := range counts {
			s.metrics.SpeciesGuests.WithLabelValues(k).Set(float64(v))
		}
	}
}

func (s *Stats) pushTrendPoint(p float64) {
	s.trend = append(s.trend, p)
	if len(s.trend) > trendWindow {
		s.trend = s.trend[len(s.trend)-trendWindow:]
	}
}
