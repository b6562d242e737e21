package domain

import "encoding/json"

// Metric names published on the live dashboard topic.
const (
	MetricCurrentGuests  = "currentGuests"
	MetricAvailableRooms = "availableRooms"
	MetricSpeciesStats   = "speciesStats"
	MetricBookingTrends  = "bookingTrends"
	MetricBookingUpdate  = "bookingUpdate"
)

// MetricEvent is one message from the streaming stats channel. Value stays
// raw because its shape depends on Metric.
type MetricEvent struct {
	Metric string          `json:"metric"`
	Value  json.RawMessage `json:"value"`
}

// BookingUpdate is the composite shape published under MetricBookingUpdate.
// Pointer fields distinguish "absent" from zero.
type BookingUpdate struct {
	CurrentGuests     *int           `json:"currentGuests,omitempty"`
	AvailableRooms    *int           `json:"availableRooms,omitempty"`
	PetSpecies        map[string]int `json:"petSpecies,omitempty"`
	BookingTrendPoint *float64       `json:"bookingTrendPoint,omitempty"`
}
