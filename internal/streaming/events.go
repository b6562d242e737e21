package streaming

import (
	"encoding/json"
	"errors"
	"fmt"

	"petstay-frontdesk/internal/domain"
)

var errUnknownMetric = errors.New("streaming: unknown metric")

type eventEnvelope struct {
	Metric string          `json:"metric"`
	Value  json.RawMessage `json:"value"`
}

func decodeEvent(payload []byte) (domain.MetricEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return domain.MetricEvent{}, fmt.Errorf("streaming: decode event: %w", err)
	}
	switch env.Metric {
	case domain.MetricCurrentGuests,
		domain.MetricAvailableRooms,
		domain.MetricSpeciesStats,
		domain.MetricBookingTrends,
		domain.MetricBookingUpdate:
	default:
		return domain.MetricEvent{}, fmt.Errorf("%w: %q", errUnknownMetric, env.Metric)
	}
	if len(env.Value) == 0 {
		return domain.MetricEvent{}, fmt.Errorf("streaming: metric %q has no value", env.Metric)
	}
	return domain.MetricEvent{Metric: env.Metric, Value: env.Value}, nil
}
