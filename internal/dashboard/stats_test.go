package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"petstay-frontdesk/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event(metric, value string) domain.MetricEvent {
	return domain.MetricEvent{Metric: metric, Value: json.RawMessage(value)}
}

func TestApplyScalarMetrics(t *testing.T) {
	stats := NewStats(testLogger())

	stats.Apply(event(domain.MetricCurrentGuests, `14`))
	stats.Apply(event(domain.MetricAvailableRooms, `6`))

	snap := stats.Snapshot()
	require.Equal(t, 14, snap.CurrentGuests)
	require.Equal(t, 6, snap.AvailableRooms)
}

func TestApplySpeciesReplacesMap(t *testing.T) {
	stats := NewStats(testLogger())

	stats.Apply(event(domain.MetricSpeciesStats, `{"Dog":8,"Cat":3}`))
	stats.Apply(event(domain.MetricSpeciesStats, `{"Dog":9}`))

	snap := stats.Snapshot()
	require.Equal(t, map[string]int{"Dog": 9}, snap.Species)
}

func TestApplyTrendsCapsWindow(t *testing.T) {
	stats := NewStats(testLogger())

	points := make([]float64, 0, trendWindow+5)
	for i := 0; i < trendWindow+5; i++ {
		points = append(points, float64(i))
	}
	payload, err := json.Marshal(points)
	require.NoError(t, err)

	stats.Apply(event(domain.MetricBookingTrends, string(payload)))

	snap := stats.Snapshot()
	require.Len(t, snap.Trend, trendWindow)
	require.Equal(t, float64(5), snap.Trend[0])
	require.Equal(t, float64(trendWindow+4), snap.Trend[trendWindow-1])
}

func TestApplyBookingUpdatePartialFields(t *testing.T) {
	stats := NewStats(testLogger())
	stats.Apply(event(domain.MetricCurrentGuests, `10`))
	stats.Apply(event(domain.MetricAvailableRooms, `5`))

	stats.Apply(event(domain.MetricBookingUpdate, `{"currentGuests":11,"bookingTrendPoint":3.5}`))

	snap := stats.Snapshot()
	require.Equal(t, 11, snap.CurrentGuests)
	require.Equal(t, 5, snap.AvailableRooms, "absent fields stay untouched")
	require.Equal(t, []float64{3.5}, snap.Trend)
}

func TestBookingUpdateTrendPointRollsWindow(t *testing.T) {
	stats := NewStats(testLogger())

	for i := 0; i < trendWindow+3; i++ {
		stats.Apply(event(domain.MetricBookingUpdate, fmt.Sprintf(`{"bookingTrendPoint":%d}`, i)))
	}

	snap := stats.Snapshot()
	require.Len(t, snap.Trend, trendWindow)
	require.Equal(t, float64(3), snap.Trend[0])
}

func TestMalformedValuesAreDropped(t *testing.T) {
	stats := NewStats(testLogger())
	stats.Apply(event(domain.MetricCurrentGuests, `7`))

	stats.Apply(event(domain.MetricCurrentGuests, `"not a number"`))
	stats.Apply(event("someFutureMetric", `1`))

	require.Equal(t, 7, stats.Snapshot().CurrentGuests)
}

func TestSnapshotIsACopy(t *testing.T) {
	stats := NewStats(testLogger())
	stats.Apply(event(domain.MetricSpeciesStats, `{"Dog":2}`))

	snap := stats.Snapshot()
	snap.Species["Dog"] = 99
	snap.Trend = append(snap.Trend, 1.0)

	require.Equal(t, 2, stats.Snapshot().Species["Dog"])
	require.Empty(t, stats.Snapshot().Trend)
}

func TestPrometheusMirroring(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	stats := NewStats(testLogger(), WithMetrics(metrics))

	stats.Apply(event(domain.MetricCurrentGuests, `4`))
	stats.Apply(event(domain.MetricSpeciesStats, `{"Cat":2}`))
	stats.Apply(event(domain.MetricBookingUpdate, `{"availableRooms":9}`))

	require.Equal(t, float64(4), testutil.ToFloat64(metrics.CurrentGuests))
	require.Equal(t, float64(9), testutil.ToFloat64(metrics.AvailableRooms))
	require.Equal(t, float64(2), testutil.ToFloat64(metrics.SpeciesGuests.WithLabelValues("Cat")))
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.UpdatesTotal))
}

func TestConcurrentApplyAndSnapshot(t *testing.T) {
	stats := NewStats(testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				stats.Apply(event(domain.MetricCurrentGuests, fmt.Sprintf(`%d`, n)))
				_ = stats.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	snap := stats.Snapshot()
	require.GreaterOrEqual(t, snap.CurrentGuests, 0)
	require.Less(t, snap.CurrentGuests, 8)
}
