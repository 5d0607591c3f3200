package pipeline_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-traffic-insights/internal/config"
	"github.com/couchcryptid/weather-traffic-insights/internal/domain"
	"github.com/couchcryptid/weather-traffic-insights/internal/observability"
	"github.com/couchcryptid/weather-traffic-insights/internal/pipeline"
)

func trafficRaw(t *testing.T, city, timestamp string, volume, speed, congestion float64) domain.RawEvent {
	t.Helper()
	value, err := json.Marshal(map[string]any{
		"city": city, "timestamp": timestamp,
		"traffic_volume": volume, "avg_speed": speed, "congestion_index": congestion,
	})
	require.NoError(t, err)
	return domain.RawEvent{
		Value:   value,
		Headers: map[string]string{"source": "citydot"},
		Topic:   "raw-observations",
	}
}

func TestAnalyzeBatch_MixedSources(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	analyzer := testAnalyzer(t, metrics)

	batch := hotWeekBatch(t, "austin", nil)
	for i := 0; i < 5; i++ {
		ts := fmt.Sprintf("2024-07-%02dT00:00:00Z", i+1)
		batch = append(batch, trafficRaw(t, "austin", ts, 10000+float64(i)*500, 32-float64(i), 0.4+float64(i)*0.05))
	}

	reports, stats := analyzer.AnalyzeBatch(context.Background(), batch)

	require.Len(t, reports, 1)
	assert.Equal(t, 0, stats.Malformed)
	assert.Equal(t, 1, stats.Cities)

	report := reports[0]
	assert.Equal(t, "austin", report.CityID)
	assert.Equal(t, 5, report.ObservationCount)
	assert.Equal(t, 5, report.TrafficCount)
	assert.Equal(t, 1, report.EventCounts[domain.EventHeatwave])

	// Five daily samples is below the correlation minimum, so every pair
	// must carry the explicit insufficient-data marker instead of a value.
	require.NotEmpty(t, report.Correlations)
	for _, c := range report.Correlations {
		assert.False(t, c.Defined, "pair %s/%s", c.WeatherMetric, c.TrafficMetric)
		assert.NotEmpty(t, c.Reason)
	}
}

func TestAnalyzeBatch_MultipleCitiesSorted(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	analyzer := testAnalyzer(t, metrics)

	batch := hotWeekBatch(t, "dallas", nil)
	batch = append(batch, hotWeekBatch(t, "austin", nil)...)

	reports, stats := analyzer.AnalyzeBatch(context.Background(), batch)

	require.Len(t, reports, 2)
	assert.Equal(t, 2, stats.Cities)
	assert.Equal(t, "austin", reports[0].CityID)
	assert.Equal(t, "dallas", reports[1].CityID)
}

func TestAnalyzeBatch_UnknownSourceCountedMalformed(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	analyzer := testAnalyzer(t, metrics)

	batch := hotWeekBatch(t, "austin", nil)
	batch = append(batch, domain.RawEvent{
		Value:   []byte(`{"city":"austin"}`),
		Headers: map[string]string{"source": "mysteryfeed"},
	})

	reports, stats := analyzer.AnalyzeBatch(context.Background(), batch)

	require.Len(t, reports, 1)
	assert.Equal(t, 1, stats.Malformed)
}

func TestAnalyzeBatch_NormalizationSkipsSurfaced(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	analyzer := testAnalyzer(t, metrics)

	batch := hotWeekBatch(t, "austin", nil)
	// Valid JSON but missing the timestamp field, dropped during normalization.
	batch = append(batch, domain.RawEvent{
		Value:   []byte(`{"city":"austin","TMAX":99.0}`),
		Headers: map[string]string{"source": "noaa"},
	})

	reports, stats := analyzer.AnalyzeBatch(context.Background(), batch)

	require.Len(t, reports, 1)
	assert.Equal(t, 1, stats.Malformed)
	assert.Equal(t, 5, reports[0].ObservationCount)
}

func TestAnalyzeBatch_EmptyBatch(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	analyzer := testAnalyzer(t, metrics)

	reports, stats := analyzer.AnalyzeBatch(context.Background(), nil)

	assert.Empty(t, reports)
	assert.Equal(t, 0, stats.Malformed)
	assert.Equal(t, 0, stats.Cities)
}

func TestAnalyzeBatch_Deterministic(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(clockwork.NewRealClock()) })

	metrics := observability.NewMetricsForTesting()
	analyzer := testAnalyzer(t, metrics)

	batch := hotWeekBatch(t, "austin", nil)
	for i := 0; i < 5; i++ {
		ts := fmt.Sprintf("2024-07-%02dT00:00:00Z", i+1)
		batch = append(batch, trafficRaw(t, "austin", ts, 9000, 30, 0.5))
	}

	first, _ := analyzer.AnalyzeBatch(context.Background(), batch)
	second, _ := analyzer.AnalyzeBatch(context.Background(), batch)

	if diff := cmp.Diff(first, second, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("repeated analysis diverged (-first +second):\n%s", diff)
	}
}

func BenchmarkAnalyzeBatch(b *testing.B) {
	metrics := observability.NewMetricsForTesting()
	cfg, err := config.Load()
	if err != nil {
		b.Fatal(err)
	}
	analyzer := pipeline.NewAnalyzer(cfg, slog.Default(), metrics)

	batch := make([]domain.RawEvent, 0, 100)
	for i := 0; i < 100; i++ {
		day := i%28 + 1
		value, _ := json.Marshal(map[string]any{
			"city": fmt.Sprintf("city-%d", i%4), "date": fmt.Sprintf("2024-07-%02d", day),
			"TMAX": 80 + float64(i%20), "PRCP": 0.1, "AWND": 8.0, "SNOW": 0.0,
		})
		batch = append(batch, domain.RawEvent{Value: value, Headers: map[string]string{"source": "noaa"}})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		analyzer.AnalyzeBatch(context.Background(), batch)
	}
}
