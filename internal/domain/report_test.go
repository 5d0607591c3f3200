package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func julyWindow() TimeRange {
	return TimeRange{
		Start: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestAssembleReport(t *testing.T) {
	window := julyWindow()

	events := []ExtremeEvent{
		{CityID: "austin", EventType: EventHeatwave, StartTime: window.Start.Add(2 * day), EndTime: window.Start.Add(6 * day), SeverityScore: 14},
		{CityID: "austin", EventType: EventHeatwave, StartTime: window.Start.Add(20 * day), EndTime: window.Start.Add(24 * day), SeverityScore: 9},
		{CityID: "austin", EventType: EventHighWind, StartTime: window.Start.Add(3 * day), EndTime: window.Start.Add(3 * day), SeverityScore: 5},
	}
	correlations := []CorrelationResult{
		{CityID: "austin", WeatherMetric: MetricPrecipitation, TrafficMetric: MetricCongestionIndex, Window: window, Coefficient: 0.82, SampleSize: 28, Defined: true},
		{CityID: "austin", WeatherMetric: MetricTemperature, TrafficMetric: MetricVolume, SampleSize: 4, Defined: false, Reason: "aligned sample size 4 below minimum 10"},
	}

	t.Run("aggregates events, counts, and correlations", func(t *testing.T) {
		frozen := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
		SetClock(clockwork.NewFakeClockAt(frozen))
		defer SetClock(nil)

		report, err := AssembleReport("austin", window, events, correlations)

		require.NoError(t, err)
		assert.Equal(t, "austin", report.CityID)
		assert.Equal(t, window, report.Window)
		assert.Len(t, report.Events, 3)
		assert.Equal(t, 2, report.EventCounts[EventHeatwave])
		assert.Equal(t, 1, report.EventCounts[EventHighWind])
		assert.Len(t, report.Correlations, 2)
		assert.Equal(t, frozen, report.GeneratedAt)
	})

	t.Run("copies inputs instead of aliasing them", func(t *testing.T) {
		report, err := AssembleReport("austin", window, events, correlations)
		require.NoError(t, err)

		report.Events[0].SeverityScore = -1
		assert.Equal(t, 14.0, events[0].SeverityScore)
	})

	t.Run("empty inputs are a valid empty report", func(t *testing.T) {
		report, err := AssembleReport("austin", window, nil, nil)

		require.NoError(t, err)
		assert.Empty(t, report.Events)
		assert.Empty(t, report.Correlations)
		assert.Empty(t, report.EventCounts)
	})

	t.Run("rejects an event from another city", func(t *testing.T) {
		foreign := []ExtremeEvent{
			{CityID: "dallas", EventType: EventHeatwave, StartTime: window.Start, EndTime: window.Start.Add(3 * day)},
		}

		_, err := AssembleReport("austin", window, foreign, nil)

		var scopeErr InconsistentScopeError
		require.ErrorAs(t, err, &scopeErr)
		assert.Contains(t, scopeErr.Detail, "dallas")
	})

	t.Run("rejects an event outside the window", func(t *testing.T) {
		outside := []ExtremeEvent{
			{CityID: "austin", EventType: EventColdSpell, StartTime: window.End.Add(day), EndTime: window.End.Add(4 * day)},
		}

		_, err := AssembleReport("austin", window, outside, nil)

		var scopeErr InconsistentScopeError
		require.ErrorAs(t, err, &scopeErr)
	})

	t.Run("rejects a correlation from another city", func(t *testing.T) {
		foreign := []CorrelationResult{
			{CityID: "dallas", WeatherMetric: MetricPrecipitation, TrafficMetric: MetricVolume, Defined: true},
		}

		_, err := AssembleReport("austin", window, nil, foreign)

		var scopeErr InconsistentScopeError
		require.ErrorAs(t, err, &scopeErr)
	})

	t.Run("rejects a non-overlapping correlation window", func(t *testing.T) {
		disjoint := []CorrelationResult{
			{
				CityID:        "austin",
				WeatherMetric: MetricPrecipitation,
				TrafficMetric: MetricCongestionIndex,
				Window: TimeRange{
					Start: window.End.Add(day),
					End:   window.End.Add(10 * day),
				},
				Defined: true,
			},
		}

		_, err := AssembleReport("austin", window, nil, disjoint)

		var scopeErr InconsistentScopeError
		require.ErrorAs(t, err, &scopeErr)
		assert.Contains(t, err.Error(), "overlap")
	})

	t.Run("rejects an inverted window", func(t *testing.T) {
		inverted := TimeRange{Start: window.End, End: window.Start}

		_, err := AssembleReport("austin", inverted, nil, nil)

		var scopeErr InconsistentScopeError
		require.ErrorAs(t, err, &scopeErr)
	})
}
