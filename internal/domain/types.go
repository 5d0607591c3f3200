package domain

import (
	"fmt"
	"time"
)

// EventType classifies an extreme weather event.
type EventType string

const (
	EventHeatwave    EventType = "heatwave"
	EventColdSpell   EventType = "cold_spell"
	EventHeavyPrecip EventType = "heavy_precip"
	EventHighWind    EventType = "high_wind"
	EventSnowstorm   EventType = "snowstorm"
)

// Metric names a single column of a normalized weather or traffic series.
type Metric string

const (
	MetricTemperature   Metric = "temperature"
	MetricPrecipitation Metric = "precipitation"
	MetricWindSpeed     Metric = "wind_speed"
	MetricSnowfall      Metric = "snowfall"

	MetricVolume          Metric = "volume"
	MetricAvgSpeed        Metric = "avg_speed"
	MetricCongestionIndex Metric = "congestion_index"
)

// Direction states which side of a rule threshold qualifies an observation.
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// Observation is one normalized weather reading for a city at a point in
// time. Uniquely keyed by (CityID, Timestamp); immutable once produced by
// the normalizer.
type Observation struct {
	CityID        string    `json:"city_id"`
	Timestamp     time.Time `json:"timestamp"`
	Temperature   float64   `json:"temperature"`
	Precipitation float64   `json:"precipitation"`
	WindSpeed     float64   `json:"wind_speed"`
	Snowfall      float64   `json:"snowfall"`
}

// Value returns the named weather metric column.
func (o Observation) Value(m Metric) (float64, bool) {
	switch m {
	case MetricTemperature:
		return o.Temperature, true
	case MetricPrecipitation:
		return o.Precipitation, true
	case MetricWindSpeed:
		return o.WindSpeed, true
	case MetricSnowfall:
		return o.Snowfall, true
	default:
		return 0, false
	}
}

// TrafficObservation is one normalized traffic reading, keyed like Observation.
type TrafficObservation struct {
	CityID          string    `json:"city_id"`
	Timestamp       time.Time `json:"timestamp"`
	Volume          float64   `json:"volume"`
	AvgSpeed        float64   `json:"avg_speed"`
	CongestionIndex float64   `json:"congestion_index"`
}

// Value returns the named traffic metric column.
func (o TrafficObservation) Value(m Metric) (float64, bool) {
	switch m {
	case MetricVolume:
		return o.Volume, true
	case MetricAvgSpeed:
		return o.AvgSpeed, true
	case MetricCongestionIndex:
		return o.CongestionIndex, true
	default:
		return 0, false
	}
}

// TimeRange is a closed interval [Start, End] in UTC.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies within the range, inclusive on both ends.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Overlaps reports whether the two closed intervals share at least one instant.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return !r.Start.After(other.End) && !other.Start.After(r.End)
}

// IsZero reports whether both bounds are unset.
func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// ExtremeEvent is a sustained run of observations crossing a rule threshold.
// Derived data: recomputed on every detection run, never mutated in place.
type ExtremeEvent struct {
	CityID        string        `json:"city_id"`
	EventType     EventType     `json:"event_type"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	Duration      time.Duration `json:"duration"`
	PeakValue     float64       `json:"peak_value"`
	SeverityScore float64       `json:"severity_score"`
}

// CorrelationResult reports the strongest lagged Pearson correlation between
// one weather metric and one traffic metric over a shared window.
//
// Defined=false is the explicit insufficient-data marker: the coefficient
// could not be computed (too few aligned samples, or zero variance) and
// callers must not read Coefficient as a measurement in that case.
type CorrelationResult struct {
	CityID        string    `json:"city_id"`
	WeatherMetric Metric    `json:"weather_metric"`
	TrafficMetric Metric    `json:"traffic_metric"`
	Window        TimeRange `json:"window"`
	Coefficient   float64   `json:"correlation_coefficient"`
	LagMinutes    int       `json:"lag_minutes"`
	SampleSize    int       `json:"sample_size"`
	Defined       bool      `json:"defined"`
	Reason        string    `json:"reason,omitempty"`
}

// Report packages one city's detected events and correlation results for the
// presentation layer. Pure aggregation; nothing in it is recomputed.
type Report struct {
	CityID       string              `json:"city_id"`
	Window       TimeRange           `json:"window"`
	Events       []ExtremeEvent      `json:"events"`
	EventCounts  map[EventType]int   `json:"event_counts"`
	Correlations []CorrelationResult `json:"correlations"`

	ObservationCount int       `json:"observation_count"`
	TrafficCount     int       `json:"traffic_count"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// MalformedRecordError describes a single raw record dropped during
// normalization. Per-record and non-fatal: the batch continues and the
// caller receives these aggregated as the skip count.
type MalformedRecordError struct {
	Index  int    // position of the record in the input batch
	Field  string // offending field name in source terms
	Reason string
}

func (e MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record %d: field %q: %s", e.Index, e.Field, e.Reason)
}

// InconsistentScopeError means report-assembly inputs reference different
// cities or non-overlapping windows. Fatal for that assembly call only.
type InconsistentScopeError struct {
	Detail string
}

func (e InconsistentScopeError) Error() string {
	return "inconsistent report scope: " + e.Detail
}
