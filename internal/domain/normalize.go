package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// FieldMapping tells the normalizer how to read one source's raw records.
// Fields maps canonical metric names to the source's field names; metrics
// absent from the map normalize to zero (unmeasured).
type FieldMapping struct {
	Source      string            `json:"source"`
	CityField   string            `json:"city_field"`
	TimeField   string            `json:"time_field"`
	TimeLayouts []string          `json:"time_layouts,omitempty"`
	Fields      map[Metric]string `json:"fields"`
}

// defaultTimeLayouts are tried in order when a mapping names none.
var defaultTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeWeather converts raw weather records into an ordered Observation
// series: sorted ascending by timestamp, de-duplicated on (city, timestamp)
// with later records overriding earlier ones. Malformed records (missing
// city, missing or unparsable timestamp) are dropped and returned as
// MalformedRecordErrors; they never abort the batch.
func NormalizeWeather(records []map[string]any, mapping FieldMapping) ([]Observation, []MalformedRecordError) {
	byKey := make(map[seriesKey]Observation, len(records))
	var skipped []MalformedRecordError

	for i, rec := range records {
		city, ts, merr := recordKey(rec, mapping, i)
		if merr != nil {
			skipped = append(skipped, *merr)
			continue
		}
		byKey[seriesKey{city, ts.Unix()}] = Observation{
			CityID:        city,
			Timestamp:     ts,
			Temperature:   metricValue(rec, mapping, MetricTemperature),
			Precipitation: metricValue(rec, mapping, MetricPrecipitation),
			WindSpeed:     metricValue(rec, mapping, MetricWindSpeed),
			Snowfall:      metricValue(rec, mapping, MetricSnowfall),
		}
	}

	out := make([]Observation, 0, len(byKey))
	for _, o := range byKey {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].CityID < out[j].CityID
	})
	return out, skipped
}

// NormalizeTraffic is the traffic-series counterpart of NormalizeWeather,
// with identical ordering, de-duplication, and skip semantics.
func NormalizeTraffic(records []map[string]any, mapping FieldMapping) ([]TrafficObservation, []MalformedRecordError) {
	byKey := make(map[seriesKey]TrafficObservation, len(records))
	var skipped []MalformedRecordError

	for i, rec := range records {
		city, ts, merr := recordKey(rec, mapping, i)
		if merr != nil {
			skipped = append(skipped, *merr)
			continue
		}
		byKey[seriesKey{city, ts.Unix()}] = TrafficObservation{
			CityID:          city,
			Timestamp:       ts,
			Volume:          metricValue(rec, mapping, MetricVolume),
			AvgSpeed:        metricValue(rec, mapping, MetricAvgSpeed),
			CongestionIndex: metricValue(rec, mapping, MetricCongestionIndex),
		}
	}

	out := make([]TrafficObservation, 0, len(byKey))
	for _, o := range byKey {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].CityID < out[j].CityID
	})
	return out, skipped
}

type seriesKey struct {
	city string
	unix int64
}

// recordKey extracts and validates the (city, timestamp) key of a raw record.
func recordKey(rec map[string]any, mapping FieldMapping, index int) (string, time.Time, *MalformedRecordError) {
	city := strings.TrimSpace(coerceString(rec[mapping.CityField]))
	if city == "" {
		return "", time.Time{}, &MalformedRecordError{
			Index: index, Field: mapping.CityField, Reason: "missing city identifier",
		}
	}

	raw, ok := rec[mapping.TimeField]
	if !ok || raw == nil {
		return "", time.Time{}, &MalformedRecordError{
			Index: index, Field: mapping.TimeField, Reason: "missing timestamp",
		}
	}

	ts, ok := parseTimestamp(raw, mapping.TimeLayouts)
	if !ok {
		return "", time.Time{}, &MalformedRecordError{
			Index: index, Field: mapping.TimeField, Reason: "unparsable timestamp",
		}
	}
	return city, ts.UTC(), nil
}

// parseTimestamp accepts RFC3339-style strings (or the mapping's layouts),
// time.Time values, and numeric Unix seconds.
func parseTimestamp(raw any, layouts []string) (time.Time, bool) {
	if len(layouts) == 0 {
		layouts = defaultTimeLayouts
	}
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	case int:
		return time.Unix(int64(v), 0), true
	default:
		return time.Time{}, false
	}
}

// metricValue reads a mapped metric field, returning 0 when the field is
// unmapped, absent, or unparsable. Mirrors upstream feeds where empty or
// sentinel values mean "unmeasured".
func metricValue(rec map[string]any, mapping FieldMapping, m Metric) float64 {
	field, ok := mapping.Fields[m]
	if !ok {
		return 0
	}
	return coerceFloat(rec[field])
}

func coerceFloat(raw any) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func coerceString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}
