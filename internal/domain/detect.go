package domain

import (
	"math"
	"sort"
	"time"
)

// Rule qualifies observations against a threshold on one metric and turns
// sufficiently long runs of them into events of one type.
type Rule struct {
	EventType   EventType     `json:"event_type"`
	Metric      Metric        `json:"metric"`
	Threshold   float64       `json:"threshold"`
	Direction   Direction     `json:"direction"`
	MinDuration time.Duration `json:"min_duration"`
}

// RuleSet bundles detection rules with the series' expected cadence.
// MaxGap is the largest timestamp delta that still counts as consecutive;
// zero means the sampling interval itself.
type RuleSet struct {
	Rules            []Rule        `json:"rules"`
	SamplingInterval time.Duration `json:"sampling_interval"`
	MaxGap           time.Duration `json:"max_gap,omitempty"`
}

// DefaultRuleSet returns the standard US operational thresholds (see the
// package documentation) scaled to the given sampling interval.
func DefaultRuleSet(interval time.Duration) RuleSet {
	return RuleSet{
		SamplingInterval: interval,
		Rules: []Rule{
			{EventType: EventHeatwave, Metric: MetricTemperature, Threshold: 90, Direction: DirectionAbove, MinDuration: 3 * interval},
			{EventType: EventColdSpell, Metric: MetricTemperature, Threshold: 32, Direction: DirectionBelow, MinDuration: 3 * interval},
			{EventType: EventHeavyPrecip, Metric: MetricPrecipitation, Threshold: 2.0, Direction: DirectionAbove, MinDuration: interval},
			{EventType: EventSnowstorm, Metric: MetricSnowfall, Threshold: 6.0, Direction: DirectionAbove, MinDuration: interval},
			{EventType: EventHighWind, Metric: MetricWindSpeed, Threshold: 20, Direction: DirectionAbove, MinDuration: interval},
		},
	}
}

// qualifies reports whether a value is on the rule's extreme side of the threshold.
func (r Rule) qualifies(value float64) bool {
	if r.Direction == DirectionBelow {
		return value < r.Threshold
	}
	return value > r.Threshold
}

// excess is the absolute distance from the threshold for a qualifying value.
func (r Rule) excess(value float64) float64 {
	return math.Abs(value - r.Threshold)
}

// run tracks an open stretch of consecutive qualifying observations.
type run struct {
	start    time.Time
	end      time.Time
	count    int
	peak     float64
	severity float64
}

// DetectEvents scans an ordered single-city Observation series and emits
// every run that satisfies a rule for at least its minimum duration. Rules
// are evaluated independently, so overlapping events of different types are
// all retained. The scan is deterministic: the same series and rule set
// always yield the same event sequence. An empty series yields no events.
func DetectEvents(observations []Observation, rules RuleSet) []ExtremeEvent {
	if len(observations) == 0 || len(rules.Rules) == 0 {
		return nil
	}

	maxGap := rules.MaxGap
	if maxGap <= 0 {
		maxGap = rules.SamplingInterval
	}

	var events []ExtremeEvent
	for _, rule := range rules.Rules {
		events = append(events, detectRule(observations, rule, rules.SamplingInterval, maxGap)...)
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].StartTime.Before(events[j].StartTime)
		}
		return events[i].EventType < events[j].EventType
	})
	return events
}

func detectRule(observations []Observation, rule Rule, interval, maxGap time.Duration) []ExtremeEvent {
	var events []ExtremeEvent
	var current *run
	cityID := observations[0].CityID

	closeRun := func() {
		if current == nil {
			return
		}
		if e, ok := current.toEvent(cityID, rule, interval); ok {
			events = append(events, e)
		}
		current = nil
	}

	var prev time.Time
	for i, obs := range observations {
		// A gap beyond the expected cadence ends the run; missing data is
		// never bridged into an event.
		if i > 0 && obs.Timestamp.Sub(prev) > maxGap {
			closeRun()
		}
		prev = obs.Timestamp

		value, ok := obs.Value(rule.Metric)
		if !ok || !rule.qualifies(value) {
			closeRun()
			continue
		}

		if current == nil {
			current = &run{start: obs.Timestamp, peak: value}
		}
		current.end = obs.Timestamp
		current.count++
		current.severity += rule.excess(value)
		if rule.excess(value) > rule.excess(current.peak) {
			current.peak = value
		}
	}

	// A run open at the end of the input closes at the last observation;
	// events are never discarded for running off the window edge.
	closeRun()
	return events
}

// toEvent converts a closed run into an event if its inclusive span meets
// the rule's minimum duration.
func (r *run) toEvent(cityID string, rule Rule, interval time.Duration) (ExtremeEvent, bool) {
	duration := r.end.Sub(r.start) + interval
	if duration < rule.MinDuration {
		return ExtremeEvent{}, false
	}
	return ExtremeEvent{
		CityID:        cityID,
		EventType:     rule.EventType,
		StartTime:     r.start,
		EndTime:       r.end,
		Duration:      duration,
		PeakValue:     r.peak,
		SeverityScore: r.severity,
	}, true
}
