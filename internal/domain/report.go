package domain

import "fmt"

// AssembleReport packages detected events and correlation results for one
// city and window into a single Report. Pure aggregation: nothing is
// recomputed, inputs are copied, and summary counts are derived from the
// event list as given.
//
// Fails with InconsistentScopeError when an input references another city,
// an event lies outside the window, or a correlation window does not
// overlap the report window.
func AssembleReport(cityID string, window TimeRange, events []ExtremeEvent, correlations []CorrelationResult) (Report, error) {
	if window.End.Before(window.Start) {
		return Report{}, InconsistentScopeError{
			Detail: fmt.Sprintf("window end %s precedes start %s", window.End.Format(timeFmt), window.Start.Format(timeFmt)),
		}
	}

	for _, e := range events {
		if e.CityID != cityID {
			return Report{}, InconsistentScopeError{
				Detail: fmt.Sprintf("event %s belongs to city %q, report is for %q", e.EventType, e.CityID, cityID),
			}
		}
		if !window.Contains(e.StartTime) || !window.Contains(e.EndTime) {
			return Report{}, InconsistentScopeError{
				Detail: fmt.Sprintf("event %s [%s, %s] outside report window [%s, %s]",
					e.EventType,
					e.StartTime.Format(timeFmt), e.EndTime.Format(timeFmt),
					window.Start.Format(timeFmt), window.End.Format(timeFmt)),
			}
		}
	}

	for _, c := range correlations {
		if c.CityID != "" && c.CityID != cityID {
			return Report{}, InconsistentScopeError{
				Detail: fmt.Sprintf("correlation %s/%s belongs to city %q, report is for %q",
					c.WeatherMetric, c.TrafficMetric, c.CityID, cityID),
			}
		}
		if !c.Window.IsZero() && !c.Window.Overlaps(window) {
			return Report{}, InconsistentScopeError{
				Detail: fmt.Sprintf("correlation %s/%s window does not overlap report window",
					c.WeatherMetric, c.TrafficMetric),
			}
		}
	}

	counts := make(map[EventType]int, len(events))
	for _, e := range events {
		counts[e.EventType]++
	}

	return Report{
		CityID:       cityID,
		Window:       window,
		Events:       append([]ExtremeEvent(nil), events...),
		EventCounts:  counts,
		Correlations: append([]CorrelationResult(nil), correlations...),
		GeneratedAt:  clock.Now().UTC(),
	}, nil
}

const timeFmt = "2006-01-02T15:04:05Z07:00"
