package domain

import (
	"fmt"
	"math"
	"time"
)

// CorrelationConfig describes one weather/traffic metric pair to correlate
// and the alignment parameters for it. Lags shift the traffic series back
// relative to the weather series, so a positive lag detects delayed effects
// (congestion some minutes after rainfall onset).
type CorrelationConfig struct {
	WeatherMetric Metric        `json:"weather_metric"`
	TrafficMetric Metric        `json:"traffic_metric"`
	LagMin        time.Duration `json:"lag_min"`
	LagMax        time.Duration `json:"lag_max"`
	LagStep       time.Duration `json:"lag_step"`
	Tolerance     time.Duration `json:"tolerance"`
	MinSamples    int           `json:"min_samples"`
}

// DefaultCorrelationConfig returns the baseline parameters: no negative
// lags, a two-hour search in 15-minute steps, 30-minute match tolerance,
// and at least 10 aligned pairs before a coefficient is reported.
func DefaultCorrelationConfig(weather, traffic Metric) CorrelationConfig {
	return CorrelationConfig{
		WeatherMetric: weather,
		TrafficMetric: traffic,
		LagMin:        0,
		LagMax:        2 * time.Hour,
		LagStep:       15 * time.Minute,
		Tolerance:     30 * time.Minute,
		MinSamples:    10,
	}
}

// point is one timestamped metric sample.
type point struct {
	ts    time.Time
	value float64
}

// Correlate computes the strongest lagged Pearson correlation between a
// weather metric and a traffic metric for one city. For every candidate lag
// it aligns the two series by nearest timestamp within the tolerance
// (unmatched points are excluded, each traffic point is used at most once)
// and keeps the lag maximizing the absolute coefficient; ties go to the
// smaller lag.
//
// When no lag yields MinSamples aligned pairs, or every aligned column is
// constant, the result carries Defined=false and a reason instead of a
// number. Callers must not treat that as zero correlation.
func Correlate(weather []Observation, traffic []TrafficObservation, cfg CorrelationConfig) CorrelationResult {
	result := CorrelationResult{
		WeatherMetric: cfg.WeatherMetric,
		TrafficMetric: cfg.TrafficMetric,
	}
	if len(weather) > 0 {
		result.CityID = weather[0].CityID
	} else if len(traffic) > 0 {
		result.CityID = traffic[0].CityID
	}

	ws := weatherPoints(weather, cfg.WeatherMetric)
	ts := trafficPoints(traffic, cfg.TrafficMetric)
	if len(ws) == 0 || len(ts) == 0 {
		result.Reason = "empty input series"
		return result
	}
	result.Window = TimeRange{
		Start: laterOf(ws[0].ts, ts[0].ts),
		End:   earlierOf(ws[len(ws)-1].ts, ts[len(ts)-1].ts),
	}

	minSamples := cfg.MinSamples
	if minSamples < 2 {
		minSamples = 2
	}

	var (
		best        CorrelationResult
		found       bool
		maxPairs    int
		sawVariance bool
	)
	for _, lag := range cfg.lags() {
		xs, ys := alignSeries(ws, ts, lag, cfg.Tolerance)
		if len(xs) > maxPairs {
			maxPairs = len(xs)
		}
		if len(xs) < minSamples {
			continue
		}
		r, ok := pearson(xs, ys)
		if !ok {
			continue
		}
		sawVariance = true
		if !found || math.Abs(r) > math.Abs(best.Coefficient) {
			found = true
			best = result
			best.Coefficient = r
			best.LagMinutes = int(lag.Minutes())
			best.SampleSize = len(xs)
			best.Defined = true
		}
	}

	if found {
		return best
	}

	result.SampleSize = maxPairs
	if maxPairs < minSamples {
		result.Reason = fmt.Sprintf("aligned sample size %d below minimum %d", maxPairs, minSamples)
	} else if !sawVariance {
		result.Reason = "zero variance in aligned series"
	}
	return result
}

// lags enumerates the candidate lag offsets in ascending order. A
// non-positive step degenerates to the single lag LagMin.
func (cfg CorrelationConfig) lags() []time.Duration {
	if cfg.LagStep <= 0 || cfg.LagMax < cfg.LagMin {
		return []time.Duration{cfg.LagMin}
	}
	var out []time.Duration
	for lag := cfg.LagMin; lag <= cfg.LagMax; lag += cfg.LagStep {
		out = append(out, lag)
	}
	return out
}

func weatherPoints(series []Observation, m Metric) []point {
	out := make([]point, 0, len(series))
	for _, obs := range series {
		if v, ok := obs.Value(m); ok {
			out = append(out, point{ts: obs.Timestamp, value: v})
		}
	}
	return out
}

func trafficPoints(series []TrafficObservation, m Metric) []point {
	out := make([]point, 0, len(series))
	for _, obs := range series {
		if v, ok := obs.Value(m); ok {
			out = append(out, point{ts: obs.Timestamp, value: v})
		}
	}
	return out
}

// alignSeries pairs each weather point with the nearest unconsumed traffic
// point to (weather time + lag) within the tolerance. Both inputs must be
// sorted ascending, which the normalizer guarantees; the scan is then a
// single monotone pass.
func alignSeries(weather, traffic []point, lag, tolerance time.Duration) (xs, ys []float64) {
	j := 0
	for _, w := range weather {
		target := w.ts.Add(lag)

		for j+1 < len(traffic) && absDuration(traffic[j+1].ts.Sub(target)) <= absDuration(traffic[j].ts.Sub(target)) {
			j++
		}
		if j >= len(traffic) {
			break
		}
		if absDuration(traffic[j].ts.Sub(target)) <= tolerance {
			xs = append(xs, w.value)
			ys = append(ys, traffic[j].value)
			j++ // each traffic point pairs at most once
			if j >= len(traffic) {
				break
			}
		}
	}
	return xs, ys
}

// pearson computes the Pearson correlation coefficient, clamped to [-1, 1].
// Returns ok=false for fewer than two pairs or a zero-variance column, so
// the caller reports the undefined marker instead of dividing by zero.
func pearson(xs, ys []float64) (float64, bool) {
	n := float64(len(xs))
	if len(xs) < 2 || len(xs) != len(ys) {
		return 0, false
	}

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX <= 0 || varY <= 0 {
		return 0, false
	}

	r := cov / math.Sqrt(varX*varY)
	return math.Max(-1, math.Min(1, r)), true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
