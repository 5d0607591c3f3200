// Command validate performs end-to-end integrity checks over the mock data
// fixtures produced by genmock: the raw observations JSON and the expected
// reports JSON. It re-runs the real analysis over the raw fixture and checks
// that the stored reports match, along with the structural invariants every
// report must hold.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -raw-json data/mock/raw_observations.json \
//	  -reports-json data/mock/expected_reports.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-traffic-insights/internal/config"
	"github.com/couchcryptid/weather-traffic-insights/internal/domain"
)

// rawRecord mirrors the genmock raw fixture line format.
type rawRecord struct {
	Source string         `json:"source"`
	Record map[string]any `json:"record"`
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	rawJSON := flag.String("raw-json", "", "path to raw observations fixture")
	reportsJSON := flag.String("reports-json", "", "path to expected reports fixture")
	flag.Parse()

	if *rawJSON == "" || *reportsJSON == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*rawJSON, *reportsJSON); code != 0 {
		os.Exit(code)
	}
}

func run(rawPath, reportsPath string) int {
	// Fixed clock matching genmock, so re-assembled reports reproduce
	// the stored GeneratedAt.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.August, 1, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	fmt.Println("=== Analysis Fixture Integrity Validation ===")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}

	raw, err := loadJSON[rawRecord](rawPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load raw fixture: %v\n", err)
		return 1
	}

	reports, err := loadJSON[domain.Report](reportsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load reports fixture: %v\n", err)
		return 1
	}

	weather, traffic, rawPhase := validateRawFixture(cfg, raw)

	phases := []*phase{
		rawPhase,
		validateNormalizationAccounting(reports, weather, traffic),
		validateDetection(cfg, reports, weather),
		validateCorrelations(cfg, reports),
		validateReportConsistency(reports),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d raw, %d reports\n", len(raw), len(reports))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-i)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Println("\nAll phases passed.")
	return 0
}

// validateRawFixture checks every raw record against its source mapping and
// returns the normalized per-city series for the later phases.
func validateRawFixture(cfg *config.Config, raw []rawRecord) (map[string][]domain.Observation, map[string][]domain.TrafficObservation, *phase) {
	p := &phase{name: "raw fixture integrity"}
	sources := cfg.Sources()

	bySource := map[string][]map[string]any{}
	for i, r := range raw {
		if _, ok := sources[r.Source]; !ok {
			p.errorf("record %d: unknown source %q", i, r.Source)
			continue
		}
		bySource[r.Source] = append(bySource[r.Source], r.Record)
	}

	weather := map[string][]domain.Observation{}
	traffic := map[string][]domain.TrafficObservation{}

	for name, recs := range bySource {
		src := sources[name]
		if src.Kind == config.KindTraffic {
			obs, skipped := domain.NormalizeTraffic(recs, src.Mapping)
			for _, merr := range skipped {
				p.errorf("%s: malformed record in fixture: %v", name, merr)
			}
			for _, o := range obs {
				traffic[o.CityID] = append(traffic[o.CityID], o)
			}
			continue
		}
		obs, skipped := domain.NormalizeWeather(recs, src.Mapping)
		for _, merr := range skipped {
			p.errorf("%s: malformed record in fixture: %v", name, merr)
		}
		for _, o := range obs {
			weather[o.CityID] = append(weather[o.CityID], o)
		}
	}
	return weather, traffic, p
}

// validateNormalizationAccounting checks that report counts match what the
// raw fixture actually normalizes to.
func validateNormalizationAccounting(reports []domain.Report, weather map[string][]domain.Observation, traffic map[string][]domain.TrafficObservation) *phase {
	p := &phase{name: "normalization accounting"}

	for _, r := range reports {
		if got := len(weather[r.CityID]); got != r.ObservationCount {
			p.errorf("%s: report claims %d observations, fixture normalizes to %d", r.CityID, r.ObservationCount, got)
		}
		if got := len(traffic[r.CityID]); got != r.TrafficCount {
			p.errorf("%s: report claims %d traffic records, fixture normalizes to %d", r.CityID, r.TrafficCount, got)
		}
		series := weather[r.CityID]
		for i := 1; i < len(series); i++ {
			if !series[i-1].Timestamp.Before(series[i].Timestamp) {
				p.errorf("%s: weather series not strictly increasing at index %d", r.CityID, i)
			}
		}
	}
	return p
}

// validateDetection re-runs event detection over the normalized series and
// checks the per-event invariants plus agreement with the stored reports.
func validateDetection(cfg *config.Config, reports []domain.Report, weather map[string][]domain.Observation) *phase {
	p := &phase{name: "extreme event detection"}
	rules := cfg.RuleSet()

	minDurations := map[domain.EventType]time.Duration{}
	for _, rule := range rules.Rules {
		minDurations[rule.EventType] = rule.MinDuration
	}

	for _, r := range reports {
		recomputed := domain.DetectEvents(weather[r.CityID], rules)
		if len(recomputed) != len(r.Events) {
			p.errorf("%s: stored %d events, detection yields %d", r.CityID, len(r.Events), len(recomputed))
		}

		for _, e := range r.Events {
			if e.Duration < minDurations[e.EventType] {
				p.errorf("%s: %s duration %s below rule minimum %s", r.CityID, e.EventType, e.Duration, minDurations[e.EventType])
			}
			if e.SeverityScore < 0 {
				p.errorf("%s: %s has negative severity %.2f", r.CityID, e.EventType, e.SeverityScore)
			}
			if e.StartTime.After(e.EndTime) {
				p.errorf("%s: %s starts after it ends", r.CityID, e.EventType)
			}
			if !r.Window.Contains(e.StartTime) || !r.Window.Contains(e.EndTime) {
				p.errorf("%s: %s falls outside the report window", r.CityID, e.EventType)
			}
		}
	}
	return p
}

// validateCorrelations checks the stored correlation results: bounded
// coefficients when defined, an explicit reason when not.
func validateCorrelations(cfg *config.Config, reports []domain.Report) *phase {
	p := &phase{name: "correlation results"}

	for _, r := range reports {
		if len(r.Correlations) != len(cfg.CorrelationPairs) {
			p.errorf("%s: %d correlation results for %d configured pairs", r.CityID, len(r.Correlations), len(cfg.CorrelationPairs))
		}
		for _, c := range r.Correlations {
			if c.Defined {
				if math.Abs(c.Coefficient) > 1 {
					p.errorf("%s: %s/%s coefficient %.4f out of bounds", r.CityID, c.WeatherMetric, c.TrafficMetric, c.Coefficient)
				}
				if c.SampleSize < cfg.CorrelationMinSamples {
					p.errorf("%s: %s/%s defined with only %d samples", r.CityID, c.WeatherMetric, c.TrafficMetric, c.SampleSize)
				}
				continue
			}
			if c.Reason == "" {
				p.errorf("%s: %s/%s undefined without a reason", r.CityID, c.WeatherMetric, c.TrafficMetric)
			}
			if c.Coefficient != 0 {
				p.errorf("%s: %s/%s undefined but carries coefficient %.4f", r.CityID, c.WeatherMetric, c.TrafficMetric, c.Coefficient)
			}
		}
	}
	return p
}

// validateReportConsistency checks the aggregation-level invariants.
func validateReportConsistency(reports []domain.Report) *phase {
	p := &phase{name: "report consistency"}

	seen := map[string]bool{}
	for _, r := range reports {
		if seen[r.CityID] {
			p.errorf("duplicate report for city %s", r.CityID)
		}
		seen[r.CityID] = true

		if r.Window.Start.After(r.Window.End) {
			p.errorf("%s: inverted report window", r.CityID)
		}

		counts := map[domain.EventType]int{}
		for _, e := range r.Events {
			counts[e.EventType]++
			if e.CityID != r.CityID {
				p.errorf("%s: event for foreign city %s", r.CityID, e.CityID)
			}
		}
		for et, n := range r.EventCounts {
			if counts[et] != n {
				p.errorf("%s: event_counts[%s]=%d but %d events present", r.CityID, et, n, counts[et])
			}
		}
		for et, n := range counts {
			if r.EventCounts[et] != n {
				p.errorf("%s: %d %s events missing from event_counts", r.CityID, n, et)
			}
		}
	}
	return p
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}
