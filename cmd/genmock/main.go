// Command genmock generates deterministic mock weather and traffic fixtures
// for the analyzer test suites. It runs the actual domain analysis over the
// generated records so the expected-reports fixture matches real pipeline
// behavior, including the injected extreme events.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -raw-out data/mock/raw_observations.json \
//	  -reports-out data/mock/expected_reports.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-traffic-insights/internal/config"
	"github.com/couchcryptid/weather-traffic-insights/internal/domain"
)

// rawRecord is one line of the raw fixture: the source name that would
// normally arrive as a Kafka header, plus the record payload.
type rawRecord struct {
	Source string         `json:"source"`
	Record map[string]any `json:"record"`
}

var generatedAt = time.Date(2024, time.August, 1, 6, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	rawOut := flag.String("raw-out", "", "output path for raw observations fixture")
	reportsOut := flag.String("reports-out", "", "output path for expected reports fixture")
	seed := flag.Int64("seed", 42, "random seed for reproducible noise")
	days := flag.Int("days", 31, "days of observations per city")
	flag.Parse()

	if *rawOut == "" || *reportsOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -raw-out, -reports-out")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Fix the clock for reproducible GeneratedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(generatedAt))
	defer domain.SetClock(clockwork.NewRealClock())

	rng := rand.New(rand.NewSource(*seed))

	raw := generateCity(rng, "austin", time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC), *days, summerProfile)
	raw = append(raw, generateCity(rng, "minneapolis", time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), *days, winterProfile)...)

	reports, err := analyze(cfg, raw)
	if err != nil {
		return err
	}

	if err := writeJSON(*rawOut, raw); err != nil {
		return fmt.Errorf("writing raw fixture: %w", err)
	}
	log.Printf("wrote raw fixture: %s (%d records)", *rawOut, len(raw))

	if err := writeJSON(*reportsOut, reports); err != nil {
		return fmt.Errorf("writing reports fixture: %w", err)
	}
	log.Printf("wrote reports fixture: %s (%d reports)", *reportsOut, len(reports))

	printStats(reports)
	return nil
}

// dayWeather is one synthetic day before mapping to source field names.
type dayWeather struct {
	temp, precip, wind, snow float64
}

// profile shapes one city's month. Day is zero-based.
type profile func(rng *rand.Rand, day int) dayWeather

// summerProfile injects a five-day heatwave (days 9 to 13) and a two-day
// heavy-rain stretch (days 19 to 20) into an otherwise mild July.
func summerProfile(rng *rand.Rand, day int) dayWeather {
	w := dayWeather{
		temp:   82 + 4*math.Sin(float64(day)/5) + rng.Float64()*3,
		precip: rng.Float64() * 0.3,
		wind:   6 + rng.Float64()*6,
	}
	if day >= 9 && day <= 13 {
		w.temp = 95 + rng.Float64()*4
	}
	if day == 19 || day == 20 {
		w.precip = 2.5 + rng.Float64()
		w.wind = 22 + rng.Float64()*5
	}
	return w
}

// winterProfile injects a four-day cold spell (days 14 to 17) with a
// snowstorm on day 15.
func winterProfile(rng *rand.Rand, day int) dayWeather {
	w := dayWeather{
		temp:   38 + 4*math.Sin(float64(day)/4) + rng.Float64()*4,
		precip: rng.Float64() * 0.2,
		wind:   8 + rng.Float64()*6,
	}
	if day >= 14 && day <= 17 {
		w.temp = 20 + rng.Float64()*8
	}
	if day == 15 {
		w.snow = 7 + rng.Float64()*3
	}
	return w
}

// generateCity produces paired weather and traffic records for one city.
// Traffic responds to the weather: rain and snow push congestion up and
// average speed down, which gives the correlation analyzer real signal.
func generateCity(rng *rand.Rand, city string, start time.Time, days int, shape profile) []rawRecord {
	records := make([]rawRecord, 0, 2*days)
	for day := 0; day < days; day++ {
		ts := start.AddDate(0, 0, day)
		w := shape(rng, day)

		records = append(records, rawRecord{
			Source: "noaa",
			Record: map[string]any{
				"city": city,
				"date": ts.Format("2006-01-02"),
				"TMAX": round1(w.temp),
				"PRCP": round1(w.precip),
				"AWND": round1(w.wind),
				"SNOW": round1(w.snow),
			},
		})

		congestion := 0.35 + 0.15*(w.precip/2.5) + 0.2*(w.snow/8) + rng.Float64()*0.05
		volume := 11000 - 600*(w.snow/2) + rng.Float64()*400
		speed := 34 - 8*congestion + rng.Float64()*2

		records = append(records, rawRecord{
			Source: "citydot",
			Record: map[string]any{
				"city":             city,
				"timestamp":        ts.Format(time.RFC3339),
				"traffic_volume":   round1(volume),
				"avg_speed":        round1(speed),
				"congestion_index": round1(congestion),
			},
		})
	}
	return records
}

// analyze runs the real normalize/detect/correlate/assemble sequence over
// the fixture, one city at a time.
func analyze(cfg *config.Config, raw []rawRecord) ([]domain.Report, error) {
	sources := cfg.Sources()
	rules := cfg.RuleSet()
	correlations := cfg.CorrelationConfigs()

	bySource := map[string][]map[string]any{}
	for _, r := range raw {
		bySource[r.Source] = append(bySource[r.Source], r.Record)
	}

	weatherByCity := map[string][]domain.Observation{}
	trafficByCity := map[string][]domain.TrafficObservation{}

	for name, recs := range bySource {
		src, ok := sources[name]
		if !ok {
			return nil, fmt.Errorf("fixture references unknown source %q", name)
		}
		switch src.Kind {
		case config.KindTraffic:
			obs, skipped := domain.NormalizeTraffic(recs, src.Mapping)
			if len(skipped) > 0 {
				return nil, fmt.Errorf("generated %d malformed %s records", len(skipped), name)
			}
			for _, o := range obs {
				trafficByCity[o.CityID] = append(trafficByCity[o.CityID], o)
			}
		default:
			obs, skipped := domain.NormalizeWeather(recs, src.Mapping)
			if len(skipped) > 0 {
				return nil, fmt.Errorf("generated %d malformed %s records", len(skipped), name)
			}
			for _, o := range obs {
				weatherByCity[o.CityID] = append(weatherByCity[o.CityID], o)
			}
		}
	}

	cities := make([]string, 0, len(weatherByCity))
	for city := range weatherByCity {
		cities = append(cities, city)
	}
	sort.Strings(cities)

	reports := make([]domain.Report, 0, len(cities))
	for _, city := range cities {
		weather := weatherByCity[city]
		traffic := trafficByCity[city]

		window := domain.TimeRange{
			Start: weather[0].Timestamp,
			End:   weather[len(weather)-1].Timestamp,
		}

		events := domain.DetectEvents(weather, rules)
		results := make([]domain.CorrelationResult, 0, len(correlations))
		for _, cc := range correlations {
			results = append(results, domain.Correlate(weather, traffic, cc))
		}

		report, err := domain.AssembleReport(city, window, events, results)
		if err != nil {
			return nil, fmt.Errorf("assembling report for %s: %w", city, err)
		}
		report.ObservationCount = len(weather)
		report.TrafficCount = len(traffic)
		reports = append(reports, report)
	}
	return reports, nil
}

func printStats(reports []domain.Report) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	for _, r := range reports {
		fmt.Printf("%s: window %s to %s\n", r.CityID,
			r.Window.Start.Format("2006-01-02"), r.Window.End.Format("2006-01-02"))
		for _, e := range r.Events {
			fmt.Printf("  %s: %s to %s, peak %.1f, severity %.1f\n",
				e.EventType, e.StartTime.Format("2006-01-02"), e.EndTime.Format("2006-01-02"),
				e.PeakValue, e.SeverityScore)
		}
		for _, c := range r.Correlations {
			if c.Defined {
				fmt.Printf("  corr %s/%s: r=%.3f lag=%dm n=%d\n",
					c.WeatherMetric, c.TrafficMetric, c.Coefficient, c.LagMinutes, c.SampleSize)
			} else {
				fmt.Printf("  corr %s/%s: insufficient (%s)\n", c.WeatherMetric, c.TrafficMetric, c.Reason)
			}
		}
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
