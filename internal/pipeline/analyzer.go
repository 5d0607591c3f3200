package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/weather-traffic-insights/internal/config"
	"github.com/couchcryptid/weather-traffic-insights/internal/domain"
	"github.com/couchcryptid/weather-traffic-insights/internal/observability"
)

// Analyzer turns a batch of raw source records into per-city analysis
// reports by running the domain core: normalize, detect, correlate,
// assemble. It holds only read-only configuration, so batches (and cities
// within a batch) are independent.
type Analyzer struct {
	sources      map[string]config.Source
	rules        domain.RuleSet
	correlations []domain.CorrelationConfig
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewAnalyzer creates an Analyzer from the loaded configuration.
func NewAnalyzer(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Analyzer {
	return &Analyzer{
		sources:      cfg.Sources(),
		rules:        cfg.RuleSet(),
		correlations: cfg.CorrelationConfigs(),
		logger:       logger,
		metrics:      metrics,
	}
}

// BatchStats summarizes what one AnalyzeBatch call saw.
type BatchStats struct {
	Malformed int // raw records dropped (unknown source, bad JSON, or normalization skip)
	Cities    int // distinct cities analyzed
}

// AnalyzeBatch runs the full analysis over one extracted batch and returns
// one report per city seen. Malformed records are counted and skipped,
// never fatal; an empty or fully-malformed batch yields zero reports.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, batch []domain.RawEvent) ([]domain.Report, BatchStats) {
	var stats BatchStats

	weatherRaw, trafficRaw := a.decodeBatch(batch, &stats)

	weatherByCity := a.normalizeWeather(weatherRaw, &stats)
	trafficByCity := a.normalizeTraffic(trafficRaw, &stats)

	cities := unionCities(weatherByCity, trafficByCity)
	stats.Cities = len(cities)

	reports := make([]domain.Report, 0, len(cities))
	for _, city := range cities {
		if ctx.Err() != nil {
			break
		}
		report, err := a.analyzeCity(city, weatherByCity[city], trafficByCity[city])
		if err != nil {
			a.logger.Warn("report assembly failed, skipping city", "city", city, "error", err)
			continue
		}
		reports = append(reports, report)
	}
	return reports, stats
}

// decodeBatch deserializes raw messages and groups them by source, keeping
// arrival order so that later records still override earlier duplicates.
func (a *Analyzer) decodeBatch(batch []domain.RawEvent, stats *BatchStats) (weather, traffic map[string][]map[string]any) {
	weather = map[string][]map[string]any{}
	traffic = map[string][]map[string]any{}

	for _, raw := range batch {
		name := raw.Source()
		src, ok := a.sources[name]
		if !ok {
			a.logger.Warn("unknown record source, skipping message",
				"source", name, "topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
			a.metrics.RecordsMalformed.WithLabelValues("unknown").Inc()
			stats.Malformed++
			continue
		}

		var rec map[string]any
		if err := json.Unmarshal(raw.Value, &rec); err != nil {
			a.logger.Warn("undecodable record, skipping message",
				"source", name, "error", err, "offset", raw.Offset)
			a.metrics.RecordsMalformed.WithLabelValues(name).Inc()
			stats.Malformed++
			continue
		}

		if src.Kind == config.KindTraffic {
			traffic[name] = append(traffic[name], rec)
		} else {
			weather[name] = append(weather[name], rec)
		}
	}
	return weather, traffic
}

func (a *Analyzer) normalizeWeather(bySource map[string][]map[string]any, stats *BatchStats) map[string][]domain.Observation {
	merged := map[string]domain.Observation{}
	for _, name := range sortedKeys(bySource) {
		obs, skipped := domain.NormalizeWeather(bySource[name], a.sources[name].Mapping)
		a.reportSkips(name, skipped, stats)
		for _, o := range obs {
			merged[o.CityID+"\x00"+o.Timestamp.Format(time.RFC3339Nano)] = o
		}
	}

	byCity := map[string][]domain.Observation{}
	for _, o := range merged {
		byCity[o.CityID] = append(byCity[o.CityID], o)
	}
	for city := range byCity {
		series := byCity[city]
		sort.Slice(series, func(i, j int) bool { return series[i].Timestamp.Before(series[j].Timestamp) })
	}
	return byCity
}

func (a *Analyzer) normalizeTraffic(bySource map[string][]map[string]any, stats *BatchStats) map[string][]domain.TrafficObservation {
	merged := map[string]domain.TrafficObservation{}
	for _, name := range sortedKeys(bySource) {
		obs, skipped := domain.NormalizeTraffic(bySource[name], a.sources[name].Mapping)
		a.reportSkips(name, skipped, stats)
		for _, o := range obs {
			merged[o.CityID+"\x00"+o.Timestamp.Format(time.RFC3339Nano)] = o
		}
	}

	byCity := map[string][]domain.TrafficObservation{}
	for _, o := range merged {
		byCity[o.CityID] = append(byCity[o.CityID], o)
	}
	for city := range byCity {
		series := byCity[city]
		sort.Slice(series, func(i, j int) bool { return series[i].Timestamp.Before(series[j].Timestamp) })
	}
	return byCity
}

func (a *Analyzer) reportSkips(source string, skipped []domain.MalformedRecordError, stats *BatchStats) {
	for _, merr := range skipped {
		a.logger.Warn("malformed record dropped", "source", source, "error", merr.Error())
		a.metrics.RecordsMalformed.WithLabelValues(source).Inc()
	}
	stats.Malformed += len(skipped)
}

// analyzeCity runs detection and correlation over one city's series and
// assembles the report.
func (a *Analyzer) analyzeCity(city string, weather []domain.Observation, traffic []domain.TrafficObservation) (domain.Report, error) {
	window := seriesWindow(weather, traffic)

	events := domain.DetectEvents(weather, a.rules)
	for _, e := range events {
		a.metrics.EventsDetected.WithLabelValues(string(e.EventType)).Inc()
	}

	correlations := make([]domain.CorrelationResult, 0, len(a.correlations))
	for _, cc := range a.correlations {
		result := domain.Correlate(weather, traffic, cc)
		if result.CityID == "" {
			result.CityID = city
		}
		outcome := "insufficient"
		if result.Defined {
			outcome = "defined"
		}
		a.metrics.CorrelationsScored.WithLabelValues(outcome).Inc()
		correlations = append(correlations, result)
	}

	report, err := domain.AssembleReport(city, window, events, correlations)
	if err != nil {
		return domain.Report{}, err
	}
	report.ObservationCount = len(weather)
	report.TrafficCount = len(traffic)
	return report, nil
}

// seriesWindow spans from the earliest to the latest timestamp across both series.
func seriesWindow(weather []domain.Observation, traffic []domain.TrafficObservation) domain.TimeRange {
	var window domain.TimeRange
	if len(weather) > 0 {
		window.Start = weather[0].Timestamp
		window.End = weather[len(weather)-1].Timestamp
	}
	if len(traffic) > 0 {
		first, last := traffic[0].Timestamp, traffic[len(traffic)-1].Timestamp
		if window.Start.IsZero() || first.Before(window.Start) {
			window.Start = first
		}
		if window.End.IsZero() || last.After(window.End) {
			window.End = last
		}
	}
	return window
}

func unionCities(weather map[string][]domain.Observation, traffic map[string][]domain.TrafficObservation) []string {
	seen := map[string]bool{}
	for city := range weather {
		seen[city] = true
	}
	for city := range traffic {
		seen[city] = true
	}
	cities := make([]string, 0, len(seen))
	for city := range seen {
		cities = append(cities, city)
	}
	sort.Strings(cities)
	return cities
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
