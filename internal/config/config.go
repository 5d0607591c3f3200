// Package config loads all service settings from environment variables,
// applying defaults where unset. Analysis parameters (thresholds, lag
// bounds) live here too, so every analysis call receives explicit
// configuration instead of reading ambient process state.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/weather-traffic-insights/internal/domain"
)

// RecordKind distinguishes what a raw source feeds into the analysis.
type RecordKind string

const (
	KindWeather RecordKind = "weather"
	KindTraffic RecordKind = "traffic"
)

// Source ties a raw record source to its kind and field mapping.
type Source struct {
	Kind    RecordKind
	Mapping domain.FieldMapping
}

// MetricPair names one weather/traffic metric combination to correlate.
type MetricPair struct {
	Weather domain.Metric
	Traffic domain.Metric
}

// Config holds all service settings.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration
	BatchSize        int

	// BatchFlushInterval caps how long the extractor waits for a full
	// batch before returning a partial one.
	BatchFlushInterval time.Duration

	// Detection parameters.
	SamplingInterval     time.Duration
	MaxGap               time.Duration
	HeatwaveThreshold    float64
	ColdSpellThreshold   float64
	HeavyPrecipThreshold float64
	SnowstormThreshold   float64
	HighWindThreshold    float64
	TemperatureRunLength int // consecutive intervals required for heatwave/cold spell

	// Correlation parameters.
	CorrelationTolerance  time.Duration
	CorrelationLagMax     time.Duration
	CorrelationLagStep    time.Duration
	CorrelationMinSamples int
	CorrelationPairs      []MetricPair

	ReportCacheSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		KafkaBrokers:     parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic: envOrDefault("KAFKA_SOURCE_TOPIC", "raw-observations"),
		KafkaSinkTopic:   envOrDefault("KAFKA_SINK_TOPIC", "analysis-reports"),
		KafkaGroupID:     envOrDefault("KAFKA_GROUP_ID", "weather-traffic-insights"),
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.ShutdownTimeout, err = envDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = envInt("BATCH_SIZE", 200); err != nil {
		return nil, err
	}
	if cfg.BatchFlushInterval, err = envDuration("BATCH_FLUSH_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.SamplingInterval, err = envDuration("SAMPLING_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.MaxGap, err = envDuration("MAX_GAP", 0); err != nil {
		return nil, err
	}

	if cfg.HeatwaveThreshold, err = envFloat("HEATWAVE_THRESHOLD", 90); err != nil {
		return nil, err
	}
	if cfg.ColdSpellThreshold, err = envFloat("COLD_SPELL_THRESHOLD", 32); err != nil {
		return nil, err
	}
	if cfg.HeavyPrecipThreshold, err = envFloat("HEAVY_PRECIP_THRESHOLD", 2.0); err != nil {
		return nil, err
	}
	if cfg.SnowstormThreshold, err = envFloat("SNOWSTORM_THRESHOLD", 6.0); err != nil {
		return nil, err
	}
	if cfg.HighWindThreshold, err = envFloat("HIGH_WIND_THRESHOLD", 20); err != nil {
		return nil, err
	}
	if cfg.TemperatureRunLength, err = envInt("TEMPERATURE_RUN_LENGTH", 3); err != nil {
		return nil, err
	}

	if cfg.CorrelationTolerance, err = envDuration("CORRELATION_TOLERANCE", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CorrelationLagMax, err = envDuration("CORRELATION_LAG_MAX", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CorrelationLagStep, err = envDuration("CORRELATION_LAG_STEP", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CorrelationMinSamples, err = envInt("CORRELATION_MIN_SAMPLES", 10); err != nil {
		return nil, err
	}
	if cfg.CorrelationPairs, err = parsePairs(envOrDefault("CORRELATION_PAIRS",
		"precipitation:congestion_index,snowfall:volume,temperature:volume,wind_speed:avg_speed")); err != nil {
		return nil, err
	}
	if cfg.ReportCacheSize, err = envInt("REPORT_CACHE_SIZE", 100); err != nil {
		return nil, err
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.KafkaSourceTopic == "" {
		return errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if c.KafkaSinkTopic == "" {
		return errors.New("KAFKA_SINK_TOPIC is required")
	}
	if c.BatchSize <= 0 {
		return errors.New("BATCH_SIZE must be positive")
	}
	if c.BatchFlushInterval <= 0 {
		return errors.New("BATCH_FLUSH_INTERVAL must be positive")
	}
	if c.SamplingInterval <= 0 {
		return errors.New("SAMPLING_INTERVAL must be positive")
	}
	if c.TemperatureRunLength <= 0 {
		return errors.New("TEMPERATURE_RUN_LENGTH must be positive")
	}
	if c.CorrelationMinSamples < 2 {
		return errors.New("CORRELATION_MIN_SAMPLES must be at least 2")
	}
	if c.ReportCacheSize <= 0 {
		return errors.New("REPORT_CACHE_SIZE must be positive")
	}
	return nil
}

// RuleSet builds the detection rule set from the configured thresholds.
func (c *Config) RuleSet() domain.RuleSet {
	tempRun := time.Duration(c.TemperatureRunLength) * c.SamplingInterval
	return domain.RuleSet{
		SamplingInterval: c.SamplingInterval,
		MaxGap:           c.MaxGap,
		Rules: []domain.Rule{
			{EventType: domain.EventHeatwave, Metric: domain.MetricTemperature, Threshold: c.HeatwaveThreshold, Direction: domain.DirectionAbove, MinDuration: tempRun},
			{EventType: domain.EventColdSpell, Metric: domain.MetricTemperature, Threshold: c.ColdSpellThreshold, Direction: domain.DirectionBelow, MinDuration: tempRun},
			{EventType: domain.EventHeavyPrecip, Metric: domain.MetricPrecipitation, Threshold: c.HeavyPrecipThreshold, Direction: domain.DirectionAbove, MinDuration: c.SamplingInterval},
			{EventType: domain.EventSnowstorm, Metric: domain.MetricSnowfall, Threshold: c.SnowstormThreshold, Direction: domain.DirectionAbove, MinDuration: c.SamplingInterval},
			{EventType: domain.EventHighWind, Metric: domain.MetricWindSpeed, Threshold: c.HighWindThreshold, Direction: domain.DirectionAbove, MinDuration: c.SamplingInterval},
		},
	}
}

// CorrelationConfigs builds one correlation config per configured metric pair.
func (c *Config) CorrelationConfigs() []domain.CorrelationConfig {
	out := make([]domain.CorrelationConfig, 0, len(c.CorrelationPairs))
	for _, pair := range c.CorrelationPairs {
		out = append(out, domain.CorrelationConfig{
			WeatherMetric: pair.Weather,
			TrafficMetric: pair.Traffic,
			LagMin:        0,
			LagMax:        c.CorrelationLagMax,
			LagStep:       c.CorrelationLagStep,
			Tolerance:     c.CorrelationTolerance,
			MinSamples:    c.CorrelationMinSamples,
		})
	}
	return out
}

// Sources returns the per-source field mappings the pipeline understands.
// Upstream collectors stamp each message with a "source" header that
// selects one of these; resolving field-name heterogeneity here keeps
// source-specific branching out of the analysis core.
func (c *Config) Sources() map[string]Source {
	return map[string]Source{
		"noaa": {
			Kind: KindWeather,
			Mapping: domain.FieldMapping{
				Source:      "noaa",
				CityField:   "city",
				TimeField:   "date",
				TimeLayouts: []string{"2006-01-02", time.RFC3339},
				Fields: map[domain.Metric]string{
					domain.MetricTemperature:   "TMAX",
					domain.MetricPrecipitation: "PRCP",
					domain.MetricWindSpeed:     "AWND",
					domain.MetricSnowfall:      "SNOW",
				},
			},
		},
		"openweathermap": {
			Kind: KindWeather,
			Mapping: domain.FieldMapping{
				Source:    "openweathermap",
				CityField: "name",
				TimeField: "dt",
				Fields: map[domain.Metric]string{
					domain.MetricTemperature:   "temp",
					domain.MetricPrecipitation: "rain",
					domain.MetricWindSpeed:     "wind_speed",
					domain.MetricSnowfall:      "snow",
				},
			},
		},
		"citydot": {
			Kind: KindTraffic,
			Mapping: domain.FieldMapping{
				Source:    "citydot",
				CityField: "city",
				TimeField: "timestamp",
				Fields: map[domain.Metric]string{
					domain.MetricVolume:          "traffic_volume",
					domain.MetricAvgSpeed:        "avg_speed",
					domain.MetricCongestionIndex: "congestion_index",
				},
			},
		},
	}
}

var weatherMetrics = map[domain.Metric]bool{
	domain.MetricTemperature:   true,
	domain.MetricPrecipitation: true,
	domain.MetricWindSpeed:     true,
	domain.MetricSnowfall:      true,
}

var trafficMetrics = map[domain.Metric]bool{
	domain.MetricVolume:          true,
	domain.MetricAvgSpeed:        true,
	domain.MetricCongestionIndex: true,
}

// parsePairs parses "weather:traffic,weather:traffic" metric pair lists.
func parsePairs(raw string) ([]MetricPair, error) {
	var pairs []MetricPair
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sides := strings.SplitN(part, ":", 2)
		if len(sides) != 2 {
			return nil, fmt.Errorf("invalid CORRELATION_PAIRS entry %q", part)
		}
		w := domain.Metric(strings.TrimSpace(sides[0]))
		t := domain.Metric(strings.TrimSpace(sides[1]))
		if !weatherMetrics[w] {
			return nil, fmt.Errorf("unknown weather metric %q in CORRELATION_PAIRS", w)
		}
		if !trafficMetrics[t] {
			return nil, fmt.Errorf("unknown traffic metric %q in CORRELATION_PAIRS", t)
		}
		pairs = append(pairs, MetricPair{Weather: w, Traffic: t})
	}
	if len(pairs) == 0 {
		return nil, errors.New("CORRELATION_PAIRS must name at least one pair")
	}
	return pairs, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return f, nil
}
