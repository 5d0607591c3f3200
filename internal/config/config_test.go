package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-traffic-insights/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "raw-observations", cfg.KafkaSourceTopic)
	assert.Equal(t, "analysis-reports", cfg.KafkaSinkTopic)
	assert.Equal(t, "weather-traffic-insights", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 200, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, 24*time.Hour, cfg.SamplingInterval)
	assert.Equal(t, time.Duration(0), cfg.MaxGap)
	assert.Equal(t, 90.0, cfg.HeatwaveThreshold)
	assert.Equal(t, 32.0, cfg.ColdSpellThreshold)
	assert.Equal(t, 2.0, cfg.HeavyPrecipThreshold)
	assert.Equal(t, 6.0, cfg.SnowstormThreshold)
	assert.Equal(t, 20.0, cfg.HighWindThreshold)
	assert.Equal(t, 3, cfg.TemperatureRunLength)
	assert.Equal(t, 30*time.Minute, cfg.CorrelationTolerance)
	assert.Equal(t, 2*time.Hour, cfg.CorrelationLagMax)
	assert.Equal(t, 15*time.Minute, cfg.CorrelationLagStep)
	assert.Equal(t, 10, cfg.CorrelationMinSamples)
	assert.Len(t, cfg.CorrelationPairs, 4)
	assert.Equal(t, 100, cfg.ReportCacheSize)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("SAMPLING_INTERVAL", "1h")
	t.Setenv("HEATWAVE_THRESHOLD", "95.5")
	t.Setenv("TEMPERATURE_RUN_LENGTH", "6")
	t.Setenv("CORRELATION_MIN_SAMPLES", "20")
	t.Setenv("CORRELATION_PAIRS", "precipitation:avg_speed")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, time.Hour, cfg.SamplingInterval)
	assert.Equal(t, 95.5, cfg.HeatwaveThreshold)
	assert.Equal(t, 6, cfg.TemperatureRunLength)
	assert.Equal(t, 20, cfg.CorrelationMinSamples)
	require.Len(t, cfg.CorrelationPairs, 1)
	assert.Equal(t, domain.MetricPrecipitation, cfg.CorrelationPairs[0].Weather)
	assert.Equal(t, domain.MetricAvgSpeed, cfg.CorrelationPairs[0].Traffic)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad sampling interval", "SAMPLING_INTERVAL", "soon"},
		{"zero batch size", "BATCH_SIZE", "0"},
		{"negative timeout", "SHUTDOWN_TIMEOUT", "-5s"},
		{"bad threshold", "HEATWAVE_THRESHOLD", "hot"},
		{"min samples below two", "CORRELATION_MIN_SAMPLES", "1"},
		{"unknown weather metric", "CORRELATION_PAIRS", "humidity:volume"},
		{"unknown traffic metric", "CORRELATION_PAIRS", "temperature:bicycles"},
		{"pair without separator", "CORRELATION_PAIRS", "temperature"},
		{"empty pairs", "CORRELATION_PAIRS", " , "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestRuleSet(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	rules := cfg.RuleSet()

	assert.Equal(t, 24*time.Hour, rules.SamplingInterval)
	require.Len(t, rules.Rules, 5)

	byType := map[domain.EventType]domain.Rule{}
	for _, r := range rules.Rules {
		byType[r.EventType] = r
	}
	assert.Equal(t, 3*24*time.Hour, byType[domain.EventHeatwave].MinDuration)
	assert.Equal(t, domain.DirectionBelow, byType[domain.EventColdSpell].Direction)
	assert.Equal(t, 24*time.Hour, byType[domain.EventSnowstorm].MinDuration)
}

func TestCorrelationConfigs(t *testing.T) {
	t.Setenv("CORRELATION_PAIRS", "precipitation:congestion_index,snowfall:volume")

	cfg, err := Load()
	require.NoError(t, err)

	configs := cfg.CorrelationConfigs()

	require.Len(t, configs, 2)
	assert.Equal(t, domain.MetricPrecipitation, configs[0].WeatherMetric)
	assert.Equal(t, domain.MetricCongestionIndex, configs[0].TrafficMetric)
	assert.Equal(t, cfg.CorrelationTolerance, configs[0].Tolerance)
	assert.Equal(t, cfg.CorrelationMinSamples, configs[0].MinSamples)
}

func TestSources(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	sources := cfg.Sources()

	require.Contains(t, sources, "noaa")
	require.Contains(t, sources, "openweathermap")
	require.Contains(t, sources, "citydot")
	assert.Equal(t, KindWeather, sources["noaa"].Kind)
	assert.Equal(t, KindTraffic, sources["citydot"].Kind)
	assert.Equal(t, "TMAX", sources["noaa"].Mapping.Fields[domain.MetricTemperature])
	assert.Equal(t, "congestion_index", sources["citydot"].Mapping.Fields[domain.MetricCongestionIndex])
}
