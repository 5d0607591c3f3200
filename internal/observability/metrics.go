package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// analysis pipeline.
type Metrics struct {
	RecordsConsumed  prometheus.Counter
	RecordsMalformed *prometheus.CounterVec // labels: source
	ReportsProduced  prometheus.Counter
	PipelineRunning  prometheus.Gauge

	EventsDetected     *prometheus.CounterVec // labels: event_type
	CorrelationsScored *prometheus.CounterVec // labels: outcome={defined,insufficient}
	CitiesAnalyzed     prometheus.Histogram
	BatchSize          prometheus.Histogram
	AnalysisDuration   prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsConsumed,
		m.RecordsMalformed,
		m.ReportsProduced,
		m.PipelineRunning,
		m.EventsDetected,
		m.CorrelationsScored,
		m.CitiesAnalyzed,
		m.BatchSize,
		m.AnalysisDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_insights",
			Name:      "records_consumed_total",
			Help:      "Total raw records read from the source topic.",
		}),
		RecordsMalformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_insights",
			Name:      "records_malformed_total",
			Help:      "Raw records dropped during normalization, by source.",
		}, []string{"source"}),
		ReportsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather_insights",
			Name:      "reports_produced_total",
			Help:      "Total analysis reports written to the sink topic.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_insights",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		EventsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_insights",
			Name:      "events_detected_total",
			Help:      "Extreme weather events detected, by event type.",
		}, []string{"event_type"}),
		CorrelationsScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_insights",
			Name:      "correlations_scored_total",
			Help:      "Correlation computations by outcome (defined or insufficient).",
		}, []string{"outcome"}),
		CitiesAnalyzed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_insights",
			Name:      "cities_analyzed",
			Help:      "Number of cities analyzed per batch.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_insights",
			Name:      "batch_size",
			Help:      "Number of raw records per batch extracted from Kafka.",
			Buckets:   []float64{1, 10, 50, 100, 200, 500, 1000},
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_insights",
			Name:      "analysis_duration_seconds",
			Help:      "Duration of a complete batch normalize-detect-correlate cycle.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
	}
}
