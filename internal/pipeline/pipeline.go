package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/weather-traffic-insights/internal/domain"
	"github.com/couchcryptid/weather-traffic-insights/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// BatchAnalyzer converts a batch of raw events into per-city reports.
type BatchAnalyzer interface {
	AnalyzeBatch(ctx context.Context, batch []domain.RawEvent) ([]domain.Report, BatchStats)
}

// BatchLoader writes analysis reports to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, reports []domain.Report) error
}

// Pipeline orchestrates the extract-analyze-load loop.
type Pipeline struct {
	extractor BatchExtractor
	analyzer  BatchAnalyzer
	loader    BatchLoader
	cache     *reportCache
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

// New creates a Pipeline with the given stages and observability. cacheSize
// bounds the latest-report-per-city cache serving the HTTP read path.
func New(e BatchExtractor, a BatchAnalyzer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize, cacheSize int) *Pipeline {
	return &Pipeline{
		extractor: e,
		analyzer:  a,
		loader:    l,
		cache:     newReportCache(cacheSize),
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil if the pipeline has analyzed at least one batch,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not analyzed any batches yet")
	}
	return nil
}

// LatestReport returns the most recently published report for a city.
func (p *Pipeline) LatestReport(cityID string) (domain.Report, bool) {
	return p.cache.get(cityID)
}

// Run executes the batch analysis loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	// Keeps retry storms short while avoiding tight loops during Kafka outages.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-analyze-load cycle. Returns false if the
// pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.RecordsConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	start := time.Now()
	reports, stats := p.analyzer.AnalyzeBatch(ctx, rawBatch)
	p.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	p.metrics.CitiesAnalyzed.Observe(float64(stats.Cities))

	if stats.Malformed > 0 {
		p.logger.Info("batch analyzed with skips",
			"records", len(rawBatch), "reports", len(reports), "malformed", stats.Malformed)
	}

	if len(reports) > 0 {
		if err := p.loader.LoadBatch(ctx, reports); err != nil {
			p.logger.Error("load batch failed", "error", err, "reports", len(reports))
			return p.backoffOrStop(ctx, backoff, maxBackoff)
		}
		p.metrics.ReportsProduced.Add(float64(len(reports)))
		for i := range reports {
			p.cache.put(reports[i])
		}
	}

	// Offsets commit only after a successful load, so a crashed load
	// reprocesses the batch instead of dropping it.
	for _, raw := range rawBatch {
		p.commitOffset(ctx, raw)
	}

	p.ready.Store(true)
	return true
}

// backoffOrStop checks for context cancellation, sleeps with the current
// backoff, and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
