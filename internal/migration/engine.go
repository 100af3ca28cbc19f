// Package migration copies attendance records from the source into the sink
// and reports how far the two have converged.
package migration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/PratikDhanave/attendance-sync-service/internal/metrics"
	"github.com/PratikDhanave/attendance-sync-service/internal/models"
	"github.com/PratikDhanave/attendance-sync-service/internal/source"
	"github.com/PratikDhanave/attendance-sync-service/internal/store"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultBatchSize = 100
	DefaultPace      = 500 * time.Millisecond
)

// Progress is reported after every batch of a full migration.
type Progress struct {
	Offset  int
	Total   int64
	Percent float64
}

// ProgressFunc receives progress updates. It must not block.
type ProgressFunc func(Progress)

// Options configures an Engine.
type Options struct {
	BatchSize int
	Pace      time.Duration
	Retry     RetryPolicy
	Pacer     Pacer
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Engine reconciles the source with the sink. It holds no per-run state, so
// one Engine may serve any number of sequential runs.
type Engine struct {
	opener    source.Opener
	sink      store.Sink
	oracle    *Oracle
	pacer     Pacer
	metrics   *metrics.Metrics
	logger    *zap.Logger
	batchSize int
	pace      time.Duration
	retry     RetryPolicy
}

func NewEngine(opener source.Opener, sink store.Sink, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Pacer == nil {
		opts.Pacer = SleepPacer{}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Pace < 0 {
		opts.Pace = 0
	}

	return &Engine{
		opener:    opener,
		sink:      sink,
		oracle:    NewOracle(sink, opts.Metrics, opts.Logger),
		pacer:     opts.Pacer,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		batchSize: opts.BatchSize,
		pace:      opts.Pace,
		retry:     opts.Retry.withDefaults(),
	}
}

// MigrateAll pages through the source and inserts every record whose
// natural key is not yet in the sink.
//
// Page and batch failures are logged and counted; the run continues. Only
// failing to open or count the source aborts the run, in which case no
// summary is returned. A cancelled ctx stops the run at the next pause and
// returns the partial summary with the context error.
func (e *Engine) MigrateAll(ctx context.Context, progress ProgressFunc) (*models.MigrationSummary, error) {
	session, err := e.opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			e.logger.Warn("Failed to close source session", zap.Error(err))
		}
	}()

	total, err := session.Count(ctx)
	if err != nil {
		e.logger.Error("Failed to count source records", zap.Error(err))
		return nil, fmt.Errorf("count source records: %w", err)
	}
	e.logger.Info("Counted source records", zap.Int64("total", total))

	if total == 0 {
		return &models.MigrationSummary{
			Status:  models.StatusSuccess,
			Message: "No records to migrate",
		}, nil
	}

	summary := &models.MigrationSummary{
		Status:        models.StatusSuccess,
		TotalInSource: total,
	}

	for offset := 0; int64(offset) < total; offset += e.batchSize {
		e.migrateBatch(ctx, session, offset, summary)

		pct := float64(offset+e.batchSize) / float64(total) * 100
		if pct > 100 {
			pct = 100
		}
		e.metrics.SetProgress(pct)
		if progress != nil {
			progress(Progress{Offset: offset, Total: total, Percent: pct})
		}
		e.logger.Info("Batch processed",
			zap.Int("offset", offset),
			zap.Float64("progress_pct", pct))

		if err := e.pacer.Pace(ctx, e.pace); err != nil {
			summary.Status = models.StatusError
			summary.Message = "migration interrupted"
			return summary, err
		}
	}

	e.logger.Info("Migration finished",
		zap.Int64("total", summary.TotalInSource),
		zap.Int64("migrated", summary.Migrated),
		zap.Int64("skipped", summary.Skipped),
		zap.Int64("failed", summary.Failed))
	return summary, nil
}

func (e *Engine) migrateBatch(ctx context.Context, session source.Session, offset int, summary *models.MigrationSummary) {
	records, err := session.FetchPage(ctx, e.batchSize, offset)
	if err != nil {
		// The page counts as empty; later pages are still attempted.
		e.logger.Error("Failed to fetch source page",
			zap.Int("offset", offset),
			zap.Int("batch_size", e.batchSize),
			zap.Error(err))
		return
	}

	toInsert := make([]models.AttendanceRecord, 0, len(records))
	queued := make(map[models.Key]struct{}, len(records))
	var skipped int64

	for _, r := range records {
		k := r.Key()
		if _, dup := queued[k]; dup {
			skipped++
			continue
		}
		if e.oracle.Exists(ctx, k) {
			skipped++
			continue
		}
		queued[k] = struct{}{}
		r.ID = 0
		toInsert = append(toInsert, r)
	}

	summary.Skipped += skipped
	e.metrics.AddRecords(metrics.OutcomeSkipped, skipped)

	if len(toInsert) == 0 {
		return
	}

	start := time.Now()
	inserted, err := e.sink.Insert(ctx, toInsert)
	e.metrics.ObserveBatch(err == nil, time.Since(start).Seconds())
	if err != nil {
		summary.Failed += int64(len(toInsert))
		e.metrics.AddRecords(metrics.OutcomeFailed, int64(len(toInsert)))
		e.logger.Error("Batch insert failed",
			zap.Int("offset", offset),
			zap.Int("batch_size", len(toInsert)),
			zap.Error(err))
		return
	}

	// Rows the sink rejected as already present are skips, not migrations.
	conflicts := int64(len(toInsert)) - inserted
	summary.Migrated += inserted
	summary.Skipped += conflicts
	e.metrics.AddRecords(metrics.OutcomeMigrated, inserted)
	e.metrics.AddRecords(metrics.OutcomeSkipped, conflicts)
	e.logger.Info("Inserted records",
		zap.Int("offset", offset),
		zap.Int64("inserted", inserted),
		zap.Int64("conflicts", conflicts))
}
