package migration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/PratikDhanave/attendance-sync-service/internal/metrics"
	"github.com/PratikDhanave/attendance-sync-service/internal/models"
)

// RetryPolicy is the two-tier retry used by retry mode: each batch is tried
// BatchAttempts times, then every record of a still-failing batch is tried
// on its own up to ItemAttempts times.
type RetryPolicy struct {
	BatchSize     int
	BatchAttempts int
	ItemAttempts  int
	BatchPace     time.Duration
	ItemPace      time.Duration
}

// DefaultRetryPolicy matches the recovery tool's historical behaviour.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BatchSize:     50,
		BatchAttempts: 1,
		ItemAttempts:  1,
		BatchPace:     500 * time.Millisecond,
		ItemPace:      100 * time.Millisecond,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.BatchSize <= 0 {
		p.BatchSize = d.BatchSize
	}
	if p.BatchAttempts < 1 {
		p.BatchAttempts = d.BatchAttempts
	}
	if p.ItemAttempts < 1 {
		p.ItemAttempts = d.ItemAttempts
	}
	if p.BatchPace < 0 {
		p.BatchPace = 0
	}
	if p.ItemPace < 0 {
		p.ItemPace = 0
	}
	return p
}

// Retry loads the whole source and every sink key, then inserts the records
// whose natural key the sink lacks. Meant as a manual recovery tool: memory
// grows with the size of both stores.
func (e *Engine) Retry(ctx context.Context) (*models.RetrySummary, error) {
	session, err := e.opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			e.logger.Warn("Failed to close source session", zap.Error(err))
		}
	}()

	records, err := session.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch source records: %w", err)
	}
	keys, err := e.sink.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch sink keys: %w", err)
	}

	candidates := missing(records, keys)
	e.logger.Info("Found records to retry",
		zap.Int("source", len(records)),
		zap.Int("sink", len(keys)),
		zap.Int("candidates", len(candidates)))

	summary := &models.RetrySummary{
		Status:     models.StatusSuccess,
		Candidates: len(candidates),
	}
	if len(candidates) == 0 {
		summary.Message = "No records to retry"
		return summary, nil
	}

	p := e.retry
	for start := 0; start < len(candidates); start += p.BatchSize {
		end := min(start+p.BatchSize, len(candidates))
		batch := candidates[start:end]
		batchNo := start/p.BatchSize + 1

		if n, ok := e.insertWithAttempts(ctx, batch, p.BatchAttempts, p.BatchPace); ok {
			summary.Inserted += int(n)
			e.logger.Info("Retried batch", zap.Int("batch", batchNo), zap.Int64("inserted", n))
		} else {
			e.logger.Warn("Batch failed, retrying records individually",
				zap.Int("batch", batchNo),
				zap.Int("batch_size", len(batch)))
			inserted, failed, err := e.retryItems(ctx, batch)
			summary.Inserted += inserted
			summary.Failed += failed
			if err != nil {
				summary.Status = models.StatusError
				summary.Message = "retry interrupted"
				return summary, err
			}
		}

		if err := e.pacer.Pace(ctx, p.BatchPace); err != nil {
			summary.Status = models.StatusError
			summary.Message = "retry interrupted"
			return summary, err
		}
	}

	summary.Message = fmt.Sprintf("Successfully retried %d/%d records", summary.Inserted, summary.Candidates)
	e.logger.Info("Retry finished",
		zap.Int("inserted", summary.Inserted),
		zap.Int("failed", summary.Failed),
		zap.Int("candidates", summary.Candidates))
	return summary, nil
}

// retryItems inserts the batch one record at a time. It stops when pacing
// fails, leaving the rest of the batch untouched.
func (e *Engine) retryItems(ctx context.Context, batch []models.AttendanceRecord) (inserted, failed int, err error) {
	for _, r := range batch {
		if n, ok := e.insertWithAttempts(ctx, []models.AttendanceRecord{r}, e.retry.ItemAttempts, e.retry.ItemPace); ok {
			inserted += int(n)
		} else {
			failed++
			e.metrics.AddRecords(metrics.OutcomeFailed, 1)
			e.logger.Error("Failed to retry record",
				zap.Int64("emp_id", r.EmpID),
				zap.String("time_stamp", r.TimeStamp))
		}
		if err := e.pacer.Pace(ctx, e.retry.ItemPace); err != nil {
			return inserted, failed, err
		}
	}
	return inserted, failed, nil
}

// insertWithAttempts tries records up to attempts times, pausing between
// tries. ok is false when every attempt failed.
func (e *Engine) insertWithAttempts(ctx context.Context, records []models.AttendanceRecord, attempts int, pause time.Duration) (int64, bool) {
	for i := 1; i <= attempts; i++ {
		start := time.Now()
		n, err := e.sink.Insert(ctx, records)
		e.metrics.ObserveBatch(err == nil, time.Since(start).Seconds())
		if err == nil {
			e.metrics.AddRecords(metrics.OutcomeMigrated, n)
			return n, true
		}
		e.logger.Warn("Insert attempt failed",
			zap.Int("attempt", i),
			zap.Int("batch_size", len(records)),
			zap.Error(err))
		if i < attempts {
			if err := e.pacer.Pace(ctx, pause); err != nil {
				return 0, false
			}
		}
	}
	return 0, false
}

// missing returns the records whose natural key is absent from keys, one
// per key, in source order.
func missing(records []models.AttendanceRecord, keys []models.Key) []models.AttendanceRecord {
	present := make(map[models.Key]struct{}, len(keys))
	for _, k := range keys {
		present[k] = struct{}{}
	}

	out := make([]models.AttendanceRecord, 0)
	for _, r := range records {
		k := r.Key()
		if _, ok := present[k]; ok {
			continue
		}
		present[k] = struct{}{}
		r.ID = 0
		out = append(out, r)
	}
	return out
}
