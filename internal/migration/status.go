package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/PratikDhanave/attendance-sync-service/internal/metrics"
	"github.com/PratikDhanave/attendance-sync-service/internal/models"
	"github.com/PratikDhanave/attendance-sync-service/internal/source"
	"github.com/PratikDhanave/attendance-sync-service/internal/store"
)

// DayLayout is the time_stamp prefix that identifies one calendar day.
const DayLayout = "2006-01-02"

// Reporter computes aggregate counts over the source and sink.
type Reporter struct {
	opener  source.Opener
	sink    store.Sink
	metrics *metrics.Metrics
}

func NewReporter(opener source.Opener, sink store.Sink, m *metrics.Metrics) *Reporter {
	return &Reporter{opener: opener, sink: sink, metrics: m}
}

// Report compares source and sink totals. Either count failing fails the
// whole report.
func (r *Reporter) Report(ctx context.Context) (*models.MigrationStats, error) {
	srcCount, err := r.sourceCount(ctx)
	if err != nil {
		return nil, err
	}
	sinkCount, err := r.sink.Count(ctx, store.Query{})
	if err != nil {
		return nil, fmt.Errorf("count sink records: %w", err)
	}

	r.metrics.SetTotals(srcCount, sinkCount)
	return ComputeStats(srcCount, sinkCount), nil
}

// ComputeStats derives remaining and percent complete from two totals.
func ComputeStats(sourceCount, sinkCount int64) *models.MigrationStats {
	stats := &models.MigrationStats{
		SourceRecords: sourceCount,
		SinkRecords:   sinkCount,
		Remaining:     max(0, sourceCount-sinkCount),
	}
	if sourceCount > 0 {
		stats.PercentageComplete = float64(sinkCount) / float64(sourceCount) * 100
	}
	return stats
}

// AttendanceStats summarises the sink. "Today" is the day of now, matched
// as a time_stamp prefix.
func (r *Reporter) AttendanceStats(ctx context.Context, now time.Time) (*models.AttendanceStats, error) {
	total, err := r.sink.Count(ctx, store.Query{})
	if err != nil {
		return nil, fmt.Errorf("count sink records: %w", err)
	}
	today, err := r.sink.Count(ctx, store.Query{Prefix: now.Format(DayLayout)})
	if err != nil {
		return nil, fmt.Errorf("count today's records: %w", err)
	}
	employees, err := r.sink.DistinctEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("count employees: %w", err)
	}

	return &models.AttendanceStats{
		TotalRecords:    total,
		TodayRecords:    today,
		UniqueEmployees: employees,
	}, nil
}

func (r *Reporter) sourceCount(ctx context.Context) (int64, error) {
	session, err := r.opener.Open(ctx)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer session.Close()

	n, err := session.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count source records: %w", err)
	}
	return n, nil
}
