package migration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/PratikDhanave/attendance-sync-service/internal/models"
	"github.com/PratikDhanave/attendance-sync-service/internal/source"
	"github.com/PratikDhanave/attendance-sync-service/internal/store"
)

func newRetryEngine(t *testing.T, src source.Opener, sink store.Sink, pacer Pacer) *Engine {
	t.Helper()
	return NewEngine(src, sink, Options{
		Retry:  DefaultRetryPolicy(),
		Pacer:  pacer,
		Logger: zaptest.NewLogger(t),
	})
}

func TestRetry_InsertsOnlyMissing(t *testing.T) {
	ctx := context.Background()
	all := records(30)
	sink := store.NewMemorySink()
	_, err := sink.Insert(ctx, all[:12])
	require.NoError(t, err)

	summary, err := newRetryEngine(t, source.NewMemory(all...), sink, &recordingPacer{}).Retry(ctx)
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, summary.Status)
	assert.Equal(t, 18, summary.Candidates)
	assert.Equal(t, 18, summary.Inserted)
	assert.Zero(t, summary.Failed)

	n, err := sink.Count(ctx, store.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(30), n)
}

func TestRetry_NothingToDo(t *testing.T) {
	ctx := context.Background()
	all := records(5)
	sink := newFlakySink()
	_, err := sink.MemorySink.Insert(ctx, all)
	require.NoError(t, err)

	summary, err := newRetryEngine(t, source.NewMemory(all...), sink, &recordingPacer{}).Retry(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Candidates)
	assert.Equal(t, "No records to retry", summary.Message)

	inserts, _ := sink.calls()
	assert.Zero(t, inserts)
}

func TestRetry_FallsBackToIndividualInserts(t *testing.T) {
	ctx := context.Background()
	all := records(60)
	bad := map[models.Key]bool{
		all[3].Key():  true,
		all[41].Key(): true,
	}

	sink := newFlakySink()
	sink.failInsert = func(call int, recs []models.AttendanceRecord) bool {
		// The first bulk batch fails outright; single records fail only
		// for the two bad keys.
		if call == 1 {
			return true
		}
		return len(recs) == 1 && bad[recs[0].Key()]
	}
	pacer := &recordingPacer{}

	summary, err := newRetryEngine(t, source.NewMemory(all...), sink, pacer).Retry(ctx)
	require.NoError(t, err)

	// Batch one (50) falls back: 48 succeed, all[3] and all[41] fail.
	// Batch two (10) inserts in bulk.
	assert.Equal(t, 60, summary.Candidates)
	assert.Equal(t, 58, summary.Inserted)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, "Successfully retried 58/60 records", summary.Message)

	inserts, _ := sink.calls()
	assert.Equal(t, 1+50+1, inserts)

	for _, r := range all {
		got, err := sink.MemorySink.Select(ctx, store.ByKey(r.Key()))
		require.NoError(t, err)
		if bad[r.Key()] {
			assert.Empty(t, got)
		} else {
			assert.Len(t, got, 1)
		}
	}

	p := DefaultRetryPolicy()
	assert.Equal(t, 50, pacer.count(p.ItemPace))
	assert.Equal(t, 2, pacer.count(p.BatchPace))
}

func TestRetry_ItemFallbackStopsWhenCancelled(t *testing.T) {
	ctx := context.Background()
	all := records(10)

	sink := newFlakySink()
	sink.failInsert = func(call int, recs []models.AttendanceRecord) bool {
		return len(recs) > 1
	}
	pacer := &recordingPacer{err: context.Canceled}

	summary, err := newRetryEngine(t, source.NewMemory(all...), sink, pacer).Retry(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, models.StatusError, summary.Status)
	assert.Equal(t, "retry interrupted", summary.Message)
	assert.Equal(t, 1, summary.Inserted)
	assert.Zero(t, summary.Failed)

	// One bulk attempt, then a single record before the pause fails.
	inserts, _ := sink.calls()
	assert.Equal(t, 2, inserts)

	n, err := sink.Count(ctx, store.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRetry_BatchAttempts(t *testing.T) {
	ctx := context.Background()
	sink := newFlakySink()
	sink.failInsert = func(call int, _ []models.AttendanceRecord) bool { return call == 1 }

	engine := NewEngine(source.NewMemory(records(5)...), sink, Options{
		Retry:  RetryPolicy{BatchSize: 50, BatchAttempts: 2, ItemAttempts: 1},
		Pacer:  &recordingPacer{},
		Logger: zaptest.NewLogger(t),
	})

	summary, err := engine.Retry(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Inserted)

	// The second bulk attempt succeeded, so no per-record fallback ran.
	inserts, _ := sink.calls()
	assert.Equal(t, 2, inserts)
}

func TestRetry_DedupsCandidatesByKey(t *testing.T) {
	ctx := context.Background()
	a := models.AttendanceRecord{ID: 1, EmpID: 7, EmpName: "Ana", TimeStamp: "2025-03-01 08:00:00"}
	b := models.AttendanceRecord{ID: 2, EmpID: 7, EmpName: "Ana M.", TimeStamp: "2025-03-01 08:00:00"}

	sink := store.NewMemorySink()
	summary, err := newRetryEngine(t, source.NewMemory(a, b), sink, &recordingPacer{}).Retry(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Candidates)
	assert.Equal(t, 1, summary.Inserted)

	n, err := sink.Count(ctx, store.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRetry_SourceFailure(t *testing.T) {
	src := source.NewMemory(records(5)...)
	src.FailFetchAll()

	summary, err := newRetryEngine(t, src, store.NewMemorySink(), &recordingPacer{}).Retry(context.Background())
	assert.ErrorIs(t, err, source.ErrInjected)
	assert.Nil(t, summary)

	opened, closed := src.Sessions()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
}

func TestRetryPolicy_Defaults(t *testing.T) {
	p := RetryPolicy{}.withDefaults()
	assert.Equal(t, DefaultRetryPolicy().BatchSize, p.BatchSize)
	assert.Equal(t, 1, p.BatchAttempts)
	assert.Equal(t, 1, p.ItemAttempts)
	assert.Zero(t, p.BatchPace)
}
