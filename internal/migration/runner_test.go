package migration

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/PratikDhanave/attendance-sync-service/internal/lock"
	"github.com/PratikDhanave/attendance-sync-service/internal/metrics"
	"github.com/PratikDhanave/attendance-sync-service/internal/models"
	"github.com/PratikDhanave/attendance-sync-service/internal/source"
	"github.com/PratikDhanave/attendance-sync-service/internal/store"
)

func TestRunner_BackgroundRun(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	sink := store.NewMemorySink()
	engine := NewEngine(source.NewMemory(records(25)...), sink, Options{
		BatchSize: 10,
		Pacer:     &recordingPacer{},
		Metrics:   m,
		Logger:    zaptest.NewLogger(t),
	})
	r := NewRunner(engine, lock.NewLocalLocker(), m, zaptest.NewLogger(t))

	runID, err := r.StartFullMigration(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	r.Wait()

	state := r.State()
	assert.False(t, state.Running)
	assert.Equal(t, runID, state.RunID)
	assert.InDelta(t, 100, state.Progress, 1e-9)
	require.NotNil(t, state.StartedAt)
	require.NotNil(t, state.FinishedAt)
	require.NotNil(t, state.LastSummary)
	assert.Equal(t, int64(25), state.LastSummary.Migrated)
	assert.Empty(t, state.LastError)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(KindFull, models.StatusSuccess)))
	assert.Equal(t, 25.0, testutil.ToFloat64(m.RecordsTotal.WithLabelValues(metrics.OutcomeMigrated)))
	assert.Zero(t, testutil.ToFloat64(m.RunInProgress))
}

func TestRunner_RejectsOverlappingRuns(t *testing.T) {
	ctx := context.Background()
	pacer := newGatePacer()
	engine := NewEngine(source.NewMemory(records(5)...), store.NewMemorySink(), Options{
		BatchSize: 10,
		Pacer:     pacer,
		Logger:    zaptest.NewLogger(t),
	})
	r := NewRunner(engine, nil, nil, zaptest.NewLogger(t))

	_, err := r.StartFullMigration(ctx)
	require.NoError(t, err)

	select {
	case <-pacer.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not start")
	}
	assert.True(t, r.State().Running)

	_, err = r.StartFullMigration(ctx)
	assert.ErrorIs(t, err, lock.ErrLocked)

	_, err = r.Retry(ctx)
	assert.ErrorIs(t, err, lock.ErrLocked)

	close(pacer.release)
	r.Wait()

	// The lock is free again once the run finishes.
	summary, err := r.Retry(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Candidates)
}

func TestRunner_RecordsFailure(t *testing.T) {
	src := source.NewMemory(records(3)...)
	src.FailCount()
	engine := NewEngine(src, store.NewMemorySink(), Options{Pacer: &recordingPacer{}})
	r := NewRunner(engine, nil, nil, nil)

	summary, err := r.MigrateAll(context.Background())
	assert.ErrorIs(t, err, source.ErrInjected)
	require.NotNil(t, summary)
	assert.Equal(t, models.StatusError, summary.Status)

	state := r.State()
	assert.False(t, state.Running)
	assert.NotEmpty(t, state.LastError)
	require.NotNil(t, state.LastSummary)
	assert.Equal(t, models.StatusError, state.LastSummary.Status)
}

func TestRunner_ShutdownCancelsBackgroundRun(t *testing.T) {
	pacer := newGatePacer()
	engine := NewEngine(source.NewMemory(records(5)...), store.NewMemorySink(), Options{Pacer: pacer})
	r := NewRunner(engine, nil, nil, nil)

	_, err := r.StartFullMigration(context.Background())
	require.NoError(t, err)
	<-pacer.entered

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	state := r.State()
	assert.False(t, state.Running)
	assert.Contains(t, state.LastError, context.Canceled.Error())
}

func TestRunner_StateIsACopy(t *testing.T) {
	engine := NewEngine(source.NewMemory(records(2)...), store.NewMemorySink(), Options{Pacer: &recordingPacer{}})
	r := NewRunner(engine, nil, nil, nil)

	_, err := r.MigrateAll(context.Background())
	require.NoError(t, err)

	s := r.State()
	s.LastSummary.Migrated = 999
	assert.Equal(t, int64(2), r.State().LastSummary.Migrated)
}

type countingPurger struct {
	sink  store.Sink
	calls int
}

func (p *countingPurger) Confirm(ctx context.Context, _ string) (int64, error) {
	p.calls++
	return p.sink.Delete(ctx, store.Query{})
}

func TestRunner_PurgeWaitsForLock(t *testing.T) {
	ctx := context.Background()
	recs := records(5)
	sink := store.NewMemorySink()
	_, err := sink.Insert(ctx, recs)
	require.NoError(t, err)

	pacer := newGatePacer()
	engine := NewEngine(source.NewMemory(recs...), sink, Options{
		BatchSize: 10,
		Pacer:     pacer,
		Logger:    zaptest.NewLogger(t),
	})
	r := NewRunner(engine, nil, nil, zaptest.NewLogger(t))
	p := &countingPurger{sink: sink}

	_, err = r.StartFullMigration(ctx)
	require.NoError(t, err)
	<-pacer.entered

	_, _, err = r.Purge(ctx, p, "token", true)
	assert.ErrorIs(t, err, lock.ErrLocked)
	assert.Zero(t, p.calls, "nothing is deleted while a run holds the lock")

	close(pacer.release)
	r.Wait()

	deleted, runID, err := r.Purge(ctx, p, "token", true)
	require.NoError(t, err)
	assert.Equal(t, int64(5), deleted)
	assert.NotEmpty(t, runID)

	r.Wait()

	n, err := sink.Count(ctx, store.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, runID, r.State().RunID)
}

func TestRunner_PurgeWithoutRestartReleasesLock(t *testing.T) {
	ctx := context.Background()
	sink := store.NewMemorySink()
	engine := NewEngine(source.NewMemory(), sink, Options{Pacer: &recordingPacer{}})
	r := NewRunner(engine, nil, nil, nil)

	_, runID, err := r.Purge(ctx, &countingPurger{sink: sink}, "token", false)
	require.NoError(t, err)
	assert.Empty(t, runID)

	_, err = r.StartFullMigration(ctx)
	require.NoError(t, err)
	r.Wait()
}
