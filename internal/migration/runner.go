package migration

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PratikDhanave/attendance-sync-service/internal/lock"
	"github.com/PratikDhanave/attendance-sync-service/internal/metrics"
	"github.com/PratikDhanave/attendance-sync-service/internal/models"
)

// Run kinds used in metrics.
const (
	KindFull  = "full"
	KindRetry = "retry"
)

// Runner serialises migration runs behind a lock and keeps the state of the
// current or most recent full migration.
type Runner struct {
	engine  *Engine
	locker  lock.Locker
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time

	// Background runs outlive the request that started them; Shutdown
	// cancels this context.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	state models.RunState
}

func NewRunner(engine *Engine, locker lock.Locker, m *metrics.Metrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		engine:  engine,
		locker:  locker,
		metrics: m,
		logger:  logger,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// StartFullMigration starts a full migration in the background and returns
// its run id. It fails with lock.ErrLocked while another run holds the lock.
func (r *Runner) StartFullMigration(ctx context.Context) (string, error) {
	unlock, err := r.locker.TryLock(ctx)
	if err != nil {
		return "", err
	}
	return r.startLocked(unlock), nil
}

// Purger deletes the sink rows of a previewed purge.
type Purger interface {
	Confirm(ctx context.Context, token string) (int64, error)
}

// Purge confirms a previewed delete while holding the run lock, so rows
// cannot vanish under an active run. With restart, a full migration starts
// under the same lock once the delete is done. It fails with lock.ErrLocked
// before anything is deleted.
func (r *Runner) Purge(ctx context.Context, p Purger, token string, restart bool) (deleted int64, runID string, err error) {
	unlock, err := r.locker.TryLock(ctx)
	if err != nil {
		return 0, "", err
	}

	deleted, err = p.Confirm(ctx, token)
	if err != nil || !restart {
		r.release(unlock)
		return deleted, "", err
	}
	return deleted, r.startLocked(unlock), nil
}

// startLocked runs a full migration in the background. The goroutine owns
// unlock from here on.
func (r *Runner) startLocked(unlock lock.Unlock) string {
	runID := r.begin()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(unlock)
		_, _ = r.migrate(r.ctx, runID)
	}()
	return runID
}

// MigrateAll runs a full migration in the caller's goroutine.
func (r *Runner) MigrateAll(ctx context.Context) (*models.MigrationSummary, error) {
	unlock, err := r.locker.TryLock(ctx)
	if err != nil {
		return nil, err
	}
	defer r.release(unlock)

	return r.migrate(ctx, r.begin())
}

// Retry runs retry mode synchronously under the same lock as full runs.
func (r *Runner) Retry(ctx context.Context) (*models.RetrySummary, error) {
	unlock, err := r.locker.TryLock(ctx)
	if err != nil {
		return nil, err
	}
	defer r.release(unlock)

	summary, err := r.engine.Retry(ctx)
	status := models.StatusSuccess
	if err != nil || (summary != nil && summary.Status != models.StatusSuccess) {
		status = models.StatusError
	}
	r.metrics.RunFinished(KindRetry, status)
	return summary, err
}

// State returns a copy of the current run state.
func (r *Runner) State() models.RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.state
	if s.LastSummary != nil {
		summary := *s.LastSummary
		s.LastSummary = &summary
	}
	return s
}

// Wait blocks until background runs have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown cancels background runs and waits for them, up to ctx.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) begin() string {
	runID := uuid.NewString()
	started := r.now()

	r.mu.Lock()
	r.state = models.RunState{
		Running:     true,
		RunID:       runID,
		StartedAt:   &started,
		LastSummary: r.state.LastSummary,
	}
	r.mu.Unlock()

	r.metrics.SetRunning(true)
	r.metrics.SetProgress(0)
	return runID
}

func (r *Runner) migrate(ctx context.Context, runID string) (*models.MigrationSummary, error) {
	logger := r.logger.With(zap.String("run_id", runID))
	logger.Info("Migration started")

	summary, err := r.engine.MigrateAll(ctx, func(p Progress) {
		r.mu.Lock()
		r.state.Progress = p.Percent
		r.mu.Unlock()
	})

	finished := r.now()
	r.mu.Lock()
	r.state.Running = false
	r.state.FinishedAt = &finished
	r.state.LastError = ""
	if err != nil {
		r.state.LastError = err.Error()
	}
	if summary == nil {
		summary = &models.MigrationSummary{Status: models.StatusError, Message: r.state.LastError}
	}
	r.state.LastSummary = summary
	r.mu.Unlock()

	r.metrics.SetRunning(false)
	r.metrics.RunFinished(KindFull, summary.Status)

	if err != nil {
		logger.Error("Migration failed", zap.Error(err))
	} else {
		logger.Info("Migration completed",
			zap.Int64("migrated", summary.Migrated),
			zap.Int64("skipped", summary.Skipped),
			zap.Int64("failed", summary.Failed))
	}
	return summary, err
}

func (r *Runner) release(unlock lock.Unlock) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := unlock(ctx); err != nil {
		r.logger.Warn("Failed to release migration lock", zap.Error(err))
	}
}
