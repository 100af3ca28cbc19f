package migration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PratikDhanave/attendance-sync-service/internal/models"
	"github.com/PratikDhanave/attendance-sync-service/internal/store"
)

var errSink = errors.New("sink unavailable")

// flakySink wraps MemorySink and fails calls on demand.
type flakySink struct {
	*store.MemorySink

	mu          sync.Mutex
	insertCalls int
	selectCalls int
	failInsert  func(call int, records []models.AttendanceRecord) bool
	failSelect  bool
	failCount   bool
}

func newFlakySink() *flakySink {
	return &flakySink{MemorySink: store.NewMemorySink()}
}

func (f *flakySink) Insert(ctx context.Context, records []models.AttendanceRecord) (int64, error) {
	f.mu.Lock()
	f.insertCalls++
	call := f.insertCalls
	fail := f.failInsert
	f.mu.Unlock()

	if fail != nil && fail(call, records) {
		return 0, errSink
	}
	return f.MemorySink.Insert(ctx, records)
}

func (f *flakySink) Select(ctx context.Context, q store.Query) ([]models.AttendanceRecord, error) {
	f.mu.Lock()
	f.selectCalls++
	fail := f.failSelect
	f.mu.Unlock()

	if fail {
		return nil, errSink
	}
	return f.MemorySink.Select(ctx, q)
}

func (f *flakySink) Count(ctx context.Context, q store.Query) (int64, error) {
	if f.failCount {
		return 0, errSink
	}
	return f.MemorySink.Count(ctx, q)
}

func (f *flakySink) calls() (inserts, selects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertCalls, f.selectCalls
}

// recordingPacer never sleeps.
type recordingPacer struct {
	mu    sync.Mutex
	waits []time.Duration
	err   error
}

func (p *recordingPacer) Pace(_ context.Context, d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waits = append(p.waits, d)
	return p.err
}

func (p *recordingPacer) count(d time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, w := range p.waits {
		if w == d {
			n++
		}
	}
	return n
}

// gatePacer blocks every pause until release is closed.
type gatePacer struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatePacer() *gatePacer {
	return &gatePacer{entered: make(chan struct{}), release: make(chan struct{})}
}

func (p *gatePacer) Pace(ctx context.Context, _ time.Duration) error {
	p.once.Do(func() { close(p.entered) })
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func records(n int) []models.AttendanceRecord {
	out := make([]models.AttendanceRecord, n)
	for i := range out {
		out[i] = models.AttendanceRecord{
			ID:        int64(i + 1),
			EmpID:     int64(1000 + i%7),
			EmpName:   fmt.Sprintf("Employee %d", i%7),
			TimeStamp: time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute).Format("2006-01-02 15:04:05"),
		}
	}
	return out
}
