package store

import (
	"context"
	"sort"
	"sync"

	"github.com/PratikDhanave/attendance-sync-service/internal/models"
)

// MemorySink keeps rows in process. It backs the "memory" backend used for
// dry runs and is the fake sink in tests.
type MemorySink struct {
	mu     sync.RWMutex
	rows   []models.AttendanceRecord
	index  map[models.Key]struct{}
	nextID int64
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{index: map[models.Key]struct{}{}}
}

// Select implements Sink.
func (m *MemorySink) Select(_ context.Context, q Query) ([]models.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.AttendanceRecord
	for _, r := range m.rows {
		if q.matches(r) {
			out = append(out, r)
		}
	}
	if q.Desc {
		sort.SliceStable(out, func(i, j int) bool { return out[i].TimeStamp > out[j].TimeStamp })
	}
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Count implements Sink.
func (m *MemorySink) Count(_ context.Context, q Query) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, r := range m.rows {
		if q.matches(r) {
			n++
		}
	}
	return n, nil
}

// Insert implements Sink.
func (m *MemorySink) Insert(_ context.Context, records []models.AttendanceRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var inserted int64
	for _, r := range records {
		k := r.Key()
		if _, ok := m.index[k]; ok {
			continue
		}
		m.nextID++
		r.ID = m.nextID
		m.rows = append(m.rows, r)
		m.index[k] = struct{}{}
		inserted++
	}
	return inserted, nil
}

// Keys implements Sink.
func (m *MemorySink) Keys(context.Context) ([]models.Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]models.Key, 0, len(m.rows))
	for _, r := range m.rows {
		keys = append(keys, r.Key())
	}
	return keys, nil
}

// DistinctEmployees implements Sink.
func (m *MemorySink) DistinctEmployees(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := map[int64]struct{}{}
	for _, r := range m.rows {
		seen[r.EmpID] = struct{}{}
	}
	return int64(len(seen)), nil
}

// Delete implements Sink.
func (m *MemorySink) Delete(_ context.Context, q Query) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.rows[:0]
	var removed int64
	for _, r := range m.rows {
		if q.matches(r) {
			delete(m.index, r.Key())
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return removed, nil
}

// Ping implements Sink.
func (m *MemorySink) Ping(context.Context) error { return nil }

// Close implements Sink.
func (m *MemorySink) Close() {}
