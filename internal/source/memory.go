package source

import (
	"context"
	"errors"
	"sync"

	"github.com/PratikDhanave/attendance-sync-service/internal/models"
)

// ErrInjected is returned by Memory when a failure has been requested.
var ErrInjected = errors.New("source: injected failure")

// Memory is an in-process source used by tests and dry runs. Failures can
// be injected per operation to exercise the engine's error paths.
type Memory struct {
	mu        sync.Mutex
	records   []models.AttendanceRecord
	failOpen  bool
	failCount bool
	failAll   bool
	failPages map[int]bool
	opened    int
	closed    int
}

// NewMemory returns a source holding the given records in order.
func NewMemory(records ...models.AttendanceRecord) *Memory {
	cp := make([]models.AttendanceRecord, len(records))
	copy(cp, records)
	return &Memory{records: cp, failPages: map[int]bool{}}
}

// FailOpen makes every later Open fail.
func (m *Memory) FailOpen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOpen = true
}

// FailCount makes Count fail.
func (m *Memory) FailCount() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCount = true
}

// FailFetchAll makes FetchAll fail.
func (m *Memory) FailFetchAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = true
}

// FailPage makes the page starting at offset fail.
func (m *Memory) FailPage(offset int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPages[offset] = true
}

// Sessions reports how many sessions were opened and closed.
func (m *Memory) Sessions() (opened, closed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened, m.closed
}

// Open implements Opener.
func (m *Memory) Open(context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOpen {
		return nil, ErrInjected
	}
	m.opened++
	return &memorySession{m: m}, nil
}

type memorySession struct {
	m *Memory
}

func (s *memorySession) Count(context.Context) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.failCount {
		return 0, ErrInjected
	}
	return int64(len(s.m.records)), nil
}

func (s *memorySession) FetchPage(_ context.Context, limit, offset int) ([]models.AttendanceRecord, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.failPages[offset] {
		return nil, ErrInjected
	}
	if offset >= len(s.m.records) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.m.records) {
		end = len(s.m.records)
	}
	out := make([]models.AttendanceRecord, end-offset)
	copy(out, s.m.records[offset:end])
	return out, nil
}

func (s *memorySession) FetchAll(context.Context) ([]models.AttendanceRecord, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.failAll {
		return nil, ErrInjected
	}
	out := make([]models.AttendanceRecord, len(s.m.records))
	copy(out, s.m.records)
	return out, nil
}

func (s *memorySession) Close() error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.closed++
	return nil
}
