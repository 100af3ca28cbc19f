// Package store implements the remote table store that attendance records
// are copied into. Every backend enforces uniqueness on the natural key
// (emp_id, time_stamp) and silently skips conflicting rows on insert.
package store

import (
	"context"
	"errors"

	"github.com/PratikDhanave/attendance-sync-service/internal/models"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("store: unknown sink backend")

// Sink is the destination table.
type Sink interface {
	// Select returns rows matching q.
	Select(ctx context.Context, q Query) ([]models.AttendanceRecord, error)
	// Count returns the number of rows matching q; Limit and Offset are ignored.
	Count(ctx context.Context, q Query) (int64, error)
	// Insert writes all records in one call and returns how many were new.
	// Rows whose natural key already exists are skipped, not reported as errors.
	Insert(ctx context.Context, records []models.AttendanceRecord) (int64, error)
	// Keys returns the natural key of every row.
	Keys(ctx context.Context) ([]models.Key, error)
	// DistinctEmployees counts distinct emp_id values.
	DistinctEmployees(ctx context.Context) (int64, error)
	// Delete removes rows matching q and returns how many were removed.
	// An empty query removes every row.
	Delete(ctx context.Context, q Query) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

// Query filters sink rows. Zero values mean "no constraint".
type Query struct {
	EmpID     *int64
	TimeStamp *string
	// From and To bound time_stamp inclusively, compared as strings.
	From string
	To   string
	// Prefix matches time_stamp values starting with it, e.g. "2025-01-02".
	Prefix string
	// Desc orders by time_stamp descending; otherwise insertion order.
	Desc   bool
	Limit  int
	Offset int
}

// ByKey returns a point query for one natural key.
func ByKey(k models.Key) Query {
	id, ts := k.EmpID, k.TimeStamp
	return Query{EmpID: &id, TimeStamp: &ts, Limit: 1}
}

// IsEmpty reports whether q has no filter.
func (q Query) IsEmpty() bool {
	return q.EmpID == nil && q.TimeStamp == nil && q.From == "" && q.To == "" && q.Prefix == ""
}

func (q Query) matches(r models.AttendanceRecord) bool {
	if q.EmpID != nil && r.EmpID != *q.EmpID {
		return false
	}
	if q.TimeStamp != nil && r.TimeStamp != *q.TimeStamp {
		return false
	}
	if q.From != "" && r.TimeStamp < q.From {
		return false
	}
	if q.To != "" && r.TimeStamp > q.To {
		return false
	}
	if q.Prefix != "" && (len(r.TimeStamp) < len(q.Prefix) || r.TimeStamp[:len(q.Prefix)] != q.Prefix) {
		return false
	}
	return true
}
