// Package source provides read access to the local attendance store that
// the reconciliation engine copies from.
package source

import (
	"context"

	"github.com/PratikDhanave/attendance-sync-service/internal/models"
)

// Session is one exclusively owned connection to the source store. It is
// acquired for the duration of a single run and must be closed by the caller.
type Session interface {
	// Count returns the total number of attendance rows.
	Count(ctx context.Context) (int64, error)
	// FetchPage returns up to limit rows starting at offset, ordered by id.
	FetchPage(ctx context.Context, limit, offset int) ([]models.AttendanceRecord, error)
	// FetchAll loads every row. Only retry runs use it.
	FetchAll(ctx context.Context) ([]models.AttendanceRecord, error)
	Close() error
}

// Opener hands out sessions.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}
