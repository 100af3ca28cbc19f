package source

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/PratikDhanave/attendance-sync-service/internal/models"
)

// TimeStampLayout is the layout the capture device writes. The engine never
// parses it; the seeder only needs it to produce realistic, sortable values.
const TimeStampLayout = "2006-01-02 15:04:05"

// Generate produces n fake punches for the given number of employees,
// spread across the working hours of day. A zero seed picks a random one.
func Generate(seed int64, n, employees int, day time.Time) []models.AttendanceRecord {
	if employees <= 0 {
		employees = 1
	}
	faker := gofakeit.New(seed)

	names := make([]string, employees)
	for i := range names {
		names[i] = faker.Name()
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), 7, 0, 0, 0, day.Location())
	out := make([]models.AttendanceRecord, 0, n)
	for i := 0; i < n; i++ {
		emp := faker.Number(0, employees-1)
		ts := start.Add(time.Duration(faker.Number(0, 11*3600)) * time.Second)
		out = append(out, models.AttendanceRecord{
			EmpID:     int64(1000 + emp),
			EmpName:   names[emp],
			TimeStamp: ts.Format(TimeStampLayout),
		})
	}
	return out
}

// Seed creates the table if needed and appends n generated rows.
func Seed(ctx context.Context, s *SQLiteSession, seed int64, n, employees int, day time.Time) (int, error) {
	if err := s.EnsureTable(ctx); err != nil {
		return 0, fmt.Errorf("ensure table: %w", err)
	}
	records := Generate(seed, n, employees, day)
	if err := s.Append(ctx, records); err != nil {
		return 0, fmt.Errorf("append: %w", err)
	}
	return len(records), nil
}
