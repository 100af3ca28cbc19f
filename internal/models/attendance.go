package models

import "time"

// AttendanceRecord is one clock-in/clock-out event as stored in the local
// source table and copied to the sink. ID is the store-local surrogate key;
// the sink assigns its own.
type AttendanceRecord struct {
	ID        int64  `json:"id,omitempty"`
	EmpID     int64  `json:"emp_id"`
	EmpName   string `json:"emp_name"`
	TimeStamp string `json:"time_stamp"`
}

// Key returns the natural key used for deduplication.
func (r AttendanceRecord) Key() Key {
	return Key{EmpID: r.EmpID, TimeStamp: r.TimeStamp}
}

// Key identifies an attendance event regardless of name or surrogate id.
// TimeStamp is opaque and compared lexically; it is never parsed.
type Key struct {
	EmpID     int64  `json:"emp_id"`
	TimeStamp string `json:"time_stamp"`
}

// Run status values reported in summaries.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// MigrationSummary is the result of one full migration run.
type MigrationSummary struct {
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
	TotalInSource int64  `json:"total_in_sqlite"`
	Migrated      int64  `json:"migrated"`
	Skipped       int64  `json:"skipped"`
	Failed        int64  `json:"failed"`
}

// RetrySummary is the result of one retry-only run.
type RetrySummary struct {
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	Candidates int    `json:"candidates"`
	Inserted   int    `json:"inserted"`
	Failed     int    `json:"failed"`
}

// MigrationStats compares source and sink totals.
type MigrationStats struct {
	SourceRecords      int64   `json:"sqlite_records"`
	SinkRecords        int64   `json:"supabase_records"`
	Remaining          int64   `json:"remaining"`
	PercentageComplete float64 `json:"percentage_complete"`
}

// AttendanceStats summarises what is currently in the sink.
type AttendanceStats struct {
	TotalRecords    int64 `json:"total_records"`
	TodayRecords    int64 `json:"today_records"`
	UniqueEmployees int64 `json:"unique_employees"`
}

// RunState describes the current or most recent background run.
type RunState struct {
	Running     bool              `json:"running"`
	RunID       string            `json:"run_id,omitempty"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
	Progress    float64           `json:"progress_pct"`
	LastSummary *MigrationSummary `json:"last_summary,omitempty"`
	LastError   string            `json:"last_error,omitempty"`
}

// RecordsResponse is returned by the sink inspection endpoint.
type RecordsResponse struct {
	Total  int                `json:"total"`
	Offset int                `json:"offset"`
	Limit  int                `json:"limit"`
	Data   []AttendanceRecord `json:"data"`
}

// MigrationStatus is the body of the status endpoint.
type MigrationStatus struct {
	MigrationStats
	Run RunState `json:"run"`
}

// PurgeRequest confirms a previously previewed delete. With Restart set a
// full migration is started once the rows are gone.
type PurgeRequest struct {
	Token   string `json:"token"`
	Restart bool   `json:"restart"`
}

// PurgeResult reports a confirmed delete.
type PurgeResult struct {
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
	RunID   string `json:"run_id,omitempty"`
}

// PurgePreview is returned by the first step of a destructive delete.
type PurgePreview struct {
	Token        string    `json:"token"`
	PreviewCount int64     `json:"preview_count"`
	ExpiresAt    time.Time `json:"expires_at"`
}
