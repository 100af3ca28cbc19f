package store

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/PratikDhanave/attendance-sync-service/internal/models"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// surrealRow is the stored document. The record id is left to SurrealDB.
type surrealRow struct {
	EmpID     int64  `json:"emp_id"`
	EmpName   string `json:"emp_name"`
	TimeStamp string `json:"time_stamp"`
}

func (r surrealRow) record() models.AttendanceRecord {
	return models.AttendanceRecord{EmpID: r.EmpID, EmpName: r.EmpName, TimeStamp: r.TimeStamp}
}

type surrealCount struct {
	N int64 `json:"n"`
}

// SurrealSink stores attendance rows as SurrealDB documents. A UNIQUE index
// on (emp_id, time_stamp) plus INSERT IGNORE gives the same conflict
// behaviour as the Postgres backend.
type SurrealSink struct {
	db    *surrealdb.DB
	table string
}

// NewSurrealSink connects over WebSocket, signs in and selects the
// namespace and database.
func NewSurrealSink(ctx context.Context, wsURL, namespace, database, username, password, table string) (*SurrealSink, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	db, err := surrealdb.FromConnection(ctx, gorillaws.New(conf))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if username != "" && password != "" {
		if _, err := db.SignIn(ctx, surrealdb.Auth{
			Username: username,
			Password: password,
		}); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, namespace, database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	return &SurrealSink{db: db, table: table}, nil
}

// Migrate defines the table and the natural-key index.
func (s *SurrealSink) Migrate(ctx context.Context) error {
	stmt := fmt.Sprintf(`
		DEFINE TABLE IF NOT EXISTS %[1]s SCHEMALESS;
		DEFINE INDEX IF NOT EXISTS %[1]s_emp_time ON TABLE %[1]s FIELDS emp_id, time_stamp UNIQUE;
		DEFINE INDEX IF NOT EXISTS %[1]s_time ON TABLE %[1]s FIELDS time_stamp;
	`, s.table)
	_, err := query[any](ctx, s.db, stmt, nil)
	return err
}

// Insert implements Sink.
func (s *SurrealSink) Insert(ctx context.Context, records []models.AttendanceRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	rows := make([]surrealRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, surrealRow{EmpID: r.EmpID, EmpName: r.EmpName, TimeStamp: r.TimeStamp})
	}

	// IGNORE drops rows that violate the unique index; only new rows come back.
	inserted, err := query[[]surrealRow](ctx, s.db, "INSERT IGNORE INTO "+s.table+" $rows", map[string]any{"rows": rows})
	if err != nil {
		return 0, err
	}
	return int64(len(inserted)), nil
}

// Select implements Sink.
func (s *SurrealSink) Select(ctx context.Context, q Query) ([]models.AttendanceRecord, error) {
	where, vars := buildSurrealWhere(q)

	stmt := "SELECT emp_id, emp_name, time_stamp FROM " + s.table + where
	if q.Desc {
		stmt += " ORDER BY time_stamp DESC"
	}
	if q.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		stmt += fmt.Sprintf(" START %d", q.Offset)
	}

	rows, err := query[[]surrealRow](ctx, s.db, stmt, vars)
	if err != nil {
		return nil, err
	}
	out := make([]models.AttendanceRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

// Count implements Sink.
func (s *SurrealSink) Count(ctx context.Context, q Query) (int64, error) {
	where, vars := buildSurrealWhere(q)

	rows, err := query[[]surrealCount](ctx, s.db, "SELECT count() AS n FROM "+s.table+where+" GROUP ALL", vars)
	if err != nil {
		return 0, err
	}
	// An empty table yields no group at all.
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].N, nil
}

// Keys implements Sink.
func (s *SurrealSink) Keys(ctx context.Context) ([]models.Key, error) {
	rows, err := query[[]surrealRow](ctx, s.db, "SELECT emp_id, time_stamp FROM "+s.table, nil)
	if err != nil {
		return nil, err
	}
	keys := make([]models.Key, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, models.Key{EmpID: r.EmpID, TimeStamp: r.TimeStamp})
	}
	return keys, nil
}

// DistinctEmployees implements Sink.
func (s *SurrealSink) DistinctEmployees(ctx context.Context) (int64, error) {
	rows, err := query[[]surrealRow](ctx, s.db, "SELECT emp_id FROM "+s.table+" GROUP BY emp_id", nil)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// Delete implements Sink.
func (s *SurrealSink) Delete(ctx context.Context, q Query) (int64, error) {
	where, vars := buildSurrealWhere(q)

	rows, err := query[[]surrealRow](ctx, s.db, "DELETE "+s.table+where+" RETURN BEFORE", vars)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// Ping implements Sink.
func (s *SurrealSink) Ping(ctx context.Context) error {
	_, err := query[bool](ctx, s.db, "RETURN true", nil)
	return err
}

// Close implements Sink.
func (s *SurrealSink) Close() {
	_ = s.db.Close(context.Background())
}

// query runs a statement and returns the result of the last one.
func query[T any](ctx context.Context, db *surrealdb.DB, stmt string, vars map[string]any) (T, error) {
	var zero T

	results, err := surrealdb.Query[T](ctx, db, stmt, vars)
	if err != nil {
		return zero, err
	}
	if results == nil || len(*results) == 0 {
		return zero, nil
	}
	for _, r := range *results {
		if r.Status != "OK" {
			return zero, fmt.Errorf("surrealdb statement failed with status %s", r.Status)
		}
	}
	return (*results)[len(*results)-1].Result, nil
}

func buildSurrealWhere(q Query) (string, map[string]any) {
	var conds []string
	vars := map[string]any{}

	if q.EmpID != nil {
		conds = append(conds, "emp_id = $emp_id")
		vars["emp_id"] = *q.EmpID
	}
	if q.TimeStamp != nil {
		conds = append(conds, "time_stamp = $time_stamp")
		vars["time_stamp"] = *q.TimeStamp
	}
	if q.From != "" {
		conds = append(conds, "time_stamp >= $from")
		vars["from"] = q.From
	}
	if q.To != "" {
		conds = append(conds, "time_stamp <= $to")
		vars["to"] = q.To
	}
	if q.Prefix != "" {
		conds = append(conds, "string::starts_with(time_stamp, $prefix)")
		vars["prefix"] = q.Prefix
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), vars
}
