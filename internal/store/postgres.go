package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PratikDhanave/attendance-sync-service/internal/models"
)

// PostgresSink stores attendance rows in a Postgres table (Supabase exposes
// one per project). Duplicate natural keys are rejected by the
// (emp_id, time_stamp) unique constraint created by the migrations.
type PostgresSink struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresSink creates a connection pool and fails fast if the database
// is unreachable. A non-empty password overrides the one in dsn.
func NewPostgresSink(dsn, password, table string) (*PostgresSink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse sink url: %w", err)
	}
	if password != "" {
		cfg.ConnConfig.Password = password
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresSink{pool: pool, table: pgx.Identifier{table}.Sanitize()}, nil
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresSink) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresSink) Close() {
	p.pool.Close()
}

// Insert writes the whole batch in one statement.
//
// Conflicts on (emp_id, time_stamp) are skipped by the database, so the
// affected row count is the number of records that were actually new.
func (p *PostgresSink) Insert(ctx context.Context, records []models.AttendanceRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	empIDs := make([]int64, len(records))
	names := make([]string, len(records))
	stamps := make([]string, len(records))
	for i, r := range records {
		empIDs[i] = r.EmpID
		names[i] = r.EmpName
		stamps[i] = r.TimeStamp
	}

	tag, err := p.pool.Exec(ctx, `
		INSERT INTO `+p.table+` (emp_id, emp_name, time_stamp)
		SELECT * FROM unnest($1::bigint[], $2::text[], $3::text[])
		ON CONFLICT (emp_id, time_stamp) DO NOTHING
	`, empIDs, names, stamps)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Select returns matching rows, newest first when q.Desc is set.
func (p *PostgresSink) Select(ctx context.Context, q Query) ([]models.AttendanceRecord, error) {
	where, args := buildWhere(q)

	sql := `SELECT id, emp_id, emp_name, time_stamp FROM ` + p.table + where
	if q.Desc {
		sql += ` ORDER BY time_stamp DESC, id DESC`
	} else {
		sql += ` ORDER BY id`
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		sql += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AttendanceRecord
	for rows.Next() {
		var r models.AttendanceRecord
		if err := rows.Scan(&r.ID, &r.EmpID, &r.EmpName, &r.TimeStamp); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of rows matching q.
func (p *PostgresSink) Count(ctx context.Context, q Query) (int64, error) {
	where, args := buildWhere(q)

	var count int64
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+p.table+where, args...).Scan(&count)
	return count, err
}

// Keys projects every row onto its natural key.
func (p *PostgresSink) Keys(ctx context.Context) ([]models.Key, error) {
	rows, err := p.pool.Query(ctx, `SELECT emp_id, time_stamp FROM `+p.table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []models.Key
	for rows.Next() {
		var k models.Key
		if err := rows.Scan(&k.EmpID, &k.TimeStamp); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DistinctEmployees counts distinct emp_id values.
func (p *PostgresSink) DistinctEmployees(ctx context.Context) (int64, error) {
	var count int64
	err := p.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT emp_id) FROM `+p.table).Scan(&count)
	return count, err
}

// Delete removes matching rows. An empty query clears the table.
func (p *PostgresSink) Delete(ctx context.Context, q Query) (int64, error) {
	where, args := buildWhere(q)

	tag, err := p.pool.Exec(ctx, `DELETE FROM `+p.table+where, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// buildWhere renders q as a WHERE clause with positional arguments.
func buildWhere(q Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q.EmpID != nil {
		add("emp_id = $%d", *q.EmpID)
	}
	if q.TimeStamp != nil {
		add("time_stamp = $%d", *q.TimeStamp)
	}
	if q.From != "" {
		add("time_stamp >= $%d", q.From)
	}
	if q.To != "" {
		add("time_stamp <= $%d", q.To)
	}
	if q.Prefix != "" {
		add(`time_stamp LIKE $%d ESCAPE '\'`, escapeLike(q.Prefix)+"%")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
