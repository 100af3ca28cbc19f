package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/PratikDhanave/attendance-sync-service/internal/models"
)

// attRow maps the capture device's table layout.
type attRow struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	EmpID     int64  `gorm:"column:emp_id;index"`
	EmpName   string `gorm:"column:emp_name"`
	TimeStamp string `gorm:"column:time_stamp;index"`
}

func (r attRow) record() models.AttendanceRecord {
	return models.AttendanceRecord{
		ID:        r.ID,
		EmpID:     r.EmpID,
		EmpName:   r.EmpName,
		TimeStamp: r.TimeStamp,
	}
}

// SQLiteOpener opens sessions on a SQLite database file.
type SQLiteOpener struct {
	path   string
	table  string
	logger *zap.Logger
}

// NewSQLiteOpener returns an opener for the given file and table name.
func NewSQLiteOpener(path, table string, logger *zap.Logger) *SQLiteOpener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteOpener{path: path, table: table, logger: logger}
}

// Open implements Opener.
func (o *SQLiteOpener) Open(ctx context.Context) (Session, error) {
	return o.OpenSQLite(ctx)
}

// OpenSQLite is Open with the concrete session type, for tooling that
// needs to write to the source (seeding).
func (o *SQLiteOpener) OpenSQLite(ctx context.Context) (*SQLiteSession, error) {
	db, err := gorm.Open(sqlite.Open(o.path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", o.path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", o.path, err)
	}

	o.logger.Debug("Opened source session", zap.String("path", o.path), zap.String("table", o.table))
	return &SQLiteSession{db: db, table: o.table, logger: o.logger}, nil
}

// SQLiteSession is a Session backed by GORM.
type SQLiteSession struct {
	db     *gorm.DB
	table  string
	logger *zap.Logger
}

func (s *SQLiteSession) scoped(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

// Count implements Session.
func (s *SQLiteSession) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.scoped(ctx).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", s.table, err)
	}
	return n, nil
}

// FetchPage implements Session.
func (s *SQLiteSession) FetchPage(ctx context.Context, limit, offset int) ([]models.AttendanceRecord, error) {
	var rows []attRow
	err := s.scoped(ctx).Order("id").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch %s limit=%d offset=%d: %w", s.table, limit, offset, err)
	}
	s.logger.Debug("Fetched source page", zap.Int("offset", offset), zap.Int("rows", len(rows)))
	return toRecords(rows), nil
}

// FetchAll implements Session.
func (s *SQLiteSession) FetchAll(ctx context.Context) ([]models.AttendanceRecord, error) {
	var rows []attRow
	if err := s.scoped(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch all %s: %w", s.table, err)
	}
	return toRecords(rows), nil
}

// EnsureTable creates the attendance table when it does not exist yet.
func (s *SQLiteSession) EnsureTable(ctx context.Context) error {
	return s.scoped(ctx).AutoMigrate(&attRow{})
}

// Append writes rows to the source table. The capture device owns this
// table in production; Append exists for seeding development databases.
func (s *SQLiteSession) Append(ctx context.Context, records []models.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]attRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, attRow{EmpID: r.EmpID, EmpName: r.EmpName, TimeStamp: r.TimeStamp})
	}
	return s.scoped(ctx).CreateInBatches(rows, 100).Error
}

// Close releases the underlying connection.
func (s *SQLiteSession) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecords(rows []attRow) []models.AttendanceRecord {
	out := make([]models.AttendanceRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out
}
