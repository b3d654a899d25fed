// Package storage persists log entries, flagged addresses and run history.
//
// SQLStore writes to a relational database through database/sql. Two drivers
// are registered: "sqlite" (modernc.org/sqlite, pure Go) and "mysql".
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/xoelrdgz/logtally/internal/domain"
	"github.com/xoelrdgz/logtally/internal/ports"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"

	LogDataTable        = "LOG_DATA"
	ExcessRequestsTable = "EXCESS_REQUESTS"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS ` + LogDataTable + ` (
    log_date DATETIME(3),
    ip_address VARCHAR(20),
    request VARCHAR(20),
    status INTEGER,
    user_agent VARCHAR(500)
)`,
	`CREATE TABLE IF NOT EXISTS ` + ExcessRequestsTable + ` (
    ip_address VARCHAR(20),
    comments VARCHAR(255)
)`,
}

const (
	insertLogDataSQL = `INSERT INTO ` + LogDataTable +
		` (log_date, ip_address, request, status, user_agent) VALUES (?, ?, ?, ?, ?)`
	insertExcessSQL = `INSERT INTO ` + ExcessRequestsTable +
		` (ip_address, comments) VALUES (?, ?)`
)

type SQLConfig struct {
	Driver string
	DSN    string

	// Location is the zone log timestamps were read in. MySQL DATETIME
	// columns are written as wall-clock time in this zone.
	Location *time.Location
}

func DefaultSQLConfig() SQLConfig {
	return SQLConfig{
		Driver: DriverSQLite,
		DSN:    "./data/logtally.db",
	}
}

// SQLStore implements ports.RecordStore.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQLStore opens the database and verifies the connection.
func OpenSQLStore(ctx context.Context, config SQLConfig) (*SQLStore, error) {
	driver := strings.ToLower(config.Driver)
	switch driver {
	case DriverSQLite:
		if err := ensureParentDir(config.DSN); err != nil {
			return nil, err
		}
	case DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}

	db, err := openDB(driver, config)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer; a second connection would see SQLITE_BUSY inside batches
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s database: %w", driver, err)
	}

	return &SQLStore{db: db, driver: driver}, nil
}

func openDB(driver string, config SQLConfig) (*sql.DB, error) {
	if driver != DriverMySQL {
		return sql.Open(driver, config.DSN)
	}

	cfg, err := mysqlConfig(config.DSN, config.Location)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// mysqlConfig parses dsn and sets the session location, so time.Time
// arguments keep their wall-clock value instead of being shifted to UTC.
func mysqlConfig(dsn string, loc *time.Location) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	cfg.Loc = loc
	cfg.ParseTime = true
	return cfg, nil
}

func ensureParentDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}

func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) InsertLogEntries(ctx context.Context, entries []*domain.LogEntry) (ports.BatchResult, error) {
	return s.execBatch(ctx, LogDataTable, insertLogDataSQL, len(entries), func(i int) (string, []any) {
		e := entries[i]
		return e.IP, []any{e.Timestamp, e.IP, e.Request, e.StatusCode, e.UserAgent}
	})
}

func (s *SQLStore) InsertFlags(ctx context.Context, flags []*domain.FlagEntry) (ports.BatchResult, error) {
	return s.execBatch(ctx, ExcessRequestsTable, insertExcessSQL, len(flags), func(i int) (string, []any) {
		f := flags[i]
		return f.IP, []any{f.IP, f.Comment}
	})
}

// CountLogEntries returns the number of rows in LOG_DATA.
func (s *SQLStore) CountLogEntries(ctx context.Context) (int, error) {
	return s.count(ctx, LogDataTable)
}

// CountFlags returns the number of rows in EXCESS_REQUESTS.
func (s *SQLStore) CountFlags(ctx context.Context) (int, error) {
	return s.count(ctx, ExcessRequestsTable)
}

func (s *SQLStore) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// StoredFlag is one EXCESS_REQUESTS row.
type StoredFlag struct {
	IP      string
	Comment string
}

func (s *SQLStore) ListFlags(ctx context.Context) ([]StoredFlag, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ip_address, comments FROM "+ExcessRequestsTable+" ORDER BY ip_address")
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	defer rows.Close()

	var flags []StoredFlag
	for rows.Next() {
		var f StoredFlag
		if err := rows.Scan(&f.IP, &f.Comment); err != nil {
			log.Warn().Err(err).Msg("Skipping unreadable flag row")
			continue
		}
		flags = append(flags, f)
	}
	return flags, rows.Err()
}

func (s *SQLStore) Driver() string {
	return s.driver
}

// DB exposes the underlying handle for ad hoc queries.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
