package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/logtally/internal/domain"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()

	store, err := OpenSQLStore(context.Background(), SQLConfig{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "nested", "logtally.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func testEntries() []*domain.LogEntry {
	base := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	return []*domain.LogEntry{
		{Timestamp: base.Add(10 * time.Second), IP: "192.168.1.1", Request: `"GET / HTTP/1.1"`, StatusCode: 200, UserAgent: "ua-1"},
		{Timestamp: base.Add(15 * time.Minute), IP: "192.168.1.1", Request: `"GET / HTTP/1.1"`, StatusCode: 200, UserAgent: "ua-1"},
		{Timestamp: base.Add(30 * time.Minute), IP: "10.0.0.5", Request: `"POST /login HTTP/1.1"`, StatusCode: 401, UserAgent: "ua-2"},
	}
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.EnsureSchema(context.Background()))

	n, err := store.CountLogEntries(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsertLogEntries(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	result, err := store.InsertLogEntries(ctx, testEntries())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 3, result.Written)
	assert.Zero(t, result.Failed())

	var ip string
	var status int
	require.NoError(t, store.DB().QueryRowContext(ctx,
		"SELECT ip_address, status FROM LOG_DATA WHERE request = ?", `"POST /login HTTP/1.1"`).Scan(&ip, &status))
	assert.Equal(t, "10.0.0.5", ip)
	assert.Equal(t, 401, status)
}

func TestInsertLogEntriesAppendsDuplicates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.InsertLogEntries(ctx, testEntries())
	require.NoError(t, err)
	_, err = store.InsertLogEntries(ctx, testEntries())
	require.NoError(t, err)

	n, err := store.CountLogEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestBatchCommitsDespiteRowFailures(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.DB().ExecContext(ctx, `CREATE TRIGGER reject_rows BEFORE INSERT ON LOG_DATA
WHEN NEW.ip_address = '10.0.0.5'
BEGIN
    SELECT RAISE(ABORT, 'rejected');
END`)
	require.NoError(t, err)

	result, err := store.InsertLogEntries(ctx, testEntries())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 2, result.Written)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 2, result.Failures[0].Index)
	assert.Equal(t, "10.0.0.5", result.Failures[0].Key)
	assert.Error(t, result.Failures[0].Err)

	n, err := store.CountLogEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestInsertFlags(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	flags := []*domain.FlagEntry{
		domain.NewFlagEntry("192.168.1.1", 3, 2),
		domain.NewFlagEntry("10.0.0.9", 5, 2),
	}

	result, err := store.InsertFlags(ctx, flags)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Written)

	stored, err := store.ListFlags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []StoredFlag{
		{IP: "10.0.0.9", Comment: "Threshold limit 2 reached"},
		{IP: "192.168.1.1", Comment: "Threshold limit 2 reached"},
	}, stored)

	n, err := store.CountFlags(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestInsertEmptyBatch(t *testing.T) {
	store := openTestStore(t)

	result, err := store.InsertFlags(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, result.Attempted)
	assert.Zero(t, result.Written)
}

func TestOpenSQLStoreUnsupportedDriver(t *testing.T) {
	_, err := OpenSQLStore(context.Background(), SQLConfig{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestEnsureParentDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ensureParentDir("file:"+filepath.Join(dir, "a", "b.db")+"?_pragma=busy_timeout(5000)"))
	assert.DirExists(t, filepath.Join(dir, "a"))

	assert.NoError(t, ensureParentDir(":memory:"))
	assert.NoError(t, ensureParentDir("local.db"))
}

func TestMySQLConfigUsesRunLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)

	cfg, err := mysqlConfig("user:pass@tcp(localhost:3306)/logtally", loc)
	require.NoError(t, err)
	assert.Equal(t, loc, cfg.Loc)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, "logtally", cfg.DBName)

	// an explicit loc in the DSN is replaced by the zone the log was read in
	cfg, err = mysqlConfig("user:pass@tcp(localhost:3306)/logtally?loc=UTC", loc)
	require.NoError(t, err)
	assert.Equal(t, loc, cfg.Loc)

	cfg, err = mysqlConfig("user:pass@tcp(localhost:3306)/logtally", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Local, cfg.Loc)
}

func TestMySQLConfigInvalidDSN(t *testing.T) {
	_, err := mysqlConfig("not a dsn", time.UTC)
	assert.Error(t, err)
}
