package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/logtally/internal/ports"
)

// rowFunc returns the log key and statement arguments for row i.
type rowFunc func(i int) (key string, args []any)

// execBatch runs one prepared statement per row inside a single transaction.
// A failing row is logged and recorded; the remaining rows are still
// attempted and the transaction is committed exactly once. Only failures to
// begin, prepare or commit are returned as errors.
func (s *SQLStore) execBatch(ctx context.Context, table, query string, n int, row rowFunc) (ports.BatchResult, error) {
	result := ports.BatchResult{}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin %s batch: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return result, fmt.Errorf("prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		key, args := row(i)
		result.Attempted++

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			log.Warn().
				Err(err).
				Str("table", table).
				Str("ip", key).
				Int("row", i).
				Msg("Cannot insert row, skipping")
			result.Failures = append(result.Failures, ports.RowFailure{Index: i, Key: key, Err: err})
			continue
		}
		result.Written++
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("commit %s batch: %w", table, err)
	}

	log.Debug().
		Str("table", table).
		Int("written", result.Written).
		Int("failed", result.Failed()).
		Msg("Batch committed")
	return result, nil
}
