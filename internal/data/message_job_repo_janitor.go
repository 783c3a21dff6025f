package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gagyekum/residency/internal/core"
	"github.com/gagyekum/residency/internal/data/pgxutil"
)

// Advisory lock keys for janitor sweeps. The two-arg form of
// pg_try_advisory_xact_lock namespaces them: major key 1000 belongs to the
// janitor, minor keys pick the operation.
const (
	janitorLockMajor     = 1000
	janitorLockFailStale = 1
	janitorLockDelete    = 2
)

// sweepTx runs stmt inside a transaction that holds the janitor advisory lock
// for minorKey. When another instance already holds the lock the sweep is
// skipped and reports zero rows; the next interval picks the work up again.
func (r *MessageJobRepo) sweepTx(ctx context.Context, minorKey int, stmt func(tx *sql.Tx) (sql.Result, error)) (int64, error) {
	var affected int64
	err := pgxutil.WithTx(ctx, r.DB, nil, func(tx *sql.Tx) error {
		var locked bool
		if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
			janitorLockMajor, minorKey).Scan(&locked); err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !locked {
			return nil
		}

		res, err := stmt(tx)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// FailStaleProcessingJobs marks processing jobs with no write activity for
// maxAge as failed. After a crash no dispatcher owns such jobs, so they would
// sit in processing forever. Staleness is judged on updated_at because every
// recipient outcome bumps it; an actively dispatching job never qualifies.
// At most batchSize jobs move per call.
func (r *MessageJobRepo) FailStaleProcessingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	return r.sweepTx(ctx, janitorLockFailStale, func(tx *sql.Tx) (sql.Result, error) {
		now := r.clock.Now()
		cutoff := now.Add(-maxAge)

		res, err := tx.ExecContext(ctx, `
			UPDATE message_jobs
			SET status = 'failed',
				error_message = 'Job timed out in processing status',
				completed_at = COALESCE(completed_at, $1),
				updated_at = $1
			WHERE id IN (
				SELECT id FROM message_jobs
				WHERE status = 'processing'
				  AND updated_at < $2
				ORDER BY updated_at
				LIMIT $3
			)
		`, now.UTC(), cutoff.UTC(), batchSize)
		if err != nil {
			return nil, fmt.Errorf("fail stale processing jobs: %w", err)
		}
		return res, nil
	})
}

// DeleteOldJobs removes jobs in the given terminal status older than
// params.MaxAge; their recipient rows go with them via cascade. Age is
// measured from completed_at, falling back to updated_at for rows that never
// recorded completion. At most params.BatchSize jobs go per call.
func (r *MessageJobRepo) DeleteOldJobs(ctx context.Context, params core.DeleteOldJobsParams) (int64, error) {
	if !params.Status.Terminal() {
		return 0, fmt.Errorf("cannot delete jobs in %s status", params.Status)
	}

	return r.sweepTx(ctx, janitorLockDelete, func(tx *sql.Tx) (sql.Result, error) {
		cutoff := r.clock.Now().Add(-params.MaxAge).UTC()

		res, err := tx.ExecContext(ctx, `
			DELETE FROM message_jobs
			WHERE id IN (
				SELECT id FROM message_jobs
				WHERE status = $1
				  AND (completed_at < $2 OR (completed_at IS NULL AND updated_at < $2))
				ORDER BY COALESCE(completed_at, updated_at)
				LIMIT $3
			)
		`, params.Status, cutoff, params.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("delete old jobs: %w", err)
		}
		return res, nil
	})
}
