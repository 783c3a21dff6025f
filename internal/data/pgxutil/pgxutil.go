// Package pgxutil reaches through the database/sql pool to the native pgx
// connection underneath. Repositories get pgx-only features (CopyFrom, typed
// row collection) while the rest of the application keeps *sql.DB for pooling
// and lifecycle.
package pgxutil

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// WithTx runs fn inside a database/sql transaction, committing on success and
// rolling back when fn or the commit fails.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after a successful commit reports ErrTxDone, which is fine.
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// WithNativeConn checks a connection out of the pool, unwraps it to the
// native *pgx.Conn, and runs fn with it. The connection goes back to the pool
// when fn finishes, so fn must not retain it.
func WithNativeConn(ctx context.Context, db *sql.DB, fn func(*pgx.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("checkout connection: %w", err)
	}
	// Close releases the conn back to the pool rather than severing it.
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(driverConn any) error {
		bridged, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("driver handed out a %T, want *stdlib.Conn", driverConn)
		}
		return fn(bridged.Conn())
	})
}

// WithNativeTx runs fn inside a pgx transaction on a connection obtained via
// WithNativeConn. Options use the database/sql vocabulary so callers state
// isolation the same way for both transaction helpers.
func WithNativeTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(pgx.Tx) error) error {
	return WithNativeConn(ctx, db, func(conn *pgx.Conn) error {
		tx, err := conn.BeginTx(ctx, nativeTxOptions(opts))
		if err != nil {
			return fmt.Errorf("begin native transaction: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit native transaction: %w", err)
		}
		return nil
	})
}

// isoLevels translates database/sql isolation levels to their pgx spelling.
// Levels missing from the map fall through to the server default.
var isoLevels = map[sql.IsolationLevel]pgx.TxIsoLevel{
	sql.LevelSerializable:    pgx.Serializable,
	sql.LevelLinearizable:    pgx.Serializable,
	sql.LevelRepeatableRead:  pgx.RepeatableRead,
	sql.LevelSnapshot:        pgx.RepeatableRead,
	sql.LevelReadCommitted:   pgx.ReadCommitted,
	sql.LevelWriteCommitted:  pgx.ReadCommitted,
	sql.LevelReadUncommitted: pgx.ReadUncommitted,
}

func nativeTxOptions(opts *sql.TxOptions) pgx.TxOptions {
	if opts == nil {
		return pgx.TxOptions{}
	}
	native := pgx.TxOptions{
		IsoLevel:   isoLevels[opts.Isolation],
		AccessMode: pgx.ReadWrite,
	}
	if opts.ReadOnly {
		native.AccessMode = pgx.ReadOnly
	}
	return native
}
