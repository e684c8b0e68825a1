package repository

import (
	"context"
	"database/sql"
	"fmt"

	"seatkeeper/internal/database"
)

type txKey struct{}

// querier is the subset of *sql.DB and *sql.Tx the repositories use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withTx runs fn inside a transaction carried in ctx. Nested calls join the outer transaction.
func withTx(ctx context.Context, db *database.DB, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if timeout := db.LockTimeout(); timeout > 0 {
		// SET LOCAL does not accept bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// conn returns the transaction in ctx, or the pool.
func conn(ctx context.Context, db *database.DB) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db.DB
}
