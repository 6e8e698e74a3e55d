package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const txKey contextKey = "db_tx"

// Queryable is the subset of pgx operations shared by pools, connections and
// transactions. Repositories issue all SQL through it so that a service-level
// transaction is transparently picked up from the context.
type Queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// TxFromContext returns the transaction stored by WithTx, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// WithTx runs fn inside a transaction. The transaction is stored in the
// context passed to fn so repositories can route their statements through it.
// Nested calls reuse the outer transaction.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// maxWriteRetries bounds retries of transient write races before the failure
// surfaces to the caller.
const maxWriteRetries = 2

// WithRetry runs fn via WithTx, retrying when the transaction aborts with a
// serialization failure (40001) or deadlock (40P01). Exclusion-constraint
// violations (23P01) are not retried: they mean another writer won the window
// and the caller must see a conflict.
func WithRetry(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= maxWriteRetries; attempt++ {
		err = WithTx(ctx, pool, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// IsConflict reports whether err is an exclusion- or unique-constraint
// violation, i.e. a competing writer claimed an overlapping window.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23P01" || pgErr.Code == "23505")
}

// IsNotFound reports whether err is pgx's no-rows sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
