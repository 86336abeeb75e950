// Package repository implements all database queries for the campus events
// system. It uses pgx directly (no ORM). A transaction opened by
// TxManager.WithTx travels in the context, so every repository call made
// with that context runs inside it.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperr"
)

const (
	pgUniqueViolation      = "23505"
	pgInvalidText          = "22P02"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

type txKey struct{}

// querier is the subset of pgx shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxManager opens transactions on a pool.
type TxManager struct {
	db *pgxpool.Pool
}

// NewTxManager constructs a TxManager.
func NewTxManager(db *pgxpool.Pool) *TxManager {
	return &TxManager{db: db}
}

// WithTx runs fn in a transaction stored in the context passed to fn. The
// transaction commits when fn returns nil and rolls back otherwise. Calls
// made while a transaction is already in ctx join it.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapError(err, "begin transaction")
	}
	// Rollback after a successful commit is a no-op.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(err, "commit transaction")
	}
	return nil
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// conn returns the transaction in ctx, or the pool.
func conn(ctx context.Context, db *pgxpool.Pool) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

// mapError translates pgx failures into the error taxonomy. op names the
// failed operation for logs.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Wrap(apperr.CodeNotFound, op+": not found", err)
	}
	switch pgCode(err) {
	case pgInvalidText:
		// Malformed ids cannot match any row.
		return apperr.Wrap(apperr.CodeNotFound, op+": not found", err)
	case pgSerializationFailure, pgDeadlockDetected:
		return apperr.Wrap(apperr.CodeConflict, op+": concurrent update", err)
	case pgUniqueViolation:
		return apperr.Wrap(apperr.CodeConflict, op+": duplicate", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
