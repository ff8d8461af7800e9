package db

import (
	"context"
	"database/sql"
)

type txKeyType struct{}

var txKey = txKeyType{}

// Executor is satisfied by both *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// GetExecutor returns the transaction carried by ctx, if any.
func GetExecutor(ctx context.Context, conn *sql.DB) Executor {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return tx
	}
	return conn
}

type TxManager struct {
	conn *sql.DB
}

func NewTxManager(conn *sql.DB) *TxManager {
	return &TxManager{conn: conn}
}

// WithTx runs fn in a transaction. Nested calls join the outer transaction.
func (tm *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return fn(ctx)
	}
	tx, err := tm.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
