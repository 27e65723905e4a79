package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TxRunner executes a function inside a single database transaction. The
// commit engine relies on it to keep each row's identity, account and
// enrollment writes atomic.
type TxRunner struct {
	db *sqlx.DB
}

// NewTxRunner constructs a TxRunner.
func NewTxRunner(db *sqlx.DB) *TxRunner {
	return &TxRunner{db: db}
}

// RunInTx begins a transaction, invokes fn with it and commits. Any error
// from fn rolls the transaction back and is returned unchanged.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
