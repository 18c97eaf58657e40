package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const maxTxAttempts = 3

type savepointKey struct{}

type Transactor struct {
	db *sql.DB
}

func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx runs fn in a READ COMMITTED transaction bound to the context passed
// to fn. Repositories called with that context join the transaction. Nested
// calls run under a savepoint of the outer transaction, so a failing inner
// fn undoes only its own writes. Deadlocks and lock wait timeouts are
// retried from the start.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return t.withinSavepoint(ctx, fn)
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = t.runOnce(ctx, fn)
		if err == nil || !isRetryableTxError(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", maxTxAttempts, err)
}

func (t *Transactor) runOnce(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (t *Transactor) withinSavepoint(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx := ctx.Value(txKey{}).(*sql.Tx)
	depth, _ := ctx.Value(savepointKey{}).(int)
	name := fmt.Sprintf("sp_%d", depth+1)

	if _, err = tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return err
	}
	if err = fn(context.WithValue(ctx, savepointKey{}, depth+1)); err != nil {
		if _, rbErr := tx.ExecContext(context.WithoutCancel(ctx), "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	_, err = tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}
