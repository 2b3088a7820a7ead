package repository

import (
	"context"
	"fmt"

	"legal-rag/internal/domain"

	"github.com/jackc/pgx/v5"
)

type txKey struct{}

// InjectTx injects the transaction into the context
func InjectTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// ExtractTx extracts the transaction from the context
func ExtractTx(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

type postgresTransactionManager struct {
	db DB
}

// NewPostgresTransactionManager creates a new transaction manager.
func NewPostgresTransactionManager(db DB) domain.TransactionManager {
	return &postgresTransactionManager{db: db}
}

// RunInTx commits when fn succeeds and rolls back on error or panic.
// A transaction already carried by ctx is reused.
func (tm *postgresTransactionManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ExtractTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := tm.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cerr)
		}
	}()

	return fn(InjectTx(ctx, tx))
}
