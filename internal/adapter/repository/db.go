package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the part of *pgxpool.Pool the repositories use. pgxmock pools satisfy it too.
type DB interface {
	executor
	Begin(ctx context.Context) (pgx.Tx, error)
}

type executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// getExecutor returns the transaction carried by ctx, or db outside a transaction.
func getExecutor(ctx context.Context, db DB) executor {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return db
}
