package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"stockledger/pkg/logger"
)

// Schema is the full ledger schema. Every statement is idempotent.
//
//go:embed schema.sql
var Schema string

// migrationLockID serializes concurrent Migrate calls across processes.
const migrationLockID = 0x5354_4b4c // "STKL"

// Migrate applies Schema in one transaction.
func Migrate(ctx context.Context, pool *Pool) error {
	txm := NewTxManager(pool).WithStatementTimeout(0)

	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := txm.GetQuerier(ctx)
		if _, err := q.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		if _, err := q.Exec(ctx, Schema); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "schema migrated")
	return nil
}
