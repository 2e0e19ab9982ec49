package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"retailops/pkg/logger"
)

//go:embed schema.sql
var schema string

// Schema returns the DDL applied by Migrate.
func Schema() string {
	return schema
}

// Migrate applies the idempotent schema in one transaction.
func Migrate(ctx context.Context, pool *Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	// Serialize concurrent replicas starting at once.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext('retailops_schema'))"); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	if _, err := tx.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}

	logger.Info(ctx, "database schema applied")
	return nil
}
