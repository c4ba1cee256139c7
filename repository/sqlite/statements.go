package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"media-studio/errors"
)

const (
	insertFileQuery = `
        INSERT INTO files (id, filename, storage_path, size_bytes, user_id, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `

	getFileQuery = `
        SELECT id, filename, storage_path, size_bytes, user_id, created_at
        FROM files WHERE id = ?
    `

	getFilesByUserQuery = `
        SELECT id, filename, storage_path, size_bytes, user_id, created_at
        FROM files WHERE user_id = ?
        ORDER BY created_at DESC
    `

	getUsageQuery = `
        SELECT user_id, minutes_processed, storage_used_bytes, updated_at
        FROM usage_metrics WHERE user_id = ?
    `

	// The upsert adds the deltas inside the database engine, so concurrent
	// writers can never lose an increment to a read-modify-write race.
	addUsageQuery = `
        INSERT INTO usage_metrics (user_id, minutes_processed, storage_used_bytes, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET
            minutes_processed = minutes_processed + excluded.minutes_processed,
            storage_used_bytes = storage_used_bytes + excluded.storage_used_bytes,
            updated_at = excluded.updated_at
    `
)

type PreparedStatements struct {
	insertFile     *sql.Stmt
	getFile        *sql.Stmt
	getFilesByUser *sql.Stmt
	getUsage       *sql.Stmt
	addUsage       *sql.Stmt
}

func (stmts *PreparedStatements) Prepare(ctx context.Context, db *sql.DB) error {
	const op = "PreparedStatements.Prepare"

	var err error

	if stmts.insertFile, err = db.PrepareContext(ctx, insertFileQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare insertFile statement")
	}

	if stmts.getFile, err = db.PrepareContext(ctx, getFileQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare getFile statement")
	}

	if stmts.getFilesByUser, err = db.PrepareContext(ctx, getFilesByUserQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare getFilesByUser statement")
	}

	if stmts.getUsage, err = db.PrepareContext(ctx, getUsageQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare getUsage statement")
	}

	if stmts.addUsage, err = db.PrepareContext(ctx, addUsageQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare addUsage statement")
	}

	return nil
}

func (stmts *PreparedStatements) Close() error {
	var errs []error

	statements := [...]*sql.Stmt{
		stmts.insertFile,
		stmts.getFile,
		stmts.getFilesByUser,
		stmts.getUsage,
		stmts.addUsage,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to close prepared statements: %v", errs)
	}

	return nil
}
