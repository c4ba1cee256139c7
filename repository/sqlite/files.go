package sqlite

import (
	"context"
	"database/sql"
	"time"

	"media-studio/errors"
	"media-studio/models"
)

// FileRepository is the sqlite-backed store of processed-file records.
type FileRepository struct {
	db *DB
}

func NewFileRepository(db *DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Save(ctx context.Context, record *models.FileRecord) error {
	const op = "FileRepository.Save"

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	var err error
	for i := 0; i < r.db.config.MaxRetries; i++ {
		_, err = r.db.statements.insertFile.ExecContext(ctx,
			record.ID,
			record.Filename,
			record.StoragePath,
			record.SizeBytes,
			record.UserID,
			record.CreatedAt,
		)
		if err == nil {
			return nil
		}
		if !isLockError(err) {
			break
		}
		time.Sleep(r.db.config.RetryDelay * time.Duration(i+1))
	}
	return errors.Internal(op, err, "failed to save file record")
}

func (r *FileRepository) Find(ctx context.Context, id string) (*models.FileRecord, error) {
	const op = "FileRepository.Find"

	record := &models.FileRecord{}
	err := r.db.statements.getFile.QueryRowContext(ctx, id).Scan(
		&record.ID,
		&record.Filename,
		&record.StoragePath,
		&record.SizeBytes,
		&record.UserID,
		&record.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(op, nil, "file record not found")
	}
	if err != nil {
		return nil, errors.Internal(op, err, "failed to query file record")
	}
	return record, nil
}

func (r *FileRepository) FindByUser(ctx context.Context, userID string) ([]*models.FileRecord, error) {
	const op = "FileRepository.FindByUser"

	rows, err := r.db.statements.getFilesByUser.QueryContext(ctx, userID)
	if err != nil {
		return nil, errors.Internal(op, err, "failed to query file records")
	}
	defer rows.Close()

	var records []*models.FileRecord
	for rows.Next() {
		record := &models.FileRecord{}
		if err := rows.Scan(
			&record.ID,
			&record.Filename,
			&record.StoragePath,
			&record.SizeBytes,
			&record.UserID,
			&record.CreatedAt,
		); err != nil {
			return nil, errors.Internal(op, err, "failed to scan file record")
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal(op, err, "failed to iterate file records")
	}
	return records, nil
}
