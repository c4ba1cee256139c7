package sqlite

import (
	"context"
	"database/sql"
	"time"

	"media-studio/errors"
	"media-studio/models"
)

// UsageRepository is the sqlite-backed per-user usage accumulator. The
// increment happens inside the upsert statement, so concurrent pipeline
// runs always sum correctly.
type UsageRepository struct {
	db *DB
}

func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) Get(ctx context.Context, userID string) (*models.UsageRecord, error) {
	const op = "UsageRepository.Get"

	record := &models.UsageRecord{}
	err := r.db.statements.getUsage.QueryRowContext(ctx, userID).Scan(
		&record.UserID,
		&record.MinutesProcessed,
		&record.StorageUsedBytes,
		&record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(op, nil, "no usage recorded for user")
	}
	if err != nil {
		return nil, errors.Internal(op, err, "failed to query usage")
	}
	return record, nil
}

func (r *UsageRepository) Add(ctx context.Context, userID string, minutes float64, bytes int64) error {
	const op = "UsageRepository.Add"

	var err error
	for i := 0; i < r.db.config.MaxRetries; i++ {
		_, err = r.db.statements.addUsage.ExecContext(ctx, userID, minutes, bytes, time.Now().UTC())
		if err == nil {
			return nil
		}
		if !isLockError(err) {
			break
		}
		time.Sleep(r.db.config.RetryDelay * time.Duration(i+1))
	}
	return errors.Internal(op, err, "failed to record usage")
}
