package repository

import (
	"context"

	"media-studio/models"
)

// FileRepository stores processed-file records. Records are append-only:
// there is no update or delete path.
type FileRepository interface {
	Save(ctx context.Context, record *models.FileRecord) error
	Find(ctx context.Context, id string) (*models.FileRecord, error)
	FindByUser(ctx context.Context, userID string) ([]*models.FileRecord, error)
}

// UsageRepository accumulates per-user usage counters. Add must be atomic at
// the storage layer so concurrent increments never lose updates.
type UsageRepository interface {
	Get(ctx context.Context, userID string) (*models.UsageRecord, error)
	Add(ctx context.Context, userID string, minutes float64, bytes int64) error
}
