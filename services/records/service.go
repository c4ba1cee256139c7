// Package records keeps the append-only history of processed files.
package records

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "media-studio/errors"
	"media-studio/models"
	"media-studio/repository"
)

// ObjectStore uploads a local file and returns its storage path.
type ObjectStore interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}

// Service writes file records after a pipeline run. Record keeping is best
// effort: any failure is logged and the caller proceeds as if nothing
// happened. A nil repository disables persistence entirely.
type Service struct {
	repo   repository.FileRepository
	store  ObjectStore
	logger *logrus.Logger
}

func NewService(repo repository.FileRepository, store ObjectStore, logger *logrus.Logger) *Service {
	return &Service{repo: repo, store: store, logger: logger}
}

// Save uploads the file when an object store is configured and appends a
// record for it. The returned record ID is empty when persistence is off or
// failed.
func (s *Service) Save(ctx context.Context, localPath, filename, userID string, size int64) string {
	if s.repo == nil {
		return ""
	}

	id := uuid.New().String()

	var storagePath string
	if s.store != nil {
		key := fmt.Sprintf("uploads/%s-%s", id, filename)
		path, err := s.store.Upload(ctx, localPath, key)
		if err != nil {
			s.logger.WithError(err).WithField("filename", filename).Error("failed to upload processed file")
		} else {
			storagePath = path
		}
	}

	record := &models.FileRecord{
		ID:          id,
		Filename:    filename,
		StoragePath: storagePath,
		SizeBytes:   size,
		UserID:      userID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Save(ctx, record); err != nil {
		s.logger.WithError(err).WithField("filename", filename).Error("failed to save file record")
		return ""
	}
	return id
}

// Get looks up one file record by ID.
func (s *Service) Get(ctx context.Context, id string) (*models.FileRecord, error) {
	const op = "records.Get"
	if s.repo == nil {
		return nil, apperrors.NotFound(op, nil, "record keeping is disabled")
	}
	return s.repo.Find(ctx, id)
}

// List returns a user's file records, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]*models.FileRecord, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.FindByUser(ctx, userID)
}
