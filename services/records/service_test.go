package records

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"

	apperrors "media-studio/errors"
	"media-studio/models"
)

type fakeFileRepo struct {
	saved   []*models.FileRecord
	saveErr error
}

func (f *fakeFileRepo) Save(ctx context.Context, record *models.FileRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, record)
	return nil
}

func (f *fakeFileRepo) Find(ctx context.Context, id string) (*models.FileRecord, error) {
	for _, r := range f.saved {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, apperrors.NotFound("fakeFileRepo.Find", nil, "file record not found")
}

func (f *fakeFileRepo) FindByUser(ctx context.Context, userID string) ([]*models.FileRecord, error) {
	var out []*models.FileRecord
	for _, r := range f.saved {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeStore struct {
	uploads []string
	err     error
}

func (f *fakeStore) Upload(ctx context.Context, localPath, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploads = append(f.uploads, key)
	return "s3://bucket/" + key, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestSaveWithStore(t *testing.T) {
	repo := &fakeFileRepo{}
	store := &fakeStore{}
	svc := NewService(repo, store, quietLogger())

	id := svc.Save(context.Background(), "/tmp/clip.wav", "clip.wav", "u1", 512)
	if id == "" {
		t.Fatal("expected a record id")
	}
	if len(repo.saved) != 1 {
		t.Fatalf("expected one saved record, got %d", len(repo.saved))
	}
	record := repo.saved[0]
	if record.StoragePath == "" {
		t.Error("expected a storage path when the store is configured")
	}
	if record.SizeBytes != 512 || record.UserID != "u1" {
		t.Errorf("unexpected record: %+v", record)
	}
}

func TestSaveWithoutStore(t *testing.T) {
	repo := &fakeFileRepo{}
	svc := NewService(repo, nil, quietLogger())

	id := svc.Save(context.Background(), "/tmp/clip.wav", "clip.wav", "u1", 512)
	if id == "" {
		t.Fatal("expected a record id")
	}
	if repo.saved[0].StoragePath != "" {
		t.Error("storage path must be empty without a configured store")
	}
}

func TestSaveUploadFailureStillRecords(t *testing.T) {
	repo := &fakeFileRepo{}
	store := &fakeStore{err: os.ErrPermission}
	svc := NewService(repo, store, quietLogger())

	id := svc.Save(context.Background(), "/tmp/clip.wav", "clip.wav", "u1", 512)
	if id == "" {
		t.Fatal("upload failure must not block the record")
	}
	if repo.saved[0].StoragePath != "" {
		t.Error("failed upload must leave the storage path empty")
	}
}

func TestSaveRepoFailureReturnsEmpty(t *testing.T) {
	repo := &fakeFileRepo{saveErr: apperrors.Internal("x", nil, "db down")}
	svc := NewService(repo, nil, quietLogger())

	if id := svc.Save(context.Background(), "/tmp/clip.wav", "clip.wav", "u1", 512); id != "" {
		t.Error("failed save must return an empty id")
	}
}

func TestSaveNilRepoIsNoop(t *testing.T) {
	svc := NewService(nil, &fakeStore{}, quietLogger())
	if id := svc.Save(context.Background(), "/tmp/x", "x", "u1", 1); id != "" {
		t.Error("expected empty id without persistence")
	}
}
