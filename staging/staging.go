// Package staging manages the scratch files a pipeline run creates: uploaded
// payloads and backend-produced intermediates. Every staged file has exactly
// one owner and is deleted when that owner releases it, on success and on
// failure alike.
package staging

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Dir is a staging area rooted at a single directory. Paths are unique per
// acquisition, so concurrent pipeline runs never collide.
type Dir struct {
	root   string
	logger *logrus.Logger
}

func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Dir{root: root, logger: logrus.StandardLogger()}, nil
}

func (d *Dir) Root() string { return d.root }

// Acquire copies src into the staging area and returns an owned handle.
func (d *Dir) Acquire(src io.Reader, name string) (*Resource, error) {
	path := filepath.Join(d.root, uuid.New().String()+"-"+filepath.Base(name))

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	size, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	return &Resource{path: path, size: size, owned: true, created: time.Now(), logger: d.logger}, nil
}

// Adopt takes ownership of a file a backend has already written, typically an
// intermediate transcode. The file must exist.
func (d *Dir) Adopt(path string) (*Resource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &Resource{path: path, size: info.Size(), owned: true, created: time.Now(), logger: d.logger}, nil
}

// Resource is a staged file with single-owner delete semantics.
type Resource struct {
	path    string
	size    int64
	created time.Time

	mu     sync.Mutex
	owned  bool
	logger *logrus.Logger
}

func (r *Resource) Path() string       { return r.path }
func (r *Resource) Size() int64        { return r.size }
func (r *Resource) CreatedAt() time.Time { return r.created }

// Disown transfers deletion authority away from this handle. After Disown,
// Release is a no-op; whoever received the path is responsible for the file.
func (r *Resource) Disown() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owned = false
	return r.path
}

// Release deletes the staged file. It is idempotent, and a file already gone
// is not an error.
func (r *Resource) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.owned {
		return nil
	}
	r.owned = false

	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		r.logger.WithError(err).WithField("path", r.path).Warn("Failed to remove staged file")
		return err
	}
	return nil
}
