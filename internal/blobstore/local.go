package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Local is a BlobStore backed by a directory on the local filesystem. Put
// stages the write to a sibling temp file and renames it into place, so a
// concurrent Get never observes a partial write.
type Local struct {
	root string
}

// NewLocal roots a Local store at dir. The directory must already exist;
// per the declared external interface, provisioning it is the operator's
// responsibility.
func NewLocal(dir string) (*Local, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("blobstore: local root %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("blobstore: local root %q is not a directory", dir)
	}
	return &Local{root: dir}, nil
}

func (l *Local) Tag() string { return "local" }

func (l *Local) Get(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.root, path))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %q: %w", path, err)
	}
	return data, nil
}

func (l *Local) Put(_ context.Context, path string, data []byte) error {
	full := filepath.Join(l.root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("blobstore: mkdir for %q: %w", path, err)
	}

	tmp := full + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("blobstore: stage %q: %w", path, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("blobstore: commit %q: %w", path, err)
	}
	return nil
}
