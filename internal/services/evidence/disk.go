package evidence

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DiskStore keeps evidence under a local directory. Default backend; the
// MinIO store replaces it when object storage is configured.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: root}
}

func (s *DiskStore) Save(ctx context.Context, kind Kind, filename, contentType string, r io.Reader, size int64) (string, error) {
	if err := validate(kind, contentType, size); err != nil {
		return "", err
	}

	name := objectName(kind, filename)
	path := filepath.Join(s.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating evidence dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating evidence file: %w", err)
	}
	defer f.Close()

	// LimitReader guards against clients lying about Content-Length.
	if _, err := io.Copy(f, io.LimitReader(r, limitFor(kind)+1)); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing evidence file: %w", err)
	}

	info, err := f.Stat()
	if err == nil && info.Size() > limitFor(kind) {
		os.Remove(path)
		return "", validate(kind, contentType, info.Size())
	}

	return name, nil
}
