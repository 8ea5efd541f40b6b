package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"roadAccident/internal/domain"
	"roadAccident/pkg/e"
)

type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, e.Wrap("media.NewLocalStore", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Save(_ context.Context, upload *domain.MediaUpload) (string, error) {
	const op = "media.LocalStore.Save"

	name := objectName("report", upload)
	dst := filepath.Join(s.dir, name)

	out, err := os.Create(dst)
	if err != nil {
		return "", e.Wrap(op, err)
	}
	if _, err := io.Copy(out, upload.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", e.Wrap(op, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return "", e.Wrap(op, err)
	}
	return name, nil
}

// Delete is a no-op for refs that are already gone.
func (s *LocalStore) Delete(_ context.Context, ref string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(ref)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return e.Wrap("media.LocalStore.Delete", err)
	}
	return nil
}
