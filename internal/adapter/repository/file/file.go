// Package file stores the URL snapshot as a single JSON document on disk.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/jsoncodec"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const filePerm = 0o644

// URLRepository reads and writes the snapshot file at path.
type URLRepository struct {
	path string
}

// NewURLRepository returns a repository for the file at path. The file does
// not need to exist yet; its directory is created on the first save.
func NewURLRepository(path string) *URLRepository {
	return &URLRepository{path: path}
}

// LoadAll reads the snapshot. A missing or empty file means no URLs were saved yet.
func (r *URLRepository) LoadAll(_ context.Context) (map[string]*entity.URL, error) {
	const op = "adapter.repository.file.URLRepository.LoadAll"

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]*entity.URL), nil
		}

		return nil, fmt.Errorf("%s: %w: failed to read file: %w", op, entity.ErrStorageUnavailable, err)
	}

	urls, err := jsoncodec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, entity.ErrStorageUnavailable, err)
	}

	return urls, nil
}

// SaveAll replaces the snapshot file. The new content is written to a
// temporary file in the same directory and renamed over the old one, so the
// file on disk is always either the previous or the new snapshot.
func (r *URLRepository) SaveAll(ctx context.Context, urls map[string]*entity.URL) error {
	const op = "adapter.repository.file.URLRepository.SaveAll"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, entity.ErrStorageUnavailable, err)
	}

	data, err := jsoncodec.Encode(urls)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, entity.ErrStorageUnavailable, err)
	}

	if err := r.writeAtomic(data); err != nil {
		return fmt.Errorf("%s: %w: %w", op, entity.ErrStorageUnavailable, err)
	}

	return nil
}

func (r *URLRepository) writeAtomic(data []byte) (err error) {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}

	return nil
}
