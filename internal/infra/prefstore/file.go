package prefstore

import (
	"net/url"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// FileConfig holds settings for the file backend.
type FileConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// FileStore keeps one file per key inside a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create preference dir %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

// Get reads the value stored under key.
func (f *FileStore) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to read preference %s", key)
	}
	return data, nil
}

// Set replaces the value atomically via a temp file and rename.
func (f *FileStore) Set(key string, value []byte) error {
	tmp, err := os.CreateTemp(f.dir, ".pref-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "failed to write preference %s", key)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "failed to close preference %s", key)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "failed to replace preference %s", key)
	}
	return nil
}

// Close is a no-op.
func (f *FileStore) Close() error { return nil }
