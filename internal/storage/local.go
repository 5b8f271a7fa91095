// Package storage persists attachment payloads on the local filesystem in
// date-partitioned directories.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileStore abstracts where attachment bytes live so services and tests
// don't touch the disk layout directly.
type FileStore interface {
	// Save streams r into a date-partitioned location and returns the
	// stored path (relative to the store root) and the byte count.
	Save(name string, r io.Reader) (string, int64, error)
	// Remove deletes a stored file. A missing file is not an error.
	Remove(path string) error
	// Open returns the stored file for reading.
	Open(path string) (io.ReadCloser, error)
}

// LocalStore writes files under root/YYYY/MM/DD/.
type LocalStore struct {
	root string
	now  func() time.Time
}

var _ FileStore = (*LocalStore)(nil)

// NewLocalStore creates a LocalStore rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{root: dir, now: time.Now}
}

func (s *LocalStore) Save(name string, r io.Reader) (string, int64, error) {
	t := s.now()
	rel := filepath.Join(t.Format("2006"), t.Format("01"), t.Format("02"), name)
	abs := filepath.Join(s.root, rel)

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", 0, fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.Create(abs)
	if err != nil {
		return "", 0, fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		os.Remove(abs)
		return "", 0, fmt.Errorf("write upload file: %w", err)
	}

	return rel, n, nil
}

func (s *LocalStore) Remove(path string) error {
	err := os.Remove(filepath.Join(s.root, path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) Open(path string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.root, path))
}
