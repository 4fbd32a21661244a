// Package sessionstore manages per-instance credential directories.
// The bytes inside are opaque; the protocol client owns the format.
// Directories outlive in-memory session handles - only explicit
// logout/delete commands remove them.
package sessionstore

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

type Store struct {
	root string
}

// New creates a store rooted at dir. The root and per-instance
// directories are created lazily by EnsureDir.
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) dir(instanceID int64) string {
	return filepath.Join(s.root, strconv.FormatInt(instanceID, 10))
}

// EnsureDir creates the instance's credential directory if missing and
// returns its path.
func (s *Store) EnsureDir(instanceID int64) (string, error) {
	d := s.dir(instanceID)
	if err := os.MkdirAll(d, 0o700); err != nil {
		return "", errors.Wrapf(err, "sessionstore: ensure dir for instance %d", instanceID)
	}
	return d, nil
}

// RemoveAll deletes the instance's credential material. Removing a
// never-created directory is not an error.
func (s *Store) RemoveAll(instanceID int64) error {
	if err := os.RemoveAll(s.dir(instanceID)); err != nil {
		return errors.Wrapf(err, "sessionstore: remove instance %d", instanceID)
	}
	return nil
}

// Exists reports whether credential material is present for the
// instance.
func (s *Store) Exists(instanceID int64) bool {
	info, err := os.Stat(s.dir(instanceID))
	return err == nil && info.IsDir()
}
