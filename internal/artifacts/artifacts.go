// Package artifacts stores rendered item images on disk, one PNG per item id.
package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lootwatch/internal/fileutil"
)

// ErrNotFound is returned when no artifact exists for an id.
var ErrNotFound = errors.New("artifact not found")

// Extension is appended to every artifact file name.
const Extension = ".png"

// Store reads and writes artifacts under a single directory.
type Store struct {
	dir string
}

// New returns a store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the artifact directory.
func (s *Store) Dir() string {
	return s.dir
}

// ValidateID rejects ids that could escape the artifact directory. Marketplace
// ids are hex strings, so anything outside [A-Za-z0-9_-] is refused.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("artifact id is empty")
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("artifact id %q contains %q", id, r)
		}
	}
	return nil
}

// FileName returns the artifact file name for id.
func FileName(id string) string {
	return id + Extension
}

// Path returns the artifact location for id.
func (s *Store) Path(id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, FileName(id)), nil
}

// Write atomically replaces the artifact for id.
func (s *Store) Write(id string, png []byte) error {
	if len(png) == 0 {
		return fmt.Errorf("artifact %s: empty image", id)
	}
	path, err := s.Path(id)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(path, png, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", id, err)
	}
	return nil
}

// Read returns the artifact bytes for id.
func (s *Store) Read(id string) ([]byte, error) {
	path, err := s.Path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", id, err)
	}
	return data, nil
}

// Exists reports whether an artifact file exists for id.
func (s *Store) Exists(id string) bool {
	path, err := s.Path(id)
	if err != nil {
		return false
	}
	return fileutil.FileExists(path)
}
