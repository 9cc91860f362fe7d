package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSaltStore keeps the per-install anonymization salt in a local file.
// The salt stays on the device; it is never written to the database or sent
// over the wire.
type FileSaltStore struct {
	path string
}

// NewFileSaltStore creates a salt store at the given path.
func NewFileSaltStore(path string) *FileSaltStore {
	return &FileSaltStore{
		path: path,
	}
}

func (s *FileSaltStore) GetSalt() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading salt file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileSaltStore) SaveSalt(salt string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating salt directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(salt), 0o600); err != nil {
		return fmt.Errorf("writing salt file: %w", err)
	}
	return nil
}
