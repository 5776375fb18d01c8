package cursor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFile is where the local poller keeps its cursor.
const DefaultFile = "last_tweet_id.txt"

// FileStore keeps the cursor in a plain text file holding just the id. It is
// meant for a single local poller.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore at path, or DefaultFile when path is empty.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFile
	}
	return &FileStore{path: path}
}

// Load returns the stored id, or "" if the file does not exist.
func (s *FileStore) Load(ctx context.Context) (string, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read cursor file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Save replaces the file contents with id. The write goes through a temp file
// and a rename so a crash never leaves a truncated cursor.
func (s *FileStore) Save(ctx context.Context, id string) error {
	if _, err := parseID(id); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".cursor-*")
	if err != nil {
		return fmt.Errorf("create temp cursor file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(id); err != nil {
		tmp.Close()
		return fmt.Errorf("write cursor file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cursor file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace cursor file: %w", err)
	}
	return nil
}
