package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PersistenceError reports a failed state read or write.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("state %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrNoSnapshot is returned by Persister.Load when nothing was saved yet.
var ErrNoSnapshot = errors.New("no state snapshot")

// Persister reads and writes state snapshots.
type Persister interface {
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
}

// FileStore persists the state document as indented JSON. Writes go to a
// temp file in the same directory which is then renamed over the target.
type FileStore struct {
	path string
}

// NewFileStore creates a file persister for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the state file path.
func (f *FileStore) Path() string { return f.path }

// Load decodes the state file. It returns ErrNoSnapshot when the file does
// not exist or is empty.
func (f *FileStore) Load(_ context.Context) (*Document, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, &PersistenceError{Op: "read", Path: f.path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNoSnapshot
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &PersistenceError{Op: "decode", Path: f.path, Err: err}
	}
	return &doc, nil
}

// Save writes doc atomically.
func (f *FileStore) Save(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return &PersistenceError{Op: "write", Path: f.path, Err: err}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode", Path: f.path, Err: err}
	}
	data = append(data, '\n')
	if err := writeAtomic(f.path, data); err != nil {
		return &PersistenceError{Op: "write", Path: f.path, Err: err}
	}
	return nil
}

// Quarantine moves an unreadable state file aside so the next save does not
// overwrite it. Returns the new path.
func (f *FileStore) Quarantine(now time.Time) (string, error) {
	dst := fmt.Sprintf("%s.corrupt-%s", f.path, now.UTC().Format("20060102T150405Z"))
	if err := os.Rename(f.path, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	return os.Rename(tmpPath, path)
}
