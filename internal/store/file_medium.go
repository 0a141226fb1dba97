package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const filePerm = 0o644

// FileMedium persists the catalog as a JSON document on the local filesystem.
// Saves write a temporary file in the same directory and rename it over the
// canonical path, so readers of the file never observe a partial document.
type FileMedium struct {
	path string
	now  func() time.Time
}

var _ Medium = (*FileMedium)(nil)

// NewFileMedium returns a medium stored at path.
func NewFileMedium(path string) *FileMedium {
	return &FileMedium{path: filepath.Clean(path), now: time.Now}
}

func (m *FileMedium) Describe() string {
	return "file:" + m.path
}

// Path returns the canonical location of the document.
func (m *FileMedium) Path() string {
	return m.path
}

func (m *FileMedium) Load(_ context.Context) ([]Product, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrMediumEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", m.path, err)
	}
	products, err := decodeCollection(data)
	if errors.Is(err, ErrMediumEmpty) {
		return nil, err
	}
	if err != nil {
		quarantine, qErr := m.quarantine()
		if qErr != nil {
			return nil, fmt.Errorf("failed to set aside unreadable %s: %w", m.path, errors.Join(err, qErr))
		}
		return nil, &CorruptionError{Quarantine: quarantine, Err: err}
	}
	return products, nil
}

func (m *FileMedium) Save(_ context.Context, products []Product) error {
	data, err := encodeCollection(products)
	if err != nil {
		return err
	}
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(m.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
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
	if err := os.Rename(tmpName, m.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", m.path, err)
	}
	committed = true
	// The new document is already visible, so a failed directory flush must not
	// report the save as failed.
	_ = syncDir(dir)
	return nil
}

// quarantine moves the unreadable document next to the canonical path.
func (m *FileMedium) quarantine() (string, error) {
	target := fmt.Sprintf("%s.corrupt-%d", m.path, m.now().Unix())
	if err := os.Rename(m.path, target); err != nil {
		return "", err
	}
	return target, nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open directory %s: %w", dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return fmt.Errorf("failed to sync directory %s: %w", dir, err)
	}
	return nil
}
