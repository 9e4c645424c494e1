package transcript

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// SaveFile writes a snapshot of the store to path via a temp file and
// rename, so a crash mid-write never clobbers the previous snapshot.
func SaveFile(s Snapshotter, path string) error {
	var buf bytes.Buffer
	if err := s.Snapshot(&buf); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("transcript: create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("transcript: create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("transcript: write temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("transcript: sync temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("transcript: close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("transcript: rename temp for %s: %w", path, err)
	}
	return nil
}

// LoadFile restores the store from a snapshot file. A missing file is not
// an error. A corrupt file returns ErrCorruptSnapshot (wrapped) and leaves
// the caller free to continue with an empty store.
func LoadFile(s Snapshotter, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("transcript: open snapshot %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return s.Restore(f)
}
