package transcript_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/quietloop/remora/internal/transcript"
)

func TestSaveAndLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "state", "transcripts.gob")

	store := transcript.NewMemoryStore(5)
	mustAppend(t, store, 42, userEntry("persisted"))

	if err := transcript.SaveFile(store, path); err != nil {
		t.Fatalf("SaveFile: unexpected error: %v", err)
	}

	restored := transcript.NewMemoryStore(5)
	if err := transcript.LoadFile(restored, path); err != nil {
		t.Fatalf("LoadFile: unexpected error: %v", err)
	}

	got, err := restored.Entries(42)
	if err != nil {
		t.Fatalf("Entries: unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Text != "persisted" {
		t.Errorf("restored entries = %+v, want one entry %q", got, "persisted")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()

	store := transcript.NewMemoryStore(5)
	path := filepath.Join(t.TempDir(), "does-not-exist.gob")

	if err := transcript.LoadFile(store, path); err != nil {
		t.Fatalf("LoadFile of missing file: got %v, want nil", err)
	}
}

func TestLoadFile_Corrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.gob")
	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	store := transcript.NewMemoryStore(5)
	err := transcript.LoadFile(store, path)
	if !errors.Is(err, transcript.ErrCorruptSnapshot) {
		t.Fatalf("LoadFile corrupt: got %v, want ErrCorruptSnapshot", err)
	}
}

func TestSaveFile_PreservesPreviousOnFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "transcripts.gob")

	store := transcript.NewMemoryStore(5)
	mustAppend(t, store, 1, userEntry("first"))
	if err := transcript.SaveFile(store, path); err != nil {
		t.Fatalf("SaveFile: unexpected error: %v", err)
	}

	// A second save must fully replace the file, not append to it.
	mustAppend(t, store, 1, userEntry("second"))
	if err := transcript.SaveFile(store, path); err != nil {
		t.Fatalf("SaveFile: unexpected error: %v", err)
	}

	restored := transcript.NewMemoryStore(5)
	if err := transcript.LoadFile(restored, path); err != nil {
		t.Fatalf("LoadFile: unexpected error: %v", err)
	}
	n, _ := restored.Len(1)
	if n != 2 {
		t.Errorf("Len = %d, want 2", n)
	}
}
