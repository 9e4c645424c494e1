package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/quietloop/remora/internal/transcript"

	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T, path string, limit int) *transcriptStore {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return &transcriptStore{db: db, limit: limit}
}

func entry(sender, text string, fromAgent bool) transcript.Entry {
	return transcript.Entry{
		SenderID:    sender,
		DisplayName: "Name " + sender,
		Username:    "user_" + sender,
		Text:        text,
		FromAgent:   fromAgent,
		Timestamp:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAppendAndEntries(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, filepath.Join(t.TempDir(), "t.db"), 10)

	e := transcript.Entry{
		SenderID:      "u1",
		DisplayName:   "Alice",
		Username:      "alice",
		Text:          "hello",
		Quote:         "earlier words",
		HasQuote:      true,
		Addressed:     true,
		HasAttachment: true,
		Timestamp:     time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := s.Append(7, e); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.Entries(7)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0] != e {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got[0], e)
	}
}

func TestAppendEvictsOldest(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, filepath.Join(t.TempDir(), "t.db"), 3)

	for _, text := range []string{"one", "two", "three", "four", "five"} {
		if err := s.Append(1, entry("u1", text, false)); err != nil {
			t.Fatalf("Append %q: %v", text, err)
		}
	}

	got, err := s.Entries(1)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	want := []string{"three", "four", "five"}
	for i, w := range want {
		if got[i].Text != w {
			t.Errorf("entry[%d].Text = %q, want %q", i, got[i].Text, w)
		}
	}
}

func TestChatsAreIsolated(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, filepath.Join(t.TempDir(), "t.db"), 10)

	if err := s.Append(1, entry("u1", "in chat one", false)); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(2, entry("u2", "in chat two", false)); err != nil {
		t.Fatal(err)
	}

	one, _ := s.Entries(1)
	two, _ := s.Entries(2)
	if len(one) != 1 || one[0].Text != "in chat one" {
		t.Errorf("chat 1 entries = %+v", one)
	}
	if len(two) != 1 || two[0].Text != "in chat two" {
		t.Errorf("chat 2 entries = %+v", two)
	}

	chats, err := s.Chats()
	if err != nil {
		t.Fatalf("Chats: %v", err)
	}
	if len(chats) != 2 || chats[0] != 1 || chats[1] != 2 {
		t.Errorf("Chats = %v, want [1 2]", chats)
	}
}

func TestResetFull(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, filepath.Join(t.TempDir(), "t.db"), 10)

	s.Append(5, entry("u1", "a", false))
	s.Append(5, entry("bot", "b", true))

	removed, existed, err := s.Reset(5, false)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !existed || removed != 2 {
		t.Errorf("Reset = (%d, %v), want (2, true)", removed, existed)
	}
	if n, _ := s.Len(5); n != 0 {
		t.Errorf("Len after reset = %d", n)
	}
}

func TestResetPartialKeepsHumanEntries(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, filepath.Join(t.TempDir(), "t.db"), 10)

	s.Append(5, entry("u1", "question", false))
	s.Append(5, entry("bot", "answer", true))
	s.Append(5, entry("u2", "comment", false))

	removed, existed, err := s.Reset(5, true)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !existed || removed != 1 {
		t.Errorf("Reset = (%d, %v), want (1, true)", removed, existed)
	}

	got, _ := s.Entries(5)
	if len(got) != 2 || got[0].Text != "question" || got[1].Text != "comment" {
		t.Errorf("surviving entries = %+v", got)
	}
}

func TestResetEmptyChat(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, filepath.Join(t.TempDir(), "t.db"), 10)

	removed, existed, err := s.Reset(99, false)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if existed || removed != 0 {
		t.Errorf("Reset on empty chat = (%d, %v), want (0, false)", removed, existed)
	}
}

func TestEntriesSurviveReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "t.db")

	s1 := openTestStore(t, path, 10)
	if err := s1.Append(3, entry("u1", "persisted", false)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	s1.db.Close()

	s2 := openTestStore(t, path, 10)
	got, err := s2.Entries(3)
	if err != nil {
		t.Fatalf("Entries after reopen: %v", err)
	}
	if len(got) != 1 || got[0].Text != "persisted" {
		t.Errorf("entries after reopen = %+v", got)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "t.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := migrate(db); err != nil {
			t.Fatalf("migrate pass %d: %v", i, err)
		}
	}
}
