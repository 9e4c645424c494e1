package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/quietloop/remora/internal/transcript"
)

// transcriptStore implements transcript.Store backed by SQLite. Each
// conversation is an ordered run of rows keyed (chat_id, seq); inserts
// evict the oldest rows past the configured bound inside the same
// transaction, so readers never observe an over-long sequence.
type transcriptStore struct {
	db    *sql.DB
	limit int
}

// Append implements transcript.Store.
func (s *transcriptStore) Append(chatID int64, e transcript.Entry) error {
	ctx := context.TODO()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin append: %w", err)
	}
	defer tx.Rollback()

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (chat_id, seq, sender_id, display_name, username,
			text, quote, has_quote, addressed, from_agent, has_attachment, created_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM entries WHERE chat_id = ?),
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chatID, chatID,
		e.SenderID, e.DisplayName, e.Username,
		e.Text, e.Quote, boolInt(e.HasQuote), boolInt(e.Addressed),
		boolInt(e.FromAgent), boolInt(e.HasAttachment),
		ts.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert entry: %w", err)
	}

	if s.limit > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM entries WHERE chat_id = ? AND seq NOT IN (
				SELECT seq FROM entries WHERE chat_id = ? ORDER BY seq DESC LIMIT ?
			)`,
			chatID, chatID, s.limit,
		)
		if err != nil {
			return fmt.Errorf("sqlite: evict entries: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit append: %w", err)
	}
	return nil
}

// Entries implements transcript.Store.
func (s *transcriptStore) Entries(chatID int64) ([]transcript.Entry, error) {
	ctx := context.TODO()

	rows, err := s.db.QueryContext(ctx, `
		SELECT sender_id, display_name, username, text, quote,
			has_quote, addressed, from_agent, has_attachment, created_at
		FROM entries WHERE chat_id = ? ORDER BY seq`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query entries: %w", err)
	}
	defer rows.Close()

	var out []transcript.Entry
	for rows.Next() {
		var e transcript.Entry
		var hasQuote, addressed, fromAgent, hasAttachment int
		var createdAt string
		if err := rows.Scan(&e.SenderID, &e.DisplayName, &e.Username, &e.Text, &e.Quote,
			&hasQuote, &addressed, &fromAgent, &hasAttachment, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan entry: %w", err)
		}
		e.HasQuote = hasQuote != 0
		e.Addressed = addressed != 0
		e.FromAgent = fromAgent != 0
		e.HasAttachment = hasAttachment != 0
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.Timestamp = ts
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate entries: %w", err)
	}
	return out, nil
}

// Len implements transcript.Store.
func (s *transcriptStore) Len(chatID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(context.TODO(),
		"SELECT COUNT(*) FROM entries WHERE chat_id = ?", chatID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count entries: %w", err)
	}
	return n, nil
}

// Reset implements transcript.Store.
func (s *transcriptStore) Reset(chatID int64, partial bool) (int, bool, error) {
	ctx := context.TODO()

	existing, err := s.Len(chatID)
	if err != nil {
		return 0, false, err
	}
	if existing == 0 {
		return 0, false, nil
	}

	query := "DELETE FROM entries WHERE chat_id = ?"
	if partial {
		query += " AND from_agent = 1"
	}
	res, err := s.db.ExecContext(ctx, query, chatID)
	if err != nil {
		return 0, true, fmt.Errorf("sqlite: reset chat %d: %w", chatID, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, true, fmt.Errorf("sqlite: reset rows affected: %w", err)
	}
	return int(removed), true, nil
}

// Chats implements transcript.Store.
func (s *transcriptStore) Chats() ([]int64, error) {
	rows, err := s.db.QueryContext(context.TODO(),
		"SELECT DISTINCT chat_id FROM entries ORDER BY chat_id")
	if err != nil {
		return nil, fmt.Errorf("sqlite: query chats: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan chat id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate chats: %w", err)
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
