package memo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"taskboard/pkg/task"
)

// SQLiteStore implements Store on a database/sql SQLite handle.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// EnsureTable creates the quick_memos table if it doesn't exist.
func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS quick_memos (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id      INTEGER,
			task_name    TEXT,
			memo_content TEXT NOT NULL,
			created_at   TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("creating quick_memos: %w", err)
	}
	return nil
}

// Create appends a memo.
func (s *SQLiteStore) Create(ctx context.Context, m *Memo) (*Memo, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO quick_memos (task_id, task_name, memo_content, created_at) VALUES (?, ?, ?, ?)`,
		m.TaskID, m.TaskName, m.MemoContent, m.CreatedAt.Format(task.TimeLayout))
	if err != nil {
		return nil, fmt.Errorf("create memo: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("create memo: %w", err)
	}
	return m, nil
}

// Recent returns up to limit memos, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Memo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, task_name, memo_content, created_at
		FROM quick_memos ORDER BY created_at DESC, id DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("recent memos: %w", err)
	}
	defer rows.Close()

	var memos []Memo
	for rows.Next() {
		var m Memo
		var createdAt string
		if err := rows.Scan(&m.ID, &m.TaskID, &m.TaskName, &m.MemoContent, &createdAt); err != nil {
			return nil, fmt.Errorf("scan memo: %w", err)
		}
		if t, err := time.Parse(task.TimeLayout, createdAt); err == nil {
			m.CreatedAt = t
		}
		memos = append(memos, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return memos, nil
}
