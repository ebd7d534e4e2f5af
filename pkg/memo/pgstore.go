package memo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed memo store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the quick_memos table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS quick_memos (
			id           BIGSERIAL PRIMARY KEY,
			task_id      BIGINT,
			task_name    TEXT,
			memo_content TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_quick_memos_created_at ON quick_memos(created_at DESC)`)
	return err
}

// Create appends a memo.
func (s *PgStore) Create(ctx context.Context, m *Memo) (*Memo, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.CreatedAt = time.Now().Truncate(time.Microsecond)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO quick_memos (task_id, task_name, memo_content, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		m.TaskID, m.TaskName, m.MemoContent, m.CreatedAt).Scan(&m.ID)
	if err != nil {
		return nil, fmt.Errorf("create memo: %w", err)
	}
	return m, nil
}

// Recent returns up to limit memos, newest first.
func (s *PgStore) Recent(ctx context.Context, limit int) ([]Memo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, task_id, task_name, memo_content, created_at
		FROM quick_memos ORDER BY created_at DESC, id DESC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("recent memos: %w", err)
	}
	defer rows.Close()

	var memos []Memo
	for rows.Next() {
		var m Memo
		if err := rows.Scan(&m.ID, &m.TaskID, &m.TaskName, &m.MemoContent, &m.CreatedAt); err != nil {
			return nil, err
		}
		memos = append(memos, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return memos, nil
}
