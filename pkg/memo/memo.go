package memo

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxRecent caps how many memos Recent returns.
const MaxRecent = 50

// Memo is a free-standing quick note, optionally tied to a task.
type Memo struct {
	ID          int64     `json:"id"`
	TaskID      *int64    `json:"task_id"`
	TaskName    *string   `json:"task_name"`
	MemoContent string    `json:"memo_content"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the contract for memo persistence. Memos are append-only.
type Store interface {
	Create(ctx context.Context, m *Memo) (*Memo, error)
	Recent(ctx context.Context, limit int) ([]Memo, error)
	EnsureTable(ctx context.Context) error
}

var (
	ErrEmptyContent  = errors.New("memo_content is required")
	ErrEmptyTaskName = errors.New("task_name must not be empty when given")
)

// Validate checks a memo before it is created.
func (m *Memo) Validate() error {
	if strings.TrimSpace(m.MemoContent) == "" {
		return ErrEmptyContent
	}
	if m.TaskName != nil && strings.TrimSpace(*m.TaskName) == "" {
		return ErrEmptyTaskName
	}
	return nil
}

// clampLimit bounds limit to 1..MaxRecent; non-positive means MaxRecent.
func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxRecent {
		return MaxRecent
	}
	return limit
}
