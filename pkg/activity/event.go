package activity

import (
	"time"
)

// Event types published by the API when state changes.
const (
	TaskCreated         = "task.created"
	TaskUpdated         = "task.updated"
	TaskDeleted         = "task.deleted"
	DependenciesChanged = "dependencies.replaced"
	MemoCreated         = "memo.created"
)

// Event is a single change notification.
type Event struct {
	ID        string         `json:"id"`        // UUID v7 (time-ordered)
	Type      string         `json:"type"`      // e.g. "task.created"
	TaskID    int64          `json:"task_id"`   // 0 when not about a task
	Timestamp time.Time      `json:"timestamp"` // when the change was published
	Content   map[string]any `json:"content"`   // event payload
}
