package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the fixed-width UTC layout timestamps are stored in on
// SQLite, so that text comparison orders them chronologically.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// SQLiteStore implements Store on a database/sql SQLite handle.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		task_name          TEXT NOT NULL,
		task_goal          TEXT,
		automation_level   TEXT CHECK(automation_level IN ('◎', '△', '×')),
		tobe_owner         TEXT CHECK(tobe_owner IN ('エージェント', '人間', '共同')),
		input_info         TEXT,
		output_info        TEXT,
		data_standard      TEXT,
		trigger_event      TEXT,
		asis_owner         TEXT,
		agent_capability   TEXT,
		tools_systems      TEXT,
		exception_cases    TEXT,
		error_handling     TEXT,
		target_time        INTEGER,
		target_time_unit   TEXT CHECK(target_time_unit IN ('秒', '分', '時間')),
		confidentiality    TEXT CHECK(confidentiality IN ('高', '中', '低')),
		audit_log_required INTEGER,
		learning_mechanism TEXT,
		kpi_metrics        TEXT,
		cost_benefit       REAL,
		comments           TEXT,
		priority           TEXT CHECK(priority IN ('高', '中', '低')) DEFAULT '中',
		created_at         TEXT NOT NULL,
		updated_at         TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS task_dependencies (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id            INTEGER NOT NULL,
		depends_on_task_id INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_task_dependencies_task ON task_dependencies(task_id)`,
	`CREATE TABLE IF NOT EXISTS quick_memos (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id      INTEGER,
		task_name    TEXT,
		memo_content TEXT NOT NULL,
		created_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON tasks(updated_at)`,
}

// EnsureTable creates the tasks, task_dependencies and quick_memos tables if they don't exist.
func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	for i, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}

func sqlitePlaceholder(int) string { return "?" }

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Create inserts a new task.
func (s *SQLiteStore) Create(ctx context.Context, t *Task) (*Task, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.applyDefaults()
	now := time.Now().UTC().Truncate(time.Microsecond)
	t.CreatedAt = now
	t.UpdatedAt = now

	args := append(t.insertArgs(), formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	query := fmt.Sprintf(`INSERT INTO tasks (%s, created_at, updated_at) VALUES (?%s)`,
		strings.Join(insertColumns, ", "), strings.Repeat(", ?", len(args)-1))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// Get retrieves a single task by ID.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanSQLiteTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// Update modifies task fields. Keys are column names; see NormalizeUpdates.
func (s *SQLiteStore) Update(ctx context.Context, id int64, updates map[string]any) (*Task, error) {
	updates, err := NormalizeUpdates(updates)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return s.Get(ctx, id)
	}
	setClauses := "updated_at = ?"
	args := []any{formatTime(time.Now().Truncate(time.Microsecond))}
	for _, k := range sortedKeys(updates) {
		setClauses += ", " + k + " = ?"
		args = append(args, updates[k])
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, "UPDATE tasks SET "+setClauses+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("update task %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes a task together with its dependency edges and memos.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	return s.withinTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_dependencies WHERE task_id = ? OR depends_on_task_id = ?`, id, id); err != nil {
			return fmt.Errorf("delete dependencies of %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM quick_memos WHERE task_id = ?`, id); err != nil {
			return fmt.Errorf("delete memos of %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete task %d: %w", id, err)
		}
		return nil
	})
}

// List returns tasks matching f.
func (s *SQLiteStore) List(ctx context.Context, f Filters) ([]Task, error) {
	query, args := listQuery(f, sqlitePlaceholder, func(t time.Time) any { return formatTime(t) })
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanSQLiteTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}

// Count returns total task count.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}

// SetDependencies replaces the prerequisites of taskID.
func (s *SQLiteStore) SetDependencies(ctx context.Context, taskID int64, dependsOn []int64) error {
	return s.withinTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_dependencies WHERE task_id = ?`, taskID); err != nil {
			return fmt.Errorf("clear dependencies of %d: %w", taskID, err)
		}
		for _, dep := range dedupDependencies(taskID, dependsOn) {
			if _, err := tx.ExecContext(ctx, `INSERT INTO task_dependencies (task_id, depends_on_task_id) VALUES (?, ?)`, taskID, dep); err != nil {
				return fmt.Errorf("insert dependency %d->%d: %w", taskID, dep, err)
			}
		}
		return nil
	})
}

// ListDependencies returns every edge in insertion order.
func (s *SQLiteStore) ListDependencies(ctx context.Context) ([]Dependency, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, task_id, depends_on_task_id FROM task_dependencies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()
	return scanDependencies(rows)
}

// DependenciesOf returns the prerequisites of taskID.
func (s *SQLiteStore) DependenciesOf(ctx context.Context, taskID int64) ([]Dependency, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, task_id, depends_on_task_id FROM task_dependencies WHERE task_id = ? ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("dependencies of %d: %w", taskID, err)
	}
	defer rows.Close()
	return scanDependencies(rows)
}

func (s *SQLiteStore) withinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func scanSQLiteTask(row interface{ Scan(dest ...any) error }) (*Task, error) {
	var t Task
	var createdAt, updatedAt string
	dest := append(t.scanDest(), &createdAt, &updatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

// parseTime leaves the zero time for values it cannot parse.
func parseTime(s string) time.Time {
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
