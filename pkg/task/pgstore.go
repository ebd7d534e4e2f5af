package task

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

var selectColumns = strings.Join(Columns, ", ")

// EnsureTable creates the tasks, task_dependencies and quick_memos tables if they don't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id                 BIGSERIAL PRIMARY KEY,
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
			target_time        BIGINT,
			target_time_unit   TEXT CHECK(target_time_unit IN ('秒', '分', '時間')),
			confidentiality    TEXT CHECK(confidentiality IN ('高', '中', '低')),
			audit_log_required BOOLEAN,
			learning_mechanism TEXT,
			kpi_metrics        TEXT,
			cost_benefit       DOUBLE PRECISION,
			comments           TEXT,
			priority           TEXT CHECK(priority IN ('高', '中', '低')) DEFAULT '中',
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS task_dependencies (
			id                 BIGSERIAL PRIMARY KEY,
			task_id            BIGINT NOT NULL,
			depends_on_task_id BIGINT NOT NULL
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_task_dependencies_task ON task_dependencies(task_id)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
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
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON tasks(updated_at)`)
	return err
}

func pgPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func pgPlaceholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = pgPlaceholder(from + i)
	}
	return strings.Join(ph, ", ")
}

// Create inserts a new task.
func (s *PgStore) Create(ctx context.Context, t *Task) (*Task, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.applyDefaults()
	now := time.Now().Truncate(time.Microsecond)
	t.CreatedAt = now
	t.UpdatedAt = now

	args := append(t.insertArgs(), t.CreatedAt, t.UpdatedAt)
	query := fmt.Sprintf(`INSERT INTO tasks (%s, created_at, updated_at) VALUES (%s) RETURNING id`,
		strings.Join(insertColumns, ", "), pgPlaceholders(1, len(args)))
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&t.ID); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// Get retrieves a single task by ID.
func (s *PgStore) Get(ctx context.Context, id int64) (*Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanPgTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// Update modifies task fields. Keys are column names; see NormalizeUpdates.
func (s *PgStore) Update(ctx context.Context, id int64, updates map[string]any) (*Task, error) {
	updates, err := NormalizeUpdates(updates)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return s.Get(ctx, id)
	}
	now := time.Now().Truncate(time.Microsecond)

	// Build SET clause in a stable column order
	setClauses := "updated_at = $1"
	args := []any{now}
	argIdx := 2
	for _, k := range sortedKeys(updates) {
		setClauses += fmt.Sprintf(", %s = $%d", k, argIdx)
		args = append(args, updates[k])
		argIdx++
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d RETURNING %s", setClauses, argIdx, selectColumns)
	t, err := scanPgTask(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update task %d: %w", id, err)
	}
	return t, nil
}

// Delete removes a task together with its dependency edges and memos.
func (s *PgStore) Delete(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM task_dependencies WHERE task_id = $1 OR depends_on_task_id = $1`, id); err != nil {
		return fmt.Errorf("delete dependencies of %d: %w", id, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM quick_memos WHERE task_id = $1`, id); err != nil {
		return fmt.Errorf("delete memos of %d: %w", id, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete %d: %w", id, err)
	}
	return nil
}

// List returns tasks matching f.
func (s *PgStore) List(ctx context.Context, f Filters) ([]Task, error) {
	query, args := listQuery(f, pgPlaceholder, func(t time.Time) any { return t })
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanPgTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}

// Count returns total task count.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}

// SetDependencies replaces the prerequisites of taskID.
func (s *PgStore) SetDependencies(ctx context.Context, taskID int64, dependsOn []int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM task_dependencies WHERE task_id = $1`, taskID); err != nil {
		return fmt.Errorf("clear dependencies of %d: %w", taskID, err)
	}
	for _, dep := range dedupDependencies(taskID, dependsOn) {
		if _, err := tx.Exec(ctx, `INSERT INTO task_dependencies (task_id, depends_on_task_id) VALUES ($1, $2)`, taskID, dep); err != nil {
			return fmt.Errorf("insert dependency %d->%d: %w", taskID, dep, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit dependencies of %d: %w", taskID, err)
	}
	return nil
}

// ListDependencies returns every edge in insertion order.
func (s *PgStore) ListDependencies(ctx context.Context) ([]Dependency, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, task_id, depends_on_task_id FROM task_dependencies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()
	return scanDependencies(rows)
}

// DependenciesOf returns the prerequisites of taskID.
func (s *PgStore) DependenciesOf(ctx context.Context, taskID int64) ([]Dependency, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, task_id, depends_on_task_id FROM task_dependencies WHERE task_id = $1 ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("dependencies of %d: %w", taskID, err)
	}
	defer rows.Close()
	return scanDependencies(rows)
}

func scanPgTask(row pgx.Row) (*Task, error) {
	var t Task
	dest := append(t.scanDest(), &t.CreatedAt, &t.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanDependencies(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Dependency, error) {
	var deps []Dependency
	for rows.Next() {
		var d Dependency
		if err := rows.Scan(&d.ID, &d.TaskID, &d.DependsOnTaskID); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return deps, nil
}

// dedupDependencies drops self-loops and repeated ids, keeping first-seen order.
func dedupDependencies(taskID int64, dependsOn []int64) []int64 {
	out := make([]int64, 0, len(dependsOn))
	for _, id := range dependsOn {
		if id == taskID || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
