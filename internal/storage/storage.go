package storage

import (
	"context"
	"fmt"

	"taskboard/internal/config"
	"taskboard/internal/db"
	"taskboard/pkg/memo"
	"taskboard/pkg/task"
)

// Backend names reported by Stores.Backend and /api/status.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Stores bundles the task and memo stores over one database handle.
type Stores struct {
	Tasks   task.Store
	Memos   memo.Store
	Backend string

	close func()
}

// Open connects to the backend cfg selects and ensures the schema exists.
// PostgreSQL is used when the database URL names it and SQLite is not
// forced; otherwise the SQLite file at cfg.SQLitePath.
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	var s *Stores
	if db.UsePostgres(cfg.DatabaseURL, cfg.ForceSQLite) {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s = &Stores{
			Tasks:   task.NewPgStore(pool),
			Memos:   memo.NewPgStore(pool),
			Backend: BackendPostgres,
			close:   pool.Close,
		}
	} else {
		sqlDB, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		s = &Stores{
			Tasks:   task.NewSQLiteStore(sqlDB),
			Memos:   memo.NewSQLiteStore(sqlDB),
			Backend: BackendSQLite,
			close:   func() { sqlDB.Close() },
		}
	}

	if err := s.Tasks.EnsureTable(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("ensure tasks tables: %w", err)
	}
	if err := s.Memos.EnsureTable(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("ensure quick_memos table: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}
