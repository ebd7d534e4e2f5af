package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsePostgres(t *testing.T) {
	tests := []struct {
		url   string
		force bool
		want  bool
	}{
		{"postgres://user@localhost/tasks", false, true},
		{"postgresql://localhost/tasks", false, true},
		{"POSTGRES://localhost/tasks", false, true},
		{"postgres://localhost/tasks", true, false},
		{"", false, false},
		{"file:tasks.db", false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UsePostgres(tt.url, tt.force), "url=%q force=%v", tt.url, tt.force)
	}
}

func TestOpenSQLite_Memory(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	assert.NoError(t, err)
	defer db.Close()
	assert.NoError(t, db.Ping())
}
