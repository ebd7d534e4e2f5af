package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"taskboard/pkg/task"
)

func sampleTasks() []task.Task {
	goal := "集計を自動化する, \"毎週\""
	level := task.AutomationPartial
	target := int64(30)
	audit := true
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return []task.Task{
		{ID: 1, TaskName: "週次レポート", TaskGoal: &goal, AutomationLevel: &level, TargetTime: &target, AuditLogRequired: &audit, CreatedAt: created, UpdatedAt: created},
		{ID: 2, TaskName: "plain"},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CSV, sampleTasks()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, task.Columns, records[0])
	assert.Equal(t, "集計を自動化する, \"毎週\"", records[1][2])
	assert.Equal(t, "△", records[1][3])
	assert.Equal(t, "30", records[1][14])
	assert.Equal(t, "true", records[1][17])
	assert.Equal(t, "2024-01-02T03:04:05Z", records[1][23])
	assert.Equal(t, "", records[2][2], "unset fields are empty")
}

func TestWriteCSV_EmptyIsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CSV, nil))
	assert.Zero(t, buf.Len())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, JSON, sampleTasks()))

	var got []task.Task
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "週次レポート", got[0].TaskName)

	buf.Reset()
	require.NoError(t, Write(&buf, JSON, nil))
	assert.JSONEq(t, "[]", buf.String())
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, YAML, sampleTasks()))

	var got []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "週次レポート", got[0]["task_name"])
	assert.Nil(t, got[1]["task_goal"])
}

func TestWriteUnsupported(t *testing.T) {
	err := Write(&bytes.Buffer{}, "xlsx", nil)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestContentTypeAndFileName(t *testing.T) {
	assert.Equal(t, "text/csv; charset=utf-8", ContentType(CSV))
	assert.Equal(t, "application/json", ContentType(JSON))
	assert.Equal(t, "tasks.yaml", FileName(YAML))
	assert.True(t, Supported(CSV))
	assert.False(t, Supported("xlsx"))
}
