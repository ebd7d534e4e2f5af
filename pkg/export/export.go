package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"taskboard/pkg/task"
)

// Supported formats.
const (
	CSV  = "csv"
	JSON = "json"
	YAML = "yaml"
)

// ErrUnsupportedFormat is returned for formats other than csv, json and yaml.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Supported reports whether Write accepts format.
func Supported(format string) bool {
	return format == CSV || format == JSON || format == YAML
}

// ContentType returns the MIME type for format.
func ContentType(format string) string {
	switch format {
	case JSON:
		return "application/json"
	case YAML:
		return "application/yaml"
	default:
		return "text/csv; charset=utf-8"
	}
}

// FileName returns the attachment name for format.
func FileName(format string) string {
	return "tasks." + format
}

// Write serializes tasks to w in format.
func Write(w io.Writer, format string, tasks []task.Task) error {
	switch format {
	case CSV:
		return writeCSV(w, tasks)
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if tasks == nil {
			tasks = []task.Task{}
		}
		return enc.Encode(tasks)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toRecords(tasks)); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func writeCSV(w io.Writer, tasks []task.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(task.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range tasks {
		if err := cw.Write(Row(t)); err != nil {
			return fmt.Errorf("write task %d: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Row renders t as strings in task.Columns order; unset fields are empty.
func Row(t task.Task) []string {
	return []string{
		strconv.FormatInt(t.ID, 10),
		t.TaskName,
		str(t.TaskGoal),
		str(t.AutomationLevel),
		str(t.ToBeOwner),
		str(t.InputInfo),
		str(t.OutputInfo),
		str(t.DataStandard),
		str(t.TriggerEvent),
		str(t.AsIsOwner),
		str(t.AgentCapability),
		str(t.ToolsSystems),
		str(t.ExceptionCases),
		str(t.ErrorHandling),
		intStr(t.TargetTime),
		str(t.TargetTimeUnit),
		str(t.Confidentiality),
		boolStr(t.AuditLogRequired),
		str(t.LearningMechanism),
		str(t.KPIMetrics),
		floatStr(t.CostBenefit),
		str(t.Comments),
		str(t.Priority),
		timeStr(t.CreatedAt),
		timeStr(t.UpdatedAt),
	}
}

// toRecords keys each row by column name so YAML output mirrors the table.
func toRecords(tasks []task.Task) []map[string]any {
	out := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		raw, _ := json.Marshal(t)
		var rec map[string]any
		_ = json.Unmarshal(raw, &rec)
		out = append(out, rec)
	}
	return out
}

func str[T ~string](p *T) string {
	if p == nil {
		return ""
	}
	return string(*p)
}

func intStr(p *int64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(*p, 10)
}

func floatStr(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func boolStr(p *bool) string {
	if p == nil {
		return ""
	}
	return strconv.FormatBool(*p)
}

func timeStr(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
