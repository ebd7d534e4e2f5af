package task

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// ValidationError reports an invalid field value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks a task before it is created.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.TaskName) == "" {
		return invalid("task_name", "is required")
	}
	if t.AutomationLevel != nil && !slices.Contains(AutomationLevels, *t.AutomationLevel) {
		return invalid("automation_level", "unknown value %q", *t.AutomationLevel)
	}
	if t.ToBeOwner != nil && !slices.Contains(OwnerTypes, *t.ToBeOwner) {
		return invalid("tobe_owner", "unknown value %q", *t.ToBeOwner)
	}
	if t.TargetTime != nil && *t.TargetTime <= 0 {
		return invalid("target_time", "must be positive")
	}
	if t.TargetTimeUnit != nil && !slices.Contains(TimeUnits, *t.TargetTimeUnit) {
		return invalid("target_time_unit", "unknown value %q", *t.TargetTimeUnit)
	}
	if t.Confidentiality != nil && !slices.Contains(Levels, *t.Confidentiality) {
		return invalid("confidentiality", "unknown value %q", *t.Confidentiality)
	}
	if t.Priority != nil && !slices.Contains(Levels, *t.Priority) {
		return invalid("priority", "unknown value %q", *t.Priority)
	}
	return nil
}

type fieldKind int

const (
	kindText fieldKind = iota
	kindInt
	kindFloat
	kindBool
)

type fieldType struct {
	kind    fieldKind
	allowed []string
}

func enumOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

// updatable maps every column a caller may change to its type.
var updatable = map[string]fieldType{
	"task_name":          {kind: kindText},
	"task_goal":          {kind: kindText},
	"automation_level":   {kind: kindText, allowed: enumOf(AutomationLevels)},
	"tobe_owner":         {kind: kindText, allowed: enumOf(OwnerTypes)},
	"input_info":         {kind: kindText},
	"output_info":        {kind: kindText},
	"data_standard":      {kind: kindText},
	"trigger_event":      {kind: kindText},
	"asis_owner":         {kind: kindText},
	"agent_capability":   {kind: kindText},
	"tools_systems":      {kind: kindText},
	"exception_cases":    {kind: kindText},
	"error_handling":     {kind: kindText},
	"target_time":        {kind: kindInt},
	"target_time_unit":   {kind: kindText, allowed: enumOf(TimeUnits)},
	"confidentiality":    {kind: kindText, allowed: enumOf(Levels)},
	"audit_log_required": {kind: kindBool},
	"learning_mechanism": {kind: kindText},
	"kpi_metrics":        {kind: kindText},
	"cost_benefit":       {kind: kindFloat},
	"comments":           {kind: kindText},
	"priority":           {kind: kindText, allowed: enumOf(Levels)},
}

// NormalizeUpdates validates a partial update decoded from JSON and converts
// values to their column types. A nil value clears the column, except for
// task_name which may not be cleared.
func NormalizeUpdates(updates map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(updates))
	for k, v := range updates {
		if k == "id" || k == "created_at" || k == "updated_at" {
			continue
		}
		field, ok := updatable[k]
		if !ok {
			return nil, invalid(k, "unknown field")
		}
		if v == nil {
			if k == "task_name" {
				return nil, invalid(k, "is required")
			}
			out[k] = nil
			continue
		}
		nv, err := normalizeValue(k, field, v)
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	return out, nil
}

func normalizeValue(k string, field fieldType, v any) (any, error) {
	switch field.kind {
	case kindText:
		s, ok := asString(v)
		if !ok {
			return nil, invalid(k, "must be a string")
		}
		if k == "task_name" && strings.TrimSpace(s) == "" {
			return nil, invalid(k, "is required")
		}
		if field.allowed != nil && !slices.Contains(field.allowed, s) {
			return nil, invalid(k, "unknown value %q", s)
		}
		return s, nil
	case kindInt:
		f, ok := asFloat(v)
		if !ok || f != math.Trunc(f) {
			return nil, invalid(k, "must be an integer")
		}
		if f <= 0 {
			return nil, invalid(k, "must be positive")
		}
		return int64(f), nil
	case kindFloat:
		f, ok := asFloat(v)
		if !ok {
			return nil, invalid(k, "must be a number")
		}
		return f, nil
	case kindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, invalid(k, "must be a boolean")
		}
		return b, nil
	}
	return nil, invalid(k, "unsupported field")
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	}
	return "", false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
