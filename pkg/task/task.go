package task

import (
	"context"
	"errors"
	"time"
)

// AutomationLevel rates how automatable a task is.
type AutomationLevel string

const (
	AutomationFull    AutomationLevel = "◎"
	AutomationPartial AutomationLevel = "△"
	AutomationNone    AutomationLevel = "×"
)

// AutomationLevels lists the recognized automation levels in display order.
var AutomationLevels = []AutomationLevel{AutomationFull, AutomationPartial, AutomationNone}

// Level is the shared 高/中/低 scale used by priority and confidentiality.
type Level string

const (
	LevelHigh   Level = "高"
	LevelMedium Level = "中"
	LevelLow    Level = "低"
)

// Levels lists the recognized levels in display order.
var Levels = []Level{LevelHigh, LevelMedium, LevelLow}

// OwnerType is who owns a task once automated.
type OwnerType string

const (
	OwnerAgent OwnerType = "エージェント"
	OwnerHuman OwnerType = "人間"
	OwnerJoint OwnerType = "共同"
)

// OwnerTypes lists the recognized owner types in display order.
var OwnerTypes = []OwnerType{OwnerAgent, OwnerHuman, OwnerJoint}

// TimeUnit qualifies TargetTime.
type TimeUnit string

const (
	UnitSeconds TimeUnit = "秒"
	UnitMinutes TimeUnit = "分"
	UnitHours   TimeUnit = "時間"
)

// TimeUnits lists the recognized target time units, smallest first.
var TimeUnits = []TimeUnit{UnitSeconds, UnitMinutes, UnitHours}

// ErrNotFound is returned by stores when a task id does not exist.
var ErrNotFound = errors.New("task not found")

// Task is an automation-candidate task record.
type Task struct {
	ID                int64            `json:"id"`
	TaskName          string           `json:"task_name"`
	TaskGoal          *string          `json:"task_goal"`
	AutomationLevel   *AutomationLevel `json:"automation_level"`
	ToBeOwner         *OwnerType       `json:"tobe_owner"`
	InputInfo         *string          `json:"input_info"`
	OutputInfo        *string          `json:"output_info"`
	DataStandard      *string          `json:"data_standard"`
	TriggerEvent      *string          `json:"trigger_event"`
	AsIsOwner         *string          `json:"asis_owner"`
	AgentCapability   *string          `json:"agent_capability"`
	ToolsSystems      *string          `json:"tools_systems"`
	ExceptionCases    *string          `json:"exception_cases"`
	ErrorHandling     *string          `json:"error_handling"`
	TargetTime        *int64           `json:"target_time"`
	TargetTimeUnit    *TimeUnit        `json:"target_time_unit"`
	Confidentiality   *Level           `json:"confidentiality"`
	AuditLogRequired  *bool            `json:"audit_log_required"`
	LearningMechanism *string          `json:"learning_mechanism"`
	KPIMetrics        *string          `json:"kpi_metrics"`
	CostBenefit       *float64         `json:"cost_benefit"`
	Comments          *string          `json:"comments"`
	Priority          *Level           `json:"priority"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Dependency means TaskID cannot start until DependsOnTaskID completes.
type Dependency struct {
	ID              int64 `json:"id"`
	TaskID          int64 `json:"task_id"`
	DependsOnTaskID int64 `json:"depends_on_task_id"`
}

// Store is the contract for task persistence.
type Store interface {
	Create(ctx context.Context, t *Task) (*Task, error)
	Get(ctx context.Context, id int64) (*Task, error)
	// Update leaves updated_at untouched when updates holds no settable column.
	Update(ctx context.Context, id int64, updates map[string]any) (*Task, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f Filters) ([]Task, error)
	Count(ctx context.Context) (int, error)

	SetDependencies(ctx context.Context, taskID int64, dependsOn []int64) error
	ListDependencies(ctx context.Context) ([]Dependency, error)
	DependenciesOf(ctx context.Context, taskID int64) ([]Dependency, error)

	EnsureTable(ctx context.Context) error
}

// Columns is the persisted column order shared by the stores and the exporter.
var Columns = []string{
	"id", "task_name", "task_goal", "automation_level", "tobe_owner", "input_info", "output_info",
	"data_standard", "trigger_event", "asis_owner", "agent_capability", "tools_systems",
	"exception_cases", "error_handling", "target_time", "target_time_unit",
	"confidentiality", "audit_log_required", "learning_mechanism", "kpi_metrics",
	"cost_benefit", "comments", "priority", "created_at", "updated_at",
}

// insertColumns are the columns a caller may set on create.
var insertColumns = Columns[1 : len(Columns)-2]

// insertArgs returns values for insertColumns, in order.
func (t *Task) insertArgs() []any {
	return []any{
		t.TaskName, t.TaskGoal, t.AutomationLevel, t.ToBeOwner, t.InputInfo, t.OutputInfo,
		t.DataStandard, t.TriggerEvent, t.AsIsOwner, t.AgentCapability, t.ToolsSystems,
		t.ExceptionCases, t.ErrorHandling, t.TargetTime, t.TargetTimeUnit,
		t.Confidentiality, t.AuditLogRequired, t.LearningMechanism, t.KPIMetrics,
		t.CostBenefit, t.Comments, t.Priority,
	}
}

// scanDest returns pointers for Columns minus the timestamps, which each
// backend scans in its own representation.
func (t *Task) scanDest() []any {
	return []any{
		&t.ID, &t.TaskName, &t.TaskGoal, &t.AutomationLevel, &t.ToBeOwner, &t.InputInfo, &t.OutputInfo,
		&t.DataStandard, &t.TriggerEvent, &t.AsIsOwner, &t.AgentCapability, &t.ToolsSystems,
		&t.ExceptionCases, &t.ErrorHandling, &t.TargetTime, &t.TargetTimeUnit,
		&t.Confidentiality, &t.AuditLogRequired, &t.LearningMechanism, &t.KPIMetrics,
		&t.CostBenefit, &t.Comments, &t.Priority,
	}
}

// applyDefaults fills fields the store defaults on create.
func (t *Task) applyDefaults() {
	if t.Priority == nil {
		p := LevelMedium
		t.Priority = &p
	}
}
