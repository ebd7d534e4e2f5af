package formatter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"taskboard/pkg/dashboard"
	"taskboard/pkg/depgraph"
	"taskboard/pkg/memo"
	"taskboard/pkg/task"
)

const none = "-"

func deref[T ~string](p *T) string {
	if p == nil || *p == "" {
		return none
	}
	return string(*p)
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// RelativeTime renders t relative to now ("3 hours ago"); zero times render as "-".
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return none
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// FormatTaskList renders tasks as a table.
func FormatTaskList(tasks []task.Task, now time.Time) string {
	if len(tasks) == 0 {
		return render(StyleDim, "No tasks.") + "\n"
	}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		automation := none
		if t.AutomationLevel != nil {
			automation = render(AutomationColor(*t.AutomationLevel), string(*t.AutomationLevel))
		}
		priority := none
		if t.Priority != nil {
			priority = render(LevelColor(*t.Priority), string(*t.Priority))
		}
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			Truncate(t.TaskName, 40),
			automation,
			priority,
			deref(t.ToBeOwner),
			RelativeTime(t.UpdatedAt, now),
		})
	}
	return RenderTable([]string{"ID", "NAME", "AUTO", "PRIORITY", "OWNER", "UPDATED"}, rows)
}

// FormatTaskDetail renders every set field of t, one per line.
func FormatTaskDetail(t *task.Task, dependsOn []int64, now time.Time) string {
	var b strings.Builder
	b.WriteString(render(StyleBold, fmt.Sprintf("#%d %s", t.ID, t.TaskName)))
	b.WriteString("\n\n")

	fields := []struct {
		label string
		value string
	}{
		{"Goal", deref(t.TaskGoal)},
		{"Automation", deref(t.AutomationLevel)},
		{"To-be owner", deref(t.ToBeOwner)},
		{"As-is owner", deref(t.AsIsOwner)},
		{"Input", deref(t.InputInfo)},
		{"Output", deref(t.OutputInfo)},
		{"Data standard", deref(t.DataStandard)},
		{"Trigger", deref(t.TriggerEvent)},
		{"Agent capability", deref(t.AgentCapability)},
		{"Tools", deref(t.ToolsSystems)},
		{"Exceptions", deref(t.ExceptionCases)},
		{"Error handling", deref(t.ErrorHandling)},
		{"Target time", targetTime(t)},
		{"Confidentiality", deref(t.Confidentiality)},
		{"Audit log", boolValue(t.AuditLogRequired)},
		{"Learning", deref(t.LearningMechanism)},
		{"KPIs", deref(t.KPIMetrics)},
		{"Cost/benefit", floatValue(t.CostBenefit)},
		{"Comments", deref(t.Comments)},
		{"Priority", deref(t.Priority)},
		{"Depends on", idList(dependsOn)},
		{"Created", RelativeTime(t.CreatedAt, now)},
		{"Updated", RelativeTime(t.UpdatedAt, now)},
	}
	width := 0
	for _, f := range fields {
		width = max(width, lipgloss.Width(f.label))
	}
	for _, f := range fields {
		label := f.label + strings.Repeat(" ", width-lipgloss.Width(f.label))
		fmt.Fprintf(&b, "%s  %s\n", render(StyleDim, label), f.value)
	}
	return b.String()
}

func targetTime(t *task.Task) string {
	if t.TargetTime == nil {
		return none
	}
	s := strconv.FormatInt(*t.TargetTime, 10)
	if t.TargetTimeUnit != nil {
		s += string(*t.TargetTimeUnit)
	}
	return s
}

func boolValue(p *bool) string {
	if p == nil {
		return none
	}
	if *p {
		return "yes"
	}
	return "no"
}

func floatValue(p *float64) string {
	if p == nil {
		return none
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func idList(ids []int64) string {
	if len(ids) == 0 {
		return none
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "#" + strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

// FormatDependencies renders edges with task names where known.
func FormatDependencies(deps []task.Dependency, names map[int64]string) string {
	if len(deps) == 0 {
		return render(StyleDim, "No dependencies.") + "\n"
	}
	label := func(id int64) string {
		if name, ok := names[id]; ok {
			return fmt.Sprintf("#%d %s", id, Truncate(name, 30))
		}
		return fmt.Sprintf("#%d", id)
	}
	rows := make([][]string, 0, len(deps))
	for _, d := range deps {
		rows = append(rows, []string{label(d.TaskID), label(d.DependsOnTaskID)})
	}
	return RenderTable([]string{"TASK", "DEPENDS ON"}, rows)
}

// FormatCriticalPath renders the chain as "#1 → #2 → #3" with its length.
func FormatCriticalPath(a *depgraph.Analysis) string {
	if a.Length() == 0 {
		return render(StyleDim, "No critical path.")
	}
	parts := make([]string, len(a.CriticalPath))
	for i, id := range a.CriticalPath {
		parts[i] = "#" + strconv.FormatInt(id, 10)
	}
	s := fmt.Sprintf("%s %s (%d tasks)", render(StyleHeader, "Critical path:"), render(StyleRed, strings.Join(parts, " → ")), a.Length())
	if a.Cyclic {
		s += " " + render(StyleYellow, "[cycle detected]")
	}
	return s
}

// FormatMemos renders memos newest first.
func FormatMemos(memos []memo.Memo, now time.Time) string {
	if len(memos) == 0 {
		return render(StyleDim, "No memos.") + "\n"
	}
	rows := make([][]string, 0, len(memos))
	for _, m := range memos {
		taskLabel := none
		switch {
		case m.TaskID != nil:
			taskLabel = "#" + strconv.FormatInt(*m.TaskID, 10)
		case m.TaskName != nil:
			taskLabel = *m.TaskName
		}
		rows = append(rows, []string{
			strconv.FormatInt(m.ID, 10),
			taskLabel,
			Truncate(strings.ReplaceAll(m.MemoContent, "\n", " "), 60),
			RelativeTime(m.CreatedAt, now),
		})
	}
	return RenderTable([]string{"ID", "TASK", "MEMO", "CREATED"}, rows)
}

// FormatSummary renders dashboard counts and trends.
func FormatSummary(s dashboard.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", render(StyleHeader, "Total tasks:"), humanize.Comma(int64(s.TotalTasks)))
	avg := none
	if s.AverageTargetTime != nil {
		avg = humanize.FtoaWithDigits(*s.AverageTargetTime, 2)
	}
	fmt.Fprintf(&b, "%s %s\n\n", render(StyleHeader, "Average target time:"), avg)

	counts := func(title string, keys []string, m map[string]int) {
		rows := make([][]string, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, []string{k, strconv.Itoa(m[k])})
		}
		b.WriteString(RenderTable([]string{title, "COUNT"}, rows))
		b.WriteString("\n")
	}
	counts("AUTOMATION", stringsOf(task.AutomationLevels), s.AutomationLevelCounts)
	counts("PRIORITY", stringsOf(task.Levels), s.PriorityCounts)
	counts("CONFIDENTIALITY", stringsOf(task.Levels), s.ConfidentialityCounts)

	weekly := make([][]string, 0, len(s.WeeklyTrend))
	for _, w := range s.WeeklyTrend {
		weekly = append(weekly, []string{w.Week, strconv.Itoa(w.Count)})
	}
	b.WriteString(RenderTable([]string{"WEEK", "CREATED"}, weekly))
	b.WriteString("\n")
	monthly := make([][]string, 0, len(s.MonthlyTrend))
	for _, m := range s.MonthlyTrend {
		monthly = append(monthly, []string{m.Month, strconv.Itoa(m.Count)})
	}
	b.WriteString(RenderTable([]string{"MONTH", "CREATED"}, monthly))
	return b.String()
}

func stringsOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
