package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Filters narrows and orders List results. Empty fields do not filter.
type Filters struct {
	Search          string
	AutomationLevel string
	Priority        string
	Owner           string
	From            *time.Time // inclusive, by day of updated_at
	To              *time.Time // inclusive, by day of updated_at
	SortField       string     // "updated_at" (default) or "id"
	SortOrder       string     // "desc" (default) or "asc"
}

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseDateBound parses a filter date. It accepts YYYY-MM-DD, RFC 3339 and
// natural-language phrases such as "last week" or "3 days ago", resolved
// against now.
func ParseDateBound(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	r, err := dateParser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("parse date %q: unrecognized", s)
	}
	return r.Time, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func isAll(v string) bool {
	return v == "" || v == "all"
}

// listQuery builds the SELECT for List. ph renders the n-th (1-based)
// placeholder; timeArg converts a bound to the backend's column type.
func listQuery(f Filters, ph func(int) string, timeArg func(time.Time) any) (string, []any) {
	var conds []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return ph(len(args))
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		term := "%" + escapeLike(s) + "%"
		conds = append(conds, fmt.Sprintf(`(LOWER(task_name) LIKE LOWER(%s) ESCAPE '\' OR LOWER(task_goal) LIKE LOWER(%s) ESCAPE '\')`, next(term), next(term)))
	}
	if !isAll(f.AutomationLevel) {
		conds = append(conds, "automation_level = "+next(f.AutomationLevel))
	}
	if !isAll(f.Priority) {
		conds = append(conds, "priority = "+next(f.Priority))
	}
	if o := strings.TrimSpace(f.Owner); o != "" {
		conds = append(conds, fmt.Sprintf("(tobe_owner = %s OR asis_owner = %s OR tobe_owner IS NULL)", next(o), next(o)))
	}
	if f.From != nil {
		conds = append(conds, "updated_at >= "+next(timeArg(startOfDay(*f.From))))
	}
	if f.To != nil {
		conds = append(conds, "updated_at < "+next(timeArg(startOfDay(*f.To).AddDate(0, 0, 1))))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	sortField := "updated_at"
	if f.SortField == "id" {
		sortField = "id"
	}
	sortOrder := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		sortOrder = "ASC"
	}
	order := sortField + " " + sortOrder
	if sortField != "id" {
		order += ", id " + sortOrder
	}
	q := fmt.Sprintf("SELECT %s FROM tasks%s ORDER BY %s", strings.Join(Columns, ", "), where, order)
	return q, args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
