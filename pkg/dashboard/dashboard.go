package dashboard

import (
	"fmt"
	"sort"
	"time"

	"taskboard/pkg/task"
)

// WeekCount is the number of tasks registered in one ISO week.
type WeekCount struct {
	Week  string `json:"week"`
	Count int    `json:"count"`
}

// MonthCount is the number of tasks registered in one calendar month.
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// Summary is the aggregate view of a task set.
type Summary struct {
	TotalTasks            int            `json:"totalTasks"`
	AutomationLevelCounts map[string]int `json:"automationLevelCounts"`
	PriorityCounts        map[string]int `json:"priorityCounts"`
	ConfidentialityCounts map[string]int `json:"confidentialityCounts"`
	AverageTargetTime     *float64       `json:"averageTargetTime"`
	WeeklyTrend           []WeekCount    `json:"weeklyTrend"`
	MonthlyTrend          []MonthCount   `json:"monthlyTrend"`
}

// Summarize aggregates tasks with time buckets in UTC.
func Summarize(tasks []task.Task) Summary {
	return SummarizeIn(tasks, time.UTC)
}

// SummarizeIn aggregates tasks with week and month buckets computed in loc.
// Tasks without a creation time are counted but left out of both trends.
func SummarizeIn(tasks []task.Task, loc *time.Location) Summary {
	if loc == nil {
		loc = time.UTC
	}
	s := Summary{
		TotalTasks:            len(tasks),
		AutomationLevelCounts: zeroCounts(task.AutomationLevels),
		PriorityCounts:        zeroCounts(task.Levels),
		ConfidentialityCounts: zeroCounts(task.Levels),
		WeeklyTrend:           []WeekCount{},
		MonthlyTrend:          []MonthCount{},
	}

	var totalTarget float64
	var targetCount int
	weekly := make(map[string]int)
	monthly := make(map[string]int)

	for _, t := range tasks {
		if t.AutomationLevel != nil {
			increment(s.AutomationLevelCounts, string(*t.AutomationLevel))
		}
		if t.Priority != nil {
			increment(s.PriorityCounts, string(*t.Priority))
		}
		if t.Confidentiality != nil {
			increment(s.ConfidentialityCounts, string(*t.Confidentiality))
		}
		if t.TargetTime != nil && *t.TargetTime > 0 {
			totalTarget += float64(*t.TargetTime)
			targetCount++
		}
		if t.CreatedAt.IsZero() {
			continue
		}
		created := t.CreatedAt.In(loc)
		weekly[WeekKey(created)]++
		monthly[MonthKey(created)]++
	}

	if targetCount > 0 {
		avg := totalTarget / float64(targetCount)
		s.AverageTargetTime = &avg
	}
	for _, k := range sortedKeys(weekly) {
		s.WeeklyTrend = append(s.WeeklyTrend, WeekCount{Week: k, Count: weekly[k]})
	}
	for _, k := range sortedKeys(monthly) {
		s.MonthlyTrend = append(s.MonthlyTrend, MonthCount{Month: k, Count: monthly[k]})
	}
	return s
}

// WeekKey formats t as an ISO-8601 week, "YYYY-Www". The year is the ISO
// week-year, so late-December dates can belong to week 1 of the next year.
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// MonthKey formats t as "YYYY-MM".
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

func zeroCounts[T ~string](keys []T) map[string]int {
	m := make(map[string]int, len(keys))
	for _, k := range keys {
		m[string(k)] = 0
	}
	return m
}

// increment bumps only keys that were initialized.
func increment(m map[string]int, key string) {
	if _, ok := m[key]; ok {
		m[key]++
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
