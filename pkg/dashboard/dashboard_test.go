package dashboard

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/pkg/task"
)

func ptr[T any](v T) *T { return &v }

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSummarize_TrendExample(t *testing.T) {
	tasks := []task.Task{
		{ID: 1, CreatedAt: day("2024-01-01")},
		{ID: 2, CreatedAt: day("2024-01-08")},
	}

	s := Summarize(tasks)

	assert.Equal(t, []WeekCount{{Week: "2024-W01", Count: 1}, {Week: "2024-W02", Count: 1}}, s.WeeklyTrend)
	assert.Equal(t, []MonthCount{{Month: "2024-01", Count: 2}}, s.MonthlyTrend)
	assert.Equal(t, 2, s.TotalTasks)
}

func TestSummarize_CategoricalCounts(t *testing.T) {
	tasks := []task.Task{
		{AutomationLevel: ptr(task.AutomationFull), Priority: ptr(task.LevelHigh), Confidentiality: ptr(task.LevelLow)},
		{AutomationLevel: ptr(task.AutomationFull), Priority: ptr(task.LevelMedium)},
		{AutomationLevel: ptr(task.AutomationLevel("?")), Priority: ptr(task.Level("urgent"))},
		{},
	}

	s := Summarize(tasks)

	assert.Equal(t, map[string]int{"◎": 2, "△": 0, "×": 0}, s.AutomationLevelCounts)
	assert.Equal(t, map[string]int{"高": 1, "中": 1, "低": 0}, s.PriorityCounts)
	assert.Equal(t, map[string]int{"高": 0, "中": 0, "低": 1}, s.ConfidentialityCounts)

	sum := 0
	for _, n := range s.AutomationLevelCounts {
		sum += n
	}
	assert.LessOrEqual(t, sum, s.TotalTasks)
}

func TestSummarize_CountsEqualTotalWhenAllRecognized(t *testing.T) {
	tasks := []task.Task{
		{AutomationLevel: ptr(task.AutomationFull)},
		{AutomationLevel: ptr(task.AutomationPartial)},
		{AutomationLevel: ptr(task.AutomationNone)},
	}

	s := Summarize(tasks)

	sum := 0
	for _, n := range s.AutomationLevelCounts {
		sum += n
	}
	assert.Equal(t, s.TotalTasks, sum)
}

func TestSummarize_AverageTargetTime(t *testing.T) {
	s := Summarize([]task.Task{{}, {TargetTime: ptr(int64(0))}})
	assert.Nil(t, s.AverageTargetTime)

	s = Summarize([]task.Task{
		{TargetTime: ptr(int64(10))},
		{TargetTime: ptr(int64(20))},
		{TargetTime: ptr(int64(-5))},
		{},
	})
	require.NotNil(t, s.AverageTargetTime)
	assert.InDelta(t, 15.0, *s.AverageTargetTime, 1e-9)
}

func TestSummarize_EmptyInput(t *testing.T) {
	s := Summarize(nil)

	assert.Equal(t, 0, s.TotalTasks)
	assert.Nil(t, s.AverageTargetTime)
	assert.Empty(t, s.WeeklyTrend)
	assert.Empty(t, s.MonthlyTrend)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"totalTasks": 0,
		"automationLevelCounts": {"◎": 0, "△": 0, "×": 0},
		"priorityCounts": {"高": 0, "中": 0, "低": 0},
		"confidentialityCounts": {"高": 0, "中": 0, "低": 0},
		"averageTargetTime": null,
		"weeklyTrend": [],
		"monthlyTrend": []
	}`, string(raw))
}

func TestSummarize_MissingCreatedAtExcludedFromTrends(t *testing.T) {
	s := Summarize([]task.Task{{ID: 1}, {ID: 2, CreatedAt: day("2024-03-05")}})

	assert.Equal(t, 2, s.TotalTasks)
	assert.Equal(t, []WeekCount{{Week: "2024-W10", Count: 1}}, s.WeeklyTrend)
	assert.Equal(t, []MonthCount{{Month: "2024-03", Count: 1}}, s.MonthlyTrend)
}

func TestSummarize_TrendsSortedAscending(t *testing.T) {
	s := Summarize([]task.Task{
		{CreatedAt: day("2024-05-20")},
		{CreatedAt: day("2023-11-02")},
		{CreatedAt: day("2024-02-14")},
	})

	require.Len(t, s.MonthlyTrend, 3)
	assert.Equal(t, "2023-11", s.MonthlyTrend[0].Month)
	assert.Equal(t, "2024-02", s.MonthlyTrend[1].Month)
	assert.Equal(t, "2024-05", s.MonthlyTrend[2].Month)
	for i := 1; i < len(s.WeeklyTrend); i++ {
		assert.Less(t, s.WeeklyTrend[i-1].Week, s.WeeklyTrend[i].Week)
	}
}

func TestWeekKey_ISOYearBoundaries(t *testing.T) {
	// 2024-12-30 is a Monday whose Thursday falls in 2025
	assert.Equal(t, "2025-W01", WeekKey(day("2024-12-30")))
	// 2021-01-03 is a Sunday in the last ISO week of 2020
	assert.Equal(t, "2020-W53", WeekKey(day("2021-01-03")))
	assert.Equal(t, "2021-W01", WeekKey(day("2021-01-04")))
}

func TestSummarizeIn_UsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	// 2024-01-31 20:00 UTC is already February in Tokyo
	created := time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC)

	utc := Summarize([]task.Task{{CreatedAt: created}})
	jst := SummarizeIn([]task.Task{{CreatedAt: created}}, tokyo)

	assert.Equal(t, "2024-01", utc.MonthlyTrend[0].Month)
	assert.Equal(t, "2024-02", jst.MonthlyTrend[0].Month)
}
