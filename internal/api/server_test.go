package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/testutil"
	"taskboard/pkg/activity"
	"taskboard/pkg/memo"
	"taskboard/pkg/task"
)

type fixture struct {
	server *Server
	bus    *activity.Bus
	logs   *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, func(s task.Store) task.Store { return s })
}

// newFixtureWith lets a test wrap the task store, e.g. to inject failures.
func newFixtureWith(t *testing.T, wrap func(task.Store) task.Store) *fixture {
	t.Helper()
	ctx := context.Background()
	database := testutil.NewTestDB(t)
	sqliteTasks := task.NewSQLiteStore(database)
	memos := memo.NewSQLiteStore(database)
	require.NoError(t, sqliteTasks.EnsureTable(ctx))
	require.NoError(t, memos.EnsureTable(ctx))
	tasks := wrap(sqliteTasks)

	logs := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(logs)
	logger.SetFormatter(&logrus.JSONFormatter{})

	bus := activity.NewBus(0)
	s := New(tasks, memos, bus, Options{
		Backend: "sqlite",
		Logger:  logger,
		Now:     func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) },
	})
	return &fixture{server: s, bus: bus, logs: logs}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (f *fixture) createTask(t *testing.T, body map[string]any) int64 {
	t.Helper()
	w := f.do(t, "POST", "/api/tasks", body)
	require.Equal(t, 201, w.Code, w.Body.String())
	return decode[struct {
		ID int64 `json:"id"`
	}](t, w).ID
}

func TestHealthAndStatus(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/health", nil)
	assert.Equal(t, 200, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	f.createTask(t, map[string]any{"task_name": "a"})
	w = f.do(t, "GET", "/api/status", nil)
	require.Equal(t, 200, w.Code)
	status := decode[map[string]any](t, w)
	assert.EqualValues(t, 1, status["tasks"])
	assert.Equal(t, "sqlite", status["backend"])
}

func TestRequestIDIsPropagated(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Contains(t, f.logs.String(), `"request_id":"abc-123"`)
	assert.Contains(t, f.logs.String(), `"path":"/health"`)
}

func TestTaskCRUD(t *testing.T) {
	f := newFixture(t)
	id := f.createTask(t, map[string]any{
		"task_name":        "請求書発行",
		"task_goal":        "月末処理",
		"automation_level": "◎",
	})

	w := f.do(t, "GET", "/api/tasks/"+itoa(id), nil)
	require.Equal(t, 200, w.Code)
	got := decode[struct {
		Task task.Task `json:"task"`
	}](t, w).Task
	assert.Equal(t, "請求書発行", got.TaskName)
	assert.Equal(t, task.LevelMedium, *got.Priority)

	w = f.do(t, "PUT", "/api/tasks/"+itoa(id), map[string]any{"priority": "高", "task_goal": nil})
	require.Equal(t, 200, w.Code, w.Body.String())
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = f.do(t, "GET", "/api/tasks/"+itoa(id), nil)
	got = decode[struct {
		Task task.Task `json:"task"`
	}](t, w).Task
	assert.Equal(t, task.LevelHigh, *got.Priority)
	assert.Nil(t, got.TaskGoal)

	w = f.do(t, "DELETE", "/api/tasks/"+itoa(id), nil)
	require.Equal(t, 200, w.Code)

	w = f.do(t, "GET", "/api/tasks/"+itoa(id), nil)
	assert.Equal(t, 404, w.Code)
	assert.JSONEq(t, `{"error":"Task not found"}`, w.Body.String())

	types := make([]string, 0)
	for _, e := range f.bus.Recent(0) {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{activity.TaskCreated, activity.TaskUpdated, activity.TaskDeleted}, types)
}

func TestTaskCreateValidation(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "POST", "/api/tasks", map[string]any{"task_goal": "no name"})
	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "task_name")

	w = f.do(t, "POST", "/api/tasks", map[string]any{"task_name": "x", "priority": "最優先"})
	assert.Equal(t, 400, w.Code)

	req := httptest.NewRequest("POST", "/api/tasks", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	assert.Equal(t, 400, rec.Code)
}

func TestTaskUpdateErrors(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "PUT", "/api/tasks/77", map[string]any{"task_name": "x"})
	assert.Equal(t, 404, w.Code)

	w = f.do(t, "PUT", "/api/tasks/abc", map[string]any{"task_name": "x"})
	assert.Equal(t, 400, w.Code)

	id := f.createTask(t, map[string]any{"task_name": "x"})
	w = f.do(t, "PUT", "/api/tasks/"+itoa(id), map[string]any{"dependsOn": "2"})
	assert.Equal(t, 400, w.Code)
	w = f.do(t, "PUT", "/api/tasks/"+itoa(id), map[string]any{"unknown_column": "2"})
	assert.Equal(t, 400, w.Code)
}

func TestTaskListFilters(t *testing.T) {
	f := newFixture(t)
	f.createTask(t, map[string]any{"task_name": "Invoice", "priority": "高"})
	f.createTask(t, map[string]any{"task_name": "Payroll"})

	w := f.do(t, "GET", "/api/tasks?q=invoice", nil)
	require.Equal(t, 200, w.Code)
	list := decode[struct {
		Tasks []task.Task `json:"tasks"`
	}](t, w).Tasks
	require.Len(t, list, 1)
	assert.Equal(t, "Invoice", list[0].TaskName)

	w = f.do(t, "GET", "/api/tasks?priority=all&sortField=id&sortOrder=asc", nil)
	list = decode[struct {
		Tasks []task.Task `json:"tasks"`
	}](t, w).Tasks
	require.Len(t, list, 2)
	assert.Equal(t, "Invoice", list[0].TaskName)

	w = f.do(t, "GET", "/api/tasks?endDate=2000-01-01", nil)
	assert.JSONEq(t, `{"tasks":[]}`, w.Body.String())

	w = f.do(t, "GET", "/api/tasks?startDate=zzzz-qq", nil)
	assert.Equal(t, 400, w.Code)
}

func TestDependenciesAndDiagram(t *testing.T) {
	f := newFixture(t)
	a := f.createTask(t, map[string]any{"task_name": "設計"})
	b := f.createTask(t, map[string]any{"task_name": "実装", "dependsOn": []int64{a}})
	c := f.createTask(t, map[string]any{"task_name": "テスト"})

	w := f.do(t, "PUT", "/api/tasks/"+itoa(c), map[string]any{"dependsOn": []int64{b, c}})
	require.Equal(t, 200, w.Code, w.Body.String())

	w = f.do(t, "GET", "/api/tasks/"+itoa(c)+"/dependencies", nil)
	require.Equal(t, 200, w.Code)
	assert.JSONEq(t, `{"taskId":`+itoa(c)+`,"dependsOn":[`+itoa(b)+`]}`, w.Body.String())

	w = f.do(t, "GET", "/api/dependencies", nil)
	require.Equal(t, 200, w.Code)
	graph := decode[struct {
		Tasks        []task.Task       `json:"tasks"`
		Dependencies []task.Dependency `json:"dependencies"`
	}](t, w)
	assert.Len(t, graph.Tasks, 3)
	assert.Len(t, graph.Dependencies, 2)

	w = f.do(t, "GET", "/api/dependencies/diagram", nil)
	require.Equal(t, 200, w.Code)
	diagram := decode[struct {
		Definition   string  `json:"definition"`
		CriticalPath []int64 `json:"criticalPath"`
		Cyclic       bool    `json:"cyclic"`
	}](t, w)
	assert.Equal(t, []int64{a, b, c}, diagram.CriticalPath)
	assert.False(t, diagram.Cyclic)
	assert.True(t, strings.HasPrefix(diagram.Definition, "graph TD"))
	assert.Contains(t, diagram.Definition, "class T"+itoa(a)+", T"+itoa(b)+", T"+itoa(c)+" critical;")

	w = f.do(t, "GET", "/api/dependencies/diagram?format=mmd", nil)
	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "task-dependency.mmd")
	assert.Equal(t, diagram.Definition, w.Body.String())

	w = f.do(t, "PUT", "/api/tasks/999/dependencies", map[string]any{"dependsOn": []int64{a}})
	assert.Equal(t, 404, w.Code)

	w = f.do(t, "PUT", "/api/tasks/"+itoa(c)+"/dependencies", map[string]any{"dependsOn": []int64{}})
	require.Equal(t, 200, w.Code)
	w = f.do(t, "GET", "/api/dependencies/diagram", nil)
	diagram.CriticalPath = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &diagram))
	assert.Equal(t, []int64{a, b}, diagram.CriticalPath)
}

func TestDiagramCycleIsReported(t *testing.T) {
	f := newFixture(t)
	a := f.createTask(t, map[string]any{"task_name": "a"})
	b := f.createTask(t, map[string]any{"task_name": "b", "dependsOn": []int64{a}})
	w := f.do(t, "PUT", "/api/tasks/"+itoa(a)+"/dependencies", map[string]any{"dependsOn": []int64{b}})
	require.Equal(t, 200, w.Code)

	w = f.do(t, "GET", "/api/dependencies/diagram", nil)
	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"cyclic":true`)
	assert.Contains(t, f.logs.String(), "cycle")
}

func TestDiagramEmpty(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "GET", "/api/dependencies/diagram", nil)
	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"criticalPath":[]`)
	assert.Contains(t, w.Body.String(), "Empty[")
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	f.createTask(t, map[string]any{"task_name": "a", "automation_level": "◎", "target_time": 10})
	f.createTask(t, map[string]any{"task_name": "b", "automation_level": "×", "target_time": 20, "confidentiality": "高"})

	w := f.do(t, "GET", "/api/dashboard", nil)
	require.Equal(t, 200, w.Code)
	sum := decode[map[string]any](t, w)
	assert.EqualValues(t, 2, sum["totalTasks"])
	assert.EqualValues(t, 15, sum["averageTargetTime"])
	assert.EqualValues(t, 1, sum["automationLevelCounts"].(map[string]any)["◎"])
	assert.EqualValues(t, 0, sum["automationLevelCounts"].(map[string]any)["△"])
	assert.EqualValues(t, 2, sum["priorityCounts"].(map[string]any)["中"])
	assert.Len(t, sum["weeklyTrend"], 1)
}

func TestQuickMemos(t *testing.T) {
	f := newFixture(t)
	id := f.createTask(t, map[string]any{"task_name": "a"})

	w := f.do(t, "GET", "/api/quick-memos", nil)
	assert.JSONEq(t, `{"memos":[]}`, w.Body.String())

	w = f.do(t, "POST", "/api/quick-memos", map[string]any{"taskId": id, "taskName": "a", "memoContent": "先方に確認"})
	require.Equal(t, 201, w.Code, w.Body.String())
	res := decode[struct {
		MemoID int64       `json:"memoId"`
		Memos  []memo.Memo `json:"memos"`
	}](t, w)
	assert.Positive(t, res.MemoID)
	require.Len(t, res.Memos, 1)
	assert.Equal(t, "先方に確認", res.Memos[0].MemoContent)

	w = f.do(t, "POST", "/api/quick-memos", map[string]any{"memoContent": ""})
	assert.Equal(t, 400, w.Code)
	w = f.do(t, "POST", "/api/quick-memos", map[string]any{"memoContent": "x", "taskName": ""})
	assert.Equal(t, 400, w.Code)

	// memos of a deleted task go with it
	f.do(t, "DELETE", "/api/tasks/"+itoa(id), nil)
	w = f.do(t, "GET", "/api/quick-memos", nil)
	assert.JSONEq(t, `{"memos":[]}`, w.Body.String())
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	f.createTask(t, map[string]any{"task_name": "a, b"})

	w := f.do(t, "GET", "/api/export", nil)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "tasks.csv")
	assert.True(t, strings.HasPrefix(w.Body.String(), "id,task_name,"))
	assert.Contains(t, w.Body.String(), `"a, b"`)

	w = f.do(t, "GET", "/api/export?format=json", nil)
	require.Equal(t, 200, w.Code)
	var tasks []task.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tasks))
	assert.Len(t, tasks, 1)

	w = f.do(t, "GET", "/api/export?format=xlsx", nil)
	assert.Equal(t, 400, w.Code)
}

func TestEventList(t *testing.T) {
	f := newFixture(t)
	first := f.createTask(t, map[string]any{"task_name": "a"})
	f.createTask(t, map[string]any{"task_name": "b"})

	w := f.do(t, "GET", "/api/events", nil)
	events := decode[struct {
		Events []activity.Event `json:"events"`
	}](t, w).Events
	require.Len(t, events, 2)
	assert.Equal(t, first, events[0].TaskID)

	w = f.do(t, "GET", "/api/events?after="+events[0].ID, nil)
	after := decode[struct {
		Events []activity.Event `json:"events"`
	}](t, w).Events
	require.Len(t, after, 1)
	assert.Equal(t, events[1].ID, after[0].ID)
}

// openStream connects to the SSE endpoint and waits until it is subscribed.
func (f *fixture) openStream(t *testing.T, ctx context.Context, ts *httptest.Server, query string) *bufio.Reader {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/events/stream"+query, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return f.bus.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	return bufio.NewReader(resp.Body)
}

// readEvent returns the next event frame, skipping heartbeats.
func readEvent(t *testing.T, reader *bufio.Reader) activity.Event {
	t.Helper()
	var data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(strings.TrimSpace(line), "data: ")
		}
	}
	var e activity.Event
	require.NoError(t, json.Unmarshal([]byte(data), &e))
	return e
}

func TestEventStream(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reader := f.openStream(t, ctx, ts, "")
	f.bus.Publish(ctx, activity.TaskCreated, 9, map[string]any{"task_name": "x"})

	e := readEvent(t, reader)
	assert.Equal(t, activity.TaskCreated, e.Type)
	assert.Equal(t, int64(9), e.TaskID)
}

func TestEventStreamReplaysAfterKnownID(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	first := f.bus.Publish(ctx, activity.TaskCreated, 1, nil)
	second := f.bus.Publish(ctx, activity.TaskCreated, 2, nil)
	third := f.bus.Publish(ctx, activity.TaskCreated, 3, nil)

	reader := f.openStream(t, ctx, ts, "?after="+first.ID)
	assert.Equal(t, second.ID, readEvent(t, reader).ID)
	assert.Equal(t, third.ID, readEvent(t, reader).ID)

	live := f.bus.Publish(ctx, activity.TaskUpdated, 3, nil)
	assert.Equal(t, live.ID, readEvent(t, reader).ID, "replayed events are not sent twice")
}

func TestEventStreamUnknownAfterStillDeliversLiveEvents(t *testing.T) {
	for _, after := range []string{"latest", "ffffffff-ffff-7fff-bfff-ffffffffffff"} {
		t.Run(after, func(t *testing.T) {
			f := newFixture(t)
			ts := httptest.NewServer(f.server)
			defer ts.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			reader := f.openStream(t, ctx, ts, "?after="+after)

			published := f.bus.Publish(ctx, activity.TaskCreated, 9, nil)
			e := readEvent(t, reader)
			assert.Equal(t, published.ID, e.ID)
		})
	}
}

func TestEventStreamUnknownAfterReplaysRetainedHistory(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	old := f.bus.Publish(ctx, activity.TaskCreated, 1, nil)

	reader := f.openStream(t, ctx, ts, "?after=expired-id")
	assert.Equal(t, old.ID, readEvent(t, reader).ID)

	live := f.bus.Publish(ctx, activity.TaskDeleted, 1, nil)
	assert.Equal(t, live.ID, readEvent(t, reader).ID)
}

func TestEventSocket(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return f.bus.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	f.bus.Publish(ctx, activity.MemoCreated, 0, map[string]any{"memo_id": 1})

	var e activity.Event
	require.NoError(t, wsjson.Read(ctx, conn, &e))
	assert.Equal(t, activity.MemoCreated, e.Type)

	conn.Close(websocket.StatusNormalClosure, "")
	assert.Eventually(t, func() bool { return f.bus.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestTaskUpdateWithOnlyIgnoredKeysIsNoop(t *testing.T) {
	f := newFixture(t)
	id := f.createTask(t, map[string]any{"task_name": "a"})
	getTask := func() task.Task {
		return decode[struct {
			Task task.Task `json:"task"`
		}](t, f.do(t, "GET", "/api/tasks/"+itoa(id), nil)).Task
	}
	before := getTask()
	time.Sleep(2 * time.Millisecond)

	w := f.do(t, "PUT", "/api/tasks/"+itoa(id), map[string]any{"id": id, "created_at": "x", "updated_at": "y"})
	require.Equal(t, 200, w.Code, w.Body.String())

	assert.True(t, before.UpdatedAt.Equal(getTask().UpdatedAt), "updated_at must not move")
	for _, e := range f.bus.Recent(0) {
		assert.NotEqual(t, activity.TaskUpdated, e.Type)
	}

	w = f.do(t, "PUT", "/api/tasks/999", map[string]any{"id": 999})
	assert.Equal(t, 404, w.Code)
}

// failingDependencies is a task store whose SetDependencies always fails.
type failingDependencies struct {
	task.Store
}

func (failingDependencies) SetDependencies(context.Context, int64, []int64) error {
	return errors.New("disk full")
}

func TestTaskCreateRemovesTaskWhenDependenciesFail(t *testing.T) {
	f := newFixtureWith(t, func(s task.Store) task.Store { return failingDependencies{s} })

	w := f.do(t, "POST", "/api/tasks", map[string]any{"task_name": "a", "dependsOn": []int64{5}})
	assert.Equal(t, 500, w.Code)

	w = f.do(t, "GET", "/api/tasks", nil)
	tasks := decode[struct {
		Tasks []task.Task `json:"tasks"`
	}](t, w).Tasks
	assert.Empty(t, tasks)
	assert.Empty(t, f.bus.Recent(0), "nothing is announced for a failed create")
}

func TestWriteJSONLogsEncodeFailureWithRequestID(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), requestIDKey, "rid-42"))
	w := httptest.NewRecorder()

	f.server.writeJSON(w, req, 200, map[string]any{"bad": func() {}})

	assert.Contains(t, f.logs.String(), `"msg":"write json"`)
	assert.Contains(t, f.logs.String(), `"request_id":"rid-42"`)
}
