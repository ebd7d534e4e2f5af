// Package depgraph finds the critical path of a task dependency graph and
// renders the graph as a Mermaid flowchart.
//
// The critical path is the longest chain of dependencies by node count,
// following edges from prerequisite to dependent. The search is a memoized
// depth-first traversal; a neighbor that is already on the current path
// closes a cycle and is not followed, so the chain ends at the current node.
// Cycles therefore never fail the analysis, but they are reported through
// Analysis.Cyclic and Analysis.BackEdges.
package depgraph

import (
	"fmt"
	"strings"

	"taskboard/pkg/task"
)

// Edge points from a prerequisite task to the task that depends on it.
type Edge struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Analysis is the result of a critical path search over one snapshot.
type Analysis struct {
	Tasks        []task.Task
	Edges        []Edge  // self-loops removed, input order preserved
	CriticalPath []int64 // prerequisite first
	BackEdges    []Edge  // edges that closed a cycle and were not followed
	Cyclic       bool

	critical map[Edge]bool
	onPath   map[int64]bool
}

type chain struct {
	length int
	path   []int64
}

// search holds the per-call state of the traversal.
type search struct {
	adj       map[int64][]int64
	memo      map[int64]chain
	visiting  map[int64]bool
	backEdges []Edge
}

// Analyze computes the critical path of tasks under deps. It never fails:
// edges naming unknown tasks are kept and traversed, self-loops are dropped.
func Analyze(tasks []task.Task, deps []task.Dependency) *Analysis {
	a := &Analysis{Tasks: tasks}
	adj := make(map[int64][]int64)
	for _, d := range deps {
		if d.TaskID == d.DependsOnTaskID {
			continue
		}
		a.Edges = append(a.Edges, Edge{From: d.DependsOnTaskID, To: d.TaskID})
		adj[d.DependsOnTaskID] = append(adj[d.DependsOnTaskID], d.TaskID)
	}

	s := &search{
		adj:      adj,
		memo:     make(map[int64]chain),
		visiting: make(map[int64]bool),
	}
	var best chain
	for _, t := range tasks {
		if c := s.longest(t.ID); c.length > best.length {
			best = c
		}
	}

	a.CriticalPath = best.path
	a.BackEdges = s.backEdges
	a.Cyclic = len(s.backEdges) > 0
	a.critical = make(map[Edge]bool, len(best.path))
	a.onPath = make(map[int64]bool, len(best.path))
	for i, id := range best.path {
		a.onPath[id] = true
		if i > 0 {
			a.critical[Edge{From: best.path[i-1], To: id}] = true
		}
	}
	return a
}

func (s *search) longest(node int64) chain {
	if c, ok := s.memo[node]; ok {
		return c
	}
	s.visiting[node] = true
	best := chain{length: 1, path: []int64{node}}
	for _, next := range s.adj[node] {
		if s.visiting[next] {
			s.backEdges = append(s.backEdges, Edge{From: node, To: next})
			continue
		}
		// strictly greater: the first neighbor wins ties
		if c := s.longest(next); c.length+1 > best.length {
			path := make([]int64, 0, c.length+1)
			path = append(path, node)
			best = chain{length: c.length + 1, path: append(path, c.path...)}
		}
	}
	delete(s.visiting, node)
	s.memo[node] = best
	return best
}

// Length is the node count of the critical path.
func (a *Analysis) Length() int {
	return len(a.CriticalPath)
}

// IsCriticalEdge reports whether from→to is consecutive on the critical path.
func (a *Analysis) IsCriticalEdge(from, to int64) bool {
	return a.critical[Edge{From: from, To: to}]
}

// IsCriticalNode reports whether id lies on the critical path.
func (a *Analysis) IsCriticalNode(id int64) bool {
	return a.onPath[id]
}

// CriticalEdges returns the edges of the critical path in path order.
func (a *Analysis) CriticalEdges() []Edge {
	var out []Edge
	for i := 1; i < len(a.CriticalPath); i++ {
		out = append(out, Edge{From: a.CriticalPath[i-1], To: a.CriticalPath[i]})
	}
	return out
}

const (
	emptyNode     = `Empty["タスクがまだ登録されていません"]`
	criticalClass = "classDef critical fill:#fee2e2,stroke:#dc2626,stroke-width:2px,color:#b91c1c;"
	criticalLink  = "stroke:#dc2626,stroke-width:3px;"
)

func nodeID(id int64) string {
	return fmt.Sprintf("T%d", id)
}

var labelEscaper = strings.NewReplacer(`"`, "#quot;", "\r\n", " ", "\n", " ", "\r", " ")

// Mermaid renders the graph as a top-down Mermaid flowchart with the
// critical path highlighted.
func (a *Analysis) Mermaid() string {
	if len(a.Tasks) == 0 {
		return "graph TD\n  " + emptyNode
	}
	lines := []string{"graph TD"}
	for _, t := range a.Tasks {
		label := labelEscaper.Replace(fmt.Sprintf("%d: %s", t.ID, t.TaskName))
		lines = append(lines, fmt.Sprintf(`  %s["%s"]`, nodeID(t.ID), label))
	}

	var linkStyles []string
	for i, e := range a.Edges {
		lines = append(lines, fmt.Sprintf("  %s --> %s", nodeID(e.From), nodeID(e.To)))
		if a.IsCriticalEdge(e.From, e.To) {
			linkStyles = append(linkStyles, fmt.Sprintf("  linkStyle %d %s", i, criticalLink))
		}
	}

	if len(a.CriticalPath) > 1 {
		ids := make([]string, len(a.CriticalPath))
		for i, id := range a.CriticalPath {
			ids[i] = nodeID(id)
		}
		lines = append(lines, "  "+criticalClass)
		lines = append(lines, fmt.Sprintf("  class %s critical;", strings.Join(ids, ", ")))
	}
	lines = append(lines, linkStyles...)
	return strings.Join(lines, "\n")
}

// BuildDiagram analyzes tasks and deps and returns the Mermaid description.
func BuildDiagram(tasks []task.Task, deps []task.Dependency) string {
	return Analyze(tasks, deps).Mermaid()
}
