// Package cpm computes critical paths with the Critical Path Method and
// persists the resulting markers.
package cpm

import (
	"container/heap"
	"math"

	"github.com/zulandar/taskgraph/internal/graph"
	"github.com/zulandar/taskgraph/internal/models"
)

// Defaults used when Options leaves a field at zero.
const (
	DefaultTaskHours = 8.0
	DefaultEpsilon   = 0.01
)

// Options tunes a calculation.
type Options struct {
	DefaultHours float64 // duration of tasks without an estimate
	Epsilon      float64 // float below which a task is critical
}

func (o Options) withDefaults() Options {
	if o.DefaultHours <= 0 {
		o.DefaultHours = DefaultTaskHours
	}
	if o.Epsilon <= 0 {
		o.Epsilon = DefaultEpsilon
	}
	return o
}

// Times holds the schedule of one task, in hours from project start.
type Times struct {
	EarliestStart  float64 `json:"earliest_start"`
	EarliestFinish float64 `json:"earliest_finish"`
	LatestStart    float64 `json:"latest_start"`
	LatestFinish   float64 `json:"latest_finish"`
}

// Result is the outcome of one critical-path calculation. Results may be
// shared between callers and must be treated as read-only.
type Result struct {
	ProjectID            string                  `json:"project_id"`
	GraphVersion         int64                   `json:"graph_version"`
	Order                []string                `json:"order"`
	Omitted              []string                `json:"omitted"`
	Schedule             map[string]Times        `json:"schedule"`
	Float                map[string]float64      `json:"float"`
	CriticalTasks        []string                `json:"critical_tasks"`
	CriticalDependencies []models.TaskDependency `json:"critical_dependencies"`
	TotalDuration        float64                 `json:"total_duration"`
}

// IsCritical reports whether taskID lies on the critical path.
func (r *Result) IsCritical(taskID string) bool {
	for _, id := range r.CriticalTasks {
		if id == taskID {
			return true
		}
	}
	return false
}

// Calculate runs the forward and backward passes over the project tasks of
// s. Edges leaving the project are ignored. The snapshot must be acyclic:
// tasks caught in a cycle never become ready and are listed in Omitted
// without a schedule.
func Calculate(s *graph.Snapshot, opts Options) *Result {
	opts = opts.withDefaults()
	n := len(s.Tasks)
	r := &Result{
		ProjectID:            s.ProjectID,
		Order:                make([]string, 0, n),
		Omitted:              []string{},
		Schedule:             make(map[string]Times, n),
		Float:                make(map[string]float64, n),
		CriticalTasks:        []string{},
		CriticalDependencies: []models.TaskDependency{},
	}
	if n == 0 {
		return r
	}

	index := make(map[string]int, n)
	for i, t := range s.Tasks {
		index[t.ID] = i
	}
	duration := make([]float64, n)
	for i, t := range s.Tasks {
		duration[i] = opts.DefaultHours
		if t.EstimatedHours != nil {
			duration[i] = *t.EstimatedHours
		}
	}

	// in[i] and out[i] hold the in-project edges entering and leaving task i.
	in := make([][]models.TaskDependency, n)
	out := make([][]models.TaskDependency, n)
	for _, t := range s.Tasks {
		for _, e := range s.PrerequisiteEdges(t.ID) {
			if p, ok := index[e.PrerequisiteID]; ok {
				in[index[t.ID]] = append(in[index[t.ID]], e)
				out[p] = append(out[p], e)
			}
		}
	}

	order := topoOrder(n, in, out, index)
	placed := make([]bool, n)
	for _, i := range order {
		placed[i] = true
		r.Order = append(r.Order, s.Tasks[i].ID)
	}
	for i, t := range s.Tasks {
		if !placed[i] {
			r.Omitted = append(r.Omitted, t.ID)
		}
	}

	es := make([]float64, n)
	ef := make([]float64, n)
	for _, i := range order {
		start := 0.0
		for _, e := range in[i] {
			if p := index[e.PrerequisiteID]; placed[p] {
				start = math.Max(start, ef[p]+float64(e.LagHours))
			}
		}
		es[i] = start
		ef[i] = start + duration[i]
		r.TotalDuration = math.Max(r.TotalDuration, ef[i])
	}

	ls := make([]float64, n)
	lf := make([]float64, n)
	for k := len(order) - 1; k >= 0; k-- {
		i := order[k]
		finish := math.Inf(1)
		for _, e := range out[i] {
			if d := index[e.DependentID]; placed[d] {
				finish = math.Min(finish, ls[d]-float64(e.LagHours))
			}
		}
		if math.IsInf(finish, 1) {
			finish = r.TotalDuration
		}
		lf[i] = finish
		ls[i] = finish - duration[i]
	}

	critical := make([]bool, n)
	for _, i := range order {
		id := s.Tasks[i].ID
		r.Schedule[id] = Times{EarliestStart: es[i], EarliestFinish: ef[i], LatestStart: ls[i], LatestFinish: lf[i]}
		f := ls[i] - es[i]
		r.Float[id] = f
		if math.Abs(f) < opts.Epsilon {
			critical[i] = true
			r.CriticalTasks = append(r.CriticalTasks, id)
		}
	}
	for _, e := range s.Edges {
		d, okD := index[e.DependentID]
		p, okP := index[e.PrerequisiteID]
		if okD && okP && critical[d] && critical[p] {
			r.CriticalDependencies = append(r.CriticalDependencies, e)
		}
	}
	return r
}

// topoOrder is Kahn's algorithm with a min-heap ready queue, so ties are
// broken by task ID and the order is deterministic.
func topoOrder(n int, in, out [][]models.TaskDependency, index map[string]int) []int {
	indeg := make([]int, n)
	for i := range in {
		indeg[i] = len(in[i])
	}
	ready := &indexHeap{}
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			*ready = append(*ready, i)
		}
	}
	heap.Init(ready)

	order := make([]int, 0, n)
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		order = append(order, i)
		for _, e := range out[i] {
			d := index[e.DependentID]
			indeg[d]--
			if indeg[d] == 0 {
				heap.Push(ready, d)
			}
		}
	}
	return order
}

// indexHeap orders task indices; tasks are sorted by ID, so the smallest
// index is the smallest ID.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	v := old[len(old)-1]
	*h = old[:len(old)-1]
	return v
}
