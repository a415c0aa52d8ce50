package graph

import (
	"fmt"
	"sort"
	"strings"
)

// DetectCycles walks the dependent edges depth-first with an explicit stack
// and reports the cycle closed by every back edge it meets. Each cycle is
// listed once, starting at the task the back edge returns to.
func (s *Snapshot) DetectCycles() [][]string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	type frame struct {
		id   string
		next int
	}

	color := map[string]int{}
	seen := map[string]bool{}
	var cycles [][]string

	for _, root := range s.Tasks {
		if color[root.ID] != white {
			continue
		}
		color[root.ID] = gray
		stack := []frame{{id: root.ID}}
		path := []string{root.ID}
		pos := map[string]int{root.ID: 0}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			out := s.dependents[top.id]
			if top.next < len(out) {
				n := s.Edges[out[top.next]].DependentID
				top.next++
				switch color[n] {
				case white:
					color[n] = gray
					pos[n] = len(path)
					path = append(path, n)
					stack = append(stack, frame{id: n})
				case gray:
					cycle := append([]string(nil), path[pos[n]:]...)
					if key := cycleKey(cycle); !seen[key] {
						seen[key] = true
						cycles = append(cycles, cycle)
					}
				}
				continue
			}
			color[top.id] = black
			delete(pos, top.id)
			path = path[:len(path)-1]
			stack = stack[:len(stack)-1]
		}
	}
	return cycles
}

// cycleKey identifies a cycle independent of where it was entered.
func cycleKey(cycle []string) string {
	start := 0
	for i, id := range cycle {
		if id < cycle[start] {
			start = i
		}
	}
	rotated := append(append([]string(nil), cycle[start:]...), cycle[:start]...)
	return strings.Join(rotated, "\x00")
}

// Report is the outcome of a whole-graph validation.
type Report struct {
	Valid  bool       `json:"valid"`
	Issues []string   `json:"issues"`
	Cycles [][]string `json:"cycles"`
}

// Validate combines cycle detection with structural checks on every active
// edge: self-references, dangling task references, cross-project edges and
// duplicated pairs. Problems are described, never returned as errors.
func (s *Snapshot) Validate() Report {
	r := Report{Issues: []string{}, Cycles: s.DetectCycles()}
	if len(r.Cycles) > 0 {
		r.Issues = append(r.Issues, fmt.Sprintf("found %d circular dependency cycle(s)", len(r.Cycles)))
	}

	pairs := map[[2]string]int{}
	for _, e := range s.Edges {
		if e.DependentID == e.PrerequisiteID {
			r.Issues = append(r.Issues, fmt.Sprintf("dependency %s is a self-reference on task %s", e.ID, e.DependentID))
		}
		for _, id := range []string{e.PrerequisiteID, e.DependentID} {
			if s.HasTask(id) {
				continue
			}
			if ft, ok := s.Foreign[id]; ok {
				r.Issues = append(r.Issues, fmt.Sprintf("dependency %s is cross-project: task %s belongs to project %s", e.ID, id, ft.ProjectID))
			} else {
				r.Issues = append(r.Issues, fmt.Sprintf("dependency %s references missing task %s", e.ID, id))
			}
		}
		pairs[[2]string{e.DependentID, e.PrerequisiteID}]++
	}

	var dups []string
	for pair, n := range pairs {
		if n > 1 {
			dups = append(dups, fmt.Sprintf("tasks %s -> %s have %d active dependencies", pair[1], pair[0], n))
		}
	}
	sort.Strings(dups)
	r.Issues = append(r.Issues, dups...)

	r.Valid = len(r.Issues) == 0
	return r
}
