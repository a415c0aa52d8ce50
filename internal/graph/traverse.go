package graph

import (
	"sort"

	"github.com/zulandar/taskgraph/internal/models"
)

// Policy decides when a dependency counts as satisfied.
type Policy struct {
	// SoftProgressThreshold is the prerequisite progress (percent) a soft
	// dependency waits for. Zero means any progress at all.
	SoftProgressThreshold int
}

// Satisfied reports whether d no longer holds back its dependent. Hard types
// need the prerequisite complete; soft types need its progress to exceed the
// threshold. Inactive edges and edges to unknown tasks never block.
func (p Policy) Satisfied(d models.TaskDependency, prereq *models.Task) bool {
	if !d.Active || prereq == nil {
		return true
	}
	if prereq.Completed {
		return true
	}
	if d.Type.Hard() {
		return false
	}
	return prereq.Progress > p.SoftProgressThreshold
}

// BlockingDependencies returns the direct prerequisite edges of taskID that
// are not yet satisfied.
func (s *Snapshot) BlockingDependencies(taskID string, p Policy) []models.TaskDependency {
	var out []models.TaskDependency
	for _, d := range s.PrerequisiteEdges(taskID) {
		prereq, _ := s.Task(d.PrerequisiteID)
		if !p.Satisfied(d, prereq) {
			out = append(out, d)
		}
	}
	return out
}

// CanStart reports whether every direct prerequisite of taskID is satisfied.
func (s *Snapshot) CanStart(taskID string, p Policy) bool {
	return len(s.BlockingDependencies(taskID, p)) == 0
}

// AllPrerequisites returns every task taskID transitively depends on,
// sorted by ID. The walk keeps a visited set, so it terminates on cycles.
func (s *Snapshot) AllPrerequisites(taskID string) []string {
	return s.closure(taskID, s.prerequisiteIDs)
}

// AllDependents returns every task that transitively depends on taskID,
// sorted by ID.
func (s *Snapshot) AllDependents(taskID string) []string {
	return s.closure(taskID, s.dependentIDs)
}

// closure runs an iterative depth-first walk from start along next.
func (s *Snapshot) closure(start string, next func(string) []string) []string {
	visited := map[string]bool{start: true}
	found := map[string]bool{}
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range next(cur) {
			found[n] = true
			if !visited[n] {
				visited[n] = true
				stack = append(stack, n)
			}
		}
	}
	out := make([]string, 0, len(found))
	for id := range found {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// WouldCreateCycle reports whether adding "dependent depends on prerequisite"
// closes a cycle: that is the case when prerequisite already transitively
// depends on dependent.
func (s *Snapshot) WouldCreateCycle(dependentID, prerequisiteID string) bool {
	if dependentID == prerequisiteID {
		return true
	}
	for _, id := range s.AllPrerequisites(prerequisiteID) {
		if id == dependentID {
			return true
		}
	}
	return false
}

// ShortestPath returns the shortest chain of dependent edges leading from
// one task to another, both ends included. It is empty when to is not
// reachable and [from] when from == to.
func (s *Snapshot) ShortestPath(from, to string) []string {
	if from == to {
		return []string{from}
	}
	pred := map[string]string{}
	visited := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range s.dependentIDs(cur) {
			if visited[n] {
				continue
			}
			visited[n] = true
			pred[n] = cur
			if n == to {
				path := []string{to}
				for node := cur; ; node = pred[node] {
					path = append(path, node)
					if node == from {
						break
					}
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path
			}
			queue = append(queue, n)
		}
	}
	return []string{}
}

// MostConnected returns task IDs ranked by in-degree plus out-degree,
// highest first, ties broken by ID. A non-positive limit returns all tasks.
func (s *Snapshot) MostConnected(limit int) []string {
	ids := make([]string, len(s.Tasks))
	for i, t := range s.Tasks {
		ids[i] = t.ID
	}
	sort.SliceStable(ids, func(a, b int) bool {
		da, db := s.Degree(ids[a]), s.Degree(ids[b])
		if da != db {
			return da > db
		}
		return ids[a] < ids[b]
	})
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids
}
