package graph

import (
	"fmt"
	"sort"

	"github.com/zulandar/taskgraph/internal/models"
	"gorm.io/gorm"
)

// Snapshot is a read-only view of one project's tasks and active edges.
// Tasks and edges are held in flat slices and referenced by index; the
// adjacency lists are built once at load time.
//
// It is safe for concurrent read access.
type Snapshot struct {
	ProjectID string
	Tasks     []models.Task           // sorted by ID
	Edges     []models.TaskDependency // active edges, sorted by ID

	// Foreign holds tasks referenced by project edges that belong to
	// another project. Edge endpoints found neither here nor in Tasks dangle.
	Foreign map[string]models.Task

	taskIndex    map[string]int
	dependents   map[string][]int // prerequisite ID -> edge indices
	prerequisite map[string][]int // dependent ID -> edge indices
}

// LoadSnapshot reads a project's tasks and active dependencies. Run it inside
// a transaction when the caller also writes based on what it read.
func LoadSnapshot(db *gorm.DB, projectID string) (*Snapshot, error) {
	var tasks []models.Task
	if err := db.Where("project_id = ?", projectID).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("graph: load tasks of %s: %w", projectID, err)
	}
	var edges []models.TaskDependency
	if err := db.Where("project_id = ? AND active = ?", projectID, true).Order("id ASC").Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("graph: load dependencies of %s: %w", projectID, err)
	}

	s := NewSnapshot(projectID, tasks, edges)

	var missing []string
	seen := map[string]bool{}
	for _, e := range s.Edges {
		for _, id := range []string{e.DependentID, e.PrerequisiteID} {
			if _, ok := s.taskIndex[id]; !ok && !seen[id] {
				seen[id] = true
				missing = append(missing, id)
			}
		}
	}
	if len(missing) > 0 {
		var foreign []models.Task
		if err := db.Where("id IN ?", missing).Find(&foreign).Error; err != nil {
			return nil, fmt.Errorf("graph: load foreign tasks of %s: %w", projectID, err)
		}
		for _, t := range foreign {
			s.Foreign[t.ID] = t
		}
	}
	return s, nil
}

// NewSnapshot builds the adjacency index over the given tasks and edges.
// Inactive edges are dropped.
func NewSnapshot(projectID string, tasks []models.Task, edges []models.TaskDependency) *Snapshot {
	s := &Snapshot{
		ProjectID:    projectID,
		Tasks:        append([]models.Task(nil), tasks...),
		Foreign:      map[string]models.Task{},
		taskIndex:    make(map[string]int, len(tasks)),
		dependents:   map[string][]int{},
		prerequisite: map[string][]int{},
	}
	sort.Slice(s.Tasks, func(i, j int) bool { return s.Tasks[i].ID < s.Tasks[j].ID })
	for i, t := range s.Tasks {
		s.taskIndex[t.ID] = i
	}

	for _, e := range edges {
		if e.Active {
			s.Edges = append(s.Edges, e)
		}
	}
	sort.Slice(s.Edges, func(i, j int) bool { return s.Edges[i].ID < s.Edges[j].ID })
	for i, e := range s.Edges {
		s.dependents[e.PrerequisiteID] = append(s.dependents[e.PrerequisiteID], i)
		s.prerequisite[e.DependentID] = append(s.prerequisite[e.DependentID], i)
	}

	// Neighbor order is by task ID so every traversal is deterministic.
	for _, idx := range s.dependents {
		sort.SliceStable(idx, func(a, b int) bool { return s.Edges[idx[a]].DependentID < s.Edges[idx[b]].DependentID })
	}
	for _, idx := range s.prerequisite {
		sort.SliceStable(idx, func(a, b int) bool { return s.Edges[idx[a]].PrerequisiteID < s.Edges[idx[b]].PrerequisiteID })
	}
	return s
}

// Task returns a project task by ID.
func (s *Snapshot) Task(id string) (*models.Task, bool) {
	i, ok := s.taskIndex[id]
	if !ok {
		return nil, false
	}
	return &s.Tasks[i], true
}

// HasTask reports whether id is a task of this project.
func (s *Snapshot) HasTask(id string) bool {
	_, ok := s.taskIndex[id]
	return ok
}

// PrerequisiteEdges returns the active edges whose dependent is taskID.
func (s *Snapshot) PrerequisiteEdges(taskID string) []models.TaskDependency {
	return s.edgesAt(s.prerequisite[taskID])
}

// DependentEdges returns the active edges whose prerequisite is taskID.
func (s *Snapshot) DependentEdges(taskID string) []models.TaskDependency {
	return s.edgesAt(s.dependents[taskID])
}

// Degree returns the number of active edges touching taskID.
func (s *Snapshot) Degree(taskID string) int {
	return len(s.prerequisite[taskID]) + len(s.dependents[taskID])
}

func (s *Snapshot) edgesAt(idx []int) []models.TaskDependency {
	out := make([]models.TaskDependency, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.Edges[i])
	}
	return out
}

// prerequisiteIDs returns the direct prerequisite task IDs of taskID.
func (s *Snapshot) prerequisiteIDs(taskID string) []string {
	idx := s.prerequisite[taskID]
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.Edges[i].PrerequisiteID)
	}
	return out
}

// dependentIDs returns the direct dependent task IDs of taskID.
func (s *Snapshot) dependentIDs(taskID string) []string {
	idx := s.dependents[taskID]
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.Edges[i].DependentID)
	}
	return out
}
