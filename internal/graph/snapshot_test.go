package graph

import (
	"reflect"
	"testing"

	"github.com/zulandar/taskgraph/internal/models"
)

func testTasks(ids ...string) []models.Task {
	out := make([]models.Task, len(ids))
	for i, id := range ids {
		out[i] = models.Task{ID: id, ProjectID: "prj-1", Title: id}
	}
	return out
}

// edge makes dependent depend on prerequisite.
func edge(id, dependent, prerequisite string) models.TaskDependency {
	return models.TaskDependency{
		ID: id, DependentID: dependent, PrerequisiteID: prerequisite,
		ProjectID: "prj-1", Type: models.FinishToStart, Active: true,
	}
}

// chain builds T1 -> T2 -> T3 plus an unconnected T4.
func chain() *Snapshot {
	return NewSnapshot("prj-1", testTasks("T3", "T1", "T4", "T2"), []models.TaskDependency{
		edge("e1", "T2", "T1"),
		edge("e2", "T3", "T2"),
	})
}

func TestNewSnapshot_SortsAndDropsInactive(t *testing.T) {
	inactive := edge("e0", "T1", "T3")
	inactive.Active = false
	s := NewSnapshot("prj-1", testTasks("T2", "T1", "T3"), []models.TaskDependency{
		edge("e2", "T3", "T2"), inactive, edge("e1", "T2", "T1"),
	})

	if s.Tasks[0].ID != "T1" || s.Tasks[2].ID != "T3" {
		t.Errorf("tasks not sorted: %v", s.Tasks)
	}
	if len(s.Edges) != 2 {
		t.Fatalf("len(Edges) = %d, want 2", len(s.Edges))
	}
	if s.Edges[0].ID != "e1" {
		t.Errorf("Edges[0] = %s, want e1", s.Edges[0].ID)
	}
	if got := s.PrerequisiteEdges("T1"); len(got) != 0 {
		t.Errorf("inactive edge still indexed: %v", got)
	}
}

func TestSnapshot_DirectEdgesAndDegree(t *testing.T) {
	s := chain()
	if got := s.PrerequisiteEdges("T2"); len(got) != 1 || got[0].PrerequisiteID != "T1" {
		t.Errorf("PrerequisiteEdges(T2) = %v", got)
	}
	if got := s.DependentEdges("T2"); len(got) != 1 || got[0].DependentID != "T3" {
		t.Errorf("DependentEdges(T2) = %v", got)
	}
	if d := s.Degree("T2"); d != 2 {
		t.Errorf("Degree(T2) = %d, want 2", d)
	}
	if d := s.Degree("T4"); d != 0 {
		t.Errorf("Degree(T4) = %d, want 0", d)
	}
	if _, ok := s.Task("nope"); ok {
		t.Error("Task(nope) found")
	}
}

func TestSnapshot_Closures(t *testing.T) {
	s := chain()
	if got := s.AllPrerequisites("T3"); !reflect.DeepEqual(got, []string{"T1", "T2"}) {
		t.Errorf("AllPrerequisites(T3) = %v", got)
	}
	if got := s.AllDependents("T1"); !reflect.DeepEqual(got, []string{"T2", "T3"}) {
		t.Errorf("AllDependents(T1) = %v", got)
	}
	if got := s.AllDependents("T4"); len(got) != 0 {
		t.Errorf("AllDependents(T4) = %v, want empty", got)
	}
}

func TestSnapshot_ClosureTerminatesOnCycle(t *testing.T) {
	s := NewSnapshot("prj-1", testTasks("a", "b", "c"), []models.TaskDependency{
		edge("e1", "b", "a"),
		edge("e2", "c", "b"),
		edge("e3", "a", "c"),
	})
	if got := s.AllPrerequisites("a"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("AllPrerequisites(a) = %v", got)
	}
}

func TestSnapshot_WouldCreateCycle(t *testing.T) {
	s := chain()
	tests := []struct {
		dependent, prerequisite string
		want                    bool
	}{
		{"T1", "T3", true},  // T3 already depends on T1
		{"T1", "T2", true},  // direct reverse edge
		{"T1", "T1", true},  // self
		{"T3", "T1", false}, // redundant but acyclic
		{"T4", "T3", false},
		{"T1", "T4", false},
	}
	for _, tt := range tests {
		if got := s.WouldCreateCycle(tt.dependent, tt.prerequisite); got != tt.want {
			t.Errorf("WouldCreateCycle(%s, %s) = %v, want %v", tt.dependent, tt.prerequisite, got, tt.want)
		}
	}
}

func TestSnapshot_ShortestPath(t *testing.T) {
	s := NewSnapshot("prj-1", testTasks("a", "b", "c", "d"), []models.TaskDependency{
		edge("e1", "b", "a"),
		edge("e2", "c", "b"),
		edge("e3", "d", "c"),
		edge("e4", "d", "a"),
	})
	if got := s.ShortestPath("a", "d"); !reflect.DeepEqual(got, []string{"a", "d"}) {
		t.Errorf("ShortestPath(a, d) = %v, want [a d]", got)
	}
	if got := s.ShortestPath("a", "c"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("ShortestPath(a, c) = %v, want [a b c]", got)
	}
	if got := s.ShortestPath("d", "a"); got == nil || len(got) != 0 {
		t.Errorf("ShortestPath(d, a) = %#v, want empty", got)
	}
	if got := s.ShortestPath("b", "b"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("ShortestPath(b, b) = %v, want [b]", got)
	}
}

func TestSnapshot_MostConnected(t *testing.T) {
	s := chain()
	if got := s.MostConnected(0); !reflect.DeepEqual(got, []string{"T2", "T1", "T3", "T4"}) {
		t.Errorf("MostConnected(0) = %v", got)
	}
	if got := s.MostConnected(2); !reflect.DeepEqual(got, []string{"T2", "T1"}) {
		t.Errorf("MostConnected(2) = %v", got)
	}
}

func TestPolicy_Satisfied(t *testing.T) {
	done := &models.Task{ID: "p", Completed: true, Progress: 100}
	started := &models.Task{ID: "p", Progress: 30}
	idle := &models.Task{ID: "p"}

	hard := edge("e", "d", "p")
	soft := edge("e", "d", "p")
	soft.Type = models.StartToStart
	off := edge("e", "d", "p")
	off.Active = false

	tests := []struct {
		name   string
		policy Policy
		dep    models.TaskDependency
		prereq *models.Task
		want   bool
	}{
		{"hard complete", Policy{}, hard, done, true},
		{"hard in progress", Policy{}, hard, started, false},
		{"soft any progress", Policy{}, soft, started, true},
		{"soft idle", Policy{}, soft, idle, false},
		{"soft below threshold", Policy{SoftProgressThreshold: 50}, soft, started, false},
		{"soft complete above threshold", Policy{SoftProgressThreshold: 100}, soft, done, true},
		{"inactive", Policy{}, off, idle, true},
		{"unknown prerequisite", Policy{}, hard, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Satisfied(tt.dep, tt.prereq); got != tt.want {
				t.Errorf("Satisfied = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshot_CanStartMatchesBlocking(t *testing.T) {
	s := chain()
	s.Tasks[0].Completed = true // T1
	for _, id := range []string{"T1", "T2", "T3", "T4"} {
		blocking := s.BlockingDependencies(id, Policy{})
		if s.CanStart(id, Policy{}) != (len(blocking) == 0) {
			t.Errorf("CanStart(%s) disagrees with BlockingDependencies %v", id, blocking)
		}
	}
	if !s.CanStart("T2", Policy{}) {
		t.Error("T2 should be able to start once T1 is complete")
	}
	if s.CanStart("T3", Policy{}) {
		t.Error("T3 should be blocked by T2")
	}
}

func TestSnapshot_DetectCycles(t *testing.T) {
	tests := []struct {
		name  string
		edges []models.TaskDependency
		want  [][]string
	}{
		{"acyclic", chain().Edges, nil},
		{"triangle", []models.TaskDependency{
			edge("e1", "b", "a"), edge("e2", "c", "b"), edge("e3", "a", "c"),
		}, [][]string{{"a", "b", "c"}}},
		{"two cycles sharing a node", []models.TaskDependency{
			edge("e1", "b", "a"), edge("e2", "a", "b"), edge("e3", "c", "b"), edge("e4", "b", "c"),
		}, [][]string{{"a", "b"}, {"b", "c"}}},
		{"self loop", []models.TaskDependency{edge("e1", "c", "c")}, [][]string{{"c"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSnapshot("prj-1", testTasks("a", "b", "c", "T1", "T2", "T3"), tt.edges)
			got := s.DetectCycles()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DetectCycles = %v, want %v", got, tt.want)
			}
			if r := s.Validate(); r.Valid != (len(got) == 0) {
				t.Errorf("Validate().Valid = %v with %d cycles", r.Valid, len(got))
			}
		})
	}
}

func TestSnapshot_ValidateStructuralIssues(t *testing.T) {
	s := NewSnapshot("prj-1", testTasks("a", "b"), []models.TaskDependency{
		edge("e1", "b", "a"),
		edge("e2", "b", "a"),
		edge("e3", "b", "ghost"),
		edge("e4", "b", "x"),
	})
	s.Foreign["x"] = models.Task{ID: "x", ProjectID: "prj-2"}

	r := s.Validate()
	if r.Valid {
		t.Fatal("expected invalid graph")
	}
	if len(r.Cycles) != 0 {
		t.Errorf("Cycles = %v, want none", r.Cycles)
	}
	want := []string{
		"dependency e3 references missing task ghost",
		"dependency e4 is cross-project: task x belongs to project prj-2",
		"tasks a -> b have 2 active dependencies",
	}
	if !reflect.DeepEqual(r.Issues, want) {
		t.Errorf("Issues = %q\nwant %q", r.Issues, want)
	}
}
