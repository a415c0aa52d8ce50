package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/taskgraph/internal/config"
	"github.com/zulandar/taskgraph/internal/graph"
	"github.com/zulandar/taskgraph/internal/models"
	"github.com/zulandar/taskgraph/internal/task"
	"github.com/zulandar/taskgraph/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupRouter seeds prj-1 with T1 (8h), T2 (4h), T3 (6h) and prj-2 with X1.
func setupRouter(t *testing.T) (*gin.Engine, *Services) {
	t.Helper()
	gormDB := testutil.OpenTestDB(t)
	testutil.SeedProject(t, gormDB, "prj-1")
	testutil.SeedTask(t, gormDB, "prj-1", "T1", 8)
	testutil.SeedTask(t, gormDB, "prj-1", "T2", 4)
	testutil.SeedTask(t, gormDB, "prj-1", "T3", 6)
	testutil.SeedProject(t, gormDB, "prj-2")
	testutil.SeedTask(t, gormDB, "prj-2", "X1", 2)
	svc := NewServices(gormDB, config.Default().Policy)
	return NewRouter(svc), svc
}

// setupChain adds T1 -> T2 -> T3.
func setupChain(t *testing.T) (*gin.Engine, *Services) {
	t.Helper()
	router, svc := setupRouter(t)
	for _, pair := range [][2]string{{"T2", "T1"}, {"T3", "T2"}} {
		body := fmt.Sprintf(`{"dependent_id":%q,"prerequisite_id":%q}`, pair[0], pair[1])
		w := doRequest(router, http.MethodPost, "/api/projects/prj-1/dependencies", body)
		if w.Code != http.StatusCreated {
			t.Fatalf("create %s <- %s: status %d: %s", pair[0], pair[1], w.Code, w.Body.String())
		}
	}
	return router, svc
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestStart_NilServices(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	if err == nil {
		t.Fatal("expected error for nil services")
	}
	if !strings.Contains(err.Error(), "db is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db is required")
	}
}

func TestStart_InvalidSchedule(t *testing.T) {
	_, svc := setupRouter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err := Start(ctx, StartOpts{Services: svc, Port: 18999, RecomputeSchedule: "not a schedule"})
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if !strings.Contains(err.Error(), "recompute schedule") {
		t.Errorf("error = %q, want to mention recompute schedule", err.Error())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"dependency not found", &graph.NotFoundError{Entity: "dependency", ID: "x"}, http.StatusNotFound},
		{"task not found", fmt.Errorf("task: get x: %w", task.ErrNotFound), http.StatusNotFound},
		{"duplicate", &graph.ValidationError{Kind: graph.DuplicateDependency}, http.StatusConflict},
		{"self reference", &graph.ValidationError{Kind: graph.InvalidDependency}, http.StatusUnprocessableEntity},
		{"cross project", &graph.ValidationError{Kind: graph.CrossProjectDependency}, http.StatusUnprocessableEntity},
		{"cycle", &graph.CyclicDependencyError{DependentID: "a", PrerequisiteID: "b"}, http.StatusUnprocessableEntity},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCreateDependency_Created(t *testing.T) {
	router, _ := setupRouter(t)
	w := doRequest(router, http.MethodPost, "/api/projects/prj-1/dependencies",
		`{"dependent_id":"T2","prerequisite_id":"T1","type":"soft","lag_hours":3,"notes":"design first"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var d models.TaskDependency
	decode(t, w, &d)
	if d.ID == "" || d.DependentID != "T2" || d.PrerequisiteID != "T1" {
		t.Errorf("dependency = %+v", d)
	}
	if d.Type != models.Soft || d.LagHours != 3 || d.Notes != "design first" || !d.Active {
		t.Errorf("dependency fields = %+v", d)
	}
}

func TestCreateDependency_Errors(t *testing.T) {
	router, _ := setupChain(t)
	tests := []struct {
		name    string
		project string
		body    string
		want    int
	}{
		{"malformed body", "prj-1", `{"dependent_id":`, http.StatusBadRequest},
		{"missing prerequisite", "prj-1", `{"dependent_id":"T2"}`, http.StatusBadRequest},
		{"duplicate", "prj-1", `{"dependent_id":"T2","prerequisite_id":"T1"}`, http.StatusConflict},
		{"cycle", "prj-1", `{"dependent_id":"T1","prerequisite_id":"T3"}`, http.StatusUnprocessableEntity},
		{"self reference", "prj-1", `{"dependent_id":"T1","prerequisite_id":"T1"}`, http.StatusUnprocessableEntity},
		{"unknown type", "prj-1", `{"dependent_id":"T3","prerequisite_id":"T1","type":"later"}`, http.StatusUnprocessableEntity},
		{"unknown dependent", "prj-1", `{"dependent_id":"nope","prerequisite_id":"T1"}`, http.StatusNotFound},
		{"unknown prerequisite", "prj-1", `{"dependent_id":"T3","prerequisite_id":"nope"}`, http.StatusNotFound},
		{"dependent in other project", "prj-1", `{"dependent_id":"X1","prerequisite_id":"T1"}`, http.StatusUnprocessableEntity},
		{"cross project prerequisite", "prj-2", `{"dependent_id":"X1","prerequisite_id":"T1"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/api/projects/"+tt.project+"/dependencies", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
			var body map[string]string
			decode(t, w, &body)
			if body["error"] == "" {
				t.Error("error body is empty")
			}
		})
	}
}

func TestCreateDependency_CycleMessageShowsPath(t *testing.T) {
	router, _ := setupChain(t)
	w := doRequest(router, http.MethodPost, "/api/projects/prj-1/dependencies",
		`{"dependent_id":"T1","prerequisite_id":"T3"}`)
	var body map[string]string
	decode(t, w, &body)
	if !strings.Contains(body["error"], "T1 -> T2 -> T3 -> T1") {
		t.Errorf("error = %q, want the cycle path", body["error"])
	}
}

func TestListDependencies(t *testing.T) {
	router, svc := setupChain(t)
	var deps []models.TaskDependency
	decode(t, doRequest(router, http.MethodGet, "/api/projects/prj-1/dependencies", ""), &deps)
	if len(deps) != 2 {
		t.Fatalf("active dependencies = %d, want 2", len(deps))
	}

	if _, err := svc.Graph.DeactivateDependencies(context.Background(), "T3"); err != nil {
		t.Fatalf("DeactivateDependencies: %v", err)
	}
	decode(t, doRequest(router, http.MethodGet, "/api/projects/prj-1/dependencies", ""), &deps)
	if len(deps) != 1 {
		t.Errorf("active dependencies after deactivate = %d, want 1", len(deps))
	}
	decode(t, doRequest(router, http.MethodGet, "/api/projects/prj-1/dependencies?active=false", ""), &deps)
	if len(deps) != 2 {
		t.Errorf("all dependencies = %d, want 2", len(deps))
	}

	if w := doRequest(router, http.MethodGet, "/api/projects/prj-1/dependencies?active=maybe", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad active flag status = %d, want 400", w.Code)
	}
}

func TestUpdateAndRemoveDependency(t *testing.T) {
	router, svc := setupChain(t)
	deps, err := svc.Graph.DirectPrerequisites(context.Background(), "T2")
	if err != nil || len(deps) != 1 {
		t.Fatalf("DirectPrerequisites = %v, %v", deps, err)
	}
	id := deps[0].ID

	w := doRequest(router, http.MethodPut, "/api/dependencies/"+id, `{"type":"blocking","lag_hours":12}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body.String())
	}
	var d models.TaskDependency
	decode(t, w, &d)
	if d.Type != models.Blocking || d.LagHours != 12 {
		t.Errorf("updated = %+v", d)
	}

	if w := doRequest(router, http.MethodPut, "/api/dependencies/missing", `{"lag_hours":1}`); w.Code != http.StatusNotFound {
		t.Errorf("update missing status = %d, want 404", w.Code)
	}
	if w := doRequest(router, http.MethodPut, "/api/dependencies/"+id, `{"type":"later"}`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("update invalid type status = %d, want 422", w.Code)
	}

	if w := doRequest(router, http.MethodDelete, "/api/dependencies/"+id, ""); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", w.Code)
	}
	if w := doRequest(router, http.MethodDelete, "/api/dependencies/"+id, ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestBulkEndpoints(t *testing.T) {
	router, svc := setupRouter(t)
	w := doRequest(router, http.MethodPost, "/api/projects/prj-1/dependencies/bulk", `[
		{"dependent_id":"T2","prerequisite_id":"T1"},
		{"dependent_id":"T3","prerequisite_id":"T2"},
		{"dependent_id":"T2","prerequisite_id":"T1"},
		{"dependent_id":"X1","prerequisite_id":"T1"}
	]`)
	if w.Code != http.StatusCreated {
		t.Fatalf("bulk create status = %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Created      []models.TaskDependency `json:"created"`
		Requested    int                     `json:"requested"`
		CreatedCount int                     `json:"created_count"`
	}
	decode(t, w, &created)
	if created.Requested != 4 || created.CreatedCount != 2 || len(created.Created) != 2 {
		t.Fatalf("bulk create = %+v", created)
	}
	ids := []string{created.Created[0].ID, created.Created[1].ID}
	idsJSON, _ := json.Marshal(ids)

	w = doRequest(router, http.MethodPut, "/api/dependencies/bulk/type", fmt.Sprintf(`{"ids":%s,"type":"start_to_start"}`, idsJSON))
	var updated map[string]int
	decode(t, w, &updated)
	if updated["updated"] != 2 {
		t.Errorf("updated = %v, want 2", updated)
	}
	d, err := svc.Graph.GetDependency(context.Background(), ids[0])
	if err != nil || d.Type != models.StartToStart {
		t.Errorf("GetDependency = %+v, %v", d, err)
	}
	if w := doRequest(router, http.MethodPut, "/api/dependencies/bulk/type", fmt.Sprintf(`{"ids":%s,"type":"later"}`, idsJSON)); w.Code != http.StatusBadRequest {
		t.Errorf("invalid bulk type status = %d, want 400", w.Code)
	}

	w = doRequest(router, http.MethodDelete, "/api/dependencies/bulk", fmt.Sprintf(`{"ids":%s}`, idsJSON))
	var removed map[string]int
	decode(t, w, &removed)
	if removed["removed"] != 2 {
		t.Errorf("removed = %v, want 2", removed)
	}
}

func TestTaskDependencies(t *testing.T) {
	router, _ := setupChain(t)
	var body struct {
		Prerequisites []models.TaskDependency `json:"prerequisites"`
		Dependents    []models.TaskDependency `json:"dependents"`
	}
	decode(t, doRequest(router, http.MethodGet, "/api/tasks/T2/dependencies", ""), &body)
	if len(body.Prerequisites) != 1 || body.Prerequisites[0].PrerequisiteID != "T1" {
		t.Errorf("prerequisites = %+v", body.Prerequisites)
	}
	if len(body.Dependents) != 1 || body.Dependents[0].DependentID != "T3" {
		t.Errorf("dependents = %+v", body.Dependents)
	}
	if w := doRequest(router, http.MethodGet, "/api/tasks/nope/dependencies", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown task status = %d, want 404", w.Code)
	}
}

func TestCanStart(t *testing.T) {
	router, _ := setupChain(t)
	var body struct {
		CanStart bool                    `json:"can_start"`
		Blocking []models.TaskDependency `json:"blocking"`
	}
	decode(t, doRequest(router, http.MethodGet, "/api/tasks/T1/can-start", ""), &body)
	if !body.CanStart || len(body.Blocking) != 0 {
		t.Errorf("T1 = %+v, want startable", body)
	}
	decode(t, doRequest(router, http.MethodGet, "/api/tasks/T2/can-start", ""), &body)
	if body.CanStart || len(body.Blocking) != 1 {
		t.Errorf("T2 = %+v, want blocked by one edge", body)
	}
	if w := doRequest(router, http.MethodGet, "/api/tasks/nope/can-start", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown task status = %d, want 404", w.Code)
	}
}

func TestCriticalPath_ComputeThenRead(t *testing.T) {
	router, _ := setupChain(t)
	w := doRequest(router, http.MethodPost, "/api/projects/prj-1/critical-path", "")
	if w.Code != http.StatusOK {
		t.Fatalf("compute status = %d: %s", w.Code, w.Body.String())
	}
	var result struct {
		CriticalTasks []string `json:"critical_tasks"`
		TotalDuration float64  `json:"total_duration"`
	}
	decode(t, w, &result)
	if result.TotalDuration != 18 {
		t.Errorf("total_duration = %v, want 18", result.TotalDuration)
	}
	if strings.Join(result.CriticalTasks, ",") != "T1,T2,T3" {
		t.Errorf("critical_tasks = %v, want [T1 T2 T3]", result.CriticalTasks)
	}

	var stored struct {
		Tasks        []models.Task           `json:"tasks"`
		Dependencies []models.TaskDependency `json:"dependencies"`
		Run          *models.CriticalPathRun `json:"run"`
	}
	decode(t, doRequest(router, http.MethodGet, "/api/projects/prj-1/critical-path", ""), &stored)
	if len(stored.Tasks) != 3 || len(stored.Dependencies) != 2 {
		t.Errorf("stored markers = %d tasks, %d dependencies, want 3 and 2", len(stored.Tasks), len(stored.Dependencies))
	}
	if stored.Run == nil || stored.Run.TotalDuration != 18 {
		t.Errorf("run = %+v", stored.Run)
	}

	if w := doRequest(router, http.MethodGet, "/api/projects/nope/critical-path", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown project status = %d, want 404", w.Code)
	}
	if w := doRequest(router, http.MethodPost, "/api/projects/nope/critical-path", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown project compute status = %d, want 404", w.Code)
	}
}

func TestTaskFloat(t *testing.T) {
	router, _ := setupChain(t)
	var body struct {
		TaskID     string  `json:"task_id"`
		FloatHours float64 `json:"float_hours"`
	}
	w := doRequest(router, http.MethodGet, "/api/tasks/T2/float", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &body)
	if body.TaskID != "T2" || body.FloatHours != 0 {
		t.Errorf("float = %+v, want T2 with 0", body)
	}
	if w := doRequest(router, http.MethodGet, "/api/tasks/nope/float", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown task status = %d, want 404", w.Code)
	}
}

func TestValidate(t *testing.T) {
	router, svc := setupChain(t)
	var report graph.GraphReport
	decode(t, doRequest(router, http.MethodGet, "/api/projects/prj-1/validate", ""), &report)
	if !report.Valid || len(report.Issues) != 0 {
		t.Errorf("report = %+v, want valid", report)
	}

	testutil.SeedEdge(t, svc.DB, "prj-1", "seeded", "T1", "T3", 0)
	decode(t, doRequest(router, http.MethodGet, "/api/projects/prj-1/validate", ""), &report)
	if report.Valid || len(report.Cycles) != 1 {
		t.Errorf("report = %+v, want one cycle", report)
	}

	if w := doRequest(router, http.MethodGet, "/api/projects/nope/validate", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown project status = %d, want 404", w.Code)
	}
}

func TestRiskAndOptimize(t *testing.T) {
	router, _ := setupChain(t)
	var assessment struct {
		Level   string   `json:"level"`
		Factors []string `json:"factors"`
		Metrics struct {
			CriticalPathLength int `json:"criticalPathLength"`
			BlockedTaskCount   int `json:"blockedTaskCount"`
		} `json:"metrics"`
	}
	decode(t, doRequest(router, http.MethodGet, "/api/projects/prj-1/risk", ""), &assessment)
	if assessment.Level != "MEDIUM" {
		t.Errorf("level = %s, want MEDIUM (factors %v)", assessment.Level, assessment.Factors)
	}
	if assessment.Metrics.CriticalPathLength != 3 || assessment.Metrics.BlockedTaskCount != 2 {
		t.Errorf("metrics = %+v", assessment.Metrics)
	}

	w := doRequest(router, http.MethodGet, "/api/projects/prj-1/optimize", "")
	if w.Code != http.StatusOK {
		t.Fatalf("optimize status = %d: %s", w.Code, w.Body.String())
	}
	var opt struct {
		Recommendations []string `json:"recommendations"`
	}
	decode(t, w, &opt)
	if opt.Recommendations == nil {
		t.Error("recommendations should be an empty list, not null")
	}

	if w := doRequest(router, http.MethodGet, "/api/projects/nope/risk", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown project status = %d, want 404", w.Code)
	}
}

func TestReadyAndBlocked(t *testing.T) {
	router, _ := setupChain(t)
	var ready []models.Task
	decode(t, doRequest(router, http.MethodGet, "/api/projects/prj-1/ready", ""), &ready)
	if len(ready) != 1 || ready[0].ID != "T1" {
		t.Errorf("ready = %+v, want [T1]", ready)
	}
	var blocked []struct {
		Task     models.Task             `json:"task"`
		Blocking []models.TaskDependency `json:"blocking"`
	}
	decode(t, doRequest(router, http.MethodGet, "/api/projects/prj-1/blocked", ""), &blocked)
	if len(blocked) != 2 || blocked[0].Task.ID != "T2" || blocked[1].Task.ID != "T3" {
		t.Errorf("blocked = %+v, want T2 and T3", blocked)
	}
}

func TestMostConnected(t *testing.T) {
	router, _ := setupChain(t)
	var tasks []models.Task
	decode(t, doRequest(router, http.MethodGet, "/api/projects/prj-1/most-connected?limit=1", ""), &tasks)
	if len(tasks) != 1 || tasks[0].ID != "T2" {
		t.Errorf("most connected = %+v, want [T2]", tasks)
	}
	if w := doRequest(router, http.MethodGet, "/api/projects/prj-1/most-connected?limit=-2", ""); w.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", w.Code)
	}
}

func TestStatistics(t *testing.T) {
	router, _ := setupChain(t)
	var stats map[string]int64
	decode(t, doRequest(router, http.MethodGet, "/api/projects/prj-1/statistics", ""), &stats)
	if stats["finish_to_start"] != 2 {
		t.Errorf("finish_to_start = %d, want 2", stats["finish_to_start"])
	}
	if len(stats) != len(models.DependencyTypes) {
		t.Errorf("statistics has %d types, want %d", len(stats), len(models.DependencyTypes))
	}
	if w := doRequest(router, http.MethodGet, "/api/projects/nope/statistics", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown project status = %d, want 404", w.Code)
	}
}

func TestExternalConstraints(t *testing.T) {
	router, _ := setupRouter(t)
	w := doRequest(router, http.MethodPost, "/api/projects/prj-1/dependencies",
		`{"dependent_id":"T3","prerequisite_id":"T1","lag_hours":30}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}

	var deps []models.TaskDependency
	decode(t, doRequest(router, http.MethodGet, "/api/projects/prj-1/external-constraints", ""), &deps)
	if len(deps) != 1 || deps[0].LagHours != 30 {
		t.Errorf("default threshold = %+v, want the 30h edge", deps)
	}
	decode(t, doRequest(router, http.MethodGet, "/api/projects/prj-1/external-constraints?min_lag=31", ""), &deps)
	if len(deps) != 0 {
		t.Errorf("min_lag=31 = %+v, want none", deps)
	}
	if w := doRequest(router, http.MethodGet, "/api/projects/prj-1/external-constraints?min_lag=soon", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad min_lag status = %d, want 400", w.Code)
	}
}

func TestUnknownRoute_Returns404(t *testing.T) {
	router, _ := setupRouter(t)
	if w := doRequest(router, http.MethodGet, "/api/nonexistent", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
