package db

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/taskgraph/internal/config"
	"github.com/zulandar/taskgraph/internal/models"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "default local",
			cfg:  config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, User: "root", Name: "taskgraph"},
			want: "root@tcp(127.0.0.1:3306)/taskgraph?parseTime=true",
		},
		{
			name: "custom host and password",
			cfg:  config.DatabaseConfig{Host: "10.0.0.5", Port: 3307, User: "planner", Password: "pw", Name: "season"},
			want: "planner:pw@tcp(10.0.0.5:3307)/season?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.cfg)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "unsupported driver")
	}
}

func TestConnect_Error(t *testing.T) {
	// Port 1 is unlikely to have a MySQL server; expect connection error.
	_, err := Connect(config.DatabaseConfig{Host: "127.0.0.1", Port: 1, User: "root", Name: "nonexistent"})
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: connect to")
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 4 {
		t.Errorf("AllModels() returned %d models, want 4", got)
	}
}

func TestOpenSQLite_AutoMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	gormDB, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	for _, m := range AllModels() {
		if !gormDB.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}

	if err := gormDB.Create(&models.Project{ID: "prj-1", Name: "Robot"}).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	var count int64
	gormDB.Model(&models.Project{}).Count(&count)
	if count != 1 {
		t.Errorf("project count = %d, want 1", count)
	}
}
