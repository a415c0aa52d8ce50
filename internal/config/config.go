// Package config provides YAML-based configuration loading for taskgraph.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level taskgraph configuration, loaded from taskgraph.yaml.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Policy   PolicyConfig   `yaml:"policy"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig selects the storage backend. The sqlite driver uses Path;
// the mysql driver uses Host, Port, User, Password and Name.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// PolicyConfig holds the scheduling policy knobs used by the analyzers.
type PolicyConfig struct {
	// DefaultTaskHours is the duration assumed for tasks without an estimate.
	DefaultTaskHours float64 `yaml:"default_task_hours"`
	// SoftProgressThreshold is the prerequisite progress (percent) that must
	// be exceeded before a soft dependency counts as satisfied.
	SoftProgressThreshold int `yaml:"soft_progress_threshold"`
	// ExternalConstraintLagHours marks dependencies with a larger lag as
	// external constraints (procurement, vendor lead time).
	ExternalConstraintLagHours int `yaml:"external_constraint_lag_hours"`
	// ReviewLagHours flags dependencies with a larger lag for review.
	ReviewLagHours int `yaml:"review_lag_hours"`
	// ProcurementLagHours flags dependencies with a larger lag for early ordering.
	ProcurementLagHours int `yaml:"procurement_lag_hours"`
	// BlockedRatio is the blocked-tasks to critical-path-length ratio above
	// which a project is considered at risk.
	BlockedRatio float64 `yaml:"blocked_ratio"`
}

// ServerConfig configures `tg serve`.
type ServerConfig struct {
	Port int `yaml:"port"`
	// RecomputeSchedule is a 5-field cron expression. When set, the server
	// recomputes critical-path markers for every project on that schedule.
	RecomputeSchedule string `yaml:"recompute_schedule"`
}

// LogConfig configures the shared logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration with every default applied, backed by a
// local sqlite file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "taskgraph.db"
		}
	case "mysql":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "taskgraph"
		}
	}
	if c.Policy.DefaultTaskHours == 0 {
		c.Policy.DefaultTaskHours = 8
	}
	if c.Policy.ExternalConstraintLagHours == 0 {
		c.Policy.ExternalConstraintLagHours = 24
	}
	if c.Policy.ReviewLagHours == 0 {
		c.Policy.ReviewLagHours = 24
	}
	if c.Policy.ProcurementLagHours == 0 {
		c.Policy.ProcurementLagHours = 48
	}
	if c.Policy.BlockedRatio == 0 {
		c.Policy.BlockedRatio = 0.3
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Policy.DefaultTaskHours < 0 {
		errs = append(errs, "policy.default_task_hours must not be negative")
	}
	if c.Policy.SoftProgressThreshold < 0 || c.Policy.SoftProgressThreshold > 100 {
		errs = append(errs, "policy.soft_progress_threshold must be between 0 and 100")
	}
	if c.Policy.BlockedRatio < 0 {
		errs = append(errs, "policy.blocked_ratio must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Server.RecomputeSchedule != "" {
		if _, err := CronParser.Parse(c.Server.RecomputeSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("server.recompute_schedule: %v", err))
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is not supported", c.Log.Level))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// CronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
