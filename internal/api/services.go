// Package api serves the dependency engine over HTTP.
package api

import (
	"github.com/zulandar/taskgraph/internal/bulk"
	"github.com/zulandar/taskgraph/internal/config"
	"github.com/zulandar/taskgraph/internal/cpm"
	"github.com/zulandar/taskgraph/internal/graph"
	"github.com/zulandar/taskgraph/internal/risk"
	"gorm.io/gorm"
)

// Services bundles the engine components behind one database handle.
type Services struct {
	DB       *gorm.DB
	Graph    *graph.Manager
	Critical *cpm.Analyzer
	Risk     *risk.Analyzer
	Bulk     *bulk.Facade
	Policy   config.PolicyConfig
}

// NewServices wires the engine components for db under the given policy.
func NewServices(db *gorm.DB, policy config.PolicyConfig) *Services {
	opts := cpm.Options{DefaultHours: policy.DefaultTaskHours}
	m := graph.NewManager(db, graph.Policy{SoftProgressThreshold: policy.SoftProgressThreshold})
	return &Services{
		DB:       db,
		Graph:    m,
		Critical: cpm.NewAnalyzer(db, opts),
		Risk: risk.NewAnalyzer(m, opts, risk.Thresholds{
			ExternalLagHours:    policy.ExternalConstraintLagHours,
			ReviewLagHours:      policy.ReviewLagHours,
			ProcurementLagHours: policy.ProcurementLagHours,
			BlockedRatio:        policy.BlockedRatio,
		}),
		Bulk:   bulk.New(m),
		Policy: policy,
	}
}
