// Package csa runs the criticality assessment pipeline: mission-derived
// host criticalities, graph centralities, and their combination into the
// final score.
package csa

import (
	"context"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/resilmesh/casm"
	"github.com/resilmesh/casm/criticality"
	"github.com/resilmesh/casm/internal/isim"
	"github.com/resilmesh/casm/internal/wfutil"
)

// CriticalityWorkflow computes and stores criticalities. Mission scores are
// propagated to hosts first, then the centralities are recomputed, and the
// final combination folds both together.
func CriticalityWorkflow(ctx workflow.Context) error {
	var a *Activities
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 5},
	})

	var results []casm.MissionCriticality
	if err := workflow.ExecuteActivity(ctx, a.ComputeMissionCriticalities).Get(ctx, &results); err != nil {
		return err
	}
	if err := workflow.ExecuteActivity(ctx, a.StoreMissionCriticalities, results).Get(ctx, nil); err != nil {
		return err
	}
	if err := workflow.ExecuteActivity(ctx, a.ComputeCentralities).Get(ctx, nil); err != nil {
		return err
	}
	return workflow.ExecuteActivity(ctx, a.CombineCriticalities).Get(ctx, nil)
}

// Register wires the workflow and activities into a worker.
func Register(w worker.Registry, a *Activities) {
	w.RegisterWorkflow(CriticalityWorkflow)
	w.RegisterActivity(a)
}

// Activities holds the criticality activity implementations.
type Activities struct {
	ISIM *isim.Client
}

// ComputeMissionCriticalities fetches the stored missions and propagates
// their criticalities down to the hosts supporting them.
func (a *Activities) ComputeMissionCriticalities(ctx context.Context) ([]casm.MissionCriticality, error) {
	missions, err := a.ISIM.Missions(ctx)
	if err != nil {
		return nil, wfutil.AppError(err)
	}
	results, err := criticality.ComputeHostCriticalities(missions)
	return results, wfutil.AppError(err)
}

// StoreMissionCriticalities posts the computed host criticalities.
func (a *Activities) StoreMissionCriticalities(ctx context.Context, results []casm.MissionCriticality) error {
	return wfutil.AppError(a.ISIM.StoreCriticality(ctx, results))
}

// ComputeCentralities triggers the betweenness and degree centrality
// computations on the graph.
func (a *Activities) ComputeCentralities(ctx context.Context) error {
	if err := a.ISIM.Compute(ctx, "/nodes/betweenness_centrality"); err != nil {
		return wfutil.AppError(err)
	}
	return wfutil.AppError(a.ISIM.Compute(ctx, "/nodes/degree_centrality"))
}

// CombineCriticalities folds mission criticality and the centralities into
// the final per-node score.
func (a *Activities) CombineCriticalities(ctx context.Context) error {
	return wfutil.AppError(a.ISIM.Compute(ctx, "/nodes/combine_criticality"))
}
