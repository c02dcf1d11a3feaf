// Package slpenrich enriches the inventory's addresses with Silent Push
// reputation data on a fixed schedule. Addresses already carrying an
// enrichment tag are left alone; lookups that fail per domain are recorded
// with a no-data tag so they are not retried forever.
package slpenrich

import (
	"context"
	"errors"
	"time"

	"github.com/quay/zlog"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/resilmesh/casm"
)

// Schedule identity on the workflow service.
const (
	ScheduleID = "slp-enrichment-schedule-id"
	WorkflowID = "slp-enrichment-workflow-id"
	// ScheduleInterval is how often the enrichment sweep runs.
	ScheduleInterval = 60 * time.Minute
)

var retryPolicy = &temporal.RetryPolicy{
	InitialInterval:        time.Second,
	BackoffCoefficient:     2.0,
	MaximumInterval:        2 * time.Second,
	MaximumAttempts:        5,
	NonRetryableErrorTypes: []string{string(casm.ErrBadInput)},
}

// Workflow runs one enrichment sweep: collect unenriched addresses, look
// them up, store the results.
func Workflow(ctx workflow.Context) error {
	var a *Activities
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Minute,
		RetryPolicy:         retryPolicy,
	})

	var rows []AssetRow
	if err := workflow.ExecuteActivity(ctx, a.CollectAssets).Get(ctx, &rows); err != nil {
		return err
	}
	var records []casm.SLPRecord
	if err := workflow.ExecuteActivity(ctx, a.FetchEnrichment, rows).Get(ctx, &records); err != nil {
		return err
	}
	return workflow.ExecuteActivity(ctx, a.StoreEnrichment, records).Get(ctx, nil)
}

// Register wires the workflow and activities into a worker.
func Register(w worker.Registry, a *Activities) {
	w.RegisterWorkflow(Workflow)
	w.RegisterActivity(a)
}

// EnsureSchedule creates the recurring enrichment schedule. An already
// existing schedule is fine: another worker won the race.
func EnsureSchedule(ctx context.Context, c client.Client, queue string) error {
	_, err := c.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: ScheduleID,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: ScheduleInterval}},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        WorkflowID,
			Workflow:  Workflow,
			TaskQueue: queue,
		},
		// A sweep still running when the next fires means the inventory or
		// the lookup service is slow; piling on does not help.
		Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
	})
	switch {
	case err == nil:
		zlog.Info(ctx).Str("schedule", ScheduleID).Msg("enrichment schedule created")
		return nil
	case errors.Is(err, temporal.ErrScheduleAlreadyRunning):
		zlog.Info(ctx).Str("schedule", ScheduleID).Msg("enrichment schedule already running")
		return nil
	default:
		return err
	}
}
