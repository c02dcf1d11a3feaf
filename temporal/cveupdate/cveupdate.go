// Package cveupdate schedules the recurring CVE sweep: every stored
// software version is looked up against the NVD API and the results are
// matched into the vulnerability graph.
package cveupdate

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
)

// Schedule identity on the workflow service.
const (
	ScheduleID = "cve-update-scheduled-workflow"
	WorkflowID = "cve-update-workflow-instance"
	// ScheduleInterval is how often the sweep runs.
	ScheduleInterval = 2 * time.Hour
)

// Workflow runs one full sweep in a single activity. The sweep is paced by
// the API's public rate limit, so the timeout is generous and a failed run
// waits for the next scheduled one instead of retrying.
func Workflow(ctx workflow.Context) (string, error) {
	var a *Activities
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 90 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	start := workflow.Now(ctx).UTC().Format(time.RFC3339)
	var summary string
	err := workflow.ExecuteActivity(ctx, a.UpdateCVEs, start).Get(ctx, &summary)
	return summary, err
}

// Register wires the workflow and activities into a worker.
func Register(w worker.Registry, a *Activities) {
	w.RegisterWorkflow(Workflow)
	w.RegisterActivity(a)
}

// EnsureSchedule creates the recurring sweep schedule. An already existing
// schedule is fine: another worker won the race.
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
		// The sweep is paced by the API rate limit and can outlast the
		// interval; an overlapping run would fight over the same watermarks.
		Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
	})
	switch {
	case err == nil:
		zlog.Info(ctx).Str("schedule", ScheduleID).Msg("sweep schedule created")
		return nil
	case errors.Is(err, temporal.ErrScheduleAlreadyRunning):
		zlog.Info(ctx).Str("schedule", ScheduleID).Msg("sweep schedule already running")
		return nil
	default:
		return err
	}
}
