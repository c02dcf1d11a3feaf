// Package nmapscan runs the internal network scans as durable workflows:
// the basic host discovery scan feeding the asset inventory, and the
// traceroute topology scan feeding the connection graph.
package nmapscan

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/resilmesh/casm"
	"github.com/resilmesh/casm/internal/config"
)

// BasicInput selects the targets and arguments of a discovery scan.
type BasicInput struct {
	Targets   []string `json:"targets"`
	Arguments []string `json:"arguments"`
	// OrgUnitName owns the discovered subnets.
	OrgUnitName string `json:"org_unit_name"`
	// Tags annotate every produced host and software version.
	Tags []string `json:"tag"`
}

// TopologyInput selects the targets of a traceroute scan.
type TopologyInput struct {
	Targets []string `json:"targets"`
}

// BasicInputFromConfig maps the discovery scan configuration section.
func BasicInputFromConfig(cfg *config.NmapBasic) *BasicInput {
	return &BasicInput{
		Targets:     cfg.Targets,
		Arguments:   cfg.Arguments,
		OrgUnitName: cfg.OrgUnitName,
		Tags:        cfg.Tags,
	}
}

// TopologyInputFromConfig maps the topology scan configuration section.
func TopologyInputFromConfig(cfg *config.NmapTopology) *TopologyInput {
	return &TopologyInput{Targets: cfg.Targets}
}

var singleAttempt = &temporal.RetryPolicy{MaximumAttempts: 1}

// scanPolicy retries transient failures a few times. Validation rejects and
// scanner failures are permanent.
func scanPolicy(nonRetryable ...casm.ErrorKind) *temporal.RetryPolicy {
	types := make([]string, len(nonRetryable))
	for i, k := range nonRetryable {
		types[i] = string(k)
	}
	return &temporal.RetryPolicy{
		InitialInterval:        time.Second,
		BackoffCoefficient:     2.0,
		MaximumInterval:        2 * time.Second,
		MaximumAttempts:        5,
		NonRetryableErrorTypes: types,
	}
}

// BasicWorkflow runs the discovery scan end to end: validate, scan, parse,
// publish.
func BasicWorkflow(ctx workflow.Context, in *BasicInput) error {
	var a *Activities

	vctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         singleAttempt,
	})
	var validated BasicInput
	if err := workflow.ExecuteActivity(vctx, a.ValidateBasicInput, in).Get(ctx, &validated); err != nil {
		return err
	}

	sctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         scanPolicy(casm.ErrBadInput, casm.ErrTool),
	})
	var rawXML []byte
	if err := workflow.ExecuteActivity(sctx, a.RunBasicScan, validated.Targets, validated.Arguments).Get(ctx, &rawXML); err != nil {
		return err
	}

	pctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         scanPolicy(casm.ErrBadInput),
	})
	var list casm.AssetList
	if err := workflow.ExecuteActivity(pctx, a.ParseScanResults, rawXML, validated.OrgUnitName, validated.Tags).Get(ctx, &list); err != nil {
		return err
	}

	return workflow.ExecuteActivity(pctx, a.PublishAssets, &list).Get(ctx, nil)
}

// TopologyWorkflow runs the traceroute scan and stores the hop graph.
func TopologyWorkflow(ctx workflow.Context, in *TopologyInput) error {
	var a *Activities

	vctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         singleAttempt,
	})
	var validated TopologyInput
	if err := workflow.ExecuteActivity(vctx, a.ValidateTopologyInput, in).Get(ctx, &validated); err != nil {
		return err
	}

	sctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Minute,
		RetryPolicy:         scanPolicy(casm.ErrBadInput, casm.ErrTool),
	})
	var trace casm.Traceroute
	if err := workflow.ExecuteActivity(sctx, a.RunTracerouteScan, validated.Targets).Get(ctx, &trace); err != nil {
		return err
	}

	pctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Minute,
		RetryPolicy:         scanPolicy(casm.ErrBadInput),
	})
	return workflow.ExecuteActivity(pctx, a.PublishTraceroute, &trace).Get(ctx, nil)
}

// Register wires both scan workflows and their activities into a worker.
func Register(w worker.Registry, a *Activities) {
	w.RegisterWorkflow(BasicWorkflow)
	w.RegisterWorkflow(TopologyWorkflow)
	w.RegisterActivity(a)
}
