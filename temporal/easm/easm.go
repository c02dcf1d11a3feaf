// Package easm runs external attack surface enumeration as a durable
// workflow: passive subdomain discovery, optional active bruteforce and
// permutation, service probing, and publication to the inventory API.
//
// Tool outputs move between activities by blob reference, never through
// workflow history.
package easm

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/resilmesh/casm"
	"github.com/resilmesh/casm/internal/config"
)

// ScanInput selects what to enumerate and how.
type ScanInput struct {
	// Domains are the seed domains.
	Domains []string `json:"domains"`
	// Complete adds the active enumeration stage after passive discovery.
	Complete bool `json:"complete"`
	// HTTPXPath is the probe binary, "httpx" when empty.
	HTTPXPath string `json:"httpx_path"`
	// Threads bounds the bruteforce resolver concurrency.
	Threads int `json:"threads"`
	// WordlistPath is the bruteforce wordlist, required when Complete.
	WordlistPath string `json:"wordlist_path"`
}

// InputFromConfig maps the scanner configuration section onto a ScanInput.
func InputFromConfig(cfg *config.EASM) *ScanInput {
	return &ScanInput{
		Domains:      cfg.Domains,
		Complete:     cfg.Mode == "complete",
		HTTPXPath:    cfg.HTTPXPath,
		Threads:      cfg.Threads,
		WordlistPath: cfg.WordlistPath,
	}
}

// retryTwice is the policy for steps worth one more attempt. Validation
// rejects and tool failures are permanent.
func retryTwice(nonRetryable ...casm.ErrorKind) *temporal.RetryPolicy {
	types := make([]string, len(nonRetryable))
	for i, k := range nonRetryable {
		types[i] = string(k)
	}
	return &temporal.RetryPolicy{
		InitialInterval:        time.Second,
		BackoffCoefficient:     2.0,
		MaximumInterval:        2 * time.Second,
		MaximumAttempts:        2,
		NonRetryableErrorTypes: types,
	}
}

var singleAttempt = &temporal.RetryPolicy{MaximumAttempts: 1}

// ScanWorkflow orchestrates the full enumeration: validation, the passive
// child workflow, the active child workflow in complete mode, probing, and
// publication. It returns the inventory API response.
func ScanWorkflow(ctx workflow.Context, in *ScanInput) (string, error) {
	var a *Activities

	vctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         singleAttempt,
	})
	var validated ScanInput
	if err := workflow.ExecuteActivity(vctx, a.ValidateInput, in).Get(ctx, &validated); err != nil {
		return "", err
	}

	id := workflow.GetInfo(ctx).WorkflowExecution.ID
	pctx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID: "passive-" + id,
	})
	var domainsKey string
	if err := workflow.ExecuteChildWorkflow(pctx, PassiveWorkflow, validated.Domains).Get(ctx, &domainsKey); err != nil {
		return "", err
	}

	if validated.Complete {
		actx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: "active-" + id,
		})
		err := workflow.ExecuteChildWorkflow(actx, ActiveWorkflow, domainsKey, validated.WordlistPath, validated.Threads).
			Get(ctx, &domainsKey)
		if err != nil {
			return "", err
		}
	}

	hctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Minute,
		RetryPolicy:         retryTwice(casm.ErrBadInput, casm.ErrTool),
	})
	var httpxKey string
	if err := workflow.ExecuteActivity(hctx, a.RunHTTPX, domainsKey, validated.HTTPXPath).Get(ctx, &httpxKey); err != nil {
		return "", err
	}

	sctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
	})
	var response string
	if err := workflow.ExecuteActivity(sctx, a.PublishResults, httpxKey).Get(ctx, &response); err != nil {
		return "", err
	}
	return response, nil
}

// PassiveWorkflow runs subfinder and amass in parallel over the seed
// domains and merges their findings. It returns the blob key of the unique
// subdomain set.
func PassiveWorkflow(ctx workflow.Context, domains []string) (string, error) {
	var a *Activities

	tctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy:         singleAttempt,
	})
	subfinder := workflow.ExecuteActivity(tctx, a.RunSubfinder, domains)
	amass := workflow.ExecuteActivity(tctx, a.RunAmass, domains)

	var subfinderKey, amassKey string
	if err := subfinder.Get(ctx, &subfinderKey); err != nil {
		return "", err
	}
	if err := amass.Get(ctx, &amassKey); err != nil {
		return "", err
	}

	uctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         retryTwice(casm.ErrBadInput, casm.ErrNoDomainsFound),
	})
	var uniqueKey string
	if err := workflow.ExecuteActivity(uctx, a.UniqueSubdomains, []string{subfinderKey, amassKey}).Get(ctx, &uniqueKey); err != nil {
		return "", err
	}
	return uniqueKey, nil
}

// ActiveWorkflow chains bruteforce resolution, permutation generation, and
// a final resolve pass over the passively discovered set. It returns the
// blob key of the resolvable subdomains.
func ActiveWorkflow(ctx workflow.Context, passiveKey, wordlist string, threads int) (string, error) {
	var a *Activities
	policy := retryTwice(casm.ErrBadInput, casm.ErrTool)

	bctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         policy,
	})
	var bruteKey string
	if err := workflow.ExecuteActivity(bctx, a.RunDNSXBruteforce, passiveKey, wordlist, threads).Get(ctx, &bruteKey); err != nil {
		return "", err
	}

	actx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy:         policy,
	})
	var alterxKey string
	if err := workflow.ExecuteActivity(actx, a.RunAlterx, bruteKey).Get(ctx, &alterxKey); err != nil {
		return "", err
	}

	rctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy:         policy,
	})
	var resolvedKey string
	if err := workflow.ExecuteActivity(rctx, a.RunDNSXResolver, alterxKey).Get(ctx, &resolvedKey); err != nil {
		return "", err
	}
	return resolvedKey, nil
}

// Register wires the workflows and activities into a worker.
func Register(w worker.Registry, a *Activities) {
	w.RegisterWorkflow(ScanWorkflow)
	w.RegisterWorkflow(PassiveWorkflow)
	w.RegisterWorkflow(ActiveWorkflow)
	w.RegisterActivity(a)
}
