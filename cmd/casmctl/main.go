// Casmctl starts the scanning workflows by hand.
//
//	casmctl [flags] easm|nmap-basic|nmap-topology|criticality
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/quay/zlog"
	"go.temporal.io/sdk/client"

	"github.com/resilmesh/casm/internal/cmdutil"
	"github.com/resilmesh/casm/internal/config"
	"github.com/resilmesh/casm/internal/wfutil"
	"github.com/resilmesh/casm/temporal/csa"
	"github.com/resilmesh/casm/temporal/easm"
	"github.com/resilmesh/casm/temporal/nmapscan"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to the configuration file")
		logLevel   = flag.String("log-level", "info", "log level: debug, info, warn, error")
		wait       = flag.Bool("wait", false, "wait for the workflow to finish")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: casmctl [flags] easm|nmap-basic|nmap-topology|criticality")
		os.Exit(2)
	}

	ctx, stop := cmdutil.Context(*logLevel)
	defer stop()
	if err := run(ctx, *configPath, flag.Arg(0), *wait); err != nil {
		zlog.Error(ctx).Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, name string, wait bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateTemporal(); err != nil {
		return err
	}

	var (
		queue string
		wf    any
		args  []any
	)
	switch name {
	case "easm":
		if err := cfg.ValidateEASM(); err != nil {
			return err
		}
		queue, wf = cfg.Temporal.EASMQueue, easm.ScanWorkflow
		args = append(args, easm.InputFromConfig(&cfg.EASM))
	case "nmap-basic":
		queue, wf = cfg.Temporal.NmapQueue, nmapscan.BasicWorkflow
		args = append(args, nmapscan.BasicInputFromConfig(&cfg.NmapBasic))
	case "nmap-topology":
		queue, wf = cfg.Temporal.NmapQueue, nmapscan.TopologyWorkflow
		args = append(args, nmapscan.TopologyInputFromConfig(&cfg.NmapTopology))
	case "criticality":
		queue, wf = cfg.Temporal.CSAQueue, csa.CriticalityWorkflow
	default:
		return fmt.Errorf("unknown workflow %q", name)
	}

	c, err := wfutil.Dial(ctx, &cfg.Temporal)
	if err != nil {
		return err
	}
	defer c.Close()

	opts := client.StartWorkflowOptions{
		ID:        uuid.NewString(),
		TaskQueue: queue,
	}
	wr, err := c.ExecuteWorkflow(ctx, opts, wf, args...)
	if err != nil {
		return err
	}
	zlog.Info(ctx).
		Str("workflow", name).
		Str("id", wr.GetID()).
		Str("run_id", wr.GetRunID()).
		Msg("workflow started")
	if !wait {
		return nil
	}
	if err := wr.Get(ctx, nil); err != nil {
		return err
	}
	zlog.Info(ctx).Str("workflow", name).Msg("workflow finished")
	return nil
}
