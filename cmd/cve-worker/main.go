// Cve-worker runs the scheduled CVE sweep workflow against the graph store.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/quay/zlog"
	"go.temporal.io/sdk/worker"

	"github.com/resilmesh/casm/datastore/neo4j"
	"github.com/resilmesh/casm/internal/cmdutil"
	"github.com/resilmesh/casm/internal/config"
	"github.com/resilmesh/casm/internal/wfutil"
	"github.com/resilmesh/casm/nvd"
	"github.com/resilmesh/casm/temporal/cveupdate"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to the configuration file")
		logLevel   = flag.String("log-level", "info", "log level: debug, info, warn, error")
	)
	flag.Parse()

	ctx, stop := cmdutil.Context(*logLevel)
	defer stop()
	if err := run(ctx, *configPath); err != nil {
		zlog.Error(ctx).Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateTemporal(); err != nil {
		return err
	}
	if err := cfg.ValidateNeo4j(); err != nil {
		return err
	}

	store, err := neo4j.New(ctx, cfg.Neo4j.Bolt, cfg.Neo4j.User, cfg.Neo4j.Password)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	c, err := wfutil.Dial(ctx, &cfg.Temporal)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := cveupdate.EnsureSchedule(ctx, c, cfg.Temporal.CVEQueue); err != nil {
		return err
	}

	client := nvd.NewClient(nil, cfg.CVE.NVDAPIKey)
	w := worker.New(c, cfg.Temporal.CVEQueue, worker.Options{})
	cveupdate.Register(w, &cveupdate.Activities{
		Store:   store,
		Client:  client,
		Matcher: nvd.NewMatcher(store, client),
	})
	zlog.Info(ctx).Str("queue", cfg.Temporal.CVEQueue).Msg("worker starting")
	return w.Run(worker.InterruptCh())
}
