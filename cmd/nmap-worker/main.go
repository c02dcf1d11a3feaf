// Nmap-worker runs the host discovery and topology scan workflows.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/quay/zlog"
	"go.temporal.io/sdk/worker"

	"github.com/resilmesh/casm/internal/cmdutil"
	"github.com/resilmesh/casm/internal/config"
	"github.com/resilmesh/casm/internal/isim"
	"github.com/resilmesh/casm/internal/wfutil"
	"github.com/resilmesh/casm/temporal/nmapscan"
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

	c, err := wfutil.Dial(ctx, &cfg.Temporal)
	if err != nil {
		return err
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.NmapQueue, worker.Options{})
	nmapscan.Register(w, &nmapscan.Activities{
		ISIM: isim.New(cfg.ISIM.URL, nil),
	})
	zlog.Info(ctx).Str("queue", cfg.Temporal.NmapQueue).Msg("worker starting")
	return w.Run(worker.InterruptCh())
}
