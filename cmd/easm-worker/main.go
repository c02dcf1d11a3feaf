// Easm-worker runs the external attack surface enumeration workflows.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/quay/zlog"
	"go.temporal.io/sdk/worker"

	"github.com/resilmesh/casm/internal/blob"
	"github.com/resilmesh/casm/internal/cmdutil"
	"github.com/resilmesh/casm/internal/config"
	"github.com/resilmesh/casm/internal/isim"
	"github.com/resilmesh/casm/internal/wfutil"
	"github.com/resilmesh/casm/temporal/easm"
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

	blobs := blob.New(cfg.Redis.Addr(), cfg.Redis.Username, cfg.Redis.Password)
	defer blobs.Close()

	w := worker.New(c, cfg.Temporal.EASMQueue, worker.Options{})
	easm.Register(w, &easm.Activities{
		Blob: blobs,
		ISIM: isim.New(cfg.ISIM.URL, nil),
	})
	zlog.Info(ctx).Str("queue", cfg.Temporal.EASMQueue).Msg("worker starting")
	return w.Run(worker.InterruptCh())
}
