// Isim serves the asset inventory REST API over the Neo4j graph store and
// runs the periodic expiry of aged graph data.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quay/zlog"
	"golang.org/x/sync/errgroup"

	"github.com/resilmesh/casm/datastore"
	"github.com/resilmesh/casm/datastore/neo4j"
	"github.com/resilmesh/casm/httpapi"
	"github.com/resilmesh/casm/internal/cmdutil"
	"github.com/resilmesh/casm/internal/config"
)

func main() {
	var (
		configPath    = flag.String("config", "config.yaml", "path to the configuration file")
		listenAddr    = flag.String("listen", ":8000", "address to serve the API on")
		logLevel      = flag.String("log-level", "info", "log level: debug, info, warn, error")
		cleanInterval = flag.Duration("clean-interval", 24*time.Hour, "how often aged graph data is expired")
	)
	flag.Parse()

	ctx, stop := cmdutil.Context(*logLevel)
	defer stop()
	if err := run(ctx, *configPath, *listenAddr, *cleanInterval); err != nil {
		zlog.Error(ctx).Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, listenAddr string, cleanInterval time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
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
	if err := store.InitSchema(ctx); err != nil {
		return err
	}

	api := &httpapi.Server{
		Assets:      store,
		Missions:    store,
		Inventory:   store,
		CVEs:        store,
		Topology:    store,
		Centrality:  store,
		Criticality: store,
		Hierarchy:   store,
		SLP:         store,
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", api.Handler())
	srv := &http.Server{
		Addr:        listenAddr,
		Handler:     mux,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		zlog.Info(ctx).Str("addr", listenAddr).Msg("serving inventory API")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	eg.Go(func() error {
		cleanLoop(ctx, store, cleanInterval)
		return nil
	})
	return eg.Wait()
}

// cleanLoop periodically expires aged vulnerability links, host and network
// layer relationships, and security events. Failures are logged and retried
// on the next tick.
func cleanLoop(ctx context.Context, c datastore.Cleaner, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		for _, clean := range []struct {
			name string
			fn   func(context.Context) error
		}{
			{"vulnerabilities", c.CleanOldVulnerabilities},
			{"host layer", c.CleanHostLayer},
			{"network layer", c.CleanNetworkLayer},
			{"security events", c.CleanSecurityEvents},
		} {
			if err := clean.fn(ctx); err != nil {
				zlog.Error(ctx).Err(err).Str("target", clean.name).Msg("expiry pass failed")
			}
		}
	}
}
