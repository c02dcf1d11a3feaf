// Package wfutil holds the pieces shared by every Temporal worker: the
// paced dial loop and the error translation from the pipeline's error domain
// to typed application errors.
package wfutil

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/quay/zlog"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"github.com/resilmesh/casm"
	"github.com/resilmesh/casm/internal/config"
)

// dialPace is the wait between connection attempts while the workflow
// service comes up.
const dialPace = 10 * time.Second

// Dial connects to the workflow service, retrying at a fixed pace for the
// configured number of attempts. Workers start alongside the service in
// container deployments and must outwait it.
func Dial(ctx context.Context, cfg *config.Temporal) (client.Client, error) {
	attempt := 0
	op := func() (client.Client, error) {
		attempt++
		c, err := client.Dial(client.Options{
			HostPort:  cfg.URL,
			Namespace: cfg.Namespace,
		})
		if err != nil {
			zlog.Warn(ctx).
				Err(err).
				Int("attempt", attempt).
				Str("host_port", cfg.URL).
				Msg("workflow service not reachable yet")
			return nil, err
		}
		return c, nil
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(dialPace)),
		backoff.WithMaxTries(uint(cfg.DialAttempts)))
}

// AppError converts a pipeline error to a Temporal application error typed
// by its kind, so retry policies can match classes by name. Errors outside
// the pipeline's domain pass through unchanged.
func AppError(err error) error {
	if err == nil {
		return nil
	}
	var ce *casm.Error
	if errors.As(err, &ce) {
		return temporal.NewApplicationErrorWithCause(ce.Error(), string(ce.Kind), err)
	}
	return err
}
