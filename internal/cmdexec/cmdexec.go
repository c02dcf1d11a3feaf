// Package cmdexec runs the external scanning tools.
//
// Tools are run under the caller's context: cancellation sends SIGTERM and
// escalates to SIGKILL after a grace period. Output is decoded to valid
// UTF-8, falling back to a Latin decoding for tools that emit banner bytes
// outside ASCII.
package cmdexec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/quay/zlog"
	"golang.org/x/text/encoding/charmap"

	casm "github.com/resilmesh/casm"
)

const killDelay = 10 * time.Second

// Run executes the tool with args, feeding stdin when non-nil, and returns
// decoded stdout. A nonzero exit returns a tool error carrying a tail of
// stderr.
func Run(ctx context.Context, tool string, args []string, stdin []byte) ([]byte, error) {
	ctx = zlog.ContextWithValues(ctx, "tool", tool)
	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = killDelay
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	zlog.Debug(ctx).Strs("args", args).Msg("running tool")
	err := cmd.Run()
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, context.Cause(ctx)
	default:
		var exit *exec.ExitError
		if errors.As(err, &exit) {
			zlog.Warn(ctx).
				Int("exit_code", exit.ExitCode()).
				Msg("tool failed")
			return nil, casm.ToolError(tool, exit.ExitCode(), tail(stderr.Bytes()))
		}
		return nil, casm.ToolError(tool, -1, err.Error())
	}
	return decode(stdout.Bytes()), nil
}

// decode returns b when it is valid UTF-8, otherwise reinterprets it as
// ISO 8859-2.
func decode(b []byte) []byte {
	if utf8.Valid(b) {
		return b
	}
	out, err := charmap.ISO8859_2.NewDecoder().Bytes(b)
	if err != nil {
		return b
	}
	return out
}

// tail returns the last few lines of stderr for the error message.
func tail(b []byte) string {
	const maxLen = 512
	b = bytes.TrimSpace(b)
	if len(b) > maxLen {
		b = b[len(b)-maxLen:]
	}
	return string(b)
}
