package nmapscan

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/quay/zlog"

	"github.com/resilmesh/casm"
	"github.com/resilmesh/casm/internal/cmdexec"
	"github.com/resilmesh/casm/internal/isim"
	"github.com/resilmesh/casm/internal/wfutil"
)

// DefaultIdentURL answers with the caller's public address. The traceroute
// hop chains start from it.
const DefaultIdentURL = `https://ident.me`

// Activities holds the scan activity implementations.
type Activities struct {
	ISIM *isim.Client
	// HC fetches the public source address. Nil uses
	// [http.DefaultClient].
	HC *http.Client
	// IdentURL overrides [DefaultIdentURL] when set.
	IdentURL string
}

// ValidateBasicInput checks the discovery scan targets.
func (a *Activities) ValidateBasicInput(ctx context.Context, in *BasicInput) (*BasicInput, error) {
	if err := validTargets(in.Targets); err != nil {
		return nil, wfutil.AppError(err)
	}
	return in, nil
}

// ValidateTopologyInput checks the traceroute scan targets.
func (a *Activities) ValidateTopologyInput(ctx context.Context, in *TopologyInput) (*TopologyInput, error) {
	if err := validTargets(in.Targets); err != nil {
		return nil, wfutil.AppError(err)
	}
	return in, nil
}

func validTargets(targets []string) error {
	if len(targets) == 0 {
		return &casm.Error{Kind: casm.ErrBadInput, Message: "no scan targets"}
	}
	for _, t := range targets {
		if !wfutil.ValidTarget(t) {
			return &casm.Error{Kind: casm.ErrBadInput, Message: "invalid scan target " + strconv.Quote(t)}
		}
	}
	return nil
}

// RunBasicScan executes the discovery scan and returns the raw XML report.
func (a *Activities) RunBasicScan(ctx context.Context, targets, arguments []string) ([]byte, error) {
	args := append([]string{"-oX", "-"}, arguments...)
	args = append(args, targets...)
	out, err := cmdexec.Run(ctx, "nmap", args, nil)
	return out, wfutil.AppError(err)
}

// RunTracerouteScan runs a ping scan with traceroute per target and builds
// the hop chains, each starting from this machine's public address.
func (a *Activities) RunTracerouteScan(ctx context.Context, targets []string) (*casm.Traceroute, error) {
	sourceIP := a.publicIP(ctx)
	trace := &casm.Traceroute{
		Data: []casm.TraceroutePath{},
		Time: time.Now().Truncate(time.Second).Format("2006-01-02T15:04:05"),
	}
	for _, target := range targets {
		zlog.Info(ctx).
			Str("component", "temporal/nmapscan").
			Str("target", target).
			Msg("topology scan started")
		out, err := cmdexec.Run(ctx, "nmap", []string{"-oX", "-", "-sn", "-n", "--traceroute", target}, nil)
		if err != nil {
			return nil, wfutil.AppError(err)
		}
		paths, err := ParseTraceroute(out, sourceIP)
		if err != nil {
			return nil, wfutil.AppError(err)
		}
		trace.Data = append(trace.Data, paths...)
	}
	return trace, nil
}

// PublishAssets posts the parsed scan results to the inventory API.
func (a *Activities) PublishAssets(ctx context.Context, list *casm.AssetList) error {
	return wfutil.AppError(a.ISIM.StoreAssets(ctx, list))
}

// PublishTraceroute posts the hop graph to the inventory API.
func (a *Activities) PublishTraceroute(ctx context.Context, t *casm.Traceroute) error {
	return wfutil.AppError(a.ISIM.StoreTraceroute(ctx, t))
}

// publicIP asks the ident service for the machine's public address. An
// unreachable service degrades to an empty source, matching hop chains that
// simply start at the first observed router.
func (a *Activities) publicIP(ctx context.Context) string {
	u := a.IdentURL
	if u == "" {
		u = DefaultIdentURL
	}
	hc := a.HC
	if hc == nil {
		hc = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return ""
	}
	res, err := hc.Do(req)
	if err != nil {
		zlog.Warn(ctx).Err(err).Msg("public address lookup failed")
		return ""
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 64))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(body))
}
