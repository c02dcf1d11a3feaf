package cveupdate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quay/zlog"

	"github.com/resilmesh/casm/datastore"
	"github.com/resilmesh/casm/internal/wfutil"
	"github.com/resilmesh/casm/nvd"
	"github.com/resilmesh/casm/pkg/cpe"
)

// matchChunk is how many records go to the matcher at once.
const matchChunk = 100

// Activities holds the sweep activity implementation.
type Activities struct {
	Store   datastore.VersionStore
	Client  *nvd.Client
	Matcher *nvd.Matcher
}

// UpdateCVEs sweeps every stored software version: fetch the CVEs modified
// since the version's watermark, match them into the graph, and move the
// watermark to the workflow's start time. Problems with a single version are
// logged and skip to the next one; only losing the store aborts the sweep.
func (a *Activities) UpdateCVEs(ctx context.Context, workflowStart string) (string, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "temporal/cveupdate")
	versions, err := a.Store.AllSoftwareVersions(ctx)
	if err != nil {
		return "", wfutil.AppError(err)
	}
	if len(versions) == 0 {
		zlog.Info(ctx).Msg("no software versions stored")
		return "no software versions stored", nil
	}
	zlog.Info(ctx).Int("versions", len(versions)).Msg("sweep started")

	for _, sv := range versions {
		ctx := zlog.ContextWithValues(ctx, "version", sv.Version)
		id, ok := parseVersionKey(sv.Version)
		if !ok {
			zlog.Warn(ctx).Msg("malformed software version key, skipping")
			continue
		}
		if err := a.sweepVersion(ctx, id, sv); err != nil {
			zlog.Error(ctx).Err(err).Msg("version sweep failed")
			continue
		}
		// The watermark moves to the workflow start so records modified
		// during the sweep are picked up next time.
		if err := a.Store.UpdateVersionTimestamp(ctx, sv.Version, workflowStart); err != nil {
			return "", wfutil.AppError(err)
		}
	}
	return fmt.Sprintf("executed CVE download for %d software versions", len(versions)), nil
}

// sweepVersion pages through the version's CVEs and hands each page to the
// matcher in chunks.
func (a *Activities) sweepVersion(ctx context.Context, id cpe.Identifier, sv datastore.StoredVersion) error {
	lastMod := watermark(ctx, sv.CVETimestamp)
	for startIndex := 0; ; startIndex += nvd.PageStep {
		page, err := a.Client.ByCPE(ctx, id, lastMod, startIndex)
		if err != nil {
			return err
		}
		recs := nvd.Parse(ctx, page.Items())
		zlog.Info(ctx).
			Int("start_index", startIndex).
			Int("records", len(recs)).
			Msg("page fetched")
		for len(recs) > 0 {
			n := min(matchChunk, len(recs))
			if err := a.Matcher.MoveCVEData(ctx, recs[:n], sv.Version); err != nil {
				return err
			}
			recs = recs[n:]
		}
		if !page.More() {
			return nil
		}
	}
}

// parseVersionKey splits a vendor:product:version software key into a CPE
// identifier. The version keeps any colons of its own.
func parseVersionKey(key string) (cpe.Identifier, bool) {
	fields := strings.SplitN(key, ":", 3)
	if len(fields) != 3 || fields[0] == "" || fields[1] == "" || fields[2] == "" {
		return cpe.Identifier{}, false
	}
	return cpe.Identifier{
		Part:    "a",
		Vendor:  fields[0],
		Product: fields[1],
		Version: fields[2],
	}, true
}

// watermark parses a stored sweep timestamp. Versions never swept, or with
// an unreadable timestamp, get a full fetch.
func watermark(ctx context.Context, ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		zlog.Warn(ctx).Str("timestamp", ts).Msg("unreadable sweep watermark, fetching everything")
		return time.Time{}
	}
	return t
}
