package easm

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/quay/zlog"

	"github.com/resilmesh/casm"
	"github.com/resilmesh/casm/internal/blob"
	"github.com/resilmesh/casm/internal/cmdexec"
	"github.com/resilmesh/casm/internal/isim"
	"github.com/resilmesh/casm/internal/wfutil"
)

// Activities holds the enumeration activity implementations. Every method
// returning a string returns a blob key.
type Activities struct {
	Blob *blob.Store
	ISIM *isim.Client
	// HC fetches the technology fingerprints. Nil uses
	// [http.DefaultClient].
	HC *http.Client
	// FingerprintsURL overrides [DefaultFingerprintsURL] when set.
	FingerprintsURL string
}

// ValidateInput checks every seed domain and fills in defaults.
func (a *Activities) ValidateInput(ctx context.Context, in *ScanInput) (*ScanInput, error) {
	for _, d := range in.Domains {
		if !wfutil.ValidDomain(d) {
			return nil, wfutil.AppError(&casm.Error{
				Kind:    casm.ErrBadInput,
				Message: "invalid seed domain " + strconv.Quote(d),
			})
		}
	}
	out := *in
	if out.HTTPXPath == "" {
		out.HTTPXPath = "httpx"
	}
	if out.Threads == 0 {
		out.Threads = 100
	}
	return &out, nil
}

// RunSubfinder enumerates subdomains passively with subfinder.
func (a *Activities) RunSubfinder(ctx context.Context, domains []string) (string, error) {
	args := append([]string{"-d"}, domains...)
	args = append(args, "-silent")
	out, err := cmdexec.Run(ctx, "subfinder", args, nil)
	if err != nil {
		return "", wfutil.AppError(err)
	}
	key, err := a.Blob.Put(ctx, "subfinder", out)
	return key, wfutil.AppError(err)
}

// RunAmass enumerates subdomains passively with amass.
func (a *Activities) RunAmass(ctx context.Context, domains []string) (string, error) {
	args := append([]string{"enum", "-d"}, domains...)
	args = append(args, "-passive")
	out, err := cmdexec.Run(ctx, "amass", args, nil)
	if err != nil {
		return "", wfutil.AppError(err)
	}
	key, err := a.Blob.Put(ctx, "amass", out)
	return key, wfutil.AppError(err)
}

// UniqueSubdomains merges the listed blobs into one deduplicated set. An
// empty union means no tool found anything and the scan cannot continue.
func (a *Activities) UniqueSubdomains(ctx context.Context, keys []string) (string, error) {
	var parts []string
	for _, key := range keys {
		data, err := a.Blob.Get(ctx, key)
		if err != nil {
			zlog.Warn(ctx).Err(err).Str("key", key).Msg("skipping missing enumeration output")
			continue
		}
		parts = append(parts, string(data))
	}
	merged := uniqueLines(parts...)
	if merged == "" {
		return "", wfutil.AppError(&casm.Error{
			Kind:    casm.ErrNoDomainsFound,
			Message: "passive enumeration did not find any domains",
		})
	}
	key, err := a.Blob.Put(ctx, "unique_subdomains", []byte(merged))
	return key, wfutil.AppError(err)
}

// RunDNSXBruteforce bruteforces subdomains of the stored set with a
// wordlist.
func (a *Activities) RunDNSXBruteforce(ctx context.Context, domainsKey, wordlist string, threads int) (string, error) {
	domains, err := a.Blob.Get(ctx, domainsKey)
	if err != nil {
		return "", wfutil.AppError(err)
	}
	path, cleanup, err := cmdexec.TempInput(domains)
	if err != nil {
		return "", err
	}
	defer cleanup()
	args := []string{"-d", path, "-silent", "-w", wordlist, "-a", "-cname", "-aaaa", "-t", strconv.Itoa(threads)}
	out, err := cmdexec.Run(ctx, "dnsx", args, nil)
	if err != nil {
		return "", wfutil.AppError(err)
	}
	if len(out) == 0 {
		return "", wfutil.AppError(&casm.Error{
			Kind:    casm.ErrNoDomainsFound,
			Message: "bruteforce returned no results",
		})
	}
	key, err := a.Blob.Put(ctx, "dnsx-bruteforce", []byte(uniqueLines(string(out))))
	return key, wfutil.AppError(err)
}

// RunAlterx generates permutations of the stored subdomains.
func (a *Activities) RunAlterx(ctx context.Context, domainsKey string) (string, error) {
	domains, err := a.Blob.Get(ctx, domainsKey)
	if err != nil {
		return "", wfutil.AppError(err)
	}
	path, cleanup, err := cmdexec.TempInput(domains)
	if err != nil {
		return "", err
	}
	defer cleanup()
	out, err := cmdexec.Run(ctx, "alterx", []string{"-l", path, "-silent"}, nil)
	if err != nil {
		return "", wfutil.AppError(err)
	}
	key, err := a.Blob.Put(ctx, "alterx", out)
	return key, wfutil.AppError(err)
}

// RunDNSXResolver resolves the candidate set and keeps what answers.
func (a *Activities) RunDNSXResolver(ctx context.Context, domainsKey string) (string, error) {
	domains, err := a.Blob.Get(ctx, domainsKey)
	if err != nil {
		return "", wfutil.AppError(err)
	}
	path, cleanup, err := cmdexec.TempInput(domains)
	if err != nil {
		return "", err
	}
	defer cleanup()
	out, err := cmdexec.Run(ctx, "dnsx", []string{"-l", path, "-silent", "-a", "-aaaa", "-cname"}, nil)
	if err != nil {
		return "", wfutil.AppError(err)
	}
	if len(out) == 0 {
		return "", wfutil.AppError(&casm.Error{
			Kind:    casm.ErrNoDomainsFound,
			Message: "no candidate subdomains resolved",
		})
	}
	key, err := a.Blob.Put(ctx, "dnsx-resolver", []byte(uniqueLines(string(out))))
	return key, wfutil.AppError(err)
}

// RunHTTPX probes the stored domains and keeps the JSONL output with
// technology detection enabled.
func (a *Activities) RunHTTPX(ctx context.Context, domainsKey, httpxPath string) (string, error) {
	domains, err := a.Blob.Get(ctx, domainsKey)
	if err != nil {
		return "", wfutil.AppError(err)
	}
	path, cleanup, err := cmdexec.TempInput(domains)
	if err != nil {
		return "", err
	}
	defer cleanup()
	out, err := cmdexec.Run(ctx, httpxPath, []string{"-l", path, "-silent", "-td", "-j"}, nil)
	if err != nil {
		return "", wfutil.AppError(err)
	}
	key, err := a.Blob.Put(ctx, "httpx", out)
	return key, wfutil.AppError(err)
}

// PublishResults parses the stored probe output, maps detected technologies
// to CPE identifiers, and posts the records to the inventory API.
func (a *Activities) PublishResults(ctx context.Context, httpxKey string) (string, error) {
	raw, err := a.Blob.Get(ctx, httpxKey)
	if err != nil {
		return "", wfutil.AppError(err)
	}
	records, err := ParseHTTPX(raw)
	if err != nil {
		return "", wfutil.AppError(err)
	}
	if needsFingerprints(records) {
		fp, err := a.fetchFingerprints(ctx)
		if err != nil {
			return "", wfutil.AppError(err)
		}
		applyFingerprints(records, fp)
	}
	if err := a.ISIM.StoreEASM(ctx, records); err != nil {
		return "", wfutil.AppError(err)
	}
	zlog.Info(ctx).
		Str("component", "temporal/easm").
		Int("records", len(records)).
		Msg("published enumeration results")
	return "processed successfully", nil
}

// uniqueLines merges newline-separated inputs into one deduplicated list,
// keeping first-seen order.
func uniqueLines(parts ...string) string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range parts {
		for _, line := range strings.Split(part, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if _, ok := seen[line]; ok {
				continue
			}
			seen[line] = struct{}{}
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
