package nvd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/quay/zlog"
	"golang.org/x/time/rate"

	"github.com/resilmesh/casm"
	"github.com/resilmesh/casm/pkg/cpe"
)

const (
	// DefaultRoot is the CVE API endpoint.
	DefaultRoot = `https://services.nvd.nist.gov/rest/json/cves/2.0`
	// DefaultMatchRoot is the cpematch API endpoint.
	DefaultMatchRoot = `https://services.nvd.nist.gov/rest/json/cpematch/2.0`
	// PageStep is how far the start index advances between page fetches.
	PageStep = 2000
	// requestPace is the public rate limit of the API.
	requestPace = 6 * time.Second
)

var cveIDPattern = regexp.MustCompile(`^CVE-\d{4}-\d{4,}$`)

// Client is a paced NVD 2.0 API client. All calls honor the public rate
// limit; an API key raises the allowance on the server side but not the
// local pacing.
type Client struct {
	// Root and MatchRoot may be overridden before first use.
	Root      string
	MatchRoot string

	c       *http.Client
	apiKey  string
	limiter *rate.Limiter
}

// NewClient returns a Client using hc, or [http.DefaultClient] when hc is
// nil. The apiKey may be empty.
func NewClient(hc *http.Client, apiKey string) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		Root:      DefaultRoot,
		MatchRoot: DefaultMatchRoot,
		c:         hc,
		apiKey:    apiKey,
		limiter:   rate.NewLimiter(rate.Every(requestPace), 1),
	}
}

// ByID fetches a single CVE by identifier.
func (c *Client) ByID(ctx context.Context, id string) (*Page, error) {
	const op = `nvd/Client.ByID`
	if !cveIDPattern.MatchString(id) {
		return nil, &casm.Error{
			Kind:    casm.ErrBadInput,
			Op:      op,
			Message: fmt.Sprintf("malformed CVE id %q", id),
		}
	}
	var page Page
	if err := c.do(ctx, c.Root+"?cveId="+url.QueryEscape(id), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ByCPE fetches CVEs applicable to the identified product version. A nonzero
// lastMod restricts results to records modified since that instant; the
// window closes one hour after the call. StartIndex pages through large
// result sets.
func (c *Client) ByCPE(ctx context.Context, id cpe.Identifier, lastMod time.Time, startIndex int) (*Page, error) {
	name := fmt.Sprintf("cpe:2.3:%s:%s:%s:%s", id.Part, id.Vendor, id.Product, id.Version)
	// isVulnerable is a valueless parameter.
	q := "cpeName=" + url.QueryEscape(name) +
		"&isVulnerable" +
		"&startIndex=" + strconv.Itoa(startIndex)
	if !lastMod.IsZero() {
		end := time.Now().UTC().Add(time.Hour)
		q += "&lastModStartDate=" + url.QueryEscape(lastMod.Format(time.RFC3339)) +
			"&lastModEndDate=" + url.QueryEscape(end.Format(time.RFC3339))
	}
	var page Page
	if err := c.do(ctx, c.Root+"?"+q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ByDateRange fetches CVEs modified inside [start, end].
func (c *Client) ByDateRange(ctx context.Context, start, end time.Time, startIndex int) (*Page, error) {
	const op = `nvd/Client.ByDateRange`
	if start.After(end) {
		return nil, &casm.Error{
			Kind:    casm.ErrBadInput,
			Op:      op,
			Message: "start of modification window is after its end",
		}
	}
	q := "lastModStartDate=" + url.QueryEscape(start.Format(time.RFC3339)) +
		"&lastModEndDate=" + url.QueryEscape(end.Format(time.RFC3339)) +
		"&startIndex=" + strconv.Itoa(startIndex)
	var page Page
	if err := c.do(ctx, c.Root+"?"+q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// MatchData fetches the cpematch expansion of a match criteria.
func (c *Client) MatchData(ctx context.Context, matchCriteriaID string) (*MatchPage, error) {
	var page MatchPage
	u := c.MatchRoot + "?matchCriteriaId=" + url.QueryEscape(matchCriteriaID)
	if err := c.do(ctx, u, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) do(ctx context.Context, u string, into any) error {
	const op = `nvd/Client.do`
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("apiKey", c.apiKey)
	}
	res, err := c.c.Do(req)
	if err != nil {
		requestCounter.WithLabelValues("error").Inc()
		return &casm.Error{Kind: casm.ErrTransient, Op: op, Inner: err}
	}
	defer res.Body.Close()
	requestCounter.WithLabelValues(strconv.Itoa(res.StatusCode)).Inc()
	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		zlog.Warn(ctx).Str("url", u).Msg("rate limited")
		return &casm.Error{Kind: casm.ErrRateLimited, Op: op, Message: res.Status}
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return &casm.Error{Kind: casm.ErrTransient, Op: op, Message: res.Status}
	default:
		return fmt.Errorf("nvd: unexpected response: %s", res.Status)
	}
	if err := json.NewDecoder(res.Body).Decode(into); err != nil {
		return fmt.Errorf("nvd: decoding response: %w", err)
	}
	return nil
}
