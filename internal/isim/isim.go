// Package isim is the HTTP client the workflow activities use to talk to
// the inventory API.
package isim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/resilmesh/casm"
)

// Client calls the inventory API. The zero http.Client default has no
// timeout on purpose: activity deadlines bound every call.
type Client struct {
	base string
	hc   *http.Client
}

// New returns a Client for the API at base. A nil hc uses
// [http.DefaultClient].
func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: base, hc: hc}
}

// StoreAssets posts an inventory submission.
func (c *Client) StoreAssets(ctx context.Context, list *casm.AssetList) error {
	return c.post(ctx, "/assets", list)
}

// StoreEASM posts exposed-service records.
func (c *Client) StoreEASM(ctx context.Context, records []casm.EASMRecord) error {
	return c.post(ctx, "/easm", records)
}

// StoreTraceroute posts a topology scan.
func (c *Client) StoreTraceroute(ctx context.Context, t *casm.Traceroute) error {
	return c.post(ctx, "/traceroute", t)
}

// StoreSLP posts enrichment records.
func (c *Client) StoreSLP(ctx context.Context, records []casm.SLPRecord) error {
	return c.post(ctx, "/slp_enrichment", records)
}

// StoreCriticality posts computed host criticalities.
func (c *Client) StoreCriticality(ctx context.Context, results []casm.MissionCriticality) error {
	return c.post(ctx, "/nodes/store_criticality", results)
}

// Compute triggers a computation endpoint, e.g.
// "/nodes/betweenness_centrality".
func (c *Client) Compute(ctx context.Context, path string) error {
	return c.post(ctx, path, nil)
}

// Missions fetches the stored missions as property maps.
func (c *Client) Missions(ctx context.Context) ([]map[string]any, error) {
	var out []map[string]any
	if err := c.get(ctx, "/missions", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IPs fetches one page of the address listing.
func (c *Client) IPs(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	var out []map[string]any
	path := fmt.Sprintf("/ips?limit=%d&offset=%d", limit, offset)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("isim: encoding %s payload: %w", path, err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.hc.Do(req)
	if err != nil {
		return &casm.Error{Kind: casm.ErrTransient, Op: "isim: POST " + path, Inner: err}
	}
	defer res.Body.Close()
	return c.check(path, res)
}

func (c *Client) get(ctx context.Context, path string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	res, err := c.hc.Do(req)
	if err != nil {
		return &casm.Error{Kind: casm.ErrTransient, Op: "isim: GET " + path, Inner: err}
	}
	defer res.Body.Close()
	if err := c.check(path, res); err != nil {
		return err
	}
	if err := json.NewDecoder(res.Body).Decode(into); err != nil {
		return fmt.Errorf("isim: decoding %s response: %w", path, err)
	}
	return nil
}

// check maps the response status onto the error domain: validation rejects
// are permanent, everything else non-2xx is worth a retry.
func (c *Client) check(path string, res *http.Response) error {
	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return nil
	case res.StatusCode == http.StatusUnprocessableEntity:
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &casm.Error{
			Kind:    casm.ErrBadInput,
			Op:      "isim: " + path,
			Message: string(bytes.TrimSpace(body)),
		}
	default:
		return &casm.Error{
			Kind:    casm.ErrTransient,
			Op:      "isim: " + path,
			Message: res.Status,
		}
	}
}
