package slpenrich

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/quay/zlog"

	"github.com/resilmesh/casm"
	"github.com/resilmesh/casm/internal/isim"
	"github.com/resilmesh/casm/internal/wfutil"
)

// DefaultLookupURL is the Silent Push bulk ip2asn endpoint.
const DefaultLookupURL = `https://api.silentpush.com/api/v1/merge-api/explore/bulk/ip2asn/ipv4`

// The enrichment tags. Tagged addresses are skipped on the next sweep;
// TagNoData marks domains the lookup had nothing for.
const (
	Tag       = "SLP"
	TagNoData = "SLP_no"
)

// pageLimit is both the listing page size and the per-sweep address cap.
const pageLimit = 100

// Activities holds the enrichment activity implementations.
type Activities struct {
	ISIM   *isim.Client
	APIKey string
	// HC performs the lookup calls. Nil uses [http.DefaultClient].
	HC *http.Client
	// LookupURL overrides [DefaultLookupURL] when set.
	LookupURL string
}

// AssetRow is one address/domain/subnet combination pulled from the
// inventory listing. Domain and Subnet are empty when the address has none.
type AssetRow struct {
	Address string `json:"address"`
	Domain  string `json:"domain"`
	Subnet  string `json:"subnet"`
}

// CollectAssets pages through the address listing and gathers rows not yet
// carrying an enrichment tag, up to one sweep's worth.
func (a *Activities) CollectAssets(ctx context.Context) ([]AssetRow, error) {
	var rows []AssetRow
	for offset := 0; len(rows) < pageLimit; offset += pageLimit {
		page, err := a.ISIM.IPs(ctx, pageLimit, offset)
		if err != nil {
			return nil, wfutil.AppError(err)
		}
		for _, rec := range page {
			if len(rows) == pageLimit {
				break
			}
			row, ok := assetRow(rec)
			if ok {
				rows = append(rows, row)
			}
		}
		if len(page) < pageLimit {
			break
		}
	}
	zlog.Info(ctx).
		Str("component", "temporal/slpenrich").
		Int("rows", len(rows)).
		Msg("unenriched addresses collected")
	return rows, nil
}

// assetRow extracts the address, domain, and subnet from one listing record.
// Records whose address already carries the enrichment tag report false.
func assetRow(rec map[string]any) (AssetRow, bool) {
	ip, _ := rec["ip"].(map[string]any)
	addr, _ := ip["address"].(string)
	if addr == "" {
		return AssetRow{}, false
	}
	if tags, ok := ip["tag"].([]any); ok {
		for _, t := range tags {
			if t == Tag {
				return AssetRow{}, false
			}
		}
	}
	row := AssetRow{Address: addr}
	if d, ok := rec["d"].(map[string]any); ok {
		row.Domain, _ = d["domain_name"].(string)
	}
	if s, ok := rec["s"].(map[string]any); ok {
		row.Subnet, _ = s["range"].(string)
	}
	return row, true
}

type ip2asnRecord struct {
	IP          string          `json:"ip"`
	IPPtr       string          `json:"ip_ptr"`
	Subnet      string          `json:"subnet"`
	SPRiskScore json.RawMessage `json:"sp_risk_score"`
}

type lookupResponse struct {
	StatusCode int    `json:"status_code"`
	Error      any    `json:"error"`
	Response   struct {
		IP2ASN []ip2asnRecord `json:"ip2asn"`
	} `json:"response"`
}

// FetchEnrichment looks the collected addresses up in bulk and builds the
// records to store. Every lookup hit becomes a record tagged [Tag]; inventory
// domains the lookup did not confirm get a [TagNoData] record so the address
// is not swept again.
func (a *Activities) FetchEnrichment(ctx context.Context, rows []AssetRow) ([]casm.SLPRecord, error) {
	records := []casm.SLPRecord{}
	pending := make(map[string][]AssetRow)
	var ips []string
	for _, row := range rows {
		// External data about the loopback address does not exist.
		if row.Address == "127.0.0.1" {
			continue
		}
		if _, ok := pending[row.Address]; !ok {
			ips = append(ips, row.Address)
		}
		pending[row.Address] = append(pending[row.Address], row)
	}
	if len(ips) == 0 {
		return records, nil
	}

	res, err := a.lookup(ctx, ips)
	if err != nil {
		return nil, wfutil.AppError(err)
	}
	confirmed := make(map[AssetRow]struct{})
	if res.StatusCode == http.StatusOK && res.Error == nil {
		for _, hit := range res.Response.IP2ASN {
			if hit.IP == "" {
				continue
			}
			rec := casm.SLPRecord{
				IP:          hit.IP,
				Domain:      hit.IPPtr,
				Subnet:      hit.Subnet,
				SPRiskScore: scoreValue(hit.SPRiskScore),
				Tag:         Tag,
			}
			if rec.Subnet == "" {
				rec.Subnet = "0.0.0.0/0"
			}
			records = append(records, rec)
			for _, row := range pending[hit.IP] {
				if row.Domain == hit.IPPtr {
					confirmed[row] = struct{}{}
				}
			}
		}
	} else {
		zlog.Warn(ctx).
			Int("status_code", res.StatusCode).
			Msg("enrichment lookup reported an error")
	}

	seen := make(map[casm.SLPRecord]struct{})
	for _, ip := range ips {
		for _, row := range pending[ip] {
			if _, ok := confirmed[row]; ok {
				continue
			}
			rec := casm.SLPRecord{
				IP:          ip,
				Domain:      row.Domain,
				Subnet:      row.Subnet,
				SPRiskScore: "null",
				Tag:         TagNoData,
			}
			if rec.Subnet == "" {
				rec.Subnet = "0.0.0.0/0"
			}
			if _, ok := seen[rec]; ok {
				continue
			}
			seen[rec] = struct{}{}
			records = append(records, rec)
		}
	}
	return records, nil
}

// scoreValue decodes the risk score, which the service reports as a number.
// A missing score stores as the string "null".
func scoreValue(raw json.RawMessage) any {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "null"
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "null"
	}
	return v
}

// StoreEnrichment posts the enrichment records to the inventory API.
func (a *Activities) StoreEnrichment(ctx context.Context, records []casm.SLPRecord) error {
	return wfutil.AppError(a.ISIM.StoreSLP(ctx, records))
}

func (a *Activities) lookup(ctx context.Context, ips []string) (*lookupResponse, error) {
	u := a.LookupURL
	if u == "" {
		u = DefaultLookupURL
	}
	hc := a.HC
	if hc == nil {
		hc = http.DefaultClient
	}
	body, err := json.Marshal(map[string][]string{"ips": ips})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", a.APIKey)
	res, err := hc.Do(req)
	if err != nil {
		return nil, &casm.Error{Kind: casm.ErrTransient, Op: "slpenrich: bulk lookup", Inner: err}
	}
	defer res.Body.Close()
	var out lookupResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, &casm.Error{Kind: casm.ErrTransient, Op: "slpenrich: decoding lookup response", Inner: err}
	}
	return &out, nil
}
