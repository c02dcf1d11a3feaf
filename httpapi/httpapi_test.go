package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/resilmesh/casm"
)

type fakeBackend struct {
	assets       *casm.AssetList
	easm         []casm.EASMRecord
	graph        *casm.MissionGraph
	traceroute   *casm.Traceroute
	criticality  []casm.MissionCriticality
	slp          []casm.SLPRecord
	synced       bool
	combined     bool
	computations []string

	missions []map[string]any
	lists    []map[string]any
	infos    []casm.IPAssetInfo

	limit, offset int
	cveID, ip     string

	err error
}

func (f *fakeBackend) StoreAssets(_ context.Context, l *casm.AssetList) error {
	f.assets = l
	return f.err
}

func (f *fakeBackend) StoreEASM(_ context.Context, recs []casm.EASMRecord) error {
	f.easm = recs
	return f.err
}

func (f *fakeBackend) StoreMissionGraph(_ context.Context, g *casm.MissionGraph) error {
	f.graph = g
	return f.err
}

func (f *fakeBackend) Missions(_ context.Context, limit int) ([]map[string]any, error) {
	f.limit = limit
	return f.missions, f.err
}

func (f *fakeBackend) list(limit, offset int) ([]map[string]any, error) {
	f.limit, f.offset = limit, offset
	return f.lists, f.err
}

func (f *fakeBackend) IPAssets(_ context.Context, limit, offset int) ([]map[string]any, error) {
	return f.list(limit, offset)
}

func (f *fakeBackend) Subnets(_ context.Context, limit, offset int) ([]map[string]any, error) {
	return f.list(limit, offset)
}

func (f *fakeBackend) Devices(_ context.Context, limit, offset int) ([]map[string]any, error) {
	return f.list(limit, offset)
}

func (f *fakeBackend) OrgUnits(_ context.Context, limit, offset int) ([]map[string]any, error) {
	return f.list(limit, offset)
}

func (f *fakeBackend) Applications(_ context.Context, limit, offset int) ([]map[string]any, error) {
	return f.list(limit, offset)
}

func (f *fakeBackend) IPAssetInfo(_ context.Context, ip string, limit, offset int) ([]casm.IPAssetInfo, error) {
	f.ip = ip
	f.limit, f.offset = limit, offset
	return f.infos, f.err
}

func (f *fakeBackend) CVEs(_ context.Context, limit, offset int) ([]map[string]any, error) {
	return f.list(limit, offset)
}

func (f *fakeBackend) CVE(_ context.Context, id string, limit, offset int) ([]map[string]any, error) {
	f.cveID = id
	return f.list(limit, offset)
}

func (f *fakeBackend) IPCVEs(_ context.Context, ip string, limit, offset int) ([]map[string]any, error) {
	f.ip = ip
	return f.list(limit, offset)
}

func (f *fakeBackend) StoreTraceroute(_ context.Context, t *casm.Traceroute) error {
	f.traceroute = t
	return f.err
}

func (f *fakeBackend) compute(name string) error {
	f.computations = append(f.computations, name)
	return f.err
}

func (f *fakeBackend) ComputeTopologyBetweenness(context.Context) error {
	return f.compute("topology_betweenness")
}

func (f *fakeBackend) ComputeTopologyDegree(context.Context) error {
	return f.compute("topology_degree")
}

func (f *fakeBackend) ComputeFlowDegree(context.Context) error {
	return f.compute("flow_degree")
}

func (f *fakeBackend) ComputeFlowPageRank(context.Context) error {
	return f.compute("flow_pagerank")
}

func (f *fakeBackend) StoreCriticality(_ context.Context, rs []casm.MissionCriticality) error {
	f.criticality = rs
	return f.err
}

func (f *fakeBackend) CombineCriticality(context.Context) error {
	f.combined = true
	return f.err
}

func (f *fakeBackend) SyncIPHierarchy(context.Context) error {
	f.synced = true
	return f.err
}

func (f *fakeBackend) StoreSLPData(_ context.Context, rs []casm.SLPRecord) error {
	f.slp = rs
	return f.err
}

func newTestServer(f *fakeBackend) http.Handler {
	s := &Server{
		Assets:      f,
		Missions:    f,
		Inventory:   f,
		CVEs:        f,
		Topology:    f,
		Centrality:  f,
		Criticality: f,
		Hierarchy:   f,
		SLP:         f,
	}
	return s.Handler()
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStoreAssets(t *testing.T) {
	f := &fakeBackend{}
	h := newTestServer(f)

	body := `{"hosts": [{"ip_address": "10.0.0.5", "subnets": ["10.0.0.0/24"]}]}`
	w := doRequest(t, h, http.MethodPost, "/assets", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want 201: %s", w.Code, w.Body.String())
	}
	if f.assets == nil {
		t.Fatal("assets were not stored")
	}
	// Flatten promotes the referenced range to a subnet.
	if len(f.assets.Subnets) != 1 || f.assets.Subnets[0].IPRange != "10.0.0.0/24" {
		t.Errorf("got subnets %+v, want the referenced range", f.assets.Subnets)
	}
}

func TestStoreAssetsBadInput(t *testing.T) {
	f := &fakeBackend{}
	h := newTestServer(f)

	for _, body := range []string{
		`{not json`,
		`{"hosts": [{"ip_address": "not-an-address"}]}`,
		`{"hosts": [{"ip_address": "10.0.0.5", "subnets": ["192.168.0.0/24"]}]}`,
	} {
		w := doRequest(t, h, http.MethodPost, "/assets", body)
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("body %q: got status %d, want 422", body, w.Code)
		}
	}
	if f.assets != nil {
		t.Error("invalid submission reached the store")
	}
}

func TestStoreAssetsStoreError(t *testing.T) {
	f := &fakeBackend{err: &casm.Error{Kind: casm.ErrStoreTransient, Message: "down"}}
	h := newTestServer(f)

	w := doRequest(t, h, http.MethodPost, "/assets", `{"hosts": [{"ip_address": "10.0.0.5"}]}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("got status %d, want 500", w.Code)
	}
}

func TestListLimitOffset(t *testing.T) {
	f := &fakeBackend{lists: []map[string]any{{"address": "10.0.0.5"}}}
	h := newTestServer(f)

	w := doRequest(t, h, http.MethodGet, "/ips?limit=10&offset=20", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	if f.limit != 10 || f.offset != 20 {
		t.Errorf("got limit=%d offset=%d, want 10/20", f.limit, f.offset)
	}

	// Malformed values fall back to the defaults.
	doRequest(t, h, http.MethodGet, "/ips?limit=banana&offset=", "")
	if f.limit != DefaultLimit || f.offset != DefaultOffset {
		t.Errorf("got limit=%d offset=%d, want defaults", f.limit, f.offset)
	}
}

func TestCVERoutes(t *testing.T) {
	f := &fakeBackend{lists: []map[string]any{{"cve_id": "CVE-2024-12345"}}}
	h := newTestServer(f)

	w := doRequest(t, h, http.MethodGet, "/cve/CVE-2024-12345", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	if f.cveID != "CVE-2024-12345" {
		t.Errorf("got cve id %q", f.cveID)
	}

	w = doRequest(t, h, http.MethodGet, "/cve/not-a-cve", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("got status %d for malformed id, want 404", w.Code)
	}

	w = doRequest(t, h, http.MethodGet, "/ip/10.0.0.5/cve", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	if f.ip != "10.0.0.5" {
		t.Errorf("got ip %q", f.ip)
	}
}

func TestAssetInfo(t *testing.T) {
	f := &fakeBackend{infos: []casm.IPAssetInfo{{IP: "10.0.0.5", Missions: []string{"billing"}, Critical: 1}}}
	h := newTestServer(f)

	w := doRequest(t, h, http.MethodGet, "/asset_info?ip=10.0.0.5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	if f.ip != "10.0.0.5" {
		t.Errorf("got ip filter %q", f.ip)
	}
	var infos []casm.IPAssetInfo
	if err := json.NewDecoder(w.Body).Decode(&infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].Critical != 1 {
		t.Errorf("got %+v", infos)
	}
}

func TestMissionRoundTrip(t *testing.T) {
	crit := 7
	f := &fakeBackend{missions: []map[string]any{{"name": "billing"}}}
	h := newTestServer(f)

	graph := casm.MissionGraph{
		Nodes: casm.MissionNodes{
			Missions: []casm.Mission{{ID: 1, Name: "billing", Criticality: &crit}},
		},
	}
	body, err := json.Marshal(&graph)
	if err != nil {
		t.Fatal(err)
	}
	w := doRequest(t, h, http.MethodPost, "/missions", string(body))
	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want 201: %s", w.Code, w.Body.String())
	}
	if f.graph == nil || f.graph.Nodes.Missions[0].Name != "billing" {
		t.Error("mission graph was not stored")
	}

	w = doRequest(t, h, http.MethodGet, "/missions?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", w.Code)
	}
	if f.limit != 5 {
		t.Errorf("got limit %d, want 5", f.limit)
	}
}

func TestMissionWithoutCriticality(t *testing.T) {
	f := &fakeBackend{}
	h := newTestServer(f)

	body := `{"nodes": {"missions": [{"id": 1, "name": "billing"}], "aggregations": {}}}`
	w := doRequest(t, h, http.MethodPost, "/missions", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("got status %d, want 422", w.Code)
	}
}

func TestComputeEndpoints(t *testing.T) {
	f := &fakeBackend{}
	h := newTestServer(f)

	for _, target := range []string{
		"/nodes/betweenness_centrality",
		"/nodes/degree_centrality",
		"/nodes/flow_degree_centrality",
		"/nodes/flow_pagerank_centrality",
	} {
		w := doRequest(t, h, http.MethodPost, target, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: got status %d, want 200", target, w.Code)
		}
	}
	want := []string{"topology_betweenness", "topology_degree", "flow_degree", "flow_pagerank"}
	if len(f.computations) != len(want) {
		t.Fatalf("got computations %v", f.computations)
	}
	for i := range want {
		if f.computations[i] != want[i] {
			t.Errorf("computation %d: got %q, want %q", i, f.computations[i], want[i])
		}
	}
}

func TestCriticalityEndpoints(t *testing.T) {
	f := &fakeBackend{}
	h := newTestServer(f)

	body := `[{"ip": "10.0.0.5", "hostname": "api-1", "criticality": 4.5}]`
	w := doRequest(t, h, http.MethodPost, "/nodes/store_criticality", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want 201", w.Code)
	}
	if len(f.criticality) != 1 || f.criticality[0].Criticality != 4.5 {
		t.Errorf("got %+v", f.criticality)
	}

	w = doRequest(t, h, http.MethodPost, "/nodes/combine_criticality", "")
	if w.Code != http.StatusOK || !f.combined {
		t.Errorf("combine: status %d, called %v", w.Code, f.combined)
	}
}

func TestHierarchySync(t *testing.T) {
	f := &fakeBackend{}
	h := newTestServer(f)

	w := doRequest(t, h, http.MethodPost, "/ip-hierarchy-sync", "")
	if w.Code != http.StatusCreated || !f.synced {
		t.Errorf("status %d, called %v", w.Code, f.synced)
	}
}

func TestTracerouteAndSLP(t *testing.T) {
	f := &fakeBackend{}
	h := newTestServer(f)

	trBody := `{"data": [{"hops": [{"prev_ip": "10.0.0.1", "next_ip": "10.0.0.2", "hops": 1}]}], "time": "2026-08-24T10:00:00Z"}`
	w := doRequest(t, h, http.MethodPost, "/traceroute", trBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("traceroute: got status %d", w.Code)
	}
	if f.traceroute == nil || len(f.traceroute.Data) != 1 {
		t.Error("traceroute was not stored")
	}

	slpBody := `[{"domain": "example.com", "ip": "203.0.113.7", "sp_risk_score": 12, "subnet": "203.0.113.0/24", "tag": "SLP"}]`
	w = doRequest(t, h, http.MethodPost, "/slp_enrichment", slpBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("slp: got status %d", w.Code)
	}
	if len(f.slp) != 1 || f.slp[0].Domain != "example.com" {
		t.Errorf("got %+v", f.slp)
	}
}
