package cveupdate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"

	"github.com/resilmesh/casm/datastore"
	"github.com/resilmesh/casm/nvd"
	"github.com/resilmesh/casm/pkg/cpe"
)

func TestParseVersionKey(t *testing.T) {
	tt := []struct {
		key  string
		want cpe.Identifier
		ok   bool
	}{
		{"f5:nginx:1.24.0", cpe.Identifier{Part: "a", Vendor: "f5", Product: "nginx", Version: "1.24.0"}, true},
		{"openbsd:openssh:8.9p1 Ubuntu:3ubuntu0.1", cpe.Identifier{Part: "a", Vendor: "openbsd", Product: "openssh", Version: "8.9p1 Ubuntu:3ubuntu0.1"}, true},
		{"nginx", cpe.Identifier{}, false},
		{"f5:nginx", cpe.Identifier{}, false},
		{"f5::1.24.0", cpe.Identifier{}, false},
	}
	for _, tc := range tt {
		got, ok := parseVersionKey(tc.key)
		if ok != tc.ok {
			t.Errorf("parseVersionKey(%q) ok: got %v, want %v", tc.key, ok, tc.ok)
			continue
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("parseVersionKey(%q) (-want +got):\n%s", tc.key, diff)
		}
	}
}

func TestWatermark(t *testing.T) {
	ctx := context.Background()
	if got := watermark(ctx, ""); !got.IsZero() {
		t.Errorf("empty watermark: got %v", got)
	}
	if got := watermark(ctx, "not a time"); !got.IsZero() {
		t.Errorf("garbage watermark: got %v", got)
	}
	want := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	if got := watermark(ctx, "2026-08-20T12:00:00Z"); !got.Equal(want) {
		t.Errorf("watermark: got %v, want %v", got, want)
	}
}

// versionStore records watermark updates for a fixed version set.
type versionStore struct {
	versions []datastore.StoredVersion
	updated  map[string]string
}

func (s *versionStore) AllSoftwareVersions(_ context.Context) ([]datastore.StoredVersion, error) {
	return s.versions, nil
}

func (s *versionStore) UpdateVersionTimestamp(_ context.Context, versionKey, timestamp string) error {
	s.updated[versionKey] = timestamp
	return nil
}

// graphStore satisfies the matcher with an empty graph.
type graphStore struct {
	linked []string
}

func (s *graphStore) CVEExists(context.Context, string) (bool, error) { return false, nil }
func (s *graphStore) SoftwareVersionExists(context.Context, string) (bool, error) {
	return false, nil
}
func (s *graphStore) CreateVulnerability(context.Context, string) error { return nil }
func (s *graphStore) CreateCVE(context.Context, *nvd.Record) error      { return nil }
func (s *graphStore) UpdateCVE(context.Context, *nvd.Record) error      { return nil }
func (s *graphStore) LinkCVEToVulnerability(context.Context, string, string) error {
	return nil
}
func (s *graphStore) VersionsOfProduct(context.Context, string) ([]string, error) {
	return nil, nil
}
func (s *graphStore) LinkVulnerabilityToVersion(_ context.Context, _, versionKey string) error {
	s.linked = append(s.linked, versionKey)
	return nil
}

func TestUpdateCVEs(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("cpeName"); got != "cpe:2.3:a:f5:nginx:1.24.0" {
			t.Errorf("got cpeName %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"resultsPerPage": 1,
			"startIndex":     0,
			"totalResults":   1,
			"vulnerabilities": []map[string]any{
				{"cve": map[string]any{
					"id": "CVE-2024-0001",
					"descriptions": []map[string]any{
						{"lang": "en", "value": "A test weakness."},
					},
				}},
			},
		})
	}))
	defer srv.Close()

	client := nvd.NewClient(srv.Client(), "")
	client.Root = srv.URL
	graph := &graphStore{}
	store := &versionStore{
		versions: []datastore.StoredVersion{
			{Version: "f5:nginx:1.24.0", CVETimestamp: "2026-08-20T12:00:00Z"},
			{Version: "garbage"},
		},
		updated: make(map[string]string),
	}
	a := &Activities{Store: store, Client: client, Matcher: nvd.NewMatcher(graph, client)}

	summary, err := a.UpdateCVEs(ctx, "2026-08-24T10:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if want := "executed CVE download for 2 software versions"; summary != want {
		t.Errorf("summary: got %q, want %q", summary, want)
	}
	// The malformed key is skipped and keeps its watermark.
	want := map[string]string{"f5:nginx:1.24.0": "2026-08-24T10:00:00Z"}
	if diff := cmp.Diff(want, store.updated); diff != "" {
		t.Errorf("watermarks (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"f5:nginx:1.24.0"}, graph.linked); diff != "" {
		t.Errorf("linked versions (-want +got):\n%s", diff)
	}
}

func TestWorkflow(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	a := &Activities{}
	env.RegisterActivity(a)

	env.OnActivity(a.UpdateCVEs, mock.Anything, mock.Anything).
		Return("executed CVE download for 1 software versions", nil)

	env.ExecuteWorkflow(Workflow)
	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatal(err)
	}
	var summary string
	if err := env.GetWorkflowResult(&summary); err != nil {
		t.Fatal(err)
	}
	if summary == "" {
		t.Error("empty summary")
	}
}
