package csa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"

	"github.com/resilmesh/casm"
	"github.com/resilmesh/casm/internal/isim"
)

func TestComputeMissionCriticalities(t *testing.T) {
	ctx := context.Background()
	structure, err := json.Marshal(casm.MissionGraph{
		Nodes: casm.MissionNodes{
			Missions: []casm.Mission{{ID: 1, Name: "payments"}},
			Hosts:    []casm.MissionHost{{ID: 2, Hostname: "pay-db", IP: "192.0.2.5"}},
		},
		Relationships: casm.MissionRelationships{
			OneWay: []casm.Edge{{From: 1, To: 2}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	missions := []map[string]any{
		{
			"name":        "payments",
			"criticality": 4,
			"structure":   string(structure),
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/missions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(missions)
	}))
	defer srv.Close()

	a := &Activities{ISIM: isim.New(srv.URL, srv.Client())}
	got, err := a.ComputeMissionCriticalities(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []casm.MissionCriticality{
		{IP: "192.0.2.5", Hostname: "pay-db", Criticality: 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("criticalities (-want +got):\n%s", diff)
	}
}

func TestComputeCentralities(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
	}))
	defer srv.Close()

	a := &Activities{ISIM: isim.New(srv.URL, srv.Client())}
	if err := a.ComputeCentralities(ctx); err != nil {
		t.Fatal(err)
	}
	want := []string{"/nodes/betweenness_centrality", "/nodes/degree_centrality"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("paths (-want +got):\n%s", diff)
	}
}

func TestCriticalityWorkflow(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	a := &Activities{}
	env.RegisterActivity(a)

	results := []casm.MissionCriticality{
		{IP: "192.0.2.5", Hostname: "pay-db", Criticality: 4},
	}
	env.OnActivity(a.ComputeMissionCriticalities, mock.Anything).Return(results, nil)
	env.OnActivity(a.StoreMissionCriticalities, mock.Anything, results).Return(nil)
	env.OnActivity(a.ComputeCentralities, mock.Anything).Return(nil)
	env.OnActivity(a.CombineCriticalities, mock.Anything).Return(nil)

	env.ExecuteWorkflow(CriticalityWorkflow)
	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatal(err)
	}
}
