package criticality

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/resilmesh/casm"
)

func intp(i int) *int { return &i }

func structureJSON(t *testing.T, graph *casm.MissionGraph) string {
	t.Helper()
	raw, err := json.Marshal(graph)
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}

func TestComputeHostCriticalities(t *testing.T) {
	graph := &casm.MissionGraph{
		Nodes: casm.MissionNodes{
			Aggregations: casm.Aggregations{Or: []int{2}},
			Missions:     []casm.Mission{{ID: 1, Name: "billing", Criticality: intp(8)}},
			Services: []casm.MissionService{
				{ID: 3, Name: "api"},
				{ID: 4, Name: "db"},
			},
			Hosts: []casm.MissionHost{
				{ID: 5, Hostname: "api-1", IP: "10.0.0.5"},
				{ID: 6, Hostname: "db-1", IP: "10.0.0.6"},
			},
		},
		Relationships: casm.MissionRelationships{
			OneWay: []casm.Edge{
				{From: 1, To: 2},
				{From: 2, To: 3},
				{From: 2, To: 4},
				{From: 3, To: 5},
				{From: 4, To: 6},
			},
		},
	}
	missions := []map[string]any{{
		"name":        "billing",
		"criticality": int64(8),
		"structure":   structureJSON(t, graph),
	}}

	got, err := ComputeHostCriticalities(missions)
	if err != nil {
		t.Fatal(err)
	}
	want := []casm.MissionCriticality{
		{IP: "10.0.0.5", Hostname: "api-1", Criticality: 4},
		{IP: "10.0.0.6", Hostname: "db-1", Criticality: 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("host criticalities (-want +got):\n%s", diff)
	}
}

func TestComputeHostCriticalitiesMaxAcrossMissions(t *testing.T) {
	mk := func(name string, id, crit int) map[string]any {
		graph := &casm.MissionGraph{
			Nodes: casm.MissionNodes{
				Missions: []casm.Mission{{ID: id, Name: name, Criticality: intp(crit)}},
				Hosts:    []casm.MissionHost{{ID: id + 1, Hostname: "shared", IP: "10.0.0.9"}},
			},
			Relationships: casm.MissionRelationships{
				OneWay: []casm.Edge{{From: id, To: id + 1}},
			},
		}
		return map[string]any{
			"name":        name,
			"criticality": int64(crit),
			"structure":   structureJSON(t, graph),
		}
	}
	got, err := ComputeHostCriticalities([]map[string]any{mk("low", 1, 3), mk("high", 10, 7)})
	if err != nil {
		t.Fatal(err)
	}
	want := []casm.MissionCriticality{{IP: "10.0.0.9", Hostname: "shared", Criticality: 7}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("host criticalities (-want +got):\n%s", diff)
	}
}

func TestComputeHostCriticalitiesRequirementFallback(t *testing.T) {
	graph := &casm.MissionGraph{
		Nodes: casm.MissionNodes{
			Missions: []casm.Mission{{ID: 1, Name: "mail"}},
			Hosts:    []casm.MissionHost{{ID: 2, Hostname: "mx-1", IP: "10.0.1.2"}},
		},
		Relationships: casm.MissionRelationships{
			OneWay: []casm.Edge{{From: 1, To: 2}},
		},
	}
	missions := []map[string]any{{
		"name":                        "mail",
		"confidentiality_requirement": int64(2),
		"integrity_requirement":       int64(6),
		"availability_requirement":    int64(4),
		"structure":                   structureJSON(t, graph),
	}}
	got, err := ComputeHostCriticalities(missions)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Criticality != 6 {
		t.Errorf("got %+v, want single host with criticality 6", got)
	}
}

func TestComputeHostCriticalitiesMissingStructure(t *testing.T) {
	missions := []map[string]any{{
		"name":        "broken",
		"criticality": int64(5),
	}}
	_, err := ComputeHostCriticalities(missions)
	if !errors.Is(err, casm.ErrBadInput) {
		t.Errorf("got %v, want bad input", err)
	}
}
