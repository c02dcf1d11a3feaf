package neo4j

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quay/zlog"

	"github.com/resilmesh/casm"
)

const (
	missionInsert = `
UNWIND $missions AS m
MERGE (mission:Mission {name: m.name})
SET mission.description = m.description,
    mission.criticality = m.criticality,
    mission.confidentiality_requirement = m.confidentiality_requirement,
    mission.integrity_requirement = m.integrity_requirement,
    mission.availability_requirement = m.availability_requirement,
    mission.structure = $structure
`

	componentInsert = `
UNWIND $services AS svc
MERGE (c:Component {name: svc.name})
`

	hostnameInsert = `
UNWIND $hosts AS h
MATCH (host:Host)<-[:IS_A]-(:Node)-[:HAS_ASSIGNED]->(:IP {address: h.ip})
SET host.hostname = h.hostname
`

	supportsInsert = `
UNWIND $supports AS edge
MATCH (c:Component {name: edge.from})
MATCH (m:Mission {name: edge.to})
MERGE (c)-[:SUPPORTS]->(m)
`

	providedByInsert = `
MATCH (component:Component {name: $identity_from})
MATCH (host:Host {hostname: $identity_to})<-[:IS_A]-(nod:Node)-[:HAS_ASSIGNED]->(ip:IP {address: $host_ip})
MERGE (component)-[:PROVIDED_BY]->(host)
`

	dependencyInsert = `
MATCH (src_component:Component {name: $src}), (dst_component:Component {name: $dst})
MERGE (src_component)<-[:FROM]-(dep:MissionDependency)
MERGE (dep)-[:TO]->(dst_component)
`

	missionList = `
MATCH (m:Mission)
RETURN {name: m.name, description: m.description,
        criticality: m.criticality,
        confidentiality_requirement: m.confidentiality_requirement,
        integrity_requirement: m.integrity_requirement,
        availability_requirement: m.availability_requirement,
        structure: m.structure} AS mission
LIMIT $limit
`
)

// StoreMissionGraph writes a mission decomposition: mission and component
// nodes, host identities, support and dependency edges. The whole submitted
// graph is kept on each mission node as its structure property so the
// criticality engine can replay the decomposition.
func (s *Store) StoreMissionGraph(ctx context.Context, graph *casm.MissionGraph) error {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/neo4j/Store.StoreMissionGraph")
	structure, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("encoding mission structure: %w", err)
	}
	missions := make([]map[string]any, len(graph.Nodes.Missions))
	for i, m := range graph.Nodes.Missions {
		missions[i] = map[string]any{
			"name":                        m.Name,
			"description":                 m.Description,
			"criticality":                 intOrNil(m.Criticality),
			"confidentiality_requirement": intOrNil(m.ConfidentialityRequirement),
			"integrity_requirement":       intOrNil(m.IntegrityRequirement),
			"availability_requirement":    intOrNil(m.AvailabilityRequirement),
		}
	}
	services := make([]map[string]any, len(graph.Nodes.Services))
	for i, svc := range graph.Nodes.Services {
		services[i] = map[string]any{"name": svc.Name}
	}
	hosts := make([]map[string]any, len(graph.Nodes.Hosts))
	for i, h := range graph.Nodes.Hosts {
		hosts[i] = map[string]any{"hostname": h.Hostname, "ip": h.IP}
	}
	supports := make([]map[string]any, len(graph.Relationships.Supports))
	for i, e := range graph.Relationships.Supports {
		supports[i] = map[string]any{"from": e.From, "to": e.To}
	}
	steps := []struct {
		query  string
		params map[string]any
	}{
		{missionInsert, map[string]any{"missions": missions, "structure": string(structure)}},
		{componentInsert, map[string]any{"services": services}},
		{hostnameInsert, map[string]any{"hosts": hosts}},
		{supportsInsert, map[string]any{"supports": supports}},
	}
	for _, step := range steps {
		if _, err := s.run(ctx, step.query, step.params); err != nil {
			return err
		}
	}
	for _, identity := range graph.Relationships.HasIdentity {
		for _, host := range graph.Nodes.Hosts {
			if identity.To != host.Hostname {
				continue
			}
			_, err := s.run(ctx, providedByInsert, map[string]any{
				"identity_from": identity.From,
				"identity_to":   identity.To,
				"host_ip":       host.IP,
			})
			if err != nil {
				return err
			}
		}
	}
	for _, dep := range graph.Relationships.Dependencies {
		for _, src := range graph.Nodes.Services {
			for _, dst := range graph.Nodes.Services {
				if src.ID != dep.From || dst.ID != dep.To {
					continue
				}
				_, err := s.run(ctx, dependencyInsert, map[string]any{
					"src": src.Name,
					"dst": dst.Name,
				})
				if err != nil {
					return err
				}
			}
		}
	}
	zlog.Info(ctx).
		Int("missions", len(missions)).
		Int("components", len(services)).
		Msg("stored mission graph")
	return nil
}

// Missions returns stored missions with their structure property.
func (s *Store) Missions(ctx context.Context, limit int) ([]map[string]any, error) {
	records, err := s.run(ctx, missionList, map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		if m, ok := rec.AsMap()["mission"].(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func intOrNil(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
