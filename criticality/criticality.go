// Package criticality propagates mission criticality down decomposition
// graphs onto the hosts that support them.
package criticality

import (
	"encoding/json"

	"github.com/resilmesh/casm"
)

type entityKind int

const (
	kindUnknown entityKind = iota
	kindMission
	kindHost
	kindService
	kindAnd
	kindOr
)

type entity struct {
	id          int
	criticality float64
	kind        entityKind
}

// ComputeHostCriticalities walks every stored mission's decomposition graph
// and returns the criticality of each host it reaches. The mission's
// criticality flows unchanged through AND and service nodes; an OR node
// splits it evenly across its children. A host appearing under several
// missions keeps its maximum.
func ComputeHostCriticalities(missions []map[string]any) ([]casm.MissionCriticality, error) {
	final := []casm.MissionCriticality{}
	for _, mission := range missions {
		m := missionFromMap(mission)
		crit, err := m.EffectiveCriticality()
		if err != nil {
			return nil, err
		}
		raw, ok := mission["structure"].(string)
		if !ok {
			return nil, &casm.Error{Kind: casm.ErrBadInput, Message: "mission " + m.Name + " has no stored structure"}
		}
		var graph casm.MissionGraph
		if err := json.Unmarshal([]byte(raw), &graph); err != nil {
			return nil, &casm.Error{Kind: casm.ErrBadInput, Message: "mission " + m.Name + " has an unreadable structure", Inner: err}
		}
		intermediate := walkGraph(&graph, missionID(&graph, m.Name), crit)
		collectHosts(&graph, intermediate, &final)
	}
	return final, nil
}

// walkGraph runs a breadth-first walk from the mission node and returns the
// criticality reaching each host node.
func walkGraph(graph *casm.MissionGraph, startID int, criticality float64) []entity {
	queue := []entity{{id: startID, criticality: criticality, kind: kindMission}}
	var hosts []entity
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.kind == kindHost {
			hosts = append(hosts, cur)
			continue
		}
		children := 0
		if cur.kind == kindOr {
			for _, rel := range graph.Relationships.OneWay {
				if rel.From == cur.id {
					children++
				}
			}
		}
		for _, rel := range graph.Relationships.OneWay {
			if rel.From != cur.id {
				continue
			}
			next := entity{id: rel.To, criticality: cur.criticality, kind: entityType(graph, rel.To)}
			if cur.kind == kindOr {
				next.criticality = cur.criticality / float64(children)
			}
			queue = append(queue, next)
		}
	}
	return hosts
}

// collectHosts resolves host ids to hostname and address, keeping the
// maximum criticality per host.
func collectHosts(graph *casm.MissionGraph, intermediate []entity, final *[]casm.MissionCriticality) {
	for _, e := range intermediate {
		for _, host := range graph.Nodes.Hosts {
			if host.ID != e.id {
				continue
			}
			idx := hostIndex(host.Hostname, host.IP, *final)
			if idx == -1 {
				*final = append(*final, casm.MissionCriticality{
					IP:          host.IP,
					Hostname:    host.Hostname,
					Criticality: e.criticality,
				})
				continue
			}
			if e.criticality > (*final)[idx].Criticality {
				(*final)[idx].Criticality = e.criticality
			}
		}
	}
}

func hostIndex(hostname, ip string, hosts []casm.MissionCriticality) int {
	for i, h := range hosts {
		if h.Hostname == hostname && h.IP == ip {
			return i
		}
	}
	return -1
}

func entityType(graph *casm.MissionGraph, id int) entityKind {
	for _, h := range graph.Nodes.Hosts {
		if h.ID == id {
			return kindHost
		}
	}
	for _, s := range graph.Nodes.Services {
		if s.ID == id {
			return kindService
		}
	}
	for _, a := range graph.Nodes.Aggregations.And {
		if a == id {
			return kindAnd
		}
	}
	for _, o := range graph.Nodes.Aggregations.Or {
		if o == id {
			return kindOr
		}
	}
	return kindUnknown
}

func missionID(graph *casm.MissionGraph, name string) int {
	for _, m := range graph.Nodes.Missions {
		if m.Name == name {
			return m.ID
		}
	}
	return 0
}

// missionFromMap rebuilds a mission from the property map served by the
// mission listing.
func missionFromMap(m map[string]any) *casm.Mission {
	mission := &casm.Mission{}
	if name, ok := m["name"].(string); ok {
		mission.Name = name
	}
	mission.Criticality = intField(m, "criticality")
	mission.ConfidentialityRequirement = intField(m, "confidentiality_requirement")
	mission.IntegrityRequirement = intField(m, "integrity_requirement")
	mission.AvailabilityRequirement = intField(m, "availability_requirement")
	return mission
}

func intField(m map[string]any, key string) *int {
	switch v := m[key].(type) {
	case int64:
		i := int(v)
		return &i
	case float64:
		i := int(v)
		return &i
	case int:
		return &v
	}
	return nil
}
