package neo4j

import (
	"context"

	"github.com/quay/zlog"

	"github.com/resilmesh/casm"
)

const (
	criticalityStore = `
UNWIND $results AS result
MATCH (ip:IP {address: result.ip})
MATCH (host:Host {hostname: result.hostname})
MATCH (host)<-[:IS_A]-(node:Node)-[:HAS_ASSIGNED]->(ip)
SET node.mission_criticality = result.criticality
`

	// Degree and betweenness are normalized onto [1, 10] before they scale the
	// mission criticality. Nodes missing a score normalize to 1.
	criticalityCombine = `
MATCH (n:Node)
WITH max(n.topology_betweenness) AS max_betweenness, min(n.topology_betweenness) AS min_betweenness,
count(n) AS count_of_nodes
MATCH (n:Node)
WITH n, max_betweenness, min_betweenness, count_of_nodes,
CASE
  WHEN n.topology_degree IS NULL THEN 1
  ELSE 9*(n.topology_degree / count_of_nodes) + 1
END AS topology_degree_norm,
CASE
  WHEN n.topology_betweenness IS NULL THEN 1
  ELSE 9*((n.topology_betweenness - min_betweenness) / (max_betweenness - min_betweenness)) + 1
END AS topology_betweenness_norm,
CASE
  WHEN n.mission_criticality IS NULL THEN 1
  ELSE n.mission_criticality
END AS mission_criticality
SET n.topology_degree_norm = topology_degree_norm
SET n.topology_betweenness_norm = topology_betweenness_norm
SET n.mission_criticality = mission_criticality
SET n.final_criticality = ((9*n.topology_degree_norm*n.topology_betweenness_norm / 100) + 1) * n.mission_criticality
`
)

// StoreCriticality writes computed mission criticality values onto the nodes
// holding the scored addresses.
func (s *Store) StoreCriticality(ctx context.Context, results []casm.MissionCriticality) error {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/neo4j/Store.StoreCriticality")
	rows := make([]map[string]any, len(results))
	for i, r := range results {
		rows[i] = map[string]any{
			"ip":          r.IP,
			"hostname":    r.Hostname,
			"criticality": r.Criticality,
		}
	}
	if _, err := s.run(ctx, criticalityStore, map[string]any{"results": rows}); err != nil {
		return err
	}
	zlog.Info(ctx).Int("hosts", len(rows)).Msg("stored mission criticality")
	return nil
}

// CombineCriticality folds mission criticality and the normalized topology
// centralities into each node's final criticality.
func (s *Store) CombineCriticality(ctx context.Context) error {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/neo4j/Store.CombineCriticality")
	_, err := s.run(ctx, criticalityCombine, nil)
	return err
}
