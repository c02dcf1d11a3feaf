package neo4j

import (
	"context"

	"github.com/quay/zlog"

	"github.com/resilmesh/casm"
)

const topologyInsert = `
UNWIND $data AS data
UNWIND data.hops AS hops
MERGE (prev_ip:IP {address: hops.prev_ip})
MERGE (prev_node:Node)-[:HAS_ASSIGNED]->(prev_ip)
MERGE (next_ip:IP {address: hops.next_ip})
MERGE (next_node:Node)-[:HAS_ASSIGNED]->(next_ip)
MERGE (prev_node)-[rel:IS_CONNECTED_TO {hops: hops.hops}]->(next_node)
ON MATCH SET rel.last_detection = datetime($time)
ON CREATE SET rel.last_detection = datetime($time)
`

// StoreTraceroute merges traceroute paths into the node topology. Each hop
// pair gets an IS_CONNECTED_TO edge keyed by hop distance, stamped with the
// detection time.
func (s *Store) StoreTraceroute(ctx context.Context, tr *casm.Traceroute) error {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/neo4j/Store.StoreTraceroute")
	data := make([]map[string]any, len(tr.Data))
	for i, path := range tr.Data {
		hops := make([]map[string]any, len(path.Hops))
		for j, h := range path.Hops {
			hops[j] = map[string]any{
				"prev_ip": h.PrevIP,
				"next_ip": h.NextIP,
				"hops":    h.Hops,
			}
		}
		data[i] = map[string]any{"hops": hops}
	}
	if _, err := s.run(ctx, topologyInsert, map[string]any{"data": data, "time": tr.Time}); err != nil {
		return err
	}
	zlog.Info(ctx).Int("paths", len(data)).Msg("stored traceroute topology")
	return nil
}
