package neo4j

import (
	"context"

	"github.com/quay/zlog"

	"github.com/resilmesh/casm"
)

// Re-enriched domains shed the SLP_no marker left by a previous lookup miss.
const slpInsert = `
UNWIND $rows AS result
MERGE (d:DomainName {domain_name: result.domain})
ON CREATE SET d.tag = [result.tag]
ON MATCH SET d.tag = CASE
    WHEN d.tag IS NULL THEN result.tag
    ELSE apoc.coll.toSet([result.tag] + [x IN d.tag WHERE x <> 'SLP_no'])
END
MERGE (ip:IP {address: result.ip})
ON CREATE SET ip.tag = ['SLP']
ON MATCH SET ip.tag = CASE
    WHEN ip.tag IS NULL THEN ['SLP']
    ELSE apoc.coll.toSet(['SLP'] + ip.tag)
END
SET ip.sp_risk_score = result.sp_risk_score
MERGE (d)<-[r:RESOLVES_TO {start: datetime.truncate('second', datetime.fromepochmillis(TIMESTAMP()))}]-(ip)
MERGE (s:Subnet {range: result.subnet, version: 4})
MERGE (ip)-[:PART_OF]->(s)
`

// StoreSLPData writes Silent Push enrichment rows: domain tags, address risk
// scores, resolution edges, and subnet membership.
func (s *Store) StoreSLPData(ctx context.Context, records []casm.SLPRecord) error {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/neo4j/Store.StoreSLPData")
	rows := make([]map[string]any, len(records))
	for i, r := range records {
		rows[i] = map[string]any{
			"domain":        r.Domain,
			"ip":            r.IP,
			"sp_risk_score": r.SPRiskScore,
			"subnet":        r.Subnet,
			"tag":           r.Tag,
		}
	}
	if _, err := s.run(ctx, slpInsert, map[string]any{"rows": rows}); err != nil {
		return err
	}
	zlog.Info(ctx).Int("records", len(rows)).Msg("stored enrichment data")
	return nil
}
