package neo4j

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/resilmesh/casm"
)

const (
	orgUnitList = `
MATCH (ou:OrganizationUnit)
OPTIONAL MATCH (ou)-[:TENANTS]-(pe:PhysicalEnvironment)
OPTIONAL MATCH (s:Subnet)-[:PART_OF]-(ou)
RETURN ou, s, pe
ORDER BY ou.name
SKIP $offset
LIMIT $limit
`

	subnetList = `
MATCH (s:Subnet)
OPTIONAL MATCH (s)-[:PART_OF]-(p_s:Subnet)
OPTIONAL MATCH (s)-[:PART_OF]-(ou:OrganizationUnit)
OPTIONAL MATCH (s)-[:HAS]-(c:Contact)
OPTIONAL MATCH (s)-[:PART_OF]-(ip:IP)
RETURN s, p_s, ou, c, ip
ORDER BY s.range
SKIP $offset
LIMIT $limit
`

	ipAssetList = `
MATCH (ip:IP)
OPTIONAL MATCH (ip)-[:PART_OF]-(s:Subnet)
OPTIONAL MATCH (s)-[:PART_OF]-(ou:OrganizationUnit)
OPTIONAL MATCH (ip)-[:RESOLVES_TO]-(d:DomainName)
OPTIONAL MATCH (ip)-[:IDENTIFIES]-(u:URI)
RETURN ip, s, d, u, ou
ORDER BY ip.address
SKIP $offset
LIMIT $limit
`

	deviceList = `
MATCH (dev:Device)
OPTIONAL MATCH (dev)-[:PART_OF]-(ou:OrganizationUnit)
OPTIONAL MATCH (dev)-[:HAS]-(h_v:HardwareVersion)
OPTIONAL MATCH (dev)-[:HAS_IDENTITY]-(h:Host)-[:IS_A]-(n:Node)-[:HAS_ASSIGNED]-(ip:IP)
RETURN dev, ou, h_v, h, n, ip
ORDER BY dev.name
SKIP $offset
LIMIT $limit
`

	applicationList = `
MATCH (app:Application)
OPTIONAL MATCH (app)-[:RUNNING_ON]-(dev:Device)
RETURN app, dev
ORDER BY app.name
SKIP $offset
LIMIT $limit
`

	ipAssetInfoQuery = `
MATCH (ip:IP)
WHERE $ip IS NULL OR ip.address = $ip
WITH ip, [(ip)-[:PART_OF]-(s:Subnet) | s.range] AS subnets
WITH ip, subnets, [(ip)-[:PART_OF]-(s:Subnet)-[:HAS]-(c:Contact) | c.name] AS contacts
WITH ip, subnets, contacts, [(ip)-[:RESOLVES_TO]-(d:DomainName) | d.domain_name] AS domains
WITH ip, subnets, contacts, domains, [(ip)-[:HAS_ASSIGNED]-(n:Node) | {degree_centrality: n.degree_centrality, pagerank_centrality: n.pagerank_centrality, topology_betweenness: n.topology_betweenness, topology_degree: n.topology_degree}] AS nodes
WITH ip, subnets, contacts, domains, nodes, [(ip)-[:HAS_ASSIGNED]-(Node)-[:IS_A]-(Host)-[:PROVIDED_BY]-(Component)-[:SUPPORTS]-(m:Mission) | m.name] AS missions
RETURN ip.address AS ip, subnets, contacts, domains, nodes, missions
ORDER BY ip.address
SKIP $offset
LIMIT $limit
`
)

func (s *Store) list(ctx context.Context, query string, limit, offset int) ([]map[string]any, error) {
	records, err := s.run(ctx, query, map[string]any{"limit": limit, "offset": offset})
	if err != nil {
		return nil, err
	}
	return flattenRecords(records), nil
}

// OrgUnits returns organization units with their subnets and physical
// environments.
func (s *Store) OrgUnits(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	return s.list(ctx, orgUnitList, limit, offset)
}

// Subnets returns subnets with their parents, organization units, contacts,
// and addresses.
func (s *Store) Subnets(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	return s.list(ctx, subnetList, limit, offset)
}

// IPAssets returns addresses with their subnets, domain names, and URIs.
func (s *Store) IPAssets(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	return s.list(ctx, ipAssetList, limit, offset)
}

// Devices returns devices with their organization units, hardware versions,
// and host identities.
func (s *Store) Devices(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	return s.list(ctx, deviceList, limit, offset)
}

// Applications returns applications with the devices they run on.
func (s *Store) Applications(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	return s.list(ctx, applicationList, limit, offset)
}

// IPAssetInfo aggregates the entities around addresses. An empty ip returns
// every address.
func (s *Store) IPAssetInfo(ctx context.Context, ip string, limit, offset int) ([]casm.IPAssetInfo, error) {
	var ipParam any
	if ip != "" {
		ipParam = ip
	}
	records, err := s.run(ctx, ipAssetInfoQuery, map[string]any{
		"ip":     ipParam,
		"limit":  limit,
		"offset": offset,
	})
	if err != nil {
		return nil, err
	}
	out := make([]casm.IPAssetInfo, 0, len(records))
	for _, rec := range records {
		m := rec.AsMap()
		info := casm.IPAssetInfo{
			IP:          stringValue(m["ip"]),
			Subnets:     stringList(m["subnets"]),
			Contacts:    stringList(m["contacts"]),
			DomainNames: stringList(m["domains"]),
			Missions:    stringList(m["missions"]),
			Nodes:       centralityList(m["nodes"]),
		}
		if len(info.Missions) > 0 {
			info.Critical = 1
		}
		out = append(out, info)
	}
	return out, nil
}

// flattenRecords renders graph nodes down to their property maps so results
// can be serialized as-is.
func flattenRecords(records []*db.Record) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, rec := range records {
		m := rec.AsMap()
		for k, v := range m {
			if node, ok := v.(dbtype.Node); ok {
				m[k] = node.Props
			}
		}
		out[i] = m
	}
	return out
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func stringList(v any) []string {
	vs, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(vs))
	for _, item := range vs {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func centralityList(v any) []casm.NodeCentrality {
	vs, ok := v.([]any)
	if !ok {
		return []casm.NodeCentrality{}
	}
	out := make([]casm.NodeCentrality, 0, len(vs))
	for _, item := range vs {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, casm.NodeCentrality{
			DegreeCentrality:    floatPtr(m["degree_centrality"]),
			PagerankCentrality:  floatPtr(m["pagerank_centrality"]),
			TopologyBetweenness: floatPtr(m["topology_betweenness"]),
			TopologyDegree:      floatPtr(m["topology_degree"]),
		})
	}
	return out
}

func floatPtr(v any) *float64 {
	switch v := v.(type) {
	case float64:
		return &v
	case int64:
		f := float64(v)
		return &f
	}
	return nil
}
