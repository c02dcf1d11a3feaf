package neo4j

import (
	"context"

	"github.com/quay/zlog"
)

// Retention window for detection-derived edges and events.
const cleanDuration = "P21D"

const (
	cleanVulnerabilities = `CALL apoc.periodic.commit('
WITH datetime() - duration($duration) AS popTime
MATCH (vul:Vulnerability)-[r:IN]->(s:SoftwareVersion)
WHERE r.end < popTime
WITH r LIMIT $limit
DELETE r
RETURN count(*)', {limit: 1000, duration: $duration})`

	cleanHostLayer = `CALL apoc.periodic.commit('
WITH datetime() - duration($duration) AS popTime
MATCH (ns:NetworkService)-[r1:ON]->(h1:Host)
WHERE r1.end < popTime
WITH r1, popTime LIMIT $limit
MATCH (sv:SoftwareVersion)-[r2:ON]->(h2:Host)
WHERE r2.end < popTime
WITH r1, r2 LIMIT $limit
DELETE r1, r2
RETURN count(*)', {limit: 1000, duration: $duration})`

	cleanNetworkLayer = `CALL apoc.periodic.commit('
WITH datetime() - duration($duration) AS popTime
MATCH (ip:IP)-[r1:RESOLVES_TO]->(d:DomainName)
WHERE r1.end < popTime
WITH r1, popTime LIMIT $limit
MATCH (n:Node)-[r2:HAS_ASSIGNED]->(ip:IP)
WHERE r2.end < popTime
WITH r1, r2, popTime LIMIT $limit
MATCH (n1:Node)-[r3:IS_CONNECTED_TO]->(n2:Node)
WHERE r3.end < popTime
WITH r1, r2, r3 LIMIT $limit
DELETE r1, r2, r3
RETURN count(*)', {limit: 1000, duration: $duration})`

	cleanSecurityEvents = `CALL apoc.periodic.commit('
WITH datetime() - duration($duration) AS popTime
MATCH (secEvent:SecurityEvent)
WHERE secEvent.detection_time < popTime
WITH secEvent LIMIT $limit
DETACH DELETE secEvent
RETURN count(*)', {limit: 1000, duration: $duration})`
)

func (s *Store) clean(ctx context.Context, query string) error {
	_, err := s.run(ctx, query, map[string]any{"duration": cleanDuration})
	return err
}

// CleanOldVulnerabilities removes expired vulnerability-to-version edges.
func (s *Store) CleanOldVulnerabilities(ctx context.Context) error {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/neo4j/Store.CleanOldVulnerabilities")
	return s.clean(ctx, cleanVulnerabilities)
}

// CleanHostLayer removes expired service and software edges to hosts.
func (s *Store) CleanHostLayer(ctx context.Context) error {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/neo4j/Store.CleanHostLayer")
	return s.clean(ctx, cleanHostLayer)
}

// CleanNetworkLayer removes expired resolution, assignment, and connection
// edges.
func (s *Store) CleanNetworkLayer(ctx context.Context) error {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/neo4j/Store.CleanNetworkLayer")
	return s.clean(ctx, cleanNetworkLayer)
}

// CleanSecurityEvents removes security events past the retention window.
func (s *Store) CleanSecurityEvents(ctx context.Context) error {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/neo4j/Store.CleanSecurityEvents")
	return s.clean(ctx, cleanSecurityEvents)
}
