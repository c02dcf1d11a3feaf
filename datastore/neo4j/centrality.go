package neo4j

import (
	"context"

	"github.com/quay/zlog"
)

// Centrality runs on in-memory GDS projections. The topology projection
// covers traceroute edges with a hop count of 1; the flow projection counts
// parallel IS_CONNECTED_TO edges, since flow windows make session boundaries
// unreliable and only the connection count matters.
const (
	topologyProjectionCreate = `
MATCH (source:Node)-[r:IS_CONNECTED_TO]->(target:Node) WHERE r.hops = 1
RETURN gds.graph.project(
  'topologyGraph',
  source,
  target
)
`

	topologyProjectionDrop = `CALL gds.graph.drop('topologyGraph') YIELD graphName`

	topologyBetweennessStream = `
CALL gds.betweenness.stream('topologyGraph') YIELD nodeId, score MATCH (n:Node)
WHERE id(n) = nodeId SET n.topology_betweenness = score
`

	topologyDegreeStream = `
CALL gds.degree.stream('topologyGraph')
YIELD nodeId, score
MATCH (n:Node)
WHERE id(n) = nodeId SET n.topology_degree = score
`

	flowProjectionCreate = `
CALL gds.graph.project('centralityGraph', ['Node'], {
  IS_CONNECTED_TO: {properties: {numberOfConnections: {property: '*', aggregation: 'COUNT'}}}})
YIELD graphName AS graph, relationshipProjection AS degreeProjection,
  nodeCount AS nodes, relationshipCount AS rels
`

	flowProjectionDrop = `CALL gds.graph.drop('centralityGraph') YIELD graphName`

	flowDegreeStream = `
CALL gds.degree.stream('centralityGraph') YIELD nodeId, score MATCH (n:Node)
WHERE id(n) = nodeId SET n.degree_centrality = score
`

	flowPageRankStream = `
CALL gds.pageRank.stream('centralityGraph') YIELD nodeId, score MATCH (n:Node)
WHERE id(n) = nodeId SET n.pagerank_centrality = score
`
)

func (s *Store) withProjection(ctx context.Context, create, drop, stream string) error {
	if _, err := s.run(ctx, create, nil); err != nil {
		return err
	}
	if _, err := s.run(ctx, stream, nil); err != nil {
		s.run(ctx, drop, nil)
		return err
	}
	_, err := s.run(ctx, drop, nil)
	return err
}

// ComputeTopologyBetweenness writes betweenness scores onto nodes from the
// single-hop traceroute topology.
func (s *Store) ComputeTopologyBetweenness(ctx context.Context) error {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/neo4j/Store.ComputeTopologyBetweenness")
	return s.withProjection(ctx, topologyProjectionCreate, topologyProjectionDrop, topologyBetweennessStream)
}

// ComputeTopologyDegree writes degree scores onto nodes from the single-hop
// traceroute topology.
func (s *Store) ComputeTopologyDegree(ctx context.Context) error {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/neo4j/Store.ComputeTopologyDegree")
	return s.withProjection(ctx, topologyProjectionCreate, topologyProjectionDrop, topologyDegreeStream)
}

// ComputeFlowDegree writes degree scores onto nodes from the flow projection.
func (s *Store) ComputeFlowDegree(ctx context.Context) error {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/neo4j/Store.ComputeFlowDegree")
	return s.withProjection(ctx, flowProjectionCreate, flowProjectionDrop, flowDegreeStream)
}

// ComputeFlowPageRank writes PageRank scores onto nodes from the flow
// projection.
func (s *Store) ComputeFlowPageRank(ctx context.Context) error {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/neo4j/Store.ComputeFlowPageRank")
	return s.withProjection(ctx, flowProjectionCreate, flowProjectionDrop, flowPageRankStream)
}
