package casm

// TracerouteHop is one link observed between two addresses.
type TracerouteHop struct {
	PrevIP string `json:"prev_ip"`
	NextIP string `json:"next_ip"`
	Hops   int    `json:"hops"`
}

// TraceroutePath is a chain of hops from one traceroute run.
type TraceroutePath struct {
	Hops []TracerouteHop `json:"hops"`
}

// Traceroute is a topology scan submission.
type Traceroute struct {
	Data []TraceroutePath `json:"data"`
	// Time is the detection time, RFC3339.
	Time string `json:"time"`
}

// MissionCriticality is a computed criticality value for one host.
type MissionCriticality struct {
	IP          string  `json:"ip"`
	Hostname    string  `json:"hostname"`
	Criticality float64 `json:"criticality"`
}

// SLPRecord is one enrichment row from the Silent Push lookup. SPRiskScore is
// an integer, or the string "null" for domains the service did not know.
type SLPRecord struct {
	Domain      string `json:"domain"`
	IP          string `json:"ip"`
	SPRiskScore any    `json:"sp_risk_score"`
	Subnet      string `json:"subnet"`
	Tag         string `json:"tag"`
}

// NodeCentrality is the set of centrality scores computed for a network
// node. Absent scores are nil.
type NodeCentrality struct {
	DegreeCentrality    *float64 `json:"degree_centrality"`
	PagerankCentrality  *float64 `json:"pagerank_centrality"`
	TopologyBetweenness *float64 `json:"topology_betweenness"`
	TopologyDegree      *float64 `json:"topology_degree"`
}

// IPAssetInfo is the aggregate view of a single address served by the
// inventory API. Critical is 1 when the address supports any mission.
type IPAssetInfo struct {
	IP          string           `json:"ip"`
	DomainNames []string         `json:"domain_names"`
	Subnets     []string         `json:"subnets"`
	Contacts    []string         `json:"contacts"`
	Missions    []string         `json:"missions"`
	Nodes       []NodeCentrality `json:"nodes"`
	Critical    int              `json:"critical"`
}
