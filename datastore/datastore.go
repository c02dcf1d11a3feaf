// Package datastore holds the storage interfaces of the asset inventory
// graph. The neo4j subpackage implements them.
package datastore

import (
	"context"

	"github.com/resilmesh/casm"
)

// StoredVersion is a software version node with its CVE sweep watermark.
type StoredVersion struct {
	Version      string `json:"version"`
	CVETimestamp string `json:"cve_timestamp"`
}

// AssetStore ingests inventory submissions.
type AssetStore interface {
	StoreAssets(ctx context.Context, list *casm.AssetList) error
	StoreEASM(ctx context.Context, records []casm.EASMRecord) error
}

// MissionStore ingests mission graphs and lists stored missions.
type MissionStore interface {
	StoreMissionGraph(ctx context.Context, graph *casm.MissionGraph) error
	Missions(ctx context.Context, limit int) ([]map[string]any, error)
}

// InventoryReader serves the generic read endpoints.
type InventoryReader interface {
	IPAssets(ctx context.Context, limit, offset int) ([]map[string]any, error)
	Subnets(ctx context.Context, limit, offset int) ([]map[string]any, error)
	Devices(ctx context.Context, limit, offset int) ([]map[string]any, error)
	OrgUnits(ctx context.Context, limit, offset int) ([]map[string]any, error)
	Applications(ctx context.Context, limit, offset int) ([]map[string]any, error)
	IPAssetInfo(ctx context.Context, ip string, limit, offset int) ([]casm.IPAssetInfo, error)
}

// CVEReader serves the CVE read endpoints.
type CVEReader interface {
	CVEs(ctx context.Context, limit, offset int) ([]map[string]any, error)
	CVE(ctx context.Context, id string, limit, offset int) ([]map[string]any, error)
	IPCVEs(ctx context.Context, ip string, limit, offset int) ([]map[string]any, error)
}

// VersionStore serves the CVE update loop's view of stored software
// versions.
type VersionStore interface {
	AllSoftwareVersions(ctx context.Context) ([]StoredVersion, error)
	UpdateVersionTimestamp(ctx context.Context, versionKey, timestamp string) error
}

// TopologyStore ingests traceroute results.
type TopologyStore interface {
	StoreTraceroute(ctx context.Context, t *casm.Traceroute) error
}

// CentralityStore runs the graph data science projections.
type CentralityStore interface {
	ComputeTopologyBetweenness(ctx context.Context) error
	ComputeTopologyDegree(ctx context.Context) error
	ComputeFlowDegree(ctx context.Context) error
	ComputeFlowPageRank(ctx context.Context) error
}

// CriticalityStore persists and combines node criticality.
type CriticalityStore interface {
	StoreCriticality(ctx context.Context, results []casm.MissionCriticality) error
	CombineCriticality(ctx context.Context) error
}

// HierarchyStore rebuilds the IP and subnet containment hierarchy.
type HierarchyStore interface {
	SyncIPHierarchy(ctx context.Context) error
}

// SLPStore ingests Silent Push enrichment results.
type SLPStore interface {
	StoreSLPData(ctx context.Context, records []casm.SLPRecord) error
}

// Cleaner expires aged relationships and events.
type Cleaner interface {
	CleanOldVulnerabilities(ctx context.Context) error
	CleanHostLayer(ctx context.Context) error
	CleanNetworkLayer(ctx context.Context) error
	CleanSecurityEvents(ctx context.Context) error
}
