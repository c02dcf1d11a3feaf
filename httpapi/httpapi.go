// Package httpapi serves the asset inventory REST surface.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/quay/zlog"

	"github.com/resilmesh/casm"
	"github.com/resilmesh/casm/datastore"
)

// Listing defaults when the query parameters are absent or malformed.
const (
	DefaultLimit  = 50
	DefaultOffset = 0
)

// Server routes the inventory API onto the datastore interfaces. Every field
// must be populated; the graph store implements them all.
type Server struct {
	Assets      datastore.AssetStore
	Missions    datastore.MissionStore
	Inventory   datastore.InventoryReader
	CVEs        datastore.CVEReader
	Topology    datastore.TopologyStore
	Centrality  datastore.CentralityStore
	Criticality datastore.CriticalityStore
	Hierarchy   datastore.HierarchyStore
	SLP         datastore.SLPStore
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Get("/missions", s.listMissions)
	r.Post("/missions", s.storeMissions)
	r.Post("/assets", s.storeAssets)
	r.Post("/easm", s.storeEASM)
	r.Get("/asset_info", s.assetInfo)
	r.Get("/ips", s.listHandler(s.Inventory.IPAssets))
	r.Get("/subnets", s.listHandler(s.Inventory.Subnets))
	r.Get("/devices", s.listHandler(s.Inventory.Devices))
	r.Get("/org-units", s.listHandler(s.Inventory.OrgUnits))
	r.Get("/applications", s.listHandler(s.Inventory.Applications))
	r.Get("/cves", s.listHandler(s.CVEs.CVEs))
	r.Get(`/cve/{cve_id:CVE-\d{4}-\d{4,7}}`, s.getCVE)
	r.Get(`/ip/{ip:\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}}/cve`, s.getIPCVEs)
	r.Post("/traceroute", s.storeTraceroute)
	r.Post("/nodes/betweenness_centrality", s.computeHandler(s.Centrality.ComputeTopologyBetweenness))
	r.Post("/nodes/degree_centrality", s.computeHandler(s.Centrality.ComputeTopologyDegree))
	r.Post("/nodes/flow_degree_centrality", s.computeHandler(s.Centrality.ComputeFlowDegree))
	r.Post("/nodes/flow_pagerank_centrality", s.computeHandler(s.Centrality.ComputeFlowPageRank))
	r.Post("/nodes/store_criticality", s.storeCriticality)
	r.Post("/nodes/combine_criticality", s.combineCriticality)
	r.Post("/ip-hierarchy-sync", s.hierarchySync)
	r.Post("/slp_enrichment", s.storeSLP)
	return r
}

func limitParam(req *http.Request) int {
	v, err := strconv.Atoi(req.URL.Query().Get("limit"))
	if err != nil {
		return DefaultLimit
	}
	return v
}

func offsetParam(req *http.Request) int {
	v, err := strconv.Atoi(req.URL.Query().Get("offset"))
	if err != nil {
		return DefaultOffset
	}
	return v
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func respondMessage(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, msg)
}

func respondBadInput(w http.ResponseWriter, err error) {
	respondMessage(w, http.StatusUnprocessableEntity, "bad input: "+err.Error())
}

// respondError maps a datastore failure onto the response. Validation
// failures surfaced by the store keep the unprocessable status; everything
// else is reported as a store-side failure.
func respondError(w http.ResponseWriter, req *http.Request, err error) {
	if errors.Is(err, casm.ErrBadInput) {
		respondBadInput(w, err)
		return
	}
	zlog.Error(req.Context()).Err(err).Msg("graph store operation failed")
	respondMessage(w, http.StatusInternalServerError, "graph store operation failed: "+err.Error())
}

func decodeBody(req *http.Request, v interface{ Validate() error }) error {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return err
	}
	return v.Validate()
}

func (s *Server) listMissions(w http.ResponseWriter, req *http.Request) {
	missions, err := s.Missions.Missions(req.Context(), limitParam(req))
	if err != nil {
		respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, missions)
}

func (s *Server) storeMissions(w http.ResponseWriter, req *http.Request) {
	var graph casm.MissionGraph
	if err := json.NewDecoder(req.Body).Decode(&graph); err != nil {
		respondBadInput(w, err)
		return
	}
	// Every mission must carry a usable criticality before it is stored.
	for i := range graph.Nodes.Missions {
		if _, err := graph.Nodes.Missions[i].EffectiveCriticality(); err != nil {
			respondBadInput(w, err)
			return
		}
	}
	if err := s.Missions.StoreMissionGraph(req.Context(), &graph); err != nil {
		respondError(w, req, err)
		return
	}
	respondMessage(w, http.StatusCreated, "processed successfully")
}

func (s *Server) storeAssets(w http.ResponseWriter, req *http.Request) {
	var list casm.AssetList
	if err := decodeBody(req, &list); err != nil {
		respondBadInput(w, err)
		return
	}
	list.Flatten()
	if err := s.Assets.StoreAssets(req.Context(), &list); err != nil {
		respondError(w, req, err)
		return
	}
	respondMessage(w, http.StatusCreated,
		"processed successfully; describe supported missions via the /missions endpoint")
}

func (s *Server) storeEASM(w http.ResponseWriter, req *http.Request) {
	var records []casm.EASMRecord
	if err := json.NewDecoder(req.Body).Decode(&records); err != nil {
		respondBadInput(w, err)
		return
	}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			respondBadInput(w, err)
			return
		}
	}
	if err := s.Assets.StoreEASM(req.Context(), records); err != nil {
		respondError(w, req, err)
		return
	}
	respondMessage(w, http.StatusCreated,
		"processed successfully; describe supported missions via the /missions endpoint")
}

func (s *Server) assetInfo(w http.ResponseWriter, req *http.Request) {
	infos, err := s.Inventory.IPAssetInfo(req.Context(), req.URL.Query().Get("ip"), limitParam(req), offsetParam(req))
	if err != nil {
		respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, infos)
}

func (s *Server) listHandler(list func(ctx context.Context, limit, offset int) ([]map[string]any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		out, err := list(req.Context(), limitParam(req), offsetParam(req))
		if err != nil {
			respondError(w, req, err)
			return
		}
		respondJSON(w, http.StatusOK, out)
	}
}

func (s *Server) getCVE(w http.ResponseWriter, req *http.Request) {
	out, err := s.CVEs.CVE(req.Context(), chi.URLParam(req, "cve_id"), limitParam(req), offsetParam(req))
	if err != nil {
		respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) getIPCVEs(w http.ResponseWriter, req *http.Request) {
	out, err := s.CVEs.IPCVEs(req.Context(), chi.URLParam(req, "ip"), limitParam(req), offsetParam(req))
	if err != nil {
		respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) storeTraceroute(w http.ResponseWriter, req *http.Request) {
	var tr casm.Traceroute
	if err := json.NewDecoder(req.Body).Decode(&tr); err != nil {
		respondBadInput(w, err)
		return
	}
	if err := s.Topology.StoreTraceroute(req.Context(), &tr); err != nil {
		respondError(w, req, err)
		return
	}
	respondMessage(w, http.StatusCreated, "processed successfully")
}

func (s *Server) computeHandler(compute func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := compute(req.Context()); err != nil {
			respondError(w, req, err)
			return
		}
		respondMessage(w, http.StatusOK, "processed successfully")
	}
}

func (s *Server) storeCriticality(w http.ResponseWriter, req *http.Request) {
	var results []casm.MissionCriticality
	if err := json.NewDecoder(req.Body).Decode(&results); err != nil {
		respondBadInput(w, err)
		return
	}
	if err := s.Criticality.StoreCriticality(req.Context(), results); err != nil {
		respondError(w, req, err)
		return
	}
	respondMessage(w, http.StatusCreated, "processed successfully")
}

func (s *Server) combineCriticality(w http.ResponseWriter, req *http.Request) {
	if err := s.Criticality.CombineCriticality(req.Context()); err != nil {
		respondError(w, req, err)
		return
	}
	respondMessage(w, http.StatusOK, "processed successfully")
}

func (s *Server) hierarchySync(w http.ResponseWriter, req *http.Request) {
	if err := s.Hierarchy.SyncIPHierarchy(req.Context()); err != nil {
		respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"message": "processed successfully"})
}

func (s *Server) storeSLP(w http.ResponseWriter, req *http.Request) {
	var records []casm.SLPRecord
	if err := json.NewDecoder(req.Body).Decode(&records); err != nil {
		respondBadInput(w, err)
		return
	}
	if err := s.SLP.StoreSLPData(req.Context(), records); err != nil {
		respondError(w, req, err)
		return
	}
	respondMessage(w, http.StatusCreated, "processed successfully")
}
