package casm

// Mission is a business mission whose criticality is propagated onto the
// hosts supporting it. Criticality is either explicit or the maximum of the
// three requirement scores.
type Mission struct {
	ID                         int    `json:"id"`
	Name                       string `json:"name"`
	Criticality                *int   `json:"criticality,omitempty"`
	Description                string `json:"description,omitempty"`
	ConfidentialityRequirement *int   `json:"confidentiality_requirement,omitempty"`
	IntegrityRequirement       *int   `json:"integrity_requirement,omitempty"`
	AvailabilityRequirement    *int   `json:"availability_requirement,omitempty"`
}

// MissionService is a service node in a mission decomposition.
type MissionService struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// MissionHost ties a decomposition node to a concrete host.
type MissionHost struct {
	ID       int    `json:"id"`
	Hostname string `json:"hostname"`
	IP       string `json:"ip"`
}

// Aggregations marks decomposition nodes as AND or OR aggregation points.
// An OR node splits criticality evenly across its children.
type Aggregations struct {
	Or  []int `json:"or,omitempty"`
	And []int `json:"and,omitempty"`
}

// MissionNodes are the nodes of a mission decomposition graph.
type MissionNodes struct {
	Aggregations Aggregations     `json:"aggregations"`
	Missions     []Mission        `json:"missions,omitempty"`
	Services     []MissionService `json:"services,omitempty"`
	Hosts        []MissionHost    `json:"hosts,omitempty"`
}

// Edge is a directed relationship between two decomposition node ids.
type Edge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Pair is an undirected relationship between two decomposition node ids.
type Pair struct {
	First  int `json:"first"`
	Second int `json:"second"`
}

// NamedEdge is a directed relationship between two named graph entities.
type NamedEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MissionRelationships are the edges of a mission decomposition graph.
type MissionRelationships struct {
	OneWay       []Edge      `json:"one_way,omitempty"`
	TwoWay       []Pair      `json:"two_way,omitempty"`
	Dependencies []Edge      `json:"dependencies,omitempty"`
	Supports     []NamedEdge `json:"supports,omitempty"`
	HasIdentity  []NamedEdge `json:"has_identity,omitempty"`
}

// MissionGraph is a full mission decomposition submission.
type MissionGraph struct {
	Nodes         MissionNodes         `json:"nodes"`
	Relationships MissionRelationships `json:"relationships"`
}

// EffectiveCriticality returns the mission's criticality: the explicit value
// when present, otherwise the maximum of the requirement scores. A mission
// with neither is invalid.
func (m *Mission) EffectiveCriticality() (float64, error) {
	if m.Criticality != nil {
		return float64(*m.Criticality), nil
	}
	var max *int
	for _, r := range []*int{m.ConfidentialityRequirement, m.IntegrityRequirement, m.AvailabilityRequirement} {
		if r == nil {
			continue
		}
		if max == nil || *r > *max {
			max = r
		}
	}
	if max == nil {
		return 0, &Error{Kind: ErrBadInput, Message: "mission " + m.Name + " has neither criticality nor requirement scores"}
	}
	return float64(*max), nil
}
