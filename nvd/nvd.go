// Package nvd talks to the NVD 2.0 API and turns its records into graph
// facts: flattened CVE rows, impact labels, and links to the software
// versions stored in the inventory graph.
package nvd

// Record is one flattened CVE. The metric maps hold the selected metric's
// values keyed the way the API names them; absent metric versions are nil
// maps. Values keep their wire types (strings, numbers, bools).
type Record struct {
	ID           string
	Description  string
	CWE          []string
	CPETypes     map[string]bool
	V2           map[string]any
	V30          map[string]any
	V31          map[string]any
	V40          map[string]any
	// Configurations is the raw applicability statement, kept for the
	// matcher.
	Configurations []Configuration
	Published      string
	LastModified   string
	RefTags        []string
	// Impacts are the deduplicated classifier labels.
	Impacts []string
}

// Page is one page of the CVE API response.
type Page struct {
	ResultsPerPage  int                     `json:"resultsPerPage"`
	StartIndex      int                     `json:"startIndex"`
	TotalResults    int                     `json:"totalResults"`
	Vulnerabilities []VulnerabilityEnvelope `json:"vulnerabilities"`
}

// More reports whether another page follows this one.
func (p *Page) More() bool {
	return p.StartIndex+p.ResultsPerPage < p.TotalResults
}

// Items unwraps the envelope layer.
func (p *Page) Items() []Item {
	items := make([]Item, len(p.Vulnerabilities))
	for i := range p.Vulnerabilities {
		items[i] = p.Vulnerabilities[i].CVE
	}
	return items
}

// VulnerabilityEnvelope is the wrapper object around each CVE in a page.
type VulnerabilityEnvelope struct {
	CVE Item `json:"cve"`
}

// Item is one raw CVE as served by the API.
type Item struct {
	ID             string          `json:"id"`
	Descriptions   []LangString    `json:"descriptions"`
	Metrics        Metrics         `json:"metrics"`
	Weaknesses     []Weakness      `json:"weaknesses"`
	Configurations []Configuration `json:"configurations"`
	Published      string          `json:"published"`
	LastModified   string          `json:"lastModified"`
	References     []Reference     `json:"references"`
}

// LangString is a language-tagged string.
type LangString struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

// Metrics collects the CVSS metric lists by version.
type Metrics struct {
	V2  []MetricEnvelope `json:"cvssMetricV2"`
	V30 []MetricEnvelope `json:"cvssMetricV30"`
	V31 []MetricEnvelope `json:"cvssMetricV31"`
	V40 []MetricEnvelope `json:"cvssMetricV40"`
}

// MetricEnvelope is one CVSS metric entry. CVSSData keys differ per version
// and are kept raw; the remaining fields only appear on v2 entries.
type MetricEnvelope struct {
	Source                  string         `json:"source"`
	Type                    string         `json:"type"`
	CVSSData                map[string]any `json:"cvssData"`
	BaseSeverity            string         `json:"baseSeverity"`
	ExploitabilityScore     *float64       `json:"exploitabilityScore"`
	ImpactScore             *float64       `json:"impactScore"`
	ACInsufInfo             *bool          `json:"acInsufInfo"`
	ObtainAllPrivilege      *bool          `json:"obtainAllPrivilege"`
	ObtainUserPrivilege     *bool          `json:"obtainUserPrivilege"`
	ObtainOtherPrivilege    *bool          `json:"obtainOtherPrivilege"`
	UserInteractionRequired *bool          `json:"userInteractionRequired"`
}

// Weakness is a CWE assignment.
type Weakness struct {
	Description []LangString `json:"description"`
}

// Reference is an external reference with tags.
type Reference struct {
	URL  string   `json:"url"`
	Tags []string `json:"tags"`
}

// Configuration is an applicability statement: either a bare list of OR
// nodes, or an AND over exactly two OR nodes.
type Configuration struct {
	Operator string       `json:"operator,omitempty"`
	Nodes    []ConfigNode `json:"nodes"`
}

// ConfigNode is one node of an applicability statement.
type ConfigNode struct {
	Operator string     `json:"operator"`
	Negate   bool       `json:"negate"`
	CPEMatch []CPEMatch `json:"cpeMatch"`
}

// CPEMatch is one CPE criteria with optional version bounds. Absent bounds
// are empty strings.
type CPEMatch struct {
	Vulnerable            bool   `json:"vulnerable"`
	Criteria              string `json:"criteria"`
	MatchCriteriaID       string `json:"matchCriteriaId"`
	VersionStartIncluding string `json:"versionStartIncluding,omitempty"`
	VersionStartExcluding string `json:"versionStartExcluding,omitempty"`
	VersionEndIncluding   string `json:"versionEndIncluding,omitempty"`
	VersionEndExcluding   string `json:"versionEndExcluding,omitempty"`
}

// MatchPage is the cpematch API response.
type MatchPage struct {
	MatchStrings []struct {
		MatchString struct {
			Matches []struct {
				CPEName string `json:"cpeName"`
			} `json:"matches"`
		} `json:"matchString"`
	} `json:"matchStrings"`
}
