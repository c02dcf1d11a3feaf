package neo4j

import (
	"context"
	"sort"

	"github.com/resilmesh/casm/datastore"
	"github.com/resilmesh/casm/nvd"
)

// Property maps translating the API metric keys onto graph property names.
var (
	v2Props = map[string]string{
		"vector_string":             "vectorString",
		"access_vector":             "accessVector",
		"access_complexity":         "accessComplexity",
		"authentication":            "authentication",
		"confidentiality_impact":    "confidentialityImpact",
		"integrity_impact":          "integrityImpact",
		"availability_impact":       "availabilityImpact",
		"base_score":                "baseScore",
		"base_severity":             "baseSeverity",
		"exploitability_score":      "exploitabilityScore",
		"impact_score":              "impactScore",
		"ac_insuf_info":             "acInsufInfo",
		"obtain_all_privilege":      "obtainAllPrivilege",
		"obtain_user_privilege":     "obtainUserPrivilege",
		"obtain_other_privilege":    "obtainOtherPrivilege",
		"user_interaction_required": "userInteractionRequired",
	}
	v3Props = map[string]string{
		"vector_string":          "vectorString",
		"attack_vector":          "attackVector",
		"attack_complexity":      "attackComplexity",
		"privileges_required":    "privilegesRequired",
		"user_interaction":       "userInteraction",
		"scope":                  "scope",
		"confidentiality_impact": "confidentialityImpact",
		"integrity_impact":       "integrityImpact",
		"availability_impact":    "availabilityImpact",
		"base_score":             "baseScore",
		"base_severity":          "baseSeverity",
		"exploitability_score":   "exploitabilityScore",
		"impact_score":           "impactScore",
	}
	v4Props = map[string]string{
		"vector_string":                     "vectorString",
		"attack_vector":                     "attackVector",
		"attack_complexity":                 "attackComplexity",
		"attack_requirements":               "attackRequirements",
		"privileges_required":               "privilegesRequired",
		"user_interaction":                  "userInteraction",
		"vulnerable_system_confidentiality": "vulnerableSystemConfidentiality",
		"vulnerable_system_integrity":       "vulnerableSystemIntegrity",
		"vulnerable_system_availability":    "vulnerableSystemAvailability",
		"subsequent_system_confidentiality": "subsequentSystemConfidentiality",
		"subsequent_system_integrity":       "subsequentSystemIntegrity",
		"subsequent_system_availability":    "subsequentSystemAvailability",
		"exploit_maturity":                  "exploitMaturity",
		"base_score":                        "baseScore",
		"base_severity":                     "baseSeverity",
	}
)

const (
	cveExists = `MATCH (cve:CVE) WHERE cve.cve_id = $cve_id RETURN cve.cve_id`

	softwareVersionExists = `MATCH (v:SoftwareVersion) WHERE v.version = $version RETURN v.version`

	allSoftwareVersions = `MATCH (v:SoftwareVersion) RETURN v.version AS version, v.cve_timestamp AS cve_timestamp`

	versionsOfProduct = `MATCH (v:SoftwareVersion) WHERE v.version STARTS WITH $prefix RETURN v.version AS version`

	versionTimestampUpdate = `MATCH (v:SoftwareVersion {version: $version}) SET v.cve_timestamp = $timestamp`

	vulnerabilityCreate = `CREATE (vul:Vulnerability {description: $description, type: $type})`

	vulnerabilityVersionLink = `
MATCH (vul:Vulnerability), (ver:SoftwareVersion)
WHERE vul.description = $description AND ver.version = $version
MERGE (vul)-[:IN]->(ver)
`

	cveVulnerabilityLink = `
MATCH (cve:CVE), (vul:Vulnerability)
WHERE cve.cve_id = $cve_id AND vul.description = $description
MERGE (vul)-[:REFERS_TO]->(cve)
`

	cveCreate = `
CREATE (cve:CVE {
    cve_id: $cve_id,
    description: $description,
    cwe: $cwe,
    cpe_type: $cpe_type,
    ref_tags: $ref_tags,
    published: $published,
    last_modified: $last_modified,
    result_impacts: $result_impacts
})
CREATE (cvss2:CVSSv2) SET cvss2 = $v2
CREATE (cvss30:CVSSv30) SET cvss30 = $v30
CREATE (cvss31:CVSSv31) SET cvss31 = $v31
CREATE (cvss40:CVSSv40) SET cvss40 = $v40
CREATE (cve)-[:HAS_CVSS_v2]->(cvss2)
CREATE (cve)-[:HAS_CVSS_v30]->(cvss30)
CREATE (cve)-[:HAS_CVSS_v31]->(cvss31)
CREATE (cve)-[:HAS_CVSS_v40]->(cvss40)
`

	cveUpdate = `
MATCH (cve:CVE {cve_id: $cve_id})
SET cve.description = $description,
    cve.cwe = $cwe,
    cve.cpe_type = $cpe_type,
    cve.ref_tags = $ref_tags,
    cve.published = $published,
    cve.last_modified = $last_modified,
    cve.result_impacts = $result_impacts
WITH cve
OPTIONAL MATCH (cve)-[:HAS_CVSS_v2]->(cvss2:CVSSv2)
SET cvss2 = $v2
WITH cve
OPTIONAL MATCH (cve)-[:HAS_CVSS_v30]->(cvss30:CVSSv30)
SET cvss30 = $v30
WITH cve
OPTIONAL MATCH (cve)-[:HAS_CVSS_v31]->(cvss31:CVSSv31)
SET cvss31 = $v31
WITH cve
OPTIONAL MATCH (cve)-[:HAS_CVSS_v40]->(cvss40:CVSSv40)
SET cvss40 = $v40
`

	cveList = `
MATCH (cve:CVE)
RETURN {description: cve.description, cve_id: cve.cve_id} AS cve
SKIP $offset
LIMIT $limit
`

	cveByID = `
MATCH (cve:CVE {cve_id: $cve_id})
RETURN cve
SKIP $offset
LIMIT $limit
`

	ipCVEList = `
MATCH (ip:IP {address: $ip})<-[:HAS_ASSIGNED]-(nod:Node)-[:IS_A]-(host:Host)
WITH host
MATCH (host)<-[:ON]-(soft:SoftwareVersion)<-[:IN]-(vul:Vulnerability)-[:REFERS_TO]->(cve:CVE)
RETURN cve
SKIP $offset
LIMIT $limit
`
)

// CVEExists reports whether the CVE node is already stored.
func (s *Store) CVEExists(ctx context.Context, id string) (bool, error) {
	records, err := s.run(ctx, cveExists, map[string]any{"cve_id": id})
	if err != nil {
		return false, err
	}
	return len(records) > 0, nil
}

// SoftwareVersionExists reports whether a software version node with the key
// is stored.
func (s *Store) SoftwareVersionExists(ctx context.Context, key string) (bool, error) {
	records, err := s.run(ctx, softwareVersionExists, map[string]any{"version": key})
	if err != nil {
		return false, err
	}
	return len(records) > 0, nil
}

// CreateVulnerability creates an assumed vulnerability node.
func (s *Store) CreateVulnerability(ctx context.Context, description string) error {
	_, err := s.run(ctx, vulnerabilityCreate, map[string]any{
		"description": description,
		"type":        "assumed",
	})
	return err
}

// LinkVulnerabilityToVersion merges the IN edge between a vulnerability and a
// software version.
func (s *Store) LinkVulnerabilityToVersion(ctx context.Context, description, versionKey string) error {
	_, err := s.run(ctx, vulnerabilityVersionLink, map[string]any{
		"description": description,
		"version":     versionKey,
	})
	return err
}

// LinkCVEToVulnerability merges the REFERS_TO edge between a vulnerability
// and a CVE.
func (s *Store) LinkCVEToVulnerability(ctx context.Context, cveID, description string) error {
	_, err := s.run(ctx, cveVulnerabilityLink, map[string]any{
		"cve_id":      cveID,
		"description": description,
	})
	return err
}

// CreateCVE creates the CVE node with its four CVSS metric nodes.
func (s *Store) CreateCVE(ctx context.Context, rec *nvd.Record) error {
	_, err := s.run(ctx, cveCreate, cveParams(rec))
	return err
}

// UpdateCVE overwrites a stored CVE node and its metric nodes.
func (s *Store) UpdateCVE(ctx context.Context, rec *nvd.Record) error {
	_, err := s.run(ctx, cveUpdate, cveParams(rec))
	return err
}

// VersionsOfProduct returns the stored version keys of one vendor:product.
func (s *Store) VersionsOfProduct(ctx context.Context, productKey string) ([]string, error) {
	records, err := s.run(ctx, versionsOfProduct, map[string]any{"prefix": productKey + ":"})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(records))
	for _, rec := range records {
		if v, ok := rec.AsMap()["version"].(string); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// AllSoftwareVersions returns every stored software version with its sweep
// watermark.
func (s *Store) AllSoftwareVersions(ctx context.Context) ([]datastore.StoredVersion, error) {
	records, err := s.run(ctx, allSoftwareVersions, nil)
	if err != nil {
		return nil, err
	}
	out := make([]datastore.StoredVersion, 0, len(records))
	for _, rec := range records {
		m := rec.AsMap()
		sv := datastore.StoredVersion{Version: stringValue(m["version"])}
		if ts, ok := m["cve_timestamp"].(string); ok {
			sv.CVETimestamp = ts
		}
		out = append(out, sv)
	}
	return out, nil
}

// UpdateVersionTimestamp moves a software version's sweep watermark.
func (s *Store) UpdateVersionTimestamp(ctx context.Context, versionKey, timestamp string) error {
	_, err := s.run(ctx, versionTimestampUpdate, map[string]any{
		"version":   versionKey,
		"timestamp": timestamp,
	})
	return err
}

// CVEs returns stored CVE ids and descriptions.
func (s *Store) CVEs(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	records, err := s.run(ctx, cveList, map[string]any{"limit": limit, "offset": offset})
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		if m, ok := rec.AsMap()["cve"].(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// CVE returns a single stored CVE node by id.
func (s *Store) CVE(ctx context.Context, id string, limit, offset int) ([]map[string]any, error) {
	records, err := s.run(ctx, cveByID, map[string]any{"cve_id": id, "limit": limit, "offset": offset})
	if err != nil {
		return nil, err
	}
	return flattenRecords(records), nil
}

// IPCVEs returns the CVEs linked to software on the host holding an address.
func (s *Store) IPCVEs(ctx context.Context, ip string, limit, offset int) ([]map[string]any, error) {
	records, err := s.run(ctx, ipCVEList, map[string]any{"ip": ip, "limit": limit, "offset": offset})
	if err != nil {
		return nil, err
	}
	return flattenRecords(records), nil
}

func cveParams(rec *nvd.Record) map[string]any {
	return map[string]any{
		"cve_id":         rec.ID,
		"description":    rec.Description,
		"cwe":            stringsOrEmpty(rec.CWE),
		"cpe_type":       sortedKeys(rec.CPETypes),
		"ref_tags":       stringsOrEmpty(rec.RefTags),
		"published":      rec.Published,
		"last_modified":  rec.LastModified,
		"result_impacts": stringsOrEmpty(rec.Impacts),
		"v2":             metricProps(rec.V2, v2Props),
		"v30":            metricProps(rec.V30, v3Props),
		"v31":            metricProps(rec.V31, v3Props),
		"v40":            metricProps(rec.V40, v4Props),
	}
}

func metricProps(metric map[string]any, props map[string]string) map[string]any {
	out := make(map[string]any, len(props))
	for prop, key := range props {
		out[prop] = metric[key]
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func stringsOrEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
