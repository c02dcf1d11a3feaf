package nvd

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/quay/zlog"

	"github.com/resilmesh/casm/nvd/classify"
)

// v2 carries some fields on the metric envelope instead of cvssData.
var v2DataKeys = []string{
	"vectorString",
	"accessVector",
	"accessComplexity",
	"authentication",
	"confidentialityImpact",
	"integrityImpact",
	"availabilityImpact",
	"baseScore",
}

var v3DataKeys = []string{
	"vectorString",
	"attackVector",
	"attackComplexity",
	"privilegesRequired",
	"userInteraction",
	"scope",
	"confidentialityImpact",
	"integrityImpact",
	"availabilityImpact",
	"baseScore",
	"baseSeverity",
}

// v4 impact keys are renamed to spelled-out forms on the record.
var v4DataKeys = map[string]string{
	"vectorString":              "vectorString",
	"baseScore":                 "baseScore",
	"baseSeverity":              "baseSeverity",
	"attackVector":              "attackVector",
	"attackComplexity":          "attackComplexity",
	"attackRequirements":        "attackRequirements",
	"privilegesRequired":        "privilegesRequired",
	"userInteraction":           "userInteraction",
	"vulnConfidentialityImpact": "vulnerableSystemConfidentiality",
	"vulnIntegrityImpact":       "vulnerableSystemIntegrity",
	"vulnAvailabilityImpact":    "vulnerableSystemAvailability",
	"subConfidentialityImpact":  "subsequentSystemConfidentiality",
	"subIntegrityImpact":        "subsequentSystemIntegrity",
	"subAvailabilityImpact":     "subsequentSystemAvailability",
	"exploitMaturity":           "exploitMaturity",
}

// Parse flattens raw API items into [Record]s and attaches the classifier's
// impact labels. Items without an id or description are logged and skipped.
func Parse(ctx context.Context, items []Item) []*Record {
	ctx = zlog.ContextWithValues(ctx, "component", "nvd/Parse")
	recs := make([]*Record, 0, len(items))
	for i := range items {
		it := &items[i]
		if it.ID == "" || len(it.Descriptions) == 0 {
			zlog.Warn(ctx).
				Str("cve", it.ID).
				Msg("skipping record without id or description")
			continue
		}
		rec := &Record{
			ID:             it.ID,
			Description:    it.Descriptions[0].Value,
			CWE:            cweList(it.Weaknesses),
			CPETypes:       cpeTypes(it.Configurations),
			Configurations: it.Configurations,
			Published:      it.Published,
			LastModified:   it.LastModified,
			RefTags:        refTags(it.References),
		}
		if m := pickMetric(it.Metrics.V2); m != nil {
			rec.V2 = dataValues(m.CVSSData, v2DataKeys)
			rec.V2["baseSeverity"] = m.BaseSeverity
			rec.V2["exploitabilityScore"] = numOrNil(m.ExploitabilityScore)
			rec.V2["impactScore"] = numOrNil(m.ImpactScore)
			rec.V2["acInsufInfo"] = boolOrNil(m.ACInsufInfo)
			rec.V2["obtainAllPrivilege"] = boolOrNil(m.ObtainAllPrivilege)
			rec.V2["obtainUserPrivilege"] = boolOrNil(m.ObtainUserPrivilege)
			rec.V2["obtainOtherPrivilege"] = boolOrNil(m.ObtainOtherPrivilege)
			rec.V2["userInteractionRequired"] = boolOrNil(m.UserInteractionRequired)
		}
		if m := pickMetric(it.Metrics.V30); m != nil {
			rec.V30 = dataValues(m.CVSSData, v3DataKeys)
			rec.V30["exploitabilityScore"] = numOrNil(m.ExploitabilityScore)
			rec.V30["impactScore"] = numOrNil(m.ImpactScore)
		}
		if m := pickMetric(it.Metrics.V31); m != nil {
			rec.V31 = dataValues(m.CVSSData, v3DataKeys)
			rec.V31["exploitabilityScore"] = numOrNil(m.ExploitabilityScore)
			rec.V31["impactScore"] = numOrNil(m.ImpactScore)
		}
		if m := pickMetric(it.Metrics.V40); m != nil {
			rec.V40 = make(map[string]any, len(v4DataKeys))
			for wire, name := range v4DataKeys {
				if val, ok := m.CVSSData[wire]; ok {
					rec.V40[name] = val
				}
			}
		}
		rec.Impacts = dedup(classify.Classify(rec.Classifiable()))
		recs = append(recs, rec)
	}
	return recs
}

// Classifiable returns the stringified view of the record the classifier
// consumes. Numbers and booleans are rendered the way they would print, so
// checks against "true" observe the wire value.
func (r *Record) Classifiable() *classify.Vulnerability {
	return &classify.Vulnerability{
		Description: r.Description,
		CPETypes:    r.CPETypes,
		V2:          stringValues(r.V2),
		V30:         stringValues(r.V30),
		V31:         stringValues(r.V31),
		V40:         stringValues(r.V40),
	}
}

// pickMetric selects the Primary metric, falling back to the first one.
func pickMetric(ms []MetricEnvelope) *MetricEnvelope {
	if len(ms) == 0 {
		return nil
	}
	for i := range ms {
		if ms[i].Type == "Primary" {
			return &ms[i]
		}
	}
	return &ms[0]
}

func dataValues(data map[string]any, keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := data[k]; ok {
			out[k] = v
		}
	}
	return out
}

func stringValues(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch v := v.(type) {
		case nil:
		case string:
			out[k] = v
		case bool:
			out[k] = strconv.FormatBool(v)
		case float64:
			out[k] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return out
}

func numOrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func boolOrNil(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}

func cweList(ws []Weakness) []string {
	set := map[string]struct{}{}
	for _, w := range ws {
		for _, d := range w.Description {
			set[d.Value] = struct{}{}
		}
	}
	return sorted(set)
}

func refTags(rs []Reference) []string {
	set := map[string]struct{}{}
	for _, r := range rs {
		for _, t := range r.Tags {
			set[t] = struct{}{}
		}
	}
	return sorted(set)
}

// cpeTypes collects the part letters of the vulnerable criteria.
func cpeTypes(cfgs []Configuration) map[string]bool {
	types := map[string]bool{}
	for _, cfg := range cfgs {
		for _, node := range cfg.Nodes {
			for _, cm := range node.CPEMatch {
				if !cm.Vulnerable {
					continue
				}
				// "cpe:2.3:a:...": the part is the third field.
				fs := strings.SplitN(cm.Criteria, ":", 4)
				if len(fs) > 2 {
					types[fs[2]] = true
				}
			}
		}
	}
	return types
}

func sorted(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// dedup keeps the first occurrence of each label.
func dedup(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ss))
	out := ss[:0]
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
