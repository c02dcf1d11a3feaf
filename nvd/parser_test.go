package nvd

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/resilmesh/casm/nvd/classify"
)

const parserFixture = `{
  "resultsPerPage": 2,
  "startIndex": 0,
  "totalResults": 2,
  "vulnerabilities": [
    {
      "cve": {
        "id": "CVE-2017-9999",
        "published": "2017-07-17T13:18:00.000",
        "lastModified": "2019-10-03T00:03:26.223",
        "descriptions": [
          {"lang": "en", "value": "A flaw in the admin service allows remote attackers to execute arbitrary code as root."},
          {"lang": "es", "value": "No usado."}
        ],
        "metrics": {
          "cvssMetricV2": [
            {
              "source": "secondary@example.com",
              "type": "Secondary",
              "cvssData": {"vectorString": "AV:N/AC:L/Au:N/C:P/I:P/A:P", "baseScore": 7.5},
              "baseSeverity": "HIGH"
            },
            {
              "source": "nvd@nist.gov",
              "type": "Primary",
              "cvssData": {
                "vectorString": "AV:N/AC:L/Au:N/C:C/I:C/A:C",
                "accessVector": "NETWORK",
                "accessComplexity": "LOW",
                "authentication": "NONE",
                "confidentialityImpact": "COMPLETE",
                "integrityImpact": "COMPLETE",
                "availabilityImpact": "COMPLETE",
                "baseScore": 10.0
              },
              "baseSeverity": "HIGH",
              "exploitabilityScore": 10.0,
              "impactScore": 10.0,
              "acInsufInfo": false,
              "obtainAllPrivilege": true,
              "obtainUserPrivilege": false,
              "obtainOtherPrivilege": false,
              "userInteractionRequired": false
            }
          ],
          "cvssMetricV31": [
            {
              "source": "nvd@nist.gov",
              "type": "Primary",
              "cvssData": {
                "vectorString": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H",
                "attackVector": "NETWORK",
                "attackComplexity": "LOW",
                "privilegesRequired": "NONE",
                "userInteraction": "NONE",
                "scope": "UNCHANGED",
                "confidentialityImpact": "HIGH",
                "integrityImpact": "HIGH",
                "availabilityImpact": "HIGH",
                "baseScore": 9.8,
                "baseSeverity": "CRITICAL"
              },
              "exploitabilityScore": 3.9,
              "impactScore": 5.9
            }
          ]
        },
        "weaknesses": [
          {"description": [{"lang": "en", "value": "CWE-89"}]},
          {"description": [{"lang": "en", "value": "CWE-78"}, {"lang": "en", "value": "CWE-89"}]}
        ],
        "configurations": [
          {
            "nodes": [
              {
                "operator": "OR",
                "negate": false,
                "cpeMatch": [
                  {"vulnerable": true, "criteria": "cpe:2.3:o:acme:router_fw:1.2.3:*:*:*:*:*:*:*", "matchCriteriaId": "AAAA"},
                  {"vulnerable": false, "criteria": "cpe:2.3:h:acme:router:-:*:*:*:*:*:*:*", "matchCriteriaId": "BBBB"}
                ]
              }
            ]
          }
        ],
        "references": [
          {"url": "https://example.com/advisory", "tags": ["Vendor Advisory", "Patch"]},
          {"url": "https://example.com/writeup", "tags": ["Exploit"]}
        ]
      }
    },
    {
      "cve": {
        "id": "CVE-2017-0000",
        "descriptions": []
      }
    }
  ]
}`

func TestParse(t *testing.T) {
	var page Page
	if err := json.Unmarshal([]byte(parserFixture), &page); err != nil {
		t.Fatal(err)
	}
	recs := Parse(context.Background(), page.Items())
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	rec := recs[0]
	if got, want := rec.ID, "CVE-2017-9999"; got != want {
		t.Errorf("id: got %q, want %q", got, want)
	}
	if got, want := rec.Description, "A flaw in the admin service allows remote attackers to execute arbitrary code as root."; got != want {
		t.Errorf("description: got %q, want %q", got, want)
	}
	if want := []string{"CWE-78", "CWE-89"}; !cmp.Equal(want, rec.CWE) {
		t.Error(cmp.Diff(want, rec.CWE))
	}
	if want := map[string]bool{"o": true}; !cmp.Equal(want, rec.CPETypes) {
		t.Error(cmp.Diff(want, rec.CPETypes))
	}
	if want := []string{"Exploit", "Patch", "Vendor Advisory"}; !cmp.Equal(want, rec.RefTags) {
		t.Error(cmp.Diff(want, rec.RefTags))
	}
	// The Primary v2 metric wins over the Secondary one.
	if got, want := rec.V2["baseScore"], 10.0; got != want {
		t.Errorf("v2 baseScore: got %v, want %v", got, want)
	}
	if got, want := rec.V2["obtainAllPrivilege"], true; got != want {
		t.Errorf("v2 obtainAllPrivilege: got %v, want %v", got, want)
	}
	if got, want := rec.V31["baseSeverity"], "CRITICAL"; got != want {
		t.Errorf("v31 baseSeverity: got %v, want %v", got, want)
	}
	if got, want := rec.V31["exploitabilityScore"], 3.9; got != want {
		t.Errorf("v31 exploitabilityScore: got %v, want %v", got, want)
	}
	if rec.V30 != nil || rec.V40 != nil {
		t.Error("unexpected v30 or v40 metrics")
	}
	if want := []string{classify.ImpactRootCodeExecution}; !cmp.Equal(want, rec.Impacts) {
		t.Error(cmp.Diff(want, rec.Impacts))
	}
}

func TestClassifiableView(t *testing.T) {
	rec := &Record{
		Description: "whatever",
		V2: map[string]any{
			"obtainAllPrivilege": true,
			"baseScore":          7.5,
			"accessVector":       "NETWORK",
			"acInsufInfo":        nil,
		},
	}
	got := rec.Classifiable()
	want := map[string]string{
		"obtainAllPrivilege": "true",
		"baseScore":          "7.5",
		"accessVector":       "NETWORK",
	}
	if !cmp.Equal(want, got.V2) {
		t.Error(cmp.Diff(want, got.V2))
	}
	if got.V31 != nil {
		t.Error("expected nil v31 view")
	}
}

func TestPageMore(t *testing.T) {
	tt := []struct {
		Page Page
		Want bool
	}{
		{Page{ResultsPerPage: 2000, StartIndex: 0, TotalResults: 4100}, true},
		{Page{ResultsPerPage: 100, StartIndex: 4000, TotalResults: 4100}, false},
		{Page{ResultsPerPage: 0, StartIndex: 0, TotalResults: 0}, false},
	}
	for _, tc := range tt {
		if got := tc.Page.More(); got != tc.Want {
			t.Errorf("%+v: got %v", tc.Page, got)
		}
	}
}
