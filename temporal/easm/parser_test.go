package easm

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/resilmesh/casm"
)

func TestParseHTTPX(t *testing.T) {
	output := []byte(`
{"host":"203.0.113.10","input":"www.example.com","port":443,"scheme":"https","tech":["nginx:1.24","PHP"]}
{"failed":true,"input":"dead.example.com"}
{"input":"bare.example.com"}
`)
	got, err := ParseHTTPX(output)
	if err != nil {
		t.Fatal(err)
	}
	want := []casm.EASMRecord{
		{
			Port:       443,
			Protocol:   "https",
			Service:    "https",
			IP:         "203.0.113.10",
			DomainName: "www.example.com",
			SoftwareVersions: []casm.DetectedVersion{
				{Name: "nginx:1.24"},
				{Name: "PHP"},
			},
		},
		{
			Port:       80,
			Protocol:   "http",
			Service:    "http",
			DomainName: "bare.example.com",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records (-want +got):\n%s", diff)
	}
}

func TestParseHTTPXMalformed(t *testing.T) {
	if _, err := ParseHTTPX([]byte("{not json")); err == nil {
		t.Error("malformed line accepted")
	}
}

func TestApplyFingerprints(t *testing.T) {
	fp := &Fingerprints{
		Apps: map[string]struct {
			CPE string `json:"cpe"`
		}{
			"nginx": {CPE: "cpe:2.3:a:f5:nginx:*:*:*:*:*:*:*:*"},
			"PHP":   {CPE: "cpe:2.3:a:php:php:*:*:*:*:*:*:*:*"},
			"React": {},
		},
	}
	records := []casm.EASMRecord{{
		Port:       443,
		DomainName: "www.example.com",
		SoftwareVersions: []casm.DetectedVersion{
			{Name: "nginx:1.24"},
			{Name: "nginx:1.24"},
			{Name: "PHP"},
			{Name: "React"},
			{Name: "UnknownThing"},
		},
	}}
	applyFingerprints(records, fp)
	want := []casm.DetectedVersion{
		{Name: "nginx:1.24", Version: "f5:nginx:1.24"},
		{Name: "PHP", Version: "php:php:*"},
	}
	if diff := cmp.Diff(want, records[0].SoftwareVersions); diff != "" {
		t.Errorf("versions (-want +got):\n%s", diff)
	}
}

func TestUniqueLines(t *testing.T) {
	got := uniqueLines("a.example.com\nb.example.com\n", "b.example.com\n\nc.example.com")
	want := "a.example.com\nb.example.com\nc.example.com"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
