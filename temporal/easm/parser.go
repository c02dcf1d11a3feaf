package easm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/resilmesh/casm"
)

// DefaultFingerprintsURL is the wappalyzergo fingerprint database mapping
// technology names to CPE templates.
const DefaultFingerprintsURL = `https://raw.githubusercontent.com/projectdiscovery/wappalyzergo/refs/heads/main/fingerprints_data.json`

// httpxLine is one JSONL entry of httpx output. Only the consumed fields
// are declared.
type httpxLine struct {
	Failed bool     `json:"failed"`
	Host   string   `json:"host"`
	Input  string   `json:"input"`
	Port   int      `json:"port"`
	Scheme string   `json:"scheme"`
	Tech   []string `json:"tech"`
}

// ParseHTTPX turns httpx JSONL output into exposed-service records. Probes
// marked failed are dropped; absent ports and schemes default to plain
// HTTP. Detected technologies are carried by name, with CPE resolution left
// to [applyFingerprints].
func ParseHTTPX(output []byte) ([]casm.EASMRecord, error) {
	records := []casm.EASMRecord{}
	sc := bufio.NewScanner(bytes.NewReader(output))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry httpxLine
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("easm: malformed probe output line: %w", err)
		}
		if entry.Failed {
			continue
		}
		if entry.Port == 0 {
			entry.Port = 80
		}
		if entry.Scheme == "" {
			entry.Scheme = "http"
		}
		rec := casm.EASMRecord{
			Port:       entry.Port,
			Protocol:   entry.Scheme,
			Service:    entry.Scheme,
			IP:         entry.Host,
			DomainName: entry.Input,
		}
		for _, tech := range entry.Tech {
			rec.SoftwareVersions = append(rec.SoftwareVersions, casm.DetectedVersion{Name: tech})
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("easm: reading probe output: %w", err)
	}
	return records, nil
}

// Fingerprints is the subset of the wappalyzergo database the pipeline
// needs: the CPE template per technology name.
type Fingerprints struct {
	Apps map[string]struct {
		CPE string `json:"cpe"`
	} `json:"apps"`
}

// fetchFingerprints downloads the fingerprint database.
func (a *Activities) fetchFingerprints(ctx context.Context) (*Fingerprints, error) {
	u := a.FingerprintsURL
	if u == "" {
		u = DefaultFingerprintsURL
	}
	hc := a.HC
	if hc == nil {
		hc = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	res, err := hc.Do(req)
	if err != nil {
		return nil, &casm.Error{Kind: casm.ErrTransient, Op: "easm: fetching fingerprints", Inner: err}
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, &casm.Error{Kind: casm.ErrTransient, Op: "easm: fetching fingerprints", Message: res.Status}
	}
	var fp Fingerprints
	if err := json.NewDecoder(res.Body).Decode(&fp); err != nil {
		return nil, fmt.Errorf("easm: decoding fingerprints: %w", err)
	}
	return &fp, nil
}

// needsFingerprints reports whether any record carries a detected
// technology still awaiting CPE resolution.
func needsFingerprints(records []casm.EASMRecord) bool {
	for i := range records {
		if len(records[i].SoftwareVersions) > 0 {
			return true
		}
	}
	return false
}

// applyFingerprints resolves detected technology names to the
// vendor:product:version software keys the graph stores. A technology may
// carry a version after a colon ("nginx:1.24"); without one the key keeps a
// wildcard version. Technologies without a CPE template are dropped, and
// duplicate resolutions collapse.
func applyFingerprints(records []casm.EASMRecord, fp *Fingerprints) {
	for i := range records {
		var resolved []casm.DetectedVersion
		seen := make(map[casm.DetectedVersion]struct{})
		for _, dv := range records[i].SoftwareVersions {
			name, version, _ := strings.Cut(dv.Name, ":")
			name = strings.TrimSpace(name)
			version = strings.TrimSpace(version)
			app, ok := fp.Apps[name]
			if !ok || app.CPE == "" {
				continue
			}
			fields := strings.Split(app.CPE, ":")
			if len(fields) < 5 {
				continue
			}
			if version == "" {
				version = "*"
			}
			entry := casm.DetectedVersion{
				Name:    dv.Name,
				Version: fmt.Sprintf("%s:%s:%s", fields[3], fields[4], version),
			}
			if _, ok := seen[entry]; ok {
				continue
			}
			seen[entry] = struct{}{}
			resolved = append(resolved, entry)
		}
		records[i].SoftwareVersions = resolved
	}
}
