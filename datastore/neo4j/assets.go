package neo4j

import (
	"context"
	"time"

	"github.com/quay/zlog"

	"github.com/resilmesh/casm"
)

const (
	subnetInsert = `
UNWIND $subnets AS subnet
MERGE (s:Subnet {range: subnet.ip_range})
SET s.version = subnet.version
FOREACH (_ IN CASE WHEN subnet.note <> "" THEN [1] ELSE [] END | SET s.note = subnet.note)
FOREACH (name IN subnet.contacts | MERGE (c:Contact {name: name}) MERGE (s)-[:HAS]->(c))
FOREACH (range IN subnet.parents | MERGE (p:Subnet {range: range}) MERGE (s)-[:PART_OF]->(p))
FOREACH (name IN subnet.org_units | MERGE (ou:OrganizationUnit {name: name}) MERGE (s)-[:PART_OF]->(ou))
`

	hostInsert = `
UNWIND $hosts AS host
MERGE (ip:IP {address: host.ip_address})
SET ip.version = host.version
FOREACH (_ IN CASE WHEN size(host.tag) > 0 THEN [1] ELSE [] END |
    SET ip.tag = apoc.coll.toSet(coalesce(ip.tag, []) + host.tag))
MERGE (node:Node)-[:HAS_ASSIGNED]->(ip)
MERGE (h:Host)<-[:IS_A]-(node)
FOREACH (name IN host.domain_names | MERGE (d:DomainName {domain_name: name}) MERGE (ip)-[:RESOLVES_TO]->(d))
FOREACH (range IN host.subnets | MERGE (s:Subnet {range: range}) MERGE (ip)-[:PART_OF]->(s))
FOREACH (uri IN host.uris | MERGE (u:URI {uri: uri}) MERGE (ip)-[:IDENTIFIES]->(u))
`

	softwareVersionInsert = `
UNWIND $versions AS ver
MERGE (sv:SoftwareVersion {version: ver.version})
FOREACH (_ IN CASE WHEN size(ver.tag) > 0 THEN [1] ELSE [] END |
    SET sv.tag = apoc.coll.toSet(coalesce(sv.tag, []) + ver.tag))
WITH sv, ver
UNWIND ver.ip_addresses AS address
MATCH (h:Host)<-[:IS_A]-(:Node)-[:HAS_ASSIGNED]->(:IP {address: address})
MERGE (sv)-[:ON]->(h)
`

	networkServiceInsert = `
UNWIND $services AS svc
MERGE (ns:NetworkService {service: svc.service, port: svc.port, protocol: svc.protocol})
FOREACH (_ IN CASE WHEN size(svc.tag) > 0 THEN [1] ELSE [] END |
    SET ns.tag = apoc.coll.toSet(coalesce(ns.tag, []) + svc.tag))
WITH ns, svc
UNWIND svc.ip_addresses AS address
MATCH (h:Host)<-[:IS_A]-(:Node)-[:HAS_ASSIGNED]->(:IP {address: address})
MERGE (ns)-[:ON]->(h)
`

	deviceInsert = `
UNWIND $devices AS dev
MERGE (d:Device {name: dev.name})
SET d.manufacturer = dev.manufacturer, d.model = dev.model, d.power = dev.power, d.state = dev.state
FOREACH (name IN dev.org_units | MERGE (ou:OrganizationUnit {name: name}) MERGE (d)-[:PART_OF]->(ou))
WITH d, dev
WHERE dev.ip_address <> ""
MATCH (h:Host)<-[:IS_A]-(:Node)-[:HAS_ASSIGNED]->(:IP {address: dev.ip_address})
MERGE (d)-[:HAS_IDENTITY]->(h)
`

	applicationInsert = `
UNWIND $applications AS app
MERGE (a:Application {name: app.name})
WITH a, app
MATCH (d:Device {name: app.device})
MERGE (a)-[:RUNNING_ON]->(d)
`

	orgUnitInsert = `
UNWIND $org_units AS ou
MERGE (o:OrganizationUnit {name: ou.name})
FOREACH (loc IN ou.locations | MERGE (pe:PhysicalEnvironment {name: loc}) MERGE (o)-[:TENANTS]->(pe))
FOREACH (name IN ou.parents | MERGE (po:OrganizationUnit {name: name}) MERGE (o)-[:PART_OF]->(po))
`
)

// Queries enforcing that every IP and subnet without an explicit parent hangs
// off the root subnet of its version, and that the root link is dropped again
// once a more specific parent appears.
var defaultParentStatements = []string{
	`
MATCH (ip:IP) WHERE NOT EXISTS ((ip)-[:PART_OF]->(:Subnet)) AND ip.version = 4
MATCH (s:Subnet {range: "0.0.0.0/0"})
MERGE (ip)-[:PART_OF]->(s)
`,
	`
MATCH (internet:Subnet {range: "0.0.0.0/0"})
MATCH (ip:IP)-[r:PART_OF]->(internet) WHERE count{(ip)-[:PART_OF]-(:Subnet)} > 1
DELETE r
`,
	`
MATCH (ip:IP) WHERE NOT EXISTS ((ip)-[:PART_OF]->(:Subnet)) AND ip.version = 6
MATCH (s:Subnet {range: "::/0"})
MERGE (ip)-[:PART_OF]->(s)
`,
	`
MATCH (internet:Subnet {range: "::/0"})
MATCH (ip:IP)-[r:PART_OF]->(internet) WHERE count{(ip)-[:PART_OF]-(:Subnet)} > 1
DELETE r
`,
	`
MATCH (s:Subnet) WHERE NOT EXISTS ((s)-[:PART_OF]->(:Subnet)) AND s.version = 4 AND s.range <> "0.0.0.0/0"
MATCH (internet:Subnet {range: "0.0.0.0/0"})
MERGE (s)-[:PART_OF]->(internet)
`,
	`
MATCH (internet:Subnet {range: "0.0.0.0/0"})
MATCH (subnet:Subnet)-[r:PART_OF]->(internet) WHERE count{(subnet)-[:PART_OF]->(:Subnet)} > 1
DELETE r
`,
	`
MATCH (s:Subnet) WHERE NOT EXISTS ((s)-[:PART_OF]->(:Subnet)) AND s.version = 6 AND s.range <> "::/0"
MATCH (internet:Subnet {range: "::/0"})
MERGE (s)-[:PART_OF]->(internet)
`,
	`
MATCH (internet:Subnet {range: "::/0"})
MATCH (subnet:Subnet)-[r:PART_OF]->(internet) WHERE count{(subnet)-[:PART_OF]->(:Subnet)} > 1
DELETE r
`,
}

// StoreAssets writes a validated, flattened inventory submission and then
// enforces the default-parent rules.
func (s *Store) StoreAssets(ctx context.Context, list *casm.AssetList) error {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/neo4j/Store.StoreAssets")
	var versions, services []map[string]any
	for i := range list.SoftwareVersions {
		v := &list.SoftwareVersions[i]
		if v.Version != "" {
			versions = append(versions, map[string]any{
				"version":      v.Version,
				"tag":          orEmpty(v.Tags),
				"ip_addresses": orEmpty(v.IPAddresses),
			})
			continue
		}
		services = append(services, map[string]any{
			"service":      v.Service,
			"port":         v.Port,
			"protocol":     v.Protocol,
			"tag":          orEmpty(v.Tags),
			"ip_addresses": orEmpty(v.IPAddresses),
		})
	}
	steps := []struct {
		query  string
		params map[string]any
	}{
		{subnetInsert, map[string]any{"subnets": subnetParams(list.Subnets)}},
		{hostInsert, map[string]any{"hosts": hostParams(list.Hosts)}},
		{softwareVersionInsert, map[string]any{"versions": versions}},
		{networkServiceInsert, map[string]any{"services": services}},
		{deviceInsert, map[string]any{"devices": deviceParams(list.Devices)}},
		{applicationInsert, map[string]any{"applications": applicationParams(list.Applications)}},
		{orgUnitInsert, map[string]any{"org_units": orgUnitParams(list.OrgUnits)}},
	}
	for _, step := range steps {
		if _, err := s.run(ctx, step.query, step.params); err != nil {
			return err
		}
	}
	for _, stmt := range defaultParentStatements {
		if _, err := s.run(ctx, stmt, nil); err != nil {
			return err
		}
	}
	zlog.Info(ctx).
		Int("subnets", len(list.Subnets)).
		Int("hosts", len(list.Hosts)).
		Int("software_versions", len(list.SoftwareVersions)).
		Msg("stored assets")
	return nil
}

const easmInsert = `
WITH $records AS rows, datetime.truncate('second', datetime.fromepochmillis(TIMESTAMP())) AS scan_dt
UNWIND rows AS row
MERGE (ipadd:IP {address: row.ip})
    ON CREATE SET ipadd.tag = ["unknown"]
    SET ipadd.tag = apoc.coll.toSet(ipadd.tag + ["CASM"])
MERGE (node:Node)-[r1:HAS_ASSIGNED]->(ipadd)
    ON CREATE SET r1.start = scan_dt
MERGE (host:Host)<-[:IS_A]-(node)
WITH host, row, ipadd, scan_dt
MERGE (dn:DomainName {domain_name: row.domain_name})
    ON CREATE SET dn.tag = ["unknown"]
    SET dn.tag = apoc.coll.toSet(["A/AAAA", "CASM"] + dn.tag)
WITH host, row, dn, ipadd, scan_dt
OPTIONAL MATCH (dn)<-[r2:RESOLVES_TO]-(ipadd) WHERE r2.end IS NULL
FOREACH (r IN CASE WHEN r2 IS NULL THEN [r2] ELSE [] END |
    MERGE (dn)<-[:RESOLVES_TO {start: scan_dt}]-(ipadd)
)
WITH host, row, scan_dt
MERGE (ns:NetworkService {service: row.service, port: row.port, protocol: row.protocol})
    ON CREATE SET ns.tag = ["CASM"]
    SET ns.tag = apoc.coll.toSet(["CASM"] + ns.tag)
WITH host, row, ns, scan_dt
MATCH (ns:NetworkService {service: row.service, port: row.port, protocol: row.protocol})
MATCH (host:Host)<-[IS_A]-(:Node)-[:HAS_ASSIGNED]->(:IP {address: row.ip})
OPTIONAL MATCH (ns)<-[r3:ON]-(host) WHERE r3.end IS NULL
    FOREACH (r IN CASE WHEN r3 IS NULL THEN [r3] ELSE [] END |
        MERGE (ns)<-[ns_h:ON {start: scan_dt}]-(host)
        ON CREATE SET ns_h.tag = ["unknown", "CASM"]
    )
WITH host, row, scan_dt
UNWIND row.software_versions AS software_version
MERGE (sv:SoftwareVersion {name: software_version.name})
    ON CREATE SET sv.version = software_version.version
WITH host, row, scan_dt, software_version
MATCH (sv:SoftwareVersion {name: software_version.name})
MATCH (host:Host)<-[IS_A]-(:Node)-[:HAS_ASSIGNED]->(:IP {address: row.ip})
OPTIONAL MATCH (sv)<-[r4:ON]-(host) WHERE r4.end IS NULL
    FOREACH (r IN CASE WHEN r4 IS NULL THEN [r4] ELSE [] END |
        MERGE (sv)<-[sv_h:ON {start: scan_dt}]-(host)
        ON CREATE SET sv_h.tag = ["unknown", "CASM"]
    )
`

// StoreEASM writes external attack surface enumeration results. Detection
// edges carry a start timestamp so the cleaner can expire them.
func (s *Store) StoreEASM(ctx context.Context, records []casm.EASMRecord) error {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/neo4j/Store.StoreEASM")
	rows := make([]map[string]any, len(records))
	for i, r := range records {
		svs := make([]map[string]any, len(r.SoftwareVersions))
		for j, sv := range r.SoftwareVersions {
			svs[j] = map[string]any{"name": sv.Name, "version": sv.Version}
		}
		rows[i] = map[string]any{
			"ip":                r.IP,
			"domain_name":       r.DomainName,
			"service":           r.Service,
			"port":              r.Port,
			"protocol":          r.Protocol,
			"software_versions": svs,
		}
	}
	start := time.Now()
	if _, err := s.run(ctx, easmInsert, map[string]any{"records": rows}); err != nil {
		return err
	}
	zlog.Info(ctx).
		Int("records", len(records)).
		Dur("elapsed", time.Since(start)).
		Msg("stored easm results")
	return nil
}

func subnetParams(subnets []casm.Subnet) []map[string]any {
	out := make([]map[string]any, len(subnets))
	for i, sn := range subnets {
		out[i] = map[string]any{
			"ip_range":  sn.IPRange,
			"version":   sn.Version,
			"note":      sn.Note,
			"contacts":  orEmpty(sn.Contacts),
			"parents":   orEmpty(sn.Parents),
			"org_units": orEmpty(sn.OrgUnits),
		}
	}
	return out
}

func hostParams(hosts []casm.Host) []map[string]any {
	out := make([]map[string]any, len(hosts))
	for i, h := range hosts {
		out[i] = map[string]any{
			"ip_address":   h.IPAddress,
			"version":      h.Version,
			"tag":          orEmpty(h.Tags),
			"domain_names": orEmpty(h.DomainNames),
			"subnets":      orEmpty(h.Subnets),
			"uris":         orEmpty(h.URIs),
		}
	}
	return out
}

func deviceParams(devices []casm.Device) []map[string]any {
	out := make([]map[string]any, len(devices))
	for i, d := range devices {
		out[i] = map[string]any{
			"name":         d.Name,
			"manufacturer": d.Manufacturer,
			"model":        d.Model,
			"power":        d.Power,
			"state":        d.State,
			"ip_address":   d.IPAddress,
			"org_units":    orEmpty(d.OrgUnits),
		}
	}
	return out
}

func applicationParams(apps []casm.Application) []map[string]any {
	out := make([]map[string]any, len(apps))
	for i, a := range apps {
		out[i] = map[string]any{"name": a.Name, "device": a.Device}
	}
	return out
}

func orgUnitParams(ous []casm.OrgUnit) []map[string]any {
	out := make([]map[string]any, len(ous))
	for i, ou := range ous {
		out[i] = map[string]any{
			"name":      ou.Name,
			"locations": orEmpty(ou.Locations),
			"parents":   orEmpty(ou.Parents),
		}
	}
	return out
}

// orEmpty keeps nil slices out of Cypher parameters.
func orEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
