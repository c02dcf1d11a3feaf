package neo4j

import (
	"context"
	"net/netip"

	"github.com/quay/zlog"
)

const (
	ipAddressList = `MATCH (ip:IP) RETURN ip.address AS address`

	subnetRangeList = `MATCH (s:Subnet) RETURN s.range AS range`

	hierarchyClear = `
MATCH (s1:Subnet)-[r:PART_OF]->(s2:Subnet)
MATCH (ip:IP)-[ip_rel:PART_OF]->(s1)
DELETE r
DELETE ip_rel
`

	subnetHierarchyLoad = `
UNWIND $subnets AS subnets
MERGE (subnet:Subnet {range: subnets.ip_range})
SET subnet.version = subnets.version
MERGE (parent:Subnet {range: subnets.parent})
MERGE (subnet)-[:PART_OF]->(parent)
`

	ipHierarchyLoad = `
UNWIND $ips AS ip_data
MATCH (ip:IP {address: ip_data.address})
OPTIONAL MATCH (ip)-[old_rel:PART_OF]->(old_subnet:Subnet)
DELETE old_rel
WITH ip, ip_data
WHERE ip_data.subnet IS NOT NULL
MATCH (subnet:Subnet {range: ip_data.subnet})
MERGE (ip)-[:PART_OF]->(subnet)
`
)

// IPPlacement maps an address onto its most specific containing subnet.
type IPPlacement struct {
	Address string
	Subnet  string
}

// SubnetPlacement maps a subnet onto its most specific parent.
type SubnetPlacement struct {
	Range   string
	Version int
	Parent  string
}

// ClosestNetwork returns the network with the longest prefix that contains
// the address. The second return is false when no network matches.
func ClosestNetwork(ip netip.Addr, networks []netip.Prefix) (netip.Prefix, bool) {
	var best netip.Prefix
	found := false
	for _, net := range networks {
		if !net.Contains(ip) {
			continue
		}
		if !found || net.Bits() > best.Bits() {
			best, found = net, true
		}
	}
	return best, found
}

// ClosestParent returns the network with the longest prefix, other than the
// subnet itself, that contains the subnet's base address. The second return
// is false when no parent matches.
func ClosestParent(subnet netip.Prefix, networks []netip.Prefix) (netip.Prefix, bool) {
	var best netip.Prefix
	found := false
	for _, net := range networks {
		if net == subnet || !net.Contains(subnet.Addr()) {
			continue
		}
		if !found || net.Bits() > best.Bits() {
			best, found = net, true
		}
	}
	return best, found
}

// PrepareHierarchy resolves every address to its closest subnet and every
// subnet to its closest parent. Addresses and subnets without a match are
// dropped.
func PrepareHierarchy(ips []netip.Addr, subnets []netip.Prefix) ([]IPPlacement, []SubnetPlacement) {
	ipOut := make([]IPPlacement, 0, len(ips))
	for _, ip := range ips {
		if closest, ok := ClosestNetwork(ip, subnets); ok {
			ipOut = append(ipOut, IPPlacement{Address: ip.String(), Subnet: closest.String()})
		}
	}
	subnetOut := make([]SubnetPlacement, 0, len(subnets))
	for _, sub := range subnets {
		parent, ok := ClosestParent(sub, subnets)
		if !ok {
			continue
		}
		version := 6
		if sub.Addr().Is4() {
			version = 4
		}
		subnetOut = append(subnetOut, SubnetPlacement{
			Range:   sub.String(),
			Version: version,
			Parent:  parent.String(),
		})
	}
	return ipOut, subnetOut
}

// SyncIPHierarchy recomputes the PART_OF hierarchy from the addresses and
// subnets currently stored: existing subnet-subnet and address-subnet edges
// are cleared, then reloaded from the closest-match placements.
func (s *Store) SyncIPHierarchy(ctx context.Context) error {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/neo4j/Store.SyncIPHierarchy")
	ips, subnets, err := s.fetchAddresses(ctx)
	if err != nil {
		return err
	}
	ipPlacements, subnetPlacements := PrepareHierarchy(ips, subnets)

	if _, err := s.run(ctx, hierarchyClear, nil); err != nil {
		return err
	}
	subnetRows := make([]map[string]any, len(subnetPlacements))
	for i, p := range subnetPlacements {
		subnetRows[i] = map[string]any{
			"ip_range": p.Range,
			"version":  p.Version,
			"parent":   p.Parent,
		}
	}
	if _, err := s.run(ctx, subnetHierarchyLoad, map[string]any{"subnets": subnetRows}); err != nil {
		return err
	}
	ipRows := make([]map[string]any, len(ipPlacements))
	for i, p := range ipPlacements {
		ipRows[i] = map[string]any{"address": p.Address, "subnet": p.Subnet}
	}
	if _, err := s.run(ctx, ipHierarchyLoad, map[string]any{"ips": ipRows}); err != nil {
		return err
	}
	zlog.Info(ctx).
		Int("ips", len(ipPlacements)).
		Int("subnets", len(subnetPlacements)).
		Msg("synchronized address hierarchy")
	return nil
}

func (s *Store) fetchAddresses(ctx context.Context) ([]netip.Addr, []netip.Prefix, error) {
	ipRecords, err := s.run(ctx, ipAddressList, nil)
	if err != nil {
		return nil, nil, err
	}
	subnetRecords, err := s.run(ctx, subnetRangeList, nil)
	if err != nil {
		return nil, nil, err
	}
	ips := make([]netip.Addr, 0, len(ipRecords))
	for _, rec := range ipRecords {
		raw := stringValue(rec.AsMap()["address"])
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			zlog.Warn(ctx).Str("address", raw).Msg("skipping unparsable address")
			continue
		}
		ips = append(ips, addr)
	}
	subnets := make([]netip.Prefix, 0, len(subnetRecords))
	for _, rec := range subnetRecords {
		raw := stringValue(rec.AsMap()["range"])
		pfx, err := netip.ParsePrefix(raw)
		if err != nil {
			zlog.Warn(ctx).Str("range", raw).Msg("skipping unparsable subnet")
			continue
		}
		subnets = append(subnets, pfx.Masked())
	}
	return ips, subnets, nil
}
