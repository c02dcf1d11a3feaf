package nmapscan

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/netip"
	"sort"

	"github.com/resilmesh/casm"
	"github.com/resilmesh/casm/internal/wfutil"
	"github.com/resilmesh/casm/pkg/cpe"
)

// The consumed subset of the nmap XML report.
type nmapRun struct {
	XMLName xml.Name   `xml:"nmaprun"`
	Hosts   []nmapHost `xml:"host"`
}

type nmapHost struct {
	Status    *nmapStatus    `xml:"status"`
	Addresses []nmapAddress  `xml:"address"`
	Hostnames []nmapHostname `xml:"hostnames>hostname"`
	Ports     []nmapPort     `xml:"ports>port"`
	Trace     *nmapTrace     `xml:"trace"`
}

type nmapStatus struct {
	State string `xml:"state,attr"`
}

type nmapAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}

type nmapHostname struct {
	Name string `xml:"name,attr"`
}

type nmapPort struct {
	Protocol string       `xml:"protocol,attr"`
	PortID   int          `xml:"portid,attr"`
	State    *nmapState   `xml:"state"`
	Service  *nmapService `xml:"service"`
}

type nmapState struct {
	State string `xml:"state,attr"`
}

type nmapService struct {
	Name      string   `xml:"name,attr"`
	Product   string   `xml:"product,attr"`
	Version   string   `xml:"version,attr"`
	ExtraInfo string   `xml:"extrainfo,attr"`
	CPEAttr   string   `xml:"cpe,attr"`
	CPE       []string `xml:"cpe"`
}

type nmapTrace struct {
	Hops []nmapHop `xml:"hop"`
}

type nmapHop struct {
	TTL    int    `xml:"ttl,attr"`
	IPAddr string `xml:"ipaddr,attr"`
}

// ParseScanResults turns a discovery scan report into an inventory
// submission.
func (a *Activities) ParseScanResults(ctx context.Context, rawXML []byte, orgUnit string, tags []string) (*casm.AssetList, error) {
	list, err := ParseScan(rawXML, orgUnit, tags)
	return list, wfutil.AppError(err)
}

// ParseScan walks the report's hosts and derives the inventory: hosts with
// their guessed subnets, one device per address, and a software version and
// application per identified open service. Hosts that are down or carry no
// address are skipped.
func ParseScan(rawXML []byte, orgUnit string, tags []string) (*casm.AssetList, error) {
	var run nmapRun
	if err := xml.Unmarshal(rawXML, &run); err != nil {
		return nil, &casm.Error{Kind: casm.ErrBadInput, Op: "nmapscan: parsing report", Inner: err}
	}
	list := &casm.AssetList{}
	subnetSet := make(map[string]struct{})
	for _, host := range run.Hosts {
		if host.Status == nil || host.Status.State != "up" {
			continue
		}
		var addrs []string
		for _, addr := range host.Addresses {
			if addr.Addr == "" {
				continue
			}
			if addr.AddrType != "ipv4" && addr.AddrType != "ipv6" {
				continue
			}
			addrs = append(addrs, addr.Addr)
		}
		if len(addrs) == 0 {
			continue
		}
		// Every address contributes its network, but the host record only
		// claims membership for its primary address: the inventory rejects
		// hosts claiming subnets that cannot contain them.
		var hostSubnets []string
		for i, addr := range addrs {
			sn, ok := guessSubnet(addr)
			if !ok {
				continue
			}
			subnetSet[sn] = struct{}{}
			if i == 0 {
				hostSubnets = append(hostSubnets, sn)
			}
		}
		var hostnames []string
		for _, hn := range host.Hostnames {
			if hn.Name != "" {
				hostnames = append(hostnames, hn.Name)
			}
		}
		list.Hosts = append(list.Hosts, casm.Host{
			IPAddress:   addrs[0],
			DomainNames: hostnames,
			Subnets:     hostSubnets,
			Tags:        tags,
		})
		for _, addr := range addrs {
			name := addr
			if len(hostnames) > 0 {
				name = hostnames[0]
			}
			// Several addresses on one host need distinct device names.
			if len(addrs) > 1 {
				name = fmt.Sprintf("%s (%s)", name, addr)
			}
			list.Devices = append(list.Devices, casm.Device{Name: name, IPAddress: addr})
			collectServices(list, &host, addr, tags)
		}
	}
	subnets := make([]string, 0, len(subnetSet))
	for sn := range subnetSet {
		subnets = append(subnets, sn)
	}
	sort.Strings(subnets)
	for _, sn := range subnets {
		subnet := casm.Subnet{IPRange: sn, Note: sn}
		if orgUnit != "" {
			subnet.OrgUnits = []string{orgUnit}
		}
		list.Subnets = append(list.Subnets, subnet)
	}
	if orgUnit != "" && len(list.Subnets) > 0 {
		list.OrgUnits = append(list.OrgUnits, casm.OrgUnit{Name: orgUnit})
	}
	return list, nil
}

// collectServices adds a software version and an application for every
// identified open port of the host.
func collectServices(list *casm.AssetList, host *nmapHost, addr string, tags []string) {
	for _, port := range host.Ports {
		if port.State == nil || port.State.State != "open" || port.Service == nil {
			continue
		}
		svc := port.Service
		if key, ok := versionKey(svc); ok {
			list.SoftwareVersions = append(list.SoftwareVersions, casm.SoftwareVersion{
				IPAddresses: []string{addr},
				Version:     key,
				Tags:        tags,
			})
		}
		if svc.Name != "" {
			list.Applications = append(list.Applications, casm.Application{
				Name:   fmt.Sprintf("%s (port %d/%s)", svc.Name, port.PortID, protocolOf(port)),
				Device: addr,
			})
		}
	}
}

func protocolOf(port nmapPort) string {
	if port.Protocol == "" {
		return "tcp"
	}
	return port.Protocol
}

// versionKey derives the vendor:product:version software key from the
// service's CPE. Services without a versioned CPE are skipped: the CVE
// sweep cannot do anything with them.
func versionKey(svc *nmapService) (string, bool) {
	raw := svc.CPEAttr
	if len(svc.CPE) > 0 {
		raw = svc.CPE[0]
	}
	if raw == "" {
		return "", false
	}
	id, err := cpe.FromString(raw)
	if err != nil || id.Version == "*" {
		return "", false
	}
	return id.Key(), true
}

// guessSubnet places an address in its conventional local network, /24 for
// IPv4 and /64 for IPv6.
func guessSubnet(addr string) (string, bool) {
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return "", false
	}
	bits := 24
	if !a.Is4() {
		bits = 64
	}
	p, err := a.Prefix(bits)
	if err != nil {
		return "", false
	}
	return p.String(), true
}

// ParseTraceroute extracts the hop chains from a traceroute report. Every
// chain starts at sourceIP; hosts without a trace element contribute an
// empty chain.
func ParseTraceroute(rawXML []byte, sourceIP string) ([]casm.TraceroutePath, error) {
	var run nmapRun
	if err := xml.Unmarshal(rawXML, &run); err != nil {
		return nil, &casm.Error{Kind: casm.ErrBadInput, Op: "nmapscan: parsing traceroute report", Inner: err}
	}
	paths := make([]casm.TraceroutePath, 0, len(run.Hosts))
	for _, host := range run.Hosts {
		path := casm.TraceroutePath{Hops: []casm.TracerouteHop{}}
		if host.Trace != nil {
			prevIP := sourceIP
			prevTTL := 0
			for _, hop := range host.Trace.Hops {
				path.Hops = append(path.Hops, casm.TracerouteHop{
					PrevIP: prevIP,
					NextIP: hop.IPAddr,
					Hops:   hop.TTL - prevTTL,
				})
				prevTTL = hop.TTL
				prevIP = hop.IPAddr
			}
		}
		paths = append(paths, path)
	}
	return paths, nil
}
