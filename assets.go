// Package casm holds the wire types shared by the scanning workflows, the
// inventory API, and the graph store.
package casm

import (
	"fmt"
	"net/netip"
	"strings"
)

// Subnet is one network range in the asset inventory.
type Subnet struct {
	// IPRange is the subnet in CIDR notation. It is the graph identity of
	// the subnet.
	IPRange  string   `json:"ip_range"`
	Note     string   `json:"note,omitempty"`
	Contacts []string `json:"contacts,omitempty"`
	// Parents are CIDR ranges this subnet is part of. Every parent must be
	// a supernet of IPRange.
	Parents  []string `json:"parents,omitempty"`
	OrgUnits []string `json:"org_units,omitempty"`
	// Version is the IP version, derived from IPRange during validation.
	Version int `json:"version,omitempty"`
}

// Validate checks the range, derives the IP version, and checks that every
// declared parent actually contains the range.
func (s *Subnet) Validate() error {
	p, err := netip.ParsePrefix(s.IPRange)
	if err != nil {
		return &Error{Kind: ErrBadInput, Message: fmt.Sprintf("subnet %q", s.IPRange), Inner: err}
	}
	s.Version = ipVersion(p.Addr())
	for _, parent := range s.Parents {
		pp, err := netip.ParsePrefix(parent)
		if err != nil {
			return &Error{Kind: ErrBadInput, Message: fmt.Sprintf("subnet %q: parent %q", s.IPRange, parent), Inner: err}
		}
		if !isSubnetOf(p, pp) {
			return &Error{Kind: ErrBadInput, Message: fmt.Sprintf("subnet %q is not contained in parent %q", s.IPRange, parent)}
		}
	}
	return nil
}

// Host is one addressable asset in the inventory.
type Host struct {
	IPAddress   string   `json:"ip_address"`
	DomainNames []string `json:"domain_names,omitempty"`
	// Subnets are CIDR ranges the host belongs to. Every listed subnet
	// must contain IPAddress.
	Subnets []string `json:"subnets,omitempty"`
	URIs    []string `json:"uris,omitempty"`
	Tags    []string `json:"tag,omitempty"`
	Version int      `json:"version,omitempty"`
}

// Validate checks the address, derives the IP version, and checks membership
// in every declared subnet.
func (h *Host) Validate() error {
	a, err := netip.ParseAddr(h.IPAddress)
	if err != nil {
		return &Error{Kind: ErrBadInput, Message: fmt.Sprintf("host %q", h.IPAddress), Inner: err}
	}
	h.Version = ipVersion(a)
	for _, sn := range h.Subnets {
		p, err := netip.ParsePrefix(sn)
		if err != nil {
			return &Error{Kind: ErrBadInput, Message: fmt.Sprintf("host %q: subnet %q", h.IPAddress, sn), Inner: err}
		}
		if !p.Contains(a) {
			return &Error{Kind: ErrBadInput, Message: fmt.Sprintf("host %q is not contained in subnet %q", h.IPAddress, sn)}
		}
	}
	return nil
}

// SoftwareVersion ties a piece of detected software, or an exposed network
// service, to the hosts it was seen on.
type SoftwareVersion struct {
	IPAddresses []string `json:"ip_addresses"`
	// Version is the vendor:product:version graph key. Either Version or
	// the Service/Protocol/Port triple must be present.
	Version  string   `json:"version,omitempty"`
	Service  string   `json:"service,omitempty"`
	Protocol string   `json:"protocol,omitempty"`
	Port     int      `json:"port,omitempty"`
	Tags     []string `json:"tag,omitempty"`
}

// Validate checks that the record names at least one host and either a
// version key or a full service triple.
func (v *SoftwareVersion) Validate() error {
	if len(v.IPAddresses) == 0 {
		return &Error{Kind: ErrBadInput, Message: "software version without ip addresses"}
	}
	if v.Version == "" && (v.Service == "" || v.Protocol == "" || v.Port == 0) {
		return &Error{Kind: ErrBadInput, Message: "software version needs a version or a service/protocol/port triple"}
	}
	return nil
}

// Device is a physical or virtual machine in the inventory.
type Device struct {
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	IPAddress    string   `json:"ip_address,omitempty"`
	OrgUnits     []string `json:"org_units,omitempty"`
	Power        string   `json:"power,omitempty"`
	State        string   `json:"state,omitempty"`
}

// Application is a named application running on a device.
type Application struct {
	Device string `json:"device"`
	Name   string `json:"name"`
}

// OrgUnit is an organizational unit owning assets.
type OrgUnit struct {
	Name      string   `json:"name"`
	Locations []string `json:"locations,omitempty"`
	Parents   []string `json:"parents,omitempty"`
}

// EASMRecord is one exposed service found by external attack surface
// enumeration.
type EASMRecord struct {
	Port             int               `json:"port"`
	Protocol         string            `json:"protocol"`
	Service          string            `json:"service"`
	IP               string            `json:"ip,omitempty"`
	DomainName       string            `json:"domain_name,omitempty"`
	SoftwareVersions []DetectedVersion `json:"software_versions,omitempty"`
}

// DetectedVersion is a technology detected behind an exposed service.
// Version is the vendor:product:version software key.
type DetectedVersion struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Validate checks that the record is attributable to an address or a name.
func (r *EASMRecord) Validate() error {
	if r.IP == "" && r.DomainName == "" {
		return &Error{Kind: ErrBadInput, Message: "easm record needs an ip or a domain name"}
	}
	return nil
}

// AssetList is a full inventory submission.
type AssetList struct {
	Subnets          []Subnet          `json:"subnets,omitempty"`
	Hosts            []Host            `json:"hosts,omitempty"`
	SoftwareVersions []SoftwareVersion `json:"software_versions,omitempty"`
	Devices          []Device          `json:"devices,omitempty"`
	Applications     []Application     `json:"applications,omitempty"`
	OrgUnits         []OrgUnit         `json:"org_units,omitempty"`
}

// Flatten promotes assets that are only referenced into declared assets:
// addresses seen on devices or software versions become hosts, and ranges
// seen as host membership or subnet parents become subnets. After Flatten the
// store sees every referenced asset exactly once.
func (l *AssetList) Flatten() {
	addrs := make(map[string]struct{}, len(l.Hosts))
	for _, h := range l.Hosts {
		addrs[h.IPAddress] = struct{}{}
	}
	for _, d := range l.Devices {
		if d.IPAddress == "" {
			continue
		}
		if _, ok := addrs[d.IPAddress]; !ok {
			l.Hosts = append(l.Hosts, Host{IPAddress: d.IPAddress})
			addrs[d.IPAddress] = struct{}{}
		}
	}
	for _, v := range l.SoftwareVersions {
		for _, ip := range v.IPAddresses {
			if _, ok := addrs[ip]; !ok {
				l.Hosts = append(l.Hosts, Host{IPAddress: ip})
				addrs[ip] = struct{}{}
			}
		}
	}
	ranges := make(map[string]struct{}, len(l.Subnets))
	for _, s := range l.Subnets {
		ranges[s.IPRange] = struct{}{}
	}
	for _, h := range l.Hosts {
		for _, sn := range h.Subnets {
			if _, ok := ranges[sn]; !ok {
				l.Subnets = append(l.Subnets, Subnet{IPRange: sn})
				ranges[sn] = struct{}{}
			}
		}
	}
	// Indexed loop on purpose: parents of newly added subnets are walked
	// too, so the closure is transitive.
	for i := 0; i < len(l.Subnets); i++ {
		for _, parent := range l.Subnets[i].Parents {
			if _, ok := ranges[parent]; !ok {
				l.Subnets = append(l.Subnets, Subnet{IPRange: parent})
				ranges[parent] = struct{}{}
			}
		}
	}
}

// Validate validates every asset in the list.
func (l *AssetList) Validate() error {
	for i := range l.Subnets {
		if err := l.Subnets[i].Validate(); err != nil {
			return err
		}
	}
	for i := range l.Hosts {
		if err := l.Hosts[i].Validate(); err != nil {
			return err
		}
	}
	for i := range l.SoftwareVersions {
		if err := l.SoftwareVersions[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

func ipVersion(a netip.Addr) int {
	if a.Is4() || a.Is4In6() {
		return 4
	}
	return 6
}

// IPVersionOf reports 4 or 6 for a textual address or CIDR range, defaulting
// to 4 when the string does not parse.
func IPVersionOf(s string) int {
	if p, err := netip.ParsePrefix(s); err == nil {
		return ipVersion(p.Addr())
	}
	if a, err := netip.ParseAddr(s); err == nil {
		return ipVersion(a)
	}
	if strings.Contains(s, ":") {
		return 6
	}
	return 4
}

func isSubnetOf(child, parent netip.Prefix) bool {
	if child.Addr().Is4() != parent.Addr().Is4() {
		return false
	}
	return parent.Bits() <= child.Bits() && parent.Contains(child.Addr())
}
