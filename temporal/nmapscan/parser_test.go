package nmapscan

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/resilmesh/casm"
)

const discoveryReport = `<?xml version="1.0" encoding="UTF-8"?>
<nmaprun scanner="nmap">
  <host>
    <status state="down" reason="no-response"/>
    <address addr="192.168.1.7" addrtype="ipv4"/>
  </host>
  <host>
    <status state="up" reason="syn-ack"/>
    <address addr="192.168.1.10" addrtype="ipv4"/>
    <address addr="AA:BB:CC:DD:EE:FF" addrtype="mac"/>
    <hostnames>
      <hostname name="web.internal" type="PTR"/>
    </hostnames>
    <ports>
      <port protocol="tcp" portid="22">
        <state state="open" reason="syn-ack"/>
        <service name="ssh" product="OpenSSH" version="8.9p1" extrainfo="Ubuntu Linux">
          <cpe>cpe:/a:openbsd:openssh:8.9p1</cpe>
        </service>
      </port>
      <port protocol="tcp" portid="80">
        <state state="open" reason="syn-ack"/>
        <service name="http" product="nginx">
          <cpe>cpe:/a:f5:nginx</cpe>
        </service>
      </port>
      <port protocol="tcp" portid="443">
        <state state="closed" reason="reset"/>
        <service name="https"/>
      </port>
    </ports>
  </host>
  <host>
    <status state="up" reason="syn-ack"/>
    <address addr="192.168.2.20" addrtype="ipv4"/>
    <address addr="2001:db8::20" addrtype="ipv6"/>
  </host>
</nmaprun>`

func TestParseScan(t *testing.T) {
	got, err := ParseScan([]byte(discoveryReport), "Internal IT", []string{"nmap"})
	if err != nil {
		t.Fatal(err)
	}
	want := &casm.AssetList{
		Subnets: []casm.Subnet{
			{IPRange: "192.168.1.0/24", Note: "192.168.1.0/24", OrgUnits: []string{"Internal IT"}},
			{IPRange: "192.168.2.0/24", Note: "192.168.2.0/24", OrgUnits: []string{"Internal IT"}},
			{IPRange: "2001:db8::/64", Note: "2001:db8::/64", OrgUnits: []string{"Internal IT"}},
		},
		Hosts: []casm.Host{
			{
				IPAddress:   "192.168.1.10",
				DomainNames: []string{"web.internal"},
				Subnets:     []string{"192.168.1.0/24"},
				Tags:        []string{"nmap"},
			},
			{
				IPAddress: "192.168.2.20",
				Subnets:   []string{"192.168.2.0/24"},
				Tags:      []string{"nmap"},
			},
		},
		SoftwareVersions: []casm.SoftwareVersion{
			{IPAddresses: []string{"192.168.1.10"}, Version: "openbsd:openssh:8.9p1", Tags: []string{"nmap"}},
		},
		Devices: []casm.Device{
			{Name: "web.internal", IPAddress: "192.168.1.10"},
			{Name: "192.168.2.20 (192.168.2.20)", IPAddress: "192.168.2.20"},
			{Name: "192.168.2.20 (2001:db8::20)", IPAddress: "2001:db8::20"},
		},
		Applications: []casm.Application{
			{Name: "ssh (port 22/tcp)", Device: "192.168.1.10"},
			{Name: "http (port 80/tcp)", Device: "192.168.1.10"},
		},
		OrgUnits: []casm.OrgUnit{{Name: "Internal IT"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("asset list (-want +got):\n%s", diff)
	}
}

func TestParseScanMalformed(t *testing.T) {
	if _, err := ParseScan([]byte("<nmaprun"), "", nil); err == nil {
		t.Error("malformed report accepted")
	}
}

const tracerouteReport = `<?xml version="1.0" encoding="UTF-8"?>
<nmaprun scanner="nmap">
  <host>
    <status state="up" reason="echo-reply"/>
    <address addr="203.0.113.50" addrtype="ipv4"/>
    <trace port="80" proto="tcp">
      <hop ttl="1" ipaddr="192.168.1.1" rtt="0.50"/>
      <hop ttl="3" ipaddr="10.10.0.1" rtt="4.10"/>
      <hop ttl="4" ipaddr="203.0.113.50" rtt="9.90"/>
    </trace>
  </host>
  <host>
    <status state="up" reason="echo-reply"/>
    <address addr="192.168.1.33" addrtype="ipv4"/>
  </host>
</nmaprun>`

func TestParseTraceroute(t *testing.T) {
	got, err := ParseTraceroute([]byte(tracerouteReport), "198.51.100.9")
	if err != nil {
		t.Fatal(err)
	}
	want := []casm.TraceroutePath{
		{Hops: []casm.TracerouteHop{
			{PrevIP: "198.51.100.9", NextIP: "192.168.1.1", Hops: 1},
			{PrevIP: "192.168.1.1", NextIP: "10.10.0.1", Hops: 2},
			{PrevIP: "10.10.0.1", NextIP: "203.0.113.50", Hops: 1},
		}},
		{Hops: []casm.TracerouteHop{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("paths (-want +got):\n%s", diff)
	}
}
