package neo4j

import (
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func prefixes(t *testing.T, rs ...string) []netip.Prefix {
	t.Helper()
	out := make([]netip.Prefix, len(rs))
	for i, r := range rs {
		out[i] = netip.MustParsePrefix(r)
	}
	return out
}

func TestClosestNetwork(t *testing.T) {
	tt := []struct {
		Name     string
		IP       string
		Networks []string
		Want     string
	}{
		{
			Name:     "MostSpecificV4",
			IP:       "192.168.1.100",
			Networks: []string{"192.168.0.0/16", "192.168.1.0/24", "10.0.0.0/8"},
			Want:     "192.168.1.0/24",
		},
		{
			Name:     "LessSpecificV4",
			IP:       "192.168.5.5",
			Networks: []string{"192.168.0.0/16", "10.0.0.0/8"},
			Want:     "192.168.0.0/16",
		},
		{
			Name:     "NoMatch",
			IP:       "8.8.8.8",
			Networks: []string{"192.168.0.0/16", "10.0.0.0/8"},
			Want:     "",
		},
		{
			Name:     "MostSpecificV6",
			IP:       "2001:db8:0:1::5",
			Networks: []string{"2001:db8::/32", "2001:db8:0:1::/64"},
			Want:     "2001:db8:0:1::/64",
		},
		{
			Name:     "LessSpecificV6",
			IP:       "2001:db8:5::1",
			Networks: []string{"2001:db8::/32", "fd00::/8"},
			Want:     "2001:db8::/32",
		},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			got, ok := ClosestNetwork(netip.MustParseAddr(tc.IP), prefixes(t, tc.Networks...))
			if tc.Want == "" {
				if ok {
					t.Errorf("got %v, want no match", got)
				}
				return
			}
			if !ok || got != netip.MustParsePrefix(tc.Want) {
				t.Errorf("got %v (matched: %v), want %s", got, ok, tc.Want)
			}
		})
	}
}

func TestClosestParent(t *testing.T) {
	tt := []struct {
		Name     string
		Subnet   string
		Networks []string
		Want     string
	}{
		{
			Name:     "MostSpecificParent",
			Subnet:   "192.168.1.0/24",
			Networks: []string{"192.168.0.0/16", "10.0.0.0/8", "0.0.0.0/0"},
			Want:     "192.168.0.0/16",
		},
		{
			Name:     "OnlyRootParent",
			Subnet:   "192.168.0.0/16",
			Networks: []string{"0.0.0.0/0", "10.0.0.0/8"},
			Want:     "0.0.0.0/0",
		},
		{
			Name:     "DirectParent",
			Subnet:   "10.1.0.0/16",
			Networks: []string{"10.0.0.0/8", "192.168.0.0/16"},
			Want:     "10.0.0.0/8",
		},
		{
			Name:     "NoParent",
			Subnet:   "8.8.8.0/24",
			Networks: []string{"10.0.0.0/8", "192.168.0.0/16"},
			Want:     "",
		},
		{
			Name:     "SubnetNotInList",
			Subnet:   "192.168.1.128/25",
			Networks: []string{"192.168.1.0/24", "192.168.0.0/16"},
			Want:     "192.168.1.0/24",
		},
		{
			Name:     "MostSpecificParentV6",
			Subnet:   "2001:db8:0:1::/64",
			Networks: []string{"2001:db8::/32", "2001::/16", "::/0"},
			Want:     "2001:db8::/32",
		},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			got, ok := ClosestParent(netip.MustParsePrefix(tc.Subnet), prefixes(t, tc.Networks...))
			if tc.Want == "" {
				if ok {
					t.Errorf("got %v, want no parent", got)
				}
				return
			}
			if !ok || got != netip.MustParsePrefix(tc.Want) {
				t.Errorf("got %v (matched: %v), want %s", got, ok, tc.Want)
			}
		})
	}
}

func TestPrepareHierarchy(t *testing.T) {
	ips := []netip.Addr{
		netip.MustParseAddr("192.168.1.10"),
		netip.MustParseAddr("8.8.8.8"),
		netip.MustParseAddr("2001:db8:0:1::5"),
	}
	subnets := prefixes(t,
		"192.168.1.0/24",
		"192.168.0.0/16",
		"10.0.0.0/8",
		"2001:db8::/32",
		"2001:db8:0:1::/64",
	)

	gotIPs, gotSubnets := PrepareHierarchy(ips, subnets)

	wantIPs := []IPPlacement{
		{Address: "192.168.1.10", Subnet: "192.168.1.0/24"},
		{Address: "2001:db8:0:1::5", Subnet: "2001:db8:0:1::/64"},
	}
	if diff := cmp.Diff(wantIPs, gotIPs); diff != "" {
		t.Errorf("ip placements (-want +got):\n%s", diff)
	}
	wantSubnets := []SubnetPlacement{
		{Range: "192.168.1.0/24", Version: 4, Parent: "192.168.0.0/16"},
		{Range: "2001:db8:0:1::/64", Version: 6, Parent: "2001:db8::/32"},
	}
	if diff := cmp.Diff(wantSubnets, gotSubnets); diff != "" {
		t.Errorf("subnet placements (-want +got):\n%s", diff)
	}
}
