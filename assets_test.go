package casm

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFlatten(t *testing.T) {
	t.Run("DeviceAddresses", func(t *testing.T) {
		l := AssetList{
			Devices: []Device{
				{Name: "fw-1", IPAddress: "10.0.0.1"},
				{Name: "rack-1"},
			},
		}
		l.Flatten()
		want := []Host{{IPAddress: "10.0.0.1"}}
		if !cmp.Equal(want, l.Hosts) {
			t.Error(cmp.Diff(want, l.Hosts))
		}
	})
	t.Run("SoftwareAddresses", func(t *testing.T) {
		l := AssetList{
			Hosts: []Host{{IPAddress: "10.0.0.1"}},
			SoftwareVersions: []SoftwareVersion{
				{IPAddresses: []string{"10.0.0.1", "10.0.0.2"}, Version: "openbsd:openssh:9.6"},
			},
		}
		l.Flatten()
		want := []Host{{IPAddress: "10.0.0.1"}, {IPAddress: "10.0.0.2"}}
		if !cmp.Equal(want, l.Hosts) {
			t.Error(cmp.Diff(want, l.Hosts))
		}
	})
	t.Run("SubnetClosure", func(t *testing.T) {
		l := AssetList{
			Hosts: []Host{{IPAddress: "10.0.0.1", Subnets: []string{"10.0.0.0/24"}}},
			Subnets: []Subnet{
				{IPRange: "10.1.0.0/24", Parents: []string{"10.1.0.0/16"}},
			},
		}
		l.Flatten()
		want := []Subnet{
			{IPRange: "10.1.0.0/24", Parents: []string{"10.1.0.0/16"}},
			{IPRange: "10.0.0.0/24"},
			{IPRange: "10.1.0.0/16"},
		}
		if !cmp.Equal(want, l.Subnets) {
			t.Error(cmp.Diff(want, l.Subnets))
		}
	})
	t.Run("Idempotent", func(t *testing.T) {
		l := AssetList{
			Hosts:   []Host{{IPAddress: "10.0.0.1", Subnets: []string{"10.0.0.0/24"}}},
			Devices: []Device{{Name: "fw-1", IPAddress: "10.0.0.1"}},
		}
		l.Flatten()
		before := l
		l.Flatten()
		if !cmp.Equal(before, l) {
			t.Error(cmp.Diff(before, l))
		}
	})
}

func TestSubnetValidate(t *testing.T) {
	s := Subnet{IPRange: "10.0.1.0/24", Parents: []string{"10.0.0.0/16"}}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	if got, want := s.Version, 4; got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}

	s = Subnet{IPRange: "10.0.1.0/24", Parents: []string{"192.168.0.0/16"}}
	if err := s.Validate(); err == nil {
		t.Error("expected containment error")
	}

	s = Subnet{IPRange: "2001:db8::/64"}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	if got, want := s.Version, 6; got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}
}

func TestHostValidate(t *testing.T) {
	h := Host{IPAddress: "10.0.0.5", Subnets: []string{"10.0.0.0/24"}}
	if err := h.Validate(); err != nil {
		t.Fatal(err)
	}
	h = Host{IPAddress: "10.0.1.5", Subnets: []string{"10.0.0.0/24"}}
	if err := h.Validate(); err == nil {
		t.Error("expected containment error")
	}
	h = Host{IPAddress: "not-an-address"}
	if err := h.Validate(); err == nil {
		t.Error("expected parse error")
	}
}

func TestSoftwareVersionValidate(t *testing.T) {
	tt := []struct {
		Name string
		In   SoftwareVersion
		OK   bool
	}{
		{"Version", SoftwareVersion{IPAddresses: []string{"10.0.0.1"}, Version: "a:b:1"}, true},
		{"Triple", SoftwareVersion{IPAddresses: []string{"10.0.0.1"}, Service: "ssh", Protocol: "tcp", Port: 22}, true},
		{"NoAddresses", SoftwareVersion{Version: "a:b:1"}, false},
		{"PartialTriple", SoftwareVersion{IPAddresses: []string{"10.0.0.1"}, Service: "ssh"}, false},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			err := tc.In.Validate()
			if tc.OK && err != nil {
				t.Error(err)
			}
			if !tc.OK && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMissionEffectiveCriticality(t *testing.T) {
	i := func(n int) *int { return &n }
	m := Mission{Name: "billing", Criticality: i(7), IntegrityRequirement: i(3)}
	got, err := m.EffectiveCriticality()
	if err != nil {
		t.Fatal(err)
	}
	if want := 7.0; got != want {
		t.Errorf("got: %v, want: %v", got, want)
	}

	m = Mission{Name: "billing", ConfidentialityRequirement: i(2), IntegrityRequirement: i(5), AvailabilityRequirement: i(4)}
	got, err = m.EffectiveCriticality()
	if err != nil {
		t.Fatal(err)
	}
	if want := 5.0; got != want {
		t.Errorf("got: %v, want: %v", got, want)
	}

	m = Mission{Name: "billing"}
	if _, err := m.EffectiveCriticality(); err == nil {
		t.Error("expected error")
	}
}
