package wfutil

import "testing"

func TestValidDomain(t *testing.T) {
	valid := []string{
		"example.com",
		"sub.example.com",
		"deep.sub.example.co.uk",
		"xn--nxasmq6b.example",
	}
	for _, d := range valid {
		if !ValidDomain(d) {
			t.Errorf("%q rejected", d)
		}
	}
	invalid := []string{
		"",
		"example",
		"-example.com",
		"example..com",
		"example.com/path",
		"exa mple.com",
		"10.0.0.1",
	}
	for _, d := range invalid {
		if ValidDomain(d) {
			t.Errorf("%q accepted", d)
		}
	}
}

func TestValidTarget(t *testing.T) {
	valid := []string{
		"example.com",
		"10.0.0.1",
		"2001:db8::1",
		"192.168.0.0/24",
		"2001:db8::/64",
	}
	for _, s := range valid {
		if !ValidTarget(s) {
			t.Errorf("%q rejected", s)
		}
	}
	invalid := []string{
		"",
		"10.0.0.0/99",
		"not a target",
		"10.0.0.1/",
	}
	for _, s := range invalid {
		if ValidTarget(s) {
			t.Errorf("%q accepted", s)
		}
	}
}
