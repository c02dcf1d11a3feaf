package wfutil

import (
	"net/netip"
	"regexp"
	"strings"
)

// domainPattern accepts dotted labels with a purely alphabetic top-level
// label.
var domainPattern = regexp.MustCompile(`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,63}$`)

// ValidDomain reports whether s is a plausible DNS domain name.
func ValidDomain(s string) bool {
	return len(s) <= 253 && domainPattern.MatchString(s)
}

// ValidTarget reports whether s can be handed to a scanner: a domain name,
// a bare address, or a CIDR range.
func ValidTarget(s string) bool {
	if _, err := netip.ParseAddr(s); err == nil {
		return true
	}
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err == nil
	}
	return ValidDomain(s)
}
