// Package cpe handles Common Platform Enumeration identifiers as they appear
// in NVD records and scanner output.
//
// Identifiers are kept in the colon-separated formatted-string form, padded to
// the full 13 fields with "*". Both the 2.3 form ("cpe:2.3:a:vendor:...") and
// the legacy URI form ("cpe:/a:vendor:product:version") are accepted.
package cpe

import (
	"fmt"
	"strings"
)

// NumAttr is the number of attributes in a 2.3 identifier, not counting the
// "cpe" and "2.3" prefix fields.
const NumAttr = 11

// Identifier is a parsed CPE. Unset attributes hold "*".
type Identifier struct {
	Part      string
	Vendor    string
	Product   string
	Version   string
	Update    string
	Edition   string
	Language  string
	SWEdition string
	TargetSW  string
	TargetHW  string
	Other     string
}

// FromString parses a 2.3 or legacy URI identifier.
func FromString(s string) (Identifier, error) {
	switch {
	case strings.HasPrefix(s, "cpe:2.3:"):
		return fromFields(strings.Split(s, ":")[2:]), nil
	case strings.HasPrefix(s, "cpe:/"):
		return fromFields(strings.Split(strings.TrimPrefix(s, "cpe:/"), ":")), nil
	default:
		return Identifier{}, fmt.Errorf("cpe: unrecognized identifier %q", s)
	}
}

// MustFromString works like [FromString] but panics on malformed input. For
// use with static strings.
func MustFromString(s string) Identifier {
	id, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return id
}

func fromFields(fs []string) (id Identifier) {
	attr := make([]string, NumAttr)
	for i := range attr {
		if i < len(fs) && fs[i] != "" {
			attr[i] = fs[i]
		} else {
			attr[i] = "*"
		}
	}
	id.Part = attr[0]
	id.Vendor = attr[1]
	id.Product = attr[2]
	id.Version = attr[3]
	id.Update = attr[4]
	id.Edition = attr[5]
	id.Language = attr[6]
	id.SWEdition = attr[7]
	id.TargetSW = attr[8]
	id.TargetHW = attr[9]
	id.Other = attr[10]
	return id
}

// String returns the full 2.3 formatted string.
func (id Identifier) String() string {
	return strings.Join([]string{
		"cpe", "2.3",
		id.Part, id.Vendor, id.Product, id.Version, id.Update, id.Edition,
		id.Language, id.SWEdition, id.TargetSW, id.TargetHW, id.Other,
	}, ":")
}

// Key returns the vendor:product:version string used as the software version
// identity in the graph.
func (id Identifier) Key() string {
	return id.Vendor + ":" + id.Product + ":" + id.Version
}

// ProductKey returns the vendor:product prefix of [Identifier.Key].
func (id Identifier) ProductKey() string {
	return id.Vendor + ":" + id.Product
}
