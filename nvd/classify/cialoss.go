package classify

import "strings"

// Descriptions that justify treating a LOW/PARTIAL confidentiality metric as
// a real system confidentiality loss.
var confidentialityPhrases = []string{
	"devices allow remote attackers to read arbitrary files",
	"compromise the systems confidentiality",
	"read any file on the camera's linux filesystem",
	"gain read-write access to system settings",
	"all system settings can be read",
	"leak information about any clients connected to it",
	"read sensitive files on the system",
	"access arbitrary files on an affected device",
	"access system files",
	"gain unauthorized read access to files on the host",
	"obtain sensitive system information",
	"obtain sensitive information from kernel memory",
	"obtain privileged file system access",
	"routers allow directory traversal sequences",
	"packets can contain fragments of system memory",
	"obtain kernel memory",
	"read kernel memory",
	"read system memory",
	"reading system memory",
	"read device memory",
	"read host memory",
	"access kernel memory",
	"access sensitive kernel memory",
	"access shared memory",
	"host arbitrary files",
	"enumerate user accounts",
	"compromise an affected system",
}

var integrityPhrases = []string{
	"compromise the systems confidentiality or integrity",
	"gain read-write access to system settings",
	"all system settings can be read and changed",
	"create arbitrary directories on the affected system",
	"on ismartalarm cube devices, there is incorrect access control",
	"bypass url filters that have been configured for an affected device",
	"bypass configured filters on the device",
	"modification of system files",
	"obtain privileged file system access",
	"change configuration settings",
	"compromise the affected system",
	"overwrite arbitrary kernel memory",
	"modify kernel memory",
	"overwrite kernel memory",
	"modifying kernel memory",
	"overwriting kernel memory",
	"corrupt kernel memory",
	"corrupt user memory",
	"upload firmware changes",
	"configuration parameter changes",
	"obtain sensitive information from kernel memory",
	"change the device's settings",
	"configuration changes",
	"modification of system states",
	"host arbitrary files",
}

var availabilityPhrases = []string{
	"an extended denial of service condition for the device",
	"exhaust the memory resources of the machine",
	"denial of service (dos) condition on an affected device",
	"crash systemui",
	"denial of service (dos) condition on the affected appliance",
	"cause the device to hang or unexpectedly reload",
	"denial of service (use-after-free) via a crafted application",
	"cause an affected device to reload",
	"cause an affected system to stop",
}

// Tokens that alone imply a system availability loss.
var availabilityTokens = []string{"device crash", "device reload", "system crash", "cpu consumption"}

func hasSystemConfidentialityLoss(v *Vulnerability) bool {
	if !isAboutSystem(v.CPETypes) {
		return false
	}
	if len(v.V40) != 0 {
		if v.V40["vulnerableSystemConfidentiality"] == "LOW" && anyKeyword(v.Description, confidentialityPhrases) {
			return true
		}
		return v.V40["vulnerableSystemConfidentiality"] == "HIGH"
	}
	if len(v.V31) != 0 {
		if v.V31["confidentialityImpact"] == "LOW" && anyKeyword(v.Description, confidentialityPhrases) {
			return true
		}
		return v.V31["confidentialityImpact"] == "HIGH"
	}
	if len(v.V30) != 0 {
		if v.V30["confidentialityImpact"] == "LOW" && anyKeyword(v.Description, confidentialityPhrases) {
			return true
		}
		return v.V30["confidentialityImpact"] == "HIGH"
	}
	if v.V2["confidentialityImpact"] == "PARTIAL" && anyKeyword(v.Description, confidentialityPhrases) {
		return true
	}
	return v.V2["confidentialityImpact"] == "COMPLETE"
}

func hasSystemIntegrityLoss(v *Vulnerability) bool {
	if !isAboutSystem(v.CPETypes) {
		return false
	}
	if len(v.V40) != 0 {
		if v.V40["vulnerableSystemIntegrity"] == "LOW" && anyKeyword(v.Description, integrityPhrases) {
			return true
		}
		return v.V40["vulnerableSystemIntegrity"] == "HIGH"
	}
	if len(v.V31) != 0 {
		if v.V31["integrityImpact"] == "LOW" && anyKeyword(v.Description, integrityPhrases) {
			return true
		}
		return v.V31["integrityImpact"] == "HIGH"
	}
	if len(v.V30) != 0 {
		if v.V30["integrityImpact"] == "LOW" && anyKeyword(v.Description, integrityPhrases) {
			return true
		}
		return v.V30["integrityImpact"] == "HIGH"
	}
	if v.V2["integrityImpact"] == "PARTIAL" && anyKeyword(v.Description, integrityPhrases) {
		return true
	}
	return v.V2["integrityImpact"] == "COMPLETE"
}

func hasSystemAvailabilityLoss(v *Vulnerability) bool {
	if !isAboutSystem(v.CPETypes) {
		return false
	}
	if anyPhrase(v.Description, availabilityTokens) {
		return true
	}
	if len(v.V40) != 0 {
		if v.V40["vulnerableSystemAvailability"] == "LOW" && anyKeyword(v.Description, availabilityPhrases) {
			return true
		}
		if hasSystemIntegrityLoss(v) {
			return v.V40["vulnerableSystemAvailability"] != "NONE"
		}
		return v.V40["vulnerableSystemAvailability"] == "HIGH"
	}
	if len(v.V31) != 0 {
		if v.V31["availabilityImpact"] == "LOW" && anyKeyword(v.Description, availabilityPhrases) {
			return true
		}
		if hasSystemIntegrityLoss(v) {
			return v.V31["availabilityImpact"] != "NONE"
		}
		return v.V31["availabilityImpact"] == "HIGH"
	}
	if len(v.V30) != 0 {
		if v.V30["availabilityImpact"] == "LOW" && anyKeyword(v.Description, availabilityPhrases) {
			return true
		}
		if hasSystemIntegrityLoss(v) {
			return v.V30["availabilityImpact"] != "NONE"
		}
		return v.V30["availabilityImpact"] == "HIGH"
	}
	if v.V2["availabilityImpact"] == "PARTIAL" && anyKeyword(v.Description, availabilityPhrases) {
		return true
	}
	if hasSystemIntegrityLoss(v) {
		return v.V2["availabilityImpact"] != "NONE"
	}
	return v.V2["availabilityImpact"] == "COMPLETE"
}

func systemConfidentialityChanged(v *Vulnerability) bool {
	if !isAboutSystem(v.CPETypes) {
		return false
	}
	remote := strings.Contains(v.Description, "in the remote system")
	if len(v.V40) != 0 && v.V40["vulnerableSystemConfidentiality"] == "HIGH" {
		return true
	}
	if len(v.V31) != 0 && v.V31["confidentialityImpact"] == "HIGH" {
		return true
	}
	if len(v.V30) != 0 && v.V30["confidentialityImpact"] == "HIGH" {
		return true
	}
	if remote && v.V2["confidentialityImpact"] == "PARTIAL" {
		return true
	}
	return v.V2["confidentialityImpact"] == "PARTIAL"
}

func systemIntegrityChanged(v *Vulnerability) bool {
	if !isAboutSystem(v.CPETypes) {
		return false
	}
	remote := strings.Contains(v.Description, "in the remote system")
	if len(v.V40) != 0 && v.V40["vulnerableSystemIntegrity"] == "HIGH" {
		return true
	}
	if len(v.V31) != 0 && v.V31["integrityImpact"] == "HIGH" {
		return true
	}
	if len(v.V30) != 0 && v.V30["integrityImpact"] == "HIGH" {
		return true
	}
	if remote && v.V2["integrityImpact"] == "PARTIAL" {
		return true
	}
	return v.V2["integrityImpact"] == "PARTIAL"
}

func systemAvailabilityChanged(v *Vulnerability) bool {
	if !isAboutSystem(v.CPETypes) {
		return false
	}
	remote := strings.Contains(v.Description, "in the remote system")
	if len(v.V40) != 0 && v.V40["vulnerableSystemAvailability"] == "HIGH" {
		return true
	}
	if len(v.V31) != 0 && v.V31["availabilityImpact"] == "HIGH" {
		return true
	}
	if len(v.V30) != 0 && v.V30["availabilityImpact"] == "HIGH" {
		return true
	}
	if remote && v.V2["availabilityImpact"] == "PARTIAL" {
		return true
	}
	return v.V2["availabilityImpact"] == "PARTIAL"
}

// addOtherCIAImpacts fills in losses the metrics only weakly support once at
// least one loss is already established. The metric version present on the
// record decides which impact value is consulted.
func addOtherCIAImpacts(impacts []string, v *Vulnerability) []string {
	has := func(s string) bool {
		for _, i := range impacts {
			if i == s {
				return true
			}
		}
		return false
	}
	weak := func(v40Key, v3Key string) bool {
		system := isAboutSystem(v.CPETypes)
		switch {
		case len(v.V40) != 0:
			return v.V40[v40Key] == "LOW" && system
		case len(v.V31) != 0:
			return v.V31[v3Key] == "LOW" && system
		case len(v.V30) != 0:
			return v.V30[v3Key] == "LOW" && system
		default:
			return v.V2[v3Key] == "PARTIAL"
		}
	}
	type fill struct {
		present, missing string
		v40Key, v3Key    string
	}
	for _, f := range []fill{
		{ImpactSystemIntegLoss, ImpactSystemConfLoss, "vulnerableSystemConfidentiality", "confidentialityImpact"},
		{ImpactSystemIntegLoss, ImpactSystemAvailLoss, "vulnerableSystemAvailability", "availabilityImpact"},
		{ImpactSystemConfLoss, ImpactSystemIntegLoss, "vulnerableSystemIntegrity", "integrityImpact"},
		{ImpactSystemConfLoss, ImpactSystemAvailLoss, "vulnerableSystemAvailability", "availabilityImpact"},
		{ImpactSystemAvailLoss, ImpactSystemConfLoss, "vulnerableSystemConfidentiality", "confidentialityImpact"},
		{ImpactSystemAvailLoss, ImpactSystemIntegLoss, "vulnerableSystemIntegrity", "integrityImpact"},
	} {
		if has(f.present) && !has(f.missing) && weak(f.v40Key, f.v3Key) {
			impacts = append(impacts, f.missing)
		}
	}
	return impacts
}
