// Package classify derives impact labels for CVE records.
//
// Classification combines CVSS metrics from every version present on the
// record with keyword analysis of the description. The stages run in order
// and the first stage that produces impacts wins: root-level impacts, system
// CIA loss, user-level impacts, and finally a system/application distinction
// based on the metrics alone.
package classify

// Vulnerability is the view of a CVE record the classifier works on. The
// metric maps hold the raw NVD cvssData key/value pairs for whichever
// versions the record carries; absent versions are empty maps.
type Vulnerability struct {
	Description string
	// CPETypes is the set of CPE part letters ("a", "o", "h") of the
	// vulnerable criteria on the record.
	CPETypes map[string]bool
	V2       map[string]string
	V30      map[string]string
	V31      map[string]string
	V40      map[string]string
}

// Impact labels attached to CVE nodes.
const (
	ImpactRootCodeExecution   = "Arbitrary code execution as root/administrator/system"
	ImpactGainRootPrivileges  = "Gain root/system/administrator privileges on system"
	ImpactPrivilegeEscalation = "Privilege escalation on system"
	ImpactSystemConfLoss      = "System confidentiality loss"
	ImpactSystemIntegLoss     = "System integrity loss"
	ImpactSystemAvailLoss     = "System availability loss"
	ImpactGainUserPrivileges  = "Gain user privileges on system"
	ImpactUserCodeExecution   = "Arbitrary code execution as user of application"
	ImpactGainAppPrivileges   = "Gain privileges on application"
	ImpactAppConfLoss         = "Application confidentiality loss"
	ImpactAppIntegLoss        = "Application integrity loss"
	ImpactAppAvailLoss        = "Application availability loss"
)

// Classify returns the impact labels for the vulnerability. The result may
// contain duplicates when several metric versions report the same
// application-level impact; callers dedupe before storing.
func Classify(v *Vulnerability) []string {
	if impacts := rootLevelImpacts(v); len(impacts) != 0 {
		return impacts
	}
	if impacts := systemCIALoss(v); len(impacts) != 0 {
		return impacts
	}
	if impacts := userLevelImpacts(v); len(impacts) != 0 {
		return impacts
	}
	return distinguishSystemApplication(v)
}

// rootLevelImpacts checks the strongest outcomes first. The checks are
// ordered and at most one label is returned.
func rootLevelImpacts(v *Vulnerability) []string {
	switch {
	case hasRootCodeExecution(v):
		return []string{ImpactRootCodeExecution}
	case hasGainRootPrivileges(v):
		return []string{ImpactGainRootPrivileges}
	case hasPrivilegeEscalation(v):
		return []string{ImpactPrivilegeEscalation}
	}
	return nil
}

// systemCIALoss checks the three loss dimensions independently, then fills in
// impacts the metrics only weakly support.
func systemCIALoss(v *Vulnerability) []string {
	var impacts []string
	if hasSystemConfidentialityLoss(v) {
		impacts = append(impacts, ImpactSystemConfLoss)
	}
	if hasSystemIntegrityLoss(v) {
		impacts = append(impacts, ImpactSystemIntegLoss)
	}
	if hasSystemAvailabilityLoss(v) {
		impacts = append(impacts, ImpactSystemAvailLoss)
	}
	return addOtherCIAImpacts(impacts, v)
}

// userLevelImpacts mirrors rootLevelImpacts at user scope.
func userLevelImpacts(v *Vulnerability) []string {
	switch {
	case hasGainUserPrivileges(v):
		return []string{ImpactGainUserPrivileges}
	case hasUserCodeExecution(v):
		return []string{ImpactUserCodeExecution}
	case hasGainApplicationPrivileges(v.Description):
		return []string{ImpactGainAppPrivileges}
	}
	return nil
}

// distinguishSystemApplication is the fallback stage: report system CIA
// changes when the record looks system-scoped, otherwise report
// application-level losses per metric version, newest first.
func distinguishSystemApplication(v *Vulnerability) []string {
	var impacts []string
	if systemConfidentialityChanged(v) {
		impacts = append(impacts, ImpactSystemConfLoss)
	}
	if systemIntegrityChanged(v) {
		impacts = append(impacts, ImpactSystemIntegLoss)
	}
	if systemAvailabilityChanged(v) {
		impacts = append(impacts, ImpactSystemAvailLoss)
	}
	if len(impacts) != 0 {
		return impacts
	}
	if len(v.V40) != 0 && v.V40["vulnerableSystemIntegrity"] != "NONE" {
		impacts = append(impacts, ImpactAppIntegLoss)
	}
	if len(v.V40) != 0 && v.V40["vulnerableSystemAvailability"] != "NONE" {
		impacts = append(impacts, ImpactAppAvailLoss)
	}
	if len(v.V40) != 0 && v.V40["vulnerableSystemConfidentiality"] != "NONE" {
		impacts = append(impacts, ImpactAppConfLoss)
	}
	if len(v.V31) != 0 && v.V31["integrityImpact"] != "NONE" {
		impacts = append(impacts, ImpactAppIntegLoss)
	}
	if len(v.V31) != 0 && v.V31["availabilityImpact"] != "NONE" {
		impacts = append(impacts, ImpactAppAvailLoss)
	}
	if len(v.V31) != 0 && v.V31["confidentialityImpact"] != "NONE" {
		impacts = append(impacts, ImpactAppConfLoss)
	}
	if len(v.V30) != 0 && v.V30["integrityImpact"] != "NONE" {
		impacts = append(impacts, ImpactAppIntegLoss)
	}
	if len(v.V30) != 0 && v.V30["availabilityImpact"] != "NONE" {
		impacts = append(impacts, ImpactAppAvailLoss)
	}
	if len(v.V30) != 0 && v.V30["confidentialityImpact"] != "NONE" {
		impacts = append(impacts, ImpactAppConfLoss)
	}
	return impacts
}
