package classify

import "strings"

// Phrases that alone establish code execution as root. Matched verbatim.
var rootExecutionPhrases = []string{
	"execute arbitrary code as root",
	"execute arbitrary code with root privileges",
	"execute arbitrary code as the root user",
	"execute arbitrary code as a root user",
	"execute arbitrary code as LocalSystem",
	"execute arbitrary code as SYSTEM",
	"execute arbitrary code as Local System",
	"execute arbitrary code with SYSTEM privileges",
	"execute arbitrary code with LocalSystem privileges",
	"execute dangerous commands as root",
	"execute shell commands as the root user",
	"execute arbitrary commands as root",
	"execute arbitrary commands with root privileges",
	"execute arbitrary commands with root-level privileges",
	"execute commands as root",
	"execute root commands",
	"execute arbitrary os commands as root",
	"execute arbitrary shell commands as root",
	"execute arbitrary commands as SYSTEM",
	"execute arbitrary commands with SYSTEM privileges",
	"run commands as root",
	"run arbitrary commands as root",
	"run arbitrary commands as the root user",
	"execute code with root privileges",
	"run commands as root",
	"load malicious firmware",
	"succeed in uploading malicious Firmware",
	"executed under the SYSTEM account",
}

var userExecutionPhrases = []string{
	"include and execute arbitrary local php files",
	"execute arbitrary code",
	"command injection",
	"execute files",
	"run arbitrary code",
	"execute a malicious file",
	"execution of arbitrary code",
	"remote execution of arbitrary php code",
	"execute code",
	"code injection vulnerability",
	"execute any code",
	"malicious file could be then executed on the affected system",
	"inject arbitrary commands",
	"execute arbitrary files",
	"inject arbitrary sql code",
	"run the setuid executable",
	"vbscript injection",
	"execute administrative operations",
	"performs arbitrary actions",
	"submit arbitrary requests to an affected device",
	"perform arbitrary actions on an affected device",
	"executes an arbitrary program",
	"attacker can upload a malicious payload",
	"execute malicious code",
	"modify sql commands to the portal server",
	"execute arbitrary os commands",
	"execute arbitrary code with administrator privileges",
	"execute administrator commands",
	"executed with administrator privileges",
	"remote procedure calls on the affected system",
	"run a specially crafted application on a targeted system",
	"execute arbitrary code in a privileged context",
	"execute arbitrary code with super-user privileges",
	"run processes in an elevated context",
}

// The verb/noun pairing is the weakest signal: both an action verb and a
// target noun must appear somewhere in the description.
var (
	executionVerbs = []string{" execut", " run ", " inject"}
	executionNouns = []string{" code ", " command", "arbitrary script", " code."}
)

// hasRootCodeExecution reports code execution with root, administrator, or
// SYSTEM privileges. Beyond the explicit phrases, user-level code execution
// on a system target with across-the-board maximal impact counts too.
func hasRootCodeExecution(v *Vulnerability) bool {
	if anyPhrase(v.Description, rootExecutionPhrases) {
		return true
	}
	if !isAboutSystem(v.CPETypes) {
		return false
	}
	if !hasUserCodeExecution(v) {
		return false
	}
	if len(v.V40) != 0 &&
		v.V40["vulnerableSystemConfidentiality"] == "HIGH" &&
		v.V40["vulnerableSystemIntegrity"] == "HIGH" &&
		v.V40["vulnerableSystemAvailability"] == "HIGH" {
		return true
	}
	if len(v.V31) != 0 &&
		v.V31["confidentialityImpact"] == "HIGH" &&
		v.V31["integrityImpact"] == "HIGH" &&
		v.V31["availabilityImpact"] == "HIGH" {
		return true
	}
	if len(v.V30) != 0 &&
		v.V30["confidentialityImpact"] == "HIGH" &&
		v.V30["integrityImpact"] == "HIGH" &&
		v.V30["availabilityImpact"] == "HIGH" {
		return true
	}
	if len(v.V2) != 0 &&
		v.V2["confidentialityImpact"] == "COMPLETE" &&
		v.V2["integrityImpact"] == "COMPLETE" &&
		v.V2["availabilityImpact"] == "COMPLETE" {
		return true
	}
	return false
}

// hasUserCodeExecution reports code execution at user scope.
func hasUserCodeExecution(v *Vulnerability) bool {
	if anyPhrase(v.Description, userExecutionPhrases) {
		return true
	}
	// Non-blind SQL injection with high integrity and confidentiality
	// impact counts as code execution.
	if strings.Contains(v.Description, "sql injection") && !strings.Contains(v.Description, "blind sql injection") {
		if len(v.V40) != 0 &&
			v.V40["vulnerableSystemIntegrity"] == "HIGH" &&
			v.V40["vulnerableSystemConfidentiality"] == "HIGH" {
			return true
		}
		if len(v.V31) != 0 &&
			v.V31["integrityImpact"] == "HIGH" &&
			v.V31["confidentialityImpact"] == "HIGH" {
			return true
		}
		if len(v.V30) != 0 &&
			v.V30["integrityImpact"] == "HIGH" &&
			v.V30["confidentialityImpact"] == "HIGH" {
			return true
		}
	}
	return anyKeyword(v.Description, executionNouns) && anyKeyword(v.Description, executionVerbs)
}
