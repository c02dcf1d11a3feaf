package classify

import "strings"

// isAboutSystem reports whether the record targets an operating system or
// hardware and not also an application.
func isAboutSystem(types map[string]bool) bool {
	return (types["o"] || types["h"]) && !types["a"]
}

// isAboutApplication reports whether the record targets an application.
func isAboutApplication(types map[string]bool) bool {
	return types["a"]
}

// anyKeyword reports whether any keyword occurs in the description,
// case-insensitively.
func anyKeyword(description string, keywords []string) bool {
	description = strings.ToLower(description)
	for _, w := range keywords {
		if strings.Contains(description, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// anyPhrase reports whether any phrase occurs verbatim in the description.
func anyPhrase(description string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(description, p) {
			return true
		}
	}
	return false
}
