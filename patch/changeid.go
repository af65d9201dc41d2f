// Package patch correlates commits across branches by their Gerrit Change-Id
// trailer and computes which patches are missing from a branch.
package patch

import (
	"regexp"
)

// changeIDRE matches a Gerrit Change-Id trailer line: "I" followed by 40 hex
// digits, alone on its line.
var changeIDRE = regexp.MustCompile(`(?m)^Change-Id:\s+(I[a-f0-9]{40})\s*$`)

// ExtractChangeID returns the first Change-Id trailer found in a commit
// message. Commits without one (imports from plain git, some merges) report
// ok == false and cannot be correlated across branches.
func ExtractChangeID(message string) (string, bool) {
	m := changeIDRE.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return m[1], true
}
