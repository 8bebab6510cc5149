// Package fingerprint derives the identity of a real-world game from noisy
// source reports.
package fingerprint

import "strings"

// Normalize canonicalizes a free-text field. The same form is used for
// hashing and for storage.
func Normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// OrderTeams returns the normalized team names in ordinal (byte-wise) order.
func OrderTeams(teamA, teamB string) (string, string) {
	a, b := Normalize(teamA), Normalize(teamB)
	if strings.Compare(a, b) > 0 {
		return b, a
	}
	return a, b
}
