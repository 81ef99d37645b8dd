package domain

import "strings"

// NormalizeUsername lowercases and trims a netid so the same person cannot
// end up with two accounts differing only in case.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeHumanName trims leading/trailing whitespace and collapses internal
// whitespace runs.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
