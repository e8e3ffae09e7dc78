package davclient

import "strings"

// urlContains is the sole notion of URL identity the sync engine uses, per
// spec §3: both sides trimmed, trailing "/" stripped, true iff either
// contains the other. Symmetric and reflexive up to trailing-slash and
// whitespace (spec §8).
func urlContains(a, b string) bool {
	na, nb := normalizeURL(a), normalizeURL(b)
	if na == "" || nb == "" {
		return na == nb
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// urlEquals is a stricter identity test than urlContains (see §9 design
// note (a)) for call sites that want exact identity; only tests call it. It
// trims/strips trailing "/" the same way urlContains does.
func urlEquals(a, b string) bool {
	return normalizeURL(a) == normalizeURL(b)
}

func normalizeURL(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimRight(s, "/")
}
