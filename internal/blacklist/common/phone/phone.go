package phone

import "strings"

// Canonical returns the phone number in the form used for storage and lookups:
// surrounding whitespace removed, everything else kept as entered, because
// records are correlated across collections by exact phone value.
func Canonical(p string) string {
	return strings.TrimSpace(p)
}

// Valid reports whether p is non-empty after canonicalization.
func Valid(p string) bool {
	return Canonical(p) != ""
}
