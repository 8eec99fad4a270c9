package security

import (
	"regexp"
	"strings"
)

// MaxIdentifierLength bounds a single identifier part.
const MaxIdentifierLength = 128

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s is a bare SQL identifier.
func ValidIdentifier(s string) bool {
	return s != "" && len(s) <= MaxIdentifierLength && identifierRe.MatchString(s)
}

// ValidQualified reports whether s is a dot-separated list of identifiers,
// such as "users", "public.users" or "u.id".
func ValidQualified(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if !ValidIdentifier(part) {
			return false
		}
	}
	return true
}

// ValidColumnRef is ValidQualified that also accepts a trailing "*",
// as in "u.*".
func ValidColumnRef(s string) bool {
	if prefix, ok := strings.CutSuffix(s, ".*"); ok {
		return ValidQualified(prefix)
	}
	return ValidQualified(s)
}
