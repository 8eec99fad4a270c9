// Package security provides identifier validation, raw SQL fragment
// screening, and audit logging for Quill.
package security

import (
	"errors"
	"regexp"
	"strings"
)

// ErrDangerousFragment is returned when a raw fragment matches an injection pattern.
var ErrDangerousFragment = errors.New("dangerous SQL pattern detected")

// Validator screens raw SQL fragments (WhereRaw, HavingRaw, JOIN ON, SetRaw)
// against common injection patterns. Bound parameters are never screened:
// they do not reach the SQL text.
type Validator struct {
	patterns []*regexp.Regexp
	strict   bool
}

// ValidatorOption configures the Validator.
type ValidatorOption func(*Validator)

// WithStrict enables strict validation mode (more aggressive).
func WithStrict(strict bool) ValidatorOption {
	return func(v *Validator) {
		v.strict = strict
	}
}

// NewValidator creates a new fragment validator with default dangerous patterns.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		patterns: compilePatterns(dangerousPatterns),
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.strict {
		v.patterns = append(v.patterns, compilePatterns(strictPatterns)...)
	}

	return v
}

// dangerousPatterns contains SQL injection patterns to block.
var dangerousPatterns = []string{
	// Comments
	`--`,
	`/\*`,
	`#\s`,

	// Stacked statements
	`;`,

	// UNION-based exfiltration
	`\bUNION\s+(ALL\s+)?SELECT\b`,

	// Procedure execution
	`XP_CMDSHELL`,
	`\bEXEC(UTE)?\s*\(`,
	`SP_EXECUTESQL`,

	// Metadata and timing attacks
	`INFORMATION_SCHEMA`,
	`PG_SLEEP\s*\(`,
	`BENCHMARK\s*\(`,
	`WAITFOR\s+DELAY`,

	// Tautologies
	`\bOR\s+1\s*=\s*1\b`,
	`\bOR\s+'1'\s*=\s*'1'`,
}

// strictPatterns may reject legitimate fragments.
var strictPatterns = []string{
	`\bOR\b`,
	`\bUNION\b`,
	`\bEXEC\b`,
}

// ValidateFragment returns ErrDangerousFragment when the fragment matches
// any configured pattern. Quoted literals are inspected too: a fragment that
// needs such text should bind it as a parameter instead.
func (v *Validator) ValidateFragment(fragment string) error {
	normalized := strings.ToUpper(fragment)

	for _, pattern := range v.patterns {
		if pattern.MatchString(normalized) {
			return ErrDangerousFragment
		}
	}

	return nil
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		compiled = append(compiled, regexp.MustCompile(pattern))
	}
	return compiled
}
