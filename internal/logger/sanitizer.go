package logger

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultSensitiveFields are masked when no explicit list is configured.
var DefaultSensitiveFields = []string{
	"password", "passwd", "pwd",
	"token", "api_key", "apikey", "api_token",
	"secret", "auth", "authorization",
	"credit_card", "card_number", "cvv", "cvc",
	"ssn", "social_security",
	"private_key", "priv_key",
}

// MaskValue replaces sensitive parameters in log output.
const MaskValue = "***REDACTED***"

// Sanitizer masks sensitive parameters before statements are logged.
//
// The compiler records which column each placeholder was bound for, so
// masking is positional: only parameters bound to a sensitive column are
// replaced. Parameters without a known column (raw fragments) fall back to
// scanning the SQL text, and are masked when it mentions a sensitive field.
type Sanitizer struct {
	fields   []string
	patterns []*regexp.Regexp
}

// NewSanitizer creates a sanitizer for the given field names, or for
// DefaultSensitiveFields when none are provided.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = DefaultSensitiveFields
	}

	fields := make([]string, len(sensitiveFields))
	patterns := make([]*regexp.Regexp, len(sensitiveFields))
	for i, field := range sensitiveFields {
		fields[i] = strings.ToLower(field)
		patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(field) + `\b`)
	}

	return &Sanitizer{fields: fields, patterns: patterns}
}

// MaskParams returns a copy of params with sensitive values replaced by
// MaskValue. columns[i] names the column params[i] was bound for, or is empty
// when unknown. The input slice is never modified.
func (s *Sanitizer) MaskParams(columns []string, sql string, params []any) []any {
	if len(params) == 0 {
		return params
	}

	masked := make([]any, len(params))
	copy(masked, params)

	sqlChecked, sqlSensitive := false, false
	for i := range masked {
		column := ""
		if i < len(columns) {
			column = columns[i]
		}

		if column != "" {
			if s.IsSensitiveColumn(column) {
				masked[i] = MaskValue
			}
			continue
		}

		if !sqlChecked {
			sqlSensitive = s.mentionsSensitive(sql)
			sqlChecked = true
		}
		if sqlSensitive {
			masked[i] = MaskValue
		}
	}

	return masked
}

// IsSensitiveColumn reports whether a (possibly qualified) column name
// contains one of the configured field names, e.g. "u.user_password".
func (s *Sanitizer) IsSensitiveColumn(column string) bool {
	name := strings.ToLower(column)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	for _, field := range s.fields {
		if strings.Contains(name, field) {
			return true
		}
	}
	return false
}

func (s *Sanitizer) mentionsSensitive(sql string) bool {
	for _, pattern := range s.patterns {
		if pattern.MatchString(sql) {
			return true
		}
	}
	return false
}

// FormatParams renders parameters for a log line, truncating long values.
func (s *Sanitizer) FormatParams(params []any) string {
	if len(params) == 0 {
		return "[]"
	}

	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = formatValue(p)
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}

	str := fmt.Sprintf("%v", v)

	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}

	return str
}
