package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizer_MaskParams_ByColumn(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		sql     string
		params  []any
		want    []any
	}{
		{
			name:    "password set, id kept",
			columns: []string{"password", "id"},
			sql:     `UPDATE "users" SET "password" = $1 WHERE "id" = $2`,
			params:  []any{"secret123", 1},
			want:    []any{MaskValue, 1},
		},
		{
			name:    "insert with token column",
			columns: []string{"user_id", "token"},
			sql:     `INSERT INTO "sessions" ("user_id", "token") VALUES ($1, $2)`,
			params:  []any{123, "abc-xyz-token"},
			want:    []any{123, MaskValue},
		},
		{
			name:    "qualified and composite names",
			columns: []string{"u.user_password", "u.name"},
			sql:     `SELECT * FROM "users" "u" WHERE "u"."user_password" = $1 AND "u"."name" = $2`,
			params:  []any{"pw", "Alice"},
			want:    []any{MaskValue, "Alice"},
		},
		{
			name:    "case insensitive",
			columns: []string{"PASSWORD"},
			sql:     `UPDATE "users" SET "PASSWORD" = ?`,
			params:  []any{"secret"},
			want:    []any{MaskValue},
		},
		{
			name:    "no sensitive fields",
			columns: []string{"id", "name"},
			sql:     `SELECT * FROM "users" WHERE "id" = $1 AND "name" = $2`,
			params:  []any{1, "Alice"},
			want:    []any{1, "Alice"},
		},
		{
			name:    "raw fragment falls back to sql scan",
			columns: []string{"", "id"},
			sql:     `SELECT * FROM "users" WHERE crypt(password, $1) = password AND "id" = $2`,
			params:  []any{"pw", 7},
			want:    []any{MaskValue, 7},
		},
		{
			name:    "raw fragment without sensitive text",
			columns: nil,
			sql:     `SELECT * FROM "users" WHERE age > ?`,
			params:  []any{18},
			want:    []any{18},
		},
		{
			name:   "empty params",
			sql:    `SELECT COUNT(*) FROM "users"`,
			params: []any{},
			want:   []any{},
		},
	}

	sanitizer := NewSanitizer(nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.MaskParams(tt.columns, tt.sql, tt.params)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizer_MaskParams_DoesNotModifyInput(t *testing.T) {
	sanitizer := NewSanitizer(nil)
	params := []any{"secret", 1}

	_ = sanitizer.MaskParams([]string{"password", "id"}, "", params)

	assert.Equal(t, []any{"secret", 1}, params)
}

func TestSanitizer_CustomFields(t *testing.T) {
	sanitizer := NewSanitizer([]string{"secret_key", "private_data"})

	got := sanitizer.MaskParams([]string{"secret_key", "password"}, "", []any{"k", "p"})
	assert.Equal(t, []any{MaskValue, "p"}, got)

	assert.True(t, sanitizer.IsSensitiveColumn("cfg.secret_key"))
	assert.False(t, sanitizer.IsSensitiveColumn("name"))
}

func TestSanitizer_FormatParams(t *testing.T) {
	sanitizer := NewSanitizer(nil)

	tests := []struct {
		name   string
		params []any
		want   string
	}{
		{"empty", []any{}, "[]"},
		{"single", []any{123}, "[123]"},
		{"null", []any{nil}, "[NULL]"},
		{"long string truncation", []any{strings.Repeat("a", 150)}, "[" + strings.Repeat("a", 100) + "...]"},
		{"mixed", []any{1, "test", nil, true, 3.14}, "[1, test, NULL, true, 3.14]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizer.FormatParams(tt.params))
		})
	}
}

func TestSanitizer_FormatParams_AfterMasking(t *testing.T) {
	sanitizer := NewSanitizer(nil)

	masked := sanitizer.MaskParams([]string{"password", "id"}, "", []any{"secretPassword123", 1})
	formatted := sanitizer.FormatParams(masked)

	assert.Equal(t, "[***REDACTED***, 1]", formatted)
	assert.NotContains(t, formatted, "secretPassword123")
}
