package security

import (
	"errors"
	"testing"
)

func TestValidator_ValidateFragment(t *testing.T) {
	tests := []struct {
		name      string
		fragment  string
		strict    bool
		wantError bool
	}{
		{name: "comparison", fragment: "age > ?", wantError: false},
		{name: "function_call", fragment: "LOWER(email) = LOWER(?)", wantError: false},
		{name: "or_between_columns", fragment: "a = ? OR b = ?", wantError: false},
		{name: "join_condition", fragment: "u.id = o.user_id", wantError: false},

		{name: "line_comment", fragment: "id = 1 -- drop", wantError: true},
		{name: "block_comment", fragment: "id = 1 /* x */", wantError: true},
		{name: "stacked_statement", fragment: "id = 1; DROP TABLE users", wantError: true},
		{name: "union_select", fragment: "1=1 UNION SELECT password FROM users", wantError: true},
		{name: "union_all_select", fragment: "1=1 union all select 1", wantError: true},
		{name: "tautology", fragment: "name = 'x' OR 1=1", wantError: true},
		{name: "quoted_tautology", fragment: "name = '' OR '1'='1'", wantError: true},
		{name: "pg_sleep", fragment: "pg_sleep(10) IS NULL", wantError: true},
		{name: "information_schema", fragment: "EXISTS (SELECT 1 FROM information_schema.tables)", wantError: true},

		{name: "strict_rejects_or", fragment: "a = ? OR b = ?", strict: true, wantError: true},
		{name: "strict_allows_plain", fragment: "a = ?", strict: true, wantError: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(WithStrict(tt.strict))
			err := v.ValidateFragment(tt.fragment)
			if (err != nil) != tt.wantError {
				t.Fatalf("ValidateFragment(%q) error = %v, wantError %v", tt.fragment, err, tt.wantError)
			}
			if err != nil && !errors.Is(err, ErrDangerousFragment) {
				t.Fatalf("expected ErrDangerousFragment, got %v", err)
			}
		})
	}
}

func TestValidIdentifier(t *testing.T) {
	valid := []string{"users", "_tmp", "user_id", "T1"}
	invalid := []string{"", "1users", "user-id", "users;", `us"ers`, "a b", "a.b"}

	for _, s := range valid {
		if !ValidIdentifier(s) {
			t.Errorf("ValidIdentifier(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if ValidIdentifier(s) {
			t.Errorf("ValidIdentifier(%q) = true, want false", s)
		}
	}

	long := make([]byte, MaxIdentifierLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if ValidIdentifier(string(long)) {
		t.Error("identifier longer than the limit must be rejected")
	}
}

func TestValidQualified(t *testing.T) {
	if !ValidQualified("public.users") || !ValidQualified("u.id") {
		t.Error("qualified names must be accepted")
	}
	if ValidQualified("public..users") || ValidQualified(".users") || ValidQualified("users.") {
		t.Error("empty parts must be rejected")
	}
	if !ValidColumnRef("u.*") {
		t.Error("u.* must be a valid column reference")
	}
	if ValidColumnRef("*.u") || ValidQualified("u.*") {
		t.Error("star is only valid as the last part of a column reference")
	}
}
