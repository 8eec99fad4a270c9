package dialects

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{"postgres", "postgresql", "pgx", "mysql", "sqlite", "sqlite3"} {
		d, ok := Lookup(name)
		assert.True(t, ok, name)
		assert.NotNil(t, d)
	}

	_, ok := Lookup("oracle")
	assert.False(t, ok)
	assert.Panics(t, func() { GetDialect("oracle") })
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$3", GetDialect("postgres").Placeholder(3))
	assert.Equal(t, "?", GetDialect("mysql").Placeholder(3))
	assert.Equal(t, "?", GetDialect("sqlite").Placeholder(3))
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		dialect string
		in      string
		want    string
	}{
		{"postgres", "users", `"users"`},
		{"postgres", `we"ird`, `"we""ird"`},
		{"mysql", "users", "`users`"},
		{"mysql", "we`ird", "`we``ird`"},
		{"sqlite", "users", `"users"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GetDialect(tt.dialect).QuoteIdentifier(tt.in))
	}
}

func TestQuoteQualified(t *testing.T) {
	pg := GetDialect("postgres")
	assert.Equal(t, `"public"."users"`, QuoteQualified(pg, "public.users"))
	assert.Equal(t, `"u".*`, QuoteQualified(pg, "u.*"))
	assert.Equal(t, "*", QuoteQualified(pg, "*"))
	assert.Equal(t, "`u`.`id`", QuoteQualified(GetDialect("mysql"), "u.id"))
}

func TestQuoteString(t *testing.T) {
	assert.Equal(t, `'O''Brien'`, GetDialect("postgres").QuoteString("O'Brien"))
	assert.Equal(t, `'a\\b'`, GetDialect("mysql").QuoteString(`a\b`))
}

func TestConflictClauses(t *testing.T) {
	pg := GetDialect("postgres")
	assert.Equal(t, ` ON CONFLICT ("id") DO UPDATE SET `, pg.OnConflictUpdate([]string{`"id"`}))
	assert.Equal(t, ` ON CONFLICT ("id") DO NOTHING`, pg.OnConflictNothing([]string{`"id"`}, `"name"`))
	assert.Equal(t, ` ON CONFLICT DO NOTHING`, pg.OnConflictNothing(nil, `"name"`))
	assert.Equal(t, `EXCLUDED."name"`, pg.Excluded(`"name"`))

	my := GetDialect("mysql")
	assert.Equal(t, " ON DUPLICATE KEY UPDATE ", my.OnConflictUpdate([]string{"`id`"}))
	assert.Equal(t, " ON DUPLICATE KEY UPDATE `id` = `id`", my.OnConflictNothing([]string{"`id`"}, "`name`"))
	assert.Equal(t, "VALUES(`name`)", my.Excluded("`name`"))

	assert.Equal(t, `excluded."name"`, GetDialect("sqlite").Excluded(`"name"`))
}

func TestILike(t *testing.T) {
	assert.Equal(t, `"name" ILIKE $1`, GetDialect("postgres").ILike(`"name"`, "$1", false))
	assert.Equal(t, `"name" NOT ILIKE $1`, GetDialect("postgres").ILike(`"name"`, "$1", true))
	assert.Equal(t, `LOWER("name") LIKE LOWER(?)`, GetDialect("sqlite").ILike(`"name"`, "?", false))
	assert.Equal(t, "LOWER(`name`) NOT LIKE LOWER(?)", GetDialect("mysql").ILike("`name`", "?", true))
}

func TestReturningAndOffset(t *testing.T) {
	assert.True(t, GetDialect("postgres").SupportsReturning())
	assert.True(t, GetDialect("sqlite").SupportsReturning())
	assert.False(t, GetDialect("mysql").SupportsReturning())
	assert.False(t, GetDialect("mysql").SupportsNullsOrder())
	assert.True(t, GetDialect("sqlite3").SupportsNullsOrder())

	assert.Equal(t, "", GetDialect("postgres").OffsetWithoutLimit())
	assert.Equal(t, " LIMIT -1", GetDialect("sqlite").OffsetWithoutLimit())
	assert.Equal(t, " LIMIT 18446744073709551615", GetDialect("mysql").OffsetWithoutLimit())
}
