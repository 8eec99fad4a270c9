package core

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Audited struct {
	Status string `db:"status"`
	Note   string
}

type member struct {
	Audited
	ID     int    `db:"id"`
	Name   string `db:"name,omitempty"`
	Status string `db:"state"`
	Secret string `db:"-"`
	hidden string
}

func TestScanner_FieldMapping(t *testing.T) {
	info, err := newScanner().structInfo(reflect.TypeOf(member{}))
	require.NoError(t, err)

	assert.Equal(t, []int{1}, info.fields["id"])
	assert.Equal(t, []int{2}, info.fields["name"])
	assert.Equal(t, []int{3}, info.fields["state"])
	assert.Equal(t, []int{0, 0}, info.fields["status"])
	assert.Equal(t, []int{0, 1}, info.fields["note"])
	assert.NotContains(t, info.fields, "secret")
	assert.NotContains(t, info.fields, "hidden")
}

func TestScanner_RejectsNonStruct(t *testing.T) {
	_, err := newScanner().structInfo(reflect.TypeOf(42))
	assert.Error(t, err)
}

func TestScanner_AllIntoPointersAndReplaces(t *testing.T) {
	db := openSQLite(t)
	seedUsers(t, db)

	type person struct {
		ID   int64  `db:"id"`
		Name string `db:"name"`
	}
	out := []*person{{ID: 99, Name: "stale"}}
	require.NoError(t, db.Select("id", "name", "email").From("users").OrderByAsc("id").All(&out))
	require.Len(t, out, 3)
	assert.Equal(t, "alice", out[0].Name)

	var bad []string
	assert.Error(t, db.Select("name").From("users").All(&bad))
	assert.Error(t, db.Select("name").From("users").All(person{}))
}

func TestScanRows_BytesBecomeStrings(t *testing.T) {
	db := openSQLite(t)
	_, err := db.NewQuery("INSERT INTO users (name, password) VALUES ('x', CAST('pw' AS BLOB))").Execute()
	require.NoError(t, err)

	row, err := db.Select("password").From("users").First()
	require.NoError(t, err)
	assert.Equal(t, "pw", row["password"])
}
