package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prefs struct {
	Theme string   `json:"theme" msgpack:"theme"`
	Tags  []string `json:"tags" msgpack:"tags"`
}

type account struct {
	ID    int64
	Email string
	Prefs prefs
	Blob  prefs
}

func accountSchema(t *testing.T) *Schema[account] {
	t.Helper()
	s, err := Define("accounts",
		Col("id", func(a *account) any { return &a.ID }).PK().AutoIncrement(),
		Col("email", func(a *account) any { return &a.Email }),
		Col("prefs", func(a *account) any { return &a.Prefs }).With(JSON),
		Col("blob", func(a *account) any { return &a.Blob }).With(MsgPack),
	)
	require.NoError(t, err)
	return s
}

func TestDefine_Errors(t *testing.T) {
	id := Col("id", func(a *account) any { return &a.ID })

	_, err := Define[account]("bad table", id)
	assert.ErrorIs(t, err, ErrInvalidColumn)

	_, err = Define("accounts", id, id)
	assert.ErrorIs(t, err, ErrDuplicateColumn)

	_, err = Define("accounts", id.PK(), Col("email", func(a *account) any { return &a.Email }).PK())
	assert.ErrorIs(t, err, ErrMultiplePK)

	_, err = Define("accounts", Col("e;mail", func(a *account) any { return &a.Email }))
	assert.ErrorIs(t, err, ErrInvalidColumn)

	assert.Panics(t, func() { MustDefine("accounts", id, id) })
}

func TestSchema_Metadata(t *testing.T) {
	s := accountSchema(t)
	assert.Equal(t, "accounts", s.Table())
	assert.Equal(t, []string{"id", "email", "prefs", "blob"}, s.Columns())

	pk, err := s.PrimaryKey()
	require.NoError(t, err)
	assert.Equal(t, "id", pk)
	assert.True(t, s.AutoIncrement())

	noPK := MustDefine("accounts", Col("email", func(a *account) any { return &a.Email }))
	_, err = noPK.PrimaryKey()
	assert.ErrorIs(t, err, ErrNoPrimaryKey)
	_, err = noPK.PrimaryKeyValue(&account{})
	assert.ErrorIs(t, err, ErrNoPrimaryKey)
}

func TestSchema_Values(t *testing.T) {
	s := accountSchema(t)
	a := &account{ID: 7, Email: "a@x.com", Prefs: prefs{Theme: "dark"}}

	cols, vals, err := s.Values(a, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "prefs", "blob"}, cols)
	assert.Equal(t, "a@x.com", vals[0])
	assert.JSONEq(t, `{"theme":"dark","tags":null}`, vals[1].(string))
	assert.IsType(t, []byte{}, vals[2])

	cols, _, err = s.Values(a, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "prefs", "blob"}, cols)

	pk, err := s.PrimaryKeyValue(a)
	require.NoError(t, err)
	assert.Equal(t, int64(7), pk)
}

func TestSchema_ScanTargets(t *testing.T) {
	s := accountSchema(t)
	src := &account{Prefs: prefs{Theme: "light", Tags: []string{"a"}}, Blob: prefs{Theme: "bin"}}
	_, vals, err := s.Values(src, true)
	require.NoError(t, err)

	var a account
	dest, finish := s.ScanTargets(&a, []string{"id", "email", "prefs", "blob", "extra"})
	require.Len(t, dest, 5)

	*dest[0].(*int64) = 3
	*dest[1].(*string) = "b@x.com"
	*dest[2].(*[]byte) = []byte(vals[1].(string))
	*dest[3].(*[]byte) = vals[2].([]byte)
	require.NoError(t, finish())

	assert.Equal(t, int64(3), a.ID)
	assert.Equal(t, "b@x.com", a.Email)
	assert.Equal(t, src.Prefs, a.Prefs)
	assert.Equal(t, "bin", a.Blob.Theme)
}

func TestSchema_ScanTargetsNullCodec(t *testing.T) {
	s := accountSchema(t)
	a := account{Prefs: prefs{Theme: "keep"}}
	_, finish := s.ScanTargets(&a, []string{"prefs"})
	require.NoError(t, finish())
	assert.Equal(t, "keep", a.Prefs.Theme)
}

func TestSchema_SetPrimaryKey(t *testing.T) {
	s := accountSchema(t)
	var a account
	require.NoError(t, s.SetPrimaryKey(&a, 42))
	assert.Equal(t, int64(42), a.ID)

	type strKey struct{ Code string }
	bad := MustDefine("codes", Col("code", func(k *strKey) any { return &k.Code }).PK())
	assert.Error(t, bad.SetPrimaryKey(&strKey{}, 1))
}

func TestCodec_DecodeError(t *testing.T) {
	var p prefs
	assert.Error(t, JSON.Decode([]byte("{"), &p))
	assert.Error(t, MsgPack.Decode([]byte{0xc1}, &p))
}
