package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModel(t *testing.T) {
	valid := map[string]string{
		"keymap(str,str)":        "keymap(str,str)",
		"keymap(binstr,binstr)":  "keymap(binstr,binstr)",
		"keymap( str , int )":    "keymap(str,int)",
		"keymap(str)":            "keymap(str)",
		"keymap(binstr,list)":    "keymap(binstr,list)",
		"keymap(str,list<uint>)": "keymap(str,list<uint>)",
		"keymap(any)":            "keymap(any)",
	}
	for expr, canonical := range valid {
		t.Run(expr, func(t *testing.T) {
			m, err := ParseModel(expr)
			require.NoError(t, err)
			assert.Equal(t, canonical, m.String())

			again, err := ParseModel(m.String())
			require.NoError(t, err)
			assert.Equal(t, m, again)
		})
	}

	unknown := []string{
		"hashmap(str,str)", "keymap(int,str)", "keymap(str,float)",
		"keymap(str,list<list>)", "keymap(float)",
	}
	for _, expr := range unknown {
		_, err := ParseModel(expr)
		assert.ErrorIs(t, err, ErrUnknownModel, expr)
	}

	malformed := []string{
		"", "keymap", "keymap()", "keymap(str,str", "keymap str,str)",
		"keymap(str,,str)", "keymap(,str)", "keymap(str,str,str)",
		"keymap(str,list<str)", "keymap(str,list<>)",
	}
	for _, expr := range malformed {
		_, err := ParseModel(expr)
		assert.ErrorIs(t, err, ErrBadExpression, expr)
	}
}

func TestParseEntity(t *testing.T) {
	e, err := ParseEntity("ks1:t1")
	require.NoError(t, err)
	assert.Equal(t, Entity{Keyspace: "ks1", Table: "t1"}, e)
	assert.Equal(t, "ks1:t1", e.String())

	e, err = ParseEntity("t1")
	require.NoError(t, err)
	assert.Equal(t, "cur", e.Resolve("cur").Keyspace)

	for _, bad := range []string{"", "9x", "with space", "a-b", "1ks:t", "ks:t-1"} {
		_, err := ParseEntity(bad)
		assert.ErrorIs(t, err, ErrBadName, bad)
	}
	for _, bad := range []string{":", "ks:", ":t", "a:b:c", "ks::t"} {
		_, err := ParseEntity(bad)
		assert.ErrorIs(t, err, ErrBadExpression, bad)
	}
	_, err = ParseEntity("$sys_1:_tbl$")
	assert.NoError(t, err)
}
