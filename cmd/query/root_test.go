package query

import (
	"bufio"
	"strings"
	"testing"

	"github.com/ValentinKolb/sKV/lib/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadQueries(t *testing.T) {
	in := `
# setup
CREATE TABLE app:t keymap(str,uint)
USE app:t
SET alice uint64:42

GET alice
`
	qs, err := readQueries(bufio.NewScanner(strings.NewReader(in)))
	require.NoError(t, err)
	require.Len(t, qs, 4)

	assert.Equal(t, "CREATE", qs[0].Action)
	require.Len(t, qs[0].Args, 3)
	assert.True(t, qs[0].Args[2].Equal(value.String("keymap(str,uint)")))

	assert.Equal(t, "SET", qs[2].Action)
	assert.True(t, qs[2].Args[1].Equal(value.Uint64(42)))
	assert.Equal(t, "GET", qs[3].Action)
}

func TestReadQueriesBadLiteral(t *testing.T) {
	_, err := readQueries(bufio.NewScanner(strings.NewReader("HEYA\nSET k uint8:300\n")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
