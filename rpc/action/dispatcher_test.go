package action

import (
	"testing"

	"github.com/ValentinKolb/sKV/lib/db"
	"github.com/ValentinKolb/sKV/lib/persist"
	"github.com/ValentinKolb/sKV/lib/value"
	"github.com/ValentinKolb/sKV/rpc/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var s = value.String

func newSession(t *testing.T) *Session {
	t.Helper()
	return NewDispatcher(db.New(db.Options{}), nil, "test").NewSession()
}

// run executes one query and returns its response
func run(sess *Session, action string, args ...value.Value) protocol.Response {
	return sess.Handle(protocol.Query{Action: action, Args: args})
}

func requireOK(t *testing.T, r protocol.Response) {
	t.Helper()
	require.False(t, r.IsError(), "unexpected error: %s", r)
	require.True(t, r.Value().Equal(value.Bool(true)), "got %s", r)
}

func requireCode(t *testing.T, code protocol.Code, r protocol.Response) {
	t.Helper()
	require.True(t, r.IsError(), "expected %s, got %s", code, r)
	require.Equal(t, code, r.Code, r.Msg)
}

// TestEndToEnd runs the keyspace/table scenario through the dispatcher
func TestEndToEnd(t *testing.T) {
	sess := newSession(t)

	requireOK(t, run(sess, "CREATE", s("KEYSPACE"), s("ks1")))
	requireOK(t, run(sess, "CREATE", s("TABLE"), s("ks1:t1"), s("keymap(str,str)")))
	requireOK(t, run(sess, "USE", s("ks1:t1")))

	requireOK(t, run(sess, "SET", s("a"), s("1")))
	r := run(sess, "GET", s("a"))
	require.False(t, r.IsError())
	assert.True(t, r.Value().Equal(s("1")))

	requireCode(t, protocol.CodeNil, run(sess, "UPDATE", s("b"), s("x")))

	requireOK(t, run(sess, "DEL", s("a")))
	r = run(sess, "GET", s("a"))
	require.False(t, r.IsError())
	assert.True(t, r.Value().IsNull())
}

func TestValidation(t *testing.T) {
	sess := newSession(t)

	requireCode(t, protocol.CodeUnknownAction, run(sess, "get", s("a")))
	requireCode(t, protocol.CodeUnknownAction, run(sess, "NOPE"))
	requireCode(t, protocol.CodeActionError, run(sess, "GET"))
	requireCode(t, protocol.CodeActionError, run(sess, "SET", s("a")))
	requireCode(t, protocol.CodeActionError, run(sess, "SET", s("a"), s("b"), s("c")))
	requireCode(t, protocol.CodeActionError, run(sess, "CREATE", s("KEYSPACE"), s("a"), s("b")))
	requireCode(t, protocol.CodeWrongType, run(sess, "CREATE", s("KEYSPACE"), value.Int8(1)))
	requireCode(t, protocol.CodeWrongType, run(sess, "USE", value.Uint8(1)))
	requireCode(t, protocol.CodeBadExpression, run(sess, "CREATE", s("INDEX"), s("x")))
	requireCode(t, protocol.CodeBadContainerName, run(sess, "CREATE", s("KEYSPACE"), s("bad name")))
	requireCode(t, protocol.CodeUnknownModel, run(sess, "CREATE", s("TABLE"), s("t"), s("keymap(float)")))
	requireCode(t, protocol.CodeBadExpression, run(sess, "CREATE", s("TABLE"), s("t"), s("keymap(str,str")))
	requireCode(t, protocol.CodeBadExpression, run(sess, "CREATE", s("TABLE"), s("t"), s("keymap(str,str,str)")))
	requireCode(t, protocol.CodeBadExpression, run(sess, "USE", s("a:b:c")))
	requireCode(t, protocol.CodeBadExpression, run(sess, "DBSIZE", s("ks:")))

	// rejected writes leave the table untouched
	requireCode(t, protocol.CodeWrongType, run(sess, "SET", value.Int8(1), s("v")))
	r := run(sess, "DBSIZE")
	require.False(t, r.IsError())
	assert.True(t, r.Value().Equal(value.Uint64(0)))
}

func TestEngineErrorTranslation(t *testing.T) {
	sess := newSession(t)
	requireOK(t, run(sess, "CREATE", s("KEYSPACE"), s("ks")))

	requireCode(t, protocol.CodeOverwrite, run(sess, "CREATE", s("KEYSPACE"), s("ks")))
	requireCode(t, protocol.CodeNil, run(sess, "DROP", s("KEYSPACE"), s("missing")))
	requireCode(t, protocol.CodeProtectedObject, run(sess, "DROP", s("KEYSPACE"), s("system")))
	requireCode(t, protocol.CodeProtectedObject, run(sess, "DROP", s("TABLE"), s("default:default")))
	requireCode(t, protocol.CodeNil, run(sess, "DEL", s("missing")))

	requireOK(t, run(sess, "CREATE", s("TABLE"), s("ks:t"), s("keymap(str,int)")))
	requireCode(t, protocol.CodeNotEmpty, run(sess, "DROP", s("KEYSPACE"), s("ks")))
	requireCode(t, protocol.CodeBadExpression, run(sess, "DROP", s("KEYSPACE"), s("ks"), s("NOW")))
	requireOK(t, run(sess, "DROP", s("KEYSPACE"), s("ks"), s("FORCE")))
}

func TestSessionEntity(t *testing.T) {
	sess := newSession(t)

	r := run(sess, "WHEREAMI")
	assert.True(t, value.List(r.Values...).Equal(value.List(s("default"), s("default"))))

	requireOK(t, run(sess, "CREATE", s("KEYSPACE"), s("ks")))
	requireOK(t, run(sess, "USE", s("ks")))
	r = run(sess, "WHEREAMI")
	assert.True(t, value.List(r.Values...).Equal(value.List(s("ks"))))
	requireCode(t, protocol.CodeDefaultUnset, run(sess, "GET", s("a")))

	// unqualified entities resolve against the current keyspace
	requireOK(t, run(sess, "CREATE", s("TABLE"), s("t"), s("keymap(str)")))
	requireOK(t, run(sess, "USE", s("ks:t")))
	requireOK(t, run(sess, "SET", s("k"), s("v")))

	requireCode(t, protocol.CodeNil, run(sess, "USE", s("ks:missing")))
	requireCode(t, protocol.CodeNil, run(sess, "USE", s("missing")))

	// dropping the current table unselects it
	requireOK(t, run(sess, "DROP", s("TABLE"), s("t")))
	requireCode(t, protocol.CodeDefaultUnset, run(sess, "EXISTS", s("k")))

	// dropping the current keyspace returns to the default
	requireOK(t, run(sess, "DROP", s("KEYSPACE"), s("ks")))
	r = run(sess, "WHEREAMI")
	assert.True(t, value.List(r.Values...).Equal(value.List(s("default"), s("default"))))
}

func TestIntrospection(t *testing.T) {
	sess := newSession(t)
	requireOK(t, run(sess, "CREATE", s("KEYSPACE"), s("ks")))
	requireOK(t, run(sess, "CREATE", s("TABLE"), s("ks:t"), s("keymap(str,list<uint>)")))

	r := run(sess, "INSPECT", s("KEYSPACES"))
	assert.True(t, value.List(r.Values...).Equal(value.List(s("default"), s("ks"), s("system"))))

	r = run(sess, "INSPECT", s("KEYSPACE"), s("ks"))
	assert.True(t, value.List(r.Values...).Equal(value.List(s("t"))))

	r = run(sess, "INSPECT", s("TABLE"), s("ks:t"))
	assert.True(t, r.Value().Equal(s("keymap(str,list<uint>)")))

	r = run(sess, "HEYA")
	assert.True(t, r.Value().Equal(s("HEY!")))
	r = run(sess, "HEYA", s("echo"))
	assert.True(t, r.Value().Equal(s("echo")))

	r = run(sess, "SYS", s("INFO"), s("version"))
	assert.True(t, r.Value().Equal(s("test")))
	r = run(sess, "SYS", s("INFO"), s("keyspaces"))
	assert.True(t, r.Value().Equal(value.Uint64(3)))
	r = run(sess, "SYS", s("INFO"), s("distribution"))
	require.False(t, r.IsError())
	summary, ok := r.Value().AsString()
	require.True(t, ok)
	assert.Contains(t, summary, "quality=")
	requireCode(t, protocol.CodeBadExpression, run(sess, "SYS", s("INFO"), s("nope")))
}

func TestListingActions(t *testing.T) {
	sess := newSession(t)
	for _, k := range []string{"b", "a", "c"} {
		requireOK(t, run(sess, "SET", s(k), s(k)))
	}

	r := run(sess, "LSKEYS")
	require.Equal(t, protocol.KindList, r.Kind)
	require.Len(t, r.Values, 3)
	assert.Equal(t, value.KindBinary, r.Values[0].Kind(), "binstr keys come back as binary")

	r = run(sess, "LSKEYS", value.Uint8(2))
	assert.Len(t, r.Values, 2)
	r = run(sess, "LSKEYS", s("default:default"), value.Uint64(1))
	assert.Len(t, r.Values, 1)
	requireCode(t, protocol.CodeWrongType, run(sess, "LSKEYS", s("default"), s("x")))

	r = run(sess, "DBSIZE", s("default:default"))
	assert.True(t, r.Value().Equal(value.Uint64(3)))

	requireOK(t, run(sess, "FLUSHDB"))
	r = run(sess, "DBSIZE")
	assert.True(t, r.Value().Equal(value.Uint64(0)))
}

func TestMkSnap(t *testing.T) {
	requireCode(t, protocol.CodeSnapshotDisabled, run(newSession(t), "MKSNAP"))

	store, err := persist.NewFileStore(t.TempDir())
	require.NoError(t, err)
	engine := db.New(db.Options{})
	sess := NewDispatcher(engine, persist.NewManager(store, engine, 0), "test").NewSession()

	requireOK(t, run(sess, "SET", s("k"), s("v")))
	requireOK(t, run(sess, "MKSNAP"))

	data, err := store.Read()
	require.NoError(t, err)
	restored, err := persist.Load(data)
	require.NoError(t, err)
	_, ok, _ := restored.Get(db.DefaultKeyspace, db.DefaultTable, s("k"))
	assert.True(t, ok)
}

func TestLookup(t *testing.T) {
	a, ok := Lookup("SET")
	require.True(t, ok)
	assert.Equal(t, ActSet, a)
	assert.Equal(t, "SET", a.String())

	_, ok = Lookup("set")
	assert.False(t, ok)

	// every table entry is reachable by its name
	for name, a := range names {
		assert.Equal(t, name, a.String())
	}
}
