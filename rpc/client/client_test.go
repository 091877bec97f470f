package client

import (
	"net"
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/lib/value"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/protocol"
	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// fakeServer accepts a single connection, reads one chunk per scripted step and
// answers with the scripted bytes
type fakeServer struct {
	listener net.Listener
	done     chan struct{}
}

func startFake(t *testing.T, script func(conn net.Conn)) *fakeServer {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeServer{listener: l, done: make(chan struct{})}
	go func() {
		defer close(f.done)
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn)
	}()
	t.Cleanup(func() {
		_ = l.Close()
		<-f.done
	})
	return f
}

func (f *fakeServer) config() common.ClientConfig {
	return common.ClientConfig{Endpoint: f.listener.Addr().String(), TimeoutSecond: 5}
}

// queryReader parses the queries of one connection, pipelined queries may arrive in
// a single read
type queryReader struct {
	conn net.Conn
	p    *protocol.Parser
}

func newQueryReader(conn net.Conn) *queryReader {
	return &queryReader{conn: conn, p: protocol.NewParser(protocol.MarkerQuery, 0)}
}

// next reads until one complete query frame arrived
func (r *queryReader) next() (protocol.Query, error) {
	buf := make([]byte, 1024)
	for {
		frame, err := r.p.Next()
		if err == nil {
			return protocol.ParseQuery(frame)
		}
		n, err := r.conn.Read(buf)
		if err != nil {
			return protocol.Query{}, err
		}
		r.p.Feed(buf[:n])
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestResponseSplitAcrossWrites(t *testing.T) {
	defer leaktest.Check(t)()

	srv := startFake(t, func(conn net.Conn) {
		q, err := newQueryReader(conn).next()
		if err != nil || q.Action != "GET" {
			return
		}
		resp := protocol.Single(value.String("value")).Encode()
		for i := range resp {
			_, _ = conn.Write(resp[i : i+1])
			time.Sleep(time.Millisecond)
		}
	})

	c, err := New(srv.config())
	require.NoError(t, err)
	defer c.Close()

	v, loaded, err := c.Get(value.String("k"))
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.True(t, v.Equal(value.String("value")))
}

func TestErrorResponse(t *testing.T) {
	defer leaktest.Check(t)()

	srv := startFake(t, func(conn net.Conn) {
		r := newQueryReader(conn)
		for i := 0; i < 2; i++ {
			if _, err := r.next(); err != nil {
				return
			}
		}
		var out []byte
		out = protocol.Errorf(protocol.CodeNil, "no such key").Append(out)
		out = protocol.Single(value.Null()).Append(out)
		_, _ = conn.Write(out)
	})

	c, err := New(srv.config())
	require.NoError(t, err)
	defer c.Close()

	resps, err := c.Pipeline([]protocol.Query{
		{Action: "DEL", Args: []value.Value{value.String("a")}},
		{Action: "GET", Args: []value.Value{value.String("a")}},
	})
	require.NoError(t, err)
	require.Len(t, resps, 2)
	assert.True(t, resps[0].IsError())
	assert.Equal(t, protocol.CodeNil, resps[0].Code)
	assert.True(t, resps[1].Value().IsNull())
}

func TestQueryConvertsErrors(t *testing.T) {
	defer leaktest.Check(t)()

	srv := startFake(t, func(conn net.Conn) {
		r := newQueryReader(conn)
		if _, err := r.next(); err != nil {
			return
		}
		_, _ = conn.Write(protocol.Errorf(protocol.CodeUnknownAction, "unknown action").Encode())
		if _, err := r.next(); err != nil {
			return
		}
		_, _ = conn.Write(protocol.Single(value.String("HEY!")).Encode())
	})

	c, err := New(srv.config())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Query("NOPE")
	require.Error(t, err)
	assert.True(t, IsCode(err, protocol.CodeUnknownAction))
	assert.False(t, IsCode(err, protocol.CodeNil))

	// an error response leaves the connection usable
	assert.NoError(t, c.Ping())
}

func TestServerClosesMidResponse(t *testing.T) {
	defer leaktest.Check(t)()

	srv := startFake(t, func(conn net.Conn) {
		if _, err := newQueryReader(conn).next(); err != nil {
			return
		}
		resp := protocol.Single(value.String("truncated")).Encode()
		_, _ = conn.Write(resp[:len(resp)-3])
	})

	c, err := New(srv.config())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Do("GET", value.String("k"))
	require.ErrorIs(t, err, protocol.ErrUnexpectedEOF)

	// the client is broken from now on
	_, err2 := c.Do("HEYA")
	assert.Equal(t, err, err2)
}

func TestClosedClient(t *testing.T) {
	defer leaktest.Check(t)()

	srv := startFake(t, func(conn net.Conn) {
		_, _ = newQueryReader(conn).next()
	})
	c, err := New(srv.config())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = c.Do("HEYA")
	assert.ErrorIs(t, err, net.ErrClosed)
}

func TestUnsupportedTransport(t *testing.T) {
	_, err := New(common.ClientConfig{Endpoint: "x", Transport: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestResponseErrorMessage(t *testing.T) {
	err := &ResponseError{Code: protocol.CodeWrongType, Msg: "expected str"}
	assert.Contains(t, err.Error(), "expected str")
	assert.Contains(t, err.Error(), "(3)")
}
