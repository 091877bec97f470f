package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/sKV/lib/value"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/protocol"
	"github.com/ValentinKolb/sKV/rpc/transport/base"
)

// Client is a single connection to a server. The server keeps the selected keyspace
// and table per connection, so USE affects every later query of this client.
//
// Thread-safety: all methods are safe for concurrent use, queries are serialized on
// the connection.
type Client struct {
	config common.ClientConfig

	mu     sync.Mutex
	conn   net.Conn
	parser *protocol.Parser
	buf    []byte
	out    []byte
	broken error // set once framing is lost, every later call fails with it
}

// New connects to the configured endpoint
func New(config common.ClientConfig) (*Client, error) {
	connector, err := connectorFor(config)
	if err != nil {
		return nil, err
	}
	conn, err := base.Dial(connector, config)
	if err != nil {
		return nil, err
	}
	return &Client{
		config: config,
		conn:   conn,
		parser: protocol.NewParser(protocol.MarkerResponse, config.MaxResponseSize),
		buf:    make([]byte, 64*1024),
	}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken == nil {
		c.broken = net.ErrClosed
	}
	return c.conn.Close()
}

// --------------------------------------------------------------------------
// Raw queries
// --------------------------------------------------------------------------

// Do sends one query and returns the raw response, error responses included.
// The returned error is only set for connection and framing failures.
func (c *Client) Do(action string, args ...value.Value) (protocol.Response, error) {
	resps, err := c.Pipeline([]protocol.Query{{Action: action, Args: args}})
	if err != nil {
		return protocol.Response{}, err
	}
	return resps[0], nil
}

// Pipeline sends all queries in one write and reads their responses, which arrive in
// the same order
func (c *Client) Pipeline(queries []protocol.Query) ([]protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken != nil {
		return nil, c.broken
	}

	c.out = c.out[:0]
	for _, q := range queries {
		c.out = protocol.AppendQuery(c.out, q.Action, q.Args...)
	}

	if d := c.config.Timeout(); d > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(d))
	}
	if _, err := c.conn.Write(c.out); err != nil {
		return nil, c.fail(fmt.Errorf("send query: %w", err))
	}

	resps := make([]protocol.Response, 0, len(queries))
	for len(resps) < len(queries) {
		resp, err := c.readResponse()
		if err != nil {
			return nil, c.fail(err)
		}
		resps = append(resps, resp)
	}
	return resps, nil
}

// Query sends one query and converts error responses into a *ResponseError
func (c *Client) Query(action string, args ...value.Value) (protocol.Response, error) {
	resp, err := c.Do(action, args...)
	if err != nil {
		return resp, err
	}
	if resp.IsError() {
		return resp, &ResponseError{Code: resp.Code, Msg: resp.Msg}
	}
	return resp, nil
}

// readResponse must be called with mu held
func (c *Client) readResponse() (protocol.Response, error) {
	for {
		frame, err := c.parser.Next()
		if err == nil {
			return protocol.ParseResponse(frame)
		}
		if !errors.Is(err, protocol.ErrIncomplete) {
			return protocol.Response{}, err
		}

		n, err := c.conn.Read(c.buf)
		if n > 0 {
			c.parser.Feed(c.buf[:n])
			continue
		}
		if errors.Is(err, io.EOF) {
			return protocol.Response{}, c.parser.Finish()
		}
		if err != nil {
			return protocol.Response{}, fmt.Errorf("read response: %w", err)
		}
	}
}

// fail marks the connection unusable, a partially read response cannot be skipped
func (c *Client) fail(err error) error {
	Logger.Warningf("connection to %s failed: %v", c.config.Endpoint, err)
	c.broken = err
	_ = c.conn.Close()
	return err
}
