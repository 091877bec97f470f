package client

import (
	"fmt"

	"github.com/ValentinKolb/sKV/lib/value"
	"github.com/ValentinKolb/sKV/rpc/protocol"
)

// --------------------------------------------------------------------------
// Data actions on the current table
// --------------------------------------------------------------------------

// Get returns the value of key, loaded is false if the key does not exist
func (c *Client) Get(key value.Value) (v value.Value, loaded bool, err error) {
	resp, err := c.Query("GET", key)
	if err != nil {
		return value.Value{}, false, err
	}
	v = resp.Value()
	return v, !v.IsNull(), nil
}

// Set inserts or overwrites key
func (c *Client) Set(key, v value.Value) error {
	_, err := c.Query("SET", key, v)
	return err
}

// Update overwrites an existing key, a missing key is a ResponseError with CodeNil
func (c *Client) Update(key, v value.Value) error {
	_, err := c.Query("UPDATE", key, v)
	return err
}

// Delete removes key, a missing key is a ResponseError with CodeNil
func (c *Client) Delete(key value.Value) error {
	_, err := c.Query("DEL", key)
	return err
}

// Exists reports whether key exists
func (c *Client) Exists(key value.Value) (bool, error) {
	resp, err := c.Query("EXISTS", key)
	if err != nil {
		return false, err
	}
	ok, _ := resp.Value().AsBool()
	return ok, nil
}

// Keys lists up to limit keys of the current table, 0 lists all
func (c *Client) Keys(limit uint64) ([]value.Value, error) {
	args := []value.Value{}
	if limit > 0 {
		args = append(args, value.Uint64(limit))
	}
	resp, err := c.Query("LSKEYS", args...)
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// DBSize returns the number of entries of the current table
func (c *Client) DBSize() (uint64, error) {
	resp, err := c.Query("DBSIZE")
	if err != nil {
		return 0, err
	}
	n, ok := resp.Value().AsUint()
	if !ok {
		return 0, fmt.Errorf("unexpected DBSIZE response %s", resp)
	}
	return n, nil
}

// --------------------------------------------------------------------------
// Structure and session
// --------------------------------------------------------------------------

// Use selects a keyspace or a keyspace:table entity for this connection
func (c *Client) Use(entity string) error {
	_, err := c.Query("USE", value.String(entity))
	return err
}

// CreateKeyspace creates a keyspace
func (c *Client) CreateKeyspace(name string) error {
	_, err := c.Query("CREATE", value.String("KEYSPACE"), value.String(name))
	return err
}

// CreateTable creates a table with a model such as "keymap(str,str)"
func (c *Client) CreateTable(entity, model string) error {
	_, err := c.Query("CREATE", value.String("TABLE"), value.String(entity), value.String(model))
	return err
}

// DropKeyspace drops a keyspace, force also drops its tables
func (c *Client) DropKeyspace(name string, force bool) error {
	args := []value.Value{value.String("KEYSPACE"), value.String(name)}
	if force {
		args = append(args, value.String("FORCE"))
	}
	_, err := c.Query("DROP", args...)
	return err
}

// DropTable drops a table
func (c *Client) DropTable(entity string) error {
	_, err := c.Query("DROP", value.String("TABLE"), value.String(entity))
	return err
}

// Snapshot asks the server to write a snapshot now
func (c *Client) Snapshot() error {
	_, err := c.Query("MKSNAP")
	return err
}

// Ping sends HEYA and checks the greeting
func (c *Client) Ping() error {
	resp, err := c.Query("HEYA")
	if err != nil {
		return err
	}
	if s, _ := resp.Value().AsString(); s != "HEY!" {
		return &ResponseError{Code: protocol.CodeServerError, Msg: fmt.Sprintf("unexpected greeting %s", resp)}
	}
	return nil
}
