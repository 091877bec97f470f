// Package client implements a Go client for the sKV wire protocol.
//
// A Client owns one connection. The server keeps the selected keyspace and table per
// connection, so USE on a client affects all of its later queries.
//
// Usage Example:
//
//	c, err := client.New(common.ClientConfig{Endpoint: "localhost:2003", TimeoutSecond: 5})
//	if err != nil {
//	  return err
//	}
//	defer c.Close()
//
//	_ = c.CreateKeyspace("app")
//	_ = c.CreateTable("app:users", "keymap(str,str)")
//	_ = c.Use("app:users")
//	_ = c.Set(value.String("alice"), value.String("admin"))
//	v, ok, _ := c.Get(value.String("alice"))
//
// Errors:
//
//	Error responses of the server are returned as *ResponseError carrying the
//	response code, the connection stays usable. Any other error means the connection
//	is broken and the client must be recreated.
//
// Thread Safety:
//
//	A Client is safe for concurrent use, queries are serialized on its connection.
//	Use one client per goroutine for parallel load.
package client
