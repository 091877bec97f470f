package transport

import (
	"net"

	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/protocol"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// IConnHandler handles the queries of one connection. Handle is called from the
// connection's goroutine only, one query at a time in arrival order.
type IConnHandler interface {
	Handle(q protocol.Query) protocol.Response
}

// HandlerFactory is called once for every accepted connection. The connection id is
// unique for the lifetime of the process and appears in the logs.
type HandlerFactory func(connID string) IConnHandler

// IServerTransport is the interface for the listener side of the wire protocol
type IServerTransport interface {
	// RegisterHandler sets the factory for per connection handlers, it must be
	// called before Listen
	RegisterHandler(factory HandlerFactory)
	// Listen creates the listener without accepting connections yet
	Listen(config common.ServerConfig) error
	// Addr returns the listener address, nil before Listen
	Addr() net.Addr
	// Serve accepts connections until Shutdown is called. It returns nil after a
	// shutdown and the accept error otherwise.
	Serve() error
	// Shutdown stops accepting, closes all connections and waits until their
	// in-flight queries have finished
	Shutdown() error
	// ActiveConnections returns the number of open connections
	ActiveConnections() int
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IClientConnector opens one connection to a server
type IClientConnector interface {
	// Connect establishes a single connection based on the provided configuration
	Connect(config common.ClientConfig) (net.Conn, error)
	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}
