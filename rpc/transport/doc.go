// Package transport defines the contract between the wire protocol and the network.
//
// A server transport owns a listener and one goroutine per accepted connection. The
// goroutine feeds received bytes into a protocol.Parser, hands every complete query to
// the connection's IConnHandler and writes the responses back in arrival order. The
// handler is created per connection through a HandlerFactory, which is how the server
// attaches one action.Session to every client.
//
// Implementations:
//
//   - base: protocol agnostic accept loop and connection task
//   - tcp: TCP listener and dialer, optionally wrapped in TLS
//   - unix: unix domain socket listener and dialer
package transport
