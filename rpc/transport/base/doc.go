// Package base provides the protocol agnostic part of the server transport: the
// accept loop, the connection registry and the per connection task. Network
// specific behavior (listening, socket options, TLS) is injected through an
// IServerConnector, which the tcp and unix packages implement.
//
// Connection task:
//
//   - Every accepted connection gets a uuid, an entry in the connection registry
//     (an xsync.MapOf) and its own goroutine.
//
//   - The goroutine reads into a pooled buffer and feeds a protocol.Parser. All
//     complete queries of one read are answered in arrival order and their
//     responses leave in a single write, so pipelined queries cost one syscall.
//
//   - A malformed header is answered with a MalformedQuery error and the connection
//     is closed. An element that fails to decode only fails its own query.
//
// Limits:
//
//   - MaxConnections is enforced with a counting semaphore acquired before Accept.
//   - TimeoutSecond is an idle timeout, the read deadline is renewed before every read.
//
// Thread Safety:
//
//	Shutdown may be called concurrently with Serve. It closes the listener and every
//	connection and waits until all connection goroutines have returned.
package base
