// Package rpc contains everything between a network socket and the keyspace
// engine.
//
// The package is organized into several subpackages:
//
//   - protocol: The wire grammar. Metaframe and dataframe encoding, the incremental
//     Parser, Query and Response.
//
//   - action: The closed table of actions and the per-connection Session that
//     executes queries against the engine.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP with optional TLS, Unix sockets). The base transport owns the accept
//     loop, the connection limit and the per-connection task.
//
//   - common: Configuration structures and logging shared by server and client.
//
//   - client: A Go client speaking the wire protocol, used by the command line tools.
//
//   - server: Wires engine, persistence, transport and metrics together and owns
//     the process lifecycle.
package rpc
