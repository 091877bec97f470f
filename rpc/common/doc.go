// Package common provides the configuration structures and the logging setup shared
// by the server, the client and the command line tools.
//
// Key Components:
//
//   - ServerConfig: every startup parameter of the server (listener, TLS, limits,
//     persistence, default keyspace, metrics and log level). It is filled once by the
//     serve command and treated as immutable afterwards.
//
//   - ClientConfig: connection parameters of rpc/client.
//
//   - Logger: a logger factory for Dragonboat's logger package that writes through
//     logrus, so every package obtains its logger with logger.GetLogger(name).
package common
