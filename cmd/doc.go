// Package cmd implements the command-line interface of sKV. It provides a
// hierarchical command structure with operations for running the server and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the sKV server
//   - kv: Key-value operations on the current table (get, set, update, del, ...)
//   - query: Sends raw actions, optionally pipelined from stdin
//   - bench: Load test running SET/GET/UPDATE/DEL phases with a worker pool
//   - util: Shared utilities for flags, configuration and value literals (internal use)
//
// Every flag can also be set through an environment variable SKV_<FLAG> (dashes
// become underscores), .env and .env.local files are loaded on startup.
//
// See skv -help for a list of all commands.
package cmd
