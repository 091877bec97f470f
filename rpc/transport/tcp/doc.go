// Package tcp implements the TCP transport of the wire protocol on top of the base
// package. The server connector applies the socket options from ServerConfig
// (no-delay, keep-alive) and wraps accepted connections in TLS when a certificate
// and key are configured. The client connector optionally dials TLS, trusting an
// additional CA file.
//
// The default server read buffer size is 512 KB.
package tcp
