// Package unix implements the unix domain socket transport of the wire protocol on
// top of the base package. The endpoint is the socket path, an existing file at that
// path is removed before listening.
package unix
