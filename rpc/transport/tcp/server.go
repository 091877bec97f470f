package tcp

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/transport"
	"github.com/ValentinKolb/sKV/rpc/transport/base"
)

const (
	defaultBufferSize = 512 * 1024 // 512 KB
)

// serverConnector implements the IServerConnector interface for TCP sockets
type serverConnector struct {
	tlsConfig *tls.Config // nil when TLS is disabled
}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	if c.tlsConfig != nil {
		return "tcp+tls"
	}
	return "tcp"
}

func (c *serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	if config.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(config.TLSCertFile, config.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		c.tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	// Create TCP socket listener
	listener, err := net.Listen("tcp", config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create TCP socket: %w", err)
	}

	return listener, nil
}

// UpgradeConnection applies the TCP socket options and wraps the connection in TLS
// if configured. The TLS handshake runs on the first read of the connection task.
func (c *serverConnector) UpgradeConnection(conn net.Conn, config common.ServerConfig) (net.Conn, error) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		// Disable Nagle's algorithm (TCPNoDelay) if configured
		if err := tcpConn.SetNoDelay(config.TCPNoDelay); err != nil {
			return nil, err
		}

		// Enable TCP keep-alive if configured
		if config.TCPKeepAliveSec > 0 {
			if err := tcpConn.SetKeepAlive(true); err != nil {
				return nil, err
			}
			keepAlivePeriod := time.Duration(config.TCPKeepAliveSec) * time.Second
			if err := tcpConn.SetKeepAlivePeriod(keepAlivePeriod); err != nil {
				return nil, err
			}
		}
	}

	if c.tlsConfig != nil {
		return tls.Server(conn, c.tlsConfig), nil
	}
	return conn, nil
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPServerTransport creates a new TCP server transport with the default buffer size
func NewTCPServerTransport() transport.IServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, defaultBufferSize)
}
