package tcp

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"

	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/transport"
	"github.com/ValentinKolb/sKV/rpc/transport/base"
)

// clientConnector implements the IClientConnector interface for TCP sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "tcp"
}

func (c *clientConnector) Connect(config common.ClientConfig) (net.Conn, error) {
	dialer := base.Dialer(config)
	if !config.TLS {
		conn, err := dialer.Dial("tcp", config.Endpoint)
		if err != nil {
			return nil, err
		}
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}
		return conn, nil
	}

	tlsConfig, err := clientTLSConfig(config)
	if err != nil {
		return nil, err
	}
	return tls.DialWithDialer(dialer, "tcp", config.Endpoint, tlsConfig)
}

// clientTLSConfig builds the TLS settings, trusting CAFile in addition to the
// system roots
func clientTLSConfig(config common.ClientConfig) (*tls.Config, error) {
	host, _, err := net.SplitHostPort(config.Endpoint)
	if err != nil {
		return nil, err
	}
	tlsConfig := &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: config.Insecure,
		MinVersion:         tls.VersionTLS12,
	}
	if config.CAFile != "" {
		pem, err := os.ReadFile(config.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", config.CAFile)
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

// --------------------------------------------------------------------------
// Client Connector Factory Method
// --------------------------------------------------------------------------

// NewTCPClientConnector creates a new TCP client connector
func NewTCPClientConnector() transport.IClientConnector {
	return &clientConnector{}
}
