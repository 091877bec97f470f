package base

import (
	"fmt"
	"net"

	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/transport"
)

// Dial opens a connection with the given connector. Connectors bound the dial by
// the client timeout.
func Dial(connector transport.IClientConnector, config common.ClientConfig) (net.Conn, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("no endpoint provided")
	}
	conn, err := connector.Connect(config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s via %s: %w", config.Endpoint, connector.GetName(), err)
	}
	Logger.Debugf("Connected to %s via %s", config.Endpoint, connector.GetName())
	return conn, nil
}

// Dialer returns a net.Dialer honoring the client timeout
func Dialer(config common.ClientConfig) *net.Dialer {
	return &net.Dialer{Timeout: config.Timeout()}
}
