package client

import (
	"fmt"

	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/protocol"
	"github.com/ValentinKolb/sKV/rpc/transport"
	"github.com/ValentinKolb/sKV/rpc/transport/tcp"
	"github.com/ValentinKolb/sKV/rpc/transport/unix"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("client")
)

// ResponseError is returned for error responses of the server. The connection is
// still usable after a ResponseError.
type ResponseError struct {
	Code protocol.Code
	Msg  string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, uint16(e.Code), e.Msg)
}

// IsCode reports whether err is a ResponseError with the given code
func IsCode(err error, code protocol.Code) bool {
	re, ok := err.(*ResponseError)
	return ok && re.Code == code
}

// connectorFor selects the client connector of the configured transport
func connectorFor(config common.ClientConfig) (transport.IClientConnector, error) {
	switch config.Transport {
	case common.TransportTCP, "":
		return tcp.NewTCPClientConnector(), nil
	case common.TransportUnix:
		return unix.NewUnixClientConnector(), nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", config.Transport)
	}
}
