package base

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/transport"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// UpgradeConnection applies protocol-specific settings to an accepted connection.
	// It may wrap the connection (e.g. in TLS) and returns the one to use.
	UpgradeConnection(conn net.Conn, config common.ServerConfig) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the accept loop and the connection registry
type serverTransport struct {
	connector  IServerConnector
	factory    transport.HandlerFactory
	config     common.ServerConfig
	listener   net.Listener
	bufferPool *sync.Pool

	// sem is a counting semaphore limiting open connections, nil when unlimited
	sem  chan struct{}
	done chan struct{}

	conns *xsync.MapOf[string, net.Conn]
	wg    sync.WaitGroup

	mu      sync.Mutex // orders wg.Add against Shutdown
	closing bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a server transport reading with buffers of bufferSize
func NewBaseServerTransport(connector IServerConnector, bufferSize int) transport.IServerTransport {
	if bufferSize <= 0 {
		bufferSize = 64 * 1024
	}
	return &serverTransport{
		connector: connector,
		conns:     xsync.NewMapOf[string, net.Conn](),
		done:      make(chan struct{}),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(factory transport.HandlerFactory) {
	t.factory = factory
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.factory == nil {
		return fmt.Errorf("no handler registered")
	}
	t.config = config
	if config.MaxConnections > 0 {
		t.sem = make(chan struct{}, config.MaxConnections)
	}

	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	t.listener = listener

	Logger.Infof("Listening for %s connections on %s (max connections %d)",
		t.connector.GetName(), listener.Addr(), config.MaxConnections)
	return nil
}

func (t *serverTransport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *serverTransport) Serve() error {
	if t.listener == nil {
		return fmt.Errorf("serve called before listen")
	}

	for {
		// Acquire a connection slot, blocks while MaxConnections are open
		if t.sem != nil {
			select {
			case t.sem <- struct{}{}:
			case <-t.done:
				return nil
			}
		}

		conn, err := t.listener.Accept()
		if err != nil {
			t.release()
			if t.isClosing() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				Logger.Warningf("Accept error: %v", err)
				continue
			}
			return fmt.Errorf("accept on %s: %w", t.listener.Addr(), err)
		}

		upgraded, err := t.connector.UpgradeConnection(conn, t.config)
		if err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			_ = conn.Close()
			t.release()
			continue
		}
		conn = upgraded

		id := uuid.NewString()
		t.mu.Lock()
		if t.closing {
			t.mu.Unlock()
			_ = conn.Close()
			t.release()
			return nil
		}
		t.wg.Add(1)
		t.conns.Store(id, conn)
		t.mu.Unlock()

		// Handle the connection in a goroutine
		go t.handleConnection(id, conn)
	}
}

func (t *serverTransport) Shutdown() error {
	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		return nil
	}
	t.closing = true
	close(t.done)
	t.mu.Unlock()

	var err error
	if t.listener != nil {
		if cerr := t.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}

	// Closing a connection interrupts its pending read, a query already being
	// handled runs to completion before the goroutine exits
	open := t.conns.Size()
	t.conns.Range(func(id string, conn net.Conn) bool {
		_ = conn.Close()
		return true
	})
	t.wg.Wait()

	Logger.Infof("Stopped %s transport, closed %d connections", t.connector.GetName(), open)
	return err
}

func (t *serverTransport) ActiveConnections() int {
	return t.conns.Size()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *serverTransport) isClosing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closing
}

// release frees a connection slot
func (t *serverTransport) release() {
	if t.sem != nil {
		<-t.sem
	}
}
