package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/sKV/lib/db"
)

// --------------------------------------------------------------------------
// Shared settings
// --------------------------------------------------------------------------

// TransportType selects the listener/dialer used for the wire protocol
type TransportType string

const (
	TransportTCP  TransportType = "tcp"
	TransportUnix TransportType = "unix"
)

// ParseTransport validates a transport name
func ParseTransport(s string) (TransportType, error) {
	switch t := TransportType(strings.ToLower(s)); t {
	case TransportTCP, TransportUnix:
		return t, nil
	default:
		return "", fmt.Errorf("invalid transport %q, must be one of tcp, unix", s)
	}
}

// Create helper functions for consistent formatting
func addSection(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
}

func addField(sb *strings.Builder, name, value string) {
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds every startup parameter of the server. It is immutable once the
// server has been started.
type ServerConfig struct {
	// Listener
	Endpoint        string
	Transport       TransportType
	TLSCertFile     string
	TLSKeyFile      string
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TimeoutSecond   int64 // idle read timeout, 0 disables it
	MaxConnections  int   // 0 means unlimited
	MaxQuerySize    int   // 0 selects protocol.DefaultMaxQuerySize

	// Persistence, an empty DataDir disables it
	DataDir          string
	SnapshotBackend  string
	SnapshotInterval time.Duration
	SnapshotKeep     int
	BootstrapFresh   bool

	// Engine
	DefaultKeyspace string

	// Observability
	MetricsEndpoint string
	LogLevel        string
}

// TLSEnabled reports whether both a certificate and a key are configured
func (c *ServerConfig) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// PersistenceEnabled reports whether snapshots are written
func (c *ServerConfig) PersistenceEnabled() bool {
	return c.DataDir != ""
}

// Validate checks the combinations that cannot be caught by flag parsing
func (c *ServerConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("no endpoint configured")
	}
	if _, err := ParseTransport(string(c.Transport)); err != nil {
		return err
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("tls needs both a certificate and a key file")
	}
	if c.TLSEnabled() && c.Transport != TransportTCP {
		return fmt.Errorf("tls is only supported for the tcp transport")
	}
	if c.MaxConnections < 0 || c.MaxQuerySize < 0 || c.SnapshotKeep < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	if c.DefaultKeyspace != "" {
		if err := db.ValidateDefaultKeyspace(c.DefaultKeyspace); err != nil {
			return fmt.Errorf("invalid default keyspace: %w", err)
		}
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Listener settings
	addSection(&sb, "Server")
	addField(&sb, "Endpoint", c.Endpoint)
	addField(&sb, "Transport", string(c.Transport))
	if c.TLSEnabled() {
		addField(&sb, "TLS Certificate", c.TLSCertFile)
		addField(&sb, "TLS Key", c.TLSKeyFile)
	} else {
		addField(&sb, "TLS", "disabled")
	}
	if c.Transport == TransportTCP {
		addField(&sb, "TCP No Delay", fmt.Sprintf("%t", c.TCPNoDelay))
		addField(&sb, "TCP Keep Alive", fmt.Sprintf("%d sec", c.TCPKeepAliveSec))
	}
	addField(&sb, "Idle Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField(&sb, "Max Connections", fmt.Sprintf("%d", c.MaxConnections))
	addField(&sb, "Max Query Size", fmt.Sprintf("%d bytes", c.MaxQuerySize))

	// Engine
	addSection(&sb, "Engine")
	addField(&sb, "Default Keyspace", c.DefaultKeyspace)

	// Persistence
	addSection(&sb, "Persistence")
	if c.PersistenceEnabled() {
		addField(&sb, "Data Directory", c.DataDir)
		addField(&sb, "Backend", c.SnapshotBackend)
		addField(&sb, "Interval", c.SnapshotInterval.String())
		if c.SnapshotBackend == "bolt" {
			addField(&sb, "Keep Snapshots", fmt.Sprintf("%d", c.SnapshotKeep))
		}
		addField(&sb, "Bootstrap Fresh", fmt.Sprintf("%t", c.BootstrapFresh))
	} else {
		addField(&sb, "Snapshots", "disabled")
	}

	// Observability
	addSection(&sb, "Observability")
	addField(&sb, "Metrics Endpoint", orNone(c.MetricsEndpoint))
	addField(&sb, "Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the connection parameters of rpc/client
type ClientConfig struct {
	Endpoint        string
	Transport       TransportType
	TLS             bool
	CAFile          string
	Insecure        bool // skip certificate verification
	TimeoutSecond   int
	MaxResponseSize int // 0 selects protocol.DefaultMaxQuerySize
}

// Timeout returns the per request timeout, zero means none
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection(&sb, "Client Configuration")
	addField(&sb, "Endpoint", c.Endpoint)
	addField(&sb, "Transport", string(c.Transport))
	addField(&sb, "TLS", fmt.Sprintf("%t", c.TLS))
	if c.TLS {
		addField(&sb, "CA File", orNone(c.CAFile))
		addField(&sb, "Skip Verify", fmt.Sprintf("%t", c.Insecure))
	}
	addField(&sb, "Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField(&sb, "Max Response Size", fmt.Sprintf("%d bytes", c.MaxResponseSize))

	return sb.String()
}
