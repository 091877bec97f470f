package common

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() ServerConfig {
	return ServerConfig{
		Endpoint:        "127.0.0.1:2003",
		Transport:       TransportTCP,
		DefaultKeyspace: "default",
		LogLevel:        "info",
	}
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ServerConfig)
		wantErr string
	}{
		{"valid", func(c *ServerConfig) {}, ""},
		{"no endpoint", func(c *ServerConfig) { c.Endpoint = "" }, "no endpoint"},
		{"bad transport", func(c *ServerConfig) { c.Transport = "udp" }, "invalid transport"},
		{"cert without key", func(c *ServerConfig) { c.TLSCertFile = "cert.pem" }, "both a certificate and a key"},
		{"tls over unix", func(c *ServerConfig) {
			c.Transport = TransportUnix
			c.TLSCertFile, c.TLSKeyFile = "cert.pem", "key.pem"
		}, "only supported for the tcp"},
		{"negative limit", func(c *ServerConfig) { c.MaxConnections = -1 }, "negative"},
		{"bad log level", func(c *ServerConfig) { c.LogLevel = "loud" }, "invalid log level"},
		{"system as default keyspace", func(c *ServerConfig) { c.DefaultKeyspace = "system" }, "reserved for the system keyspace"},
		{"invalid default keyspace", func(c *ServerConfig) { c.DefaultKeyspace = "bad name!" }, "invalid container name"},
		{"custom default keyspace", func(c *ServerConfig) { c.DefaultKeyspace = "app" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestServerConfigString(t *testing.T) {
	c := validConfig()
	out := c.String()
	assert.Contains(t, out, "SERVER")
	assert.Contains(t, out, "127.0.0.1:2003")
	assert.Contains(t, out, "disabled", "tls and snapshots are off")

	c.DataDir = "/var/lib/skv"
	c.SnapshotBackend = "bolt"
	c.SnapshotKeep = 4
	out = c.String()
	assert.Contains(t, out, "/var/lib/skv")
	assert.Contains(t, out, "Keep Snapshots")
}

func TestParseTransport(t *testing.T) {
	tr, err := ParseTransport("TCP")
	require.NoError(t, err)
	assert.Equal(t, TransportTCP, tr)
	_, err = ParseTransport("quic")
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]logger.LogLevel{
		"debug": logger.DEBUG,
		"INFO":  logger.INFO,
		"warn":  logger.WARNING,
		"error": logger.ERROR,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLogLevel("trace")
	assert.Error(t, err)
}

func TestInitLoggersRepeated(t *testing.T) {
	require.NoError(t, InitLoggers("error"))
	assert.NotPanics(t, func() {
		require.NoError(t, InitLoggers("debug"))
	})
	assert.Error(t, InitLoggers("loud"))
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(os.Stdout)

	l := CreateLogger("test")
	l.SetLevel(logger.WARNING)
	l.Infof("hidden %d", 1)
	l.Warningf("shown %d", 2)

	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "pkg=test")
}
