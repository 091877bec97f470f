package util

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/sKV/lib/value"
	"github.com/ValentinKolb/sKV/rpc/client"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of every environment variable read by skv
	EnvPrefix = "skv"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the connection flags shared by every client command
func SetupClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "localhost:4444", WrapString("The address of the sKV server (host:port for tcp, socket path for unix)"))

	key = "transport"
	cmd.PersistentFlags().String(key, "tcp", WrapString("The transport to use (tcp, unix)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of every request, 0 disables it"))

	key = "tls"
	cmd.PersistentFlags().Bool(key, false, WrapString("Connect using TLS (tcp only)"))

	key = "tls-ca-file"
	cmd.PersistentFlags().String(key, "", WrapString("PEM file with the CA certificates used to verify the server, the system pool is used when empty"))

	key = "tls-insecure"
	cmd.PersistentFlags().Bool(key, false, WrapString("Skip verification of the server certificate"))

	key = "max-response-size"
	cmd.PersistentFlags().Int(key, 0, WrapString("Largest accepted response in bytes, 0 selects the protocol default"))

	key = "use"
	cmd.PersistentFlags().String(key, "", WrapString("Keyspace or keyspace:table to select before running the command"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() (common.ClientConfig, error) {
	t, err := common.ParseTransport(viper.GetString("transport"))
	if err != nil {
		return common.ClientConfig{}, err
	}
	return common.ClientConfig{
		Endpoint:        viper.GetString("endpoint"),
		Transport:       t,
		TLS:             viper.GetBool("tls"),
		CAFile:          viper.GetString("tls-ca-file"),
		Insecure:        viper.GetBool("tls-insecure"),
		TimeoutSecond:   viper.GetInt("timeout"),
		MaxResponseSize: viper.GetInt("max-response-size"),
	}, nil
}

// Connect opens a client with the configuration read from viper and selects the
// entity given by --use
func Connect() (*client.Client, error) {
	config, err := GetClientConfig()
	if err != nil {
		return nil, err
	}
	c, err := client.New(config)
	if err != nil {
		return nil, err
	}
	if entity := viper.GetString("use"); entity != "" {
		if err := c.Use(entity); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Value literals
// --------------------------------------------------------------------------

// ParseValue converts a command line literal into a value. A literal is either
// plain text (a str) or `type:literal` where type is one of
//
//	null, bool, int8, int16, int32, int64, uint8, uint16, uint32, uint64,
//	str, binstr, hex
//
// `hex:` decodes to a binstr. A literal `null` (without colon) is also Null.
func ParseValue(s string) (value.Value, error) {
	if s == "null" {
		return value.Null(), nil
	}
	typ, lit, ok := strings.Cut(s, ":")
	if !ok {
		return value.String(s), nil
	}

	switch typ {
	case "null":
		return value.Null(), nil
	case "bool":
		b, err := strconv.ParseBool(lit)
		if err != nil {
			return value.Value{}, fmt.Errorf("invalid bool %q", lit)
		}
		return value.Bool(b), nil
	case "int8", "int16", "int32", "int64":
		bits, _ := strconv.Atoi(typ[len("int"):])
		i, err := strconv.ParseInt(lit, 10, bits)
		if err != nil {
			return value.Value{}, fmt.Errorf("invalid %s %q", typ, lit)
		}
		switch bits {
		case 8:
			return value.Int8(int8(i)), nil
		case 16:
			return value.Int16(int16(i)), nil
		case 32:
			return value.Int32(int32(i)), nil
		}
		return value.Int64(i), nil
	case "uint8", "uint16", "uint32", "uint64":
		bits, _ := strconv.Atoi(typ[len("uint"):])
		u, err := strconv.ParseUint(lit, 10, bits)
		if err != nil {
			return value.Value{}, fmt.Errorf("invalid %s %q", typ, lit)
		}
		switch bits {
		case 8:
			return value.Uint8(uint8(u)), nil
		case 16:
			return value.Uint16(uint16(u)), nil
		case 32:
			return value.Uint32(uint32(u)), nil
		}
		return value.Uint64(u), nil
	case "str":
		return value.String(lit), nil
	case "binstr":
		return value.BinaryString(lit), nil
	case "hex":
		b, err := hex.DecodeString(lit)
		if err != nil {
			return value.Value{}, fmt.Errorf("invalid hex literal %q", lit)
		}
		return value.Binary(b), nil
	default:
		// a colon inside plain text, e.g. "a:b"
		return value.String(s), nil
	}
}

// ParseValues converts every literal of args
func ParseValues(args []string) ([]value.Value, error) {
	out := make([]value.Value, 0, len(args))
	for _, a := range args {
		v, err := ParseValue(a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
