package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/sKV/cmd/util"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/server"
	"github.com/ValentinKolb/sKV/rpc/transport"
	"github.com/ValentinKolb/sKV/rpc/transport/tcp"
	"github.com/ValentinKolb/sKV/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultSnapshotInterval = 5 * time.Minute

var (
	// Version is reported by HEYA and SYS INFO, set by the root command
	Version = "dev"

	serveCmdConfig = &common.ServerConfig{}
	configFile     string

	ServeCmd = &cobra.Command{
		Use:     "serve",
		Short:   "Start the sKV server",
		Long:    `Start the sKV server with the specified configuration. The configuration can be set via command line flags, a config file or environment variables. The format of the environment variables is SKV_<flag> (e.g. SKV_DATA_DIR=/var/lib/skv)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	ServeCmd.PersistentFlags().StringVar(&configFile, "config", "", cmdUtil.WrapString("Optional config file (yaml, toml, json, ...), flags and environment variables take precedence"))

	// listener
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:4444", cmdUtil.WrapString("The address on which the server will listen (host:port for tcp, socket path for unix)"))

	key = "transport"
	ServeCmd.PersistentFlags().String(key, "tcp", cmdUtil.WrapString("The transport to listen on (tcp, unix)"))

	key = "tls-cert-file"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("PEM certificate, TLS is enabled when both the certificate and the key are set (tcp only)"))

	key = "tls-key-file"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("PEM private key of the TLS certificate"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY on accepted connections"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval of accepted connections in seconds, 0 keeps the system default"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 0, cmdUtil.WrapString("Idle timeout in seconds, a connection without any input for this long is closed. 0 disables it"))

	key = "max-connections"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Maximum number of simultaneously served connections, 0 means unlimited"))

	key = "max-query-size"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Largest accepted query in bytes, larger queries close the connection. 0 selects the default (16 MiB)"))

	// engine
	key = "default-keyspace"
	ServeCmd.PersistentFlags().String(key, "default", cmdUtil.WrapString("Name of the protected default keyspace"))

	// persistence
	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("Directory for the snapshots, an empty value disables persistence"))

	key = "snapshot-backend"
	ServeCmd.PersistentFlags().String(key, "file", cmdUtil.WrapString("Snapshot store (file, bolt). bolt keeps a history of older snapshots"))

	key = "snapshot-interval"
	ServeCmd.PersistentFlags().Duration(key, defaultSnapshotInterval, cmdUtil.WrapString("How often a snapshot is written when data changed, 0 disables periodic snapshots (the final snapshot is still written)"))

	key = "snapshot-keep"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("(bolt) Number of older snapshots retained"))

	key = "bootstrap-fresh"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Start with an empty store when the snapshot cannot be read instead of refusing to start"))

	// observability
	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the Prometheus metrics endpoint (e.g. localhost:9100), empty disables it"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags, the config file
// and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	t, err := common.ParseTransport(viper.GetString("transport"))
	if err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Transport = t
	serveCmdConfig.TLSCertFile = viper.GetString("tls-cert-file")
	serveCmdConfig.TLSKeyFile = viper.GetString("tls-key-file")
	serveCmdConfig.TCPNoDelay = viper.GetBool("tcp-nodelay")
	serveCmdConfig.TCPKeepAliveSec = viper.GetInt("tcp-keepalive")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MaxConnections = viper.GetInt("max-connections")
	serveCmdConfig.MaxQuerySize = viper.GetInt("max-query-size")
	serveCmdConfig.DefaultKeyspace = viper.GetString("default-keyspace")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.SnapshotBackend = viper.GetString("snapshot-backend")
	serveCmdConfig.SnapshotInterval = viper.GetDuration("snapshot-interval")
	serveCmdConfig.SnapshotKeep = viper.GetInt("snapshot-keep")
	serveCmdConfig.BootstrapFresh = viper.GetBool("bootstrap-fresh")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return serveCmdConfig.Validate()
}

// run starts the sKV server and blocks until SIGINT or SIGTERM
func run(cmd *cobra.Command, _ []string) error {
	// errors from here on are not usage errors
	cmd.SilenceUsage = true

	var t transport.IServerTransport
	switch serveCmdConfig.Transport {
	case common.TransportTCP:
		t = tcp.NewTCPServerTransport()
	case common.TransportUnix:
		t = unix.NewUnixServerTransport()
	default:
		return fmt.Errorf("invalid transport %s", serveCmdConfig.Transport)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serv := server.NewServer(*serveCmdConfig, t, Version)
	return serv.Serve(ctx)
}

// initConfig reads in ENV variables and env files if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(cmdUtil.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
