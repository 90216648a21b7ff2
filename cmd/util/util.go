package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/db/engines/maple"
	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/ValentinKolb/ixKV/lib/store/astore"
	"github.com/ValentinKolb/ixKV/lib/store/lstore"
	"github.com/ValentinKolb/ixKV/rpc/client"
	"github.com/ValentinKolb/ixKV/rpc/common"
	"github.com/ValentinKolb/ixKV/rpc/serializer"
	"github.com/ValentinKolb/ixKV/rpc/transport"
	"github.com/ValentinKolb/ixKV/rpc/transport/http"
	"github.com/ValentinKolb/ixKV/rpc/transport/tcp"
	"github.com/ValentinKolb/ixKV/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables read by the CLI
	EnvPrefix = "ixkv"
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

		// Add space before word (if not first word on line)
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

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// InitConfig loads .env files and binds IXKV_* environment variables
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// SetupStoreFlags adds the flags selecting and configuring the store backend to a command
func SetupStoreFlags(cmd *cobra.Command) {
	key := "store"
	cmd.PersistentFlags().String(key, "rpc", WrapString("Store backend to use (rpc, aerospike, local). local runs an in-memory store inside the CLI process"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of a single request"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("Log level of the CLI (debug, info, warn, error)"))

	// rpc backend
	key = "shard"
	cmd.PersistentFlags().Int(key, 100, WrapString("ID of the shard to connect to (rpc store)"))

	key = "query-page-size"
	cmd.PersistentFlags().Uint32(key, 128, WrapString("Number of records fetched per query round trip (rpc store)"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "http://localhost:8080", WrapString("The address of the ixKV server. For transports that support load balancing, multiple endpoints can be specified as a comma-separated list"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint - for transports that support this feature"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry the request"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the write buffer for the transport (in KB, ignored for http)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the read buffer for the transport (in KB, ignored for http)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY for the transport (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval for the transport (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time for the transport (in seconds, only for tcp, 0 keeps the OS default)"))

	// aerospike backend
	key = "aerospike-host"
	cmd.PersistentFlags().String(key, "127.0.0.1", WrapString("Seed host of the Aerospike cluster (aerospike store)"))

	key = "aerospike-port"
	cmd.PersistentFlags().Int(key, 3000, WrapString("Port of the Aerospike seed host (aerospike store)"))

	key = "aerospike-user"
	cmd.PersistentFlags().String(key, "", WrapString("User for clusters with security enabled (aerospike store)"))

	key = "aerospike-password"
	cmd.PersistentFlags().String(key, "", WrapString("Password for clusters with security enabled (aerospike store)"))
}

// GetClientConfig reads the rpc client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		TimeoutSecond: viper.GetInt("timeout"),
		QueryPageSize: viper.GetUint32("query-page-size"),
		Transport: common.ClientTransportConfig{
			RetryCount:             viper.GetInt("transport-retries"),
			Endpoints:              strings.Split(viper.GetString("transport-endpoints"), ","),
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			},
		},
	}
}

// GetAerospikeConfig reads the aerospike connection settings from viper
func GetAerospikeConfig() astore.Config {
	return astore.Config{
		Host:     viper.GetString("aerospike-host"),
		Port:     viper.GetInt("aerospike-port"),
		User:     viper.GetString("aerospike-user"),
		Password: viper.GetString("aerospike-password"),
		Timeout:  time.Duration(viper.GetInt("timeout")) * time.Second,
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetTransport creates the client transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetShardID retrieves the configured shard ID
func GetShardID() uint64 {
	return uint64(viper.GetInt("shard"))
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// OpenStore opens the store backend selected by the store flag
func OpenStore() (store.IStore, error) {
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return nil, err
	}

	switch backend := viper.GetString("store"); backend {
	case "rpc":
		s, err := GetSerializer()
		if err != nil {
			return nil, err
		}
		t, err := GetTransport()
		if err != nil {
			return nil, err
		}
		return client.NewRPCStore(GetShardID(), *GetClientConfig(), t, s)
	case "aerospike":
		return astore.NewAerospikeStore(GetAerospikeConfig())
	case "local":
		return lstore.NewLocalStore(func() db.RecordDB { return maple.NewMapleDB(nil) }), nil
	default:
		return nil, fmt.Errorf("invalid store %s (expected rpc, aerospike or local)", backend)
	}
}

// Policy returns a request policy with the configured timeout
func Policy() *store.Policy {
	p := store.NewPolicy()
	p.Timeout = time.Duration(viper.GetInt("timeout")) * time.Second
	return p
}
