package util

import (
	"fmt"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/ValentinKolb/rKV/rpc/client"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (RKV_<FLAG>)
	EnvPrefix = "rkv"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

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

// InitConfig loads .env files and makes viper read RKV_* environment variables
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// InitLogging sets the level of all package loggers from the log-level flag
func InitLogging() error {
	return common.InitLoggers(viper.GetString("log-level"))
}

// --------------------------------------------------------------------------
// Client flags
// --------------------------------------------------------------------------

// SetupClientFlags adds the flags needed to connect to a provider
func SetupClientFlags(cmd *cobra.Command) {
	key := "addr"
	cmd.PersistentFlags().String(key, "tcp://localhost:9000", WrapString("Address of the provider (<protocol>://<host>:<port>, protocol is one of tcp, unix, http, jsonrpc)"))

	key = "provider"
	cmd.PersistentFlags().Uint64(key, common.DefaultProviderID, WrapString("ID of the provider to connect to"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 5, WrapString("The timeout in seconds of each request"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 1, WrapString("How many times to try a request"))

	key = "connections"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections to the provider (tcp and unix only)"))

	key = "max-transfer"
	cmd.PersistentFlags().Int64(key, client.DefaultMaxTransfer, WrapString("Largest value in bytes the client transfers"))

	key = "bulk-endpoint"
	cmd.PersistentFlags().String(key, client.DefaultBulkEndpoint, WrapString("Listen address of the client bulk engine. The provider must be able to reach it"))

	key = "serializer"
	cmd.PersistentFlags().String(key, "binary", WrapString("Serializer of the RPC messages (binary, json, gob, msgpack, cbor). Must match the provider"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("Level at which logs will be output (debug, info, warn, error)"))
}

// ClientParams converts the client flags into the parameters of an rdma store
func ClientParams() store.Params {
	return store.Params{
		client.ParamAddr:         viper.GetString("addr"),
		client.ParamProvider:     fmt.Sprint(viper.GetUint64("provider")),
		client.ParamTimeout:      fmt.Sprint(viper.GetInt("timeout")),
		client.ParamRetries:      fmt.Sprint(viper.GetInt("retries")),
		client.ParamConnections:  fmt.Sprint(viper.GetInt("connections")),
		client.ParamMaxTransfer:  fmt.Sprint(viper.GetInt64("max-transfer")),
		client.ParamBulkEndpoint: viper.GetString("bulk-endpoint"),
		client.ParamSerializer:   viper.GetString("serializer"),
	}
}

// OpenClient connects an rdma store using the client flags
func OpenClient() (*client.RPCStore, error) {
	return client.NewRPCStoreFromParams(ClientParams())
}
