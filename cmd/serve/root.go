package serve

import (
	"fmt"
	cmdUtil "github.com/ValentinKolb/rKV/cmd/util"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/serializer"
	"github.com/ValentinKolb/rKV/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
)

var (
	serveCmdConfig = common.DefaultServerConfig()
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start an rKV provider server",
		Long:    `Start an rKV provider server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is RKV_<flag> (e.g. RKV_BULK_ENDPOINT=0.0.0.0:9001)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	def := common.DefaultServerConfig()

	key := "providers"
	ServeCmd.PersistentFlags().String(key, strconv.FormatUint(common.DefaultProviderID, 10), cmdUtil.WrapString("Comma-separated list of provider ids to host. Every provider owns its own key-value map"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, def.Endpoint, cmdUtil.WrapString("The RPC address (<protocol>://<host>:<port>, protocol is one of tcp, unix, http, jsonrpc)"))

	key = "bulk-endpoint"
	ServeCmd.PersistentFlags().String(key, def.BulkEndpoint, cmdUtil.WrapString("The address of the bulk transfer engine. Clients must be able to reach it"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The address serving prometheus metrics at /metrics (empty = disabled)"))

	key = "serializer"
	ServeCmd.PersistentFlags().String(key, def.Serializer, cmdUtil.WrapString("Serializer of the RPC messages (binary, json, gob, msgpack, cbor)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, def.TimeoutSecond, cmdUtil.WrapString("Timeout in seconds for writing responses and for each bulk transfer"))

	key = "workers"
	ServeCmd.PersistentFlags().Int(key, def.WorkersPerConn, cmdUtil.WrapString("Maximum number of concurrently handled requests per connection"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, def.BufferSize/1024, cmdUtil.WrapString("Size of the pooled frame buffers (in KB)"))

	key = "db-shards"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Number of shards of each key-value map (0 = number of CPUs)"))

	key = "write-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Socket write buffer (in KB, 0 = os default, ignored for http)"))

	key = "read-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Socket read buffer (in KB, 0 = os default, ignored for http)"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, def.Socket.TCPNoDelay, cmdUtil.WrapString("Whether to enable TCP_NODELAY (tcp only)"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, def.Socket.TCPKeepAliveSec, cmdUtil.WrapString("Keepalive interval in seconds (tcp only, 0 = disabled)"))

	key = "tcp-linger"
	ServeCmd.PersistentFlags().Int(key, def.Socket.TCPLingerSec, cmdUtil.WrapString("Linger time in seconds (tcp only, negative = os default)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, def.LogLevel, cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse provider ids
	serveCmdConfig.ProviderIDs = []uint64{}
	for _, raw := range strings.Split(viper.GetString("providers"), ",") {
		if raw = strings.TrimSpace(raw); raw == "" {
			continue
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid provider id %s: %v", raw, err)
		}
		serveCmdConfig.ProviderIDs = append(serveCmdConfig.ProviderIDs, id)
	}
	if len(serveCmdConfig.ProviderIDs) == 0 {
		return fmt.Errorf("at least one provider id is required")
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	if _, _, err := common.ParseAddress(serveCmdConfig.Endpoint); err != nil {
		return err
	}

	serveCmdConfig.BulkEndpoint = viper.GetString("bulk-endpoint")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.Serializer = viper.GetString("serializer")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.WorkersPerConn = viper.GetInt("workers")
	serveCmdConfig.BufferSize = viper.GetInt("buffer-size") * 1024
	serveCmdConfig.DBShards = viper.GetInt("db-shards")
	serveCmdConfig.Socket = common.SocketConfig{
		WriteBufferSize: viper.GetInt("write-buffer") * 1024,
		ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
		TCPNoDelay:      viper.GetBool("tcp-nodelay"),
		TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
		TCPLingerSec:    viper.GetInt("tcp-linger"),
	}
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the provider server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := serializer.New(serveCmdConfig.Serializer)
	if err != nil {
		return err
	}

	protocol, _, err := common.ParseAddress(serveCmdConfig.Endpoint)
	if err != nil {
		return err
	}
	t, err := server.NewServerTransport(protocol)
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(serveCmdConfig, t, s, nil)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	go func() {
		<-sig
		server.Logger.Infof("shutting down")
		if err := serv.Close(); err != nil {
			server.Logger.Errorf("error during shutdown: %v", err)
		}
	}()

	fmt.Printf("serving providers %v on %s\n", serveCmdConfig.ProviderIDs, serveCmdConfig.Endpoint)
	if err := serv.Serve(); err != nil {
		_ = serv.Close()
		return err
	}
	return nil
}
