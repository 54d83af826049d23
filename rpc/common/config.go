package common

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultProviderID is the id of the provider a server hosts if none is configured
const DefaultProviderID uint64 = 42

// --------------------------------------------------------------------------
// Socket configuration (shared by client and server)
// --------------------------------------------------------------------------

// SocketConfig holds the socket tuning applied to tcp (and partly unix) connections
type SocketConfig struct {
	WriteBufferSize int  // socket write buffer in bytes (0 = os default)
	ReadBufferSize  int  // socket read buffer in bytes (0 = os default)
	TCPNoDelay      bool // disable Nagle's algorithm
	TCPKeepAliveSec int  // keep alive period (0 = disabled)
	TCPLingerSec    int  // linger on close in seconds (<= 0 = os default)
}

// DefaultSocketConfig returns the default socket settings
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		TCPNoDelay:      true,
		TCPKeepAliveSec: 30,
		TCPLingerSec:    -1,
	}
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of a provider server.
type ServerConfig struct {
	// ids of the providers hosted by this server, each with its own store map
	ProviderIDs []uint64

	// RPC endpoint "<protocol>://<host>:<port>"
	Endpoint string
	// endpoint of the bulk transfer engine ("host:port")
	BulkEndpoint string
	// endpoint of the prometheus metrics handler (empty = disabled)
	MetricsEndpoint string

	// serializer used for all messages (binary, json, gob, msgpack, cbor)
	Serializer string

	// timeout for reading and writing frames and for each bulk transfer
	TimeoutSecond int64
	// maximum number of concurrently handled requests per connection
	WorkersPerConn int
	// size of the pooled frame buffers
	BufferSize int
	// number of shards of each store map (0 = number of CPUs)
	DBShards int

	Socket SocketConfig

	// Logging configuration
	LogLevel string
}

// DefaultServerConfig returns a config serving provider 42 on tcp://0.0.0.0:9000
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ProviderIDs:    []uint64{DefaultProviderID},
		Endpoint:       "tcp://0.0.0.0:9000",
		BulkEndpoint:   "0.0.0.0:9001",
		Serializer:     "binary",
		TimeoutSecond:  5,
		WorkersPerConn: 100,
		BufferSize:     512 * 1024,
		Socket:         DefaultSocketConfig(),
		LogLevel:       "info",
	}
}

// ListenEndpoint returns the endpoint part of the RPC address
func (c *ServerConfig) ListenEndpoint() string {
	if _, endpoint, err := ParseAddress(c.Endpoint); err == nil {
		return endpoint
	}
	return c.Endpoint
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Serializer", c.Serializer)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(c.WorkersPerConn))
	addField("Buffer Size", fmt.Sprintf("%d bytes", c.BufferSize))

	// Bulk transfers
	addSection("Bulk Transfer")
	addField("Endpoint", c.BulkEndpoint)

	// Metrics
	addSection("Metrics")
	if c.MetricsEndpoint == "" {
		addField("Endpoint", "disabled")
	} else {
		addField("Endpoint", c.MetricsEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Providers
	addSection("Providers")
	for _, id := range c.ProviderIDs {
		addField(strconv.FormatUint(id, 10), fmt.Sprintf("store map (%s)", shardsString(c.DBShards)))
	}

	return sb.String()
}

func shardsString(n int) string {
	if n <= 0 {
		return "auto shards"
	}
	return fmt.Sprintf("%d shards", n)
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the configuration of a client transport
type ClientConfig struct {
	// endpoints without protocol ("host:port" or a socket path)
	Endpoints []string
	// timeout of a request if the caller's context has no deadline (0 = none)
	TimeoutSecond int
	// number of attempts per request (minimum 1)
	RetryCount int
	// number of connections opened to every endpoint
	ConnectionsPerEndpoint int

	Socket SocketConfig
}

// DefaultClientConfig returns the default client settings for the given endpoints
func DefaultClientConfig(endpoints ...string) ClientConfig {
	return ClientConfig{
		Endpoints:              endpoints,
		TimeoutSecond:          5,
		RetryCount:             1,
		ConnectionsPerEndpoint: 1,
		Socket:                 DefaultSocketConfig(),
	}
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(max(1, c.ConnectionsPerEndpoint)))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
