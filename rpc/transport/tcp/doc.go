// Package tcp implements the TCP socket transport of the RPC system. It provides
// tcp specific connectors for the base package, which does the framing, request
// correlation, pooling and reconnect handling.
//
// Socket tuning (no delay, buffer sizes, keep alive, linger) is applied to both
// dialed and accepted connections from common.SocketConfig.
package tcp
