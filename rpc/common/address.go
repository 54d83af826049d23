package common

import (
	"fmt"
	"strings"
)

// Protocols understood in server addresses
const (
	ProtocolTCP     = "tcp"
	ProtocolUnix    = "unix"
	ProtocolHTTP    = "http"
	ProtocolJSONRPC = "jsonrpc"
)

// ParseAddress splits "<protocol>://<endpoint>" into its parts. An address
// without a scheme is treated as tcp. For unix sockets the endpoint is the
// socket path ("unix:///tmp/rkv.sock").
func ParseAddress(addr string) (protocol, endpoint string, err error) {
	protocol, endpoint, found := strings.Cut(addr, "://")
	if !found {
		protocol, endpoint = ProtocolTCP, addr
	}
	protocol = strings.ToLower(protocol)

	switch protocol {
	case ProtocolTCP, ProtocolUnix, ProtocolHTTP, ProtocolJSONRPC:
	default:
		return "", "", fmt.Errorf("unsupported protocol %q in address %q", protocol, addr)
	}
	if endpoint == "" {
		return "", "", fmt.Errorf("address %q has no endpoint", addr)
	}
	return protocol, endpoint, nil
}
