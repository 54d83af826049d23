// Package jsonrpc implements a JSON-RPC 2.0 transport for the RPC system on top of
// gorilla/rpc. Every framed request becomes a call of the "Provider.Call" method
// served at /rpc, the payload travels base64 encoded inside the json params.
//
// It trades throughput for interoperability: any JSON-RPC client can talk to a
// provider without implementing the binary frame format of the tcp transport.
package jsonrpc
