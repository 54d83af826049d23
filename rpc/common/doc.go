// Package common provides the protocol types, configuration and logging
// shared by the rpc client, server and transports.
//
// Key Components:
//
//   - Message: the single structure used for requests and responses. A
//     request carries its MessageType (set, get, get_size, exists) and an
//     encoded Envelope, a response carries a Status, the number of bytes the
//     provider moved and an optional error text.
//
//   - Envelope: key, size and buffer token of a request, encoded as a JSON
//     document. DecodeEnvelope rejects documents with missing fields or a
//     negative size with store.ErrMalformedEnvelope.
//
//   - Status: Ok, KeyNotFound, TransferFailed, MalformedEnvelope and Error.
//     A failed bulk transfer is always reported as TransferFailed, never as Ok.
//
//   - ServerConfig / ClientConfig: settings of providers and client transports,
//     each with a String() renderer used by the CLI.
//
//   - ParseAddress: splits "<protocol>://<endpoint>" addresses.
//
//   - Logger: a zap backed implementation of dragonboat's logger.ILogger.
//     InitLoggers installs it and sets the level of all package loggers.
package common
