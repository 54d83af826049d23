package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// The operation is carried by MsgType, its arguments by the encoded Envelope.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type" msgpack:"msg_type" cbor:"msg_type"`

	// Request only fields
	Envelope string `json:"envelope,omitempty" msgpack:"envelope,omitempty" cbor:"envelope,omitempty"` // Encoded Envelope (key, size, buffer)

	// Response only fields
	Status Status `json:"status,omitempty" msgpack:"status,omitempty" cbor:"status,omitempty"` // Outcome of the operation
	Size   uint64 `json:"size,omitempty" msgpack:"size,omitempty" cbor:"size,omitempty"`       // Number of bytes the provider pushed or pulled
	Err    string `json:"err,omitempty" msgpack:"err,omitempty" cbor:"err,omitempty"`          // Empty if no error, otherwise contains the error message
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewRequest creates a request of type t carrying env
func NewRequest(t MessageType, env Envelope) *Message {
	return &Message{
		MsgType:  t,
		Envelope: env.Encode(),
	}
}

// NewSetRequest creates a new set request. The provider pulls size bytes from buffer.
func NewSetRequest(key string, size uint64, buffer string) *Message {
	return NewRequest(MsgTSet, Envelope{Key: key, Size: size, Buffer: buffer})
}

// NewGetRequest creates a new get request. size is the capacity of buffer.
func NewGetRequest(key string, size uint64, buffer string) *Message {
	return NewRequest(MsgTGet, Envelope{Key: key, Size: size, Buffer: buffer})
}

// NewGetSizeRequest creates a new get_size request. buffer must hold 8 bytes.
func NewGetSizeRequest(key string, buffer string) *Message {
	return NewRequest(MsgTGetSize, Envelope{Key: key, Size: SizeFieldLen, Buffer: buffer})
}

// NewExistsRequest creates a new exists request. buffer must hold 1 byte.
func NewExistsRequest(key string, buffer string) *Message {
	return NewRequest(MsgTExists, Envelope{Key: key, Size: ExistsFieldLen, Buffer: buffer})
}

// NewResponse creates a response for a request of type t
func NewResponse(t MessageType, status Status, size uint64, err error) *Message {
	msg := &Message{
		MsgType: t,
		Status:  status,
		Size:    size,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(status Status, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Status:  status,
		Err:     err,
	}
}

// Lengths of the fixed size payloads pushed by get_size and exists
const (
	SizeFieldLen   = 8
	ExistsFieldLen = 1
)

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Provider operations

	MsgTSet     // Store the bytes of a remote buffer under a key
	MsgTGet     // Push the bytes of a key to a remote buffer
	MsgTGetSize // Push the length of a value to a remote buffer
	MsgTExists  // Push whether a key exists to a remote buffer
)

var msgTypeNames = map[MessageType]string{
	MsgTSuccess: "success",
	MsgTError:   "error",
	MsgTSet:     "set",
	MsgTGet:     "get",
	MsgTGetSize: "get_size",
	MsgTExists:  "exists",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if s, ok := msgTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// ParseMessageType is the inverse of MessageType.String
func ParseMessageType(s string) (MessageType, error) {
	for t, name := range msgTypeNames {
		if name == s {
			return t, nil
		}
	}
	return MsgTUnknown, fmt.Errorf("unknown message type: %s", s)
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMessageType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// --------------------------------------------------------------------------
// Status Definition
// --------------------------------------------------------------------------

// Status is the outcome of a provider operation
type Status uint8

const (
	StatusOk                Status = iota // Operation completed
	StatusKeyNotFound                     // The key does not exist (get, get_size)
	StatusTransferFailed                  // The bulk transfer did not complete
	StatusMalformedEnvelope               // The request envelope could not be decoded
	StatusError                           // Any other failure (unknown provider, unknown operation, ...)
)

var statusNames = map[Status]string{
	StatusOk:                "ok",
	StatusKeyNotFound:       "key_not_found",
	StatusTransferFailed:    "transfer_failed",
	StatusMalformedEnvelope: "malformed_envelope",
	StatusError:             "error",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON encodes the status as its name
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status name
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for st, n := range statusNames {
		if n == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown status: %s", name)
}
