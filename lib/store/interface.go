package store

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/rKV/lib/db"
	"strings"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// TimestampSuffix is appended to a key to derive the key under which the
// creation time of the value is stored. Keys ending with it are reserved.
const TimestampSuffix = "_timestamp"

// TimestampKey returns the derived key holding the timestamp of key.
func TimestampKey(key string) string {
	return key + TimestampSuffix
}

// IsReservedKey reports whether key collides with the derived timestamp keys.
func IsReservedKey(key string) bool {
	return strings.HasSuffix(key, TimestampSuffix)
}

// IStore is the byte level capability every store backend implements.
// The generic caching and proxy layer (Store, lib/proxy) only depends on this interface.
// Read operations report absence with a false return value, never with an error.
type IStore interface {
	// SetBytes writes the timestamp entry for key and then the value.
	// Both writes must succeed for the operation to be successful.
	SetBytes(ctx context.Context, key string, data []byte) (err error)
	// GetBytes returns the value for key. The boolean indicates whether the key was found.
	GetBytes(ctx context.Context, key string) (data []byte, loaded bool, err error)
	// Exists returns whether a value for key exists. It never fails due to absence.
	Exists(ctx context.Context, key string) (loaded bool, err error)
	// GetTimestamp returns the time (seconds since epoch) the current value for key was written.
	// It fails with ErrKeyNotFound if key does not exist.
	GetTimestamp(ctx context.Context, key string) (ts float64, err error)
	// Evict releases key on the backend. Whether this frees remote storage depends on the backend.
	Evict(ctx context.Context, key string) (err error)
	// Kind returns the registered kind of the backend (e.g. "rdma", "local", "redis").
	Kind() string
	// Params returns the parameters needed to reconstruct the backend in another process.
	Params() Params
	// Close releases all resources held by the backend.
	Close() error
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("KVStoreError (code %s)", e.Code)
	}
	return fmt.Sprintf("KVStoreError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is a store error with the same return code.
// This makes errors.Is(err, ErrKeyNotFound) work for errors carrying a message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new KVStoreError with the given code and a formatted message.
func Errorf(code RetCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// Sentinel errors for use with errors.Is
var (
	ErrMalformedEnvelope = &Error{Code: RetCMalformedEnvelope}
	ErrKeyNotFound       = &Error{Code: RetCKeyNotFound}
	ErrTransferFailed    = &Error{Code: RetCTransferFailed}
	ErrTransferTooLarge  = &Error{Code: RetCTransferTooLarge}
	ErrTypeMismatch      = &Error{Code: RetCTypeMismatch}
	ErrTimeout           = &Error{Code: RetCTimeout}
	ErrReservedKey       = &Error{Code: RetCReservedKey}
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCMalformedEnvelope                   // 4: Request metadata could not be decoded.
	RetCKeyNotFound                         // 5: The key does not exist.
	RetCTransferFailed                      // 6: The bulk transfer did not complete.
	RetCTransferTooLarge                    // 7: The payload exceeds the maximum transfer size.
	RetCTypeMismatch                        // 8: The value has an unexpected type.
	RetCTimeout                             // 9: No response within the configured bound.
	RetCReservedKey                         // 10: The key uses the reserved timestamp suffix.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCMalformedEnvelope:
		return "MalformedEnvelope"
	case RetCKeyNotFound:
		return "KeyNotFound"
	case RetCTransferFailed:
		return "TransferFailed"
	case RetCTransferTooLarge:
		return "TransferTooLarge"
	case RetCTypeMismatch:
		return "TypeMismatch"
	case RetCTimeout:
		return "Timeout"
	case RetCReservedKey:
		return "ReservedKey"
	default:
		return "Unknown"
	}
}
