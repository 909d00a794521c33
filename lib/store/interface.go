package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kedaikopi/kopi/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// TableFactory is a function type that creates the table used by the store.
// This is used to abstract the creation of the table from the store implementation.
type TableFactory func() (db.Table, error)

// IStore is the generic interface for interacting with a key–value store.
// Keys are strings, values are JSON documents. A missing key is never an error,
// read operations report it through their found return values instead.
// All errors returned by an IStore are of type *Error.
type IStore interface {
	// Set inserts or updates a key–value pair.
	// The value must be valid JSON.
	Set(ctx context.Context, key string, value json.RawMessage) (err error)
	// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
	// A stored JSON null is returned as found with the value "null".
	Get(ctx context.Context, key string) (value json.RawMessage, found bool, err error)
	// Delete deletes a key–value pair. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) (err error)
	// MSet stores keys[i] = values[i] for every i in one backend request.
	// Both slices must have the same length.
	MSet(ctx context.Context, keys []string, values []json.RawMessage) (err error)
	// MGet returns values and found flags aligned with keys. Duplicate keys are allowed.
	MGet(ctx context.Context, keys []string) (values []json.RawMessage, found []bool, err error)
	// MDelete deletes all keys in one backend request.
	MDelete(ctx context.Context, keys []string) (err error)
	// GetByPrefix returns the values of all keys starting with prefix, in unspecified order.
	// The empty prefix matches every key. The result always reflects the backend.
	GetByPrefix(ctx context.Context, prefix string) (values []json.RawMessage, err error)
	// GetDBInfo returns metadata about the table underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo(ctx context.Context) (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and optionally the error that caused it.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The underlying error, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("KVStoreError (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("KVStoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the underlying error so errors.Is and errors.As see through an *Error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Detail returns the message and the cause without the code prefix.
func (e *Error) Detail() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// RetCode returns the numeric return code, used to carry the code over the wire.
func (e *Error) RetCode() uint64 {
	return uint64(e.Code)
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Msg == "" && t.Err == nil && t.Code == e.Code
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new KVStoreError with the given code and message that wraps err.
func WrapError(code RetCode, msg string, err error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  err,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying table.
	RetCInvalidOperation                    // 3: Invalid operation (bad arguments, invalid JSON).
	RetCBackendError                        // 4: The table backend reported an error.
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
	case RetCBackendError:
		return "BackendError"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is checks against a return code, e.g.
// errors.Is(err, store.ErrInvalidOperation).
var (
	ErrInternal             = &Error{Code: RetCInternalError}
	ErrUnsupportedOperation = &Error{Code: RetCUnsupportedOperation}
	ErrInvalidOperation     = &Error{Code: RetCInvalidOperation}
	ErrBackend              = &Error{Code: RetCBackendError}
)
