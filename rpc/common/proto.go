package common

import (
	"encoding/json"
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key    string   `json:"key,omitempty"`    // Used for: Set, Get, Delete (request), GetByPrefix (prefix)
	Keys   []string `json:"keys,omitempty"`   // Used for: MSet, MGet, MDelete (request)
	Value  []byte   `json:"value,omitempty"`  // Used for: Set (request), Get (response)
	Values [][]byte `json:"values,omitempty"` // Used for: MSet (request), MGet and GetByPrefix (response)

	// Response only fields
	Ok    bool   `json:"ok,omitempty"`    // Used for: Get responses
	Found []bool `json:"found,omitempty"` // Used for: MGet responses, aligned with Values
	Err   string `json:"err,omitempty"`   // Empty if no error, otherwise contains the error message
	Code  uint64 `json:"code,omitempty"`  // Return code of the store error, if Err is set

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Info responses (JSON encoded db.DatabaseInfo)
}

// withErr sets the error fields of a response. Errors carrying a return code keep it.
func (m *Message) withErr(err error) *Message {
	if err == nil {
		return m
	}
	m.Err = err.Error()
	var coded interface{ RetCode() uint64 }
	if errors.As(err, &coded) {
		m.Code = coded.RetCode()
		// the receiver rebuilds the code prefix from Code
		if detailed, ok := err.(interface{ Detail() string }); ok {
			m.Err = detailed.Detail()
		}
	}
	return m
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewSetRequest creates a new Set request
func NewSetRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTKVSet,
		Key:     key,
		Value:   value,
	}
}

// NewSetResponse creates a new Set response
func NewSetResponse(err error) *Message {
	return (&Message{MsgType: MsgTKVSet}).withErr(err)
}

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVGet,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, ok bool, err error) *Message {
	return (&Message{
		MsgType: MsgTKVGet,
		Ok:      ok,
		Value:   value,
	}).withErr(err)
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVDelete,
		Key:     key,
	}
}

// NewDeleteResponse creates a new Delete response
func NewDeleteResponse(err error) *Message {
	return (&Message{MsgType: MsgTKVDelete}).withErr(err)
}

// NewMSetRequest creates a new MSet request
func NewMSetRequest(keys []string, values [][]byte) *Message {
	return &Message{
		MsgType: MsgTKVMSet,
		Keys:    keys,
		Values:  values,
	}
}

// NewMSetResponse creates a new MSet response
func NewMSetResponse(err error) *Message {
	return (&Message{MsgType: MsgTKVMSet}).withErr(err)
}

// NewMGetRequest creates a new MGet request
func NewMGetRequest(keys []string) *Message {
	return &Message{
		MsgType: MsgTKVMGet,
		Keys:    keys,
	}
}

// NewMGetResponse creates a new MGet response
func NewMGetResponse(values [][]byte, found []bool, err error) *Message {
	return (&Message{
		MsgType: MsgTKVMGet,
		Values:  values,
		Found:   found,
	}).withErr(err)
}

// NewMDeleteRequest creates a new MDelete request
func NewMDeleteRequest(keys []string) *Message {
	return &Message{
		MsgType: MsgTKVMDelete,
		Keys:    keys,
	}
}

// NewMDeleteResponse creates a new MDelete response
func NewMDeleteResponse(err error) *Message {
	return (&Message{MsgType: MsgTKVMDelete}).withErr(err)
}

// NewGetByPrefixRequest creates a new GetByPrefix request
func NewGetByPrefixRequest(prefix string) *Message {
	return &Message{
		MsgType: MsgTKVGetByPrefix,
		Key:     prefix,
	}
}

// NewGetByPrefixResponse creates a new GetByPrefix response
func NewGetByPrefixResponse(values [][]byte, err error) *Message {
	return (&Message{
		MsgType: MsgTKVGetByPrefix,
		Values:  values,
	}).withErr(err)
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{
		MsgType: MsgTKVInfo,
	}
}

// NewInfoResponse creates a new Info response, meta is the JSON encoded table info
func NewInfoResponse(meta []byte, err error) *Message {
	return (&Message{
		MsgType: MsgTKVInfo,
		Meta:    meta,
	}).withErr(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess:       "success",
	MsgTError:         "error",
	MsgTKVSet:         "set",
	MsgTKVGet:         "get",
	MsgTKVDelete:      "delete",
	MsgTKVMSet:        "mset",
	MsgTKVMGet:        "mget",
	MsgTKVMDelete:     "mdelete",
	MsgTKVGetByPrefix: "getByPrefix",
	MsgTKVInfo:        "info",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for msgType, name := range messageTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTKVSet         // Set a key-value pair
	MsgTKVGet         // Get a value by key
	MsgTKVDelete      // Delete a key-value pair
	MsgTKVMSet        // Set many key-value pairs
	MsgTKVMGet        // Get many values by key
	MsgTKVMDelete     // Delete many key-value pairs
	MsgTKVGetByPrefix // Get all values whose key starts with a prefix
	MsgTKVInfo        // Get information about the table
)
