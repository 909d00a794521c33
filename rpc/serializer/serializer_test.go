package serializer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/kedaikopi/kopi/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Set request
		*common.NewSetRequest("test-key", []byte(`{"name":"latte"}`)),

		// Get response
		*common.NewGetResponse([]byte(`"espresso"`), true, nil),

		// MSet request
		*common.NewMSetRequest([]string{"a", "b", "c"}, [][]byte{[]byte(`1`), []byte(`2`), []byte(`[3]`)}),

		// MGet response with a missing key
		*common.NewMGetResponse([][]byte{[]byte(`1`), nil, []byte(`3`)}, []bool{true, false, true}, nil),

		// MDelete request
		*common.NewMDeleteRequest([]string{"x", "user:42:cart:coffee1"}),

		// GetByPrefix request and response
		*common.NewGetByPrefixRequest("user:42:"),
		*common.NewGetByPrefixResponse([][]byte{[]byte(`{}`), []byte(`[]`)}, nil),

		// Info response
		*common.NewInfoResponse([]byte(`{"row_count":3}`), nil),

		// Error response
		*common.NewErrorResponse("test error message"),

		// Message with all fields filled
		{
			MsgType: common.MsgTKVMGet,
			Key:     "k",
			Keys:    []string{"k1", "k2"},
			Value:   []byte(`true`),
			Values:  [][]byte{[]byte(`null`), []byte(`"v"`)},
			Ok:      true,
			Found:   []bool{false, true},
			Err:     "backend failed",
			Code:    4,
			Meta:    []byte("meta"),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range testMessages() {
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Fatalf("Failed to serialize message %d: %v", i, err)
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Fatalf("Failed to deserialize message %d: %v", i, err)
				}

				// gob does not keep nil and empty slices apart
				if diff := cmp.Diff(msg, result, cmpopts.EquateEmpty()); diff != "" {
					t.Errorf("Message %d doesn't match after round trip (-want +got):\n%s", i, diff)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// MsgTUnknown has no json name, so it is left out
			for msgType := common.MsgTSuccess; msgType <= common.MsgTKVInfo; msgType++ {
				msg := common.Message{MsgType: msgType}

				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType, err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s", msgType, result.MsgType)
				}
			}
		})
	}
}

// TestDeserializeResetsMessage checks that fields of a reused message do not leak
func TestDeserializeResetsMessage(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			data, err := serializer.Serialize(*common.NewDeleteResponse(nil))
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			result := common.Message{Key: "stale", Ok: true, Err: "stale", Values: [][]byte{[]byte("1")}}
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if result.Key != "" || result.Ok || result.Err != "" || result.Values != nil {
				t.Errorf("Expected a clean message, got %+v", result)
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Empty value slice but not nil",
			msg: common.Message{
				MsgType: common.MsgTKVSet,
				Key:     "test",
				Value:   []byte{},
			},
		},
		{
			name: "Nil and empty elements in values",
			msg: common.Message{
				MsgType: common.MsgTKVMGet,
				Values:  [][]byte{nil, {}, []byte(`1`)},
				Found:   []bool{false, true, true},
			},
		},
		{
			name: "Empty key list",
			msg: common.Message{
				MsgType: common.MsgTKVMDelete,
				Keys:    []string{},
			},
		},
		{
			name: "Empty string inside key list",
			msg: common.Message{
				MsgType: common.MsgTKVMGet,
				Keys:    []string{"", "a"},
			},
		},
		{
			name: "Large return code",
			msg: common.Message{
				MsgType: common.MsgTError,
				Err:     "boom",
				Code:    ^uint64(0),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			// the binary format keeps nil and empty apart, so compare strictly
			if diff := cmp.Diff(tc.msg, result); diff != "" {
				t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestBinarySerializerCorruptInput checks that truncated or padded input is rejected
func TestBinarySerializerCorruptInput(t *testing.T) {
	serializer := NewBinarySerializer()

	data, err := serializer.Serialize(*common.NewMSetRequest([]string{"a", "b"}, [][]byte{[]byte(`1`), []byte(`2`)}))
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	var msg common.Message
	for i := 0; i < len(data); i++ {
		if err := serializer.Deserialize(data[:i], &msg); err == nil {
			t.Errorf("Expected error for input truncated to %d bytes", i)
		}
	}

	if err := serializer.Deserialize(append(append([]byte(nil), data...), 0), &msg); err == nil {
		t.Errorf("Expected error for trailing bytes")
	}

	// element count larger than the remaining input
	huge := []byte{byte(common.MsgTKVMDelete), 0, byte(hasKeys), 0xFF, 0xFF, 0xFF, 0x00}
	if err := serializer.Deserialize(huge, &msg); err == nil {
		t.Errorf("Expected error for oversized element count")
	}
}

// TestBinarySerializerSize checks that sizeBytes matches the produced output
func TestBinarySerializerSize(t *testing.T) {
	serializer := binarySerializerImpl{}
	for i, msg := range testMessages() {
		data, err := serializer.Serialize(msg)
		if err != nil {
			t.Fatalf("Failed to serialize message %d: %v", i, err)
		}
		// a nil element in Values is written as a bare length
		if len(data) != serializer.sizeBytes(msg) {
			t.Errorf("Message %d: sizeBytes=%d, serialized=%d", i, serializer.sizeBytes(msg), len(data))
		}
	}
}
