package serializer

import (
	"github.com/ValentinKolb/rKV/rpc/common"
	"reflect"
	"testing"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":    NewJSONSerializer,
	"GOB":     NewGOBSerializer,
	"Binary":  NewBinarySerializer,
	"Msgpack": NewMsgpackSerializer,
	"CBOR":    NewCBORSerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Set request
		*common.NewSetRequest("test-key", 12, "buffer-token"),

		// Get response
		*common.NewResponse(common.MsgTGet, common.StatusOk, 12, nil),

		// Missing key
		{
			MsgType: common.MsgTGetSize,
			Status:  common.StatusKeyNotFound,
		},

		// Error response
		*common.NewErrorResponse(common.StatusError, "test error message"),

		// Message with all fields filled
		{
			MsgType:  common.MsgTGet,
			Envelope: common.Envelope{Key: "k", Size: 1 << 40, Buffer: "b"}.Encode(),
			Status:   common.StatusTransferFailed,
			Size:     1 << 40,
			Err:      "transfer failed",
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
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

			// Test each message type (don't test for MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTExists; msgType++ {
				msg := common.Message{MsgType: msgType}

				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestDeserializeResetsFields tests that reusing a Message does not leak fields of the previous one
func TestDeserializeResetsFields(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			data, err := serializer.Serialize(common.Message{MsgType: common.MsgTSuccess})
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			result := common.Message{
				MsgType: common.MsgTGet,
				Status:  common.StatusTransferFailed,
				Size:    7,
				Err:     "stale",
			}
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if !reflect.DeepEqual(result, common.Message{MsgType: common.MsgTSuccess}) {
				t.Errorf("Fields of the previous message survived: %+v", result)
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	// empty message is two bytes
	data, err := serializer.Serialize(common.Message{})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}
	if len(data) != 2 {
		t.Errorf("Expected 2 bytes for an empty message, got %d", len(data))
	}

	// only present fields are encoded
	msg := common.Message{MsgType: common.MsgTGet, Size: 12}
	data, err = serializer.Serialize(msg)
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}
	if len(data) != 2+8 {
		t.Errorf("Expected 10 bytes, got %d", len(data))
	}
	if data[1] != hasSize {
		t.Errorf("Expected only the size flag to be set, got %08b", data[1])
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1}, // Only message type, no flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for envelope",
			data:        []byte{3, hasEnvelope, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Missing status",
			data:        []byte{3, hasStatus},
			expectError: true,
		},
		{
			name:        "Short size",
			data:        []byte{3, hasSize, 0, 0, 0, 1},
			expectError: true,
		},
		{
			name:        "Invalid length for error",
			data:        []byte{2, hasErr, 0, 0, 0, 10}, // Claims error length 10 but no bytes provided
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

// TestNew tests the serializer lookup by name
func TestNew(t *testing.T) {
	for _, name := range []string{"", NameBinary, NameJSON, NameGOB, NameMsgpack, "CBOR"} {
		if _, err := New(name); err != nil {
			t.Errorf("Unexpected error for %q: %v", name, err)
		}
	}
	if _, err := New("xml"); err == nil {
		t.Errorf("Expected error for unknown serializer")
	}
}
