package serializer

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/ValentinKolb/ixKV/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

var testDigest = bytes.Repeat([]byte{0xab}, 20)

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Put request
		{
			MsgType:   common.MsgTPut,
			Namespace: "test",
			Set:       "users",
			Digest:    testDigest,
			UserKey:   []byte{3, 'u', '1'},
			Bins:      []byte("encoded-bins"),
			SendKey:   true,
			TimeoutMs: 1500,
		},

		// Get response
		{
			MsgType: common.MsgTSuccess,
			Records: []common.WireRecord{{
				Namespace:  "test",
				Set:        "users",
				Digest:     testDigest,
				Bins:       []byte("encoded-bins"),
				Generation: 3,
			}},
		},

		// Error response
		{
			MsgType: common.MsgTError,
			Code:    2,
			Err:     "test error message",
		},

		// Query open with filter
		{
			MsgType:    common.MsgTQueryOpen,
			Namespace:  "test",
			Set:        "users",
			BinNames:   []string{"name", "age"},
			IndexName:  "age_idx",
			BinName:    "age",
			HasFilter:  true,
			Begin:      -10,
			End:        42,
			MaxRecords: 128,
		},

		// Query page response with all fields filled
		{
			MsgType:    common.MsgTSuccess,
			Namespace:  "test",
			Set:        "users",
			Digest:     testDigest,
			UserKey:    []byte{1, 0, 0, 0, 0, 0, 0, 0, 7},
			Bins:       []byte("bins"),
			BinNames:   []string{"a"},
			SendKey:    true,
			IndexName:  "idx",
			BinName:    "bin",
			IndexType:  "NUMERIC",
			HasFilter:  true,
			Begin:      1,
			End:        2,
			CursorID:   "0b5ce0b4-4b1a-4c5f-9f0b-3c1f3b7f8f11",
			MaxRecords: 10,
			Records: []common.WireRecord{
				{Namespace: "test", Set: "users", Digest: testDigest, UserKey: []byte{3, 'k'}, Bins: []byte("a"), Generation: 1},
				{Namespace: "test", Set: "users", Digest: testDigest, Bins: []byte("b"), Generation: 2},
			},
			TimeoutMs: 100,
			Ok:        true,
			Code:      7,
			Err:       "index not readable",
			Meta:      []byte(`{"records":1}`),
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
			for msgType := common.MsgTSuccess; msgType <= common.MsgTGetDBInfo; msgType++ {
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
			name: "Empty bins slice but not nil",
			msg: common.Message{
				MsgType: common.MsgTPut,
				Digest:  testDigest,
				Bins:    []byte{},
			},
		},
		{
			name: "Empty meta slice but not nil",
			msg: common.Message{
				MsgType: common.MsgTGetDBInfo,
				Meta:    []byte{},
			},
		},
		{
			name: "Empty record list but not nil",
			msg: common.Message{
				MsgType: common.MsgTSuccess,
				Records: []common.WireRecord{},
				Ok:      true,
			},
		},
		{
			name: "Negative range bounds",
			msg: common.Message{
				MsgType:   common.MsgTQueryOpen,
				HasFilter: true,
				Begin:     -1 << 62,
				End:       -1,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Serialize
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			// Deserialize
			var result common.Message
			err = serializer.Deserialize(data, &result)
			if err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			// The binary format keeps the difference between nil and empty slices
			if !reflect.DeepEqual(tc.msg, result) {
				t.Errorf("Message doesn't match after round trip:\nOriginal: %+v\nResult: %+v", tc.msg, result)
			}
		})
	}
}

// TestBinarySize checks that the size pre-calculation matches the output
func TestBinarySize(t *testing.T) {
	impl := binarySerializerImpl{}
	for i, msg := range testMessages() {
		data, err := impl.Serialize(msg)
		if err != nil {
			t.Fatalf("Failed to serialize message %d: %v", i, err)
		}
		if got := impl.sizeBytes(msg); got != len(data) {
			t.Errorf("Message %d: sizeBytes = %d, serialized length = %d", i, got, len(data))
		}
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
			data:        []byte{1, 0, 0}, // Message type and half of the flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for namespace",
			data:        []byte{1, 0, 0, 0, 1, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for bins",
			data:        []byte{1, 0, 0, 0, 16, 0, 0, 0, 10}, // Claims bins length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Missing length prefix",
			data:        []byte{1, 0, 0, 0, 2, 0, 0}, // Set flag with a truncated length
			expectError: true,
		},
		{
			name:        "Record count larger than data",
			data:        []byte{1, 0, 0, 0x80, 0, 0xff, 0xff, 0xff, 0xff}, // Records flag with 2^32-1 records
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
