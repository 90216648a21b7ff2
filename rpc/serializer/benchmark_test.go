package serializer

import (
	"testing"

	"github.com/ValentinKolb/ixKV/rpc/common"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]common.Message {
	page := make([]common.WireRecord, 0, 128)
	for i := 0; i < 128; i++ {
		page = append(page, common.WireRecord{
			Namespace:  "test",
			Set:        "users",
			Digest:     testDigest,
			Bins:       make([]byte, 64),
			Generation: uint32(i),
		})
	}

	return map[string]common.Message{
		"Empty": {
			MsgType: common.MsgTSuccess,
		},
		"GetRequest": {
			MsgType:   common.MsgTGet,
			Namespace: "test",
			Set:       "users",
			Digest:    testDigest,
		},
		"SmallPut": {
			MsgType:   common.MsgTPut,
			Namespace: "test",
			Set:       "users",
			Digest:    testDigest,
			Bins:      []byte("v"),
		},
		"LargePut": {
			MsgType:   common.MsgTPut,
			Namespace: "test",
			Set:       "users",
			Digest:    testDigest,
			UserKey:   []byte{3, 'k', 'e', 'y'},
			Bins:      make([]byte, 1024*16), // 16KB of data
			SendKey:   true,
		},
		"QueryOpen": {
			MsgType:    common.MsgTQueryOpen,
			Namespace:  "test",
			Set:        "users",
			BinNames:   []string{"name", "age"},
			BinName:    "age",
			HasFilter:  true,
			Begin:      18,
			End:        65,
			MaxRecords: 128,
		},
		"QueryPage": {
			MsgType:  common.MsgTSuccess,
			CursorID: "0b5ce0b4-4b1a-4c5f-9f0b-3c1f3b7f8f11",
			Records:  page,
		},
		"ErrorMessage": {
			MsgType: common.MsgTError,
			Code:    7,
			Err:     "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.",
		},
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various message types
func BenchmarkSerialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					_, err := serializer.Serialize(msg)
					if err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations with various message types
func BenchmarkDeserialize(b *testing.B) {
	messages := benchmarkMessages()
	serializedData := make(map[string]map[string][]byte)

	// Pre-serialize all messages with all serializers
	for name, factory := range testSerializers {
		serializer := factory()
		serializedData[name] = make(map[string][]byte)

		for msgName, msg := range messages {
			data, err := serializer.Serialize(msg)
			if err != nil {
				b.Fatalf("Failed to serialize %s with %s: %v", msgName, name, err)
			}
			serializedData[name][msgName] = data
		}
	}

	// Benchmark deserialization
	for name, factory := range testSerializers {
		for msgName := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				data := serializedData[name][msgName]
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var msg common.Message
					err := serializer.Deserialize(data, &msg)
					if err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkSize measures and reports the serialized size for each message type
func BenchmarkSize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		serializer := factory()

		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				data, err := serializer.Serialize(msg)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}

				// Report the size as a custom metric
				b.ReportMetric(float64(len(data)), "bytes")

				// Minimal loop to satisfy benchmark requirements
				for i := 0; i < b.N; i++ {
					_ = data
				}
			})
		}
	}
}
