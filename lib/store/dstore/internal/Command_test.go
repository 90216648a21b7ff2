package internal

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/value"
)

func testDigest() db.Digest {
	return db.ComputeDigest("demo", value.StringValue("skkey1"))
}

// TestSizeBytes tests the SizeBytes method
func TestSizeBytes(t *testing.T) {
	tests := []struct {
		name     string
		command  Command
		expected int
	}{
		{
			name: "Put with user key and bins",
			command: Command{
				Type:      CommandTPut,
				Namespace: "test",
				Set:       "demo",
				UserKey:   []byte("key"),
				Bins:      []byte("bins"),
			},
			// Type + Digest + 5 string prefixes + ns + set + UserKeyLen + UserKey + Bins
			expected: 1 + 20 + 5*2 + 4 + 4 + 4 + 3 + 4,
		},
		{
			name: "CreateIndex",
			command: Command{
				Type:      CommandTCreateIndex,
				Namespace: "test",
				Set:       "demo",
				IndexName: "skindex",
				BinName:   "skbin",
				IndexType: db.IndexTypeNumeric,
			},
			expected: 1 + 20 + 5*2 + 4 + 4 + 7 + 5 + 7 + 4,
		},
		{
			name:     "Empty command",
			command:  Command{Type: CommandTDelete},
			expected: 1 + 20 + 5*2 + 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := tt.command.SizeBytes()
			if size != tt.expected {
				t.Errorf("SizeBytes() = %v, want %v", size, tt.expected)
			}
		})
	}
}

// TestSerializeDeserialize tests both Serialize and Deserialize methods
func TestSerializeDeserialize(t *testing.T) {
	tests := []struct {
		name    string
		command Command
	}{
		{
			name: "Put with user key",
			command: Command{
				Type:      CommandTPut,
				Namespace: "test",
				Set:       "demo",
				Digest:    testDigest(),
				UserKey:   []byte{1, 2, 3},
				Bins:      []byte("encoded bins"),
			},
		},
		{
			name: "Put without user key",
			command: Command{
				Type:      CommandTPut,
				Namespace: "test",
				Set:       "demo",
				Digest:    testDigest(),
				Bins:      []byte{0, 1, 2, 254, 255},
			},
		},
		{
			name: "Delete",
			command: Command{
				Type:      CommandTDelete,
				Namespace: "test",
				Digest:    testDigest(),
			},
		},
		{
			name: "CreateIndex",
			command: Command{
				Type:      CommandTCreateIndex,
				Namespace: "test",
				Set:       "demo",
				IndexName: "skindex",
				BinName:   "skbin",
				IndexType: db.IndexTypeNumeric,
			},
		},
		{
			name: "DropIndex with Unicode names",
			command: Command{
				Type:      CommandTDropIndex,
				Namespace: "名前空間",
				Set:       "集合",
				IndexName: "索引",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.command.Serialize()

			var newCommand Command
			if err := newCommand.Deserialize(data); err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}

			if newCommand.Type != tt.command.Type {
				t.Errorf("Type mismatch: got %v, want %v", newCommand.Type, tt.command.Type)
			}
			if newCommand.Digest != tt.command.Digest {
				t.Errorf("Digest mismatch: got %v, want %v", newCommand.Digest, tt.command.Digest)
			}
			if newCommand.Namespace != tt.command.Namespace || newCommand.Set != tt.command.Set {
				t.Errorf("Namespace/Set mismatch: got %q/%q, want %q/%q",
					newCommand.Namespace, newCommand.Set, tt.command.Namespace, tt.command.Set)
			}
			if newCommand.IndexName != tt.command.IndexName || newCommand.BinName != tt.command.BinName {
				t.Errorf("Index mismatch: got %q/%q, want %q/%q",
					newCommand.IndexName, newCommand.BinName, tt.command.IndexName, tt.command.BinName)
			}
			if newCommand.IndexType != tt.command.IndexType {
				t.Errorf("IndexType mismatch: got %q, want %q", newCommand.IndexType, tt.command.IndexType)
			}
			if !bytes.Equal(newCommand.UserKey, tt.command.UserKey) {
				t.Errorf("UserKey mismatch: got %v, want %v", newCommand.UserKey, tt.command.UserKey)
			}
			if !bytes.Equal(newCommand.Bins, tt.command.Bins) {
				t.Errorf("Bins mismatch: got %v, want %v", newCommand.Bins, tt.command.Bins)
			}

			if tt.command.SizeBytes() != len(data) {
				t.Errorf("SizeBytes() = %d, but serialized data length = %d",
					tt.command.SizeBytes(), len(data))
			}
		})
	}
}

// TestDeserializeErrors tests error cases in Deserialize
func TestDeserializeErrors(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expectedErr string
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectedErr: "data too short for command",
		},
		{
			name:        "Data too short (less than header)",
			data:        []byte{1, 2, 3, 4, 5},
			expectedErr: "data too short for command",
		},
		{
			name: "Invalid string length",
			data: func() []byte {
				data := make([]byte, 1+20+2+4)
				data[0] = byte(CommandTPut)
				binary.BigEndian.PutUint16(data[21:23], 1000)
				return data
			}(),
			expectedErr: "data too short for string field 0 of length 1000",
		},
		{
			name: "Invalid user key length",
			data: func() []byte {
				data := make([]byte, 1+20+5*2+4)
				data[0] = byte(CommandTPut)
				binary.BigEndian.PutUint32(data[31:35], 1000)
				return data
			}(),
			expectedErr: "data too short for user key of length 1000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd Command
			err := cmd.Deserialize(tt.data)
			if err == nil {
				t.Fatalf("Expected error but got nil")
			}
			if err.Error() != tt.expectedErr {
				t.Errorf("Expected error %q, got %q", tt.expectedErr, err.Error())
			}
		})
	}
}

// TestBinaryFormat tests the exact binary format of serialized commands
func TestBinaryFormat(t *testing.T) {
	cmd := Command{
		Type:      CommandTPut,
		Namespace: "ns",
		Digest:    testDigest(),
		UserKey:   []byte("k"),
		Bins:      []byte("b"),
	}

	expected := []byte{byte(CommandTPut)}
	d := testDigest()
	expected = append(expected, d[:]...)
	expected = append(expected, 0, 2, 'n', 's') // namespace
	expected = append(expected, 0, 0, 0, 0, 0, 0, 0, 0)
	expected = append(expected, 0, 0, 0, 1, 'k') // user key
	expected = append(expected, 'b')             // bins

	data := cmd.Serialize()
	if !bytes.Equal(data, expected) {
		t.Errorf("Binary format mismatch:\ngot:  %v\nwant: %v", data, expected)
	}
}

// TestPutCommandEntry tests the conversion between entries and Put commands
func TestPutCommandEntry(t *testing.T) {
	key := value.StringValue("skkey1")
	in := db.Entry{
		Namespace: "test",
		Set:       "demo",
		Digest:    testDigest(),
		UserKey:   &key,
		Bins:      value.BinMap{"skbin": value.IntegerValue(1)},
	}

	cmd := NewPutCommand(in)
	var decoded Command
	if err := decoded.Deserialize(cmd.Serialize()); err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}

	out, err := decoded.Entry()
	if err != nil {
		t.Fatalf("Entry() error = %v", err)
	}
	if out.UserKey == nil || !out.UserKey.Equal(key) {
		t.Errorf("UserKey mismatch: got %v, want %v", out.UserKey, key)
	}
	if v, err := out.Bins["skbin"].AsInteger(); err != nil || v != 1 {
		t.Errorf("Bin mismatch: got %v (%v), want 1", v, err)
	}

	in.UserKey = nil
	cmd = NewPutCommand(in)
	out, err = cmd.Entry()
	if err != nil {
		t.Fatalf("Entry() error = %v", err)
	}
	if out.UserKey != nil {
		t.Errorf("UserKey should be nil, got %v", out.UserKey)
	}
}

// TestToDBFeature tests the mapping of command types to db features
func TestToDBFeature(t *testing.T) {
	tests := []struct {
		ct      CommandType
		feature db.Feature
	}{
		{CommandTPut, db.FeaturePut},
		{CommandTDelete, db.FeatureDelete},
		{CommandTCreateIndex, db.FeatureIndex},
		{CommandTDropIndex, db.FeatureIndex},
	}
	for _, tt := range tests {
		t.Run(tt.ct.String(), func(t *testing.T) {
			f, err := tt.ct.ToDBFeature()
			if err != nil {
				t.Fatalf("ToDBFeature() error = %v", err)
			}
			if f != tt.feature {
				t.Errorf("ToDBFeature() = %v, want %v", f, tt.feature)
			}
		})
	}

	if _, err := CommandType(99).ToDBFeature(); err == nil {
		t.Errorf("expected error for unknown command type")
	}
}
