package value

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
)

// BinMap maps bin names to their values.
type BinMap map[string]Value

// Clone returns a shallow copy of the map. Values are immutable so this is a full copy.
func (m BinMap) Clone() BinMap {
	if m == nil {
		return nil
	}
	c := make(BinMap, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Project returns a copy that only contains the given bins.
// An empty name list returns all bins.
func (m BinMap) Project(names []string) BinMap {
	if len(names) == 0 {
		return m.Clone()
	}
	c := make(BinMap, len(names))
	for _, n := range names {
		if v, ok := m[n]; ok {
			c[n] = v
		}
	}
	return c
}

func putUint64(b []byte, v uint64) {
	binary.BigEndian.PutUint64(b, v)
}

// --------------------------------------------------------------------------
// Binary encoding of a single value
// --------------------------------------------------------------------------

// SizeBytes returns the number of bytes MarshalBinary produces.
func (v Value) SizeBytes() int {
	switch v.kind {
	case KindInteger:
		return 1 + 8
	case KindString:
		return 1 + len(v.s)
	case KindBytes:
		return 1 + len(v.b)
	default:
		return 1
	}
}

// MarshalBinary encodes the value as 1 byte kind followed by the payload
// (8 bytes big endian for integers, the raw bytes for strings and byte slices).
func (v Value) MarshalBinary() ([]byte, error) {
	out := make([]byte, v.SizeBytes())
	v.appendTo(out)
	return out, nil
}

func (v Value) appendTo(out []byte) {
	out[0] = byte(v.kind)
	switch v.kind {
	case KindInteger:
		putUint64(out[1:9], uint64(v.i))
	case KindString:
		copy(out[1:], v.s)
	case KindBytes:
		copy(out[1:], v.b)
	}
}

// UnmarshalBinary decodes the format written by MarshalBinary.
func (v *Value) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("data too short for value kind")
	}
	kind := Kind(data[0])
	payload := data[1:]
	switch kind {
	case KindEmpty:
		*v = EmptyValue()
	case KindInteger:
		if len(payload) != 8 {
			return fmt.Errorf("invalid integer payload length %d", len(payload))
		}
		*v = IntegerValue(int64(binary.BigEndian.Uint64(payload)))
	case KindString:
		*v = StringValue(string(payload))
	case KindBytes:
		*v = BytesValue(payload)
	default:
		return fmt.Errorf("unknown value kind %d", kind)
	}
	return nil
}

// --------------------------------------------------------------------------
// JSON encoding of a single value
// --------------------------------------------------------------------------

type jsonValue struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes the value as {"kind": "...", "value": ...}.
// Byte slices are base64 encoded.
func (v Value) MarshalJSON() ([]byte, error) {
	jv := jsonValue{Kind: v.kind.String()}
	var err error
	switch v.kind {
	case KindInteger:
		jv.Value, err = json.Marshal(v.i)
	case KindString:
		jv.Value, err = json.Marshal(v.s)
	case KindBytes:
		jv.Value, err = json.Marshal(base64.StdEncoding.EncodeToString(v.b))
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(jv)
}

// UnmarshalJSON decodes the format written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var jv jsonValue
	if err := json.Unmarshal(data, &jv); err != nil {
		return err
	}
	switch jv.Kind {
	case KindEmpty.String():
		*v = EmptyValue()
	case KindInteger.String():
		var i int64
		if err := json.Unmarshal(jv.Value, &i); err != nil {
			return err
		}
		*v = IntegerValue(i)
	case KindString.String():
		var s string
		if err := json.Unmarshal(jv.Value, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case KindBytes.String():
		var s string
		if err := json.Unmarshal(jv.Value, &s); err != nil {
			return err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return err
		}
		*v = Value{kind: KindBytes, b: b}
	default:
		return fmt.Errorf("unknown value kind %q", jv.Kind)
	}
	return nil
}

// --------------------------------------------------------------------------
// Binary encoding of a bin map
// --------------------------------------------------------------------------

// EncodeBins serializes a bin map with the format:
// 4 bytes bin count (big endian), then per bin (sorted by name):
// 2 bytes name length, N bytes name, 4 bytes value length, N bytes value.
func EncodeBins(bins BinMap) []byte {
	names := make([]string, 0, len(bins))
	size := 4
	for name, v := range bins {
		names = append(names, name)
		size += 2 + len(name) + 4 + v.SizeBytes()
	}
	sort.Strings(names)

	out := make([]byte, size)
	binary.BigEndian.PutUint32(out[0:4], uint32(len(names)))
	pos := 4
	for _, name := range names {
		v := bins[name]
		binary.BigEndian.PutUint16(out[pos:pos+2], uint16(len(name)))
		pos += 2
		pos += copy(out[pos:], name)
		binary.BigEndian.PutUint32(out[pos:pos+4], uint32(v.SizeBytes()))
		pos += 4
		v.appendTo(out[pos : pos+v.SizeBytes()])
		pos += v.SizeBytes()
	}
	return out
}

// DecodeBins parses the format written by EncodeBins.
func DecodeBins(data []byte) (BinMap, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("data too short for bin count")
	}
	count := binary.BigEndian.Uint32(data[0:4])
	pos := 4
	bins := make(BinMap, count)
	for i := uint32(0); i < count; i++ {
		if pos+2 > len(data) {
			return nil, fmt.Errorf("data too short for bin name length")
		}
		nameLen := int(binary.BigEndian.Uint16(data[pos : pos+2]))
		pos += 2
		if pos+nameLen+4 > len(data) {
			return nil, fmt.Errorf("data too short for bin name")
		}
		name := string(data[pos : pos+nameLen])
		pos += nameLen
		valLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if pos+valLen > len(data) {
			return nil, fmt.Errorf("data too short for value of bin %q", name)
		}
		var v Value
		if err := v.UnmarshalBinary(data[pos : pos+valLen]); err != nil {
			return nil, fmt.Errorf("bin %q: %w", name, err)
		}
		pos += valLen
		bins[name] = v
	}
	return bins, nil
}
