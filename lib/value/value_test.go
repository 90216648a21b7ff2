package value

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversions(t *testing.T) {
	i := IntegerValue(42)
	got, err := i.AsInteger()
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	_, err = i.AsString()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrType))

	var te *TypeError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, KindString, te.Want)
	assert.Equal(t, KindInteger, te.Got)

	_, err = EmptyValue().AsInteger()
	assert.ErrorIs(t, err, ErrType)

	s, err := StringValue("skkey1").AsString()
	require.NoError(t, err)
	assert.Equal(t, "skkey1", s)
}

func TestBytesValueIsCopied(t *testing.T) {
	raw := []byte{1, 2, 3}
	v := BytesValue(raw)
	raw[0] = 9

	b, err := v.AsBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)

	b[1] = 9
	again, _ := v.AsBytes()
	assert.Equal(t, []byte{1, 2, 3}, again)
}

func TestFromObject(t *testing.T) {
	tests := []struct {
		name string
		obj  interface{}
		want Value
	}{
		{"nil", nil, EmptyValue()},
		{"int", 7, IntegerValue(7)},
		{"int32", int32(-3), IntegerValue(-3)},
		{"uint16", uint16(9), IntegerValue(9)},
		{"string", "abc", StringValue("abc")},
		{"bytes", []byte("x"), BytesValue([]byte("x"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromObject(tt.obj)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
		})
	}

	_, err := FromObject(uint64(1 << 63))
	assert.Error(t, err)

	_, err = FromObject(3.14)
	assert.Error(t, err)
}

func TestObjectAndString(t *testing.T) {
	assert.Nil(t, EmptyValue().Object())
	assert.Equal(t, int64(5), IntegerValue(5).Object())
	assert.Equal(t, "null", EmptyValue().String())
	assert.Equal(t, "5", IntegerValue(5).String())
}

func TestDigestInputDiffersByKind(t *testing.T) {
	// "1" as string and 1 as integer must not collide
	assert.NotEqual(t, StringValue("1").DigestInput(), IntegerValue(1).DigestInput())
}

func TestBinaryCodec(t *testing.T) {
	for _, v := range []Value{EmptyValue(), IntegerValue(-12), StringValue("hello"), BytesValue([]byte{0, 1})} {
		data, err := v.MarshalBinary()
		require.NoError(t, err)
		assert.Len(t, data, v.SizeBytes())

		var out Value
		require.NoError(t, out.UnmarshalBinary(data))
		assert.True(t, v.Equal(out))
	}

	var v Value
	assert.Error(t, v.UnmarshalBinary(nil))
	assert.Error(t, v.UnmarshalBinary([]byte{byte(KindInteger), 1, 2}))
}

func TestJSONCodec(t *testing.T) {
	bins := BinMap{
		"a": IntegerValue(1),
		"b": StringValue("two"),
		"c": BytesValue([]byte{3}),
		"d": EmptyValue(),
	}
	data, err := json.Marshal(bins)
	require.NoError(t, err)

	var out BinMap
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 4)
	for k, v := range bins {
		assert.True(t, v.Equal(out[k]), "bin %s", k)
	}
}

func TestBinCodec(t *testing.T) {
	bins := BinMap{"skbin": IntegerValue(3), "name": StringValue("x")}
	decoded, err := DecodeBins(EncodeBins(bins))
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.True(t, decoded["skbin"].Equal(IntegerValue(3)))

	empty, err := DecodeBins(EncodeBins(nil))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = DecodeBins([]byte{0, 0, 0, 1, 0})
	assert.Error(t, err)
}

func TestProject(t *testing.T) {
	bins := BinMap{"a": IntegerValue(1), "b": IntegerValue(2)}
	assert.Len(t, bins.Project(nil), 2)
	p := bins.Project([]string{"b", "missing"})
	assert.Len(t, p, 1)
	assert.Contains(t, p, "b")
}
