package protocol

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldTableRoundTrip(t *testing.T) {
	table := Table{
		{Key: "null", Value: Null{}},
		{Key: "bool", Value: Bool(true)},
		{Key: "int32", Value: Int32(-42)},
		{Key: "int64", Value: Int64(math.MaxInt64)},
		{Key: "float", Value: Float64(3.25)},
		{Key: "decimal", Value: Decimal{Scale: 2, Value: 12345}},
		{Key: "timestamp", Value: Timestamp(1700000000)},
		{Key: "string", Value: String("héllo")},
		{Key: "array", Value: Array{Int32(1), String("two"), Bool(false)}},
		{Key: "nested", Value: Table{{Key: "inner", Value: Int32(7)}}},
	}

	data, err := EncodeFieldTable(table)
	require.NoError(t, err)

	decoded, next, err := DecodeFieldTable(data, 0)
	require.NoError(t, err)
	assert.Equal(t, len(data), next)
	assert.Equal(t, table, decoded)
}

func TestFieldTableEmpty(t *testing.T) {
	data, err := EncodeFieldTable(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, data)

	decoded, next, err := DecodeFieldTable(data, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, next)
	assert.Empty(t, decoded)
}

func TestFieldTableOffset(t *testing.T) {
	data, err := EncodeFieldTable(Table{{Key: "k", Value: String("v")}})
	require.NoError(t, err)

	prefixed := append([]byte{0xAA, 0xBB}, data...)
	decoded, next, err := DecodeFieldTable(prefixed, 2)
	require.NoError(t, err)
	assert.Equal(t, len(prefixed), next)

	v, ok := decoded.Get("k")
	require.True(t, ok)
	assert.Equal(t, String("v"), v)
}

func TestDecodeLegacyTags(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Value
	}{
		{"octet", []byte{'b', 0xFE}, Uint8(0xFE)},
		{"int16", []byte{'s', 0xFF, 0xFE}, Int16(-2)},
		{"float32", []byte{'f', 0x3F, 0xC0, 0x00, 0x00}, Float32(1.5)},
		{"bytes", []byte{'x', 0, 0, 0, 2, 'o', 'k'}, String("ok")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, next, err := DecodeValue(tt.data, 0)
			require.NoError(t, err)
			assert.Equal(t, len(tt.data), next)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestEncodeWidensLegacyVariants(t *testing.T) {
	data, err := EncodeValue(Int16(-2))
	require.NoError(t, err)
	assert.Equal(t, byte('I'), data[0])

	data, err = EncodeValue(Uint8(7))
	require.NoError(t, err)
	assert.Equal(t, []byte{'I', 0, 0, 0, 7}, data)

	data, err = EncodeValue(Float32(1.5))
	require.NoError(t, err)
	assert.Equal(t, byte('d'), data[0])

	v, _, err := DecodeValue(data, 0)
	require.NoError(t, err)
	assert.Equal(t, Float64(1.5), v)
}

func TestNewValueIntegerNarrowing(t *testing.T) {
	v, err := NewValue(42)
	require.NoError(t, err)
	assert.Equal(t, Int32(42), v)

	v, err = NewValue(int64(math.MaxInt32) + 1)
	require.NoError(t, err)
	assert.Equal(t, Int64(math.MaxInt32+1), v)

	v, err = NewValue(uint64(math.MaxInt64))
	require.NoError(t, err)
	assert.Equal(t, Int64(math.MaxInt64), v)

	_, err = NewValue(uint64(math.MaxInt64) + 1)
	assert.ErrorIs(t, err, ErrIntegerOverflow)
}

func TestNewValueUnsupported(t *testing.T) {
	_, err := NewValue(struct{}{})
	assert.ErrorIs(t, err, ErrUnsupportedGoValue)
}

func TestNewTableSortedAndNative(t *testing.T) {
	ts := time.Unix(1700000000, 0).UTC()
	table, err := NewTable(map[string]interface{}{
		"b":    "text",
		"a":    int32(1),
		"when": ts,
		"list": []interface{}{1, "x"},
	})
	require.NoError(t, err)

	keys := make([]string, 0, len(table))
	for _, f := range table {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"a", "b", "list", "when"}, keys)

	native := table.Map()
	assert.Equal(t, int32(1), native["a"])
	assert.Equal(t, "text", native["b"])
	assert.Equal(t, ts, native["when"])
	assert.Equal(t, []interface{}{int32(1), "x"}, native["list"])
}

func TestTableSet(t *testing.T) {
	var table Table
	table = table.Set("k", Int32(1))
	table = table.Set("k", Int32(2))
	table = table.Set("j", Bool(true))

	require.Len(t, table, 2)
	v, ok := table.Get("k")
	require.True(t, ok)
	assert.Equal(t, Int32(2), v)

	_, ok = table.Get("missing")
	assert.False(t, ok)
}

func TestDecodeFieldTableErrors(t *testing.T) {
	_, _, err := DecodeFieldTable([]byte{0, 0}, 0)
	assert.Error(t, err)

	_, _, err = DecodeFieldTable([]byte{0, 0, 0, 10, 1}, 0)
	assert.ErrorIs(t, err, ErrFieldTableTruncated)

	// key "k" followed by an unknown tag
	_, _, err = DecodeFieldTable([]byte{0, 0, 0, 3, 1, 'k', 'Z'}, 0)
	assert.ErrorIs(t, err, ErrUnknownFieldType)

	// an int32 value cut short by the table length
	_, _, err = DecodeFieldTable([]byte{0, 0, 0, 4, 1, 'k', 'I', 0, 0, 0, 0}, 0)
	assert.Error(t, err)
}
