package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	ErrIntegerOverflow     = errors.New("integer outside signed 64-bit range")
	ErrUnknownFieldType    = errors.New("unknown field value type")
	ErrUnsupportedGoValue  = errors.New("unsupported Go value for field table")
	ErrFieldTableTruncated = errors.New("field table extends beyond data")
)

// Value is one entry of an AMQP field table or field array. The set of
// implementations is closed; every variant maps to exactly one type tag.
type Value interface {
	fieldTag() byte
}

// Field value variants
type (
	Null    struct{}
	Bool    bool
	Int32   int32
	Int64   int64
	Float64 float64
	// Decimal is scale decimal digits applied to an unscaled 32-bit value.
	Decimal struct {
		Scale uint8
		Value int32
	}
	// Timestamp is seconds since the Unix epoch.
	Timestamp uint64
	String    string
	Array     []Value

	// Legacy variants are accepted on decode and widened on encode.
	Uint8   uint8
	Int16   int16
	Float32 float32
)

// Field is a single key/value pair of a Table.
type Field struct {
	Key   string
	Value Value
}

// Table is an ordered field table. Keys keep the order they were decoded or
// appended in.
type Table []Field

func (Null) fieldTag() byte      { return 'V' }
func (Bool) fieldTag() byte      { return 't' }
func (Int32) fieldTag() byte     { return 'I' }
func (Int64) fieldTag() byte     { return 'l' }
func (Float64) fieldTag() byte   { return 'd' }
func (Decimal) fieldTag() byte   { return 'D' }
func (Timestamp) fieldTag() byte { return 'T' }
func (String) fieldTag() byte    { return 'S' }
func (Table) fieldTag() byte     { return 'F' }
func (Array) fieldTag() byte     { return 'A' }
func (Uint8) fieldTag() byte     { return 'b' }
func (Int16) fieldTag() byte     { return 's' }
func (Float32) fieldTag() byte   { return 'f' }

// Time converts the timestamp to a time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

// Get returns the value stored under key.
func (t Table) Get(key string) (Value, bool) {
	for _, f := range t {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Set replaces the value under key, appending a new field when absent.
func (t Table) Set(key string, v Value) Table {
	for i := range t {
		if t[i].Key == key {
			t[i].Value = v
			return t
		}
	}
	return append(t, Field{Key: key, Value: v})
}

// Map converts the table into native Go values, recursively.
func (t Table) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(t))
	for _, f := range t {
		out[f.Key] = Native(f.Value)
	}
	return out
}

// Native converts a Value into the closest native Go value.
func Native(v Value) interface{} {
	switch x := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(x)
	case Int32:
		return int32(x)
	case Int64:
		return int64(x)
	case Float64:
		return float64(x)
	case Decimal:
		return x
	case Timestamp:
		return x.Time()
	case String:
		return string(x)
	case Table:
		return x.Map()
	case Array:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = Native(e)
		}
		return out
	case Uint8:
		return uint8(x)
	case Int16:
		return int16(x)
	case Float32:
		return float32(x)
	default:
		return nil
	}
}

// NewValue converts a native Go value into a field Value. Integers are
// narrowed to Int32 when they fit, Int64 otherwise.
func NewValue(v interface{}) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case int:
		return narrowInt(int64(x)), nil
	case int8:
		return Int32(x), nil
	case int16:
		return Int32(x), nil
	case int32:
		return Int32(x), nil
	case int64:
		return narrowInt(x), nil
	case uint8:
		return Int32(x), nil
	case uint16:
		return Int32(x), nil
	case uint32:
		return narrowInt(int64(x)), nil
	case uint:
		return narrowUint(uint64(x))
	case uint64:
		return narrowUint(x)
	case float32:
		return Float64(x), nil
	case float64:
		return Float64(x), nil
	case string:
		return String(x), nil
	case []byte:
		return String(x), nil
	case time.Time:
		return Timestamp(x.Unix()), nil
	case map[string]interface{}:
		return NewTable(x)
	case []interface{}:
		arr := make(Array, 0, len(x))
		for _, e := range x {
			ev, err := NewValue(e)
			if err != nil {
				return nil, err
			}
			arr = append(arr, ev)
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedGoValue, v)
	}
}

// NewTable builds a Table from a map, with keys sorted for a stable encoding.
func NewTable(m map[string]interface{}) (Table, error) {
	if len(m) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := make(Table, 0, len(keys))
	for _, k := range keys {
		v, err := NewValue(m[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		t = append(t, Field{Key: k, Value: v})
	}
	return t, nil
}

func narrowInt(i int64) Value {
	if i >= math.MinInt32 && i <= math.MaxInt32 {
		return Int32(i)
	}
	return Int64(i)
}

func narrowUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("%w: %d", ErrIntegerOverflow, u)
	}
	return narrowInt(int64(u)), nil
}

// EncodeFieldTable encodes a table with its uint32 length prefix.
func EncodeFieldTable(table Table) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := appendFieldTable(buf, table); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendFieldTable(buf *bytes.Buffer, table Table) error {
	var entries bytes.Buffer
	for _, f := range table {
		if len(f.Key) > 255 {
			return fmt.Errorf("field table key too long: %d bytes", len(f.Key))
		}
		entries.WriteByte(byte(len(f.Key)))
		entries.WriteString(f.Key)
		if err := appendFieldValue(&entries, f.Value); err != nil {
			return fmt.Errorf("key %q: %w", f.Key, err)
		}
	}
	writeUint32(buf, uint32(entries.Len()))
	buf.Write(entries.Bytes())
	return nil
}

// EncodeValue encodes a single tagged value.
func EncodeValue(v Value) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := appendFieldValue(buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendFieldValue(buf *bytes.Buffer, v Value) error {
	switch x := v.(type) {
	case nil, Null:
		buf.WriteByte('V')
	case Bool:
		buf.WriteByte('t')
		if x {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case Int32:
		buf.WriteByte('I')
		writeUint32(buf, uint32(x))
	case Int64:
		buf.WriteByte('l')
		writeUint64(buf, uint64(x))
	case Float64:
		buf.WriteByte('d')
		writeUint64(buf, math.Float64bits(float64(x)))
	case Decimal:
		buf.WriteByte('D')
		buf.WriteByte(x.Scale)
		writeUint32(buf, uint32(x.Value))
	case Timestamp:
		buf.WriteByte('T')
		writeUint64(buf, uint64(x))
	case String:
		buf.WriteByte('S')
		writeUint32(buf, uint32(len(x)))
		buf.WriteString(string(x))
	case Table:
		buf.WriteByte('F')
		return appendFieldTable(buf, x)
	case Array:
		var items bytes.Buffer
		for _, e := range x {
			if err := appendFieldValue(&items, e); err != nil {
				return err
			}
		}
		buf.WriteByte('A')
		writeUint32(buf, uint32(items.Len()))
		buf.Write(items.Bytes())
	case Uint8:
		return appendFieldValue(buf, Int32(x))
	case Int16:
		return appendFieldValue(buf, Int32(x))
	case Float32:
		return appendFieldValue(buf, Float64(x))
	default:
		return fmt.Errorf("%w: %T", ErrUnknownFieldType, v)
	}
	return nil
}

// DecodeFieldTable decodes a length-prefixed table starting at offset and
// returns the offset just past it.
func DecodeFieldTable(data []byte, offset int) (Table, int, error) {
	if offset+4 > len(data) {
		return nil, offset, fmt.Errorf("field table length field missing")
	}
	tableLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if tableLen < 0 || offset+tableLen > len(data) {
		return nil, offset, ErrFieldTableTruncated
	}

	end := offset + tableLen
	body := data[:end]
	var table Table

	for offset < end {
		key, next, err := decodeShortString(body, offset)
		if err != nil {
			return nil, offset, fmt.Errorf("field key: %w", err)
		}
		offset = next

		var v Value
		v, offset, err = decodeFieldValue(body, offset)
		if err != nil {
			return nil, offset, fmt.Errorf("key %q: %w", key, err)
		}
		table = append(table, Field{Key: key, Value: v})
	}

	return table, end, nil
}

// DecodeValue decodes a single tagged value starting at offset.
func DecodeValue(data []byte, offset int) (Value, int, error) {
	return decodeFieldValue(data, offset)
}

func decodeFieldValue(data []byte, offset int) (Value, int, error) {
	if offset >= len(data) {
		return nil, offset, fmt.Errorf("field value type missing")
	}
	tag := data[offset]
	offset++

	need := func(n int) error {
		if offset+n > len(data) {
			return fmt.Errorf("value of type %q truncated", tag)
		}
		return nil
	}

	switch tag {
	case 'V':
		return Null{}, offset, nil
	case 't':
		if err := need(1); err != nil {
			return nil, offset, err
		}
		return Bool(data[offset] != 0), offset + 1, nil
	case 'b':
		if err := need(1); err != nil {
			return nil, offset, err
		}
		return Uint8(data[offset]), offset + 1, nil
	case 's':
		if err := need(2); err != nil {
			return nil, offset, err
		}
		return Int16(binary.BigEndian.Uint16(data[offset:])), offset + 2, nil
	case 'I':
		if err := need(4); err != nil {
			return nil, offset, err
		}
		return Int32(binary.BigEndian.Uint32(data[offset:])), offset + 4, nil
	case 'l':
		if err := need(8); err != nil {
			return nil, offset, err
		}
		return Int64(binary.BigEndian.Uint64(data[offset:])), offset + 8, nil
	case 'f':
		if err := need(4); err != nil {
			return nil, offset, err
		}
		return Float32(math.Float32frombits(binary.BigEndian.Uint32(data[offset:]))), offset + 4, nil
	case 'd':
		if err := need(8); err != nil {
			return nil, offset, err
		}
		return Float64(math.Float64frombits(binary.BigEndian.Uint64(data[offset:]))), offset + 8, nil
	case 'D':
		if err := need(5); err != nil {
			return nil, offset, err
		}
		return Decimal{Scale: data[offset], Value: int32(binary.BigEndian.Uint32(data[offset+1:]))}, offset + 5, nil
	case 'T':
		if err := need(8); err != nil {
			return nil, offset, err
		}
		return Timestamp(binary.BigEndian.Uint64(data[offset:])), offset + 8, nil
	case 'S', 'x':
		s, next, err := decodeLongString(data, offset)
		if err != nil {
			return nil, offset, err
		}
		return String(s), next, nil
	case 'F':
		return DecodeFieldTable(data, offset)
	case 'A':
		if err := need(4); err != nil {
			return nil, offset, err
		}
		arrLen := int(binary.BigEndian.Uint32(data[offset:]))
		offset += 4
		if arrLen < 0 || offset+arrLen > len(data) {
			return nil, offset, fmt.Errorf("field array extends beyond data")
		}
		end := offset + arrLen
		var arr Array
		for offset < end {
			var v Value
			var err error
			v, offset, err = decodeFieldValue(data[:end], offset)
			if err != nil {
				return nil, offset, err
			}
			arr = append(arr, v)
		}
		return arr, end, nil
	default:
		return nil, offset, fmt.Errorf("%w: %q", ErrUnknownFieldType, tag)
	}
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

// decodeShortString decodes a short string from data at the given offset
func decodeShortString(data []byte, offset int) (string, int, error) {
	if offset >= len(data) {
		return "", offset, fmt.Errorf("short string length byte missing")
	}

	strLen := int(data[offset])
	offset++

	if offset+strLen > len(data) {
		return "", offset, fmt.Errorf("short string extends beyond data")
	}

	return string(data[offset : offset+strLen]), offset + strLen, nil
}

// decodeLongString decodes a long string from data at the given offset
func decodeLongString(data []byte, offset int) (string, int, error) {
	if offset+4 > len(data) {
		return "", offset, fmt.Errorf("long string length field missing")
	}

	strLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4

	if strLen < 0 || offset+strLen > len(data) {
		return "", offset, fmt.Errorf("long string extends beyond data")
	}

	return string(data[offset : offset+strLen]), offset + strLen, nil
}
