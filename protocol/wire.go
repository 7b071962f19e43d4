package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// methodWriter serializes positional method arguments. Consecutive bit
// arguments are packed LSB-first into a shared octet, which is flushed by the
// next non-bit argument or by bytes().
type methodWriter struct {
	buf   bytes.Buffer
	bits  byte
	nbits uint
	err   error
}

func (w *methodWriter) flushBits() {
	if w.nbits > 0 {
		w.buf.WriteByte(w.bits)
		w.bits, w.nbits = 0, 0
	}
}

func (w *methodWriter) bit(b bool) {
	if w.nbits == 8 {
		w.flushBits()
	}
	if b {
		w.bits |= 1 << w.nbits
	}
	w.nbits++
}

func (w *methodWriter) octet(v byte) {
	w.flushBits()
	w.buf.WriteByte(v)
}

func (w *methodWriter) short(v uint16) {
	w.flushBits()
	writeUint16(&w.buf, v)
}

func (w *methodWriter) long(v uint32) {
	w.flushBits()
	writeUint32(&w.buf, v)
}

func (w *methodWriter) longlong(v uint64) {
	w.flushBits()
	writeUint64(&w.buf, v)
}

func (w *methodWriter) shortstr(s string) {
	w.flushBits()
	if len(s) > 255 {
		if w.err == nil {
			w.err = fmt.Errorf("short string too long: %d bytes", len(s))
		}
		return
	}
	w.buf.WriteByte(byte(len(s)))
	w.buf.WriteString(s)
}

func (w *methodWriter) longstr(s string) {
	w.flushBits()
	writeUint32(&w.buf, uint32(len(s)))
	w.buf.WriteString(s)
}

func (w *methodWriter) table(t Table) {
	w.flushBits()
	if err := appendFieldTable(&w.buf, t); err != nil && w.err == nil {
		w.err = err
	}
}

func (w *methodWriter) bytes() ([]byte, error) {
	w.flushBits()
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

// methodReader is the decoding counterpart of methodWriter. The first error
// sticks; later reads return zero values.
type methodReader struct {
	data  []byte
	off   int
	bits  byte
	nbits uint
	err   error
	name  string
}

func newMethodReader(name string, data []byte) *methodReader {
	return &methodReader{data: data, name: name}
}

func (r *methodReader) fail(field string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: %s: %w", r.name, field, err)
	}
}

func (r *methodReader) take(field string, n int) []byte {
	r.nbits = 0
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.data) {
		r.fail(field, fmt.Errorf("insufficient data"))
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *methodReader) bit(field string) bool {
	if r.err != nil {
		return false
	}
	if r.nbits == 0 || r.nbits == 8 {
		if r.off >= len(r.data) {
			r.fail(field, fmt.Errorf("insufficient data"))
			return false
		}
		r.bits = r.data[r.off]
		r.off++
		r.nbits = 0
	}
	v := r.bits&(1<<r.nbits) != 0
	r.nbits++
	return v
}

func (r *methodReader) octet(field string) byte {
	b := r.take(field, 1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *methodReader) short(field string) uint16 {
	b := r.take(field, 2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *methodReader) long(field string) uint32 {
	b := r.take(field, 4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *methodReader) longlong(field string) uint64 {
	b := r.take(field, 8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *methodReader) shortstr(field string) string {
	r.nbits = 0
	if r.err != nil {
		return ""
	}
	s, next, err := decodeShortString(r.data, r.off)
	if err != nil {
		r.fail(field, err)
		return ""
	}
	r.off = next
	return s
}

func (r *methodReader) longstr(field string) string {
	r.nbits = 0
	if r.err != nil {
		return ""
	}
	s, next, err := decodeLongString(r.data, r.off)
	if err != nil {
		r.fail(field, err)
		return ""
	}
	r.off = next
	return s
}

func (r *methodReader) table(field string) Table {
	r.nbits = 0
	if r.err != nil {
		return nil
	}
	t, next, err := DecodeFieldTable(r.data, r.off)
	if err != nil {
		r.fail(field, err)
		return nil
	}
	r.off = next
	return t
}
