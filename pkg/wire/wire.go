// Package wire provides the small length-prefixed binary primitives the
// byte codec (pkg/codec) and BLE control envelopes (pkg/blelink) build their
// schema-driven encoding on, in the same hand-rolled style the teacher uses
// for its own wire protocols (see pkg/protocol/modbus/rtu.go) rather than a
// general-purpose serialization library.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Writer accumulates a length-prefixed binary encoding.
type Writer struct {
	buf bytes.Buffer
}

// WriteUint8 appends a single byte.
func (w *Writer) WriteUint8(v uint8) { w.buf.WriteByte(v) }

// WriteUint16 appends a big-endian uint16.
func (w *Writer) WriteUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

// WriteUint32 appends a big-endian uint32.
func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// WriteBytes appends a 1-byte length prefix followed by b. b must be
// shorter than 256 bytes; fields in this schema are all short header/enum
// values, never arbitrary payloads.
func (w *Writer) WriteBytes(b []byte) error {
	if len(b) > 0xFF {
		return fmt.Errorf("wire: field too long (%d bytes)", len(b))
	}
	w.buf.WriteByte(uint8(len(b)))
	w.buf.Write(b)
	return nil
}

// WriteString appends s as a length-prefixed UTF-8 byte string.
func (w *Writer) WriteString(s string) error { return w.WriteBytes([]byte(s)) }

// WriteRest appends b with no length prefix; only valid as the last field
// in a message, used for variable-length raw payload tails.
func (w *Writer) WriteRest(b []byte) { w.buf.Write(b) }

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Reader consumes a length-prefixed binary encoding produced by Writer.
type Reader struct {
	b   []byte
	off int
}

// NewReader wraps b for sequential field reads.
func NewReader(b []byte) *Reader { return &Reader{b: b} }

func (r *Reader) need(n int) error {
	if r.off+n > len(r.b) {
		return fmt.Errorf("wire: truncated (need %d bytes, have %d)", n, len(r.b)-r.off)
	}
	return nil
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.b[r.off]
	r.off++
	return v, nil
}

// ReadUint16 reads a big-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.b[r.off:])
	r.off += 2
	return v, nil
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v, nil
}

// ReadBytes reads a 1-byte length prefix followed by that many bytes.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	v := append([]byte(nil), r.b[r.off:r.off+int(n)]...)
	r.off += int(n)
	return v, nil
}

// ReadString reads a length-prefixed UTF-8 byte string.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Rest returns all remaining unread bytes.
func (r *Reader) Rest() []byte { return append([]byte(nil), r.b[r.off:]...) }

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.b) - r.off }
