package wire

import (
	"encoding/binary"

	"github.com/medusa-ds9/medusad/internal/errs"
)

// Encoder accumulates a little-endian encoded frame.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the accumulated buffer.
func (this *Encoder) Bytes() []byte {
	return this.buf
}

// AppendU64 appends a little-endian uint64.
func (this *Encoder) AppendU64(v uint64) *Encoder {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	this.buf = append(this.buf, b[:]...)
	return this
}

// AppendU32 appends a little-endian uint32.
func (this *Encoder) AppendU32(v uint32) *Encoder {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	this.buf = append(this.buf, b[:]...)
	return this
}

// AppendU16 appends a little-endian uint16.
func (this *Encoder) AppendU16(v uint16) *Encoder {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	this.buf = append(this.buf, b[:]...)
	return this
}

// AppendI16 appends a little-endian int16.
func (this *Encoder) AppendI16(v int16) *Encoder {
	return this.AppendU16(uint16(v))
}

// AppendI32 appends a little-endian int32.
func (this *Encoder) AppendI32(v int32) *Encoder {
	return this.AppendU32(uint32(v))
}

// AppendByte appends a single byte.
func (this *Encoder) AppendByte(v byte) *Encoder {
	this.buf = append(this.buf, v)
	return this
}

// AppendBytes appends a raw byte slice unmodified.
func (this *Encoder) AppendBytes(v []byte) *Encoder {
	this.buf = append(this.buf, v...)
	return this
}

// AppendFixedString appends s NUL-padded (or truncated) to exactly n bytes.
func (this *Encoder) AppendFixedString(s string, n int) *Encoder {
	b := make([]byte, n)
	copy(b, s)
	this.buf = append(this.buf, b...)
	return this
}

// Decoder reads little-endian fields out of a fixed buffer.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps buf for sequential decoding.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

func (this *Decoder) need(n int) error {
	if this.pos+n > len(this.buf) {
		return errs.New(errs.Parse, "wire: need %d bytes, have %d", n, len(this.buf)-this.pos)
	}
	return nil
}

// DecodeU64 reads a little-endian uint64.
func (this *Decoder) DecodeU64() (uint64, error) {
	if err := this.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(this.buf[this.pos:])
	this.pos += 8
	return v, nil
}

// DecodeU32 reads a little-endian uint32.
func (this *Decoder) DecodeU32() (uint32, error) {
	if err := this.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(this.buf[this.pos:])
	this.pos += 4
	return v, nil
}

// DecodeU16 reads a little-endian uint16.
func (this *Decoder) DecodeU16() (uint16, error) {
	if err := this.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(this.buf[this.pos:])
	this.pos += 2
	return v, nil
}

// DecodeI16 reads a little-endian int16.
func (this *Decoder) DecodeI16() (int16, error) {
	v, err := this.DecodeU16()
	return int16(v), err
}

// DecodeI32 reads a little-endian int32.
func (this *Decoder) DecodeI32() (int32, error) {
	v, err := this.DecodeU32()
	return int32(v), err
}

// DecodeByte reads a single byte.
func (this *Decoder) DecodeByte() (byte, error) {
	if err := this.need(1); err != nil {
		return 0, err
	}
	v := this.buf[this.pos]
	this.pos++
	return v, nil
}

// DecodeBytes reads n raw bytes.
func (this *Decoder) DecodeBytes(n int) ([]byte, error) {
	if err := this.need(n); err != nil {
		return nil, err
	}
	v := this.buf[this.pos : this.pos+n]
	this.pos += n
	return v, nil
}

// DecodeFixedString reads an n-byte field and decodes it as a
// NUL-terminated string, matching the kernel's cstr_to_string convention.
func (this *Decoder) DecodeFixedString(n int) (string, error) {
	b, err := this.DecodeBytes(n)
	if err != nil {
		return "", err
	}
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), nil
		}
	}
	return string(b), nil
}

// Remaining returns the number of unread bytes.
func (this *Decoder) Remaining() int {
	return len(this.buf) - this.pos
}
