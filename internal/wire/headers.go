package wire

import (
	"encoding/binary"
	"io"

	"github.com/medusa-ds9/medusad/internal/errs"
)

// ClassHeader is the fixed-layout header the kernel sends when registering
// a class: u64 id, i16 size, then a ClassNameMax-byte NUL-padded name.
type ClassHeader struct {
	ID   uint64
	Size int16
	Name string
}

// EventTypeHeader is the fixed-layout header the kernel sends when
// registering an event type. ev_obj of zero and a blank Name1 means no
// object side (either never present, or collapsed by
// schema.CollapseObjectIfIdentical when subject and object classes and
// names coincide).
type EventTypeHeader struct {
	EvID    uint64
	Size    uint16
	ActBit  uint16
	EvSub   uint64
	EvObj   uint64
	Name    string
	Name0   string
	Name1   string
}

// AttributeHeader is one fixed-layout attribute descriptor. A Type of
// TypeEnd terminates an attribute list.
type AttributeHeader struct {
	Offset int16
	Length int16
	Type   byte
	Name   string
}

// ReadOnly reports whether the modify-read-only bit is set.
func (h AttributeHeader) ReadOnly() bool {
	return h.Type&modReadOnly != 0
}

// PrimaryKey reports whether the primary-key bit is set.
func (h AttributeHeader) PrimaryKey() bool {
	return h.Type&modPrimary != 0
}

// DataType extracts the low-nibble data type (TypeUnsigned, TypeSigned, ...).
func (h AttributeHeader) DataType() uint8 {
	return h.Type & typeDataMask
}

func readFull(r io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errs.Wrap(errs.IO, err, "short read")
	}
	return b, nil
}

func decodeFixedString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// ReadU64 reads one little-endian uint64 directly from r.
func ReadU64(r io.Reader) (uint64, error) {
	b, err := readFull(r, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadU32 reads one little-endian uint32 directly from r.
func ReadU32(r io.Reader) (uint32, error) {
	b, err := readFull(r, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadClassHeader decodes a ClassHeader from r.
func ReadClassHeader(r io.Reader) (ClassHeader, error) {
	id, err := ReadU64(r)
	if err != nil {
		return ClassHeader{}, err
	}
	b, err := readFull(r, 2+ClassNameMax)
	if err != nil {
		return ClassHeader{}, err
	}
	size := int16(binary.LittleEndian.Uint16(b[:2]))
	name := decodeFixedString(b[2:])
	return ClassHeader{ID: id, Size: size, Name: name}, nil
}

// ReadEventTypeHeader decodes an EventTypeHeader from r.
func ReadEventTypeHeader(r io.Reader) (EventTypeHeader, error) {
	fixed, err := readFull(r, 8+2+2+8+8+EvNameMax+AttrNameMax+AttrNameMax)
	if err != nil {
		return EventTypeHeader{}, err
	}
	off := 0
	u64 := func() uint64 {
		v := binary.LittleEndian.Uint64(fixed[off:])
		off += 8
		return v
	}
	u16 := func() uint16 {
		v := binary.LittleEndian.Uint16(fixed[off:])
		off += 2
		return v
	}
	str := func(n int) string {
		s := decodeFixedString(fixed[off : off+n])
		off += n
		return s
	}

	h := EventTypeHeader{}
	h.EvID = u64()
	h.Size = u16()
	h.ActBit = u16()
	h.EvSub = u64()
	h.EvObj = u64()
	h.Name = str(EvNameMax)
	h.Name0 = str(AttrNameMax)
	h.Name1 = str(AttrNameMax)
	return h, nil
}

// ReadAttributeHeader decodes a single AttributeHeader from r. The caller
// should stop reading attributes once DataType()==TypeEnd.
func ReadAttributeHeader(r io.Reader) (AttributeHeader, error) {
	b, err := readFull(r, 2+2+1+AttrNameMax)
	if err != nil {
		return AttributeHeader{}, err
	}
	offset := int16(binary.LittleEndian.Uint16(b[0:2]))
	length := int16(binary.LittleEndian.Uint16(b[2:4]))
	typ := b[4]
	name := decodeFixedString(b[5:])
	return AttributeHeader{Offset: offset, Length: length, Type: typ, Name: name}, nil
}

// ReadAttributeHeaders reads attribute headers until a TypeEnd terminator
// is seen (the terminator itself is consumed but not returned).
func ReadAttributeHeaders(r io.Reader) ([]AttributeHeader, error) {
	var out []AttributeHeader
	for {
		h, err := ReadAttributeHeader(r)
		if err != nil {
			return nil, err
		}
		if h.DataType() == TypeEnd {
			return out, nil
		}
		out = append(out, h)
	}
}
