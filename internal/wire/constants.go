// Package wire implements the Medusa DS9 binary protocol: the greeting and
// version handshake, frame tag dispatch, and the fixed-layout class,
// event-type, and attribute headers exchanged over the device.
package wire

// Fixed-width name field lengths, as registered by the kernel module.
const (
	ClassNameMax = 30
	AttrNameMax  = 27
	EvNameMax    = 30
)

// Greeting magic values. Only the native byte order is supported; the
// reversed value is recognized solely so it can be rejected explicitly,
// per the protocol's no-endianness-conversion contract.
const (
	GreetingNativeByteOrder   uint64 = 0x0000000066007e5a
	GreetingReversedByteOrder uint64 = 0x5a7e006600000000
)

// ProtocolVersion is the only protocol version this server understands.
const ProtocolVersion uint64 = 2

// Command identifiers, sent after a zero tag.
const (
	CommandAuthRequest   uint32 = 0x01
	CommandKClassDef     uint32 = 0x02
	CommandKClassUndef   uint32 = 0x03
	CommandEvTypeDef     uint32 = 0x04
	CommandEvTypeUndef   uint32 = 0x05
	CommandFetchAnswer   uint32 = 0x08
	CommandFetchError    uint32 = 0x09
	CommandUpdateAnswer  uint32 = 0x0a
)

// Request/answer leading tags.
const (
	TagFetchRequest  uint64 = 0x88
	TagUpdateRequest uint64 = 0x8a
	TagAuthAnswer    uint64 = 0x81
)

// Attribute type byte: low nibble is the data type, terminated by TypeEnd.
const (
	TypeEnd      uint8 = 0
	TypeUnsigned uint8 = 1
	TypeSigned   uint8 = 2
	TypeString   uint8 = 3
	TypeBitmap   uint8 = 4
	TypeBytes    uint8 = 5

	typeDataMask uint8 = 0x0f
	modReadOnly  uint8 = 0x80
	modPrimary   uint8 = 0x40
)

// Reserved attribute names with protocol-defined meaning.
const (
	AttrVS      = "vs"
	AttrVSRead  = "vsr"
	AttrVSWrite = "vsw"
	AttrVSSee   = "vss"
	AttrObjAct  = "med_oact"
	AttrSubAct  = "med_sact"
)

// Answer status values returned for an authorization decision.
type Answer uint16

const (
	AnswerErr   Answer = 0xffff
	AnswerYes   Answer = 0
	AnswerDeny  Answer = 1
	AnswerSkip  Answer = 2
	AnswerAllow Answer = 3
)
