// Package schema holds the dynamic class and event-type definitions the
// kernel registers at connection start, and the attribute instances built
// from them.
package schema

import (
	"github.com/medusa-ds9/medusad/internal/attrstore"
	"github.com/medusa-ds9/medusad/internal/wire"
)

// Class is a registered class definition: its header plus the attribute
// descriptors pushed after it.
type Class struct {
	Header wire.ClassHeader
	attrs  *attrstore.Store

	// objectCinfo is the subject's position in a policy tree, set by the
	// hierarchy handler. It is host-side walk state, not a wire attribute.
	objectCinfo int
}

// NewClass wraps a header with an empty attribute store.
func NewClass(h wire.ClassHeader) *Class {
	return &Class{Header: h, attrs: attrstore.New()}
}

// ObjectCinfo returns the subject's current policy-tree position (0 if unset).
func (c *Class) ObjectCinfo() int { return c.objectCinfo }

// SetObjectCinfo records the subject's current policy-tree position.
func (c *Class) SetObjectCinfo(cinfo int) { c.objectCinfo = cinfo }

// SetVS sets the "vs" (member) virtual-space attribute, if the class defines it.
func (c *Class) SetVS(b []byte) error { return c.attrs.Set(wire.AttrVS, b) }

// SetVSRead sets the "vsr" virtual-space attribute, if the class defines it.
func (c *Class) SetVSRead(b []byte) error { return c.attrs.Set(wire.AttrVSRead, b) }

// SetVSWrite sets the "vsw" virtual-space attribute, if the class defines it.
func (c *Class) SetVSWrite(b []byte) error { return c.attrs.Set(wire.AttrVSWrite, b) }

// SetVSSee sets the "vss" virtual-space attribute, if the class defines it.
func (c *Class) SetVSSee(b []byte) error { return c.attrs.Set(wire.AttrVSSee, b) }

// GetVS returns the "vs" (member) virtual-space attribute, if present.
func (c *Class) GetVS() ([]byte, bool) { return c.attrs.Get(wire.AttrVS) }

// ClearObjectAct clears the object-monitoring-bit mask ("med_oact").
func (c *Class) ClearObjectAct() error { return c.attrs.ClearBitmap(wire.AttrObjAct) }

// ClearSubjectAct clears the subject-monitoring-bit mask ("med_sact").
func (c *Class) ClearSubjectAct() error { return c.attrs.ClearBitmap(wire.AttrSubAct) }

// AddObjectAct sets bit in the object-monitoring-bit mask ("med_oact").
func (c *Class) AddObjectAct(bit int) error { return c.attrs.SetBitmapBit(wire.AttrObjAct, bit) }

// AddSubjectAct sets bit in the subject-monitoring-bit mask ("med_sact").
func (c *Class) AddSubjectAct(bit int) error { return c.attrs.SetBitmapBit(wire.AttrSubAct, bit) }

// PushAttribute registers one more attribute descriptor.
func (c *Class) PushAttribute(h wire.AttributeHeader) { c.attrs.Push(h) }

// Attrs returns the class's attribute store.
func (c *Class) Attrs() *attrstore.Store { return c.attrs }

// Instantiate returns a fresh, empty instance sharing this class's
// attribute layout.
func (c *Class) Instantiate() *Class {
	return &Class{Header: c.Header, attrs: c.attrs.Clone()}
}

// Monitoring identifies which side of an event (subject or object) a
// monitoring bit is recorded against.
type Monitoring int

const (
	MonitoringSubject Monitoring = iota
	MonitoringObject
)

// decodeActBit splits the raw actbit field into (monitoring side,
// triggered-by-object flag, monitoring bit index), per the wire layout:
// top bit selects subject/object monitoring, next bit selects the
// triggering side, the remaining bits are the bit index.
func decodeActBit(actbit uint16) (monitoring Monitoring, triggeredByObject bool, bit uint16) {
	const monitoringSideBit = 1 << 15
	const triggeredSideBit = 1 << 14
	const bitMask = triggeredSideBit - 1

	if actbit&monitoringSideBit != 0 {
		monitoring = MonitoringObject
	} else {
		monitoring = MonitoringSubject
	}
	triggeredByObject = actbit&triggeredSideBit != 0
	bit = actbit & bitMask
	return
}

// EventType is a registered event-type definition, with actbit pre-decoded
// once at registration time rather than re-derived on every dispatch.
type EventType struct {
	Header wire.EventTypeHeader

	Monitoring       Monitoring
	TriggeredByObject bool
	MonitoringBit    uint16

	// HasObject reports whether this event type carries an object side.
	// It is false either because the kernel never sent one, or because
	// CollapseObjectIfIdentical cleared it (see that function's doc comment).
	HasObject bool

	attrs *attrstore.Store
}

// NewEventType decodes actbit and wraps the header with an empty
// attribute store.
func NewEventType(h wire.EventTypeHeader) *EventType {
	monitoring, triggered, bit := decodeActBit(h.ActBit)
	return &EventType{
		Header:            h,
		Monitoring:        monitoring,
		TriggeredByObject: triggered,
		MonitoringBit:     bit,
		HasObject:         h.EvObj != 0,
		attrs:             attrstore.New(),
	}
}

// PushAttribute registers one more attribute descriptor on the event
// itself (as opposed to its subject/object classes).
func (e *EventType) PushAttribute(h wire.AttributeHeader) { e.attrs.Push(h) }

// Attrs returns the event type's own attribute store.
func (e *EventType) Attrs() *attrstore.Store { return e.attrs }

// Instantiate returns a fresh, empty instance sharing this event type's
// attribute layout.
func (e *EventType) Instantiate() *EventType {
	return &EventType{
		Header:            e.Header,
		Monitoring:        e.Monitoring,
		TriggeredByObject: e.TriggeredByObject,
		MonitoringBit:     e.MonitoringBit,
		HasObject:         e.HasObject,
		attrs:             e.attrs.Clone(),
	}
}

// CollapseObjectIfIdentical implements the object-side collapse
// invariant: when the subject and object classes are the same and both
// per-side attribute names coincide, there is nothing distinguishing an
// object from the subject, so the kernel's ev_obj/second name are treated
// as absent rather than as a meaningful second class reference.
func CollapseObjectIfIdentical(h *wire.EventTypeHeader) {
	if h.EvSub == h.EvObj && h.Name0 == h.Name1 {
		h.EvObj = 0
		h.Name1 = ""
	}
}
