// Package handler implements the event handler model: per-event handler
// chains, applicability checks against a subject/object's virtual space,
// and the built-in hierarchy handler that drives policy-tree walks.
package handler

import (
	"github.com/medusa-ds9/medusad/internal/bitmap"
	"github.com/medusa-ds9/medusad/internal/errs"
	"github.com/medusa-ds9/medusad/internal/policytree"
	"github.com/medusa-ds9/medusad/internal/schema"
	"github.com/medusa-ds9/medusad/internal/vspace"
)

// Answer is the authorization decision a handler returns.
type Answer int

const (
	AnswerOK Answer = iota
	AnswerDeny
	AnswerSkip
)

// Context is the subset of connection state a handler needs: tree/node
// lookup by name or content-info, and a fire-and-forget update. It is
// defined here, not imported from a session package, so that handler has
// no dependency on the concurrent connection state that implements it.
type Context interface {
	TreeByName(name string) (*policytree.Tree, bool)
	NodeByCinfo(cinfo int) (*policytree.Node, bool)
	UpdateObjectNoWait(subject *schema.Class)
}

// Args bundles everything a Handler func needs to decide an event.
type Args struct {
	EvType  *schema.EventType
	Subject *schema.Class
	Object  *schema.Class // nil if the event has no object side

	Data *Data
}

// Handler decides an authorization request.
type Handler func(ctx Context, args Args) Answer

// Data is the resolved, immutable configuration for one registered
// EventHandler, built once by Builder.Build.
type Data struct {
	Event        string
	Attribute    string
	FromObject   bool
	PrimaryTree  string

	SubjectVS []byte
	ObjectVS  []byte

	bitmapNBytes int
}

// EventHandler pairs resolved Data with the Handler function it invokes.
type EventHandler struct {
	data    Data
	handler Handler
}

// Handle invokes the underlying handler function.
func (h *EventHandler) Handle(ctx Context, args Args) Answer {
	args.Data = &h.data
	return h.handler(ctx, args)
}

// IsApplicable reports whether this handler should run for the given
// subject/object, by ANDing the handler's required virtual-space mask
// against the actor's actual vs attribute and requiring every masked bit
// to be set.
func (h *EventHandler) IsApplicable(subject *schema.Class, object *schema.Class) bool {
	if !bitmap.All(h.data.SubjectVS) {
		svs, ok := subject.Attrs().Get(wireAttrVS)
		if !ok {
			return false
		}
		if len(svs) < h.data.bitmapNBytes {
			return false
		}
		masked := append([]byte(nil), h.data.SubjectVS...)
		if !bytesEqual(bitmap.And(masked, svs[:h.data.bitmapNBytes]), h.data.SubjectVS) {
			return false
		}
	}

	if !bitmap.All(h.data.ObjectVS) && object != nil {
		ovs, ok := object.Attrs().Get(wireAttrVS)
		if !ok {
			return false
		}
		if len(ovs) < h.data.bitmapNBytes {
			return false
		}
		masked := append([]byte(nil), h.data.ObjectVS...)
		if !bytesEqual(bitmap.And(masked, ovs[:h.data.bitmapNBytes]), h.data.ObjectVS) {
			return false
		}
	}

	return true
}

const wireAttrVS = "vs"

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Builder accumulates one EventHandler's configuration.
type Builder struct {
	event       string
	attribute   string
	fromObject  bool
	primaryTree string

	subject *vspace.Space
	object  *vspace.Space

	handler Handler
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Event sets the event name this handler reacts to.
func (b *Builder) Event(event string) *Builder {
	b.event = event
	return b
}

// WithHierarchyHandler configures b to use the built-in hierarchy walk.
// attribute names the event attribute holding the path to walk (empty
// defaults to the whole-attribute-missing case); fromObject enables cinfo
// inheritance from the object when the subject has no cinfo yet.
func (b *Builder) WithHierarchyHandler(primaryTree string, attribute string, fromObject bool) *Builder {
	if b.handler != nil {
		panic("handler: handler already set")
	}
	all := vspace.All()
	b.attribute = attribute
	b.fromObject = fromObject
	b.subject = &all
	b.object = &all
	b.primaryTree = primaryTree
	b.handler = HierarchyHandler
	return b
}

// CustomDef is what a CustomHandler.Define returns.
type CustomDef struct {
	Event   string
	Handler Handler
	Subject vspace.Space
	Object  *vspace.Space
}

// Custom is implemented by application-supplied event handlers.
type Custom interface {
	Define() CustomDef
}

// WithCustomHandler configures b to use an application-supplied handler.
func (b *Builder) WithCustomHandler(custom Custom) *Builder {
	if b.handler != nil {
		panic("handler: handler already set")
	}
	def := custom.Define()
	b.event = def.Event
	b.subject = &def.Subject
	b.object = def.Object
	b.handler = def.Handler
	return b
}

// Build resolves subject/object space masks against def and returns the
// immutable EventHandler.
func (b *Builder) Build(def *vspace.Def) (*EventHandler, error) {
	if b.handler == nil {
		return nil, errs.New(errs.Config, "handler: no handler specified for event %q", b.event)
	}

	bitmapNBytes := def.BitmapNBytes()
	subjectVS := vspace.SpacesToBitmap([]vspace.Space{*b.subject}, def)

	var objectVS []byte
	if b.object != nil {
		objectVS = vspace.SpacesToBitmap([]vspace.Space{*b.object}, def)
	} else {
		objectVS = make([]byte, bitmapNBytes)
		bitmap.SetAll(objectVS)
	}

	return &EventHandler{
		data: Data{
			Event:        b.event,
			Attribute:    b.attribute,
			FromObject:   b.fromObject,
			PrimaryTree:  b.primaryTree,
			SubjectVS:    subjectVS,
			ObjectVS:     objectVS,
			bitmapNBytes: bitmapNBytes,
		},
		handler: b.handler,
	}, nil
}

// EventName returns the event name this builder's handler reacts to.
func (b *Builder) EventName() string { return b.event }
