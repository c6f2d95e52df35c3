// Package vspace implements the virtual-space model: named spaces resolved
// to monotonic bit ids, and the four-bitmap membership record attached to
// every policy-tree node.
package vspace

import (
	"fmt"

	"github.com/medusa-ds9/medusad/internal/bitmap"
)

// Space selects either every bit (All) or a single named bit (ByName). An
// empty ByName is a deliberate no-op, mirroring a builder call with no
// names supplied.
type Space struct {
	all  bool
	name string
}

// All selects every defined space.
func All() Space { return Space{all: true} }

// ByName selects a single named space.
func ByName(name string) Space { return Space{name: name} }

// AccessType indexes the four bitmaps held by a VirtualSpace.
type AccessType int

const (
	Member AccessType = iota
	Read
	Write
	See
)

// Def assigns monotonic bit ids to space names on first reference.
type Def struct {
	idCount  int
	nameToID map[string]int
	idToName map[int]string
}

// NewDef returns an empty Def.
func NewDef() *Def {
	return &Def{nameToID: make(map[string]int), idToName: make(map[int]string)}
}

// Define assigns a bit id to name if it doesn't already have one.
func (d *Def) Define(name string) {
	if _, ok := d.nameToID[name]; ok {
		return
	}
	id := d.idCount
	d.idCount++
	d.nameToID[name] = id
	d.idToName[id] = name
}

// ID returns the bit id assigned to name.
func (d *Def) ID(name string) (int, bool) {
	id, ok := d.nameToID[name]
	return id, ok
}

// Name returns the space name assigned to a bit id.
func (d *Def) Name(id int) (string, bool) {
	name, ok := d.idToName[id]
	return name, ok
}

// NameToID returns a copy of the full name-to-id mapping.
func (d *Def) NameToID() map[string]int {
	out := make(map[string]int, len(d.nameToID))
	for k, v := range d.nameToID {
		out[k] = v
	}
	return out
}

// IDToName returns a copy of the full id-to-name mapping.
func (d *Def) IDToName() map[int]string {
	out := make(map[int]string, len(d.idToName))
	for k, v := range d.idToName {
		out[k] = v
	}
	return out
}

// BitmapNBytes returns the number of bytes needed to represent every
// defined space as a bitmap.
func (d *Def) BitmapNBytes() int {
	return bitmap.NBytes(d.idCount)
}

// SpacesToBitmap renders spaces as a bitmap sized for def. A Space.All
// entry sets every bit (including currently-unused trailing bits, which
// the kernel ignores); an undefined ByName name panics, since it indicates
// a configuration bug caught at build time, not a runtime condition.
func SpacesToBitmap(spaces []Space, def *Def) []byte {
	out := make([]byte, def.BitmapNBytes())
	for _, space := range spaces {
		if space.all {
			bitmap.SetAll(out)
			continue
		}
		if space.name == "" {
			continue
		}
		id, ok := def.ID(space.name)
		if !ok {
			panic(fmt.Sprintf("vspace: no such space: %s", space.name))
		}
		bitmap.SetBit(out, id)
	}
	return out
}

// VirtualSpace holds the four membership bitmaps a policy-tree node grants
// to a subject that enters it.
type VirtualSpace struct {
	member []byte
	read   []byte
	write  []byte
	see    []byte
}

// SetMember sets the membership bitmap from spaces.
func (vs *VirtualSpace) SetMember(def *Def, spaces []Space) { vs.member = SpacesToBitmap(spaces, def) }

// SetRead sets the read bitmap from spaces.
func (vs *VirtualSpace) SetRead(def *Def, spaces []Space) { vs.read = SpacesToBitmap(spaces, def) }

// SetWrite sets the write bitmap from spaces.
func (vs *VirtualSpace) SetWrite(def *Def, spaces []Space) { vs.write = SpacesToBitmap(spaces, def) }

// SetSee sets the see bitmap from spaces.
func (vs *VirtualSpace) SetSee(def *Def, spaces []Space) { vs.see = SpacesToBitmap(spaces, def) }

// MemberBytes returns a copy of the membership bitmap.
func (vs VirtualSpace) MemberBytes() []byte { return append([]byte(nil), vs.member...) }

// ReadBytes returns a copy of the read bitmap.
func (vs VirtualSpace) ReadBytes() []byte { return append([]byte(nil), vs.read...) }

// WriteBytes returns a copy of the write bitmap.
func (vs VirtualSpace) WriteBytes() []byte { return append([]byte(nil), vs.write...) }

// SeeBytes returns a copy of the see bitmap.
func (vs VirtualSpace) SeeBytes() []byte { return append([]byte(nil), vs.see...) }

// Bitmap returns the bitmap for the given access type.
func (vs VirtualSpace) Bitmap(t AccessType) []byte {
	switch t {
	case Member:
		return vs.MemberBytes()
	case Read:
		return vs.ReadBytes()
	case Write:
		return vs.WriteBytes()
	case See:
		return vs.SeeBytes()
	default:
		panic("vspace: unknown access type")
	}
}
