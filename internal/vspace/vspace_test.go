package vspace_test

import (
	"testing"

	"github.com/medusa-ds9/medusad/internal/vspace"
	"github.com/stretchr/testify/require"
)

func TestSpacesToBitmapAllAndByName(t *testing.T) {
	def := vspace.NewDef()
	def.Define("trusted")
	def.Define("untrusted")

	b := vspace.SpacesToBitmap([]vspace.Space{vspace.ByName("untrusted")}, def)
	require.Equal(t, 1, len(b))
	require.Equal(t, byte(0x02), b[0])

	all := vspace.SpacesToBitmap([]vspace.Space{vspace.All()}, def)
	require.Equal(t, byte(0xff), all[0])
}

func TestSpacesToBitmapPanicsOnUndefined(t *testing.T) {
	def := vspace.NewDef()
	require.Panics(t, func() {
		vspace.SpacesToBitmap([]vspace.Space{vspace.ByName("ghost")}, def)
	})
}

func TestVirtualSpaceSetters(t *testing.T) {
	def := vspace.NewDef()
	def.Define("trusted")

	var vs vspace.VirtualSpace
	vs.SetMember(def, []vspace.Space{vspace.ByName("trusted")})
	require.Equal(t, []byte{0x01}, vs.MemberBytes())
	require.Equal(t, []byte{0x01}, vs.Bitmap(vspace.Member))
}
