package bitmap_test

import (
	"testing"

	"github.com/medusa-ds9/medusad/internal/bitmap"
	"github.com/stretchr/testify/require"
)

func TestSetClearBit(t *testing.T) {
	b := make([]byte, 2)
	bitmap.SetBit(b, 0)
	bitmap.SetBit(b, 9)
	require.Equal(t, []byte{0x01, 0x02}, b)

	bitmap.ClearBit(b, 0)
	require.Equal(t, []byte{0x00, 0x02}, b)
}

func TestSetAllClearAll(t *testing.T) {
	b := make([]byte, 3)
	bitmap.SetAll(b)
	require.True(t, bitmap.All(b))
	require.True(t, bitmap.Any(b))

	bitmap.ClearAll(b)
	require.True(t, bitmap.None(b))
	require.False(t, bitmap.Any(b))
}

func TestAndTruncatesToShorter(t *testing.T) {
	left := []byte{0xff, 0xff, 0xff}
	right := []byte{0x0f, 0xf0}

	got := bitmap.And(left, right)
	require.Equal(t, []byte{0x0f, 0xf0}, got)
}

func TestNBytes(t *testing.T) {
	require.Equal(t, 0, bitmap.NBytes(0))
	require.Equal(t, 1, bitmap.NBytes(1))
	require.Equal(t, 1, bitmap.NBytes(8))
	require.Equal(t, 2, bitmap.NBytes(9))
}
