package schema_test

import (
	"testing"

	"github.com/medusa-ds9/medusad/internal/schema"
	"github.com/medusa-ds9/medusad/internal/wire"
	"github.com/stretchr/testify/require"
)

func TestCollapseObjectIfIdentical(t *testing.T) {
	h := wire.EventTypeHeader{EvSub: 3, EvObj: 3, Name0: "process", Name1: "process"}
	schema.CollapseObjectIfIdentical(&h)
	require.Equal(t, uint64(0), h.EvObj)
	require.Equal(t, "", h.Name1)
}

func TestCollapseObjectIfIdenticalLeavesDistinctClassesAlone(t *testing.T) {
	h := wire.EventTypeHeader{EvSub: 3, EvObj: 4, Name0: "process", Name1: "file"}
	schema.CollapseObjectIfIdentical(&h)
	require.Equal(t, uint64(4), h.EvObj)
}

func TestNewEventTypeDecodesActBit(t *testing.T) {
	// top bit (object monitoring) set, triggered-by-object bit clear, index 5
	h := wire.EventTypeHeader{ActBit: (1 << 15) | 5}
	et := schema.NewEventType(h)

	require.Equal(t, schema.MonitoringObject, et.Monitoring)
	require.False(t, et.TriggeredByObject)
	require.Equal(t, uint16(5), et.MonitoringBit)
}

func TestClassInstantiateIsIndependent(t *testing.T) {
	c := schema.NewClass(wire.ClassHeader{ID: 1, Size: 4, Name: "process"})
	c.PushAttribute(wire.AttributeHeader{Offset: 0, Length: 4, Type: wire.TypeUnsigned, Name: "pid"})

	inst1 := c.Instantiate()
	require.NoError(t, inst1.Attrs().Set("pid", []byte{1, 0, 0, 0}))

	inst2 := c.Instantiate()
	data, ok := inst2.Attrs().Get("pid")
	require.True(t, ok)
	require.Equal(t, []byte{0, 0, 0, 0}, data)
}
