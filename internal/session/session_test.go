package session_test

import (
	"sync"
	"testing"

	"github.com/medusa-ds9/medusad/internal/config"
	"github.com/medusa-ds9/medusad/internal/schema"
	"github.com/medusa-ds9/medusad/internal/session"
	"github.com/medusa-ds9/medusad/internal/wire"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	mu     sync.Mutex
	writes [][]byte
	notify chan []byte
}

func (w *captureWriter) Write(data []byte) {
	frame := append([]byte(nil), data...)

	w.mu.Lock()
	w.writes = append(w.writes, frame)
	w.mu.Unlock()

	if w.notify != nil {
		w.notify <- frame
	}
}

func (w *captureWriter) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.writes)
}

func (w *captureWriter) last() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes[len(w.writes)-1]
}

func emptyConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.NewBuilder().Build()
	require.NoError(t, err)
	return cfg
}

func TestRequestIDStartsAt111(t *testing.T) {
	w := &captureWriter{}
	ctx := session.New(w, emptyConfig(t))
	require.Equal(t, uint64(111), ctx.NewRequestID())
	require.Equal(t, uint64(112), ctx.NewRequestID())
}

func TestRegisterAndInstantiateClass(t *testing.T) {
	w := &captureWriter{}
	ctx := session.New(w, emptyConfig(t))

	class := schema.NewClass(wire.ClassHeader{ID: 1, Size: 4, Name: "process"})
	class.PushAttribute(wire.AttributeHeader{Offset: 0, Length: 4, Type: wire.TypeUnsigned, Name: "pid"})
	ctx.RegisterClass(class)

	id, ok := ctx.ClassIDFromName("process")
	require.True(t, ok)
	require.Equal(t, uint64(1), id)

	inst, ok := ctx.EmptyClassFromID(1)
	require.True(t, ok)
	require.NotSame(t, class, inst)
}

func TestUpdateObjectNoWaitWritesFrame(t *testing.T) {
	w := &captureWriter{}
	ctx := session.New(w, emptyConfig(t))

	class := schema.NewClass(wire.ClassHeader{ID: 7, Size: 4, Name: "process"})
	class.PushAttribute(wire.AttributeHeader{Offset: 0, Length: 4, Type: wire.TypeUnsigned, Name: "pid"})

	ctx.UpdateObjectNoWait(class)
	require.Equal(t, 1, w.len())

	dec := wire.NewDecoder(w.last())
	tag, err := dec.DecodeU64()
	require.NoError(t, err)
	require.Equal(t, wire.TagUpdateRequest, tag)
}

func TestResolveUpdateAnswerUnblocksWaiter(t *testing.T) {
	w := &captureWriter{notify: make(chan []byte, 1)}
	ctx := session.New(w, emptyConfig(t))

	class := schema.NewClass(wire.ClassHeader{ID: 7, Size: 4, Name: "process"})
	class.PushAttribute(wire.AttributeHeader{Offset: 0, Length: 4, Type: wire.TypeUnsigned, Name: "pid"})

	done := make(chan session.UpdateAnswer, 1)
	go func() {
		ans, err := ctx.UpdateObject(class)
		require.NoError(t, err)
		done <- ans
	}()

	// Recover the request id assigned inside UpdateObject from the frame
	// it wrote, so the answer can be correlated back to it.
	frame := <-w.notify
	dec := wire.NewDecoder(frame)
	_, _ = dec.DecodeU64() // tag
	_, _ = dec.DecodeU64() // class id
	reqID, err := dec.DecodeU64()
	require.NoError(t, err)

	ctx.ResolveUpdateAnswer(session.UpdateAnswer{ClassID: 7, MsgSeq: reqID, Status: 0})

	ans := <-done
	require.Equal(t, int32(0), ans.Status)
}
