package ioloop

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/medusa-ds9/medusad/internal/clog"
	"github.com/medusa-ds9/medusad/internal/config"
	"github.com/medusa-ds9/medusad/internal/wire"
	"github.com/stretchr/testify/require"
)

func appendAttrEnd(enc *wire.Encoder) *wire.Encoder {
	return enc.AppendI16(0).AppendI16(0).AppendByte(wire.TypeEnd).AppendFixedString("", wire.AttrNameMax)
}

func appendAttrHeader(enc *wire.Encoder, offset, length int16, typ byte, name string) *wire.Encoder {
	return enc.AppendI16(offset).AppendI16(length).AppendByte(typ).AppendFixedString(name, wire.AttrNameMax)
}

func buildHandshake() []byte {
	return wire.NewEncoder().
		AppendU64(wire.GreetingNativeByteOrder).
		AppendU64(wire.ProtocolVersion).
		Bytes()
}

func buildClassDefFrame() []byte {
	enc := wire.NewEncoder().
		AppendU64(0).
		AppendU32(wire.CommandKClassDef).
		AppendU64(1).
		AppendI16(4).
		AppendFixedString("proc", wire.ClassNameMax)
	appendAttrHeader(enc, 0, 4, wire.TypeUnsigned, "pid")
	appendAttrEnd(enc)
	return enc.Bytes()
}

func buildEvTypeDefFrame() []byte {
	enc := wire.NewEncoder().
		AppendU64(0).
		AppendU32(wire.CommandEvTypeDef).
		AppendU64(1).  // evid
		AppendU16(0).  // size (no event-owned attributes)
		AppendU16(0).  // actbit: monitoring subject, not triggered by object, bit 0
		AppendU64(1).  // ev_sub -> class "proc"
		AppendU64(0).  // ev_obj -> none
		AppendFixedString("open", wire.EvNameMax).
		AppendFixedString("", wire.AttrNameMax).
		AppendFixedString("", wire.AttrNameMax)
	appendAttrEnd(enc)
	return enc.Bytes()
}

func buildAuthEventFrame(requestID uint64, pid uint32) []byte {
	enc := wire.NewEncoder().
		AppendU64(1). // tag == evtype id
		AppendU64(requestID)
	pidBuf := wire.NewEncoder().AppendU32(pid).Bytes()
	enc.AppendBytes(pidBuf) // subject's raw attribute data (4 bytes, class "proc")
	return enc.Bytes()
}

func emptyConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.NewBuilder().Build()
	require.NoError(t, err)
	return cfg
}

func TestOpenRejectsReversedByteOrder(t *testing.T) {
	in := wire.NewEncoder().AppendU64(wire.GreetingReversedByteOrder).Bytes()
	_, err := Open(bytes.NewReader(in), &bytes.Buffer{}, emptyConfig(t), clog.NewLogger())
	require.Error(t, err)
}

func TestOpenRejectsUnknownVersion(t *testing.T) {
	in := wire.NewEncoder().AppendU64(wire.GreetingNativeByteOrder).AppendU64(99).Bytes()
	_, err := Open(bytes.NewReader(in), &bytes.Buffer{}, emptyConfig(t), clog.NewLogger())
	require.Error(t, err)
}

func TestReadLoopRegistersSchemaAndAnswersEvent(t *testing.T) {
	var in bytes.Buffer
	in.Write(buildHandshake())
	in.Write(buildClassDefFrame())
	in.Write(buildEvTypeDefFrame())
	in.Write(buildAuthEventFrame(112, 4242))

	c, err := Open(&in, &bytes.Buffer{}, emptyConfig(t), clog.NewLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- c.readLoop(ctx) }()

	var frame []byte
	select {
	case frame = <-c.wr.queue:
	case <-time.After(2 * time.Second):
		t.Fatal("no answer frame written in time")
	}

	dec := wire.NewDecoder(frame)
	tag, err := dec.DecodeU64()
	require.NoError(t, err)
	require.Equal(t, wire.TagAuthAnswer, tag)
	requestID, err := dec.DecodeU64()
	require.NoError(t, err)
	require.Equal(t, uint64(112), requestID)
	answer, err := dec.DecodeU16()
	require.NoError(t, err)
	require.Equal(t, uint16(wire.AnswerAllow), answer)

	cancel()
	<-errCh
}

func TestHandleFetchAnswerReadsClassSizedPayload(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		pw.Write(buildHandshake())
		pw.Write(buildClassDefFrame())
	}()

	c, err := Open(pr, &bytes.Buffer{}, emptyConfig(t), clog.NewLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	readLoopErr := make(chan error, 1)
	go func() { readLoopErr <- c.readLoop(ctx) }()

	type fetchResult struct {
		data []byte
		err  error
	}
	resultCh := make(chan fetchResult, 1)
	go func() {
		ans, ferr := c.ctx.FetchObject(1)
		resultCh <- fetchResult{data: ans.Data, err: ferr}
	}()

	// The class-registration frame must be consumed before the fetch
	// answer arrives, since FetchObject's request id (111, the first id
	// ever handed out) only becomes known once FetchObject has run.
	time.Sleep(50 * time.Millisecond)

	payload := wire.NewEncoder().AppendU32(7).Bytes()
	fetchAnswerFrame := wire.NewEncoder().
		AppendU64(0).
		AppendU32(wire.CommandFetchAnswer).
		AppendU64(1).   // class id
		AppendU64(111). // msg seq == request id
		AppendBytes(payload).
		Bytes()
	go pw.Write(fetchAnswerFrame)

	select {
	case r := <-resultCh:
		require.NoError(t, r.err)
		require.Equal(t, payload, r.data)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch answer was never resolved")
	}

	cancel()
	pw.Close()
	<-readLoopErr
}
