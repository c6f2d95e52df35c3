package ioloop

import (
	"bytes"
	"testing"
	"time"

	"github.com/medusa-ds9/medusad/internal/clog"
	"github.com/stretchr/testify/require"
)

func TestWriterDrainsQueueInOrder(t *testing.T) {
	var buf bytes.Buffer
	w := newWriter(&buf, clog.NewLogger())

	done := make(chan error, 1)
	go func() { done <- w.run() }()

	w.Write([]byte{1, 2, 3})
	w.Write([]byte{4, 5})
	w.close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("writer did not drain in time")
	}

	require.Equal(t, []byte{1, 2, 3, 4, 5}, buf.Bytes())
}

func TestWriterPropagatesWriteError(t *testing.T) {
	w := newWriter(failingWriter{}, clog.NewLogger())

	done := make(chan error, 1)
	go func() { done <- w.run() }()

	w.Write([]byte{1})

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("writer did not report the failure in time")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errWriteFailed
}

var errWriteFailed = bytes.ErrTooLarge
