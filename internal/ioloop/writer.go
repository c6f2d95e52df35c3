package ioloop

import (
	"io"

	"github.com/medusa-ds9/medusad/internal/clog"
)

// writer owns the device's write half exclusively, draining a queue
// buffered to 256 entries and writing each buffer in full, matching the
// kernel module's single-writer convention. The queue is bounded: Write
// blocks while 256 buffers are waiting.
type writer struct {
	w     io.Writer
	queue chan []byte
	log   clog.Clog
}

func newWriter(w io.Writer, log clog.Clog) *writer {
	return &writer{w: w, queue: make(chan []byte, 256), log: log}
}

// Write enqueues data for the writer goroutine. It satisfies
// session.Writer.
func (wr *writer) Write(data []byte) {
	wr.queue <- data
}

// run drains the queue until it's closed, writing each buffer fully.
func (wr *writer) run() error {
	for data := range wr.queue {
		if _, err := wr.w.Write(data); err != nil {
			wr.log.Error("writer: write failed: %v", err)
			return err
		}
	}
	return nil
}

// close stops accepting further writes once drained.
func (wr *writer) close() {
	close(wr.queue)
}
