// Package session holds the shared, concurrently-accessed connection
// state: the dynamic class/event-type registries the kernel populates at
// startup, and the pending fetch/update request tables correlating
// outstanding requests to their eventual answers.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/medusa-ds9/medusad/internal/config"
	"github.com/medusa-ds9/medusad/internal/errs"
	"github.com/medusa-ds9/medusad/internal/metrics"
	"github.com/medusa-ds9/medusad/internal/policytree"
	"github.com/medusa-ds9/medusad/internal/schema"
	"github.com/medusa-ds9/medusad/internal/wire"
)

// Writer is the minimal interface the session needs to emit a frame;
// internal/ioloop's writer goroutine implements it.
type Writer interface {
	Write(data []byte)
}

// UpdateAnswer is the decoded MEDUSA_COMM_UPDATE_ANSWER payload.
type UpdateAnswer struct {
	ClassID uint64
	MsgSeq  uint64
	Status  int32
}

// FetchAnswer is the decoded MEDUSA_COMM_FETCH_ANSWER payload. Its Data
// length is determined by the already-registered class's packed size, not
// by anything in the frame itself — see handleFetchAnswer in internal/ioloop.
type FetchAnswer struct {
	ClassID uint64
	MsgSeq  uint64
	Data    []byte
}

// requestIDSeed is the value the shared request-id counter is primed to so
// that the first Add(1) yields 111, matching the kernel module's own
// convention (the Rust original stores 111 and returns the pre-increment
// value of its first fetch_add; atomic.Uint64.Add returns the
// post-increment value, so the Go counter is primed one lower).
const requestIDSeed = 110

// Context is the shared, concurrency-safe state backing one connection.
// It satisfies internal/handler.Context.
type Context struct {
	mu          sync.RWMutex
	classes     map[uint64]*schema.Class
	classNameID map[string]uint64
	evtypes     map[uint64]*schema.EventType
	evtypeNameID map[string]uint64

	pendingMu      sync.Mutex
	fetchRequests  map[uint64]chan FetchAnswer
	updateRequests map[uint64]chan UpdateAnswer

	requestID atomic.Uint64

	writer Writer
	config *config.Config
}

// New returns an empty Context bound to writer and the built policy config.
func New(writer Writer, cfg *config.Config) *Context {
	c := &Context{
		classes:        make(map[uint64]*schema.Class),
		classNameID:    make(map[string]uint64),
		evtypes:        make(map[uint64]*schema.EventType),
		evtypeNameID:   make(map[string]uint64),
		fetchRequests:  make(map[uint64]chan FetchAnswer),
		updateRequests: make(map[uint64]chan UpdateAnswer),
		writer:         writer,
		config:         cfg,
	}
	c.requestID.Store(requestIDSeed)
	return c
}

// Config returns the bound policy config.
func (c *Context) Config() *config.Config { return c.config }

// TreeByName implements handler.Context.
func (c *Context) TreeByName(name string) (*policytree.Tree, bool) {
	return c.config.TreeByName(name)
}

// NodeByCinfo implements handler.Context.
func (c *Context) NodeByCinfo(cinfo int) (*policytree.Node, bool) {
	return c.config.NodeByCinfo(cinfo)
}

// RegisterClass stores a newly kernel-registered class, indexed by both id
// and name.
func (c *Context) RegisterClass(class *schema.Class) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.classes[class.Header.ID] = class
	c.classNameID[class.Header.Name] = class.Header.ID
}

// RegisterEventType stores a newly kernel-registered event type, indexed
// by both id and name.
func (c *Context) RegisterEventType(evtype *schema.EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evtypes[evtype.Header.EvID] = evtype
	c.evtypeNameID[evtype.Header.Name] = evtype.Header.EvID
}

// ClassByID returns the registered class template for id.
func (c *Context) ClassByID(id uint64) (*schema.Class, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.classes[id]
	return cl, ok
}

// EmptyClassFromID returns a fresh, empty instance of the class registered
// under id.
func (c *Context) EmptyClassFromID(id uint64) (*schema.Class, bool) {
	cl, ok := c.ClassByID(id)
	if !ok {
		return nil, false
	}
	return cl.Instantiate(), true
}

// EmptyEvtypeFromID returns a fresh, empty instance of the event type
// registered under id.
func (c *Context) EmptyEvtypeFromID(id uint64) (*schema.EventType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	et, ok := c.evtypes[id]
	if !ok {
		return nil, false
	}
	return et.Instantiate(), true
}

// ClassIDFromName resolves a class name to its registered id.
func (c *Context) ClassIDFromName(name string) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.classNameID[name]
	return id, ok
}

// EvtypeIDFromName resolves an event-type name to its registered id.
func (c *Context) EvtypeIDFromName(name string) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.evtypeNameID[name]
	return id, ok
}

// NewRequestID returns the next request id from the shared counter.
func (c *Context) NewRequestID() uint64 {
	return c.requestID.Add(1)
}

func buildUpdateRequest(requestID, classID uint64, data []byte) []byte {
	return wire.NewEncoder().
		AppendU64(wire.TagUpdateRequest).
		AppendU64(classID).
		AppendU64(requestID).
		AppendBytes(data).
		Bytes()
}

func buildFetchRequest(requestID, classID uint64) []byte {
	return wire.NewEncoder().
		AppendU64(wire.TagFetchRequest).
		AppendU64(classID).
		AppendU64(requestID).
		Bytes()
}

// UpdateObjectNoWait fires an update request for subject without waiting
// for its answer, matching the kernel module's own fire-and-forget
// convention for hierarchy-handler updates.
func (c *Context) UpdateObjectNoWait(subject *schema.Class) {
	requestID := c.NewRequestID()
	data := subject.Attrs().Pack(int(subject.Header.Size))
	c.writer.Write(buildUpdateRequest(requestID, subject.Header.ID, data))
}

// UpdateObject sends an update request for subject and blocks until its
// answer arrives. It takes no context and has no timeout.
func (c *Context) UpdateObject(subject *schema.Class) (UpdateAnswer, error) {
	requestID := c.NewRequestID()
	ch := make(chan UpdateAnswer, 1)

	c.pendingMu.Lock()
	c.updateRequests[requestID] = ch
	c.pendingMu.Unlock()
	metrics.PendingRequests.WithLabelValues("update").Inc()

	start := time.Now()
	data := subject.Attrs().Pack(int(subject.Header.Size))
	c.writer.Write(buildUpdateRequest(requestID, subject.Header.ID, data))

	ans, ok := <-ch
	metrics.RequestLatency.WithLabelValues("update").Observe(time.Since(start).Seconds())
	if !ok {
		return UpdateAnswer{}, errs.New(errs.Communication, "session: update request %d channel closed", requestID)
	}
	return ans, nil
}

// FetchObject sends a fetch request for the class registered under
// classID and blocks until its answer arrives.
func (c *Context) FetchObject(classID uint64) (FetchAnswer, error) {
	requestID := c.NewRequestID()
	ch := make(chan FetchAnswer, 1)

	c.pendingMu.Lock()
	c.fetchRequests[requestID] = ch
	c.pendingMu.Unlock()
	metrics.PendingRequests.WithLabelValues("fetch").Inc()

	start := time.Now()
	c.writer.Write(buildFetchRequest(requestID, classID))

	ans, ok := <-ch
	metrics.RequestLatency.WithLabelValues("fetch").Observe(time.Since(start).Seconds())
	if !ok {
		return FetchAnswer{}, errs.New(errs.Communication, "session: fetch request %d channel closed", requestID)
	}
	return ans, nil
}

// ResolveUpdateAnswer delivers ans to its waiting UpdateObject caller, if
// any (no-op if the request was fired with UpdateObjectNoWait). An answer
// with no pending entry is dropped without being logged.
func (c *Context) ResolveUpdateAnswer(ans UpdateAnswer) {
	c.pendingMu.Lock()
	ch, ok := c.updateRequests[ans.MsgSeq]
	if ok {
		delete(c.updateRequests, ans.MsgSeq)
	}
	c.pendingMu.Unlock()

	if ok {
		metrics.PendingRequests.WithLabelValues("update").Dec()
		ch <- ans
		close(ch)
	}
}

// ResolveFetchAnswer delivers ans to its waiting FetchObject caller. An
// answer with no pending entry is dropped without being logged.
func (c *Context) ResolveFetchAnswer(ans FetchAnswer) {
	c.pendingMu.Lock()
	ch, ok := c.fetchRequests[ans.MsgSeq]
	if ok {
		delete(c.fetchRequests, ans.MsgSeq)
	}
	c.pendingMu.Unlock()

	if ok {
		metrics.PendingRequests.WithLabelValues("fetch").Dec()
		ch <- ans
		close(ch)
	}
}
