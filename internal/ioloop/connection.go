// Package ioloop owns the device's single reader and single writer: the
// greeting/version handshake, frame tag dispatch (schema commands vs.
// authorization events), per-event handler dispatch, and answer
// correlation against internal/session's pending-request tables.
package ioloop

import (
	"context"
	"io"
	"sync"

	"github.com/medusa-ds9/medusad/internal/clog"
	"github.com/medusa-ds9/medusad/internal/config"
	"github.com/medusa-ds9/medusad/internal/errs"
	"github.com/medusa-ds9/medusad/internal/handler"
	"github.com/medusa-ds9/medusad/internal/metrics"
	"github.com/medusa-ds9/medusad/internal/schema"
	"github.com/medusa-ds9/medusad/internal/session"
	"github.com/medusa-ds9/medusad/internal/wire"
	"golang.org/x/sync/errgroup"
)

// DefaultAnswer is the answer returned when no registered handler claims
// an event. The specification fixes this as a compile-time policy choice,
// not a runtime configuration knob.
const DefaultAnswer = wire.AnswerAllow

// Connection owns one device's worth of protocol state: the blocking
// reader (exclusively owned by the goroutine Run starts), the writer
// queue, and the shared session context.
type Connection struct {
	r   io.Reader
	wr  *writer
	ctx *session.Context
	log clog.Clog
}

// Open performs the greeting and protocol-version handshake over r/w and
// returns a Connection ready to Run. cfg is the already-built policy
// configuration.
func Open(r io.Reader, w io.Writer, cfg *config.Config, log clog.Clog) (*Connection, error) {
	greeting, err := wire.ReadU64(r)
	if err != nil {
		return nil, errs.Wrap(errs.Connection, err, "ioloop: reading greeting")
	}

	switch greeting {
	case wire.GreetingNativeByteOrder:
		log.Debug("ioloop: native byte order greeting")
	case wire.GreetingReversedByteOrder:
		return nil, errs.New(errs.Connection, "ioloop: reversed byte order is not supported (no endianness conversion)")
	default:
		return nil, errs.New(errs.Connection, "ioloop: unknown greeting 0x%016x", greeting)
	}

	version, err := wire.ReadU64(r)
	if err != nil {
		return nil, errs.Wrap(errs.Connection, err, "ioloop: reading protocol version")
	}
	if version != wire.ProtocolVersion {
		return nil, errs.New(errs.Connection, "ioloop: unsupported protocol version %d", version)
	}

	wr := newWriter(w, log)
	ctx := session.New(wr, cfg)

	return &Connection{r: r, wr: wr, ctx: ctx, log: log}, nil
}

// Context returns the connection's shared session state.
func (c *Connection) Context() *session.Context { return c.ctx }

// Run blocks, reading frames and dispatching them, until the reader
// errors or the given context is canceled. Handler goroutines spawned for
// individual authorization events are intentionally not part of this
// errgroup: a handler awaiting an answer that never arrives is allowed to
// leak until process exit, per the connection's resource model.
func (c *Connection) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	var closeOnce sync.Once
	closeWriter := func() { closeOnce.Do(c.wr.close) }

	g.Go(c.wr.run)
	g.Go(func() error {
		<-gctx.Done()
		closeWriter()
		return nil
	})
	g.Go(func() error {
		err := c.readLoop(gctx)
		closeWriter()
		return err
	})

	return g.Wait()
}

func (c *Connection) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		tag, err := wire.ReadU64(c.r)
		if err != nil {
			return errs.Wrap(errs.IO, err, "ioloop: reading frame tag")
		}

		if tag == 0 {
			cmd, err := wire.ReadU32(c.r)
			if err != nil {
				return errs.Wrap(errs.IO, err, "ioloop: reading command")
			}
			if err := c.dispatchCommand(cmd); err != nil {
				metrics.DecodeErrors.WithLabelValues(errs.KindOf(err).String()).Inc()
				return err
			}
			continue
		}

		authData, err := c.acquireAuthReqData(tag)
		if err != nil {
			metrics.DecodeErrors.WithLabelValues(errs.KindOf(err).String()).Inc()
			return err
		}
		c.handleEvent(authData)
	}
}

func (c *Connection) dispatchCommand(cmd uint32) error {
	switch cmd {
	case wire.CommandKClassDef:
		return c.registerClass()
	case wire.CommandEvTypeDef:
		return c.registerEventType()
	case wire.CommandUpdateAnswer:
		return c.handleUpdateAnswer()
	case wire.CommandFetchAnswer:
		return c.handleFetchAnswer()
	case wire.CommandFetchError:
		c.log.Warn("ioloop: fetch error reported by kernel")
		return nil
	default:
		return errs.New(errs.Communication, "ioloop: unknown command 0x%x", cmd)
	}
}

func (c *Connection) registerClass() error {
	h, err := wire.ReadClassHeader(c.r)
	if err != nil {
		return errs.Wrap(errs.Parse, err, "ioloop: reading class header")
	}
	class := schema.NewClass(h)

	attrs, err := wire.ReadAttributeHeaders(c.r)
	if err != nil {
		return errs.Wrap(errs.Parse, err, "ioloop: reading class attributes")
	}
	for _, a := range attrs {
		class.PushAttribute(a)
	}

	c.ctx.RegisterClass(class)
	return nil
}

func (c *Connection) registerEventType() error {
	h, err := wire.ReadEventTypeHeader(c.r)
	if err != nil {
		return errs.Wrap(errs.Parse, err, "ioloop: reading event type header")
	}
	schema.CollapseObjectIfIdentical(&h)

	evtype := schema.NewEventType(h)
	attrs, err := wire.ReadAttributeHeaders(c.r)
	if err != nil {
		return errs.Wrap(errs.Parse, err, "ioloop: reading event type attributes")
	}
	for _, a := range attrs {
		evtype.PushAttribute(a)
	}

	c.ctx.RegisterEventType(evtype)
	return nil
}

// authRequestData bundles one decoded authorization request.
type authRequestData struct {
	requestID uint64
	evtype    *schema.EventType
	subject   *schema.Class
	object    *schema.Class
}

func (c *Connection) acquireAuthReqData(evtypeID uint64) (authRequestData, error) {
	evtype, ok := c.ctx.EmptyEvtypeFromID(evtypeID)
	if !ok {
		return authRequestData{}, errs.New(errs.Communication, "ioloop: unknown event type id 0x%x", evtypeID)
	}

	requestID, err := wire.ReadU64(c.r)
	if err != nil {
		return authRequestData{}, errs.Wrap(errs.IO, err, "ioloop: reading request id")
	}

	evRaw, err := readExact(c.r, int(evtype.Header.Size))
	if err != nil {
		return authRequestData{}, err
	}
	if err := evtype.Attrs().SetFromRaw(evRaw); err != nil {
		return authRequestData{}, errs.Wrap(errs.Attribute, err, "ioloop: event attributes")
	}

	subject, ok := c.ctx.EmptyClassFromID(evtype.Header.EvSub)
	if !ok {
		return authRequestData{}, errs.New(errs.Communication, "ioloop: unknown subject class id 0x%x", evtype.Header.EvSub)
	}
	subRaw, err := readExact(c.r, int(subject.Header.Size))
	if err != nil {
		return authRequestData{}, err
	}
	if err := subject.Attrs().SetFromRaw(subRaw); err != nil {
		return authRequestData{}, errs.Wrap(errs.Attribute, err, "ioloop: subject attributes")
	}

	var object *schema.Class
	if evtype.HasObject {
		object, ok = c.ctx.EmptyClassFromID(evtype.Header.EvObj)
		if !ok {
			return authRequestData{}, errs.New(errs.Communication, "ioloop: unknown object class id 0x%x", evtype.Header.EvObj)
		}
		objRaw, err := readExact(c.r, int(object.Header.Size))
		if err != nil {
			return authRequestData{}, err
		}
		if err := object.Attrs().SetFromRaw(objRaw); err != nil {
			return authRequestData{}, errs.Wrap(errs.Attribute, err, "ioloop: object attributes")
		}
	}

	return authRequestData{requestID: requestID, evtype: evtype, subject: subject, object: object}, nil
}

func readExact(r io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errs.Wrap(errs.IO, err, "ioloop: short read")
	}
	return b, nil
}

// handleEvent spawns a detached goroutine that resolves the first
// applicable handler (if any), falls back to DefaultAnswer otherwise, and
// writes the decision answer. It does not participate in Run's errgroup.
func (c *Connection) handleEvent(auth authRequestData) {
	go func() {
		eventName := auth.evtype.Header.Name
		handlers := c.ctx.Config().HandlersByEvent(eventName)

		answer := DefaultAnswer
		for _, eh := range handlers {
			if eh.IsApplicable(auth.subject, auth.object) {
				a := eh.Handle(c.ctx, handler.Args{EvType: auth.evtype, Subject: auth.subject, Object: auth.object})
				answer = handlerAnswerToWire(a)
				break
			}
		}

		metrics.EventsDispatched.WithLabelValues(eventName, answerLabel(answer)).Inc()

		enc := wire.NewEncoder().AppendU64(wire.TagAuthAnswer).AppendU64(auth.requestID).AppendU16(uint16(answer))
		c.wr.Write(enc.Bytes())
	}()
}

func handlerAnswerToWire(a handler.Answer) wire.Answer {
	switch a {
	case handler.AnswerOK:
		return wire.AnswerAllow
	case handler.AnswerSkip:
		return wire.AnswerSkip
	default:
		return wire.AnswerDeny
	}
}

func answerLabel(a wire.Answer) string {
	switch a {
	case wire.AnswerAllow:
		return "allow"
	case wire.AnswerDeny:
		return "deny"
	case wire.AnswerSkip:
		return "skip"
	case wire.AnswerYes:
		return "yes"
	default:
		return "err"
	}
}

func (c *Connection) handleUpdateAnswer() error {
	classID, err := wire.ReadU64(c.r)
	if err != nil {
		return errs.Wrap(errs.IO, err, "ioloop: reading update answer class id")
	}
	msgSeq, err := wire.ReadU64(c.r)
	if err != nil {
		return errs.Wrap(errs.IO, err, "ioloop: reading update answer msg seq")
	}
	statusRaw, err := readExact(c.r, 4)
	if err != nil {
		return err
	}
	status, err := wire.NewDecoder(statusRaw).DecodeI32()
	if err != nil {
		return errs.Wrap(errs.Parse, err, "ioloop: decoding update answer status")
	}

	c.ctx.ResolveUpdateAnswer(session.UpdateAnswer{ClassID: classID, MsgSeq: msgSeq, Status: status})
	return nil
}

// handleFetchAnswer implements the two-stage fetch-answer parse: the
// payload's length is not encoded in the frame, it is determined by
// looking up the already-registered class's packed size.
func (c *Connection) handleFetchAnswer() error {
	classID, err := wire.ReadU64(c.r)
	if err != nil {
		return errs.Wrap(errs.IO, err, "ioloop: reading fetch answer class id")
	}
	msgSeq, err := wire.ReadU64(c.r)
	if err != nil {
		return errs.Wrap(errs.IO, err, "ioloop: reading fetch answer msg seq")
	}

	class, ok := c.ctx.ClassByID(classID)
	if !ok {
		return errs.New(errs.Communication, "ioloop: fetch answer for unknown class id 0x%x", classID)
	}

	data, err := readExact(c.r, int(class.Header.Size))
	if err != nil {
		return err
	}

	c.ctx.ResolveFetchAnswer(session.FetchAnswer{ClassID: classID, MsgSeq: msgSeq, Data: data})
	return nil
}
