// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package newb is a composable network-protocol stack for an actor-style
// endpoint. A Newb owns one transport.Transport and one stack.Stack and
// routes bytes between them: read events flow transport -> stack -> a
// caller-supplied Handler; write events flow a HeaderWriter -> stack ->
// transport.
//
// The scheduling model is single-threaded cooperative per Newb (spec.md
// §5): no method here may be called concurrently for the same Newb, and
// none of them block except through Transport.ReadSome/WriteSome, whose
// scheduling belongs to the caller's runtime.
package newb

import (
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"code.hybscloud.com/newb/layer"
	"code.hybscloud.com/newb/stack"
	"code.hybscloud.com/newb/timer"
	"code.hybscloud.com/newb/transport"
)

// ErrUnexpectedMessage means a read or timeout event ran the layer stack
// to completion without delivering anything: a layer deferred (buffered
// an out-of-order fragment, armed a timeout that hasn't fired yet, or
// silently dropped a stale duplicate). It is the error every one of the
// spec's end-to-end scenarios (S2, S5, S6) expects. Delivery is tracked
// independent of any layer's return value (see the delivered field),
// since a wrapping layer's drain can call Handle zero or more times on
// top of whatever its own Read/Timeout call already delivered.
var ErrUnexpectedMessage = errors.New("newb: unexpected message")

// Handler is the application-level hook a Newb dispatches delivered
// messages to. It stands in for the spec's virtual handle(Message&):
// Go has no method override, so a concrete application type satisfies
// this interface and is installed at construction instead of subclassed.
type Handler interface {
	Handle(msg layer.Message)
}

// Newb owns one connection: a transport and a composed layer stack.
type Newb struct {
	transport transport.Transport
	stack     *stack.Stack
	handler   Handler
	timer     timer.Collaborator
	log       *log.Logger

	// delivered is set by Handle and cleared before each ReadEvent/
	// TimeoutEvent call. A layer's Read/Timeout return value only
	// reports what that one call produced, not whether some other layer
	// further down the chain already delivered via Handle (see
	// layer.Dispatcher), so ReadEvent/TimeoutEvent must consult this
	// instead of the returned Message to decide whether anything
	// happened.
	delivered bool
}

// Option configures a Newb at construction.
type Option func(*Newb)

// WithTimer overrides the default production timer.Collaborator
// (time.AfterFunc-backed) — tests install a *timer.Recording instead.
func WithTimer(c timer.Collaborator) Option {
	return func(n *Newb) { n.timer = c }
}

// WithLogger attaches a logger. Defaults to a discard logger, matching
// framer's posture as a library that stays silent unless told otherwise.
func WithLogger(logger *log.Logger) Option {
	return func(n *Newb) { n.log = logger }
}

// New builds a Newb over t and st, dispatching delivered messages to h.
// A production timer.Real is installed by default, redelivering onto
// this Newb's own TimeoutEvent.
func New(t transport.Transport, st *stack.Stack, h Handler, opts ...Option) *Newb {
	n := &Newb{
		transport: t,
		stack:     st,
		handler:   h,
		log:       log.New(io.Discard),
	}
	n.timer = timer.NewReal(n)
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SetTimeout arms msg for redelivery via TimeoutEvent after d. This is
// the spec's set_timeout: a non-blocking enqueue of a future self-message,
// delegated to the timer.Collaborator boundary (production:
// time.AfterFunc; test: recorded, fired manually).
func (n *Newb) SetTimeout(d time.Duration, msg layer.TimeoutMessage) {
	n.timer.SetTimeout(d, msg)
}

// Handle dispatches msg to the installed Handler. Exported so Newb
// satisfies layer.Dispatcher: every message-producing layer calls this
// directly on the message it produces, including the ordering layer's
// drain for every buffered message a single read event unblocks beyond
// the first (see layer/ordering's drain).
func (n *Newb) Handle(msg layer.Message) {
	n.delivered = true
	n.handler.Handle(msg)
}

// ReadEvent pulls one frame through the transport and the layer stack.
// Layers deliver via Handle as they go (see layer.Dispatcher); if the
// whole stack ran without delivering anything — every layer deferred —
// it returns ErrUnexpectedMessage. On a transport or layer failure it
// returns that error unchanged.
func (n *Newb) ReadEvent() error {
	if err := n.transport.ReadSome(); err != nil {
		return err
	}
	rx := n.transport.ReceiveBuffer()
	n.delivered = false
	if _, err := n.stack.Read(n, rx.Bytes()); err != nil {
		return err
	}
	if !n.delivered {
		n.log.Debug("read event deferred, nothing to deliver")
		return ErrUnexpectedMessage
	}
	return nil
}

// WriteEvent flushes the transport's send buffer to the socket.
func (n *Newb) WriteEvent() error {
	return n.transport.WriteSome()
}

// TimeoutEvent re-enters the layer stack with a previously armed timeout
// message. Same delivered/deferred/error contract as ReadEvent.
func (n *Newb) TimeoutEvent(msg layer.TimeoutMessage) error {
	n.delivered = false
	if _, err := n.stack.Timeout(n, msg); err != nil {
		return err
	}
	if !n.delivered {
		return ErrUnexpectedMessage
	}
	return nil
}

// WrBuf obtains the transport's send buffer, reserves every layer's
// header in outer-first wire order, and returns a WriteHandle positioned
// past the reserved region for the caller to append payload into. hw is
// invoked by the innermost layer to write the application header.
func (n *Newb) WrBuf(hw layer.HeaderWriter) (*WriteHandle, error) {
	buf := n.transport.WrBuf()
	offset, err := n.stack.WriteHeader(buf, hw)
	if err != nil {
		return nil, err
	}
	return &WriteHandle{buf: buf, headerOffset: offset}, nil
}
