// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package acceptor is the server-socket boundary described in spec.md §6
// (component G): on a readable accept fd, yield (socket, transport) pairs
// and initialize a fresh newb.Newb per connection. It is a boundary only
// — listen/accept scheduling belongs to the actor runtime (spec.md §1) —
// so Accept here is a direct, blocking net.Listener.Accept call that the
// caller's own event loop is expected to drive non-blockingly if needed,
// the same Accept/Dial split sockatz's common.Transport interface draws
// between a listener boundary and the connections it yields.
package acceptor

import (
	"io"
	"net"

	"github.com/charmbracelet/log"

	"code.hybscloud.com/newb"
	"code.hybscloud.com/newb/layer"
	"code.hybscloud.com/newb/stack"
	"code.hybscloud.com/newb/transport"
)

// StackFactory builds a fresh outermost layer for one accepted
// connection. Layers carry per-connection state (the ordering layer's
// next_seq_read/pending map), so each connection needs its own nest, not
// a shared one. logger is the Acceptor's own logger with a "_ordering_"
// prefix already applied (see Accept), for the factory to pass along to
// whichever layer in the nest accepts a logger option.
type StackFactory func(logger *log.Logger) layer.Layer

// HandlerFactory builds the application Handler for one accepted
// connection.
type HandlerFactory func(n *newb.Newb) newb.Handler

// Init runs on a freshly constructed child Newb to install additional
// per-connection state, mirroring spec.md §6's "fn init(newb_base&)".
type Init func(n *newb.Newb)

// Acceptor owns a listening socket and spawns one Newb per accepted
// connection.
type Acceptor struct {
	ln      net.Listener
	newLyr  StackFactory
	newHdlr HandlerFactory
	init    Init
	log     *log.Logger
}

// Option configures an Acceptor at construction.
type Option func(*Acceptor)

// WithInit installs a per-connection Init hook.
func WithInit(init Init) Option {
	return func(a *Acceptor) { a.init = init }
}

// WithLogger attaches a logger.
func WithLogger(logger *log.Logger) Option {
	return func(a *Acceptor) { a.log = logger }
}

// New returns an Acceptor over ln. newLyr builds a fresh layer nest and
// newHdlr builds the application Handler for each accepted connection.
// The logger defaults to a discard logger, matching newb.New and
// ordering.New's own default, so an Acceptor stays silent until told
// otherwise via WithLogger.
func New(ln net.Listener, newLyr StackFactory, newHdlr HandlerFactory, opts ...Option) *Acceptor {
	a := &Acceptor{ln: ln, newLyr: newLyr, newHdlr: newHdlr, log: log.New(io.Discard)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Accept blocks for the next connection, wraps it as a stream
// transport.Transport, composes a fresh layer stack and Newb around it,
// and runs Init if one was installed.
//
// The Acceptor's logger is the owner of both the Newb and its layer
// stack for the connection, so it derives their loggers as prefixed
// children of its own — the same relationship katzenpost's Client
// derives its ARQ's logger from (mylog.WithPrefix("_ARQ_")).
func (a *Acceptor) Accept() (*newb.Newb, error) {
	conn, err := a.ln.Accept()
	if err != nil {
		return nil, err
	}

	t := transport.NewStream(conn)
	st := stack.New(a.newLyr(a.log.WithPrefix("_ordering_")))

	var n *newb.Newb
	n = newb.New(t, st, &handlerThunk{get: func() newb.Handler { return a.newHdlr(n) }},
		newb.WithLogger(a.log.WithPrefix("_newb_")))

	a.log.Info("accepted connection", "remote", conn.RemoteAddr())
	if a.init != nil {
		a.init(n)
	}
	return n, nil
}

// handlerThunk defers HandlerFactory construction until after the Newb
// it needs a reference to already exists, resolving the
// Newb-needs-a-Handler / Handler-needs-the-Newb construction cycle.
type handlerThunk struct {
	get  func() newb.Handler
	real newb.Handler
}

func (h *handlerThunk) Handle(msg layer.Message) {
	if h.real == nil {
		h.real = h.get()
	}
	h.real.Handle(msg)
}
