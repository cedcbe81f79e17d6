// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package layer defines the protocol-policy contract that newb stacks are
// built from: a nest of value-typed layers, outermost wire format first,
// innermost application message last.
//
// Go has no zero-cost equivalent of compile-time template nesting, so
// composition here follows the "acceptable alternative" the design calls
// out: a linked list of dynamically dispatched Layer values, one virtual
// call per layer per event. Each wrapping layer holds its inner Layer as a
// field (see ordering.Layer.next) the same way the source nests layer
// types, it just does so through an interface instead of a type parameter.
package layer

import (
	"errors"
	"time"
)

// Message is whatever the innermost layer produces. Wrapping layers never
// inspect it, only pass it through, so message_type effectively always
// equals the innermost layer's own message type.
type Message interface{}

// TimeoutMessage is an opaque, layer-recognized timeout payload, e.g. the
// ordering layer's (ordering_tag, seq_nr).
type TimeoutMessage interface{}

// HeaderWriter is supplied by the caller of a write and is invoked by the
// innermost layer's WriteHeader to append the application header. It must
// append exactly the innermost layer's HeaderSize bytes.
type HeaderWriter func(buf Buffer) error

// Buffer is the subset of *buffer.Buffer that layer code needs. Declared
// here (rather than importing package buffer) so layer stays the narrow,
// dependency-free contract package; buffer.Buffer satisfies it structurally.
type Buffer interface {
	Append(p []byte)
	Len() int
}

// Dispatcher is what a Layer may call back into while handling a read or
// timeout event: arm a new timeout, or deliver a produced message
// straight to the application handler.
//
// Handle is every layer's only delivery mechanism: the innermost layer
// calls it for the message it just produced, synchronously, before
// returning. A wrapping layer relies on that ordering to deliver any
// further message it unblocks (see ordering.Layer.drain) strictly after
// the one that arrived with the current event — the chosen resolution to
// the reassembly buffer's ability to unblock more than one message per
// read event.
type Dispatcher interface {
	SetTimeout(d time.Duration, msg TimeoutMessage)
	Handle(msg Message)
}

// Layer is one tier of the protocol stack.
type Layer interface {
	// HeaderSize is the number of bytes this layer's header occupies on
	// the wire.
	HeaderSize() int

	// Offset is the sum of this layer's HeaderSize and every inner
	// layer's HeaderSize: the total header region a write reserves.
	Offset() int

	// Read parses and strips this layer's header from the front of b,
	// then either delegates to the inner layer or defers.
	//
	// Delivery to the application happens by calling d.Handle, not by
	// returning a Message: the innermost layer that actually produces one
	// calls d.Handle on it directly, synchronously, before returning. A
	// wrapping layer that delegates to its inner layer's Read therefore
	// observes that delivery as already having happened by the time Read
	// returns — which is what lets it sequence any further delivery (e.g.
	// ordering's drain of buffered successors) strictly after it. The
	// returned Message is informational only (tests and callers that want
	// to know what, if anything, was produced by this call); callers must
	// not call Handle on it themselves, or it will be delivered twice.
	//
	// A (nil, nil) return means "deferred": the bytes were buffered
	// and/or a timeout was armed, and nothing was delivered. That is
	// distinct from a non-nil error, which means the bytes were malformed
	// or an inner layer failed outright.
	Read(d Dispatcher, b []byte) (Message, error)

	// Timeout handles a previously armed timeout if it belongs to this
	// layer, otherwise delegates to the inner layer. Same delivery-via-
	// d.Handle and (nil, nil) "deferred" convention as Read.
	Timeout(d Dispatcher, msg TimeoutMessage) (Message, error)

	// WriteHeader appends this layer's header to buf starting at
	// runningOffset, then recurses inward. The innermost layer invokes
	// hw to append the application header. Returns the new running
	// offset (== Offset() once the recursion unwinds from the
	// outermost call).
	WriteHeader(buf Buffer, runningOffset int, hw HeaderWriter) (int, error)
}

// Errors surfaced by layer implementations. newb.Newb returns these to its
// caller unchanged; an event that delivered nothing without an error is
// reported separately as newb.ErrUnexpectedMessage.
var (
	// ErrMalformedHeader means a layer's Read was invoked with fewer
	// bytes than its declared HeaderSize.
	ErrMalformedHeader = errors.New("layer: malformed header")

	// ErrHeaderWriterSize means a HeaderWriter appended a different
	// number of bytes than the innermost layer declares as its
	// HeaderSize.
	ErrHeaderWriterSize = errors.New("layer: header writer wrote the wrong number of bytes")
)
