// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ordering implements the sequence-number reassembly layer: a
// wrapping Layer that adds a 4-byte seq_nr header, buffers out-of-order
// arrivals, and bridges gaps with a timeout-driven forced advance.
//
// This is the one layer in the stack with interesting state, and it is
// the layer the design notes spend the most words on (multi-delivery on
// drain, wraparound, the exactly-once timeout release). The state machine
// below follows spec.md §4.C literally; see the package-level doc comments
// on each method for the corresponding invariant.
package ordering

import (
	"encoding/binary"
	"time"

	"github.com/charmbracelet/log"

	"code.hybscloud.com/newb/layer"
)

// HeaderSize is the wire size of the ordering header (a raw little-endian
// uint32 seq_nr).
const HeaderSize = 4

// DefaultTimeout is the delay armed for an out-of-order arrival, matching
// spec.md §4.C's 2s constant.
const DefaultTimeout = 2 * time.Second

// timeoutMsg is the ordering layer's own TimeoutMessage shape: (tag, seq).
// The tag is the type itself, so any other layer's timeout message simply
// fails the type assertion in Timeout and gets delegated inward.
type timeoutMsg struct {
	seq uint32
}

// Layer wraps an inner layer.Layer with seq_nr-based reassembly.
type Layer struct {
	next layer.Layer

	nextSeqRead  uint32
	nextSeqWrite uint32
	pending      map[uint32][]byte

	timeout time.Duration
	log     *log.Logger
}

// Option configures a Layer at construction.
type Option func(*Layer)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(l *Layer) { l.timeout = d }
}

// WithLogger attaches a logger for reassembly diagnostics (dropped stale
// duplicates, forced-advance timeouts). Defaults to a discard logger.
func WithLogger(logger *log.Logger) Option {
	return func(l *Layer) { l.log = logger }
}

// New wraps next with a fresh reassembly layer starting at seq_nr 0, per
// spec.md §3: "Every new session starts with seq_nr = 0."
func New(next layer.Layer, opts ...Option) *Layer {
	l := &Layer{
		next:    next,
		pending: make(map[uint32][]byte),
		timeout: DefaultTimeout,
		log:     log.New(discard{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func (l *Layer) HeaderSize() int { return HeaderSize }

func (l *Layer) Offset() int { return HeaderSize + l.next.Offset() }

// Read implements the three-way sequence comparison from spec.md §4.C:
//
//   - seq == nextSeqRead: in-order. Advance, then delegate — l.next.Read
//     delivers the resulting message via d.Handle itself before this call
//     returns — and only then drain every consecutive buffered successor
//     (see layer.Dispatcher), so the arrival that unblocked the run is
//     always delivered ahead of anything the drain releases.
//   - seq > nextSeqRead: buffer a copy (the receive buffer is about to be
//     overwritten by the next read, so pending must own its bytes) and
//     arm a timeout. Deferred: returns (nil, nil).
//   - seq < nextSeqRead: already delivered. Dropped silently, deferred.
func (l *Layer) Read(d layer.Dispatcher, b []byte) (layer.Message, error) {
	if len(b) < HeaderSize {
		return nil, layer.ErrMalformedHeader
	}
	seq := binary.LittleEndian.Uint32(b[0:4])
	rest := b[HeaderSize:]

	switch {
	case seq == l.nextSeqRead:
		l.nextSeqRead++
		msg, err := l.next.Read(d, rest)
		if err != nil {
			return nil, err
		}
		l.drain(d)
		return msg, nil

	case seq > l.nextSeqRead:
		buffered := make([]byte, len(rest))
		copy(buffered, rest)
		l.pending[seq] = buffered
		d.SetTimeout(l.timeout, timeoutMsg{seq: seq})
		return nil, nil

	default:
		l.log.Debug("dropping stale duplicate", "seq", seq, "next_seq_read", l.nextSeqRead)
		return nil, nil
	}
}

// Timeout releases a buffered out-of-order message when its timer fires
// before the missing predecessor ever arrives. This is the design's
// forced-advance rule: firing the timer for seq gives up on whatever was
// missing before it and delivers seq anyway, permanently skipping the
// hole. It fires at most once per seq — pending no longer contains seq
// the second time the same timeout is replayed (idempotence property #5).
// As in Read, l.next.Read delivers the released message via d.Handle
// before drain releases anything further it unblocks.
func (l *Layer) Timeout(d layer.Dispatcher, msg layer.TimeoutMessage) (layer.Message, error) {
	tm, ok := msg.(timeoutMsg)
	if !ok {
		return l.next.Timeout(d, msg)
	}

	buf, ok := l.pending[tm.seq]
	if !ok {
		// Already delivered in-order (or already released by a prior
		// firing of this same timeout) before the timer fired.
		return nil, nil
	}
	delete(l.pending, tm.seq)
	l.nextSeqRead = tm.seq + 1

	msgOut, err := l.next.Read(d, buf)
	if err != nil {
		return nil, err
	}
	l.drain(d)
	return msgOut, nil
}

// drain releases every consecutive buffered successor of nextSeqRead,
// stopping at the first hole. It is the only place pending entries are
// released on the happy path. It must run after the primary message for
// the current event has already been delivered (l.next.Read delivers its
// own message via d.Handle before returning), so that messages reach the
// dispatcher in strictly increasing seq_nr order: the arrival that
// unblocked the run first, then each drained successor in turn.
func (l *Layer) drain(d layer.Dispatcher) {
	for {
		buf, ok := l.pending[l.nextSeqRead]
		if !ok {
			return
		}
		delete(l.pending, l.nextSeqRead)
		l.nextSeqRead++

		if _, err := l.next.Read(d, buf); err != nil {
			l.log.Error("dropping malformed buffered fragment", "err", err)
		}
	}
}

// WriteHeader appends the current write sequence number and advances it.
// No wraparound detection: spec.md §9 assumes the 32-bit space is
// adequate for one session's lifetime.
func (l *Layer) WriteHeader(buf layer.Buffer, runningOffset int, hw layer.HeaderWriter) (int, error) {
	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[:], l.nextSeqWrite)
	buf.Append(hdr[:])
	l.nextSeqWrite++
	return l.next.WriteHeader(buf, runningOffset+HeaderSize, hw)
}
