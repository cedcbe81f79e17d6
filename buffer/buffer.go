// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package buffer provides the growable, contiguous byte sequence shared by
// transports and protocol layers: Transport owns one for receiving and one
// for sending, and layer.Layer.WriteHeader appends directly into it.
//
// Resize reuses the backing array whenever the new length still fits inside
// the existing capacity, the same reuse discipline framer applies to its
// rbuf/wbuf scratch buffers to keep the hot path allocation-free.
package buffer

// Buffer is an ordered byte sequence with O(1) amortized append and
// contiguous storage. It is not safe for concurrent use; per the
// single-threaded-per-newb model, a Buffer is only ever touched from its
// owning newb's execution context.
type Buffer struct {
	b []byte
}

// New returns an empty Buffer.
func New() *Buffer { return &Buffer{} }

// Len reports the number of bytes currently held.
func (buf *Buffer) Len() int { return len(buf.b) }

// Cap reports the capacity of the backing array.
func (buf *Buffer) Cap() int { return cap(buf.b) }

// Resize sets the buffer's length to n, growing the backing array if
// necessary. The contents of any newly added bytes are unspecified.
// Any pointer obtained from a prior call to Bytes is invalidated.
func (buf *Buffer) Resize(n int) {
	if n <= cap(buf.b) {
		buf.b = buf.b[:n]
		return
	}
	grown := make([]byte, n)
	copy(grown, buf.b)
	buf.b = grown
}

// Bytes returns the buffer's contents. The slice aliases the buffer's
// backing array and is only valid until the next mutating call.
func (buf *Buffer) Bytes() []byte { return buf.b }

// PushBack appends a single byte.
func (buf *Buffer) PushBack(b byte) { buf.b = append(buf.b, b) }

// Append appends p to the buffer's contents.
func (buf *Buffer) Append(p []byte) { buf.b = append(buf.b, p...) }

// Truncate shortens the buffer to n bytes. It panics if n is out of range,
// matching the narrow, internal-only use this sees (layers never truncate
// past what they just wrote).
func (buf *Buffer) Truncate(n int) {
	if n > len(buf.b) {
		panic("buffer: Truncate past current length")
	}
	buf.b = buf.b[:n]
}

// Reset empties the buffer while retaining its backing array.
func (buf *Buffer) Reset() { buf.b = buf.b[:0] }

// Advance drops the first n bytes, shifting the remainder to the front of
// the backing array. Used after a partial write leaves n bytes sent and
// the rest still queued for the next WriteSome.
func (buf *Buffer) Advance(n int) {
	buf.b = buf.b[:copy(buf.b, buf.b[n:])]
}

// Swap exchanges contents with another Buffer. Used by tests to move a
// constructed wire frame from a send buffer into a receive buffer without
// copying (mirrors Transport's send/receive buffer pair).
func (buf *Buffer) Swap(other *Buffer) { buf.b, other.b = other.b, buf.b }
