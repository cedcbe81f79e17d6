// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package transport owns socket I/O and the send/receive buffer pair, the
// same split of responsibility framer draws between its framer.Reader
// (consumes an io.Reader) and the wire bytes it parses: Transport is
// where raw bytes enter and leave the stack, layers never touch a socket
// directly.
//
// Three variants are provided, matching spec.md §4.B: Stream (no framing;
// layers self-delimit — the canonical ordering<basp> stack relies on one
// read_some yielding exactly one frame, see the doc on type Datagram),
// Datagram (one read_some == one message) and Loopback (in-memory, for
// tests).
package transport

import (
	"errors"
	"io"
	"net"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/newb/buffer"
)

// Errors surfaced by Transport implementations; see spec.md §7.
var (
	// ErrIOFailure wraps an underlying socket read/write failure.
	ErrIOFailure = errors.New("transport: io failure")

	// ErrPeerClosed means a stream transport's Read returned io.EOF.
	ErrPeerClosed = errors.New("transport: peer closed")

	// ErrWouldBlock means the underlying conn is non-blocking and made no
	// progress; it is not a failure. Re-exported so callers driving a
	// Newb over a non-blocking socket don't need to import iox directly.
	ErrWouldBlock = iox.ErrWouldBlock
)

// defaultChunk is the read size of every ReadSome on stream and datagram
// transports: the receive buffer is resized to it before each Read/ReadFrom,
// so one ReadSome never yields more than defaultChunk bytes. It does not
// adapt to larger messages.
const defaultChunk = 64 * 1024

// Transport is the contract newb.Newb consumes: socket I/O plus the
// buffer pair it drives the layer stack from.
type Transport interface {
	// ReadSome refills the receive buffer from the socket, overwriting
	// previous contents.
	ReadSome() error

	// WriteSome transmits the entire send buffer; on success it empties
	// the buffer.
	WriteSome() error

	// WrBuf returns the send buffer for layers and callers to append
	// headers and payload into.
	WrBuf() *buffer.Buffer

	// ReceiveBuffer exposes the receive buffer, primarily for tests
	// that need to preload it directly.
	ReceiveBuffer() *buffer.Buffer

	// SendBuffer exposes the send buffer, primarily for tests.
	SendBuffer() *buffer.Buffer
}

// Stream is a Transport over a non-boundary-preserving connection such as
// TCP or a Unix stream socket.
type Stream struct {
	conn net.Conn
	rx   buffer.Buffer
	tx   buffer.Buffer
}

// NewStream wraps conn as a stream Transport.
func NewStream(conn net.Conn) *Stream { return &Stream{conn: conn} }

func (s *Stream) ReadSome() error {
	s.rx.Resize(defaultChunk)
	n, err := s.conn.Read(s.rx.Bytes())
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.rx.Truncate(0)
			return ErrPeerClosed
		}
		if errors.Is(err, iox.ErrWouldBlock) || errors.Is(err, iox.ErrMore) {
			// Control-flow, not failure: n bytes of real progress (if
			// any) are still valid, the caller retries after readiness.
			s.rx.Truncate(n)
			return err
		}
		s.rx.Truncate(0)
		return errWrap(err)
	}
	s.rx.Truncate(n)
	return nil
}

func (s *Stream) WriteSome() error {
	if s.tx.Len() == 0 {
		return nil
	}
	n, err := s.conn.Write(s.tx.Bytes())
	if err != nil {
		if errors.Is(err, iox.ErrWouldBlock) || errors.Is(err, iox.ErrMore) {
			// Drop the bytes already sent; leave the rest for the next
			// WriteSome once the conn is writable again.
			s.tx.Advance(n)
			return err
		}
		return errWrap(err)
	}
	if n != s.tx.Len() {
		// A conforming io.Writer over a blocking net.Conn does not
		// short-write without an error; guard against one that does.
		return errWrap(io.ErrShortWrite)
	}
	s.tx.Truncate(0)
	return nil
}

func (s *Stream) WrBuf() *buffer.Buffer         { return &s.tx }
func (s *Stream) ReceiveBuffer() *buffer.Buffer { return &s.rx }
func (s *Stream) SendBuffer() *buffer.Buffer    { return &s.tx }

// Datagram is a Transport over a boundary-preserving connection such as
// UDP, where one ReadSome call yields exactly one message. The ordering
// layer's reassembly logic depends on this property (spec.md §9 open
// question): on a Stream transport the wire format would need its own
// framing beneath ordering/basp, which is out of this spec's scope.
type Datagram struct {
	conn net.PacketConn
	rx   buffer.Buffer
	tx   buffer.Buffer
}

// NewDatagram wraps conn as a datagram Transport.
func NewDatagram(conn net.PacketConn) *Datagram { return &Datagram{conn: conn} }

func (d *Datagram) ReadSome() error {
	d.rx.Resize(defaultChunk)
	n, _, err := d.conn.ReadFrom(d.rx.Bytes())
	if err != nil {
		if errors.Is(err, iox.ErrWouldBlock) || errors.Is(err, iox.ErrMore) {
			d.rx.Truncate(n)
			return err
		}
		d.rx.Truncate(0)
		return errWrap(err)
	}
	d.rx.Truncate(n)
	return nil
}

func (d *Datagram) WriteSome() error {
	return errors.New("transport: datagram WriteSome requires a destination address; use WriteTo")
}

// WriteTo transmits the entire send buffer to addr and empties it on
// success. Datagram sockets have no fixed peer, so plain WriteSome (which
// presumes one) is not meaningful here.
func (d *Datagram) WriteTo(addr net.Addr) error {
	if d.tx.Len() == 0 {
		return nil
	}
	n, err := d.conn.WriteTo(d.tx.Bytes(), addr)
	if err != nil {
		return errWrap(err)
	}
	if n != d.tx.Len() {
		return errWrap(io.ErrShortWrite)
	}
	d.tx.Truncate(0)
	return nil
}

func (d *Datagram) WrBuf() *buffer.Buffer         { return &d.tx }
func (d *Datagram) ReceiveBuffer() *buffer.Buffer { return &d.rx }
func (d *Datagram) SendBuffer() *buffer.Buffer    { return &d.tx }

// Loopback is an in-memory Transport for tests. ReadSome is a no-op that
// returns success without mutating the receive buffer, letting a test
// preload it directly (buffer.Buffer.Swap is the usual way). WriteSome is
// likewise a stub success that leaves the send buffer untouched so a test
// can inspect or swap it.
type Loopback struct {
	rx buffer.Buffer
	tx buffer.Buffer
}

// NewLoopback returns an empty in-memory Transport.
func NewLoopback() *Loopback { return &Loopback{} }

func (l *Loopback) ReadSome() error  { return nil }
func (l *Loopback) WriteSome() error { return nil }

func (l *Loopback) WrBuf() *buffer.Buffer         { return &l.tx }
func (l *Loopback) ReceiveBuffer() *buffer.Buffer { return &l.rx }
func (l *Loopback) SendBuffer() *buffer.Buffer    { return &l.tx }

func errWrap(err error) error {
	return errors.Join(ErrIOFailure, err)
}
