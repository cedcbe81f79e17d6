// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package basp implements the innermost application layer of the wire
// protocol: the binary actor system protocol header, a raw little-endian
// (from, to) pair of 32-bit actor ids followed by the message payload.
package basp

import (
	"encoding/binary"

	"code.hybscloud.com/newb/layer"
)

// ActorID identifies an endpoint within the actor system.
type ActorID uint32

// Header is the fixed 8-byte application header: from and to actor ids,
// serialized as raw little-endian bytes with no padding.
type Header struct {
	From ActorID
	To   ActorID
}

// HeaderSize is the wire size of Header.
const HeaderSize = 8

// Message is the application message yielded by the innermost layer.
// Payload aliases the transport's receive buffer: it is only valid for
// the duration of the read event that produced it. Handlers that need to
// retain it past that must copy.
type Message struct {
	Header  Header
	Payload []byte
}

// Layer is the innermost protocol layer. It owns no timers and never
// defers: Read either succeeds or reports layer.ErrMalformedHeader.
type Layer struct{}

// New returns a basp Layer. There is no state to configure; basp has no
// inner layer and nothing to buffer.
func New() *Layer { return &Layer{} }

func (l *Layer) HeaderSize() int { return HeaderSize }

func (l *Layer) Offset() int { return HeaderSize }

// Read parses the header and hands the resulting Message to d.Handle
// before returning it. basp is always the innermost layer, so it is the
// one that actually produces an application message; delivering it here,
// synchronously, is what lets a wrapping layer (e.g. ordering) sequence
// this delivery ahead of any buffered successor it drains afterward.
func (l *Layer) Read(d layer.Dispatcher, b []byte) (layer.Message, error) {
	if len(b) < HeaderSize {
		return nil, layer.ErrMalformedHeader
	}
	msg := &Message{
		Header: Header{
			From: ActorID(binary.LittleEndian.Uint32(b[0:4])),
			To:   ActorID(binary.LittleEndian.Uint32(b[4:8])),
		},
		Payload: b[HeaderSize:],
	}
	d.Handle(msg)
	return msg, nil
}

// Timeout always reports "not mine, nothing to deliver": basp owns no
// timers.
func (l *Layer) Timeout(_ layer.Dispatcher, _ layer.TimeoutMessage) (layer.Message, error) {
	return nil, nil
}

// WriteHeader invokes hw, which must append exactly HeaderSize bytes
// encoding (from, to) in the layout Read expects.
func (l *Layer) WriteHeader(buf layer.Buffer, runningOffset int, hw layer.HeaderWriter) (int, error) {
	before := buf.Len()
	if err := hw(buf); err != nil {
		return runningOffset, err
	}
	if buf.Len()-before != HeaderSize {
		return runningOffset, layer.ErrHeaderWriterSize
	}
	return runningOffset + HeaderSize, nil
}

// WriteHeaderFunc builds a layer.HeaderWriter that appends h in the wire
// layout Read expects. Most callers that already know from/to up front
// will use this instead of hand-writing the byte order.
func WriteHeaderFunc(h Header) layer.HeaderWriter {
	return func(buf layer.Buffer) error {
		var raw [HeaderSize]byte
		binary.LittleEndian.PutUint32(raw[0:4], uint32(h.From))
		binary.LittleEndian.PutUint32(raw[4:8], uint32(h.To))
		buf.Append(raw[:])
		return nil
	}
}
