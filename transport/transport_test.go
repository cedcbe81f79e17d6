// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transport_test

import (
	"errors"
	"net"
	"testing"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/newb/transport"
)

// wouldBlockConn is a scripted fake net.Conn that hands back a fixed
// prefix of bytes alongside iox.ErrWouldBlock, mirroring what a
// non-blocking socket reports when a partial read/write is all that is
// ready.
type wouldBlockConn struct {
	net.Conn
	readPrefix []byte
	writeN     int
}

func (c *wouldBlockConn) Read(b []byte) (int, error) {
	n := copy(b, c.readPrefix)
	return n, iox.ErrWouldBlock
}

func (c *wouldBlockConn) Write(b []byte) (int, error) {
	return c.writeN, iox.ErrWouldBlock
}

func TestStream_ReadSome_ReadsAvailableBytes(t *testing.T) {
	// net.Pipe is a deterministic in-memory *stream* connection: message
	// boundaries are not preserved, matching what Stream is meant to
	// drive, the same substitution framer's own TCP example test makes
	// for a real net.Listen/Dial pair.
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		client.Write([]byte("hello"))
	}()

	st := transport.NewStream(server)
	if err := st.ReadSome(); err != nil {
		t.Fatalf("ReadSome: %v", err)
	}
	if string(st.ReceiveBuffer().Bytes()) != "hello" {
		t.Fatalf("ReceiveBuffer=%q want %q", st.ReceiveBuffer().Bytes(), "hello")
	}
	<-done
}

func TestStream_ReadSome_PeerClosed(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	client.Close()

	st := transport.NewStream(server)
	err := st.ReadSome()
	if !errors.Is(err, transport.ErrPeerClosed) {
		t.Fatalf("err=%v want ErrPeerClosed", err)
	}
}

func TestStream_WriteSome_EmptiesSendBufferOnSuccess(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	st := transport.NewStream(server)
	st.SendBuffer().Append([]byte("payload"))

	readDone := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := client.Read(buf)
		readDone <- buf[:n]
	}()

	if err := st.WriteSome(); err != nil {
		t.Fatalf("WriteSome: %v", err)
	}
	if st.SendBuffer().Len() != 0 {
		t.Fatalf("send buffer not emptied, len=%d", st.SendBuffer().Len())
	}
	if got := <-readDone; string(got) != "payload" {
		t.Fatalf("peer read=%q want %q", got, "payload")
	}
}

func TestLoopback_ReadSome_IsNoopAndPreservesPreload(t *testing.T) {
	lb := transport.NewLoopback()
	lb.ReceiveBuffer().Append([]byte("preloaded"))

	if err := lb.ReadSome(); err != nil {
		t.Fatalf("ReadSome: %v", err)
	}
	if string(lb.ReceiveBuffer().Bytes()) != "preloaded" {
		t.Fatalf("ReceiveBuffer=%q want %q", lb.ReceiveBuffer().Bytes(), "preloaded")
	}
}

func TestLoopback_WriteSome_LeavesSendBufferForInspection(t *testing.T) {
	lb := transport.NewLoopback()
	lb.SendBuffer().Append([]byte("frame"))

	if err := lb.WriteSome(); err != nil {
		t.Fatalf("WriteSome: %v", err)
	}
	if string(lb.SendBuffer().Bytes()) != "frame" {
		t.Fatalf("SendBuffer=%q want %q (WriteSome must be a stub)", lb.SendBuffer().Bytes(), "frame")
	}
}

func TestStream_ReadSome_WouldBlockKeepsPartialProgress(t *testing.T) {
	conn := &wouldBlockConn{readPrefix: []byte("part")}
	st := transport.NewStream(conn)

	err := st.ReadSome()
	if !errors.Is(err, transport.ErrWouldBlock) {
		t.Fatalf("err=%v want ErrWouldBlock", err)
	}
	if string(st.ReceiveBuffer().Bytes()) != "part" {
		t.Fatalf("ReceiveBuffer=%q want %q", st.ReceiveBuffer().Bytes(), "part")
	}
}

func TestStream_WriteSome_WouldBlockRetainsUnsentTail(t *testing.T) {
	conn := &wouldBlockConn{writeN: 4}
	st := transport.NewStream(conn)
	st.SendBuffer().Append([]byte("0123456789"))

	err := st.WriteSome()
	if !errors.Is(err, transport.ErrWouldBlock) {
		t.Fatalf("err=%v want ErrWouldBlock", err)
	}
	if string(st.SendBuffer().Bytes()) != "456789" {
		t.Fatalf("SendBuffer=%q want %q (first 4 bytes must be dropped)", st.SendBuffer().Bytes(), "456789")
	}
}
