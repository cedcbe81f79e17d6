// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ordering_test

import (
	"encoding/binary"
	"testing"
	"time"

	"code.hybscloud.com/newb/buffer"
	"code.hybscloud.com/newb/layer"
	"code.hybscloud.com/newb/layer/basp"
	"code.hybscloud.com/newb/layer/ordering"
)

// fakeDispatcher records SetTimeout calls and Handle deliveries without
// involving a full newb.Newb, the same scripted-fake approach framer's
// tests use for io.Reader/io.Writer.
type fakeDispatcher struct {
	timeouts []layer.TimeoutMessage
	handled  []layer.Message
}

func (f *fakeDispatcher) SetTimeout(_ time.Duration, msg layer.TimeoutMessage) {
	f.timeouts = append(f.timeouts, msg)
}

func (f *fakeDispatcher) Handle(msg layer.Message) {
	f.handled = append(f.handled, msg)
}

func seqFrame(seq uint32, payload byte) []byte {
	b := make([]byte, 4+8+1)
	binary.LittleEndian.PutUint32(b[0:4], seq)
	// from/to are irrelevant to these tests; zero them.
	b[12] = payload
	return b
}

func TestOrdering_InOrder_Delivers(t *testing.T) {
	l := ordering.New(basp.New())
	d := &fakeDispatcher{}

	msg, err := l.Read(d, seqFrame(0, 1))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if msg == nil {
		t.Fatalf("want a delivered message")
	}
}

func TestOrdering_OutOfOrder_DefersAndArmsTimeout(t *testing.T) {
	l := ordering.New(basp.New())
	d := &fakeDispatcher{}

	msg, err := l.Read(d, seqFrame(1, 1))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if msg != nil {
		t.Fatalf("want deferred (nil) message, got %v", msg)
	}
	if len(d.timeouts) != 1 {
		t.Fatalf("timeouts scheduled=%d want 1", len(d.timeouts))
	}
}

func TestOrdering_PendingDrainOnInOrderArrival(t *testing.T) {
	// Property #4 / scenario S3: (s+1, s) delivers s then s+1, in order.
	l := ordering.New(basp.New())
	d := &fakeDispatcher{}

	if _, err := l.Read(d, seqFrame(1, 101)); err != nil {
		t.Fatalf("Read(1): %v", err)
	}

	primary, err := l.Read(d, seqFrame(0, 100))
	if err != nil {
		t.Fatalf("Read(0): %v", err)
	}
	if primary == nil {
		t.Fatalf("want seq 0 delivered via the primary return")
	}
	// basp delivers via d.Handle directly, so the primary arrival (seq 0)
	// and the drained successor (seq 1) both land in d.handled, in order.
	if len(d.handled) != 2 {
		t.Fatalf("handled deliveries=%d want 2 (primary + drained)", len(d.handled))
	}
	if got := d.handled[0].(*basp.Message).Payload[0]; got != 100 {
		t.Fatalf("primary handled payload=%d want 100", got)
	}
	drained := d.handled[1].(*basp.Message)
	if drained.Payload[0] != 101 {
		t.Fatalf("drained payload=%d want 101", drained.Payload[0])
	}
}

func TestOrdering_DuplicateArrivalAfterInOrder_Dropped(t *testing.T) {
	// Property #4: (s, s+1, s) — the second s is dropped without
	// altering next_seq_read.
	l := ordering.New(basp.New())
	d := &fakeDispatcher{}

	if _, err := l.Read(d, seqFrame(0, 1)); err != nil {
		t.Fatalf("Read(0): %v", err)
	}
	if _, err := l.Read(d, seqFrame(1, 2)); err != nil {
		t.Fatalf("Read(1): %v", err)
	}

	msg, err := l.Read(d, seqFrame(0, 9))
	if err != nil {
		t.Fatalf("Read(dup 0): %v", err)
	}
	if msg != nil {
		t.Fatalf("want duplicate dropped (nil), got %v", msg)
	}
}

func TestOrdering_TimeoutReleasesBufferedMessage(t *testing.T) {
	l := ordering.New(basp.New())
	d := &fakeDispatcher{}

	if _, err := l.Read(d, seqFrame(1, 101)); err != nil {
		t.Fatalf("Read(1): %v", err)
	}
	if len(d.timeouts) != 1 {
		t.Fatalf("timeouts=%d want 1", len(d.timeouts))
	}

	msg, err := l.Timeout(d, d.timeouts[0])
	if err != nil {
		t.Fatalf("Timeout: %v", err)
	}
	if msg == nil {
		t.Fatalf("want the buffered message released")
	}
}

func TestOrdering_TimeoutIdempotent(t *testing.T) {
	// Property #5: firing the same timeout twice delivers at most once.
	l := ordering.New(basp.New())
	d := &fakeDispatcher{}

	if _, err := l.Read(d, seqFrame(1, 101)); err != nil {
		t.Fatalf("Read(1): %v", err)
	}
	tm := d.timeouts[0]

	first, err := l.Timeout(d, tm)
	if err != nil || first == nil {
		t.Fatalf("first Timeout: msg=%v err=%v", first, err)
	}

	second, err := l.Timeout(d, tm)
	if err != nil {
		t.Fatalf("second Timeout: %v", err)
	}
	if second != nil {
		t.Fatalf("want second firing to be a no-op, got %v", second)
	}
}

func TestOrdering_WriteHeader_MonotonicSeq(t *testing.T) {
	l := ordering.New(basp.New())
	buf := buffer.New()
	hw := basp.WriteHeaderFunc(basp.Header{})

	off0, err := l.WriteHeader(buf, 0, hw)
	if err != nil {
		t.Fatalf("WriteHeader #0: %v", err)
	}
	if off0 != l.Offset() {
		t.Fatalf("offset=%d want %d", off0, l.Offset())
	}
	if got := binary.LittleEndian.Uint32(buf.Bytes()[0:4]); got != 0 {
		t.Fatalf("first seq_nr=%d want 0", got)
	}

	buf2 := buffer.New()
	if _, err := l.WriteHeader(buf2, 0, hw); err != nil {
		t.Fatalf("WriteHeader #1: %v", err)
	}
	if got := binary.LittleEndian.Uint32(buf2.Bytes()[0:4]); got != 1 {
		t.Fatalf("second seq_nr=%d want 1", got)
	}
}
