// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package timer is the boundary to the timer collaborator described in
// spec.md §6: something that delivers a caller-supplied opaque message
// back to a newb after a duration. The actor runtime's real timer service
// is out of scope (spec.md §1); this package supplies the default
// production implementation (time.AfterFunc) and the test collaborator
// that records scheduled messages instead of firing them, the same
// division framer draws between its default (test) transport and a real
// socket-backed one.
package timer

import (
	"sync"
	"time"

	"code.hybscloud.com/newb/layer"
)

// Sink is the redelivery target: newb.Newb satisfies this by forwarding
// to its own TimeoutEvent.
type Sink interface {
	TimeoutEvent(msg layer.TimeoutMessage) error
}

// Collaborator is the fn set_timeout_impl boundary: schedule msg for
// redelivery after d.
type Collaborator interface {
	SetTimeout(d time.Duration, msg layer.TimeoutMessage)
}

// Real schedules redelivery with time.AfterFunc. TimeoutEvent errors
// (e.g. ErrUnexpectedMessage for a timeout with nothing left to release)
// are not observable through this boundary, per spec.md §7.
type Real struct {
	Sink Sink
}

// NewReal returns a production Collaborator that redelivers onto sink.
func NewReal(sink Sink) *Real { return &Real{Sink: sink} }

func (r *Real) SetTimeout(d time.Duration, msg layer.TimeoutMessage) {
	time.AfterFunc(d, func() {
		_ = r.Sink.TimeoutEvent(msg)
	})
}

// Scheduled is one recorded SetTimeout call.
type Scheduled struct {
	Delay time.Duration
	Msg   layer.TimeoutMessage
}

// Recording is the test collaborator: it records scheduled messages
// without firing them, letting a test drive redelivery explicitly via
// newb.TimeoutEvent(msg) — matching scenario S2's "call timeout_event
// with that message" structure.
type Recording struct {
	mu        sync.Mutex
	Scheduled []Scheduled
}

func (r *Recording) SetTimeout(d time.Duration, msg layer.TimeoutMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Scheduled = append(r.Scheduled, Scheduled{Delay: d, Msg: msg})
}

// Last returns the most recently recorded call, or the zero value and
// false if none were recorded.
func (r *Recording) Last() (Scheduled, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Scheduled) == 0 {
		return Scheduled{}, false
	}
	return r.Scheduled[len(r.Scheduled)-1], true
}

// Len reports the number of recorded calls.
func (r *Recording) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Scheduled)
}
