// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package newb

import "code.hybscloud.com/newb/buffer"

// WriteHandle is the short-lived value Newb.WrBuf returns: the send
// buffer positioned past every reserved layer header, ready for the
// caller to append payload. It must not escape the call chain that
// produced it (spec.md §3 Lifecycles) — there is no flush-on-drop in
// this iteration (spec.md §9), so the caller finishes by calling
// Newb.WriteEvent once the payload is appended.
type WriteHandle struct {
	buf          *buffer.Buffer
	headerOffset int
}

// HeaderOffset is the total bytes reserved for headers, i.e.
// stack.Stack.Offset() at the time WrBuf was called (testable property
// #2: header-size invariance).
func (w *WriteHandle) HeaderOffset() int { return w.headerOffset }

// Append adds raw payload bytes after the reserved header region.
func (w *WriteHandle) Append(p []byte) { w.buf.Append(p) }
