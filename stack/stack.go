// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package stack type-erases a fully composed nest of layer.Layer values
// behind the uniform interface newb.Newb consumes, mirroring the way
// framer.Reader/framer.Writer wrap a private *framer state machine behind
// a small public surface.
package stack

import "code.hybscloud.com/newb/layer"

// Stack is the composed layer nest, viewed from the outermost layer in.
type Stack struct {
	top layer.Layer
}

// New wraps top, the outermost layer of a composed nest (e.g.
// ordering.New(basp.New())), behind the Stack adapter.
func New(top layer.Layer) *Stack { return &Stack{top: top} }

// Read delegates to the outermost layer's Read.
func (s *Stack) Read(d layer.Dispatcher, b []byte) (layer.Message, error) {
	return s.top.Read(d, b)
}

// Timeout delegates to the outermost layer's Timeout.
func (s *Stack) Timeout(d layer.Dispatcher, msg layer.TimeoutMessage) (layer.Message, error) {
	return s.top.Timeout(d, msg)
}

// WriteHeader seeds the running offset at 0 and delegates to the
// outermost layer's WriteHeader.
func (s *Stack) WriteHeader(buf layer.Buffer, hw layer.HeaderWriter) (int, error) {
	return s.top.WriteHeader(buf, 0, hw)
}

// Offset reports the total reserved header size across every layer in
// the stack.
func (s *Stack) Offset() int { return s.top.Offset() }
