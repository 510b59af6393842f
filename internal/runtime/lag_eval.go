// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package runtime

import (
	"sparrow/pkg/columnar"
	"sparrow/pkg/lag"
)

// LagEvaluator implements lag(N, expr): per entity, a ring buffer of the
// last N non-null observations. On each row, the oldest buffered value is
// emitted (or null if the buffer isn't yet full), then the row's value is
// pushed if valid.
type LagEvaluator[T any] struct {
	access Accessor[T]
	input  Ref
	buf    *lag.Buffer[T]
}

// NewLagEvaluator constructs a lag evaluator. Returns lag.ErrZeroLag for
// n<1, matching spec.md §9(a): "lag(0, e) is unsupported — reject at
// compile time"; here the constructor stands in for that compile-time
// check since the compiler itself is out of scope.
func NewLagEvaluator[T any](access Accessor[T], input Ref, n int) (*LagEvaluator[T], error) {
	buf, err := lag.New[T](n)
	if err != nil {
		return nil, err
	}
	return &LagEvaluator[T]{access: access, input: input, buf: buf}, nil
}

func (e *LagEvaluator[T]) Evaluate(info RuntimeInfo) (*columnar.Column, error) {
	view := info.Grouping()
	e.buf.Resize(view.NumGroups)

	inputCol, err := info.Value(e.input)
	if err != nil {
		return nil, err
	}
	n := inputCol.Len()
	out := e.access.New(n)

	for i := 0; i < n; i++ {
		g := view.GroupIndices[i]
		valid := inputCol.IsValid(i)
		var v T
		if valid {
			v = e.access.Get(inputCol, i)
		}
		outV, outValid := e.buf.Observe(g, v, valid)
		e.access.Set(out, i, outV, outValid)
	}
	return out, nil
}
