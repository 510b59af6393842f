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

// Package runtime implements the stateful evaluators (aggregation, shift,
// lag) and the RuntimeInfo contract they are invoked through. This is THE
// CORE covered by spec.md: the Fenl parser, DFG optimizer, and I/O layers
// that would normally surround these evaluators are out of scope and are
// referenced here only as the RuntimeInfo boundary.
package runtime

import (
	"fmt"

	"sparrow/pkg/columnar"
	"sparrow/pkg/grouping"
)

// Ref is an opaque identifier resolving to a column of the current batch,
// or a literal scalar broadcast across it. The plan/DFG layer (out of
// scope) hands these out; RuntimeInfo resolves them.
type Ref struct {
	// Column names the batch column this ref resolves to.
	Column string
	// Literal, when non-nil, overrides Column: the same value is broadcast
	// to every row, valid on every row exactly when the literal is.
	Literal *columnar.Column
}

// RuntimeInfo is the minimal boundary evaluators rely on, provided by the
// surrounding execution driver (out of scope here, named in spec.md §4.6).
type RuntimeInfo interface {
	// Grouping returns the grouping view for the current batch.
	Grouping() grouping.View
	// Value resolves ref to a column of the current batch. Errors surface
	// as "plan/runtime mismatch" (fatal) per spec.md §7.
	Value(ref Ref) (*columnar.Column, error)
}

// batchRuntimeInfo is the straightforward RuntimeInfo used by the driver
// and by tests: grouping is precomputed, and refs resolve directly against
// the current batch's columns (or a literal).
type batchRuntimeInfo struct {
	view  grouping.View
	batch *columnar.Batch
}

// NewBatchRuntimeInfo builds a RuntimeInfo over a single resolved batch.
func NewBatchRuntimeInfo(view grouping.View, batch *columnar.Batch) RuntimeInfo {
	return &batchRuntimeInfo{view: view, batch: batch}
}

func (r *batchRuntimeInfo) Grouping() grouping.View { return r.view }

func (r *batchRuntimeInfo) Value(ref Ref) (*columnar.Column, error) {
	if ref.Literal != nil {
		return broadcast(ref.Literal, r.batch.Len()), nil
	}
	col := r.batch.Column(ref.Column)
	if col == nil {
		return nil, fmt.Errorf("runtime: plan/runtime mismatch: unknown operand %q", ref.Column)
	}
	if col.Len() != r.batch.Len() {
		return nil, fmt.Errorf("runtime: plan/runtime mismatch: operand %q has length %d, batch has %d", ref.Column, col.Len(), r.batch.Len())
	}
	return col, nil
}

// broadcast repeats a single-row literal column to length n.
func broadcast(lit *columnar.Column, n int) *columnar.Column {
	if lit.Len() == n {
		return lit
	}
	out := *lit
	out.Valid = repeatBool(lit.Valid, n)
	switch lit.Kind {
	case columnar.KindBool:
		out.Bools = repeat(lit.Bools, n)
	case columnar.KindInt64:
		out.Int64s = repeat(lit.Int64s, n)
	case columnar.KindFloat64:
		out.Float64s = repeat(lit.Float64s, n)
	case columnar.KindUint64:
		out.Uint64s = repeat(lit.Uint64s, n)
	case columnar.KindString:
		out.Strings = repeat(lit.Strings, n)
	}
	return &out
}

func repeat[T any](v []T, n int) []T {
	if len(v) == 0 {
		return make([]T, n)
	}
	out := make([]T, n)
	for i := range out {
		out[i] = v[0]
	}
	return out
}

func repeatBool(v []bool, n int) []bool {
	out := make([]bool, n)
	val := len(v) > 0 && v[0]
	for i := range out {
		out[i] = val
	}
	return out
}
