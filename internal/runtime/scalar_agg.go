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
	"fmt"

	"sparrow/pkg/columnar"
	"sparrow/pkg/token"
	"sparrow/pkg/window"
)

// Step folds a new, valid input value into the existing (possibly null)
// state, returning the new state. It is never called for null inputs —
// the row loop handles "null input does not update state" uniformly.
type Step[T any] func(old T, oldValid bool, v T) T

// LastStep always replaces the state with the new value.
func LastStep[T any](_ T, _ bool, v T) T { return v }

// FirstStep keeps the existing state once set.
func FirstStep[T any](old T, oldValid bool, v T) T {
	if oldValid {
		return old
	}
	return v
}

// SumStep adds wrapping on overflow, per spec.md §4.3 ("integer overflow
// wraps for sum, documented").
func SumStep[T Numeric](old T, oldValid bool, v T) T {
	if !oldValid {
		return v
	}
	return old + v
}

// MinStep / MaxStep follow Go's native ordering, including its NaN
// behavior. spec.md §9(b) leaves NaN ordering under sliding windows
// unspecified for min/max, and deliberately pins this Go-native behavior
// rather than asserting IEEE correctness.
func MinStep[T Ordered](old T, oldValid bool, v T) T {
	if oldValid && old < v {
		return old
	}
	return v
}

func MaxStep[T Ordered](old T, oldValid bool, v T) T {
	if oldValid && old > v {
		return old
	}
	return v
}

// Numeric is the set of primitive types sum/mean support.
type Numeric interface {
	~int64 | ~uint64 | ~float64
}

// Ordered is the set of primitive types min/max support.
type Ordered interface {
	~int64 | ~uint64 | ~float64 | ~string
}

// ScalarAggEvaluator implements last/first/sum/min/max over one primitive
// type, across all three window shapes (spec.md §4.3).
type ScalarAggEvaluator[T any] struct {
	access Accessor[T]
	input  Ref
	args   WindowArgs
	step   Step[T]

	tok      *token.ScalarToken[T]
	windows  []*window.TwoStacks[Option[T]]
	identity Option[T]
	combine  window.Combine[Option[T]]
}

// NewScalarAggEvaluator constructs an evaluator. combine is required (and
// used) only for Sliding args; it must be associative, matching spec.md
// §4.2 — e.g. for last, combine(a,b) returns b if b.Valid else a.
func NewScalarAggEvaluator[T any](access Accessor[T], input Ref, args WindowArgs, step Step[T], combine window.Combine[Option[T]]) *ScalarAggEvaluator[T] {
	return &ScalarAggEvaluator[T]{
		access:   access,
		input:    input,
		args:     args,
		step:     step,
		tok:      token.NewScalar[T](),
		identity: Option[T]{},
		combine:  combine,
	}
}

// CombineLast prefers the more recently pushed valid value.
func CombineLast[T any](a, b Option[T]) Option[T] {
	if b.Valid {
		return b
	}
	return a
}

// CombineFirst prefers the earliest valid value (a is always older than b:
// front/back ordering within TwoStacks guarantees this).
func CombineFirst[T any](a, b Option[T]) Option[T] {
	if a.Valid {
		return a
	}
	return b
}

// CombineSum adds the two partials, treating an invalid side as the
// identity (skipping null inputs, per spec.md §4.2).
func CombineSum[T Numeric](a, b Option[T]) Option[T] {
	switch {
	case !a.Valid:
		return b
	case !b.Valid:
		return a
	default:
		return Option[T]{Value: a.Value + b.Value, Valid: true}
	}
}

// CombineMin / CombineMax combine two partials under Ordered's native
// comparison, skipping whichever side is invalid.
func CombineMin[T Ordered](a, b Option[T]) Option[T] {
	switch {
	case !a.Valid:
		return b
	case !b.Valid:
		return a
	case b.Value < a.Value:
		return b
	default:
		return a
	}
}

func CombineMax[T Ordered](a, b Option[T]) Option[T] {
	switch {
	case !a.Valid:
		return b
	case !b.Valid:
		return a
	case b.Value > a.Value:
		return b
	default:
		return a
	}
}

func (e *ScalarAggEvaluator[T]) Evaluate(info RuntimeInfo) (*columnar.Column, error) {
	view := info.Grouping()
	e.tok.Resize(view.NumGroups)
	if e.args.Kind == Sliding {
		for uint32(len(e.windows)) < view.NumGroups {
			e.windows = append(e.windows, window.New(e.args.Duration, e.identity, e.combine))
		}
	}

	inputCol, err := info.Value(e.input)
	if err != nil {
		return nil, err
	}
	var ticksCol *columnar.Column
	if e.args.Kind != NoWindow {
		ticksCol, err = info.Value(e.args.Ticks)
		if err != nil {
			return nil, err
		}
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

		switch e.args.Kind {
		case NoWindow:
			if valid {
				old, oldValid := e.tok.Get(g)
				e.tok.Put(g, e.step(old, oldValid, v), true)
			}
			cur, curValid := e.tok.Get(g)
			e.access.Set(out, i, cur, curValid)

		case Since:
			if valid {
				old, oldValid := e.tok.Get(g)
				e.tok.Put(g, e.step(old, oldValid, v), true)
			}
			cur, curValid := e.tok.Get(g)
			e.access.Set(out, i, cur, curValid)
			if ticksCol.IsValid(i) && boolAt(ticksCol, i) {
				e.tok.Reset(g)
			}

		case Sliding:
			w := e.windows[g]
			w.Update(Option[T]{Value: v, Valid: valid})
			cur := w.Query()
			e.access.Set(out, i, cur.Value, cur.Valid)
			if ticksCol.IsValid(i) && boolAt(ticksCol, i) {
				w.Tick()
			}
		}
	}
	return out, nil
}

func boolAt(col *columnar.Column, i int) bool {
	return col.Bools[i]
}

// TokenKind and Snapshot implement driver.Snapshotter, so a Driver run can
// quiesce the pipeline and persist this evaluator's token per spec.md §5.
func (e *ScalarAggEvaluator[T]) TokenKind() string {
	var zero T
	return fmt.Sprintf("scalar[%T]", zero)
}

func (e *ScalarAggEvaluator[T]) Snapshot() ([]byte, error) {
	return e.tok.Serialize()
}
