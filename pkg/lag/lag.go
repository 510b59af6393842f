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

// Package lag implements the per-entity ring buffer backing lag(N, expr):
// on each row, emit the oldest of the last N non-null observations (or null
// if fewer than N have been seen), then push the current row's value.
//
// Lag only ever needs the last N elements, and N is a compile-time constant
// of the evaluator instance, so a fixed-size ring array is enough: no
// allocation per push, no indirection per element, unlike a generic FIFO
// queue backed by container/list.
package lag

import "errors"

// ErrZeroLag reports that lag(0, …) was requested. spec.md §9(a) rejects
// this at compile time; the evaluator construction boundary stands in for
// the (out-of-scope) compiler here.
var ErrZeroLag = errors.New("lag: N must be >= 1")

// Buffer holds one ring per entity, each of fixed capacity N.
type Buffer[T any] struct {
	n       int
	rings   [][]T
	valid   [][]bool
	heads   []int
	filled  []int
}

// New constructs a lag buffer for window size n. Returns ErrZeroLag if n<1.
func New[T any](n int) (*Buffer[T], error) {
	if n < 1 {
		return nil, ErrZeroLag
	}
	return &Buffer[T]{n: n}, nil
}

// Resize grows capacity to at least newLen entities.
func (b *Buffer[T]) Resize(newLen uint32) {
	for uint32(len(b.rings)) < newLen {
		b.rings = append(b.rings, make([]T, b.n))
		b.valid = append(b.valid, make([]bool, b.n))
		b.heads = append(b.heads, 0)
		b.filled = append(b.filled, 0)
	}
}

// Observe returns the oldest buffered value for entityIndex (or the zero
// value and false if the ring is not yet full), then pushes v if valid is
// true. Matches spec.md §4.5: "if buffer is full, emit the oldest element;
// else emit null. Then, if input_valid[i], push input[i]."
func (b *Buffer[T]) Observe(entityIndex uint32, v T, valid bool) (out T, outValid bool) {
	full := b.filled[entityIndex] >= b.n
	if full {
		// The oldest element sits at the current head (the next slot to
		// be overwritten).
		h := b.heads[entityIndex]
		out, outValid = b.rings[entityIndex][h], b.valid[entityIndex][h]
	}
	if valid {
		b.push(entityIndex, v)
	}
	return out, outValid
}

func (b *Buffer[T]) push(entityIndex uint32, v T) {
	h := b.heads[entityIndex]
	b.rings[entityIndex][h] = v
	b.valid[entityIndex][h] = true
	b.heads[entityIndex] = (h + 1) % b.n
	if b.filled[entityIndex] < b.n {
		b.filled[entityIndex]++
	}
}
