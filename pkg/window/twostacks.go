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

// Package window implements the two-stacks sliding window buffer: a pair of
// monoidal stacks giving amortized O(1) push/evict/query for an aggregate
// over the last N ticks, per spec.md §4.2.
package window

// Combine associatively combines two partial aggregates. Implementations
// for order-sensitive operators (last, first) simply return b (or a, for
// first) — "combine" there means "prefer the more recent slot", which is
// still associative.
type Combine[T any] func(a, b T) T

type slot[T any] struct {
	value T // the raw value(s) folded into this slot since the last tick
	acc   T // combine(slot below's acc, value) — the running combine
}

type stack[T any] struct {
	slots []slot[T]
}

func (s *stack[T]) push(v T, combine Combine[T]) {
	acc := v
	if n := len(s.slots); n > 0 {
		acc = combine(s.slots[n-1].acc, v)
	}
	s.slots = append(s.slots, slot[T]{value: v, acc: acc})
}

func (s *stack[T]) top() (T, bool) {
	if len(s.slots) == 0 {
		var zero T
		return zero, false
	}
	return s.slots[len(s.slots)-1].acc, true
}

func (s *stack[T]) popAll() []slot[T] {
	out := s.slots
	s.slots = nil
	return out
}

func (s *stack[T]) pop() {
	s.slots = s.slots[:len(s.slots)-1]
}

func (s *stack[T]) len() int { return len(s.slots) }

// TwoStacks is a sliding window over the last N window-tick slots for one
// entity. Each slot accumulates all updates received since the previous
// tick. Query combines across the whole window in O(1) amortized per-row
// cost (each element is pushed onto front/back and popped from front at
// most once across its lifetime).
type TwoStacks[T any] struct {
	front, back stack[T]
	n           int // configured window duration, in ticks
	identity    T
	combine     Combine[T]
}

// New constructs a TwoStacks window of duration n ticks. identity must be
// the combine operation's identity element (0 for sum, +Inf for min, etc.).
func New[T any](n int, identity T, combine Combine[T]) *TwoStacks[T] {
	return &TwoStacks[T]{n: n, identity: identity, combine: combine}
}

// Update folds v into the current (most recent, still-open) slot. If no
// slot is open yet (before the first Update), a new slot is opened first;
// after a tick, the fresh slot opened by Tick is the one folded into.
func (w *TwoStacks[T]) Update(v T) {
	if w.back.len() == 0 {
		w.back.push(v, w.combine)
		return
	}
	// Fold into the open slot by popping and re-pushing with the combined
	// value — keeps each slot's "value" meaning "everything since the last
	// tick" while acc stays the running combine.
	top := w.back.slots[w.back.len()-1]
	w.back.pop()
	w.back.push(w.combine(top.value, v), w.combine)
}

// Tick closes the current slot, evicts the oldest slots so that at most N-1
// remain, and opens a fresh empty slot, so the window holds at most N.
// Per spec.md §4.2's "update → emit → reset" policy, callers invoke Tick
// only after the row's value has already been folded in and the row's
// output already emitted.
func (w *TwoStacks[T]) Tick() {
	// Evict oldest closed slots first, using only the slots closed before
	// this tick, down to n-1 of them — leaving room for the fresh open slot
	// pushed below to become the nth. The slot this tick just closed must
	// stay eligible for eviction on a later tick, not get swept into this
	// drain alongside the fresh slot (which popAll below would do if the
	// fresh slot were pushed before this loop ran).
	for w.front.len()+w.back.len() >= w.n {
		if w.front.len() == 0 {
			// Drain back onto front in reverse order, so that front's top
			// (the next element popped) is back's bottom — the oldest
			// slot still held. Each element is pushed exactly once here
			// per trip through the back stack, so the amortized cost
			// across the element's lifetime (one push to back, one move
			// to front, one pop from front) stays O(1).
			// On front, each slot sits above the newer slots, so its acc is
			// combine(slot, acc below) — older operand first, which keeps
			// order-sensitive combines (last, first) correct.
			drained := w.back.popAll()
			for i := len(drained) - 1; i >= 0; i-- {
				v := drained[i].value
				acc := v
				if n := w.front.len(); n > 0 {
					acc = w.combine(v, w.front.slots[n-1].acc)
				}
				w.front.slots = append(w.front.slots, slot[T]{value: v, acc: acc})
			}
		}
		if w.front.len() > 0 {
			w.front.pop()
		}
	}

	// Open a fresh (empty) slot so the next Update starts a new window
	// bucket rather than continuing to fold into the just-closed one.
	w.back.push(w.identity, w.combine)
}

// Query returns the combined aggregate over the current window.
func (w *TwoStacks[T]) Query() T {
	f, fok := w.front.top()
	b, bok := w.back.top()
	switch {
	case fok && bok:
		return w.combine(f, b)
	case fok:
		return f
	case bok:
		return b
	default:
		return w.identity
	}
}

// Count returns the number of closed-or-open slots currently retained
// (used by tests to assert the window never exceeds N slots after a tick).
func (w *TwoStacks[T]) Count() int {
	return w.front.len() + w.back.len()
}
