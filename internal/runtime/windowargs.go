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

// WindowKind selects one of the three argument shapes named in spec.md
// §4.3: NoWindow, Since(ticks), Sliding(ticks, duration).
type WindowKind int

const (
	NoWindow WindowKind = iota
	Since
	Sliding
)

// WindowArgs is the tagged variant over argument shape named in spec.md §9
// ("dynamic operator dispatch"): one small struct, instead of three
// separate evaluator types, keeps the per-type primitive handling (the
// expensive dimension) factored out from the window-shape handling (the
// cheap, three-way dimension).
type WindowArgs struct {
	Kind WindowKind
	// Ticks is required for Since and Sliding; ignored for NoWindow.
	Ticks Ref
	// Duration is the number of ticks the sliding window retains; required
	// for Sliding, ignored otherwise.
	Duration int
}

// Option is the nullable-state payload combined inside a sliding window's
// two-stacks buffer: wrapping validity alongside T lets the same buffer
// generalize across commutative (sum/min/max) and order-sensitive
// (last/first) operators per spec.md §4.2, and makes "null inputs are
// skipped" a property of Combine rather than a special case in the row
// loop.
type Option[T any] struct {
	Value T
	Valid bool
}
