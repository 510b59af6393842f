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

import "sparrow/pkg/columnar"

// Accessor binds a Go type T to the concrete Column.Kind and slice it lives
// in, so evaluators can stay generic over T while the batch stays a plain
// struct-of-arrays. One Accessor exists per primitive type the aggregation
// evaluators support (spec.md §4.3's "each supported primitive type").
type Accessor[T any] struct {
	Kind  columnar.Kind
	Get   func(col *columnar.Column, i int) T
	New   func(n int) *columnar.Column
	Set   func(col *columnar.Column, i int, v T, valid bool)
}

var Int64Accessor = Accessor[int64]{
	Kind: columnar.KindInt64,
	Get:  func(c *columnar.Column, i int) int64 { return c.Int64s[i] },
	New: func(n int) *columnar.Column {
		return &columnar.Column{Kind: columnar.KindInt64, Valid: make([]bool, n), Int64s: make([]int64, n)}
	},
	Set: func(c *columnar.Column, i int, v int64, valid bool) { c.Int64s[i] = v; c.Valid[i] = valid },
}

var Uint64Accessor = Accessor[uint64]{
	Kind: columnar.KindUint64,
	Get:  func(c *columnar.Column, i int) uint64 { return c.Uint64s[i] },
	New: func(n int) *columnar.Column {
		return &columnar.Column{Kind: columnar.KindUint64, Valid: make([]bool, n), Uint64s: make([]uint64, n)}
	},
	Set: func(c *columnar.Column, i int, v uint64, valid bool) { c.Uint64s[i] = v; c.Valid[i] = valid },
}

var Float64Accessor = Accessor[float64]{
	Kind: columnar.KindFloat64,
	Get:  func(c *columnar.Column, i int) float64 { return c.Float64s[i] },
	New: func(n int) *columnar.Column {
		return &columnar.Column{Kind: columnar.KindFloat64, Valid: make([]bool, n), Float64s: make([]float64, n)}
	},
	Set: func(c *columnar.Column, i int, v float64, valid bool) { c.Float64s[i] = v; c.Valid[i] = valid },
}

var BoolAccessor = Accessor[bool]{
	Kind: columnar.KindBool,
	Get:  func(c *columnar.Column, i int) bool { return c.Bools[i] },
	New: func(n int) *columnar.Column {
		return &columnar.Column{Kind: columnar.KindBool, Valid: make([]bool, n), Bools: make([]bool, n)}
	},
	Set: func(c *columnar.Column, i int, v bool, valid bool) { c.Bools[i] = v; c.Valid[i] = valid },
}

var StringAccessor = Accessor[string]{
	Kind: columnar.KindString,
	Get:  func(c *columnar.Column, i int) string { return c.Strings[i] },
	New: func(n int) *columnar.Column {
		return &columnar.Column{Kind: columnar.KindString, Valid: make([]bool, n), Strings: make([]string, n)}
	},
	Set: func(c *columnar.Column, i int, v string, valid bool) { c.Strings[i] = v; c.Valid[i] = valid },
}
