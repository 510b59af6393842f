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
	"sparrow/pkg/token"
	"sparrow/pkg/window"
)

// CountAggEvaluator implements count and count_if (selected by Evaluate's
// countAll argument; for count_if only rows where the predicate holds
// increment the counter) across all three window shapes. Per spec.md §4.3,
// count is u32 and 0 (not null) once the entity has been seen at all — it
// is the canonical "non-empty window" predicate (count_if(...) > 0) used by
// first/last pushdown gating.
type CountAggEvaluator struct {
	input     Ref // count(x): the x whose valid rows are counted; count_if: the boolean predicate
	countNull bool
	args      WindowArgs

	tok     *token.CountToken
	windows []*window.TwoStacks[uint64]
}

// NewCountAggEvaluator constructs a count/count_if evaluator. When Evaluate
// is called with countAll true (plain count(x)), every row with a valid
// input increments the counter; otherwise (count_if), the input column
// itself is the boolean predicate and only rows where it is valid-and-true
// increment.
func NewCountAggEvaluator(input Ref, args WindowArgs) *CountAggEvaluator {
	return &CountAggEvaluator{input: input, args: args, tok: token.NewCount()}
}

func countCombine(a, b uint64) uint64 { return a + b }

func (e *CountAggEvaluator) Evaluate(info RuntimeInfo, countAll bool) (*columnar.Column, error) {
	view := info.Grouping()
	e.tok.Resize(view.NumGroups)
	if e.args.Kind == Sliding {
		for uint32(len(e.windows)) < view.NumGroups {
			e.windows = append(e.windows, window.New(e.args.Duration, uint64(0), countCombine))
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
	out := &columnar.Column{Kind: columnar.KindUint32, Valid: make([]bool, n), Uint32s: make([]uint32, n)}

	for i := 0; i < n; i++ {
		g := view.GroupIndices[i]
		counts := countAll && inputCol.IsValid(i)
		if !countAll {
			counts = inputCol.IsValid(i) && boolAt(inputCol, i)
		}

		switch e.args.Kind {
		case NoWindow, Since:
			cur, seen := e.tok.Get(g)
			if counts {
				cur++
				seen = true
				e.tok.Put(g, cur, seen)
			}
			out.Uint32s[i] = cur
			out.Valid[i] = true // count is always non-null once the op has run; spec §4.3: 0 when never seen.
			if e.args.Kind == Since && ticksCol.IsValid(i) && boolAt(ticksCol, i) {
				e.tok.Reset(g)
			}
		case Sliding:
			w := e.windows[g]
			var delta uint64
			if counts {
				delta = 1
			}
			w.Update(delta)
			out.Uint32s[i] = uint32(w.Query())
			out.Valid[i] = true
			if ticksCol.IsValid(i) && boolAt(ticksCol, i) {
				w.Tick()
			}
		}
	}
	return out, nil
}

// TokenKind and Snapshot implement driver.Snapshotter.
func (e *CountAggEvaluator) TokenKind() string { return "count" }

func (e *CountAggEvaluator) Snapshot() ([]byte, error) {
	return e.tok.Serialize()
}
