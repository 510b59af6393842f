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

// meanPartial is the sliding-window combine payload for mean: unlike
// variance, mean's (sum, count) state is additive, so no special merge
// formula is needed beyond component-wise addition.
type meanPartial struct {
	sum   float64
	count uint64
}

func meanCombine(a, b meanPartial) meanPartial {
	return meanPartial{sum: a.sum + b.sum, count: a.count + b.count}
}

// MeanAggEvaluator implements mean, always returning f64, across all three
// window shapes (spec.md §4.3). Null inputs are skipped (not counted).
type MeanAggEvaluator struct {
	input Ref
	args  WindowArgs

	tok     *token.MeanToken
	windows []*window.TwoStacks[meanPartial]
}

func NewMeanAggEvaluator(input Ref, args WindowArgs) *MeanAggEvaluator {
	return &MeanAggEvaluator{input: input, args: args, tok: token.NewMean()}
}

func (e *MeanAggEvaluator) Evaluate(info RuntimeInfo) (*columnar.Column, error) {
	view := info.Grouping()
	e.tok.Resize(view.NumGroups)
	if e.args.Kind == Sliding {
		for uint32(len(e.windows)) < view.NumGroups {
			e.windows = append(e.windows, window.New(e.args.Duration, meanPartial{}, meanCombine))
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
	out := &columnar.Column{Kind: columnar.KindFloat64, Valid: make([]bool, n), Float64s: make([]float64, n)}

	for i := 0; i < n; i++ {
		g := view.GroupIndices[i]
		valid := inputCol.IsValid(i)
		var v float64
		if valid {
			v = inputCol.Float64s[i]
		}

		switch e.args.Kind {
		case NoWindow, Since:
			if valid {
				e.tok.Update(g, v)
			}
			mean, ok := e.tok.Get(g)
			out.Float64s[i], out.Valid[i] = mean, ok
			if e.args.Kind == Since && ticksCol.IsValid(i) && boolAt(ticksCol, i) {
				e.tok.Reset(g)
			}
		case Sliding:
			w := e.windows[g]
			if valid {
				w.Update(meanPartial{sum: v, count: 1})
			} else {
				w.Update(meanPartial{})
			}
			cur := w.Query()
			if cur.count > 0 {
				out.Float64s[i], out.Valid[i] = cur.sum/float64(cur.count), true
			}
			if ticksCol.IsValid(i) && boolAt(ticksCol, i) {
				w.Tick()
			}
		}
	}
	return out, nil
}

// TokenKind and Snapshot implement driver.Snapshotter.
func (e *MeanAggEvaluator) TokenKind() string { return "mean" }

func (e *MeanAggEvaluator) Snapshot() ([]byte, error) {
	return e.tok.Serialize()
}
