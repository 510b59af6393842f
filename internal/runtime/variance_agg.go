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
	"math"

	"sparrow/pkg/columnar"
	"sparrow/pkg/token"
	"sparrow/pkg/window"
)

// welfordPartial is one tick-slot's Welford accumulator, combined across
// slots using Chan et al.'s parallel-variance merge formula so that the
// sliding window's two-stacks buffer can combine slots in any associative
// order.
type welfordPartial struct {
	count uint64
	mean  float64
	m2    float64
}

func welfordCombine(a, b welfordPartial) welfordPartial {
	if a.count == 0 {
		return b
	}
	if b.count == 0 {
		return a
	}
	n := a.count + b.count
	delta := b.mean - a.mean
	mean := a.mean + delta*float64(b.count)/float64(n)
	m2 := a.m2 + b.m2 + delta*delta*float64(a.count)*float64(b.count)/float64(n)
	return welfordPartial{count: n, mean: mean, m2: m2}
}

// VarianceAggEvaluator implements variance and stddev (stddev = sqrt of the
// same M2/count) across all three window shapes. spec.md §4.3: "Empty group
// produces null" — here that includes the single-observation case, since
// population variance of one point is undefined.
type VarianceAggEvaluator struct {
	input  Ref
	args   WindowArgs
	stddev bool

	tok     *token.VarianceToken
	windows []*window.TwoStacks[welfordPartial]
}

func NewVarianceAggEvaluator(input Ref, args WindowArgs, stddev bool) *VarianceAggEvaluator {
	return &VarianceAggEvaluator{input: input, args: args, stddev: stddev, tok: token.NewVariance()}
}

func (e *VarianceAggEvaluator) Evaluate(info RuntimeInfo) (*columnar.Column, error) {
	view := info.Grouping()
	e.tok.Resize(view.NumGroups)
	if e.args.Kind == Sliding {
		for uint32(len(e.windows)) < view.NumGroups {
			e.windows = append(e.windows, window.New(e.args.Duration, welfordPartial{}, welfordCombine))
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
			variance, ok := e.tok.Variance(g)
			out.Float64s[i], out.Valid[i] = e.finish(variance), ok
			if e.args.Kind == Since && ticksCol.IsValid(i) && boolAt(ticksCol, i) {
				e.tok.Reset(g)
			}
		case Sliding:
			w := e.windows[g]
			if valid {
				w.Update(welfordPartial{count: 1, mean: v})
			} else {
				w.Update(welfordPartial{})
			}
			cur := w.Query()
			if cur.count >= 2 {
				out.Float64s[i], out.Valid[i] = e.finish(cur.m2/float64(cur.count)), true
			}
			if ticksCol.IsValid(i) && boolAt(ticksCol, i) {
				w.Tick()
			}
		}
	}
	return out, nil
}

func (e *VarianceAggEvaluator) finish(variance float64) float64 {
	if e.stddev {
		return math.Sqrt(variance)
	}
	return variance
}

// TokenKind and Snapshot implement driver.Snapshotter.
func (e *VarianceAggEvaluator) TokenKind() string { return "variance" }

func (e *VarianceAggEvaluator) Snapshot() ([]byte, error) {
	return e.tok.Serialize()
}
