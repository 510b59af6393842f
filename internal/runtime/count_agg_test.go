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

import "testing"

// TestCountAggEvaluator_NoWindowRunningCount exercises plain count(x): only
// rows with a valid x increment, and the running count never resets.
func TestCountAggEvaluator_NoWindowRunningCount(t *testing.T) {
	const entity uint32 = 0
	keyHashes := []uint64{1, 1, 1, 1}
	view := testView(1, []uint32{entity, entity, entity, entity})

	input := int64Column([]int64{1, 0, 2, 0}, []bool{true, false, true, false})
	input.Name = "value"
	batch := testBatch(keyHashes, *input)

	eval := NewCountAggEvaluator(Ref{Column: "value"}, WindowArgs{Kind: NoWindow})
	out, err := eval.Evaluate(NewBatchRuntimeInfo(view, batch), true)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := []uint32{1, 1, 2, 2}
	for i, w := range want {
		if out.Uint32s[i] != w {
			t.Fatalf("row %d: count = %d, want %d", i, out.Uint32s[i], w)
		}
		if !out.Valid[i] {
			t.Fatalf("row %d: count must never be null once the entity has appeared", i)
		}
	}
}

// TestCountAggEvaluator_CountIfPredicate exercises count_if: the input
// column itself is the boolean predicate.
func TestCountAggEvaluator_CountIfPredicate(t *testing.T) {
	const entity uint32 = 0
	keyHashes := []uint64{1, 1, 1, 1}
	view := testView(1, []uint32{entity, entity, entity, entity})

	pred := boolColumn([]bool{true, false, true, true}, []bool{true, true, false, true})
	pred.Name = "pred"
	batch := testBatch(keyHashes, *pred)

	eval := NewCountAggEvaluator(Ref{Column: "pred"}, WindowArgs{Kind: NoWindow})
	out, err := eval.Evaluate(NewBatchRuntimeInfo(view, batch), false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// Row 0: pred=true -> count 1. Row 1: pred=false -> stays 1.
	// Row 2: pred null -> stays 1. Row 3: pred=true -> count 2.
	want := []uint32{1, 1, 1, 2}
	for i, w := range want {
		if out.Uint32s[i] != w {
			t.Fatalf("row %d: count_if = %d, want %d", i, out.Uint32s[i], w)
		}
	}
}

// TestCountAggEvaluator_GateMatchesCountIfValid locks in P4: a gate built
// from count_if(is_valid(input)) > 0 is non-null (true) starting exactly at
// the first row with a valid input, and stays true afterward (since the
// predicate "is_valid" is monotonic: once true it cannot become invalid).
func TestCountAggEvaluator_GateMatchesCountIfValid(t *testing.T) {
	const entity uint32 = 0
	keyHashes := []uint64{1, 1, 1}
	view := testView(1, []uint32{entity, entity, entity})

	input := int64Column([]int64{0, 0, 5}, []bool{false, false, true})
	input.Name = "value"
	// is_valid(input) as an explicit predicate column, matching how the
	// caller would rewrite first/last pushdown per spec.md §4.3.
	isValid := boolColumn([]bool{false, false, true}, nil)
	isValid.Name = "is_valid"
	batch := testBatch(keyHashes, *input, *isValid)

	eval := NewCountAggEvaluator(Ref{Column: "is_valid"}, WindowArgs{Kind: NoWindow})
	out, err := eval.Evaluate(NewBatchRuntimeInfo(view, batch), false)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	wantGate := []bool{false, false, true}
	for i, w := range wantGate {
		gate := out.Uint32s[i] > 0
		if gate != w {
			t.Fatalf("row %d: gate = %v, want %v", i, gate, w)
		}
	}
}

// TestCountAggEvaluator_Sliding exercises the Sliding shape: counts reset to
// 0 one tick window after a true tick, per the update->emit->reset policy.
func TestCountAggEvaluator_Sliding(t *testing.T) {
	const entity uint32 = 0
	keyHashes := []uint64{1, 1, 1, 1}
	view := testView(1, []uint32{entity, entity, entity, entity})

	input := int64Column([]int64{1, 1, 1, 1}, nil)
	input.Name = "value"
	tick := boolColumn([]bool{false, true, false, true}, nil)
	tick.Name = "tick"
	batch := testBatch(keyHashes, *input, *tick)

	eval := NewCountAggEvaluator(Ref{Column: "value"}, WindowArgs{Kind: Sliding, Ticks: Ref{Column: "tick"}, Duration: 1})
	out, err := eval.Evaluate(NewBatchRuntimeInfo(view, batch), true)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// Duration 1 tick window: each tick closes the window it's in.
	want := []uint32{1, 2, 1, 2}
	for i, w := range want {
		if out.Uint32s[i] != w {
			t.Fatalf("row %d: count = %d, want %d", i, out.Uint32s[i], w)
		}
	}
}
