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
	"testing"
)

// TestShiftUntilOperator_BuffersUntilCondTrue locks in scenario 3:
// shift_until buffers each entity's rows until cond becomes true on a
// subsequent row for that entity, emitting all buffered rows at that row's
// time in input order; rows for an entity that never triggers are dropped.
func TestShiftUntilOperator_BuffersUntilCondTrue(t *testing.T) {
	const entityA, entityB uint32 = 0, 1
	// Entity A: two buffered rows, triggered on the third. Entity B: one
	// row that never triggers.
	keyHashes := []uint64{10, 20, 10, 10}
	groupIndices := []uint32{entityA, entityB, entityA, entityA}
	view := testView(2, groupIndices)

	value := int64Column([]int64{10, 99, 20, 30}, nil)
	value.Name = "value"
	cond := boolColumn([]bool{false, false, false, true}, nil)
	cond.Name = "cond"

	batch := &columnar.Batch{
		Time:    []int64{1, 1, 2, 3},
		Subsort: []uint64{0, 1, 0, 0},
		KeyHash: keyHashes,
		Columns: []columnar.Column{*value, *cond},
	}
	info := NewBatchRuntimeInfo(view, batch)

	op := NewShiftUntilOperator[int64](Int64Accessor, Ref{Column: "value"}, Ref{Column: "cond"})
	out, err := op.Process(info, batch)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(out) != 3 {
		t.Fatalf("got %d emissions, want 3 (entity B never triggers)", len(out))
	}
	for _, row := range out {
		if row.NewTime != 3 {
			t.Fatalf("emission %+v: NewTime = %d, want 3", row, row.NewTime)
		}
	}
	// Input order (10 then 20) must be preserved via ascending subsort.
	if out[0].Value != 10 || out[0].Subsort != 0 {
		t.Fatalf("emission 0 = %+v, want value=10 subsort=0", out[0])
	}
	if out[1].Value != 20 || out[1].Subsort != 1 {
		t.Fatalf("emission 1 = %+v, want value=20 subsort=1", out[1])
	}
	if out[2].Value != 30 || out[2].Subsort != 2 {
		t.Fatalf("emission 2 = %+v, want value=30 subsort=2", out[2])
	}

	if pending := op.PendingCount(); pending != 1 {
		t.Fatalf("PendingCount() = %d, want 1 (entity B's never-triggered row)", pending)
	}
}

// TestShiftToOperator_OrdersAcrossEntities locks in scenario 4: shift_to
// output ordered purely by new_time (then subsort), independent of which
// entity or input position produced each row.
func TestShiftToOperator_OrdersAcrossEntities(t *testing.T) {
	const ryan, ben uint32 = 0, 1
	keyHashes := []uint64{1, 1, 1, 2, 2, 2}
	groupIndices := []uint32{ryan, ryan, ryan, ben, ben, ben}
	view := testView(2, groupIndices)

	value := int64Column([]int64{4, 2, 3, 5, 1, 6}, nil)
	value.Name = "value"
	newTime := int64Column([]int64{622, 720, 722, 722, 819, 822}, nil)
	newTime.Name = "new_time"

	batch := &columnar.Batch{
		Time:    []int64{600, 600, 600, 600, 600, 600},
		Subsort: []uint64{0, 1, 2, 3, 4, 5},
		KeyHash: keyHashes,
		Columns: []columnar.Column{*value, *newTime},
	}
	info := NewBatchRuntimeInfo(view, batch)

	op := NewShiftToOperator[int64](Int64Accessor, Ref{Column: "value"}, Ref{Column: "new_time"})
	out, err := op.Process(info, batch)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	out = append(out, op.Close(nil)...)

	wantOrder := []int64{4, 2, 3, 5, 1, 6}
	wantTimes := []int64{622, 720, 722, 722, 819, 822}
	if len(out) != len(wantOrder) {
		t.Fatalf("got %d emissions, want %d", len(out), len(wantOrder))
	}
	for i := range wantOrder {
		if out[i].Value != wantOrder[i] {
			t.Fatalf("emission %d: value = %d, want %d", i, out[i].Value, wantOrder[i])
		}
		if out[i].NewTime != wantTimes[i] {
			t.Fatalf("emission %d: new_time = %d, want %d", i, out[i].NewTime, wantTimes[i])
		}
	}
	// Global ordering is non-decreasing in NewTime (P6).
	for i := 1; i < len(out); i++ {
		if out[i].NewTime < out[i-1].NewTime {
			t.Fatalf("emission %d (%d) precedes emission %d (%d): not sorted by new_time", i, out[i].NewTime, i-1, out[i-1].NewTime)
		}
	}
}

// TestShiftToOperator_DropsBackwardOrNullNewTime locks in spec.md §4.4:
// new_time < row.time, or null, drops the row silently.
func TestShiftToOperator_DropsBackwardOrNullNewTime(t *testing.T) {
	const entity uint32 = 0
	keyHashes := []uint64{1, 1, 1}
	view := testView(1, []uint32{entity, entity, entity})

	value := int64Column([]int64{1, 2, 3}, nil)
	value.Name = "value"
	newTime := int64Column([]int64{5, 0, 20}, []bool{true, false, true})
	newTime.Name = "new_time"

	batch := &columnar.Batch{
		Time:    []int64{10, 10, 10},
		Subsort: []uint64{0, 1, 2},
		KeyHash: keyHashes,
		Columns: []columnar.Column{*value, *newTime},
	}
	info := NewBatchRuntimeInfo(view, batch)

	op := NewShiftToOperator[int64](Int64Accessor, Ref{Column: "value"}, Ref{Column: "new_time"})
	out, err := op.Process(info, batch)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	out = append(out, op.Close(nil)...)

	// Row 0 (new_time=5 < row.time=10): dropped. Row 1 (null): dropped.
	// Row 2 (new_time=20 >= row.time=10): kept.
	if len(out) != 1 {
		t.Fatalf("got %d emissions, want 1", len(out))
	}
	if out[0].Value != 3 || out[0].NewTime != 20 {
		t.Fatalf("emission = %+v, want value=3 new_time=20", out[0])
	}
}

// TestShiftToOperator_FinalResultTimeDropsLaterRows locks in spec.md §4.4's
// final_result_time close behavior: rows scheduled strictly after are
// dropped; rows at or before are released.
func TestShiftToOperator_FinalResultTimeDropsLaterRows(t *testing.T) {
	const entity uint32 = 0
	keyHashes := []uint64{1, 1}
	view := testView(1, []uint32{entity, entity})

	value := int64Column([]int64{1, 2}, nil)
	value.Name = "value"
	newTime := int64Column([]int64{100, 200}, nil)
	newTime.Name = "new_time"

	batch := &columnar.Batch{
		Time:    []int64{0, 0},
		Subsort: []uint64{0, 1},
		KeyHash: keyHashes,
		Columns: []columnar.Column{*value, *newTime},
	}
	info := NewBatchRuntimeInfo(view, batch)

	op := NewShiftToOperator[int64](Int64Accessor, Ref{Column: "value"}, Ref{Column: "new_time"})
	if _, err := op.Process(info, batch); err != nil {
		t.Fatalf("Process: %v", err)
	}

	limit := int64(150)
	out := op.Close(&limit)
	if len(out) != 1 || out[0].Value != 1 {
		t.Fatalf("Close(150) = %+v, want only value=1 (new_time=100)", out)
	}
}
