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

// Package runtime: shift.go implements shift_until and shift_to (spec.md
// §4.4). Unlike the aggregation evaluators, a shift operator's output is
// not 1:1 aligned with its input batch — it re-times rows and re-orders the
// output stream — so it exposes Process/Drain rather than Evaluate.
package runtime

import (
	"container/heap"

	"sparrow/pkg/columnar"
)

// OutputRow is one re-timed, re-ordered emission from a shift operator.
type OutputRow[T any] struct {
	NewTime     int64
	Subsort     uint64
	KeyHash     uint64
	SourceRowID uint64
	Value       T
	Valid       bool
}

type pendingInput[T any] struct {
	time, newTime int64
	keyHash       uint64
	sourceRowID   uint64
	value         T
	valid         bool
}

// ShiftUntilOperator buffers rows per entity until cond becomes true on a
// subsequent row for that entity, then emits all buffered rows for the
// entity at that row's time, in input order; rows for which cond never
// triggers are never emitted: collect pending rows, then release them as a
// batch once the per-row trigger fires.
type ShiftUntilOperator[T any] struct {
	access      Accessor[T]
	valueRef    Ref
	condRef     Ref
	pending     map[uint32][]pendingInput[T]
	rowCounter  uint64
}

func NewShiftUntilOperator[T any](access Accessor[T], valueRef, condRef Ref) *ShiftUntilOperator[T] {
	return &ShiftUntilOperator[T]{
		access:   access,
		valueRef: valueRef,
		condRef:  condRef,
		pending:  make(map[uint32][]pendingInput[T]),
	}
}

// Process consumes one input batch and returns the emissions it triggers,
// in the order of their triggering rows, so NewTime is non-decreasing
// within this batch. Each trigger's rows come together, in input order,
// with Subsort numbered 0,1,2,… from the start of that trigger; emissions
// from different triggers that share a NewTime are not re-sorted by
// (Subsort, KeyHash). Merging across batches (all of which are already
// time-ordered among themselves) is the caller's responsibility, matching
// "batches from an operator are disjoint and in the same order" (spec.md §3).
func (s *ShiftUntilOperator[T]) Process(info RuntimeInfo, batch *columnar.Batch) ([]OutputRow[T], error) {
	view := info.Grouping()
	valueCol, err := info.Value(s.valueRef)
	if err != nil {
		return nil, err
	}
	condCol, err := info.Value(s.condRef)
	if err != nil {
		return nil, err
	}

	var out []OutputRow[T]
	n := batch.Len()
	for i := 0; i < n; i++ {
		g := view.GroupIndices[i]
		row := pendingInput[T]{
			time:        batch.Time[i],
			keyHash:     batch.KeyHash[i],
			sourceRowID: s.rowCounter,
			valid:       valueCol.IsValid(i),
		}
		s.rowCounter++
		if row.valid {
			row.value = s.access.Get(valueCol, i)
		}
		s.pending[g] = append(s.pending[g], row)

		if condCol.IsValid(i) && boolAt(condCol, i) {
			buffered := s.pending[g]
			delete(s.pending, g)
			for subsort, p := range buffered {
				out = append(out, OutputRow[T]{
					NewTime:     batch.Time[i],
					Subsort:     uint64(subsort),
					KeyHash:     p.keyHash,
					SourceRowID: p.sourceRowID,
					Value:       p.value,
					Valid:       p.valid,
				})
			}
		}
	}
	return out, nil
}

// PendingCount reports how many rows remain buffered, awaiting a trigger
// that may never come — exposed for tests and for diagnostics, not emitted.
func (s *ShiftUntilOperator[T]) PendingCount() int {
	total := 0
	for _, rows := range s.pending {
		total += len(rows)
	}
	return total
}

// shiftToHeap is a min-heap ordered by (NewTime, Subsort, SourceRowID), the
// ordering key spec.md §9 calls out explicitly for the shift_to priority
// queue.
type shiftToHeap[T any] []OutputRow[T]

func (h shiftToHeap[T]) Len() int { return len(h) }
func (h shiftToHeap[T]) Less(i, j int) bool {
	if h[i].NewTime != h[j].NewTime {
		return h[i].NewTime < h[j].NewTime
	}
	if h[i].Subsort != h[j].Subsort {
		return h[i].Subsort < h[j].Subsort
	}
	return h[i].SourceRowID < h[j].SourceRowID
}
func (h shiftToHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *shiftToHeap[T]) Push(x any)   { *h = append(*h, x.(OutputRow[T])) }
func (h *shiftToHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// ShiftToOperator re-times each row to new_time (dropping it if new_time is
// null or precedes the row's own time) and re-orders emissions across
// batches via a global priority queue, per spec.md §4.4. Because new_time
// can jump arbitrarily far ahead or behind relative to input arrival order,
// releasing a pending emission is gated by a watermark: the first pending
// new_time seen in the batch currently being merged in. This is the
// "known policy decision" spec.md §4.4 calls out — releasing anything
// below the watermark could emit an output that precedes one already
// released for an overlapping input batch.
type ShiftToOperator[T any] struct {
	access       Accessor[T]
	valueRef     Ref
	newTimeRef   Ref
	heap         shiftToHeap[T]
	rowCounter   uint64
	watermark    int64
	haveWatermark bool
}

func NewShiftToOperator[T any](access Accessor[T], valueRef, newTimeRef Ref) *ShiftToOperator[T] {
	return &ShiftToOperator[T]{access: access, valueRef: valueRef, newTimeRef: newTimeRef}
}

// Process enqueues each row of the batch (dropping those whose new_time is
// null or precedes row.Time) onto the global priority queue, then releases
// every emission that is safe given the watermark rule below.
func (s *ShiftToOperator[T]) Process(info RuntimeInfo, batch *columnar.Batch) ([]OutputRow[T], error) {
	valueCol, err := info.Value(s.valueRef)
	if err != nil {
		return nil, err
	}
	newTimeCol, err := info.Value(s.newTimeRef)
	if err != nil {
		return nil, err
	}

	n := batch.Len()
	var tLo, tHi int64
	if n > 0 {
		tLo, tHi = batch.Time[0], batch.Time[n-1]
	}

	for i := 0; i < n; i++ {
		if !newTimeCol.IsValid(i) {
			continue
		}
		newTime := newTimeCol.Int64s[i]
		if newTime < batch.Time[i] {
			continue
		}
		row := OutputRow[T]{
			NewTime:     newTime,
			Subsort:     s.rowCounter,
			KeyHash:     batch.KeyHash[i],
			SourceRowID: s.rowCounter,
			Valid:       valueCol.IsValid(i),
		}
		if row.Valid {
			row.Value = s.access.Get(valueCol, i)
		}
		s.rowCounter++
		heap.Push(&s.heap, row)

		if !s.haveWatermark {
			s.watermark = newTime
			s.haveWatermark = true
		} else if newTime < s.watermark {
			s.watermark = newTime
		}
	}

	if n == 0 {
		return nil, nil
	}
	return s.releaseUpTo(tHi, tLo), nil
}

// releaseUpTo drains every heap-top emission strictly below tHi, refusing
// to cross below the current watermark (the gap-safety rule in spec.md
// §4.4). tLo participates only in advancing the watermark forward once the
// queue has been drained past it, so a quiet stretch of entity time doesn't
// pin the watermark to a stale low value forever.
func (s *ShiftToOperator[T]) releaseUpTo(tHi, tLo int64) []OutputRow[T] {
	var out []OutputRow[T]
	for s.heap.Len() > 0 {
		top := s.heap[0]
		if top.NewTime >= tHi {
			break
		}
		if top.NewTime < s.watermark {
			break
		}
		out = append(out, heap.Pop(&s.heap).(OutputRow[T]))
	}
	if s.heap.Len() > 0 && s.heap[0].NewTime > tLo {
		s.watermark = s.heap[0].NewTime
	}
	return out
}

// Close releases every remaining pending emission, applying final_result_time
// if set (nil means unbounded): rows scheduled strictly after are dropped;
// rows scheduled before or at it are released, per spec.md §4.4.
func (s *ShiftToOperator[T]) Close(finalResultTime *int64) []OutputRow[T] {
	var out []OutputRow[T]
	for s.heap.Len() > 0 {
		row := heap.Pop(&s.heap).(OutputRow[T])
		if finalResultTime != nil && row.NewTime > *finalResultTime {
			continue
		}
		out = append(out, row)
	}
	return out
}

// Pending reports the number of emissions still queued (diagnostics/tests).
func (s *ShiftToOperator[T]) Pending() int { return s.heap.Len() }
