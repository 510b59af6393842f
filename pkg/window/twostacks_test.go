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

package window

import "testing"

func sumCombine(a, b int64) int64 { return a + b }

// naiveModel mirrors spec.md §4.2 directly with a plain deque of slot
// sums, the currently-open slot always being the deque's last element:
// Update adds to the last slot; Tick appends a fresh empty slot and evicts
// the oldest slot once the deque holds more than N.
type naiveModel struct {
	n     int
	slots []int64
}

func (m *naiveModel) update(v int64) {
	if len(m.slots) == 0 {
		m.slots = append(m.slots, v)
		return
	}
	m.slots[len(m.slots)-1] += v
}

func (m *naiveModel) tick() {
	m.slots = append(m.slots, 0)
	if len(m.slots) > m.n {
		m.slots = m.slots[1:]
	}
}

func (m *naiveModel) query() int64 {
	var total int64
	for _, s := range m.slots {
		total += s
	}
	return total
}

// TestTwoStacks_MatchesNaiveRecomputation locks in spec.md's P5: the
// sliding-window aggregate equals the naive recomputation over the
// explicit window set.
func TestTwoStacks_MatchesNaiveRecomputation(t *testing.T) {
	const n = 3
	w := New(n, int64(0), sumCombine)
	naive := &naiveModel{n: n}

	type event struct {
		value int64
		tick  bool
	}
	events := []event{
		{1, false}, {2, true},
		{3, false}, {4, false}, {5, true},
		{6, true},
		{7, false}, {8, true},
		{9, true},
		{10, false}, {11, false}, {12, true},
	}

	for idx, e := range events {
		w.Update(e.value)
		naive.update(e.value)
		if got, want := w.Query(), naive.query(); got != want {
			t.Fatalf("event %d (%v): Query() = %d, want %d", idx, e, got, want)
		}
		if e.tick {
			w.Tick()
			naive.tick()
			if got, want := w.Query(), naive.query(); got != want {
				t.Fatalf("event %d (%v) post-tick: Query() = %d, want %d", idx, e, got, want)
			}
		}
	}
}

func TestTwoStacks_EmptyQueryIsIdentity(t *testing.T) {
	w := New(2, int64(0), sumCombine)
	if got := w.Query(); got != 0 {
		t.Fatalf("Query() on empty window = %d, want identity 0", got)
	}
}

func TestTwoStacks_NeverExceedsWindowAfterTick(t *testing.T) {
	const n = 2
	w := New(n, int64(0), sumCombine)
	for i := 0; i < 10; i++ {
		w.Update(int64(i))
		w.Tick()
		if c := w.Count(); c > n {
			t.Fatalf("Count() = %d after tick %d, want <= %d", c, i, n)
		}
	}
}
