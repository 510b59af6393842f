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

package lag

import "testing"

func TestNew_RejectsZeroLag(t *testing.T) {
	if _, err := New[int64](0); err != ErrZeroLag {
		t.Fatalf("New(0) error = %v, want ErrZeroLag", err)
	}
	if _, err := New[int64](-1); err != ErrZeroLag {
		t.Fatalf("New(-1) error = %v, want ErrZeroLag", err)
	}
}

// TestBuffer_ScenarioLag1 locks in spec.md §8 scenario 5: lag(1, i64) over
// entities A and B with inputs (A,5) (B,24) (A,17) (A,null) (A,12) (A,null),
// expecting emissions null, null, 5, 17, 17, 12.
func TestBuffer_ScenarioLag1(t *testing.T) {
	buf, err := New[int64](1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	const (
		entityA uint32 = 0
		entityB uint32 = 1
	)
	buf.Resize(2)

	type step struct {
		entity    uint32
		v         int64
		valid     bool
		wantV     int64
		wantValid bool
	}
	steps := []step{
		{entityA, 5, true, 0, false},
		{entityB, 24, true, 0, false},
		{entityA, 17, true, 5, true},
		{entityA, 0, false, 17, true},
		{entityA, 12, true, 17, true},
		{entityA, 0, false, 12, true},
	}

	for i, s := range steps {
		gotV, gotValid := buf.Observe(s.entity, s.v, s.valid)
		if gotV != s.wantV || gotValid != s.wantValid {
			t.Fatalf("step %d: Observe(%d, %v, %v) = (%d, %v), want (%d, %v)",
				i, s.entity, s.v, s.valid, gotV, gotValid, s.wantV, s.wantValid)
		}
	}
}

func TestBuffer_LagTwoSkipsOneElement(t *testing.T) {
	buf, err := New[int64](2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	buf.Resize(1)

	inputs := []int64{1, 2, 3, 4, 5}
	want := []struct {
		v     int64
		valid bool
	}{
		{0, false}, {0, false}, {1, true}, {2, true}, {3, true},
	}
	for i, v := range inputs {
		gotV, gotValid := buf.Observe(0, v, true)
		if gotV != want[i].v || gotValid != want[i].valid {
			t.Fatalf("step %d: Observe(0, %d, true) = (%d, %v), want (%d, %v)",
				i, v, gotV, gotValid, want[i].v, want[i].valid)
		}
	}
}

func TestBuffer_NullInputDoesNotAdvanceRing(t *testing.T) {
	buf, err := New[int64](1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	buf.Resize(1)

	buf.Observe(0, 100, true)
	// A run of nulls must keep replaying the same oldest value, never
	// advancing the ring (nothing valid was pushed to replace it).
	for i := 0; i < 3; i++ {
		v, valid := buf.Observe(0, 0, false)
		if !valid || v != 100 {
			t.Fatalf("iteration %d: Observe with null input = (%d, %v), want (100, true)", i, v, valid)
		}
	}
}

func TestBuffer_IndependentPerEntity(t *testing.T) {
	buf, err := New[int64](1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	buf.Resize(2)

	buf.Observe(0, 1, true)
	buf.Observe(1, 2, true)

	v0, valid0 := buf.Observe(0, 10, true)
	v1, valid1 := buf.Observe(1, 20, true)
	if !valid0 || v0 != 1 {
		t.Fatalf("entity 0: got (%d, %v), want (1, true)", v0, valid0)
	}
	if !valid1 || v1 != 2 {
		t.Fatalf("entity 1: got (%d, %v), want (2, true)", v1, valid1)
	}
}
