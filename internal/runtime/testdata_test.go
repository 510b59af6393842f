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
	"sparrow/pkg/grouping"
)

// boolColumn builds a fully-valid (or partially null, via valid) bool column.
func boolColumn(values []bool, valid []bool) *columnar.Column {
	if valid == nil {
		valid = allValid(len(values))
	}
	return &columnar.Column{Kind: columnar.KindBool, Valid: valid, Bools: values}
}

func int64Column(values []int64, valid []bool) *columnar.Column {
	if valid == nil {
		valid = allValid(len(values))
	}
	return &columnar.Column{Kind: columnar.KindInt64, Valid: valid, Int64s: values}
}

func float64Column(values []float64, valid []bool) *columnar.Column {
	if valid == nil {
		valid = allValid(len(values))
	}
	return &columnar.Column{Kind: columnar.KindFloat64, Valid: valid, Float64s: values}
}

func allValid(n int) []bool {
	v := make([]bool, n)
	for i := range v {
		v[i] = true
	}
	return v
}

// testBatch constructs a Batch with synthetic time/subsort/key_hash columns
// (monotonically increasing, one per row) plus the supplied named columns.
func testBatch(keyHashes []uint64, cols ...columnar.Column) *columnar.Batch {
	n := len(keyHashes)
	t := make([]int64, n)
	s := make([]uint64, n)
	for i := 0; i < n; i++ {
		t[i] = int64(i)
		s[i] = uint64(i)
	}
	return &columnar.Batch{Time: t, Subsort: s, KeyHash: keyHashes, Columns: cols}
}

// testView builds a grouping.View directly from per-row entity indices,
// bypassing grouping.KeyIndex.
func testView(numGroups uint32, groupIndices []uint32) grouping.View {
	return grouping.View{NumGroups: numGroups, GroupIndices: groupIndices}
}
