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

// FieldEvaluator is any evaluator producing one leaf field of a record
// aggregation.
type FieldEvaluator interface {
	Evaluate(info RuntimeInfo) (*columnar.Column, error)
}

// RecordEvaluator compiles an aggregation over a record into a tree
// recursion over the record's schema (spec.md §4.3/§9): a gate (typically
// count_if(is_valid(input)) > 0) decides record-level null vs non-null,
// each leaf field is aggregated independently by its own typed evaluator,
// and the result is assembled by field with the gate's validity mask.
type RecordEvaluator struct {
	gate   *CountAggEvaluator
	fields map[string]FieldEvaluator
	order  []string
}

// NewRecordEvaluator constructs a record pushdown evaluator. fieldOrder
// fixes the output Column.Fields ordering (map iteration order is
// unspecified in Go, and output field order is observable).
func NewRecordEvaluator(gate *CountAggEvaluator, fields map[string]FieldEvaluator, fieldOrder []string) *RecordEvaluator {
	return &RecordEvaluator{gate: gate, fields: fields, order: fieldOrder}
}

func (e *RecordEvaluator) Evaluate(info RuntimeInfo) (*columnar.Column, error) {
	gateCol, err := e.gate.Evaluate(info, true)
	if err != nil {
		return nil, err
	}
	n := gateCol.Len()
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		valid[i] = gateCol.Uint32s[i] > 0
	}

	out := &columnar.Column{Kind: columnar.KindRecord, Valid: valid, Fields: make([]columnar.Column, 0, len(e.order))}
	for _, name := range e.order {
		fieldEval := e.fields[name]
		fieldCol, err := fieldEval.Evaluate(info)
		if err != nil {
			return nil, err
		}
		fieldCol.Name = name
		out.Fields = append(out.Fields, *fieldCol)
	}
	return out, nil
}
