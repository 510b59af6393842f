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

// Package columnar defines the ordered record batch that flows between
// evaluators: a struct-of-arrays value with the three synthetic columns
// (time, subsort, key_hash) common to every table, plus user columns.
package columnar

// Kind identifies the primitive type carried by a Column.
type Kind int

const (
	KindBool Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindRecord
)

// Column is a single named array, position-aligned with the owning Batch.
// Exactly one of the typed slices is populated, selected by Kind: each
// field slot gets its own dedicated slice rather than a boxed interface{}
// per row.
type Column struct {
	Name  string
	Kind  Kind
	Valid []bool // one entry per row; false means null

	Bools    []bool
	Int8s    []int8
	Int16s   []int16
	Int32s   []int32
	Int64s   []int64
	Uint8s   []uint8
	Uint16s  []uint16
	Uint32s  []uint32
	Uint64s  []uint64
	Float32s []float32
	Float64s []float64
	Strings  []string

	// Fields holds child columns when Kind == KindRecord. All fields share
	// Valid as the outer (record-level) validity mask; a field's own value
	// may additionally be null per its own per-field Valid slice.
	Fields []Column
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	return len(c.Valid)
}

// IsValid reports whether row i holds a non-null value.
func (c *Column) IsValid(i int) bool {
	return i < len(c.Valid) && c.Valid[i]
}

// Batch is an ordered, position-aligned slice of rows. Rows are sorted
// lexicographically by (Time, Subsort, KeyHash); batches from one operator
// are disjoint and arrive in that same order.
type Batch struct {
	Time    []int64  // nanoseconds since epoch
	Subsort []uint64 // stable tiebreaker
	KeyHash []uint64 // 64-bit entity identifier

	Columns []Column
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int {
	return len(b.Time)
}

// Column looks up a user column by name. Returns nil if absent.
func (b *Batch) Column(name string) *Column {
	for i := range b.Columns {
		if b.Columns[i].Name == name {
			return &b.Columns[i]
		}
	}
	return nil
}

// Slice returns the sub-batch [lo, hi), sharing underlying storage. Used by
// batch-boundary-invariance tests (spec P2) to verify that splitting a batch
// at any row produces the same evaluator output as feeding it whole.
func (b *Batch) Slice(lo, hi int) Batch {
	out := Batch{
		Time:    b.Time[lo:hi],
		Subsort: b.Subsort[lo:hi],
		KeyHash: b.KeyHash[lo:hi],
		Columns: make([]Column, len(b.Columns)),
	}
	for i, c := range b.Columns {
		out.Columns[i] = c.slice(lo, hi)
	}
	return out
}

func (c Column) slice(lo, hi int) Column {
	out := c
	out.Valid = sliceBool(c.Valid, lo, hi)
	switch c.Kind {
	case KindBool:
		out.Bools = c.Bools[lo:hi]
	case KindInt8:
		out.Int8s = c.Int8s[lo:hi]
	case KindInt16:
		out.Int16s = c.Int16s[lo:hi]
	case KindInt32:
		out.Int32s = c.Int32s[lo:hi]
	case KindInt64:
		out.Int64s = c.Int64s[lo:hi]
	case KindUint8:
		out.Uint8s = c.Uint8s[lo:hi]
	case KindUint16:
		out.Uint16s = c.Uint16s[lo:hi]
	case KindUint32:
		out.Uint32s = c.Uint32s[lo:hi]
	case KindUint64:
		out.Uint64s = c.Uint64s[lo:hi]
	case KindFloat32:
		out.Float32s = c.Float32s[lo:hi]
	case KindFloat64:
		out.Float64s = c.Float64s[lo:hi]
	case KindString:
		out.Strings = c.Strings[lo:hi]
	case KindRecord:
		out.Fields = make([]Column, len(c.Fields))
		for i, f := range c.Fields {
			out.Fields[i] = f.slice(lo, hi)
		}
	}
	return out
}

func sliceBool(v []bool, lo, hi int) []bool {
	if v == nil {
		return nil
	}
	return v[lo:hi]
}
