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

// Package token implements the accumulator token contract: per-entity state
// owned exclusively by one evaluator instance for the life of a query,
// resizable as new entities appear and serializable for snapshot/restore.
//
// Tokens are deliberately non-generic over the update rule — evaluators own
// "how to combine" — so the same token shape backs `last`, `first`, and any
// other retention rule that shares a state layout: every dense entity_index
// gets its own slot in a single resizable token, rather than one allocation
// per key.
package token

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Accumulator is the shared per-entity state container every stateful
// evaluator builds on.
type Accumulator interface {
	// Resize grows capacity to at least newLen entries. New entries start
	// in the null state. Never fails except on allocation exhaustion.
	Resize(newLen uint32)
	// Len returns the current capacity.
	Len() uint32
	// Serialize round-trips token state to a byte blob.
	Serialize() ([]byte, error)
	// Deserialize restores token state from a blob produced by Serialize,
	// replacing the token's entries and its length with the restored ones;
	// a later Resize grows it again.
	Deserialize([]byte) error
}

// ScalarToken holds an Option[T] per entity: the state shape shared by
// last, first, sum, min, and max. T must be a comparable primitive so gob
// can round-trip it without a custom codec.
type ScalarToken[T any] struct {
	valid []bool
	value []T
}

// NewScalar constructs an empty ScalarToken.
func NewScalar[T any]() *ScalarToken[T] {
	return &ScalarToken[T]{}
}

func (t *ScalarToken[T]) Len() uint32 { return uint32(len(t.valid)) }

func (t *ScalarToken[T]) Resize(newLen uint32) {
	if uint32(len(t.valid)) >= newLen {
		return
	}
	grown := make([]bool, newLen)
	copy(grown, t.valid)
	t.valid = grown

	grownV := make([]T, newLen)
	copy(grownV, t.value)
	t.value = grownV
}

// Get returns the current value for entityIndex and whether it is valid
// (I2: an entry never written returns the null state).
func (t *ScalarToken[T]) Get(entityIndex uint32) (T, bool) {
	if entityIndex >= uint32(len(t.valid)) {
		var zero T
		return zero, false
	}
	return t.value[entityIndex], t.valid[entityIndex]
}

// Put writes state unconditionally, including writing null (valid=false) to
// reset an entry back to empty.
func (t *ScalarToken[T]) Put(entityIndex uint32, value T, valid bool) {
	t.value[entityIndex] = value
	t.valid[entityIndex] = valid
}

// Reset clears an entity back to the null state — used by since/sliding
// window resets after emission.
func (t *ScalarToken[T]) Reset(entityIndex uint32) {
	var zero T
	t.value[entityIndex] = zero
	t.valid[entityIndex] = false
}

type scalarWire[T any] struct {
	Valid []bool
	Value []T
}

func (t *ScalarToken[T]) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(scalarWire[T]{Valid: t.valid, Value: t.value}); err != nil {
		return nil, fmt.Errorf("token: serialize scalar token: %w", err)
	}
	return buf.Bytes(), nil
}

func (t *ScalarToken[T]) Deserialize(blob []byte) error {
	var wire scalarWire[T]
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&wire); err != nil {
		return fmt.Errorf("token: deserialize scalar token: %w", err)
	}
	t.valid = wire.Valid
	t.value = wire.Value
	return nil
}

// CountToken holds a uint32 count per entity: the state shape for count and
// count_if. Alongside each count it keeps a seen flag, so an entity never
// written can be told apart from one written with count 0. Per spec.md
// §4.3, count is 0 (not null) once the entity has appeared at all;
// CountAggEvaluator emits every row's count as non-null.
type CountToken struct {
	seen  []bool
	count []uint32
}

func NewCount() *CountToken { return &CountToken{} }

func (t *CountToken) Len() uint32 { return uint32(len(t.count)) }

func (t *CountToken) Resize(newLen uint32) {
	if uint32(len(t.count)) >= newLen {
		return
	}
	grown := make([]uint32, newLen)
	copy(grown, t.count)
	t.count = grown
	grownSeen := make([]bool, newLen)
	copy(grownSeen, t.seen)
	t.seen = grownSeen
}

// Get returns the current count and whether the entity has ever appeared.
func (t *CountToken) Get(entityIndex uint32) (uint32, bool) {
	if entityIndex >= uint32(len(t.count)) {
		return 0, false
	}
	return t.count[entityIndex], t.seen[entityIndex]
}

func (t *CountToken) Put(entityIndex uint32, count uint32, seen bool) {
	t.count[entityIndex] = count
	t.seen[entityIndex] = seen
}

// Reset clears an entity's count and seen flag back to empty.
func (t *CountToken) Reset(entityIndex uint32) {
	t.count[entityIndex] = 0
	t.seen[entityIndex] = false
}

type countWire struct {
	Seen  []bool
	Count []uint32
}

func (t *CountToken) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(countWire{Seen: t.seen, Count: t.count}); err != nil {
		return nil, fmt.Errorf("token: serialize count token: %w", err)
	}
	return buf.Bytes(), nil
}

func (t *CountToken) Deserialize(blob []byte) error {
	var wire countWire
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&wire); err != nil {
		return fmt.Errorf("token: deserialize count token: %w", err)
	}
	t.seen = wire.Seen
	t.count = wire.Count
	return nil
}

// MeanToken holds (sum, count) per entity — mean is sum/count computed at
// read time, always as f64 per spec.md §4.3.
type MeanToken struct {
	sum   []float64
	count []uint64
}

func NewMean() *MeanToken { return &MeanToken{} }

func (t *MeanToken) Len() uint32 { return uint32(len(t.sum)) }

func (t *MeanToken) Resize(newLen uint32) {
	if uint32(len(t.sum)) >= newLen {
		return
	}
	grownSum := make([]float64, newLen)
	copy(grownSum, t.sum)
	t.sum = grownSum
	grownCount := make([]uint64, newLen)
	copy(grownCount, t.count)
	t.count = grownCount
}

func (t *MeanToken) Get(entityIndex uint32) (mean float64, valid bool) {
	if entityIndex >= uint32(len(t.count)) || t.count[entityIndex] == 0 {
		return 0, false
	}
	return t.sum[entityIndex] / float64(t.count[entityIndex]), true
}

func (t *MeanToken) Update(entityIndex uint32, value float64) {
	t.sum[entityIndex] += value
	t.count[entityIndex]++
}

// Reset clears an entity's running sum/count back to empty.
func (t *MeanToken) Reset(entityIndex uint32) {
	t.sum[entityIndex] = 0
	t.count[entityIndex] = 0
}

type meanWire struct {
	Sum   []float64
	Count []uint64
}

func (t *MeanToken) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(meanWire{Sum: t.sum, Count: t.count}); err != nil {
		return nil, fmt.Errorf("token: serialize mean token: %w", err)
	}
	return buf.Bytes(), nil
}

func (t *MeanToken) Deserialize(blob []byte) error {
	var wire meanWire
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&wire); err != nil {
		return fmt.Errorf("token: deserialize mean token: %w", err)
	}
	t.sum = wire.Sum
	t.count = wire.Count
	return nil
}

// VarianceToken holds Welford's (count, mean, M2) per entity, backing both
// variance (M2/count) and stddev (sqrt(variance)).
type VarianceToken struct {
	count []uint64
	mean  []float64
	m2    []float64
}

func NewVariance() *VarianceToken { return &VarianceToken{} }

func (t *VarianceToken) Len() uint32 { return uint32(len(t.count)) }

func (t *VarianceToken) Resize(newLen uint32) {
	if uint32(len(t.count)) >= newLen {
		return
	}
	grownCount := make([]uint64, newLen)
	copy(grownCount, t.count)
	t.count = grownCount
	grownMean := make([]float64, newLen)
	copy(grownMean, t.mean)
	t.mean = grownMean
	grownM2 := make([]float64, newLen)
	copy(grownM2, t.m2)
	t.m2 = grownM2
}

// Update applies Welford's online algorithm for a new observation.
func (t *VarianceToken) Update(entityIndex uint32, value float64) {
	t.count[entityIndex]++
	n := float64(t.count[entityIndex])
	delta := value - t.mean[entityIndex]
	t.mean[entityIndex] += delta / n
	delta2 := value - t.mean[entityIndex]
	t.m2[entityIndex] += delta * delta2
}

// Variance returns the population variance, or false if fewer than 2
// observations have been made (variance of one point is undefined, not 0).
func (t *VarianceToken) Variance(entityIndex uint32) (float64, bool) {
	if entityIndex >= uint32(len(t.count)) || t.count[entityIndex] < 2 {
		return 0, false
	}
	return t.m2[entityIndex] / float64(t.count[entityIndex]), true
}

// Reset clears an entity's state back to empty — used by since/sliding
// window resets.
func (t *VarianceToken) Reset(entityIndex uint32) {
	t.count[entityIndex] = 0
	t.mean[entityIndex] = 0
	t.m2[entityIndex] = 0
}

type varianceWire struct {
	Count []uint64
	Mean  []float64
	M2    []float64
}

func (t *VarianceToken) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(varianceWire{Count: t.count, Mean: t.mean, M2: t.m2}); err != nil {
		return nil, fmt.Errorf("token: serialize variance token: %w", err)
	}
	return buf.Bytes(), nil
}

func (t *VarianceToken) Deserialize(blob []byte) error {
	var wire varianceWire
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&wire); err != nil {
		return fmt.Errorf("token: deserialize variance token: %w", err)
	}
	t.count = wire.Count
	t.mean = wire.Mean
	t.m2 = wire.M2
	return nil
}
