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

// Package grouping implements the global pre-stage that maps distinct
// key_hash values to dense entity_index values and tracks num_groups.
package grouping

import (
	"strconv"
	"sync"

	"github.com/dgryski/go-rendezvous"
)

const defaultStripes = 16

// View is the per-batch grouping contract handed to evaluators: num_groups
// (monotonically non-decreasing) and the dense entity index for every row.
type View struct {
	NumGroups     uint32
	GroupIndices  []uint32
}

// KeyIndex maps key_hash -> dense entity_index, growing num_groups as new
// keys are observed. Known keys live in N stripes (a plain map per stripe,
// guarded by the stripe's own mutex), the stripe for a key_hash chosen by
// rendezvous hashing, so lookups of already-known keys from concurrent
// ingestion do not serialize on one map/mutex. New dense indices are
// allocated from a single global counter under KeyIndex.mu, so the index
// handed to a key_hash does not depend on which stripe holds it.
type KeyIndex struct {
	stripes []*stripe
	ring    *rendezvous.Rendezvous
	mu      sync.Mutex // serializes num_groups bump across stripes
	total   uint32
}

type stripe struct {
	mu   sync.Mutex
	ids  map[uint64]uint32
}

// New constructs a KeyIndex with the default stripe count.
func New() *KeyIndex {
	return NewWithStripes(defaultStripes)
}

// NewWithStripes constructs a KeyIndex with an explicit stripe count.
func NewWithStripes(n int) *KeyIndex {
	if n < 1 {
		n = 1
	}
	names := make([]string, n)
	stripes := make([]*stripe, n)
	for i := 0; i < n; i++ {
		names[i] = strconv.Itoa(i)
		stripes[i] = &stripe{ids: make(map[uint64]uint32)}
	}
	return &KeyIndex{
		stripes: stripes,
		ring:    rendezvous.New(names, hashString),
	}
}

func hashString(s string) uint64 {
	// FNV-1a.
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

func (k *KeyIndex) stripeFor(keyHash uint64) *stripe {
	name := k.ring.Lookup(keyHash)
	idx, err := strconv.Atoi(name)
	if err != nil {
		idx = 0
	}
	return k.stripes[idx]
}

// EntityIndex returns the dense entity index for keyHash, allocating a new
// one (and bumping NumGroups) on first sight.
func (k *KeyIndex) EntityIndex(keyHash uint64) uint32 {
	s := k.stripeFor(keyHash)
	s.mu.Lock()
	if idx, ok := s.ids[keyHash]; ok {
		s.mu.Unlock()
		return idx
	}
	s.mu.Unlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	// Re-check under the global lock: another goroutine may have raced us
	// between the stripe unlock above and here.
	s.mu.Lock()
	if idx, ok := s.ids[keyHash]; ok {
		s.mu.Unlock()
		return idx
	}
	idx := k.total
	k.total++
	s.ids[keyHash] = idx
	s.mu.Unlock()
	return idx
}

// NumGroups returns the current (monotonically non-decreasing) group count.
func (k *KeyIndex) NumGroups() uint32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.total
}

// Resolve builds the per-batch View for the given key_hash column, assigning
// dense entity indices (creating new ones as needed) in row order.
func (k *KeyIndex) Resolve(keyHashes []uint64) View {
	indices := make([]uint32, len(keyHashes))
	for i, kh := range keyHashes {
		indices[i] = k.EntityIndex(kh)
	}
	return View{NumGroups: k.NumGroups(), GroupIndices: indices}
}
