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

// Package persistence stores and restores per-operator accumulator token
// snapshots (spec.md §6: "Persisted snapshot layout: {operator_id,
// token_kind, version, payload_bytes}. Restore refuses mismatched version
// or kind.").
//
// A snapshot is not an idempotent per-key commit (no Lua script guarded by
// a SETNX marker, safe to retry) — the driver quiesces the pipeline and
// writes the operator's whole state once, so there is nothing to
// de-duplicate and no idempotency marker to keep. What this package offers
// instead is the adapter-selection shape itself: one small interface plus a
// Redis-backed, a Kafka-backed, and an in-memory implementation, each
// wrapping its client behind a narrow interface so tests can substitute a
// fake. See DESIGN.md for the full rationale.
package persistence

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Snapshot is the wire shape named in spec.md §6.
type Snapshot struct {
	OperatorID string
	TokenKind  string
	Version    int
	Payload    []byte
}

// ErrKindMismatch / ErrVersionMismatch are returned by VerifyCompatible when
// a stored snapshot does not match what the caller expects to restore into,
// per spec.md §6: "Restore refuses mismatched version or kind."
var (
	ErrKindMismatch    = errors.New("persistence: snapshot token kind mismatch")
	ErrVersionMismatch = errors.New("persistence: snapshot version mismatch")
)

// VerifyCompatible checks a loaded snapshot against the kind/version the
// caller's token expects, refusing a mismatched restore.
func VerifyCompatible(snap Snapshot, wantKind string, wantVersion int) error {
	if snap.TokenKind != wantKind {
		return fmt.Errorf("%w: stored %q, want %q", ErrKindMismatch, snap.TokenKind, wantKind)
	}
	if snap.Version != wantVersion {
		return fmt.Errorf("%w: stored %d, want %d", ErrVersionMismatch, snap.Version, wantVersion)
	}
	return nil
}

// SnapshotStore is the minimal API every persistence adapter supports: save
// the current snapshot for an operator, and load the most recently saved
// one back.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, operatorID string) (Snapshot, bool, error)
}

// MemoryStore is an in-process SnapshotStore, used by tests and by the
// sparrow-run demo.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Snapshot)}
}

func (m *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[snap.OperatorID] = snap
	return nil
}

func (m *MemoryStore) Load(_ context.Context, operatorID string) (Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.data[operatorID]
	return snap, ok, nil
}

// RedisCmdable is the minimal github.com/redis/go-redis/v9 surface RedisStore
// needs: a narrow interface over the concrete client, so tests can
// substitute a fake.
type RedisCmdable interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore persists one gob-encoded Snapshot per operator under
// "sparrow:snapshot:<operator_id>" — a colon-separated namespaced key.
type RedisStore struct {
	client RedisCmdable
}

func NewRedisStore(client RedisCmdable) *RedisStore {
	return &RedisStore{client: client}
}

func redisSnapshotKey(operatorID string) string {
	return fmt.Sprintf("sparrow:snapshot:%s", operatorID)
}

func (r *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("persistence: encode snapshot for %q: %w", snap.OperatorID, err)
	}
	if err := r.client.Set(ctx, redisSnapshotKey(snap.OperatorID), buf.Bytes(), 0).Err(); err != nil {
		return fmt.Errorf("persistence: redis set for %q: %w", snap.OperatorID, err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, operatorID string) (Snapshot, bool, error) {
	raw, err := r.client.Get(ctx, redisSnapshotKey(operatorID)).Bytes()
	if err == redis.Nil {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("persistence: redis get for %q: %w", operatorID, err)
	}
	var snap Snapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("persistence: decode snapshot for %q: %w", operatorID, err)
	}
	return snap, true, nil
}

// KafkaProducer is a minimal abstraction over a Kafka client. No specific
// client library is imported here; KafkaStore exists so a caller can plug
// in whatever client they already use for their topic.
type KafkaProducer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// KafkaStore publishes snapshots to a log-structured topic instead of
// overwriting a keyed record; its Load always returns an error, since
// replaying a snapshot log to reconstruct current state is a consumer-side concern —
// this store does not apply state locally, it only delegates
// materialization to downstream consumers.
type KafkaStore struct {
	producer KafkaProducer
	topic    string
}

func NewKafkaStore(producer KafkaProducer, topic string) *KafkaStore {
	return &KafkaStore{producer: producer, topic: topic}
}

func (k *KafkaStore) Save(ctx context.Context, snap Snapshot) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("persistence: encode snapshot for %q: %w", snap.OperatorID, err)
	}
	if err := k.producer.Produce(ctx, k.topic, []byte(snap.OperatorID), buf.Bytes()); err != nil {
		return fmt.Errorf("persistence: kafka produce for %q: %w", snap.OperatorID, err)
	}
	return nil
}

func (k *KafkaStore) Load(context.Context, string) (Snapshot, bool, error) {
	return Snapshot{}, false, errors.New("persistence: KafkaStore does not support Load; snapshots are replayed by downstream consumers")
}
