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

package persistence

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	snap := Snapshot{OperatorID: "op-1", TokenKind: "scalar.int64", Version: 1, Payload: []byte{1, 2, 3}}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, found, err := store.Load(ctx, "op-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !found {
		t.Fatalf("expected snapshot to be found")
	}
	if got.TokenKind != snap.TokenKind || got.Version != snap.Version || string(got.Payload) != string(snap.Payload) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, snap)
	}
}

func TestMemoryStore_LoadMissingOperator(t *testing.T) {
	store := NewMemoryStore()
	_, found, err := store.Load(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if found {
		t.Fatalf("expected no snapshot for an operator that was never saved")
	}
}

func TestVerifyCompatible_RefusesMismatch(t *testing.T) {
	snap := Snapshot{OperatorID: "op-1", TokenKind: "scalar.int64", Version: 2}

	if err := VerifyCompatible(snap, "scalar.int64", 2); err != nil {
		t.Fatalf("VerifyCompatible on a matching snapshot: %v", err)
	}
	if err := VerifyCompatible(snap, "scalar.bool", 2); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("VerifyCompatible with wrong kind: got %v, want ErrKindMismatch", err)
	}
	if err := VerifyCompatible(snap, "scalar.int64", 1); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("VerifyCompatible with wrong version: got %v, want ErrVersionMismatch", err)
	}
}
