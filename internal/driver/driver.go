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

// Package driver is the enclosing execution pipeline named (but left out of
// scope) by spec.md §4.6/§5/§6: it feeds ordered batches to a sequence of
// evaluators, writes the CSV output schema, and reports progress. The Fenl
// compiler and the DFG optimizer that would normally produce the Stage list
// are explicitly out of scope (spec.md §1); Run accepts an already-resolved
// plan as a slice of Stages instead of compiling one.
//
// A struct wired up at construction exposes a single entry point that
// drives the pipeline to completion, with graceful handling of a deadline.
// spec.md §5 is explicit that "operators execute single-threaded per
// entity group" and evaluation is "fully synchronous" — so Run has no
// background ticker goroutines; it walks the input tables once, in order,
// on the caller's goroutine, and reports progress on a channel as it goes.
package driver

import (
	"context"
	"crypto/rand"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sparrow/internal/persistence"
	"sparrow/internal/runtime"
	"sparrow/internal/telemetry"
	"sparrow/pkg/columnar"
	"sparrow/pkg/grouping"
)

// Stage is one evaluator node in the resolved plan: given the RuntimeInfo
// for the current batch, it produces one output column aligned 1:1 with
// the batch (spec.md §2: "emits one array aligned 1:1 with the input
// batch").
type Stage interface {
	Name() string
	Evaluate(info runtime.RuntimeInfo) (*columnar.Column, error)
}

// StageFunc adapts a plain function (including a bound method value closing
// over extra arguments, such as CountAggEvaluator.Evaluate's countAll flag)
// to Stage.
type StageFunc struct {
	StageName string
	Fn        func(runtime.RuntimeInfo) (*columnar.Column, error)
}

func (s StageFunc) Name() string { return s.StageName }

func (s StageFunc) Evaluate(info runtime.RuntimeInfo) (*columnar.Column, error) {
	return s.Fn(info)
}

// ExecuteRequest mirrors spec.md §6's ExecuteRequest, narrowed to what this
// runtime's Driver actually consumes: the plan/DFG, changed_since, and
// compute_snapshot_config fields are out of scope (§1) and are not
// represented here.
type ExecuteRequest struct {
	// Batches is one input table's ordered batches. Splitting this slice's
	// batches differently must not change the output (spec.md P2); the
	// driver does not assume any particular batch size.
	Batches []*columnar.Batch
	// Keys maps a key_hash to its human-readable key string for the `_key`
	// CSV column. A key_hash absent from this map is rendered as its
	// decimal value.
	Keys map[uint64]string
	// OutputTo is `file:///<absolute-path>` (spec.md §6); s3:// is rejected
	// with ErrUnsupportedURI since the object-store abstraction is out of
	// scope (spec.md §1).
	OutputTo string
	// FinalResultTime, if set, is the final_result_time named in spec.md
	// §6. It is only meaningful to shift operators (§4.4); the generic
	// per-batch Stage pipeline driven by Run ignores it, since every
	// Stage's output is defined only in terms of rows already observed.
	FinalResultTime *int64
	// OperatorID/Snapshots, if both set, make Run save a snapshot of every
	// stage that also implements Snapshotter once all batches are
	// consumed, per spec.md §5 ("driver quiesces the pipeline, walks each
	// evaluator, calls serialize").
	OperatorID string
	Snapshots  persistence.SnapshotStore
}

// Snapshotter is implemented by evaluators whose per-entity Token supports
// serialize/deserialize (spec.md §4.1); Run calls Snapshot at quiesce time
// for any Stage that also satisfies this interface.
type Snapshotter interface {
	TokenKind() string
	Snapshot() ([]byte, error)
}

// EventKind discriminates the progress events named in spec.md §6 ("a lazy
// sequence of progress updates culminating in FilesProduced").
type EventKind int

const (
	EventBatchProcessed EventKind = iota
	EventSnapshotSaved
	EventFilesProduced
	EventFailed
)

// Event is one entry in the progress stream Run emits.
type Event struct {
	Kind        EventKind
	RowsWritten int
	OperatorID  string
	Paths       []string
	Err         error
}

// ErrUnsupportedURI is returned (inside a Failed event) when OutputTo is not
// an absolute file:// URI, per spec.md §6 ("relative paths are rejected
// with UnsupportedUri").
type ErrUnsupportedURI struct{ URI string }

func (e ErrUnsupportedURI) Error() string {
	return fmt.Sprintf("driver: unsupported output uri %q: want file:///<absolute-path>", e.URI)
}

// Driver resolves key_hash values into dense entity indices across the
// whole run via a single grouping.KeyIndex, then evaluates each Stage over
// each batch in order and writes the result as one CSV file.
type Driver struct {
	keys *grouping.KeyIndex
}

// New constructs a Driver with a fresh grouping.KeyIndex.
func New() *Driver {
	return &Driver{keys: grouping.New()}
}

// Run drives req's batches through stages in order, writing one CSV file
// under req.OutputTo and returning a channel of progress events. The
// channel is closed after the terminal event (FilesProduced or Failed).
//
// Run is synchronous per spec.md §5: it does all of its work, including
// writing every event to the returned channel, on the caller's goroutine,
// buffering the channel so that a caller who only reads the final event
// does not deadlock.
func (d *Driver) Run(ctx context.Context, req ExecuteRequest, stages []Stage) <-chan Event {
	events := make(chan Event, len(req.Batches)+len(stages)+2)
	defer close(events)

	dir, err := outputDir(req.OutputTo)
	if err != nil {
		events <- Event{Kind: EventFailed, Err: err}
		return events
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		events <- Event{Kind: EventFailed, Err: fmt.Errorf("driver: create output dir: %w", err)}
		return events
	}

	path, err := d.writeCSV(ctx, dir, req, stages, events)
	if err != nil {
		events <- Event{Kind: EventFailed, Err: err}
		return events
	}

	for _, st := range stages {
		snap, ok := st.(Snapshotter)
		if !ok || req.Snapshots == nil || req.OperatorID == "" {
			continue
		}
		payload, err := snap.Snapshot()
		if err != nil {
			events <- Event{Kind: EventFailed, Err: fmt.Errorf("driver: snapshot stage %q: %w", st.Name(), err)}
			telemetry.ObserveSnapshotRoundTrip("save", "error")
			return events
		}
		id := req.OperatorID + "." + st.Name()
		err = req.Snapshots.Save(ctx, persistence.Snapshot{OperatorID: id, TokenKind: snap.TokenKind(), Version: 1, Payload: payload})
		if err != nil {
			telemetry.ObserveSnapshotRoundTrip("save", "error")
			events <- Event{Kind: EventFailed, Err: err}
			return events
		}
		telemetry.ObserveSnapshotRoundTrip("save", "ok")
		events <- Event{Kind: EventSnapshotSaved, OperatorID: id}
	}

	events <- Event{Kind: EventFilesProduced, Paths: []string{"file://" + path}}
	return events
}

// outputDir validates OutputTo against spec.md §6 and returns the local
// directory it names.
func outputDir(outputTo string) (string, error) {
	const prefix = "file://"
	if !strings.HasPrefix(outputTo, prefix) {
		return "", ErrUnsupportedURI{URI: outputTo}
	}
	path := strings.TrimPrefix(outputTo, prefix)
	if !filepath.IsAbs(path) {
		return "", ErrUnsupportedURI{URI: outputTo}
	}
	return path, nil
}

// writeCSV walks req.Batches once, evaluating every stage over each batch
// and appending the resulting rows to a single output file named per
// spec.md §6 ("<uuidv4>.<csv|parquet> placed under output_prefix_uri").
// Parquet is out of scope here (no parquet library is wired), so only CSV
// is produced.
func (d *Driver) writeCSV(ctx context.Context, dir string, req ExecuteRequest, stages []Stage, events chan<- Event) (string, error) {
	name, err := newFileName("csv")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("driver: create output file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"_time", "_subsort", "_key_hash", "_key"}, stageNames(stages)...)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("driver: write header: %w", err)
	}

	for _, batch := range req.Batches {
		if err := ctx.Err(); err != nil {
			// spec.md §5: "Partial batch results are not emitted on
			// cancellation."
			return "", err
		}

		view := d.keys.Resolve(batch.KeyHash)
		info := runtime.NewBatchRuntimeInfo(view, batch)
		telemetry.SetActiveEntities("driver", view.NumGroups)

		outputs := make([]*columnar.Column, len(stages))
		for i, st := range stages {
			col, err := st.Evaluate(info)
			if err != nil {
				return "", fmt.Errorf("driver: stage %q: %w", st.Name(), err)
			}
			outputs[i] = col
		}

		n := batch.Len()
		for row := 0; row < n; row++ {
			record := make([]string, 0, 4+len(stages))
			record = append(record,
				formatTimestamp(batch.Time[row]),
				strconv.FormatUint(batch.Subsort[row], 10),
				strconv.FormatUint(batch.KeyHash[row], 10),
				keyFor(req.Keys, batch.KeyHash[row]),
			)
			for _, col := range outputs {
				record = append(record, formatCell(col, row))
			}
			if err := w.Write(record); err != nil {
				return "", fmt.Errorf("driver: write row: %w", err)
			}
		}
		telemetry.ObserveRows("driver", n)
		events <- Event{Kind: EventBatchProcessed, RowsWritten: n}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("driver: flush output: %w", err)
	}
	return path, nil
}

func stageNames(stages []Stage) []string {
	names := make([]string, len(stages))
	for i, st := range stages {
		names[i] = st.Name()
	}
	return names
}

func keyFor(keys map[uint64]string, keyHash uint64) string {
	if keys != nil {
		if k, ok := keys[keyHash]; ok {
			return k
		}
	}
	return strconv.FormatUint(keyHash, 10)
}

// formatTimestamp renders a nanosecond epoch time as ISO-8601 UTC at
// nanosecond precision, per spec.md §6.
func formatTimestamp(ns int64) string {
	t := time.Unix(0, ns).UTC()
	return t.Format("2006-01-02T15:04:05.000000000Z")
}

func formatCell(col *columnar.Column, row int) string {
	if !col.IsValid(row) {
		return ""
	}
	switch col.Kind {
	case columnar.KindBool:
		return strconv.FormatBool(col.Bools[row])
	case columnar.KindInt8:
		return strconv.FormatInt(int64(col.Int8s[row]), 10)
	case columnar.KindInt16:
		return strconv.FormatInt(int64(col.Int16s[row]), 10)
	case columnar.KindInt32:
		return strconv.FormatInt(int64(col.Int32s[row]), 10)
	case columnar.KindInt64:
		return strconv.FormatInt(col.Int64s[row], 10)
	case columnar.KindUint8:
		return strconv.FormatUint(uint64(col.Uint8s[row]), 10)
	case columnar.KindUint16:
		return strconv.FormatUint(uint64(col.Uint16s[row]), 10)
	case columnar.KindUint32:
		return strconv.FormatUint(uint64(col.Uint32s[row]), 10)
	case columnar.KindUint64:
		return strconv.FormatUint(col.Uint64s[row], 10)
	case columnar.KindFloat32:
		return strconv.FormatFloat(float64(col.Float32s[row]), 'g', -1, 32)
	case columnar.KindFloat64:
		return strconv.FormatFloat(col.Float64s[row], 'g', -1, 64)
	case columnar.KindString:
		return col.Strings[row]
	default:
		return ""
	}
}

// newFileName generates a random UUIDv4-shaped file name. No pack example
// imports a UUID library (see DESIGN.md), so this is built directly on
// crypto/rand per RFC 4122 §4.4 rather than reaching for an unwired
// third-party dependency.
func newFileName(ext string) (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("driver: generate output file name: %w", err)
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x.%s", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16], ext), nil
}
