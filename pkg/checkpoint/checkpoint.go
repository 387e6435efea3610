// Package checkpoint implements the normalized, serializable engine
// snapshot of spec §4.L: save to and load from a JSON file, with
// deny-unknown-fields semantics on load. Grounded on
// store/outbox_store.go / store/receipt_store.go's load/save discipline,
// minus the SQL backend (out of scope per spec §1's persistence
// Non-goal) — a checkpoint here is a single JSON file, not a store row.
package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/owliabot/ais-sub001/pkg/enginerr"
	"github.com/owliabot/ais-sub001/pkg/enginestate"
	"github.com/owliabot/ais-sub001/pkg/planmodel"
)

// Document is the on-disk checkpoint shape of spec §4.L:
// {schema_tag, run_id, plan_hash, engine_state, runtime_snapshot?}.
type Document struct {
	SchemaTag       string             `json:"schema_tag"`
	RunID           string             `json:"run_id"`
	PlanHash        string             `json:"plan_hash"`
	EngineState     enginestate.State  `json:"engine_state"`
	RuntimeSnapshot map[string]any     `json:"runtime_snapshot,omitempty"`
}

// New constructs a Document from a run's engine state, normalizing the id
// lists and lifting run_id/plan_hash to the top level per spec §4.L. The
// passed runtimeSnapshot should already be redacted, if redaction was
// requested by the caller (spec §4.L's "passed through redaction if
// requested").
func New(runID, planHash string, state enginestate.State, runtimeSnapshot map[string]any) Document {
	state.Normalize()
	return Document{
		SchemaTag:       planmodel.SchemaCheckpoint,
		RunID:           runID,
		PlanHash:        planHash,
		EngineState:     state,
		RuntimeSnapshot: runtimeSnapshot,
	}
}

// Save writes doc as canonical-ish pretty JSON to path.
func Save(path string, doc Document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &enginerr.CheckpointError{Kind: "Json", Err: err}
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return &enginerr.CheckpointError{Kind: "Io", Err: err}
	}
	return nil
}

// Load reads and parses a checkpoint document from path, rejecting any
// field not named in Document (deny_unknown_fields, per spec §6).
func Load(path string) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Document{}, &enginerr.CheckpointError{Kind: "Io", Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return Document{}, &enginerr.CheckpointError{Kind: "Json", Err: err}
	}

	if doc.SchemaTag != planmodel.SchemaCheckpoint {
		return Document{}, &enginerr.CheckpointError{
			Kind: "Json",
			Err:  fmt.Errorf("checkpoint: schema_tag mismatch: expected %q, got %q", planmodel.SchemaCheckpoint, doc.SchemaTag),
		}
	}

	return doc, nil
}
