package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/owliabot/ais-sub001/pkg/enginerr"
	"github.com/owliabot/ais-sub001/pkg/enginestate"
)

func TestNew_NormalizesIDLists(t *testing.T) {
	state := enginestate.State{
		CompletedNodeIDs: []string{"b", "a", "a"},
		SeenCommandIDs:   []string{"cmd-2", "cmd-1"},
	}
	doc := New("run-1", "hash-1", state, nil)
	if len(doc.EngineState.CompletedNodeIDs) != 2 || doc.EngineState.CompletedNodeIDs[0] != "a" {
		t.Fatalf("expected deduped+sorted completed ids, got %+v", doc.EngineState.CompletedNodeIDs)
	}
	if doc.RunID != "run-1" || doc.PlanHash != "hash-1" {
		t.Fatalf("unexpected top-level fields: %+v", doc)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.json")

	state := enginestate.State{CompletedNodeIDs: []string{"n1"}, SeenCommandIDs: []string{"cmd-1"}}
	doc := New("run-1", "hash-1", state, map[string]any{"inputs": map[string]any{"amount": "100"}})

	if err := Save(path, doc); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.RunID != "run-1" || loaded.PlanHash != "hash-1" {
		t.Fatalf("unexpected round trip: %+v", loaded)
	}
	if len(loaded.EngineState.CompletedNodeIDs) != 1 || loaded.EngineState.CompletedNodeIDs[0] != "n1" {
		t.Fatalf("unexpected completed ids: %+v", loaded.EngineState.CompletedNodeIDs)
	}
}

func TestLoad_SchemaTagMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.json")

	doc := New("run-1", "hash-1", enginestate.State{}, nil)
	doc.SchemaTag = "ais-checkpoint/9.9.9"
	if err := Save(path, doc); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	var cErr *enginerr.CheckpointError
	if !errors.As(err, &cErr) || cErr.Kind != "Json" {
		t.Fatalf("expected schema tag mismatch Json error, got %v", err)
	}
}

func TestLoad_UnknownFieldsRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.json")
	raw := []byte(`{"schema_tag":"ais-checkpoint/0.0.1","run_id":"r1","plan_hash":"h1","engine_state":{"run_id":"r1","plan_hash":"h1","completed_node_ids":[],"seen_command_ids":[]},"unexpected_field":true}`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	var cErr *enginerr.CheckpointError
	if !errors.As(err, &cErr) || cErr.Kind != "Json" {
		t.Fatalf("expected unknown field Json error, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/checkpoint.json")
	var cErr *enginerr.CheckpointError
	if !errors.As(err, &cErr) || cErr.Kind != "Io" {
		t.Fatalf("expected Io error, got %v", err)
	}
}
