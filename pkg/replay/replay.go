// Package replay reconstructs engine state from a recorded event trace and
// optionally re-verifies patch_applied audit hashes against the original
// command sequence, per spec §4.N. Grounded directly on
// replay/engine.go's Session/SessionStatus/divergence-detection shape
// (replay each recorded step, diverge on the first hash mismatch) and
// replay/replay.go, adapted from "replay tool calls against taped I/O" to
// "replay engine-event records against a checkpoint".
package replay

import (
	"time"

	"github.com/owliabot/ais-sub001/pkg/command"
	"github.com/owliabot/ais-sub001/pkg/enginestate"
	"github.com/owliabot/ais-sub001/pkg/enginevents"
	"github.com/owliabot/ais-sub001/pkg/eventstream"
	"github.com/owliabot/ais-sub001/pkg/runtimepatch"
)

// Status is the outcome of one replay pass.
type Status string

const (
	Ok        Status = "ok"
	Mismatch  Status = "mismatch"
	Truncated Status = "truncated"
)

// MismatchKind distinguishes why a replay diverged.
type MismatchKind string

const (
	SequenceMismatch  MismatchKind = "sequence"
	AuditHashMismatch MismatchKind = "audit_hash"
)

// Result is the reconstructed engine state plus the terminal status.
type Result struct {
	Status         Status
	MismatchKind   MismatchKind
	MismatchDetail string
	State          enginestate.State
}

// nodeCompletionEventTypes are the event types that advance
// completed_node_ids, per spec §4.N: the events the runner emits
// immediately before calling enginestate.State.AddCompleted.
var nodeCompletionEventTypes = map[enginevents.EventType]bool{
	enginevents.QueryResult: true,
	enginevents.TxConfirmed: true,
	enginevents.Skipped:     true,
}

// Options configures a replay pass.
type Options struct {
	// SeedState, if non-nil, is a prior checkpoint's engine state to
	// continue replay from (its CompletedNodeIDs/SeenCommandIDs are
	// merged with what the trace itself reconstructs).
	SeedState *enginestate.State
	// InitialRuntime seeds the runtime tree patch_applied re-verification
	// is replayed against, typically a checkpoint's runtime_snapshot.
	InitialRuntime map[string]any
	// Commands, keyed implicitly by their envelope's command.ID, are
	// re-applied to InitialRuntime to recompute and verify each
	// patch_applied/patch_rejected record's audit_hash. A patch event
	// whose command_id isn't present here is accepted without
	// verification (the original command payload wasn't supplied).
	Commands []command.Envelope
	// UntilNode stops replay just before the first event whose node_id
	// equals UntilNode, per spec §4.N.
	UntilNode string
}

// Replay reconstructs engine state from records per spec §4.N.
func Replay(records []enginevents.Record, opts Options) (Result, error) {
	if err := eventstream.EnsureMonotonicSequence(records); err != nil {
		return Result{Status: Mismatch, MismatchKind: SequenceMismatch, MismatchDetail: err.Error()}, nil
	}

	state := enginestate.State{}
	if opts.SeedState != nil {
		state = *opts.SeedState
	}

	runtime := opts.InitialRuntime
	if runtime == nil {
		runtime = map[string]any{}
	}

	commandsByID := make(map[string]command.Envelope, len(opts.Commands))
	for _, env := range opts.Commands {
		commandsByID[env.Command.ID] = env
	}

	guard := runtimepatch.DefaultGuardPolicy()
	replayStream := eventstream.New("replay", 0)
	replayedByCmd := make(map[string][]enginevents.Record)

	truncated := false
	for _, rec := range records {
		if state.RunID == "" {
			state.RunID = rec.RunID
		}
		if opts.UntilNode != "" && rec.Event.NodeID == opts.UntilNode {
			truncated = true
			break
		}

		switch rec.Event.Type {
		case enginevents.CommandAccepted, enginevents.CommandRejected:
			if id, ok := stringField(rec.Event.Data, "command_id"); ok {
				state.AddSeenCommand(id)
			}

		case enginevents.PatchApplied, enginevents.PatchRejected:
			cmdID, _ := stringField(rec.Event.Data, "command_id")
			recordedHash, _ := stringField(rec.Event.Data, "audit_hash")

			env, known := commandsByID[cmdID]
			if !known {
				continue
			}

			replayedRecords, cached := replayedByCmd[cmdID]
			if !cached {
				newRuntime, rr, err := command.ApplyPatchesFromCommand(runtime, env, guard, replayStream, time.Time{})
				if err != nil {
					return Result{
						Status:         Mismatch,
						MismatchKind:   AuditHashMismatch,
						MismatchDetail: "command " + cmdID + ": " + err.Error(),
						State:          state,
					}, nil
				}
				runtime = newRuntime
				replayedRecords = rr
				replayedByCmd[cmdID] = rr
			}

			replayedHash, found := "", false
			for _, rr := range replayedRecords {
				if rr.Event.Type == rec.Event.Type {
					replayedHash, _ = stringField(rr.Event.Data, "audit_hash")
					found = true
				}
			}
			if !found || replayedHash != recordedHash {
				return Result{
					Status:         Mismatch,
					MismatchKind:   AuditHashMismatch,
					MismatchDetail: "command " + cmdID + ": recorded hash does not match replayed hash",
					State:          state,
				}, nil
			}

		default:
			if nodeCompletionEventTypes[rec.Event.Type] && rec.Event.NodeID != "" {
				state.AddCompleted(rec.Event.NodeID)
			}
		}
	}

	state.Normalize()
	if truncated {
		return Result{Status: Truncated, State: state}, nil
	}
	return Result{Status: Ok, State: state}, nil
}

func stringField(data *enginevents.OrderedMap, key string) (string, bool) {
	if data == nil {
		return "", false
	}
	v, ok := data.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
