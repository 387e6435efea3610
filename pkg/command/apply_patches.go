package command

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/owliabot/ais-sub001/pkg/enginerr"
	"github.com/owliabot/ais-sub001/pkg/enginevents"
	"github.com/owliabot/ais-sub001/pkg/eventstream"
	"github.com/owliabot/ais-sub001/pkg/runtimepatch"
)

// ApplyPatchesFromCommand implements spec §4.F's apply_patches_from_command
// operation: decode the command payload, enforce the guard policy (always,
// per §4.D), apply patches, and emit at most two events in order
// (patch_applied then patch_rejected).
func ApplyPatchesFromCommand(
	runtime map[string]any,
	envelope Envelope,
	guardPolicy runtimepatch.GuardPolicy,
	stream *eventstream.Stream,
	ts time.Time,
) (map[string]any, []enginevents.Record, error) {
	if envelope.Command.Type != ApplyPatches {
		return runtime, nil, &enginerr.ApplyPatchesCommandError{
			Kind:   "InvalidCommandType",
			Reason: fmt.Sprintf("expected %q, got %q", ApplyPatches, envelope.Command.Type),
		}
	}

	patches, err := decodePatches(envelope.Command.Data)
	if err != nil {
		return runtime, nil, &enginerr.ApplyPatchesCommandError{Kind: "InvalidPayload", Reason: err.Error()}
	}

	newRuntime, result := runtimepatch.ApplyRuntimePatchesFromCommand(runtime, patches, guardPolicy)

	common := func() *enginevents.OrderedMap {
		return enginevents.NewOrderedMap().
			Set("command_id", envelope.Command.ID).
			Set("audit_hash", result.Audit.Hash).
			Set("patch_count", result.Audit.PatchCount).
			Set("applied_count", result.Audit.AppliedCount).
			Set("rejected_count", result.Audit.RejectedCount).
			Set("partial_success", result.Audit.PartialSuccess).
			Set("affected_paths", result.Audit.AffectedPaths)
	}

	var records []enginevents.Record
	if result.Audit.AppliedCount > 0 {
		records = append(records, stream.NextRecord(ts, enginevents.Event{
			Type: enginevents.PatchApplied,
			Data: common(),
		}))
	}
	if result.Audit.RejectedCount > 0 {
		data := common()
		rejectedList := make([]any, len(result.Rejected))
		for i, r := range result.Rejected {
			rejectedList[i] = map[string]any{"index": r.Index, "path": r.Path, "reason": r.Reason}
		}
		data.Set("rejected", rejectedList)
		records = append(records, stream.NextRecord(ts, enginevents.Event{
			Type: enginevents.PatchRejected,
			Data: data,
		}))
	}

	return newRuntime, records, nil
}

// decodePatches decodes data.patches as a list of runtimepatch.Patch.
func decodePatches(data map[string]any) ([]runtimepatch.Patch, error) {
	raw, ok := data["patches"]
	if !ok {
		return nil, fmt.Errorf("missing data.patches")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("data.patches not serializable: %w", err)
	}
	var patches []runtimepatch.Patch
	if err := json.Unmarshal(b, &patches); err != nil {
		return nil, fmt.Errorf("data.patches does not decode as []Patch: %w", err)
	}
	return patches, nil
}
