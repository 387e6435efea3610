// Package enginerr collects the structured error taxonomy of spec §7 as
// concrete Go error types, each wrapping a stable Kind/Code so callers can
// branch with errors.As instead of string matching, in the style the
// teacher's contracts/store packages use for their own typed errors.
package enginerr

import "fmt"

// RuntimePatchRejection reports why a single patch op was rejected. It is
// never returned as an `error` from apply_runtime_patches itself (rejection
// is per-patch and recorded in the Audit). runtimepatch records each
// rejection's Reason as a plain string using the same codes; it does not
// construct this type.
type RuntimePatchRejection struct {
	Code string // invalid_path, root_not_allowed:<root>, nodes_paths_forbidden,
	// merge_value_must_be_object, merge_target_not_object,
	// non_object_intermediate[:seg]
	Detail string
}

func (e *RuntimePatchRejection) Error() string {
	if e.Detail == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// ApplyPatchesCommandError reports a structural failure of the
// apply_patches command pipeline itself (as opposed to a per-patch
// rejection, which never aborts the command).
type ApplyPatchesCommandError struct {
	Kind   string // InvalidCommandType, InvalidPayload
	Reason string
}

func (e *ApplyPatchesCommandError) Error() string {
	return fmt.Sprintf("apply_patches command error (%s): %s", e.Kind, e.Reason)
}

// RouterError reports a dispatch failure from the router/executor adapter.
type RouterError struct {
	Kind     string // MissingNodeId, MissingNodeChain, ChainMismatch, AmbiguousRoute, ExecutorFailed
	NodeID   string
	Executor string
	Reason   string
}

func (e *RouterError) Error() string {
	switch e.Kind {
	case "ExecutorFailed":
		return fmt.Sprintf("router: executor %q failed for node %q: %s", e.Executor, e.NodeID, e.Reason)
	default:
		return fmt.Sprintf("router: %s (node=%q): %s", e.Kind, e.NodeID, e.Reason)
	}
}

// CheckpointError reports a checkpoint save/load failure.
type CheckpointError struct {
	Kind string // Io, Json
	Err  error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint: %s: %v", e.Kind, e.Err)
}

func (e *CheckpointError) Unwrap() error { return e.Err }

// SequenceError reports a violation of event-stream sequence monotonicity.
type SequenceError struct {
	Kind     string // Empty, InvalidStart, NonMonotonic
	Index    int
	Expected uint64
	Actual   uint64
}

func (e *SequenceError) Error() string {
	switch e.Kind {
	case "Empty":
		return "sequence: empty record stream"
	case "InvalidStart":
		return fmt.Sprintf("sequence: invalid start, expected 0, got %d", e.Actual)
	default:
		return fmt.Sprintf("sequence: non-monotonic at index %d: expected %d, got %d", e.Index, e.Expected, e.Actual)
	}
}

// PolicyOutcomeKind distinguishes the non-ok outcomes of the policy gate.
type PolicyOutcomeKind string

const (
	PolicyHardBlock       PolicyOutcomeKind = "HardBlock"
	PolicyNeedUserConfirm PolicyOutcomeKind = "NeedUserConfirm"
)
