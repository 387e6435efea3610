// Package enginestate defines the checkpointable Engine state (spec §3),
// shared by the checkpoint and replay packages.
package enginestate

import "sort"

// State is the engine state that a Checkpoint captures and Replay
// reconstructs.
type State struct {
	RunID             string            `json:"run_id"`
	PlanHash          string            `json:"plan_hash"`
	CompletedNodeIDs  []string          `json:"completed_node_ids"`
	SeenCommandIDs    []string          `json:"seen_command_ids"`
	PausedReason      string            `json:"paused_reason,omitempty"`
	PendingRetries    map[string]any    `json:"pending_retries,omitempty"`
	RuntimeSnapshot   map[string]any    `json:"runtime_snapshot,omitempty"`
}

// Normalize deduplicates and sorts CompletedNodeIDs and SeenCommandIDs in
// place, the way spec §4.L requires of a constructed Checkpoint.
func (s *State) Normalize() {
	s.CompletedNodeIDs = dedupSort(s.CompletedNodeIDs)
	s.SeenCommandIDs = dedupSort(s.SeenCommandIDs)
}

func dedupSort(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// AddCompleted records a node id as completed. Once a node id is present it
// is never removed (spec §5 ordering guarantee).
func (s *State) AddCompleted(nodeID string) {
	for _, id := range s.CompletedNodeIDs {
		if id == nodeID {
			return
		}
	}
	s.CompletedNodeIDs = append(s.CompletedNodeIDs, nodeID)
	sort.Strings(s.CompletedNodeIDs)
}

// AddSeenCommand records a command id as seen.
func (s *State) AddSeenCommand(commandID string) {
	for _, id := range s.SeenCommandIDs {
		if id == commandID {
			return
		}
	}
	s.SeenCommandIDs = append(s.SeenCommandIDs, commandID)
	sort.Strings(s.SeenCommandIDs)
}

// IsCompleted reports whether nodeID is in CompletedNodeIDs.
func (s *State) IsCompleted(nodeID string) bool {
	for _, id := range s.CompletedNodeIDs {
		if id == nodeID {
			return true
		}
	}
	return false
}
