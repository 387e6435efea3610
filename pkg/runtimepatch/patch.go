// Package runtimepatch implements the runtime-patch engine with its guard
// policy and deterministic audit (spec §4.D), grounded on the teacher's
// executor.SafeExecutor gated-apply pipeline (validate -> guard -> apply ->
// audit) and pdp's fail-closed evaluation discipline.
package runtimepatch

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/owliabot/ais-sub001/pkg/canonicaljson"
)

// Op is a patch operation kind.
type Op string

const (
	OpSet   Op = "set"
	OpMerge Op = "merge"
)

// Patch is a single runtime-tree mutation (spec §3).
type Patch struct {
	Op         Op             `json:"op"`
	Path       string         `json:"path"`
	Value      any            `json:"value"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// GuardPolicy declares which patch roots/paths are permitted.
type GuardPolicy struct {
	Enabled         bool
	AllowRoots      []string
	AllowPathPatterns []*regexp.Regexp
	AllowNodesPaths   []*regexp.Regexp
}

// DefaultGuardPolicy returns the default guard policy per spec §4.D:
// enabled, allow_roots = [inputs, ctx, contracts, policy], no patterns.
func DefaultGuardPolicy() GuardPolicy {
	return GuardPolicy{
		Enabled:    true,
		AllowRoots: []string{"inputs", "ctx", "contracts", "policy"},
	}
}

// Rejection records why a single patch was rejected.
type Rejection struct {
	Index  int    `json:"index"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Audit is the deterministic summary of a patch application.
type Audit struct {
	PatchCount     int      `json:"patch_count"`
	AppliedCount   int      `json:"applied_count"`
	RejectedCount  int      `json:"rejected_count"`
	AffectedPaths  []string `json:"affected_paths"`
	PartialSuccess bool     `json:"partial_success"`
	Hash           string   `json:"hash"`
}

// ApplyResult is the outcome of ApplyRuntimePatches.
type ApplyResult struct {
	Rejected []Rejection
	Audit    Audit
}

// ApplyRuntimePatches validates, guards, and applies patches to runtime in
// list order, per spec §4.D. runtime is mutated in place. Later patches
// overwrite earlier ones on the same path.
func ApplyRuntimePatches(runtime map[string]any, patches []Patch, policy GuardPolicy) (map[string]any, ApplyResult) {
	if runtime == nil {
		runtime = map[string]any{}
	}

	var rejected []Rejection
	affected := map[string]bool{}
	applied := 0

	for i, p := range patches {
		segs, err := validatePath(p.Path)
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, Path: p.Path, Reason: err.Error()})
			continue
		}

		if policy.Enabled {
			if reason, ok := guardCheck(segs, policy); !ok {
				rejected = append(rejected, Rejection{Index: i, Path: p.Path, Reason: reason})
				continue
			}
		}

		if err := applyOne(runtime, segs, p); err != nil {
			rejected = append(rejected, Rejection{Index: i, Path: p.Path, Reason: err.Error()})
			continue
		}

		applied++
		affected[p.Path] = true
	}

	affectedPaths := make([]string, 0, len(affected))
	for p := range affected {
		affectedPaths = append(affectedPaths, p)
	}
	sort.Strings(affectedPaths)

	audit := Audit{
		PatchCount:     len(patches),
		AppliedCount:   applied,
		RejectedCount:  len(rejected),
		AffectedPaths:  affectedPaths,
		PartialSuccess: applied > 0 && len(rejected) > 0,
	}
	hashInput := struct {
		PatchCount     int      `json:"patch_count"`
		AppliedCount   int      `json:"applied_count"`
		RejectedCount  int      `json:"rejected_count"`
		AffectedPaths  []string `json:"affected_paths"`
		PartialSuccess bool     `json:"partial_success"`
	}{audit.PatchCount, audit.AppliedCount, audit.RejectedCount, audit.AffectedPaths, audit.PartialSuccess}
	h, err := canonicaljson.StableHashHex(hashInput, canonicaljson.Options{})
	if err == nil {
		audit.Hash = h
	}

	return runtime, ApplyResult{Rejected: rejected, Audit: audit}
}

// validatePath checks a non-empty trimmed path splitting on "." into >= 1
// non-empty segments with no intra-segment whitespace, per spec §4.D.2.a.
func validatePath(path string) ([]string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("invalid_path: empty path")
	}
	segs := strings.Split(trimmed, ".")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("invalid_path: empty segment in %q", path)
		}
		if strings.ContainsAny(s, " \t\n\r") {
			return nil, fmt.Errorf("invalid_path: whitespace in segment %q", s)
		}
	}
	return segs, nil
}

// guardCheck applies the guard policy of spec §4.D.2.b.
func guardCheck(segs []string, policy GuardPolicy) (string, bool) {
	root := segs[0]
	fullPath := strings.Join(segs, ".")

	if root == "nodes" {
		for _, re := range policy.AllowNodesPaths {
			if re.MatchString(fullPath) {
				return "", true
			}
		}
		return "nodes_paths_forbidden", false
	}

	for _, r := range policy.AllowRoots {
		if r == root {
			return "", true
		}
	}
	for _, re := range policy.AllowPathPatterns {
		if re.MatchString(fullPath) {
			return "", true
		}
	}
	return "root_not_allowed:" + root, false
}

// applyOne walks runtime through all but the last segment (auto-creating
// missing intermediate objects) and applies op at the last key.
func applyOne(runtime map[string]any, segs []string, p Patch) error {
	cur := runtime
	for i := 0; i < len(segs)-1; i++ {
		seg := segs[i]
		next, ok := cur[seg]
		if !ok {
			created := map[string]any{}
			cur[seg] = created
			cur = created
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("non_object_intermediate:%s", seg)
		}
		cur = m
	}

	lastKey := segs[len(segs)-1]
	switch p.Op {
	case OpSet:
		cur[lastKey] = p.Value
		return nil
	case OpMerge:
		valObj, ok := p.Value.(map[string]any)
		if !ok {
			return fmt.Errorf("merge_value_must_be_object")
		}
		existing, present := cur[lastKey]
		if !present {
			cur[lastKey] = map[string]any{}
			existing = cur[lastKey]
		}
		target, ok := existing.(map[string]any)
		if !ok {
			return fmt.Errorf("merge_target_not_object")
		}
		for k, v := range valObj {
			target[k] = v
		}
		cur[lastKey] = target
		return nil
	default:
		return fmt.Errorf("invalid_path: unknown op %q", p.Op)
	}
}

// ApplyExecutorWrites applies a router/executor's output writes directly to
// runtime, bypassing the guard policy: spec §3's runtime-tree invariant is
// that "executor writes target only nodes.<id>.*", a narrower and
// orthogonal channel from the guard-policed patch engine, not a patch
// subject to it. Keys are field paths (e.g. "nodes.n1.outputs"); each is
// applied as a `set`.
func ApplyExecutorWrites(runtime map[string]any, writes map[string]any) (map[string]any, error) {
	if runtime == nil {
		runtime = map[string]any{}
	}
	for path, value := range writes {
		segs, err := validatePath(path)
		if err != nil {
			return runtime, err
		}
		if segs[0] != "nodes" {
			return runtime, fmt.Errorf("invalid_path: executor write %q must target the nodes root", path)
		}
		if err := applyOne(runtime, segs, Patch{Op: OpSet, Path: path, Value: value}); err != nil {
			return runtime, err
		}
	}
	return runtime, nil
}

// ApplyRuntimePatchesFromCommand always enforces the guard policy, even if
// the caller passes a disabled one, per spec §4.D's "When invoked from a
// command, the guard is always enforced" rule.
func ApplyRuntimePatchesFromCommand(runtime map[string]any, patches []Patch, policy GuardPolicy) (map[string]any, ApplyResult) {
	enforced := policy
	enforced.Enabled = true
	if len(enforced.AllowRoots) == 0 {
		enforced.AllowRoots = DefaultGuardPolicy().AllowRoots
	}
	return ApplyRuntimePatches(runtime, patches, enforced)
}
