// Package solver proposes a recovery action for a blocked node, per spec
// §4.I. It is grounded on contracts/escalation.go's RollbackPlan/HeldEffect
// shape (propose a remedy or escalate to a human) and the teacher's
// allowlist-single-candidate pattern in pdp/helm_pdp.go (only act
// automatically when the candidate set is unambiguous).
package solver

import (
	"github.com/owliabot/ais-sub001/pkg/command"
	"github.com/owliabot/ais-sub001/pkg/runtimepatch"
)

// Readiness describes why a node is blocked, per spec §4.I.
type Readiness struct {
	MissingRefs []string
	NeedsDetect bool
}

// Context supplies the candidates the solver may choose from without human
// input. Exactly one candidate for the relevant field is required to act
// automatically; any other count falls through to NeedUserConfirm.
type Context struct {
	// ContractCandidates maps a contracts.* path to the candidate values the
	// solver knows about for it.
	ContractCandidates map[string][]string
	// DetectProviderCandidates lists the provider ids a detect resolution
	// could use.
	DetectProviderCandidates []string
}

// ActionKind distinguishes the three possible solver proposals.
type ActionKind string

const (
	ActionApplyPatches    ActionKind = "apply_patches"
	ActionSelectProvider  ActionKind = "select_provider"
	ActionNeedUserConfirm ActionKind = "need_user_confirm"
)

// Action is the solver's proposal for a blocked node.
type Action struct {
	Kind     ActionKind
	Patches  []runtimepatch.Patch
	Provider string
	Reason   string
	Details  map[string]any
}

const contractsRoot = "contracts."

// Propose implements spec §4.I's three-branch decision rule.
func Propose(readiness Readiness, ctx Context) Action {
	if len(readiness.MissingRefs) == 1 {
		path := readiness.MissingRefs[0]
		if len(path) > len(contractsRoot) && path[:len(contractsRoot)] == contractsRoot {
			if candidates, ok := ctx.ContractCandidates[path]; ok && len(candidates) == 1 {
				return Action{
					Kind: ActionApplyPatches,
					Patches: []runtimepatch.Patch{
						{Op: runtimepatch.OpSet, Path: path, Value: candidates[0]},
					},
				}
			}
		}
	}

	if readiness.NeedsDetect && len(ctx.DetectProviderCandidates) == 1 {
		return Action{Kind: ActionSelectProvider, Provider: ctx.DetectProviderCandidates[0]}
	}

	return Action{
		Kind:   ActionNeedUserConfirm,
		Reason: "missing_inputs_or_runtime_refs",
		Details: map[string]any{
			"missing_refs": readiness.MissingRefs,
		},
	}
}

// ToCommand renders an ActionApplyPatches/ActionSelectProvider proposal as
// the command envelope a runner would submit back into the engine. It
// returns false for ActionNeedUserConfirm, which produces an event instead
// of a command.
func ToCommand(commandID string, action Action) (command.Envelope, bool) {
	env := command.Envelope{SchemaTag: command.SchemaTag}
	env.Command.ID = commandID

	switch action.Kind {
	case ActionApplyPatches:
		env.Command.Type = command.ApplyPatches
		env.Command.Data = map[string]any{"patches": action.Patches}
		return env, true
	case ActionSelectProvider:
		env.Command.Type = command.SelectProvider
		env.Command.Data = map[string]any{"provider": action.Provider}
		return env, true
	default:
		return command.Envelope{}, false
	}
}
