// Package policygate classifies a node readiness report into ok,
// need_user_confirm, or hard_block (spec §4.H), grounded on the teacher's
// pdp.PolicyDecisionPoint decision/hash shape (pdp/pdp.go): a decision is a
// small struct that is fail-closed by construction, and its stable hash
// excludes the hash field itself from the canonical form it is computed
// over.
package policygate

import (
	"github.com/owliabot/ais-sub001/pkg/canonicaljson"
)

// Outcome is the three-way gate verdict.
type Outcome string

const (
	Ok              Outcome = "ok"
	NeedUserConfirm Outcome = "need_user_confirm"
	HardBlock       Outcome = "hard_block"
)

// riskRank orders risk_level strings low to high. thresholdBreach treats an
// unrecognized risk_level as exceeding max_risk_level, so it never silently
// escapes a threshold check.
var riskRank = map[string]int{
	"LOW":      1,
	"MEDIUM":   2,
	"HIGH":     3,
	"CRITICAL": 4,
}

// Input is the node readiness report fed into the gate, per spec §4.H.
type Input struct {
	Chain             string
	ExecutionType     string
	ActionRef         string
	RiskLevel         string
	RiskTags          []string
	SpendAmount       string // decimal string; compared via decimalCompare
	SlippageBps       int
	ApprovalAmount    string
	UnlimitedApproval bool
	SpenderAddress    string
	MissingFields     []string
	UnknownFields     []string
	HardBlockFields   []string
	// CompensationRef, if set, names the prior effect a HardBlock decision
	// on this node would need to be rolled back — see AttachCompensationHint.
	CompensationRef string
}

// Allowlist gates which chains are permitted at all, independent of
// threshold checks. Evaluate checks only Chains; ExecutionTypes and
// ActionRefs are not read by it.
type Allowlist struct {
	Chains         []string
	ExecutionTypes []string
	ActionRefs     []string
}

// Thresholds bound risk/spend/slippage/approval exposure.
type Thresholds struct {
	MaxRiskLevel          string
	MaxSpendAmount        string // decimal string
	MaxSlippageBps        int
	ForbidUnlimitedApproval bool
}

// Options configures one gate evaluation.
type Options struct {
	StrictAllowlist    bool
	HardBlockOnMissing bool
	Allowlist          Allowlist
	Thresholds         Thresholds
}

// Decision is the gate's verdict plus the reasons and details behind it.
type Decision struct {
	Outcome Outcome
	Reason  string
	Details map[string]any
}

// Evaluate runs the spec §4.H decision tree: first match wins. A resulting
// HardBlock decision gets a compensation hint attached when in carries a
// CompensationRef (additive, spec §4.H's outcome set is unchanged).
func Evaluate(in Input, opts Options) Decision {
	return AttachCompensationHint(in, evaluateCore(in, opts))
}

func evaluateCore(in Input, opts Options) Decision {
	if !contains(opts.Allowlist.Chains, in.Chain) {
		return Decision{
			Outcome: HardBlock,
			Reason:  "chain is not allowlisted by pack",
			Details: map[string]any{"chain": in.Chain},
		}
	}

	if len(in.HardBlockFields) > 0 {
		return Decision{
			Outcome: HardBlock,
			Reason:  "hard_block_fields present",
			Details: map[string]any{"hard_block_fields": in.HardBlockFields},
		}
	}

	if reason, details, breached := thresholdBreach(in, opts.Thresholds); breached {
		return Decision{Outcome: HardBlock, Reason: reason, Details: details}
	}

	missing := len(in.MissingFields) > 0
	unknown := opts.StrictAllowlist && len(in.UnknownFields) > 0
	if missing && opts.HardBlockOnMissing {
		return Decision{
			Outcome: HardBlock,
			Reason:  "missing_fields present and hard_block_on_missing is set",
			Details: map[string]any{"missing_fields": in.MissingFields},
		}
	}
	if missing || unknown {
		return Decision{
			Outcome: NeedUserConfirm,
			Reason:  "policy gate input is incomplete",
			Details: map[string]any{
				"missing_fields": in.MissingFields,
				"unknown_fields": in.UnknownFields,
			},
		}
	}

	return Decision{Outcome: Ok}
}

func thresholdBreach(in Input, th Thresholds) (string, map[string]any, bool) {
	if th.MaxRiskLevel != "" && in.RiskLevel != "" {
		rank, known := riskRank[in.RiskLevel]
		if !known || rank > riskRank[th.MaxRiskLevel] {
			return "risk_level exceeds max_risk_level", map[string]any{
				"risk_level":     in.RiskLevel,
				"max_risk_level": th.MaxRiskLevel,
			}, true
		}
	}
	if th.MaxSpendAmount != "" && in.SpendAmount != "" {
		if cmp, ok := decimalCompare(in.SpendAmount, th.MaxSpendAmount); ok && cmp > 0 {
			return "spend_amount exceeds max_spend_amount", map[string]any{
				"spend_amount":     in.SpendAmount,
				"max_spend_amount": th.MaxSpendAmount,
			}, true
		}
	}
	if th.MaxSlippageBps > 0 && in.SlippageBps > th.MaxSlippageBps {
		return "slippage_bps exceeds max_slippage_bps", map[string]any{
			"slippage_bps":     in.SlippageBps,
			"max_slippage_bps": th.MaxSlippageBps,
		}, true
	}
	if th.ForbidUnlimitedApproval && in.UnlimitedApproval {
		return "unlimited_approval is forbidden", map[string]any{
			"spender_address": in.SpenderAddress,
		}, true
	}
	return "", nil, false
}

func contains(list []string, v string) bool {
	if len(list) == 0 {
		return false
	}
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// ConfirmationSummary is hashed (with ts-like keys ignored) to produce a
// stable confirmation_hash for a NeedUserConfirm decision.
type ConfirmationSummary struct {
	Input   Input          `json:"input"`
	Outcome Outcome        `json:"outcome"`
	Reason  string         `json:"reason"`
	Details map[string]any `json:"details,omitempty"`
}

var confirmationIgnoreKeys = canonicaljson.Ignore("ts", "timestamp", "created_at", "updated_at")

// EnrichConfirmation computes confirmation_summary/confirmation_hash for a
// NeedUserConfirm decision and embeds them into its Details, per spec §4.H.
func EnrichConfirmation(in Input, decision Decision) (Decision, error) {
	if decision.Outcome != NeedUserConfirm {
		return decision, nil
	}
	summary := ConfirmationSummary{Input: in, Outcome: decision.Outcome, Reason: decision.Reason, Details: decision.Details}
	hash, err := canonicaljson.StableHashHex(summary, confirmationIgnoreKeys)
	if err != nil {
		return decision, err
	}

	details := map[string]any{}
	for k, v := range decision.Details {
		details[k] = v
	}
	details["confirmation_summary"] = summary
	details["confirmation_hash"] = hash

	enriched := decision
	enriched.Details = details
	return enriched, nil
}
