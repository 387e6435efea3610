package policygate

// ConfirmationExport is a human-readable escalation-style view of
// a NeedUserConfirm decision, grounded on contracts/escalation.go's
// EscalationContext/IdentifiedRisk shapes: a confirmation is presented to an
// approver as structured context, not a bare hash. This is presentation
// sugar only — it never feeds back into confirmation_hash, which is already
// fixed by EnrichConfirmation before this is called.
type ConfirmationExport struct {
	Reason string           `json:"reason"`
	Risks  []IdentifiedRisk `json:"risks,omitempty"`
}

// IdentifiedRisk describes one risk surfaced to the approver, mirroring the
// teacher's category/severity/description/mitigation shape.
type IdentifiedRisk struct {
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Mitigation  string `json:"mitigation,omitempty"`
}

// ExportConfirmationSummary derives an approver-facing ConfirmationExport
// from a NeedUserConfirm decision's Input/Reason, classifying each missing
// or unknown field as an "operational" risk and the node's own risk_level
// as an additional risk when present; risk_tags are not reported. Returns
// the zero value for any other outcome.
func ExportConfirmationSummary(in Input, decision Decision) ConfirmationExport {
	if decision.Outcome != NeedUserConfirm {
		return ConfirmationExport{}
	}

	export := ConfirmationExport{Reason: decision.Reason}
	for _, field := range in.MissingFields {
		export.Risks = append(export.Risks, IdentifiedRisk{
			Category:    "operational",
			Severity:    "medium",
			Description: "required field " + field + " is missing",
			Mitigation:  "supply " + field + " via a user_confirm or apply_patches command",
		})
	}
	for _, field := range in.UnknownFields {
		export.Risks = append(export.Risks, IdentifiedRisk{
			Category:    "operational",
			Severity:    "low",
			Description: "unrecognized field " + field + " present in node input",
		})
	}
	if in.RiskLevel != "" {
		export.Risks = append(export.Risks, IdentifiedRisk{
			Category:    "financial",
			Severity:    severityFromRiskLevel(in.RiskLevel),
			Description: "node is tagged risk_level=" + in.RiskLevel,
		})
	}
	return export
}

func severityFromRiskLevel(riskLevel string) string {
	switch riskLevel {
	case "CRITICAL":
		return "critical"
	case "HIGH":
		return "high"
	case "MEDIUM":
		return "medium"
	default:
		return "low"
	}
}

// CompensationHint is a RollbackPlan-shaped hint attached to a HardBlock
// decision when the gate input names a compensation_ref, grounded on
// contracts/compensation.go's CompensationRecipe/CompensationStep shape,
// reduced to the two fields an operator needs inline on a decision: how and
// what. Its absence is always valid — no invariant in spec §4.H depends on
// it.
type CompensationHint struct {
	Strategy    string `json:"strategy"`
	Description string `json:"description"`
}

// AttachCompensationHint returns decision unchanged unless it is a
// HardBlock with a non-empty CompensationRef, in which case it returns a
// copy with decision.Details["compensation_hint"] populated.
func AttachCompensationHint(in Input, decision Decision) Decision {
	if decision.Outcome != HardBlock || in.CompensationRef == "" {
		return decision
	}

	details := map[string]any{}
	for k, v := range decision.Details {
		details[k] = v
	}
	details["compensation_hint"] = CompensationHint{
		Strategy:    "manual",
		Description: "reverse the effect of " + in.CompensationRef + " before resuming this run",
	}

	out := decision
	out.Details = details
	return out
}
