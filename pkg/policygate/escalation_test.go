package policygate

import "testing"

func TestExportConfirmationSummary_RisksFromMissingAndUnknownFields(t *testing.T) {
	in := Input{
		Chain:         "eip155:1",
		MissingFields: []string{"spend_amount"},
		UnknownFields: []string{"legacy_field"},
		RiskLevel:     "MEDIUM",
	}
	decision := Evaluate(in, baseOptions())
	if decision.Outcome != NeedUserConfirm {
		t.Fatalf("expected NeedUserConfirm, got %+v", decision)
	}

	export := ExportConfirmationSummary(in, decision)
	if len(export.Risks) != 3 {
		t.Fatalf("expected 3 risks (missing + unknown + risk_level), got %+v", export.Risks)
	}
}

func TestExportConfirmationSummary_EmptyForNonConfirmDecision(t *testing.T) {
	export := ExportConfirmationSummary(Input{}, Decision{Outcome: Ok})
	if len(export.Risks) != 0 || export.Reason != "" {
		t.Fatalf("expected zero-value export, got %+v", export)
	}
}

func TestAttachCompensationHint_OnlyOnHardBlockWithRef(t *testing.T) {
	in := Input{Chain: "eip155:999", CompensationRef: "effect-42"}
	decision := Evaluate(in, baseOptions())
	if decision.Outcome != HardBlock {
		t.Fatalf("expected HardBlock, got %+v", decision)
	}
	hint, ok := decision.Details["compensation_hint"].(CompensationHint)
	if !ok {
		t.Fatalf("expected compensation_hint in details, got %+v", decision.Details)
	}
	if hint.Strategy == "" || hint.Description == "" {
		t.Fatalf("expected populated hint, got %+v", hint)
	}
}

func TestAttachCompensationHint_AbsentWithoutRef(t *testing.T) {
	in := Input{Chain: "eip155:999"}
	decision := Evaluate(in, baseOptions())
	if _, ok := decision.Details["compensation_hint"]; ok {
		t.Fatalf("expected no compensation_hint without CompensationRef, got %+v", decision.Details)
	}
}
