package policygate

import "testing"

func baseOptions() Options {
	return Options{
		Allowlist: Allowlist{Chains: []string{"eip155:1", "solana:mainnet-beta"}},
		Thresholds: Thresholds{
			MaxRiskLevel:            "MEDIUM",
			MaxSpendAmount:          "1000",
			MaxSlippageBps:          100,
			ForbidUnlimitedApproval: true,
		},
	}
}

func TestEvaluate_ChainNotAllowlisted(t *testing.T) {
	d := Evaluate(Input{Chain: "eip155:999"}, baseOptions())
	if d.Outcome != HardBlock {
		t.Fatalf("expected HardBlock, got %+v", d)
	}
}

func TestEvaluate_HardBlockFields(t *testing.T) {
	d := Evaluate(Input{Chain: "eip155:1", HardBlockFields: []string{"spender_address"}}, baseOptions())
	if d.Outcome != HardBlock {
		t.Fatalf("expected HardBlock, got %+v", d)
	}
}

func TestEvaluate_RiskThresholdBreach(t *testing.T) {
	d := Evaluate(Input{Chain: "eip155:1", RiskLevel: "CRITICAL"}, baseOptions())
	if d.Outcome != HardBlock {
		t.Fatalf("expected HardBlock on risk breach, got %+v", d)
	}
}

func TestEvaluate_SpendThresholdBreach(t *testing.T) {
	d := Evaluate(Input{Chain: "eip155:1", SpendAmount: "1000.01"}, baseOptions())
	if d.Outcome != HardBlock {
		t.Fatalf("expected HardBlock on spend breach, got %+v", d)
	}
}

func TestEvaluate_UnlimitedApprovalForbidden(t *testing.T) {
	d := Evaluate(Input{Chain: "eip155:1", UnlimitedApproval: true}, baseOptions())
	if d.Outcome != HardBlock {
		t.Fatalf("expected HardBlock on unlimited approval, got %+v", d)
	}
}

func TestEvaluate_MissingFieldsNeedsConfirm(t *testing.T) {
	d := Evaluate(Input{Chain: "eip155:1", MissingFields: []string{"spend_amount"}}, baseOptions())
	if d.Outcome != NeedUserConfirm {
		t.Fatalf("expected NeedUserConfirm, got %+v", d)
	}
}

func TestEvaluate_MissingFieldsHardBlocksWhenConfigured(t *testing.T) {
	opts := baseOptions()
	opts.HardBlockOnMissing = true
	d := Evaluate(Input{Chain: "eip155:1", MissingFields: []string{"spend_amount"}}, opts)
	if d.Outcome != HardBlock {
		t.Fatalf("expected HardBlock when hard_block_on_missing is set, got %+v", d)
	}
}

func TestEvaluate_UnknownFieldsOnlyBlockUnderStrictAllowlist(t *testing.T) {
	opts := baseOptions()
	in := Input{Chain: "eip155:1", UnknownFields: []string{"extra_field"}}

	lenient := Evaluate(in, opts)
	if lenient.Outcome != Ok {
		t.Fatalf("expected Ok without strict_allowlist, got %+v", lenient)
	}

	opts.StrictAllowlist = true
	strict := Evaluate(in, opts)
	if strict.Outcome != NeedUserConfirm {
		t.Fatalf("expected NeedUserConfirm under strict_allowlist, got %+v", strict)
	}
}

func TestEvaluate_Ok(t *testing.T) {
	d := Evaluate(Input{Chain: "eip155:1", RiskLevel: "LOW", SpendAmount: "10"}, baseOptions())
	if d.Outcome != Ok {
		t.Fatalf("expected Ok, got %+v", d)
	}
}

func TestEnrichConfirmation_DeterministicHashIgnoringTimestamps(t *testing.T) {
	in := Input{Chain: "eip155:1", MissingFields: []string{"spend_amount"}}
	d := Evaluate(in, baseOptions())
	withTS := func(ts string) Decision {
		out := d
		out.Details = map[string]any{"ts": ts}
		for k, v := range d.Details {
			out.Details[k] = v
		}
		return out
	}

	e1, err := EnrichConfirmation(in, withTS("2020-01-01T00:00:00Z"))
	if err != nil {
		t.Fatal(err)
	}
	e2, err := EnrichConfirmation(in, withTS("2021-06-01T12:00:00Z"))
	if err != nil {
		t.Fatal(err)
	}

	h1 := e1.Details["confirmation_hash"]
	h2 := e2.Details["confirmation_hash"]
	if h1 != h2 {
		t.Fatalf("expected deterministic confirmation_hash, got %v vs %v", h1, h2)
	}
	if _, ok := e1.Details["confirmation_summary"]; !ok {
		t.Fatal("expected confirmation_summary to be embedded")
	}
}

func TestEnrichConfirmation_NoopForNonConfirmOutcomes(t *testing.T) {
	in := Input{Chain: "eip155:1"}
	d := Evaluate(in, baseOptions())
	if d.Outcome != Ok {
		t.Fatalf("precondition failed: %+v", d)
	}
	e, err := EnrichConfirmation(in, d)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Details["confirmation_hash"]; ok {
		t.Fatal("did not expect confirmation_hash on an Ok decision")
	}
}
