package runner

import (
	"context"
	"testing"

	"github.com/owliabot/ais-sub001/pkg/command"
	"github.com/owliabot/ais-sub001/pkg/enginevents"
	"github.com/owliabot/ais-sub001/pkg/planmodel"
	"github.com/owliabot/ais-sub001/pkg/policygate"
	"github.com/owliabot/ais-sub001/pkg/router"
	"github.com/owliabot/ais-sub001/pkg/runtimepatch"
	"github.com/owliabot/ais-sub001/pkg/scheduler"
	"github.com/owliabot/ais-sub001/pkg/solver"
)

type fakeExecutor struct {
	calls int
}

func (f *fakeExecutor) Execute(ctx context.Context, node planmodel.Node, runtime map[string]any) (router.Output, error) {
	f.calls++
	return router.Output{
		Result: map[string]any{"ok": true},
		Writes: map[string]any{"nodes." + node.ID + ".outputs": map[string]any{"value": f.calls}},
	}, nil
}

func allowAllPolicy() policygate.Options {
	return policygate.Options{
		Allowlist: policygate.Allowlist{Chains: []string{"eip155:1"}},
	}
}

func eventTypes(records []enginevents.Record) []enginevents.EventType {
	out := make([]enginevents.EventType, len(records))
	for i, r := range records {
		out[i] = r.Event.Type
	}
	return out
}

func containsType(types []enginevents.EventType, want enginevents.EventType) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

func TestRunner_CompletesSimplePlan(t *testing.T) {
	plan := &planmodel.Plan{
		SchemaTag: planmodel.SchemaPlan,
		Nodes: []planmodel.Node{
			{ID: "n1", Chain: "eip155:1", Execution: planmodel.Execution{Type: "evm_query"}},
			{ID: "n2", Chain: "eip155:1", Execution: planmodel.Execution{Type: "evm_query"}, Deps: []string{"n1"}},
		},
	}

	r := router.New()
	exec := &fakeExecutor{}
	if err := r.Register("fake", "eip155:1", exec); err != nil {
		t.Fatal(err)
	}

	rn, err := New(Config{
		RunID:            "run-1",
		Plan:             plan,
		DedupMode:        command.AcceptNoop,
		SchedulerOptions: scheduler.Options{GlobalMaxParallel: 4, DefaultPerChainParallel: 4},
		GuardPolicy:      runtimepatch.DefaultGuardPolicy(),
		PolicyOptions:    allowAllPolicy(),
		Router:           r,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	result, err := rn.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != Completed {
		t.Fatalf("status = %s, want completed", result.Status)
	}
	if len(result.State.CompletedNodeIDs) != 2 {
		t.Fatalf("completed = %v", result.State.CompletedNodeIDs)
	}
	if exec.calls != 2 {
		t.Fatalf("expected 2 executor calls, got %d", exec.calls)
	}
	types := eventTypes(result.Records)
	if !containsType(types, enginevents.PlanReady) || !containsType(types, enginevents.QueryResult) {
		t.Fatalf("unexpected event sequence: %v", types)
	}
}

func TestRunner_HardBlockPausesOnDisallowedChain(t *testing.T) {
	plan := &planmodel.Plan{
		Nodes: []planmodel.Node{
			{ID: "n1", Chain: "solana:mainnet-beta", Execution: planmodel.Execution{Type: "solana_query"}},
		},
	}

	r := router.New()
	if err := r.Register("fake", "solana:mainnet-beta", &fakeExecutor{}); err != nil {
		t.Fatal(err)
	}

	rn, err := New(Config{
		RunID:            "run-1",
		Plan:             plan,
		SchedulerOptions: scheduler.Options{GlobalMaxParallel: 4, DefaultPerChainParallel: 4},
		GuardPolicy:      runtimepatch.DefaultGuardPolicy(),
		PolicyOptions:    allowAllPolicy(), // only eip155:1 allowlisted
		Router:           r,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	result, err := rn.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != Paused {
		t.Fatalf("status = %s, want paused", result.Status)
	}
	if result.State.PausedReason == "" {
		t.Fatal("expected paused_reason to be set")
	}
	types := eventTypes(result.Records)
	if !containsType(types, enginevents.ErrorEvent) || !containsType(types, enginevents.NodePaused) {
		t.Fatalf("unexpected event sequence: %v", types)
	}
}

type confirmAlwaysPolicyInput struct{}

func (confirmAlwaysPolicyInput) Build(node planmodel.Node, params map[string]any, runtime map[string]any) policygate.Input {
	return policygate.Input{
		Chain:         node.Chain,
		ExecutionType: node.Execution.Type,
		MissingFields: []string{"spend_amount"},
	}
}

func TestRunner_NeedUserConfirmStopsNodeWithoutError(t *testing.T) {
	plan := &planmodel.Plan{
		Nodes: []planmodel.Node{
			{ID: "n1", Chain: "eip155:1", Execution: planmodel.Execution{Type: "evm_call"}},
		},
	}

	r := router.New()
	exec := &fakeExecutor{}
	if err := r.Register("fake", "eip155:1", exec); err != nil {
		t.Fatal(err)
	}

	rn, err := New(Config{
		RunID:            "run-1",
		Plan:             plan,
		SchedulerOptions: scheduler.Options{GlobalMaxParallel: 4, DefaultPerChainParallel: 4},
		GuardPolicy:      runtimepatch.DefaultGuardPolicy(),
		PolicyOptions:    allowAllPolicy(),
		PolicyInput:      confirmAlwaysPolicyInput{},
		Router:           r,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	result, err := rn.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != Paused {
		t.Fatalf("status = %s, want paused", result.Status)
	}
	if exec.calls != 0 {
		t.Fatalf("expected no dispatch while need_user_confirm, got %d calls", exec.calls)
	}
	types := eventTypes(result.Records)
	if !containsType(types, enginevents.NeedUserConfirm) {
		t.Fatalf("expected need_user_confirm event, got %v", types)
	}
}

func TestRunner_CancelCommandPausesRun(t *testing.T) {
	plan := &planmodel.Plan{
		Nodes: []planmodel.Node{
			{ID: "n1", Chain: "eip155:1", Execution: planmodel.Execution{Type: "evm_query"}},
		},
	}

	r := router.New()
	if err := r.Register("fake", "eip155:1", &fakeExecutor{}); err != nil {
		t.Fatal(err)
	}

	cancelEnv := command.Envelope{SchemaTag: command.SchemaTag}
	cancelEnv.Command.ID = "cmd-cancel"
	cancelEnv.Command.Type = command.Cancel

	rn, err := New(Config{
		RunID:            "run-1",
		Plan:             plan,
		DedupMode:        command.AcceptNoop,
		SchedulerOptions: scheduler.Options{GlobalMaxParallel: 4, DefaultPerChainParallel: 4},
		GuardPolicy:      runtimepatch.DefaultGuardPolicy(),
		PolicyOptions:    allowAllPolicy(),
		Router:           r,
		Commands:         NewQueueCommandSource([]command.Envelope{cancelEnv}),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	result, err := rn.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != Paused || result.State.PausedReason != "cancelled" {
		t.Fatalf("expected cancelled pause, got status=%s reason=%q", result.Status, result.State.PausedReason)
	}
	if len(result.State.CompletedNodeIDs) != 0 {
		t.Fatalf("expected no nodes completed, got %v", result.State.CompletedNodeIDs)
	}
}

func TestRunner_SolverAppliesSingleContractCandidateThenDispatches(t *testing.T) {
	plan := &planmodel.Plan{
		Nodes: []planmodel.Node{
			{
				ID:        "n1",
				Chain:     "eip155:1",
				Execution: planmodel.Execution{Type: "evm_call"},
				Bindings: &planmodel.Bindings{Params: map[string]any{
					"target": map[string]any{"ref": "contracts.router"},
				}},
			},
		},
	}

	r := router.New()
	exec := &fakeExecutor{}
	if err := r.Register("fake", "eip155:1", exec); err != nil {
		t.Fatal(err)
	}

	rn, err := New(Config{
		RunID:            "run-1",
		Plan:             plan,
		DedupMode:        command.AcceptNoop,
		SchedulerOptions: scheduler.Options{GlobalMaxParallel: 4, DefaultPerChainParallel: 4},
		GuardPolicy:      runtimepatch.DefaultGuardPolicy(),
		PolicyOptions:    allowAllPolicy(),
		Router:           r,
		SolverContext: solver.Context{
			ContractCandidates: map[string][]string{
				"contracts.router": {"0xROUTER"},
			},
		},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	result, err := rn.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != Completed {
		t.Fatalf("status = %s, want completed", result.Status)
	}
	if exec.calls != 1 {
		t.Fatalf("expected exactly 1 dispatch after solver patch, got %d", exec.calls)
	}
	types := eventTypes(result.Records)
	if !containsType(types, enginevents.SolverApplied) {
		t.Fatalf("expected solver_applied event, got %v", types)
	}
}
