package executors

import (
	"context"
	"testing"

	"github.com/owliabot/ais-sub001/pkg/planmodel"
)

func TestEVMExecutor_DeterministicTxHash(t *testing.T) {
	node := planmodel.Node{
		ID:        "n1",
		Chain:     "eip155:1",
		Execution: planmodel.Execution{Type: "evm_call"},
		Bindings:  &planmodel.Bindings{Params: map[string]any{"amount": "100"}},
	}

	out1, err := EVMExecutor{}.Execute(context.Background(), node, map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	out2, err := EVMExecutor{}.Execute(context.Background(), node, map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if out1.Result.(map[string]any)["tx_hash"] != out2.Result.(map[string]any)["tx_hash"] {
		t.Fatal("expected deterministic tx_hash across repeated executions")
	}
	if out1.Writes["nodes.n1.outputs"] == nil {
		t.Fatal("expected a nodes.n1.outputs write")
	}
}

func TestEVMExecutor_QueryIsReadOnlyShape(t *testing.T) {
	node := planmodel.Node{ID: "n2", Chain: "eip155:1", Execution: planmodel.Execution{Type: "evm_query"}}
	out, err := EVMExecutor{}.Execute(context.Background(), node, map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out.Result.(map[string]any)["digest"]; !ok {
		t.Fatalf("expected digest in query result, got %+v", out.Result)
	}
}

func TestSolanaExecutor_DeterministicSignature(t *testing.T) {
	node := planmodel.Node{
		ID:        "n3",
		Chain:     "solana:mainnet-beta",
		Execution: planmodel.Execution{Type: "solana_instruction"},
	}
	out1, err := SolanaExecutor{}.Execute(context.Background(), node, map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	out2, err := SolanaExecutor{}.Execute(context.Background(), node, map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if out1.Result.(map[string]any)["signature"] != out2.Result.(map[string]any)["signature"] {
		t.Fatal("expected deterministic signature across repeated executions")
	}
}
