// Package executors provides deterministic fake chain executors that
// satisfy the router.Executor interface without any real network I/O. Real
// EVM/Solana RPC drivers are out of scope per spec §1; these stand in for
// them in tests and as a template for a production executor, grounded on
// executor/executor.go's dispatch-then-canonicalize-output shape (the fake
// plays the role of the "driver" executor.go dispatches to).
package executors

import (
	"context"
	"fmt"

	"github.com/owliabot/ais-sub001/pkg/canonicaljson"
	"github.com/owliabot/ais-sub001/pkg/planmodel"
	"github.com/owliabot/ais-sub001/pkg/router"
)

// EVMExecutor is a deterministic fake for execution.type ∈ {evm_call,
// evm_multicall, evm_query}. It never touches the network: it derives a
// stable pseudo tx_hash from the node id, chain and bindings.params as
// written in the plan so the
// same plan always replays to the same outputs.
type EVMExecutor struct{}

func (EVMExecutor) Execute(ctx context.Context, node planmodel.Node, runtime map[string]any) (router.Output, error) {
	digest, err := canonicaljson.StableHashHex(map[string]any{
		"node_id": node.ID,
		"chain":   node.Chain,
		"params":  paramsOf(node),
	}, canonicaljson.Options{})
	if err != nil {
		return router.Output{}, fmt.Errorf("evmexec: %w", err)
	}

	switch node.Execution.Type {
	case "evm_call", "evm_multicall":
		txHash := "0x" + digest
		return router.Output{
			Result: map[string]any{"tx_hash": txHash, "status": "confirmed"},
			Writes: map[string]any{
				fmt.Sprintf("nodes.%s.outputs", node.ID): map[string]any{"tx_hash": txHash},
			},
		}, nil
	default: // evm_query and anything else read-only
		return router.Output{
			Result: map[string]any{"digest": digest},
			Writes: map[string]any{
				fmt.Sprintf("nodes.%s.outputs", node.ID): map[string]any{"digest": digest},
			},
		}, nil
	}
}

func paramsOf(node planmodel.Node) map[string]any {
	if node.Bindings == nil {
		return nil
	}
	return node.Bindings.Params
}
