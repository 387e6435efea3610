package executors

import (
	"context"
	"fmt"

	"github.com/owliabot/ais-sub001/pkg/canonicaljson"
	"github.com/owliabot/ais-sub001/pkg/planmodel"
	"github.com/owliabot/ais-sub001/pkg/router"
)

// SolanaExecutor is a deterministic fake for execution.type ∈
// {solana_instruction, solana_query}, mirroring EVMExecutor's shape for a
// different chain family.
type SolanaExecutor struct{}

func (SolanaExecutor) Execute(ctx context.Context, node planmodel.Node, runtime map[string]any) (router.Output, error) {
	digest, err := canonicaljson.StableHashHex(map[string]any{
		"node_id": node.ID,
		"chain":   node.Chain,
		"params":  paramsOf(node),
	}, canonicaljson.Options{})
	if err != nil {
		return router.Output{}, fmt.Errorf("solanaexec: %w", err)
	}

	switch node.Execution.Type {
	case "solana_instruction":
		signature := digest
		return router.Output{
			Result: map[string]any{"signature": signature, "status": "finalized"},
			Writes: map[string]any{
				fmt.Sprintf("nodes.%s.outputs", node.ID): map[string]any{"signature": signature},
			},
		}, nil
	default: // solana_query
		return router.Output{
			Result: map[string]any{"digest": digest},
			Writes: map[string]any{
				fmt.Sprintf("nodes.%s.outputs", node.ID): map[string]any{"digest": digest},
			},
		}, nil
	}
}
