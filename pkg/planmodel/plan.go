// Package planmodel defines the Plan document and Node types (spec §3), the
// schema-tag constants of spec §6, and plan-hash computation.
package planmodel

import (
	"github.com/owliabot/ais-sub001/pkg/canonicaljson"
)

// Schema tags. Stable strings per spec §6.
const (
	SchemaPlan                 = "ais-plan/0.0.3"
	SchemaWorkflow              = "ais-flow/0.0.3"
	SchemaProtocol              = "ais/0.0.2"
	SchemaPack                  = "ais-pack/0.0.2"
	SchemaEvent                 = "ais-engine-event/0.0.3"
	SchemaCommand                = "ais-engine-command/0.0.1"
	SchemaCheckpoint             = "ais-checkpoint/0.0.1"
	SchemaCatalogIndex           = "ais-catalog-index/0.0.1"
	SchemaExecutableCandidates   = "ais-executable-candidates/0.0.1"
)

// Execution describes how a node is carried out.
type Execution struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// Bindings holds node parameter bindings resolved against the runtime tree.
type Bindings struct {
	Params map[string]any `json:"params,omitempty"`
}

// Node is one unit of work in a Plan's DAG.
type Node struct {
	ID         string         `json:"id"`
	Chain      string         `json:"chain"`
	Deps       []string       `json:"deps,omitempty"`
	Writes     []string       `json:"writes,omitempty"`
	Execution  Execution      `json:"execution"`
	Condition  any            `json:"condition,omitempty"`
	Bindings   *Bindings      `json:"bindings,omitempty"`
	RiskLevel  string         `json:"risk_level,omitempty"`
	RiskTags   []string       `json:"risk_tags,omitempty"`
}

// writeExecutionTypes is the execution.type set that makes a node a write
// node even when Writes is empty, per spec §4.G.
var writeExecutionTypes = map[string]bool{
	"evm_call":          true,
	"evm_multicall":     true,
	"solana_instruction": true,
	"bitcoin_psbt":       true,
}

// IsWrite reports whether n is a write node per spec §4.G: non-empty Writes,
// or an execution.type in the write-classification set.
func (n Node) IsWrite() bool {
	if len(n.Writes) > 0 {
		return true
	}
	return writeExecutionTypes[n.Execution.Type]
}

// Metadata holds free-form plan metadata (name, description, authoring tool, ...).
type Metadata map[string]any

// Plan is the top-level document: schema tag, metadata, and an ordered list
// of nodes. Nodes are immutable after load — callers must not mutate a
// Node obtained from a Plan in place.
type Plan struct {
	SchemaTag string   `json:"schema"`
	Metadata  Metadata `json:"metadata,omitempty"`
	Nodes     []Node   `json:"nodes"`
}

// NodeByID returns the node with the given id, or false if absent.
func (p *Plan) NodeByID(id string) (Node, bool) {
	for _, n := range p.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Hash returns the stable hash of the plan document per spec §3's
// "plan_hash equals the stable hash of the plan".
func (p *Plan) Hash() (string, error) {
	return canonicaljson.StableHashHex(p, canonicaljson.Options{})
}
