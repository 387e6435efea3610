package planmodel

import (
	"reflect"

	"github.com/owliabot/ais-sub001/pkg/issue"
)

// Diff is the structural difference between two plans, grounded on the
// teacher's EscalationDiff before/after shape (contracts/escalation.go).
type Diff struct {
	AddedNodeIDs   []string      `json:"added_node_ids"`
	RemovedNodeIDs []string      `json:"removed_node_ids"`
	ChangedNodeIDs []string      `json:"changed_node_ids"`
	Issues         []issue.Issue `json:"issues,omitempty"`
}

// DiffPlans computes the structural diff of before -> after.
func DiffPlans(before, after *Plan) Diff {
	beforeByID := make(map[string]Node, len(before.Nodes))
	for _, n := range before.Nodes {
		beforeByID[n.ID] = n
	}
	afterByID := make(map[string]Node, len(after.Nodes))
	for _, n := range after.Nodes {
		afterByID[n.ID] = n
	}

	var d Diff
	for id := range afterByID {
		if _, ok := beforeByID[id]; !ok {
			d.AddedNodeIDs = append(d.AddedNodeIDs, id)
		}
	}
	for id := range beforeByID {
		if _, ok := afterByID[id]; !ok {
			d.RemovedNodeIDs = append(d.RemovedNodeIDs, id)
		}
	}
	for id, bn := range beforeByID {
		if an, ok := afterByID[id]; ok && !reflect.DeepEqual(bn, an) {
			d.ChangedNodeIDs = append(d.ChangedNodeIDs, id)
		}
	}

	issue.SortStable(d.Issues)
	return d
}
