package planmodel

import "testing"

func TestNode_IsWrite(t *testing.T) {
	cases := []struct {
		name string
		n    Node
		want bool
	}{
		{"empty", Node{}, false},
		{"writes-list", Node{Writes: []string{"contracts.router"}}, true},
		{"evm-call", Node{Execution: Execution{Type: "evm_call"}}, true},
		{"query", Node{Execution: Execution{Type: "evm_query"}}, false},
	}
	for _, tc := range cases {
		if got := tc.n.IsWrite(); got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestPlan_HashDeterministic(t *testing.T) {
	p := &Plan{
		SchemaTag: SchemaPlan,
		Nodes: []Node{
			{ID: "n1", Chain: "eip155:1", Execution: Execution{Type: "evm_query"}},
		},
	}
	h1, err := p.Hash()
	if err != nil {
		t.Fatal(err)
	}
	h2, err := p.Hash()
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("hash not stable: %s != %s", h1, h2)
	}
}

func TestDiffPlans(t *testing.T) {
	before := &Plan{Nodes: []Node{{ID: "a", Chain: "eip155:1"}, {ID: "b", Chain: "eip155:1"}}}
	after := &Plan{Nodes: []Node{{ID: "a", Chain: "eip155:2"}, {ID: "c", Chain: "eip155:1"}}}

	d := DiffPlans(before, after)
	if len(d.AddedNodeIDs) != 1 || d.AddedNodeIDs[0] != "c" {
		t.Fatalf("added: %v", d.AddedNodeIDs)
	}
	if len(d.RemovedNodeIDs) != 1 || d.RemovedNodeIDs[0] != "b" {
		t.Fatalf("removed: %v", d.RemovedNodeIDs)
	}
	if len(d.ChangedNodeIDs) != 1 || d.ChangedNodeIDs[0] != "a" {
		t.Fatalf("changed: %v", d.ChangedNodeIDs)
	}
}
