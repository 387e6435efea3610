package scheduler

import (
	"testing"

	"github.com/owliabot/ais-sub001/pkg/planmodel"
)

func node(id, chain string, write bool, deps ...string) planmodel.Node {
	n := planmodel.Node{ID: id, Chain: chain, Deps: deps, Execution: planmodel.Execution{Type: "evm_query"}}
	if write {
		n.Writes = []string{"contracts.router"}
	}
	return n
}

func TestScheduleReadyNodes_WriteSerialization(t *testing.T) {
	plan := &planmodel.Plan{Nodes: []planmodel.Node{
		node("w1", "eip155:1", true),
		node("w2", "eip155:1", true),
		node("w3", "solana:mainnet-beta", true),
	}}

	batches := ScheduleReadyNodes(plan, nil, DefaultOptions())
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d: %+v", len(batches), batches)
	}
	if !sameIDs(batches[0], "w1", "w3") {
		t.Fatalf("batch 0 = %v, want [w1 w3]", ids(batches[0]))
	}
	if !sameIDs(batches[1], "w2") {
		t.Fatalf("batch 1 = %v, want [w2]", ids(batches[1]))
	}
}

func TestScheduleReadyNodes_DepsGate(t *testing.T) {
	plan := &planmodel.Plan{Nodes: []planmodel.Node{
		node("a", "eip155:1", false),
		node("b", "eip155:1", false, "a"),
	}}
	batches := ScheduleReadyNodes(plan, nil, DefaultOptions())
	if len(batches) != 1 || !sameIDs(batches[0], "a") {
		t.Fatalf("expected only [a] ready, got %+v", batches)
	}

	batches2 := ScheduleReadyNodes(plan, []string{"a"}, DefaultOptions())
	if len(batches2) != 1 || !sameIDs(batches2[0], "b") {
		t.Fatalf("expected [b] ready after a completes, got %+v", batches2)
	}
}

func TestScheduleReadyNodes_GlobalMaxParallel(t *testing.T) {
	plan := &planmodel.Plan{Nodes: []planmodel.Node{
		node("a", "c1", false),
		node("b", "c2", false),
		node("c", "c3", false),
	}}
	opts := Options{GlobalMaxParallel: 2, DefaultPerChainParallel: 1}
	batches := ScheduleReadyNodes(plan, nil, opts)
	if len(batches[0]) > 2 {
		t.Fatalf("batch exceeds global max: %+v", batches[0])
	}
}

func TestScheduleReadyNodes_ForceProgress(t *testing.T) {
	// Two write nodes on the same chain, per-chain limit 1, serial writes:
	// the second is deferred and then admitted alone in the next batch
	// rather than stalling forever.
	plan := &planmodel.Plan{Nodes: []planmodel.Node{
		node("w1", "eip155:1", true),
		node("w2", "eip155:1", true),
	}}
	batches := ScheduleReadyNodes(plan, nil, DefaultOptions())
	total := 0
	for _, b := range batches {
		total += len(b)
	}
	if total != 2 {
		t.Fatalf("expected all nodes scheduled eventually, got %d across %+v", total, batches)
	}
}

func TestScheduleReadyNodes_Deterministic(t *testing.T) {
	plan := &planmodel.Plan{Nodes: []planmodel.Node{
		node("a", "c1", true),
		node("b", "c1", true),
		node("c", "c2", false),
	}}
	b1 := ScheduleReadyNodes(plan, nil, DefaultOptions())
	b2 := ScheduleReadyNodes(plan, nil, DefaultOptions())
	if len(b1) != len(b2) {
		t.Fatalf("non-deterministic batch count")
	}
	for i := range b1 {
		if !sameIDs(b1[i], ids(b2[i])...) {
			t.Fatalf("non-deterministic batch %d: %v vs %v", i, ids(b1[i]), ids(b2[i]))
		}
	}
}

func ids(b Batch) []string {
	out := make([]string, len(b))
	for i, n := range b {
		out[i] = n.ID
	}
	return out
}

func sameIDs(b Batch, want ...string) bool {
	got := ids(b)
	if len(got) != len(want) {
		return false
	}
	gotSet := map[string]bool{}
	for _, g := range got {
		gotSet[g] = true
	}
	for _, w := range want {
		if !gotSet[w] {
			return false
		}
	}
	return true
}
