// Package scheduler computes ready-node batches under global and per-chain
// parallelism and write-serialization constraints (spec §4.G). No teacher
// file implements a DAG scheduler directly; the batch-assembly loop follows
// the "walk inputs, apply constraint, accept or reject" shape of the
// teacher's pack.CheckCompatibility/CheckDependency pair, generalized to
// stateful per-batch counters.
package scheduler

import (
	"github.com/owliabot/ais-sub001/pkg/planmodel"
)

// Options configures batch assembly.
type Options struct {
	GlobalMaxParallel        int
	DefaultPerChainParallel  int
	PerChainParallelLimits   map[string]int
	WritesPerChainSerial     bool
}

// Batch is one group of nodes the scheduler allows to run concurrently.
type Batch []planmodel.Node

// ScheduleReadyNodes computes the batches of ready nodes per spec §4.G.
// It is a pure function of (plan, completedIDs, options): identical inputs
// always produce identical output.
func ScheduleReadyNodes(plan *planmodel.Plan, completedIDs []string, options Options) []Batch {
	completed := toSet(completedIDs)

	var candidates []planmodel.Node
	for _, n := range plan.Nodes {
		if completed[n.ID] {
			continue
		}
		if depsReady(n, completed) {
			candidates = append(candidates, n)
		}
	}

	var batches []Batch
	for len(candidates) > 0 {
		batch, remaining := assembleBatch(candidates, options)
		batches = append(batches, batch)
		candidates = remaining
	}
	return batches
}

func depsReady(n planmodel.Node, completed map[string]bool) bool {
	for _, dep := range n.Deps {
		if !completed[dep] {
			return false
		}
	}
	return true
}

func toSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// assembleBatch runs one greedy pass over candidates (in document order)
// per spec §4.G.3, returning the admitted batch and the still-pending
// candidates for the next pass.
func assembleBatch(candidates []planmodel.Node, options Options) (Batch, []planmodel.Node) {
	globalMax := max(options.GlobalMaxParallel, 1)

	var batch Batch
	chainCounts := map[string]int{}
	chainsWithWrite := map[string]bool{}
	var deferred []planmodel.Node

	for _, n := range candidates {
		if len(batch) >= globalMax {
			deferred = append(deferred, n)
			continue
		}

		chainLimit := max(perChainLimit(options, n.Chain), 1)
		if chainCounts[n.Chain] >= chainLimit {
			deferred = append(deferred, n)
			continue
		}

		isWrite := n.IsWrite()
		if options.WritesPerChainSerial {
			if chainsWithWrite[n.Chain] {
				deferred = append(deferred, n)
				continue
			}
			if isWrite && chainCounts[n.Chain] > 0 {
				deferred = append(deferred, n)
				continue
			}
		}

		batch = append(batch, n)
		chainCounts[n.Chain]++
		if isWrite {
			chainsWithWrite[n.Chain] = true
		}
	}

	if len(batch) == 0 && len(deferred) > 0 {
		// Forcibly admit the first deferred node so progress is guaranteed.
		batch = append(batch, deferred[0])
		deferred = deferred[1:]
	}

	return batch, deferred
}

func perChainLimit(options Options, chain string) int {
	if options.PerChainParallelLimits != nil {
		if limit, ok := options.PerChainParallelLimits[chain]; ok {
			return limit
		}
	}
	return options.DefaultPerChainParallel
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
