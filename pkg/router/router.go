// Package router maps a node's chain tag to a registered executor and
// dispatches it, per spec §4.J/§6. Grounded on executor/executor.go's
// dispatch-via-driver step (resolve the right backend, invoke it, wrap
// failures) and executor/driver.go's ToolDriver interface shape, generalized
// from "one driver for all tools" to "one executor per exact chain string".
package router

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/owliabot/ais-sub001/pkg/enginerr"
	"github.com/owliabot/ais-sub001/pkg/planmodel"
)

// Output is what a successful execution produces: an opaque result plus a
// set of runtime-tree writes to `nodes.<id>.*`, which the router returns
// unapplied for the caller to apply.
type Output struct {
	Result any
	Writes map[string]any
}

// Executor executes one node. Implementations are expected to be pure
// with respect to their inputs aside from the external side effect they
// perform (an RPC call, a signed transaction, …).
type Executor interface {
	Execute(ctx context.Context, node planmodel.Node, runtime map[string]any) (Output, error)
}

// Router dispatches nodes to executors registered under an exact chain tag.
// A chain tag names exactly one executor; registering a second executor for
// the same chain makes that chain's route ambiguous, rejected at
// registration time rather than deferred to dispatch.
type Router struct {
	byChain map[string]registeredExecutor
}

type registeredExecutor struct {
	name     string
	executor Executor
	limiter  *rate.Limiter
}

// New creates an empty Router.
func New() *Router {
	return &Router{byChain: make(map[string]registeredExecutor)}
}

// Register binds name as the executor for chain, per spec §4.J. It reports
// AmbiguousRoute if chain is already registered.
func (r *Router) Register(name, chain string, executor Executor) error {
	return r.RegisterWithRateLimit(name, chain, executor, rate.Inf, 0)
}

// RegisterWithRateLimit is Register plus a per-chain dispatch rate limit,
// ambient throttling layered on top of the scheduler's hard batch
// constraints (spec §4.G already bounds *concurrency*; this bounds
// *dispatch rate* against a chain's RPC provider). ratePerSecond of
// rate.Inf disables throttling.
func (r *Router) RegisterWithRateLimit(name, chain string, executor Executor, ratePerSecond rate.Limit, burst int) error {
	if existing, exists := r.byChain[chain]; exists {
		return &enginerr.RouterError{
			Kind:     "AmbiguousRoute",
			Executor: name,
			Reason:   "chain " + chain + " already routed to " + existing.name,
		}
	}
	r.byChain[chain] = registeredExecutor{name: name, executor: executor, limiter: rate.NewLimiter(ratePerSecond, burst)}
	return nil
}

// Execute dispatches node to its chain's registered executor, per spec
// §4.J, waiting on that chain's dispatch rate limiter first.
func (r *Router) Execute(ctx context.Context, node planmodel.Node, runtime map[string]any) (Output, error) {
	if node.ID == "" {
		return Output{}, &enginerr.RouterError{Kind: "MissingNodeId", Reason: "node has no id"}
	}
	if node.Chain == "" {
		return Output{}, &enginerr.RouterError{Kind: "MissingNodeChain", NodeID: node.ID, Reason: "node has no chain"}
	}

	reg, ok := r.byChain[node.Chain]
	if !ok {
		return Output{}, &enginerr.RouterError{Kind: "ChainMismatch", NodeID: node.ID, Reason: "no executor registered for chain " + node.Chain}
	}

	if reg.limiter != nil {
		if err := reg.limiter.Wait(ctx); err != nil {
			return Output{}, &enginerr.RouterError{Kind: "ExecutorFailed", NodeID: node.ID, Executor: reg.name, Reason: "rate limit wait: " + err.Error()}
		}
	}

	out, err := reg.executor.Execute(ctx, node, runtime)
	if err != nil {
		return Output{}, &enginerr.RouterError{Kind: "ExecutorFailed", NodeID: node.ID, Executor: reg.name, Reason: err.Error()}
	}
	return out, nil
}
