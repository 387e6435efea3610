// Package runner implements the per-run orchestration loop of spec §4.M: it
// wires the scheduler, policy gate, solver, router, command pipeline, and
// checkpoint packages into the single loop a caller drives once per run.
// Grounded on kernelruntime.Runtime.SubmitIntent's verify-then-dispatch-
// then-persist shape and cmd/helm/main.go's subcommand dispatch, generalized
// from "one intent" to "repeatedly drain commands and advance ready batches
// until paused, completed, or erroring".
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/owliabot/ais-sub001/pkg/checkpoint"
	"github.com/owliabot/ais-sub001/pkg/command"
	"github.com/owliabot/ais-sub001/pkg/enginestate"
	"github.com/owliabot/ais-sub001/pkg/enginevents"
	"github.com/owliabot/ais-sub001/pkg/eventstream"
	"github.com/owliabot/ais-sub001/pkg/planmodel"
	"github.com/owliabot/ais-sub001/pkg/policygate"
	"github.com/owliabot/ais-sub001/pkg/router"
	"github.com/owliabot/ais-sub001/pkg/runtimepatch"
	"github.com/owliabot/ais-sub001/pkg/scheduler"
	"github.com/owliabot/ais-sub001/pkg/solver"
	"github.com/owliabot/ais-sub001/pkg/valueref"
)

// Status is the runner's terminal outcome for one Run call.
type Status string

const (
	Completed Status = "completed"
	Paused    Status = "paused"
	Error     Status = "error"
)

// CommandSource supplies pending commands without blocking. Pull reports
// ok=false when no command is currently available.
type CommandSource interface {
	Pull() (command.Envelope, bool)
}

// NodeReadinessResolver resolves a node's bindings against the runtime tree
// and reports what, if anything, blocks it from dispatch. Callers that need
// pack-specific binding shapes beyond {lit,ref,cel,object,array,detect} can
// supply their own; Config falls back to defaultResolveReadiness otherwise.
type NodeReadinessResolver interface {
	Resolve(node planmodel.Node, runtime map[string]any) (params map[string]any, readiness solver.Readiness, ready bool, err error)
}

// PolicyInputBuilder derives a policygate.Input from a node and its resolved
// params. This is the one piece of wiring every caller must supply for a
// real deployment, since it depends on pack-specific contract/catalog
// lookups (allowlists, risk tags, approval amounts) outside this package's
// scope; Config falls back to a minimal node-only Input otherwise.
type PolicyInputBuilder interface {
	Build(node planmodel.Node, params map[string]any, runtime map[string]any) policygate.Input
}

// CheckpointSink persists a checkpoint document.
type CheckpointSink interface {
	Save(doc checkpoint.Document) error
}

// FileCheckpointSink persists checkpoints to a fixed path via checkpoint.Save.
type FileCheckpointSink struct {
	Path string
}

func (s FileCheckpointSink) Save(doc checkpoint.Document) error {
	return checkpoint.Save(s.Path, doc)
}

// QueueCommandSource is a CommandSource backed by a pre-loaded slice, e.g.
// decoded from a commands JSONL file or stdin ahead of the run.
type QueueCommandSource struct {
	envelopes []command.Envelope
	i         int
}

// NewQueueCommandSource creates a QueueCommandSource over envelopes, pulled
// in order.
func NewQueueCommandSource(envelopes []command.Envelope) *QueueCommandSource {
	return &QueueCommandSource{envelopes: envelopes}
}

func (q *QueueCommandSource) Pull() (command.Envelope, bool) {
	if q == nil || q.i >= len(q.envelopes) {
		return command.Envelope{}, false
	}
	env := q.envelopes[q.i]
	q.i++
	return env, true
}

// Config bundles everything a Runner needs for one run.
type Config struct {
	RunID            string
	Plan             *planmodel.Plan
	StartSeq         uint64
	SeenCommandIDs   []string
	CompletedNodeIDs []string
	DedupMode        command.DedupMode
	SchedulerOptions scheduler.Options
	GuardPolicy      runtimepatch.GuardPolicy
	PolicyOptions    policygate.Options
	Resolver         valueref.Resolver
	Readiness        NodeReadinessResolver
	PolicyInput      PolicyInputBuilder
	SolverContext    solver.Context
	Router           *router.Router
	Commands         CommandSource
	Checkpoint       CheckpointSink
	// CheckpointEveryAdvance, when true, persists and emits checkpoint_saved
	// after every transition that advances completed_node_ids or
	// seen_command_ids, per spec §4.M.5.
	CheckpointEveryAdvance bool
	Logger                 *slog.Logger
}

// Runner drives one run of the engine loop described in spec §4.M.
type Runner struct {
	cfg     Config
	stream  *eventstream.Stream
	dedup   *command.Deduper
	state   enginestate.State
	runtime map[string]any
	log     *slog.Logger
}

// Result is what Run returns: the terminal status, the final engine state,
// and every event record emitted during the run.
type Result struct {
	Status  Status
	State   enginestate.State
	Records []enginevents.Record
}

// New constructs a Runner for one run, computing plan_hash up front (spec
// §4.M.1) and seeding dedup/completed-id state from a prior checkpoint, if
// any.
func New(cfg Config, runtime map[string]any) (*Runner, error) {
	if cfg.Plan == nil {
		return nil, fmt.Errorf("runner: plan is required")
	}
	if cfg.Router == nil {
		return nil, fmt.Errorf("runner: router is required")
	}
	if cfg.Resolver == nil {
		cfg.Resolver = valueref.BasicResolver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if runtime == nil {
		runtime = map[string]any{}
	}

	planHash, err := cfg.Plan.Hash()
	if err != nil {
		return nil, fmt.Errorf("runner: plan hash: %w", err)
	}

	state := enginestate.State{
		RunID:            cfg.RunID,
		PlanHash:         planHash,
		CompletedNodeIDs: append([]string(nil), cfg.CompletedNodeIDs...),
		SeenCommandIDs:   append([]string(nil), cfg.SeenCommandIDs...),
	}
	state.Normalize()

	return &Runner{
		cfg:     cfg,
		stream:  eventstream.New(cfg.RunID, cfg.StartSeq),
		dedup:   command.WithSeenIDs(cfg.DedupMode, state.SeenCommandIDs),
		state:   state,
		runtime: runtime,
		log:     cfg.Logger,
	}, nil
}

// Run executes the loop of spec §4.M.3-6 until the run completes, pauses,
// or errors.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var records []enginevents.Record
	emit := func(rec enginevents.Record) { records = append(records, rec) }

	emit(r.stream.NextRecord(time.Now(), enginevents.Event{
		Type: enginevents.PlanReady,
		Data: enginevents.NewOrderedMap().
			Set("plan_hash", r.state.PlanHash).
			Set("node_count", len(r.cfg.Plan.Nodes)),
	}))

	for {
		if err := ctx.Err(); err != nil {
			return Result{Status: Error, State: r.state, Records: records}, err
		}

		cancelled, commandProgressed, err := r.drainCommands(emit)
		if err != nil {
			return Result{Status: Error, State: r.state, Records: records}, err
		}
		if cancelled {
			r.state.PausedReason = "cancelled"
			return Result{Status: Paused, State: r.state, Records: records}, nil
		}

		batches := scheduler.ScheduleReadyNodes(r.cfg.Plan, r.state.CompletedNodeIDs, r.cfg.SchedulerOptions)
		if len(batches) == 0 {
			return Result{Status: Completed, State: r.state, Records: records}, nil
		}

		nodeProgressed := r.runBatch(ctx, batches[0], emit)

		if !nodeProgressed && !commandProgressed {
			emit(r.stream.NextRecord(time.Now(), enginevents.Event{
				Type: enginevents.EnginePaused,
				Data: enginevents.NewOrderedMap().Set("reason", "no_progress"),
			}))
			return Result{Status: Paused, State: r.state, Records: records}, nil
		}
	}
}

// runBatch processes every node in one scheduler batch, reporting whether
// any of them made progress in the sense advanceNode reports.
func (r *Runner) runBatch(ctx context.Context, batch scheduler.Batch, emit func(enginevents.Record)) bool {
	progressed := false
	for _, node := range batch {
		if r.advanceNode(ctx, node, emit) {
			progressed = true
		}
	}
	return progressed
}

// advanceNode runs spec §4.M.4.b's per-node pipeline: condition check,
// readiness resolution (+ solver on block), policy gate, dispatch. It
// returns true iff the node's condition caused a skip, it was
// successfully dispatched, or the solver applied patches or selected a
// provider for it; only the first two advance completed_node_ids.
func (r *Runner) advanceNode(ctx context.Context, node planmodel.Node, emit func(enginevents.Record)) bool {
	if skip, has := r.evaluateCondition(node); has && skip {
		emit(r.stream.NextRecord(time.Now(), enginevents.Event{
			Type:   enginevents.Skipped,
			NodeID: node.ID,
			Data:   enginevents.NewOrderedMap().Set("reason", "condition_false"),
		}))
		r.state.AddCompleted(node.ID)
		r.maybeCheckpoint(emit)
		return true
	}

	params, readiness, ready, err := r.resolveReadiness(node)
	if err != nil {
		emit(r.errorEvent(node.ID, "readiness_resolution_failed", err))
		emit(r.stream.NextRecord(time.Now(), enginevents.Event{
			Type:   enginevents.NodeBlocked,
			NodeID: node.ID,
			Data:   enginevents.NewOrderedMap().Set("reason", err.Error()),
		}))
		return false
	}

	if !ready {
		return r.resolveBlocked(node, readiness, emit)
	}

	input := r.buildPolicyInput(node, params)
	decision := policygate.Evaluate(input, r.cfg.PolicyOptions)

	switch decision.Outcome {
	case policygate.HardBlock:
		r.state.PausedReason = decision.Reason
		emit(r.errorEventWithDetails(node.ID, "hard_block", decision.Reason, decision.Details))
		emit(r.stream.NextRecord(time.Now(), enginevents.Event{
			Type:   enginevents.NodePaused,
			NodeID: node.ID,
			Data:   enginevents.NewOrderedMap().Set("reason", decision.Reason),
		}))
		return false
	case policygate.NeedUserConfirm:
		enriched, hashErr := policygate.EnrichConfirmation(input, decision)
		if hashErr != nil {
			emit(r.errorEvent(node.ID, "confirmation_hash_failed", hashErr))
			return false
		}
		summary := policygate.ExportConfirmationSummary(input, enriched)
		emit(r.stream.NextRecord(time.Now(), enginevents.Event{
			Type:   enginevents.NeedUserConfirm,
			NodeID: node.ID,
			Data: enginevents.NewOrderedMap().
				Set("reason", enriched.Reason).
				Set("details", enriched.Details).
				Set("risks", summary.Risks),
		}))
		return false
	default: // Ok
		return r.dispatch(ctx, node, emit)
	}
}

// resolveBlocked asks the Solver to propose a recovery action for a blocked
// node and applies it, per spec §4.I.
func (r *Runner) resolveBlocked(node planmodel.Node, readiness solver.Readiness, emit func(enginevents.Record)) bool {
	action := solver.Propose(readiness, r.cfg.SolverContext)

	switch action.Kind {
	case solver.ActionApplyPatches:
		env, ok := solver.ToCommand(uuid.NewString(), action)
		if !ok {
			return false
		}
		outcome := r.dedup.Check(env.Command.ID)
		emit(command.EmitAcceptedOrRejected(r.stream, time.Now(), env.Command.ID, outcome))
		if !outcome.Accepted {
			return false
		}
		r.state.AddSeenCommand(env.Command.ID)

		newRuntime, records, err := command.ApplyPatchesFromCommand(r.runtime, env, r.cfg.GuardPolicy, r.stream, time.Now())
		if err != nil {
			emit(r.errorEvent(node.ID, "solver_patch_apply_failed", err))
			return false
		}
		r.runtime = newRuntime
		for _, rec := range records {
			emit(rec)
		}
		emit(r.stream.NextRecord(time.Now(), enginevents.Event{
			Type:   enginevents.SolverApplied,
			NodeID: node.ID,
			Data:   enginevents.NewOrderedMap().Set("action", string(action.Kind)),
		}))
		r.maybeCheckpoint(emit)
		return true

	case solver.ActionSelectProvider:
		path := "ctx.detect_providers." + node.ID
		r.runtime, _ = runtimepatch.ApplyRuntimePatches(r.runtime, []runtimepatch.Patch{
			{Op: runtimepatch.OpSet, Path: path, Value: action.Provider},
		}, r.cfg.GuardPolicy)
		emit(r.stream.NextRecord(time.Now(), enginevents.Event{
			Type:   enginevents.SolverApplied,
			NodeID: node.ID,
			Data:   enginevents.NewOrderedMap().Set("action", string(action.Kind)).Set("provider", action.Provider),
		}))
		return true

	default: // ActionNeedUserConfirm
		emit(r.stream.NextRecord(time.Now(), enginevents.Event{
			Type:   enginevents.NeedUserConfirm,
			NodeID: node.ID,
			Data:   enginevents.NewOrderedMap().Set("reason", action.Reason).Set("details", action.Details),
		}))
		return false
	}
}

// dispatch runs the node through the router and applies its writes, per
// spec §4.M.4.b's Ready+Ok branch.
func (r *Runner) dispatch(ctx context.Context, node planmodel.Node, emit func(enginevents.Record)) bool {
	out, err := r.cfg.Router.Execute(ctx, node, r.runtime)
	if err != nil {
		r.state.PausedReason = err.Error()
		emit(r.errorEvent(node.ID, "executor_failed", err))
		emit(r.stream.NextRecord(time.Now(), enginevents.Event{
			Type:   enginevents.NodePaused,
			NodeID: node.ID,
			Data:   enginevents.NewOrderedMap().Set("reason", err.Error()),
		}))
		return false
	}

	newRuntime, err := runtimepatch.ApplyExecutorWrites(r.runtime, out.Writes)
	if err != nil {
		emit(r.errorEvent(node.ID, "executor_write_rejected", err))
		return false
	}
	r.runtime = newRuntime

	if node.IsWrite() {
		// The bundled deterministic executors (pkg/executors) are
		// synchronous and have no real send/confirm lifecycle to straddle,
		// so both phases are emitted back to back for one dispatch.
		emit(r.stream.NextRecord(time.Now(), enginevents.Event{
			Type:   enginevents.TxPrepared,
			NodeID: node.ID,
			Data:   enginevents.NewOrderedMap().Set("result", out.Result),
		}))
		emit(r.stream.NextRecord(time.Now(), enginevents.Event{
			Type:   enginevents.TxConfirmed,
			NodeID: node.ID,
			Data:   enginevents.NewOrderedMap().Set("result", out.Result).Set("writes", out.Writes),
		}))
	} else {
		emit(r.stream.NextRecord(time.Now(), enginevents.Event{
			Type:   enginevents.QueryResult,
			NodeID: node.ID,
			Data:   enginevents.NewOrderedMap().Set("result", out.Result).Set("writes", out.Writes),
		}))
	}

	r.state.AddCompleted(node.ID)
	r.maybeCheckpoint(emit)
	return true
}

// drainCommands pulls every currently pending command (non-blocking) and
// processes it per spec §4.F, per §4.M.4.a.
func (r *Runner) drainCommands(emit func(enginevents.Record)) (cancelled bool, progressed bool, err error) {
	if r.cfg.Commands == nil {
		return false, false, nil
	}

	for {
		env, ok := r.cfg.Commands.Pull()
		if !ok {
			return false, progressed, nil
		}
		progressed = true

		outcome := r.dedup.Check(env.Command.ID)
		emit(command.EmitAcceptedOrRejected(r.stream, time.Now(), env.Command.ID, outcome))
		if !outcome.Accepted {
			continue
		}
		r.state.AddSeenCommand(env.Command.ID)

		switch env.Command.Type {
		case command.Cancel:
			return true, progressed, nil
		case command.ApplyPatches:
			if outcome.Noop {
				continue
			}
			newRuntime, records, applyErr := command.ApplyPatchesFromCommand(r.runtime, env, r.cfg.GuardPolicy, r.stream, time.Now())
			if applyErr != nil {
				return false, progressed, applyErr
			}
			r.runtime = newRuntime
			for _, rec := range records {
				emit(rec)
			}
		default:
			// user_confirm / select_provider carry no independent runtime
			// mutation of their own; acceptance alone unblocks the next
			// readiness/gate pass over the node they target.
		}

		r.maybeCheckpoint(emit)
	}
}

// maybeCheckpoint persists and emits checkpoint_saved if the caller opted
// into per-advance checkpointing, per spec §4.M.5.
func (r *Runner) maybeCheckpoint(emit func(enginevents.Record)) {
	if !r.cfg.CheckpointEveryAdvance || r.cfg.Checkpoint == nil {
		return
	}
	doc := checkpoint.New(r.state.RunID, r.state.PlanHash, r.state, r.runtime)
	if err := r.cfg.Checkpoint.Save(doc); err != nil {
		r.log.Error("checkpoint save failed", "run_id", r.state.RunID, "error", err)
		return
	}
	emit(r.stream.NextRecord(time.Now(), enginevents.Event{
		Type: enginevents.CheckpointSaved,
		Data: enginevents.NewOrderedMap().Set("run_id", r.state.RunID),
	}))
}

// evaluateCondition resolves node.Condition, if present, against the
// runtime tree. has reports whether a condition was present to evaluate at
// all; a condition that fails to parse or resolve is treated as absent
// rather than as a block, since §3 only requires a node's execution and
// bindings to be well-formed.
func (r *Runner) evaluateCondition(node planmodel.Node) (skip bool, has bool) {
	raw, ok := node.Condition.(map[string]any)
	if !ok {
		return false, false
	}
	ref, err := valueref.ParseRef(raw)
	if err != nil {
		return false, false
	}
	v, err := r.cfg.Resolver.Resolve(ref, r.runtime, valueref.Options{})
	if err != nil {
		return false, false
	}
	return !isTruthy(v), true
}

func isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	default:
		return true
	}
}

// resolveReadiness delegates to a caller-supplied NodeReadinessResolver, or
// the default {lit,ref,object,array,detect}-only resolution below.
func (r *Runner) resolveReadiness(node planmodel.Node) (map[string]any, solver.Readiness, bool, error) {
	if r.cfg.Readiness != nil {
		return r.cfg.Readiness.Resolve(node, r.runtime)
	}
	return r.defaultResolveReadiness(node)
}

func (r *Runner) defaultResolveReadiness(node planmodel.Node) (map[string]any, solver.Readiness, bool, error) {
	if node.Bindings == nil || len(node.Bindings.Params) == 0 {
		return map[string]any{}, solver.Readiness{}, true, nil
	}

	params := make(map[string]any, len(node.Bindings.Params))
	var missing []string
	needsDetect := false

	for key, raw := range node.Bindings.Params {
		rawMap, ok := raw.(map[string]any)
		if !ok {
			params[key] = raw
			continue
		}
		ref, err := valueref.ParseRef(rawMap)
		if err != nil {
			return nil, solver.Readiness{}, false, fmt.Errorf("runner: node %q param %q: %w", node.ID, key, err)
		}

		v, err := r.cfg.Resolver.Resolve(ref, r.runtime, valueref.Options{})
		if err != nil {
			var needDetect *valueref.NeedDetect
			if errors.As(err, &needDetect) {
				needsDetect = true
				continue
			}
			if ref.Kind == valueref.KindRef {
				missing = append(missing, ref.Path)
				continue
			}
			return nil, solver.Readiness{}, false, fmt.Errorf("runner: node %q param %q: %w", node.ID, key, err)
		}
		params[key] = v
	}

	if len(missing) > 0 || needsDetect {
		sort.Strings(missing)
		return params, solver.Readiness{MissingRefs: missing, NeedsDetect: needsDetect}, false, nil
	}
	return params, solver.Readiness{}, true, nil
}

// buildPolicyInput delegates to a caller-supplied PolicyInputBuilder, or a
// minimal node-only Input otherwise (sufficient for chain allowlisting and
// risk_level thresholds, but missing spend/slippage/
// approval fields a real pack would populate from its contracts catalog).
func (r *Runner) buildPolicyInput(node planmodel.Node, params map[string]any) policygate.Input {
	if r.cfg.PolicyInput != nil {
		return r.cfg.PolicyInput.Build(node, params, r.runtime)
	}
	return policygate.Input{
		Chain:         node.Chain,
		ExecutionType: node.Execution.Type,
		RiskLevel:     node.RiskLevel,
		RiskTags:      node.RiskTags,
	}
}

func (r *Runner) errorEvent(nodeID, kind string, err error) enginevents.Record {
	return r.stream.NextRecord(time.Now(), enginevents.Event{
		Type:   enginevents.ErrorEvent,
		NodeID: nodeID,
		Data:   enginevents.NewOrderedMap().Set("kind", kind).Set("message", err.Error()),
	})
}

func (r *Runner) errorEventWithDetails(nodeID, kind, message string, details map[string]any) enginevents.Record {
	return r.stream.NextRecord(time.Now(), enginevents.Event{
		Type:   enginevents.ErrorEvent,
		NodeID: nodeID,
		Data:   enginevents.NewOrderedMap().Set("kind", kind).Set("message", message).Set("details", details),
	})
}
