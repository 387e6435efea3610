package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/owliabot/ais-sub001/internal/runnerconfig"
	"github.com/owliabot/ais-sub001/pkg/command"
	"github.com/owliabot/ais-sub001/pkg/enginevents"
	"github.com/owliabot/ais-sub001/pkg/planmodel"
	"github.com/owliabot/ais-sub001/pkg/policygate"
	"github.com/owliabot/ais-sub001/pkg/runner"
	"github.com/owliabot/ais-sub001/pkg/runtimepatch"
	"github.com/owliabot/ais-sub001/pkg/scheduler"
	"github.com/owliabot/ais-sub001/pkg/trace"
)

type runPlanFlags struct {
	planPath           string
	workflowPath       string
	configPath         string
	runtimePath        string
	dryRun             bool
	eventsJSONLPath    string
	tracePath          string
	checkpointPath     string
	commandsStdinJSONL bool
	verbose            bool
	format             string
}

func runPlanCmd(args []string, stdout, stderr io.Writer) int {
	var f runPlanFlags
	fs := flag.NewFlagSet("run plan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.planPath, "plan", "", "Path to a compiled plan document (REQUIRED)")
	bindCommonRunFlags(fs, &f)

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if f.planPath == "" {
		fmt.Fprintln(stderr, "Error: --plan is required")
		return 1
	}

	plan, err := loadPlan(f.planPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return executeRun(plan, f, stdout, stderr)
}

func runWorkflowCmd(args []string, stdout, stderr io.Writer) int {
	var f runPlanFlags
	fs := flag.NewFlagSet("run workflow", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.workflowPath, "workflow", "", "Path to a compiled workflow document (REQUIRED)")
	fs.StringVar(&f.runtimePath, "workspace", "", "Path to the initial runtime/workspace tree")
	fs.StringVar(&f.eventsJSONLPath, "outputs", "", "Path to write event records as JSONL")
	bindRemainingRunFlags(fs, &f)

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if f.workflowPath == "" {
		fmt.Fprintln(stderr, "Error: --workflow is required")
		return 1
	}

	plan, err := loadWorkflow(f.workflowPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return executeRun(plan, f, stdout, stderr)
}

// bindCommonRunFlags registers the full `run plan` flag set of spec §6.
func bindCommonRunFlags(fs *flag.FlagSet, f *runPlanFlags) {
	fs.StringVar(&f.configPath, "config", "", "Path to a runner config YAML document")
	fs.StringVar(&f.runtimePath, "runtime", "", "Path to an initial runtime tree (JSON)")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Validate and print the schedule without dispatching executors")
	fs.StringVar(&f.eventsJSONLPath, "events-jsonl", "", "Path to write raw event records as JSONL, or - for stdout")
	bindRemainingRunFlags(fs, f)
}

func bindRemainingRunFlags(fs *flag.FlagSet, f *runPlanFlags) {
	fs.StringVar(&f.tracePath, "trace", "", "Path to write redacted event records as JSONL")
	fs.StringVar(&f.checkpointPath, "checkpoint", "", "Path to save the final checkpoint document")
	fs.BoolVar(&f.commandsStdinJSONL, "commands-stdin-jsonl", false, "Read pending commands as JSONL from stdin before the run starts")
	fs.BoolVar(&f.verbose, "verbose", false, "Print every event record to stdout after the run finishes")
	fs.StringVar(&f.format, "format", "text", "Output format: text or json")
}

// executeRun wires a Config per f and drives one run, or (on --dry-run)
// prints the computed schedule without dispatching.
func executeRun(plan *planmodel.Plan, f runPlanFlags, stdout, stderr io.Writer) int {
	var cfg *runnerconfig.Config
	if f.configPath != "" {
		loaded, err := runnerconfig.Load(f.configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	runtimeTree, err := loadRuntime(f.runtimePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if f.dryRun {
		return printDryRun(plan, cfg, stdout, f.format)
	}

	r, err := buildRouter(plan, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	var commands runner.CommandSource
	if f.commandsStdinJSONL {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading commands from stdin: %v\n", err)
			return 1
		}
		envelopes, err := loadCommandsJSONL(raw)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		commands = runner.NewQueueCommandSource(envelopes)
	}

	var checkpointSink runner.CheckpointSink
	if f.checkpointPath != "" {
		checkpointSink = runner.FileCheckpointSink{Path: f.checkpointPath}
	}

	runID := uuid.NewString()
	rn, err := runner.New(runner.Config{
		RunID:            runID,
		Plan:             plan,
		DedupMode:        command.AcceptNoop,
		SchedulerOptions: schedulerOptionsFrom(cfg),
		GuardPolicy:      runtimepatch.DefaultGuardPolicy(),
		PolicyOptions:    policyOptionsFrom(cfg, plan),
		Router:           r,
		Commands:         commands,
		Checkpoint:       checkpointSink,
		CheckpointEveryAdvance: f.checkpointPath != "",
	}, runtimeTree)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	result, err := rn.Run(context.Background())
	if f.verbose {
		for _, rec := range result.Records {
			b, _ := json.Marshal(rec)
			fmt.Fprintln(stdout, string(b))
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		writeSideOutputs(f, result.Records)
		return 1
	}

	writeSideOutputs(f, result.Records)
	printRunResult(result, f.format, stdout)

	if result.Status == runner.Error {
		return 1
	}
	return 0
}

func writeSideOutputs(f runPlanFlags, records []enginevents.Record) {
	if f.eventsJSONLPath != "" {
		_ = writeEventsJSONL(f.eventsJSONLPath, os.Stdout, records)
	}
	if f.tracePath != "" {
		redacted := make([]enginevents.Record, len(records))
		for i, rec := range records {
			redacted[i] = trace.RedactRecord(rec, trace.Options{Mode: trace.Default})
		}
		_ = writeEventsJSONL(f.tracePath, os.Stdout, redacted)
	}
}

func printRunResult(result runner.Result, format string, stdout io.Writer) {
	if format == "json" {
		b, _ := json.MarshalIndent(map[string]any{
			"status":             result.Status,
			"completed_node_ids": result.State.CompletedNodeIDs,
			"paused_reason":      result.State.PausedReason,
			"event_count":        len(result.Records),
		}, "", "  ")
		fmt.Fprintln(stdout, string(b))
		return
	}
	fmt.Fprintf(stdout, "status: %s\n", result.Status)
	fmt.Fprintf(stdout, "completed nodes: %d\n", len(result.State.CompletedNodeIDs))
	if result.State.PausedReason != "" {
		fmt.Fprintf(stdout, "paused reason: %s\n", result.State.PausedReason)
	}
	fmt.Fprintf(stdout, "events emitted: %d\n", len(result.Records))
}

func printDryRun(plan *planmodel.Plan, cfg *runnerconfig.Config, stdout io.Writer, format string) int {
	batches := scheduler.ScheduleReadyNodes(plan, nil, schedulerOptionsFrom(cfg))
	if format == "json" {
		out := make([][]string, len(batches))
		for i, batch := range batches {
			ids := make([]string, len(batch))
			for j, n := range batch {
				ids[j] = n.ID
			}
			out[i] = ids
		}
		b, _ := json.MarshalIndent(map[string]any{"batches": out}, "", "  ")
		fmt.Fprintln(stdout, string(b))
		return 0
	}
	fmt.Fprintf(stdout, "plan %s: %d node(s), first batch: %d ready\n", planLabel(plan), len(plan.Nodes), len(firstBatch(batches)))
	for i, batch := range batches {
		fmt.Fprintf(stdout, "batch %d:\n", i)
		for _, n := range batch {
			fmt.Fprintf(stdout, "  - %s (%s)\n", n.ID, n.Chain)
		}
	}
	return 0
}

func planLabel(plan *planmodel.Plan) string {
	if name, ok := plan.Metadata["name"].(string); ok && name != "" {
		return name
	}
	return "(unnamed)"
}

func firstBatch(batches []scheduler.Batch) scheduler.Batch {
	if len(batches) == 0 {
		return nil
	}
	return batches[0]
}

func schedulerOptionsFrom(cfg *runnerconfig.Config) scheduler.Options {
	if cfg == nil {
		return scheduler.Options{GlobalMaxParallel: 4, DefaultPerChainParallel: 4}
	}
	opts := scheduler.Options{
		GlobalMaxParallel:       maxOr(cfg.Engine.MaxConcurrency, 4),
		DefaultPerChainParallel: 4,
		PerChainParallelLimits:  map[string]int{},
	}
	for chain, limits := range cfg.Engine.PerChain {
		limit := limits.MaxReadConcurrency
		if limits.MaxWriteConcurrency > limit {
			limit = limits.MaxWriteConcurrency
		}
		if limit > 0 {
			opts.PerChainParallelLimits[chain] = limit
		}
	}
	return opts
}

func maxOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// policyOptionsFrom derives a permissive policygate.Options: every chain
// the runner config declares transport for is allowlisted, falling back to
// every chain the plan itself touches when no config was supplied (so a
// bare `run plan --plan <path>` works without a config file). A
// pack-specific deployment would instead load explicit policy thresholds
// from its own catalog.
func policyOptionsFrom(cfg *runnerconfig.Config, plan *planmodel.Plan) policygate.Options {
	seen := map[string]bool{}
	var chains []string
	add := func(chain string) {
		if chain != "" && !seen[chain] {
			seen[chain] = true
			chains = append(chains, chain)
		}
	}

	if cfg != nil {
		for chain := range cfg.Chains {
			add(chain)
		}
	}
	for _, node := range plan.Nodes {
		add(node.Chain)
	}
	return policygate.Options{Allowlist: policygate.Allowlist{Chains: chains}}
}
