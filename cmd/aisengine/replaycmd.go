package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/owliabot/ais-sub001/internal/runnerconfig"
	"github.com/owliabot/ais-sub001/pkg/checkpoint"
	"github.com/owliabot/ais-sub001/pkg/eventstream"
	"github.com/owliabot/ais-sub001/pkg/replay"
)

func replayCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var traceJSONLPath, checkpointPath, planPath, configPath, untilNode, format string
	fs.StringVar(&traceJSONLPath, "trace-jsonl", "", "Path to a recorded event trace (REQUIRED)")
	fs.StringVar(&checkpointPath, "checkpoint", "", "Path to a checkpoint document to seed replay from")
	fs.StringVar(&planPath, "plan", "", "Path to the plan the trace was recorded against")
	fs.StringVar(&configPath, "config", "", "Path to a runner config YAML document")
	fs.StringVar(&untilNode, "until-node", "", "Truncate replay just before this node id's first event")
	fs.StringVar(&format, "format", "text", "Output format: text or json")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if traceJSONLPath == "" {
		fmt.Fprintln(stderr, "Error: --trace-jsonl is required")
		return 1
	}

	f, err := os.Open(traceJSONLPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	records, err := eventstream.DecodeJSONL(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	opts := replay.Options{UntilNode: untilNode}

	if checkpointPath != "" {
		doc, err := checkpoint.Load(checkpointPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		seed := doc.EngineState
		opts.SeedState = &seed
		opts.InitialRuntime = doc.RuntimeSnapshot
	}

	if planPath != "" {
		plan, err := loadPlan(planPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if opts.SeedState != nil {
			planHash, err := plan.Hash()
			if err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
			if planHash != opts.SeedState.PlanHash {
				fmt.Fprintln(stderr, "Error: checkpoint plan_hash does not match --plan")
				return 1
			}
		}
	}

	// --config is accepted for CLI-surface parity with `run plan`/`run
	// workflow` (spec §6); replay itself never dispatches executors, so a
	// runner config has nothing to drive here beyond parse validation.
	if configPath != "" {
		if _, err := runnerconfig.Load(configPath); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	result, err := replay.Replay(records, opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	printReplayResult(result, format, stdout)
	if result.Status == replay.Mismatch {
		return 1
	}
	return 0
}

func printReplayResult(result replay.Result, format string, stdout io.Writer) {
	if format == "json" {
		b, _ := json.MarshalIndent(map[string]any{
			"status":              result.Status,
			"mismatch_kind":       result.MismatchKind,
			"mismatch_detail":     result.MismatchDetail,
			"completed_node_ids":  result.State.CompletedNodeIDs,
			"seen_command_ids":    result.State.SeenCommandIDs,
			"paused_reason":       result.State.PausedReason,
		}, "", "  ")
		fmt.Fprintln(stdout, string(b))
		return
	}
	fmt.Fprintf(stdout, "status: %s\n", result.Status)
	if result.MismatchKind != "" {
		fmt.Fprintf(stdout, "mismatch: %s (%s)\n", result.MismatchKind, result.MismatchDetail)
	}
	fmt.Fprintf(stdout, "completed nodes: %v\n", result.State.CompletedNodeIDs)
	fmt.Fprintf(stdout, "seen commands: %v\n", result.State.SeenCommandIDs)
}
