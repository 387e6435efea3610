package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/owliabot/ais-sub001/pkg/command"
	"github.com/owliabot/ais-sub001/pkg/enginevents"
	"github.com/owliabot/ais-sub001/pkg/eventstream"
	"github.com/owliabot/ais-sub001/internal/runnerconfig"
	"github.com/owliabot/ais-sub001/pkg/executors"
	"github.com/owliabot/ais-sub001/pkg/planmodel"
	"github.com/owliabot/ais-sub001/pkg/router"
	"golang.org/x/time/rate"
)

// loadPlan reads and decodes a plan document from path.
func loadPlan(path string) (*planmodel.Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var plan planmodel.Plan
	if err := json.Unmarshal(b, &plan); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return &plan, nil
}

// workflowDocument is the compiled-workflow shape this CLI accepts: a
// workflow wraps one already-compiled plan under "plan", since protocol/
// workflow compilation into plans is an external collaborator per spec §1
// (this CLI is the reference runtime surface, not the compiler).
type workflowDocument struct {
	SchemaTag string           `json:"schema"`
	Plan      *planmodel.Plan  `json:"plan"`
}

// loadWorkflow reads a compiled workflow document and returns its embedded
// plan.
func loadWorkflow(path string) (*planmodel.Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	var doc workflowDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	if doc.Plan == nil {
		return nil, fmt.Errorf("workflow %s carries no compiled plan (compilation is out of scope for this runtime; run the workflow through the compiler first)", path)
	}
	return doc.Plan, nil
}

// loadRuntime reads an optional initial runtime tree; a missing path
// yields an empty tree.
func loadRuntime(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read runtime: %w", err)
	}
	runtime := map[string]any{}
	if err := json.Unmarshal(b, &runtime); err != nil {
		return nil, fmt.Errorf("parse runtime: %w", err)
	}
	return runtime, nil
}

// loadCommandsJSONL decodes one EngineCommandEnvelope per line from raw,
// trimming trailing whitespace from each line per spec §6.
func loadCommandsJSONL(raw []byte) ([]command.Envelope, error) {
	var envelopes []command.Envelope
	for i, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			continue
		}
		var env command.Envelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			return nil, fmt.Errorf("commands line %d: %w", i+1, err)
		}
		envelopes = append(envelopes, env)
	}
	return envelopes, nil
}

// buildRouter registers a deterministic fake executor (pkg/executors) for
// every distinct chain the plan touches, chosen by the chain's family and
// rate-limited per the
// runner config if one was supplied. Real RPC-backed executors are an
// external collaborator per spec §1; this is the reference wiring a
// production front-end would replace driver-by-driver.
func buildRouter(plan *planmodel.Plan, cfg *runnerconfig.Config) (*router.Router, error) {
	r := router.New()
	seen := map[string]bool{}

	for _, node := range plan.Nodes {
		if seen[node.Chain] {
			continue
		}
		seen[node.Chain] = true

		var exec router.Executor
		switch runnerconfig.ChainFamily(node.Chain) {
		case "eip155":
			exec = executors.EVMExecutor{}
		case "solana":
			exec = executors.SolanaExecutor{}
		default:
			return nil, fmt.Errorf("no executor available for chain family of %q", node.Chain)
		}

		limit := rate.Inf
		burst := 0
		if cfg != nil {
			if _, ok := cfg.Chains[node.Chain]; ok {
				limit = rate.Limit(5)
				burst = 5
			}
		}
		if err := r.RegisterWithRateLimit(node.Chain, node.Chain, exec, limit, burst); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// writeEventsJSONL writes records as newline-delimited JSON to path, or to
// stdout when path is "-".
func writeEventsJSONL(path string, stdout *os.File, records []enginevents.Record) error {
	if path == "" {
		return nil
	}
	w := stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create events file: %w", err)
		}
		defer f.Close()
		for _, rec := range records {
			if err := eventstream.EncodeJSONL(f, rec); err != nil {
				return err
			}
		}
		return nil
	}
	for _, rec := range records {
		if err := eventstream.EncodeJSONL(w, rec); err != nil {
			return err
		}
	}
	return nil
}
