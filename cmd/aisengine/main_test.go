package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/owliabot/ais-sub001/pkg/planmodel"
)

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := Run([]string{"aisengine", "--help"}, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "USAGE")
}

func TestRun_Unknown(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := Run([]string{"aisengine", "nonsense"}, &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Unknown command")
}

func writePlanFile(t *testing.T, plan planmodel.Plan) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	b, err := json.Marshal(plan)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func samplePlan() planmodel.Plan {
	return planmodel.Plan{
		SchemaTag: planmodel.SchemaPlan,
		Nodes: []planmodel.Node{
			{ID: "n1", Chain: "eip155:1", Execution: planmodel.Execution{Type: "evm_query"}},
			{ID: "n2", Chain: "eip155:1", Execution: planmodel.Execution{Type: "evm_call"}, Deps: []string{"n1"}},
		},
	}
}

func TestRun_PlanDryRun(t *testing.T) {
	path := writePlanFile(t, samplePlan())

	var stdout, stderr bytes.Buffer
	exitCode := Run([]string{"aisengine", "run", "plan", "--plan", path, "--dry-run"}, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "batch 0")
	assert.Contains(t, stdout.String(), "n1")
}

func TestRun_PlanExecutesToCompletion(t *testing.T) {
	path := writePlanFile(t, samplePlan())

	var stdout, stderr bytes.Buffer
	exitCode := Run([]string{"aisengine", "run", "plan", "--plan", path, "--format", "json"}, &stdout, &stderr)

	assert.Equal(t, 0, exitCode, stderr.String())
	assert.Contains(t, stdout.String(), `"status": "completed"`)
}

func TestRun_PlanDiff(t *testing.T) {
	before := samplePlan()
	after := samplePlan()
	after.Nodes = append(after.Nodes, planmodel.Node{ID: "n3", Chain: "eip155:1", Execution: planmodel.Execution{Type: "evm_query"}})

	beforePath := writePlanFile(t, before)
	afterPath := writePlanFile(t, after)

	var stdout, stderr bytes.Buffer
	exitCode := Run([]string{"aisengine", "plan", "diff", "--before", beforePath, "--after", afterPath}, &stdout, &stderr)

	assert.Equal(t, 0, exitCode, stderr.String())
	assert.Contains(t, stdout.String(), "n3")
}

func TestRun_PlanRequiresPath(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := Run([]string{"aisengine", "run", "plan"}, &stdout, &stderr)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "--plan is required")
}
