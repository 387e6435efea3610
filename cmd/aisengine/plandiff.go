package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/owliabot/ais-sub001/pkg/planmodel"
)

func planDiffCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("plan diff", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var beforePath, afterPath, format string
	fs.StringVar(&beforePath, "before", "", "Path to the before plan document (REQUIRED)")
	fs.StringVar(&afterPath, "after", "", "Path to the after plan document (REQUIRED)")
	fs.StringVar(&format, "format", "text", "Output format: text or json")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if beforePath == "" || afterPath == "" {
		fmt.Fprintln(stderr, "Error: --before and --after are required")
		return 1
	}

	before, err := loadPlan(beforePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	after, err := loadPlan(afterPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	diff := planmodel.DiffPlans(before, after)

	if format == "json" {
		b, _ := json.MarshalIndent(diff, "", "  ")
		fmt.Fprintln(stdout, string(b))
		return 0
	}

	fmt.Fprintf(stdout, "added:   %v\n", diff.AddedNodeIDs)
	fmt.Fprintf(stdout, "removed: %v\n", diff.RemovedNodeIDs)
	fmt.Fprintf(stdout, "changed: %v\n", diff.ChangedNodeIDs)
	return 0
}
