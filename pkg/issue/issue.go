// Package issue defines the structured diagnostic record shared by plan
// validation, scheduler/gate rejections, and patch failures.
package issue

import "sort"

// Severity classifies how serious an Issue is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// severityRank gives severity a total order for stable sorting: errors
// before warnings before info.
var severityRank = map[Severity]int{
	SeverityError:   0,
	SeverityWarning: 1,
	SeverityInfo:    2,
}

// Issue is a single structured diagnostic record.
type Issue struct {
	Kind       string   `json:"kind"`
	Severity   Severity `json:"severity"`
	NodeID     string   `json:"node_id,omitempty"`
	FieldPath  string   `json:"field_path"`
	Message    string   `json:"message"`
	Reference  string   `json:"reference,omitempty"`
	Related    []string `json:"related,omitempty"`
}

// SortStable orders issues by (severity, kind, field_path, message, node_id),
// the stable ordering key required by spec §3.
func SortStable(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if ra, rb := severityRank[a.Severity], severityRank[b.Severity]; ra != rb {
			return ra < rb
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.FieldPath != b.FieldPath {
			return a.FieldPath < b.FieldPath
		}
		if a.Message != b.Message {
			return a.Message < b.Message
		}
		return a.NodeID < b.NodeID
	})
}

// HasErrors reports whether any issue in the slice has Severity error.
func HasErrors(issues []Issue) bool {
	for _, is := range issues {
		if is.Severity == SeverityError {
			return true
		}
	}
	return false
}
