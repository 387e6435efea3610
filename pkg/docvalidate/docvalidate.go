// Package docvalidate defines the plan/workflow document validator
// interface (spec §1/§6's "YAML/JSON document parsing and JSON-Schema
// validation" collaborator) plus, in the jsonschemaval subpackage, a
// default santhosh-tekuri/jsonschema-backed implementation. Grounded on
// firewall.PolicyFirewall's schema-compile-then-validate shape
// (pkg/firewall/firewall.go).
package docvalidate

import "github.com/owliabot/ais-sub001/pkg/issue"

// Validator checks a decoded document (already YAML/JSON-unmarshaled into
// a generic tree) against a named schema and returns structured issues
// rather than a bare error, so multiple violations can be reported at
// once (spec §7's "diagnostics collected in bulk" propagation rule).
type Validator interface {
	// Validate checks doc against the schema registered under schemaTag.
	// A nil error with no issues (a nil or empty slice) means the document
	// is valid.
	Validate(schemaTag string, doc any) ([]issue.Issue, error)
}
