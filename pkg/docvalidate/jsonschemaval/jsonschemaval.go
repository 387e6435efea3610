// Package jsonschemaval is the default docvalidate.Validator, backed by
// santhosh-tekuri/jsonschema/v5, compiled once per schema tag and reused
// across validations. Grounded on firewall.PolicyFirewall.AllowTool's
// compile-and-cache pattern (pkg/firewall/firewall.go).
package jsonschemaval

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/owliabot/ais-sub001/pkg/issue"
)

// Validator compiles and caches JSON schemas by tag.
type Validator struct {
	compiled map[string]*jsonschema.Schema
}

// New returns an empty Validator. Register schemas with RegisterSchema
// before calling Validate.
func New() *Validator {
	return &Validator{compiled: make(map[string]*jsonschema.Schema)}
}

// RegisterSchema compiles schemaJSON (a JSON Schema document, draft 2020-12)
// and registers it under schemaTag for later Validate calls.
func (v *Validator) RegisterSchema(schemaTag, schemaJSON string) error {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := "https://ais-engine.local/schemas/" + strings.ReplaceAll(schemaTag, "/", "-") + ".json"
	if err := c.AddResource(url, strings.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("jsonschemaval: load %s: %w", schemaTag, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return fmt.Errorf("jsonschemaval: compile %s: %w", schemaTag, err)
	}
	v.compiled[schemaTag] = compiled
	return nil
}

// Validate checks doc against the schema registered under schemaTag,
// converting jsonschema's ValidationError tree into structured Issues.
func (v *Validator) Validate(schemaTag string, doc any) ([]issue.Issue, error) {
	schema, ok := v.compiled[schemaTag]
	if !ok {
		return nil, fmt.Errorf("jsonschemaval: no schema registered for tag %q", schemaTag)
	}

	// jsonschema validates against the generic-decoded (map/slice/etc) form;
	// round-trip through JSON so callers can pass typed structs too.
	raw, err := roundTrip(doc)
	if err != nil {
		return nil, fmt.Errorf("jsonschemaval: encode document: %w", err)
	}

	err = schema.Validate(raw)
	if err == nil {
		return nil, nil
	}

	valErr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil, fmt.Errorf("jsonschemaval: %w", err)
	}

	var issues []issue.Issue
	flatten(valErr, &issues)
	issue.SortStable(issues)
	return issues, nil
}

func roundTrip(doc any) (any, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// flatten walks a jsonschema.ValidationError tree (which nests a Causes
// slice per schema keyword) into a flat list of Issues.
func flatten(err *jsonschema.ValidationError, out *[]issue.Issue) {
	if len(err.Causes) == 0 {
		*out = append(*out, issue.Issue{
			Kind:      "SchemaError",
			Severity:  issue.SeverityError,
			FieldPath: err.InstanceLocation,
			Message:   err.Message,
			Reference: err.KeywordLocation,
		})
		return
	}
	for _, cause := range err.Causes {
		flatten(cause, out)
	}
}
