// Package valueref defines the Resolver interface for the value-reference
// forms of spec §6 (`{lit}`, `{ref: path}`, `{cel: expr}`, `{object: …}`,
// `{array: …}`, `{detect: spec}`) and a literal/ref-only implementation
// usable without a CEL engine. A CEL-backed implementation lives in the
// celresolver subpackage. Grounded on kernel/celdp/evaluator.go's
// Evaluate(expr, input) shape, generalized from a single expression form to
// a tagged union of reference forms.
package valueref

import (
	"fmt"

	"github.com/owliabot/ais-sub001/pkg/fieldpath"
)

// Kind identifies which value-reference form a Ref uses.
type Kind string

const (
	KindLit    Kind = "lit"
	KindRef    Kind = "ref"
	KindCEL    Kind = "cel"
	KindObject Kind = "object"
	KindArray  Kind = "array"
	KindDetect Kind = "detect"
)

// Ref is a parsed value-reference expression.
type Ref struct {
	Kind   Kind
	Lit    any
	Path   string
	Expr   string
	Object map[string]Ref
	Array  []Ref
	Detect map[string]any
}

// ParseRef decodes a raw JSON-ish map into a Ref by inspecting which single
// key it carries.
func ParseRef(raw map[string]any) (Ref, error) {
	switch {
	case hasKey(raw, "lit"):
		return Ref{Kind: KindLit, Lit: raw["lit"]}, nil
	case hasKey(raw, "ref"):
		path, ok := raw["ref"].(string)
		if !ok {
			return Ref{}, fmt.Errorf("valueref: ref must be a string path")
		}
		return Ref{Kind: KindRef, Path: path}, nil
	case hasKey(raw, "cel"):
		expr, ok := raw["cel"].(string)
		if !ok {
			return Ref{}, fmt.Errorf("valueref: cel must be a string expression")
		}
		return Ref{Kind: KindCEL, Expr: expr}, nil
	case hasKey(raw, "object"):
		obj, ok := raw["object"].(map[string]any)
		if !ok {
			return Ref{}, fmt.Errorf("valueref: object must be a map")
		}
		parsed := make(map[string]Ref, len(obj))
		for k, v := range obj {
			nested, ok := v.(map[string]any)
			if !ok {
				return Ref{}, fmt.Errorf("valueref: object field %q is not a ref form", k)
			}
			ref, err := ParseRef(nested)
			if err != nil {
				return Ref{}, err
			}
			parsed[k] = ref
		}
		return Ref{Kind: KindObject, Object: parsed}, nil
	case hasKey(raw, "array"):
		arr, ok := raw["array"].([]any)
		if !ok {
			return Ref{}, fmt.Errorf("valueref: array must be a list")
		}
		parsed := make([]Ref, len(arr))
		for i, v := range arr {
			nested, ok := v.(map[string]any)
			if !ok {
				return Ref{}, fmt.Errorf("valueref: array element %d is not a ref form", i)
			}
			ref, err := ParseRef(nested)
			if err != nil {
				return Ref{}, err
			}
			parsed[i] = ref
		}
		return Ref{Kind: KindArray, Array: parsed}, nil
	case hasKey(raw, "detect"):
		spec, ok := raw["detect"].(map[string]any)
		if !ok {
			return Ref{}, fmt.Errorf("valueref: detect must be a map")
		}
		return Ref{Kind: KindDetect, Detect: spec}, nil
	default:
		return Ref{}, fmt.Errorf("valueref: no recognized form in %v", raw)
	}
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

// NeedDetect is returned by a Resolver when a {detect: ...} form cannot be
// resolved without further external input (e.g. a provider choice).
type NeedDetect struct {
	Spec map[string]any
}

func (e *NeedDetect) Error() string { return "valueref: needs detect resolution" }

// Options configures a resolution pass.
type Options struct {
	// Extra CEL-visible bindings beyond the runtime tree itself.
	Bindings map[string]any
}

// Resolver evaluates a parsed Ref against a runtime tree.
type Resolver interface {
	Resolve(ref Ref, runtime map[string]any, opts Options) (any, error)
}

// ResolvePath reads a field-path Path out of runtime. Shared by every
// Resolver implementation so {ref: path} behaves identically across them.
func ResolvePath(path fieldpath.Path, runtime map[string]any) (any, bool) {
	var cur any = runtime
	for _, seg := range path {
		if seg.IsIndex {
			arr, ok := cur.([]any)
			if !ok || seg.Index < 0 || seg.Index >= len(arr) {
				return nil, false
			}
			cur = arr[seg.Index]
			continue
		}
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := obj[seg.Key]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}
