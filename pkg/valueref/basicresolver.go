package valueref

import (
	"fmt"

	"github.com/owliabot/ais-sub001/pkg/fieldpath"
)

// BasicResolver resolves `{lit}`, `{ref}`, `{object}`, and `{array}` forms
// without requiring a CEL engine. It is useful for unit tests and for
// callers that never need `{cel: …}`; `{cel}` and `{detect}` both report an
// error rather than silently degrading.
type BasicResolver struct{}

func (BasicResolver) Resolve(ref Ref, runtime map[string]any, opts Options) (any, error) {
	switch ref.Kind {
	case KindLit:
		return ref.Lit, nil
	case KindRef:
		path, err := fieldpath.Parse(ref.Path)
		if err != nil {
			return nil, fmt.Errorf("valueref: ref path: %w", err)
		}
		v, ok := ResolvePath(path, runtime)
		if !ok {
			return nil, fmt.Errorf("valueref: unresolved ref %q", ref.Path)
		}
		return v, nil
	case KindObject:
		out := make(map[string]any, len(ref.Object))
		for k, nested := range ref.Object {
			v, err := (BasicResolver{}).Resolve(nested, runtime, opts)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case KindArray:
		out := make([]any, len(ref.Array))
		for i, nested := range ref.Array {
			v, err := (BasicResolver{}).Resolve(nested, runtime, opts)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case KindDetect:
		return nil, &NeedDetect{Spec: ref.Detect}
	default:
		return nil, fmt.Errorf("valueref: BasicResolver cannot evaluate kind %q", ref.Kind)
	}
}
