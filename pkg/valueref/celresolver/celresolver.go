// Package celresolver is the default CEL-backed valueref.Resolver,
// evaluating `{cel: expr}` expressions against the runtime tree bound as
// the `runtime` CEL variable, plus any caller-supplied Options.Bindings
// merged in as top-level CEL variables. Grounded directly on
// kernel/celdp/evaluator.go's NewEnv/Compile/Program/Eval pipeline and its
// wrapped-runtime-error shape.
package celresolver

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/owliabot/ais-sub001/pkg/valueref"
)

// CELError mirrors the teacher's CELError shape: a stable error code plus a
// human-readable message, surfaced as ValueRefEvalError per spec §7.
type CELError struct {
	ErrorCode string
	Message   string
}

func (e *CELError) Error() string {
	return fmt.Sprintf("valueref: %s: %s", e.ErrorCode, e.Message)
}

// Resolver evaluates all value-reference forms, delegating non-CEL forms to
// an embedded valueref.BasicResolver and handling {cel: expr} itself.
type Resolver struct {
	base valueref.BasicResolver
}

// New constructs a Resolver. No cel.Env is precompiled here: each Resolve
// call builds an env scoped to that call's bindings, since the set of
// extra bindings can vary node to node.
func New() *Resolver {
	return &Resolver{}
}

func (r *Resolver) Resolve(ref valueref.Ref, runtime map[string]any, opts valueref.Options) (any, error) {
	if ref.Kind != valueref.KindCEL {
		return r.resolveNonCEL(ref, runtime, opts)
	}

	vars := []cel.EnvOption{
		cel.Variable("runtime", cel.DynType),
	}
	input := map[string]any{"runtime": runtime}
	for k, v := range opts.Bindings {
		vars = append(vars, cel.Variable(k, cel.DynType))
		input[k] = v
	}

	env, err := cel.NewEnv(vars...)
	if err != nil {
		return nil, &CELError{ErrorCode: "cel_env_error", Message: err.Error()}
	}

	ast, issues := env.Compile(ref.Expr)
	if issues != nil && issues.Err() != nil {
		return nil, &CELError{ErrorCode: "cel_compile_error", Message: issues.Err().Error()}
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, &CELError{ErrorCode: "cel_program_error", Message: err.Error()}
	}

	val, _, err := prg.Eval(input)
	if err != nil {
		return nil, &CELError{ErrorCode: "cel_runtime_error", Message: err.Error()}
	}

	return val.Value(), nil
}

// resolveNonCEL delegates {lit}, {ref}, {object}, {array}, {detect} forms
// to BasicResolver, but recurses through this Resolver for any nested
// object/array members so a {cel: …} can appear inside an {object: …}.
func (r *Resolver) resolveNonCEL(ref valueref.Ref, runtime map[string]any, opts valueref.Options) (any, error) {
	switch ref.Kind {
	case valueref.KindObject:
		out := make(map[string]any, len(ref.Object))
		for k, nested := range ref.Object {
			v, err := r.Resolve(nested, runtime, opts)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case valueref.KindArray:
		out := make([]any, len(ref.Array))
		for i, nested := range ref.Array {
			v, err := r.Resolve(nested, runtime, opts)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return r.base.Resolve(ref, runtime, opts)
	}
}
