package celresolver

import (
	"testing"

	"github.com/owliabot/ais-sub001/pkg/valueref"
)

func TestResolver_EvaluatesArithmeticOverRuntime(t *testing.T) {
	r := New()
	runtime := map[string]any{"inputs": map[string]any{"a": 2, "b": 3}}

	out, err := r.Resolve(valueref.Ref{Kind: valueref.KindCEL, Expr: "runtime.inputs.a + runtime.inputs.b"}, runtime, valueref.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if out.(int64) != 5 {
		t.Fatalf("expected 5, got %v (%T)", out, out)
	}
}

func TestResolver_BindingsAreVisible(t *testing.T) {
	r := New()
	out, err := r.Resolve(valueref.Ref{Kind: valueref.KindCEL, Expr: "slippage_bps < 100"}, map[string]any{}, valueref.Options{
		Bindings: map[string]any{"slippage_bps": int64(50)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.(bool) != true {
		t.Fatalf("expected true, got %v", out)
	}
}

func TestResolver_CompileErrorWrapsCELError(t *testing.T) {
	r := New()
	_, err := r.Resolve(valueref.Ref{Kind: valueref.KindCEL, Expr: "runtime..."}, map[string]any{}, valueref.Options{})
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if _, ok := err.(*CELError); !ok {
		t.Fatalf("expected *CELError, got %T", err)
	}
}

func TestResolver_DelegatesNonCELForms(t *testing.T) {
	r := New()
	runtime := map[string]any{"ctx": map[string]any{"chain_id": "1"}}
	out, err := r.Resolve(valueref.Ref{Kind: valueref.KindRef, Path: "ctx.chain_id"}, runtime, valueref.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if out != "1" {
		t.Fatalf("expected 1, got %v", out)
	}
}

func TestResolver_ObjectCanNestCELValues(t *testing.T) {
	r := New()
	runtime := map[string]any{"inputs": map[string]any{"amount": int64(10)}}
	ref := valueref.Ref{Kind: valueref.KindObject, Object: map[string]valueref.Ref{
		"doubled": {Kind: valueref.KindCEL, Expr: "runtime.inputs.amount * 2"},
	}}
	out, err := r.Resolve(ref, runtime, valueref.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if out.(map[string]any)["doubled"].(int64) != 20 {
		t.Fatalf("unexpected: %+v", out)
	}
}
