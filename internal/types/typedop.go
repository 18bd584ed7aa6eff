package types

import (
	"github.com/mna/do/internal/ast"
	"github.com/mna/do/internal/diag"
)

// TypedOp mirrors ast.Op but carries the ground (fully-erased) stack effect
// the checker inferred for it, plus recursively typed children.
type TypedOp struct {
	Kind ast.Kind
	Span diag.Span

	IntVal  int64
	BoolVal bool
	Name    string
	Names   []string

	Elems []TypedOp
	Body  []TypedOp
	Else  []TypedOp

	Ins  []TypeKind
	Outs []TypeKind
}
