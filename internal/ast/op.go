// Package ast defines the untyped operation tree produced by the parser and
// consumed, once, by the type checker.
package ast

import "github.com/mna/do/internal/diag"

// Kind tags the variant of an Op.
type Kind int

const (
	PushInt Kind = iota
	PushBool
	PushList
	PushBlock

	Add
	Sub
	Mul
	Div
	Mod

	Lt
	Le
	Gt
	Ge
	Eq

	Not
	And
	Or

	Dup
	Swap
	Over
	Rot
	Pop

	Len
	Concat
	Push
	Head
	Tail

	Print
	Identity // '.'
	Dump     // ???

	Do
	Map
	Filter
	Fold
	Foreach

	Fn
	Ident
	If
	IfElse
	Binding
)

var kindNames = [...]string{
	PushInt: "PushInt", PushBool: "PushBool", PushList: "PushList", PushBlock: "PushBlock",
	Add: "Add", Sub: "Sub", Mul: "Mul", Div: "Div", Mod: "Mod",
	Lt: "Lt", Le: "Le", Gt: "Gt", Ge: "Ge", Eq: "Eq",
	Not: "Not", And: "And", Or: "Or",
	Dup: "Dup", Swap: "Swap", Over: "Over", Rot: "Rot", Pop: "Pop",
	Len: "Len", Concat: "Concat", Push: "Push", Head: "Head", Tail: "Tail",
	Print: "Print", Identity: "Identity", Dump: "Dump",
	Do: "Do", Map: "Map", Filter: "Filter", Fold: "Fold", Foreach: "Foreach",
	Fn: "Fn", Ident: "Ident", If: "If", IfElse: "IfElse", Binding: "Binding",
}

func (k Kind) String() string { return kindNames[k] }

// Op is a single untyped operation. Which fields are meaningful depends on
// Kind: IntVal for PushInt, BoolVal for PushBool, Elems for PushList,
// Body for PushBlock/Fn/If-then-branch/Binding, Else for IfElse, Name for
// Fn/Ident, Names for Binding.
type Op struct {
	Kind Kind
	Span diag.Span

	IntVal  int64
	BoolVal bool
	Name    string
	Names   []string

	Elems []Op
	Body  []Op
	Else  []Op
}
