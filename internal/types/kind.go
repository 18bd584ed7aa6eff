// Package types implements the stack-effect type checker: Hindley-Milner
// style unification over an arena of generic type variables, closed-sum
// types, and inference for blocks, lists, if/else and bindings.
package types

import (
	"fmt"
	"strings"
)

// Sort is the closed sum of type heads.
type Sort int

const (
	Bool Sort = iota
	Int
	List
	Block
	Generic
)

// TypeKind is a single type: a concrete head (Bool, Int), a List wrapping an
// element type, a Block carrying its own ins/outs, or a Generic unification
// variable identified by an arena index.
type TypeKind struct {
	Sort  Sort
	Elem  *TypeKind  // List
	Ins   []TypeKind // Block
	Outs  []TypeKind // Block
	Index int        // Generic
}

func NewList(elem TypeKind) TypeKind        { return TypeKind{Sort: List, Elem: &elem} }
func NewBlock(ins, outs []TypeKind) TypeKind { return TypeKind{Sort: Block, Ins: ins, Outs: outs} }
func NewGeneric(index int) TypeKind          { return TypeKind{Sort: Generic, Index: index} }

var (
	TBool = TypeKind{Sort: Bool}
	TInt  = TypeKind{Sort: Int}
)

func (t TypeKind) String() string {
	switch t.Sort {
	case Bool:
		return "Bool"
	case Int:
		return "Int"
	case List:
		return "List(" + t.Elem.String() + ")"
	case Block:
		ins := make([]string, len(t.Ins))
		for i, x := range t.Ins {
			ins[i] = x.String()
		}
		outs := make([]string, len(t.Outs))
		for i, x := range t.Outs {
			outs[i] = x.String()
		}
		return fmt.Sprintf("Block[%s -- %s]", strings.Join(ins, " "), strings.Join(outs, " "))
	case Generic:
		return fmt.Sprintf("'%d", t.Index)
	}
	return "?"
}

// Effect is a stack effect: the ordered input types (rightmost is
// topmost-on-stack) and the ordered output types it leaves behind.
type Effect struct {
	Ins  []TypeKind
	Outs []TypeKind
}

func (e Effect) String() string {
	b := NewBlock(e.Ins, e.Outs)
	return b.String()
}
