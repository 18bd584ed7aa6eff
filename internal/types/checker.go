package types

import (
	"fmt"

	"github.com/dolthub/swiss"
	"github.com/mna/do/internal/ast"
	"github.com/mna/do/internal/diag"
)

type stackEntry struct {
	Type TypeKind
	Span diag.Span
}

// Checker performs Hindley-Milner-style stack-effect inference over a
// sequence of untyped ops, reporting diagnostics as it goes rather than
// stopping at the first one.
type Checker struct {
	erasures []*TypeKind
	funcs    *swiss.Map[string, Effect]
	bindings []*swiss.Map[string, TypeKind] // scope stack, innermost last

	stack []stackEntry
	diag  *diag.List

	replMode bool
}

// New creates a Checker. replMode disables the file-mode residual-stack
// diagnostic and instead leaves the operand-effect type stack intact across
// calls to Check.
func New(d *diag.List, replMode bool) *Checker {
	return &Checker{
		funcs:    swiss.NewMap[string, Effect](uint32(8)),
		diag:     d,
		replMode: replMode,
	}
}

// Checkpoint is a restorable snapshot of checker state taken before checking
// one REPL line, so a failed line can be rolled back without affecting
// earlier successfully-checked lines.
type Checkpoint struct {
	stack        []stackEntry
	erasuresLen  int
}

// Snapshot captures the checker's current type stack and erasure-arena
// length.
func (c *Checker) Snapshot() Checkpoint {
	return Checkpoint{
		stack:       append([]stackEntry(nil), c.stack...),
		erasuresLen: len(c.erasures),
	}
}

// Restore rewinds the checker to a previously captured Checkpoint. Function
// definitions made since the snapshot are intentionally kept: only the
// residual operand-effect stack and freshly-allocated generics are undone.
func (c *Checker) Restore(cp Checkpoint) {
	c.stack = cp.stack
	if cp.erasuresLen < len(c.erasures) {
		c.erasures = c.erasures[:cp.erasuresLen]
	}
}

// SetDiag points the checker at a new diagnostic sink. The REPL uses this
// to give each line its own fresh *diag.List while reusing one Checker
// (and its persistent stack/erasures/function table) across the whole
// session.
func (c *Checker) SetDiag(d *diag.List) { c.diag = d }

func (c *Checker) fresh() TypeKind {
	c.erasures = append(c.erasures, nil)
	return NewGeneric(len(c.erasures) - 1)
}

// erase walks a generic's substitution chain to its ground form, or returns
// it unchanged if it is still free, and resolves list elements and block
// ins/outs the same way. A path that takes more substitution steps than the
// arena has entries can only come from a generic bound to a type containing
// itself; it is cut off there and the generic is returned as is.
// erase(erase(t)) == erase(t) for every type without such a binding.
func (c *Checker) erase(t TypeKind) TypeKind { return c.eraseHops(t, 0) }

func (c *Checker) eraseHops(t TypeKind, hops int) TypeKind {
	for t.Sort == Generic {
		bound := c.erasures[t.Index]
		if bound == nil || hops > len(c.erasures) {
			return t
		}
		t = *bound
		hops++
	}
	switch t.Sort {
	case List:
		return NewList(c.eraseHops(*t.Elem, hops))
	case Block:
		b := NewBlock(append([]TypeKind(nil), t.Ins...), append([]TypeKind(nil), t.Outs...))
		for i := range b.Ins {
			b.Ins[i] = c.eraseHops(b.Ins[i], hops)
		}
		for i := range b.Outs {
			b.Outs[i] = c.eraseHops(b.Outs[i], hops)
		}
		return b
	}
	return t
}

func (c *Checker) bind(index int, t TypeKind) { c.erasures[index] = &t }

// unify makes actual conform to expected, binding free generics as needed.
// It reports a diagnostic and returns false on irreconcilable mismatch.
func (c *Checker) unify(actual, expected TypeKind, span diag.Span) bool {
	a := c.erase(actual)
	e := c.erase(expected)

	switch {
	case e.Sort == Generic:
		c.bind(e.Index, a)
		return true
	case a.Sort == Generic:
		c.bind(a.Index, e)
		return true
	case a.Sort == Int && e.Sort == Int:
		return true
	case a.Sort == Bool && e.Sort == Bool:
		return true
	case a.Sort == List && e.Sort == List:
		return c.unify(*a.Elem, *e.Elem, span)
	case a.Sort == Block && e.Sort == Block:
		if len(a.Ins) != len(e.Ins) || len(a.Outs) != len(e.Outs) {
			c.diag.Add(diag.Type, fmt.Sprintf("block arity mismatch: expected %s got %s", e, a), span)
			return false
		}
		ok := true
		for i := range a.Ins {
			if !c.unify(a.Ins[i], e.Ins[i], span) {
				ok = false
			}
		}
		for i := range a.Outs {
			if !c.unify(a.Outs[i], e.Outs[i], span) {
				ok = false
			}
		}
		return ok
	default:
		c.diag.Add(diag.Type, fmt.Sprintf("type mismatch: expected %s got %s", e, a), span)
		return false
	}
}

// popFn/pushFn let checkOp work identically whether it is consuming the
// real top-level type stack or a block's local virtual stack.
type popFn func(span diag.Span) TypeKind
type pushFn func(t TypeKind, span diag.Span)

// Check type-checks a top-level sequence of ops (a whole program, or one
// REPL line) against the checker's persistent state and returns the typed
// form. In file mode, a non-empty residual stack at the end produces one
// "unused value" diagnostic per leftover entry.
func (c *Checker) Check(ops []ast.Op, file bool) []TypedOp {
	pop := func(span diag.Span) TypeKind {
		if len(c.stack) > 0 {
			e := c.stack[len(c.stack)-1]
			c.stack = c.stack[:len(c.stack)-1]
			return e.Type
		}
		c.diag.Add(diag.Type, "stack underflow", span)
		return c.fresh()
	}
	push := func(t TypeKind, span diag.Span) {
		c.stack = append(c.stack, stackEntry{Type: t, Span: span})
	}

	typed := make([]TypedOp, 0, len(ops))
	for _, op := range ops {
		typed = append(typed, c.checkOp(op, pop, push))
	}

	if file && !c.replMode {
		for _, e := range c.stack {
			c.diag.AddHint(diag.Type, "unused value "+c.erase(e.Type).String(), e.Span, "consume it with print or pop")
		}
		c.stack = nil
	}
	return typed
}

// checkBlockBody type-checks a quotation body in isolation, returning its
// ground effect and typed form. Inputs it cannot satisfy from its own
// locally-produced values become fresh generics prepended to its inferred
// Ins, so the rightmost input is the one on top of the stack when the block
// runs (it becomes polymorphic in them). The enclosing type stack is not
// touched here; callers that apply the block's effect pop its Ins from it.
func (c *Checker) checkBlockBody(body []ast.Op) (Effect, []TypedOp) {
	var ins, outs []TypeKind
	var typed []TypedOp

	pop := func(span diag.Span) TypeKind {
		if len(outs) > 0 {
			t := outs[len(outs)-1]
			outs = outs[:len(outs)-1]
			return t
		}
		g := c.fresh()
		ins = append([]TypeKind{g}, ins...)
		return g
	}
	push := func(t TypeKind, _ diag.Span) {
		outs = append(outs, t)
	}

	for _, op := range body {
		typed = append(typed, c.checkOp(op, pop, push))
	}

	for i := range ins {
		ins[i] = c.erase(ins[i])
	}
	for i := range outs {
		outs[i] = c.erase(outs[i])
	}
	return Effect{Ins: ins, Outs: outs}, typed
}

func (c *Checker) lookupBinding(name string) (TypeKind, bool) {
	for i := len(c.bindings) - 1; i >= 0; i-- {
		if t, ok := c.bindings[i].Get(name); ok {
			return t, true
		}
	}
	return TypeKind{}, false
}

func binary(ins, outs []TypeKind) Effect { return Effect{Ins: ins, Outs: outs} }

// checkOp dispatches on op.Kind, consuming/producing through pop/push
// (which may be either the real top-level stack or a block's virtual one)
// and returns the fully ground TypedOp.
func (c *Checker) checkOp(op ast.Op, pop popFn, push pushFn) TypedOp {
	switch op.Kind {
	case ast.PushInt:
		push(TInt, op.Span)
		return TypedOp{Kind: op.Kind, Span: op.Span, IntVal: op.IntVal, Outs: []TypeKind{TInt}}

	case ast.PushBool:
		push(TBool, op.Span)
		return TypedOp{Kind: op.Kind, Span: op.Span, BoolVal: op.BoolVal, Outs: []TypeKind{TBool}}

	case ast.PushList:
		return c.checkPushList(op, push)

	case ast.PushBlock:
		eff, typedBody := c.checkBlockBody(op.Body)
		bt := NewBlock(eff.Ins, eff.Outs)
		push(bt, op.Span)
		return TypedOp{Kind: op.Kind, Span: op.Span, Body: typedBody, Outs: []TypeKind{bt}}

	case ast.Add, ast.Sub, ast.Mul, ast.Div, ast.Mod:
		return c.checkPrimitive(op, pop, push, binary([]TypeKind{TInt, TInt}, []TypeKind{TInt}))

	case ast.Lt, ast.Le, ast.Gt, ast.Ge:
		return c.checkPrimitive(op, pop, push, binary([]TypeKind{TInt, TInt}, []TypeKind{TBool}))

	case ast.Eq:
		a := c.fresh()
		return c.checkPrimitive(op, pop, push, binary([]TypeKind{a, a}, []TypeKind{TBool}))

	case ast.Not:
		return c.checkPrimitive(op, pop, push, binary([]TypeKind{TBool}, []TypeKind{TBool}))

	case ast.And, ast.Or:
		return c.checkPrimitive(op, pop, push, binary([]TypeKind{TBool, TBool}, []TypeKind{TBool}))

	case ast.Dup:
		a := c.fresh()
		return c.checkPrimitive(op, pop, push, binary([]TypeKind{a}, []TypeKind{a, a}))

	case ast.Swap:
		a, b := c.fresh(), c.fresh()
		return c.checkPrimitive(op, pop, push, binary([]TypeKind{a, b}, []TypeKind{b, a}))

	case ast.Over:
		a, b := c.fresh(), c.fresh()
		return c.checkPrimitive(op, pop, push, binary([]TypeKind{a, b}, []TypeKind{a, b, a}))

	case ast.Rot:
		a, b, g := c.fresh(), c.fresh(), c.fresh()
		return c.checkPrimitive(op, pop, push, binary([]TypeKind{a, b, g}, []TypeKind{b, g, a}))

	case ast.Pop:
		a := c.fresh()
		return c.checkPrimitive(op, pop, push, binary([]TypeKind{a}, nil))

	case ast.Identity:
		a := c.fresh()
		return c.checkPrimitive(op, pop, push, binary([]TypeKind{a}, []TypeKind{a}))

	case ast.Print:
		a := c.fresh()
		in := c.popTyped(pop, a, op.Span)
		return TypedOp{Kind: op.Kind, Span: op.Span, Ins: []TypeKind{c.erase(in)}}

	case ast.Dump:
		return TypedOp{Kind: op.Kind, Span: op.Span}

	case ast.Len:
		a := c.fresh()
		return c.checkPrimitive(op, pop, push, binary([]TypeKind{NewList(a)}, []TypeKind{TInt}))

	case ast.Concat:
		a := c.fresh()
		l := NewList(a)
		return c.checkPrimitive(op, pop, push, binary([]TypeKind{l, l}, []TypeKind{l}))

	case ast.Push:
		a := c.fresh()
		return c.checkPrimitive(op, pop, push, binary([]TypeKind{NewList(a), a}, []TypeKind{NewList(a)}))

	case ast.Head:
		a := c.fresh()
		return c.checkPrimitive(op, pop, push, binary([]TypeKind{NewList(a)}, []TypeKind{a}))

	case ast.Tail:
		a := c.fresh()
		l := NewList(a)
		return c.checkPrimitive(op, pop, push, binary([]TypeKind{l}, []TypeKind{l}))

	case ast.Do:
		return c.checkDo(op, pop, push)

	case ast.Map:
		return c.checkMap(op, pop, push)

	case ast.Filter:
		return c.checkFilter(op, pop, push)

	case ast.Fold:
		return c.checkFold(op, pop, push)

	case ast.Foreach:
		return c.checkForeach(op, pop, push)

	case ast.Fn:
		return c.checkFn(op)

	case ast.Ident:
		return c.checkIdent(op, pop, push)

	case ast.If:
		return c.checkIf(op, pop, push)

	case ast.IfElse:
		return c.checkIfElse(op, pop, push)

	case ast.Binding:
		return c.checkBinding(op, pop, push)
	}

	panic(fmt.Sprintf("types: unhandled op kind %v", op.Kind))
}

// checkPrimitive pops eff.Ins in reverse (rightmost/topmost first), unifies
// each against the actual popped type, then pushes eff.Outs in order.
func (c *Checker) checkPrimitive(op ast.Op, pop popFn, push pushFn, eff Effect) TypedOp {
	for i := len(eff.Ins) - 1; i >= 0; i-- {
		actual := pop(op.Span)
		c.unify(actual, eff.Ins[i], op.Span)
	}
	for _, o := range eff.Outs {
		push(o, op.Span)
	}
	ins := make([]TypeKind, len(eff.Ins))
	for i, t := range eff.Ins {
		ins[i] = c.erase(t)
	}
	outs := make([]TypeKind, len(eff.Outs))
	for i, t := range eff.Outs {
		outs[i] = c.erase(t)
	}
	return TypedOp{Kind: op.Kind, Span: op.Span, Ins: ins, Outs: outs}
}

func (c *Checker) popTyped(pop popFn, expected TypeKind, span diag.Span) TypeKind {
	actual := pop(span)
	c.unify(actual, expected, span)
	return actual
}

func (c *Checker) checkPushList(op ast.Op, push pushFn) TypedOp {
	elem := c.fresh()
	typedElems := make([]TypedOp, 0, len(op.Elems))
	for _, e := range op.Elems {
		var tmpOuts []TypeKind
		localPop := func(span diag.Span) TypeKind {
			c.diag.Add(diag.Type, "malformed list element: elements must take no inputs", span)
			return c.fresh()
		}
		localPush := func(t TypeKind, _ diag.Span) { tmpOuts = append(tmpOuts, t) }
		te := c.checkOp(e, localPop, localPush)
		if len(tmpOuts) != 1 {
			c.diag.Add(diag.Type, "malformed list element signature: must produce exactly one value", e.Span)
		} else {
			c.unify(tmpOuts[0], elem, e.Span)
		}
		typedElems = append(typedElems, te)
	}
	lt := NewList(c.erase(elem))
	push(lt, op.Span)
	return TypedOp{Kind: op.Kind, Span: op.Span, Elems: typedElems, Outs: []TypeKind{lt}}
}

// checkDo types the 'do' built-in (CallDynamic): it pops a block and invokes
// it in place, so its own effect is whatever the invoked block's effect is.
// The spec's declared [Block[ -- ] -- ] form covers only niladic blocks; a
// dynamically-invoked block with its own ins/outs is supported here as a
// direct generalization (see DESIGN.md's notes on 'do').
func (c *Checker) checkDo(op ast.Op, pop popFn, push pushFn) TypedOp {
	actual := pop(op.Span)
	resolved := c.erase(actual)
	var eff Effect
	if resolved.Sort == Block {
		eff = Effect{Ins: resolved.Ins, Outs: resolved.Outs}
	} else {
		c.unify(actual, NewBlock(nil, nil), op.Span)
	}
	for i := len(eff.Ins) - 1; i >= 0; i-- {
		t := pop(op.Span)
		c.unify(t, eff.Ins[i], op.Span)
	}
	for _, o := range eff.Outs {
		push(o, op.Span)
	}
	return TypedOp{Kind: op.Kind, Span: op.Span, Ins: append([]TypeKind{resolved}, eff.Ins...), Outs: eff.Outs}
}

func (c *Checker) checkMap(op ast.Op, pop popFn, push pushFn) TypedOp {
	elem, result := c.fresh(), c.fresh()
	blockEff := Effect{Ins: []TypeKind{elem}, Outs: []TypeKind{result}}
	blockActual := pop(op.Span)
	c.unify(blockActual, NewBlock(blockEff.Ins, blockEff.Outs), op.Span)
	listActual := pop(op.Span)
	c.unify(listActual, NewList(elem), op.Span)
	outList := NewList(c.erase(result))
	push(outList, op.Span)
	return TypedOp{
		Kind: op.Kind, Span: op.Span,
		Ins:  []TypeKind{NewList(c.erase(elem)), NewBlock([]TypeKind{c.erase(elem)}, []TypeKind{c.erase(result)})},
		Outs: []TypeKind{outList},
	}
}

func (c *Checker) checkFilter(op ast.Op, pop popFn, push pushFn) TypedOp {
	elem := c.fresh()
	blockActual := pop(op.Span)
	c.unify(blockActual, NewBlock([]TypeKind{elem}, []TypeKind{TBool}), op.Span)
	listActual := pop(op.Span)
	c.unify(listActual, NewList(elem), op.Span)
	outList := NewList(c.erase(elem))
	push(outList, op.Span)
	return TypedOp{
		Kind: op.Kind, Span: op.Span,
		Ins:  []TypeKind{outList, NewBlock([]TypeKind{c.erase(elem)}, []TypeKind{TBool})},
		Outs: []TypeKind{outList},
	}
}

func (c *Checker) checkFold(op ast.Op, pop popFn, push pushFn) TypedOp {
	elem, acc := c.fresh(), c.fresh()
	blockActual := pop(op.Span)
	c.unify(blockActual, NewBlock([]TypeKind{elem, acc}, []TypeKind{acc}), op.Span)
	accActual := pop(op.Span)
	c.unify(accActual, acc, op.Span)
	listActual := pop(op.Span)
	c.unify(listActual, NewList(elem), op.Span)
	result := c.erase(acc)
	push(result, op.Span)
	return TypedOp{
		Kind: op.Kind, Span: op.Span,
		Ins:  []TypeKind{NewList(c.erase(elem)), result, NewBlock([]TypeKind{c.erase(elem), result}, []TypeKind{result})},
		Outs: []TypeKind{result},
	}
}

func (c *Checker) checkForeach(op ast.Op, pop popFn, push pushFn) TypedOp {
	elem := c.fresh()
	blockActual := pop(op.Span)
	c.unify(blockActual, NewBlock([]TypeKind{elem}, nil), op.Span)
	listActual := pop(op.Span)
	c.unify(listActual, NewList(elem), op.Span)
	return TypedOp{
		Kind: op.Kind, Span: op.Span,
		Ins: []TypeKind{NewList(c.erase(elem)), NewBlock([]TypeKind{c.erase(elem)}, nil)},
	}
}

func (c *Checker) checkFn(op ast.Op) TypedOp {
	eff, typedBody := c.checkBlockBody(op.Body)
	c.funcs.Put(op.Name, eff)
	return TypedOp{Kind: op.Kind, Span: op.Span, Name: op.Name, Body: typedBody}
}

func (c *Checker) checkIdent(op ast.Op, pop popFn, push pushFn) TypedOp {
	if t, ok := c.lookupBinding(op.Name); ok {
		push(t, op.Span)
		return TypedOp{Kind: op.Kind, Span: op.Span, Name: op.Name, Outs: []TypeKind{c.erase(t)}}
	}
	if eff, ok := c.funcs.Get(op.Name); ok {
		for i := len(eff.Ins) - 1; i >= 0; i-- {
			actual := pop(op.Span)
			c.unify(actual, eff.Ins[i], op.Span)
		}
		for _, o := range eff.Outs {
			push(o, op.Span)
		}
		return TypedOp{Kind: op.Kind, Span: op.Span, Name: op.Name, Ins: eff.Ins, Outs: eff.Outs}
	}
	c.diag.Add(diag.Type, "unknown identifier '"+op.Name+"'", op.Span)
	return TypedOp{Kind: op.Kind, Span: op.Span, Name: op.Name}
}

// symmetrical reports whether ins and outs describe the same ground types
// in the same order, as required of if/else branches.
func symmetrical(ins, outs []TypeKind) bool {
	if len(ins) != len(outs) {
		return false
	}
	for i := range ins {
		if ins[i].String() != outs[i].String() {
			return false
		}
	}
	return true
}

func (c *Checker) checkIf(op ast.Op, pop popFn, push pushFn) TypedOp {
	cond := pop(op.Span)
	c.unify(cond, TBool, op.Span)

	eff, typedBody := c.checkBlockBody(op.Body)
	if !symmetrical(eff.Ins, eff.Outs) {
		c.diag.Add(diag.Type, fmt.Sprintf("if branch must be symmetrical: ins %v outs %v", eff.Ins, eff.Outs), op.Span)
	}
	for i := len(eff.Ins) - 1; i >= 0; i-- {
		actual := pop(op.Span)
		c.unify(actual, eff.Ins[i], op.Span)
	}
	for _, o := range eff.Outs {
		push(o, op.Span)
	}
	return TypedOp{Kind: op.Kind, Span: op.Span, Body: typedBody, Ins: append([]TypeKind{TBool}, eff.Ins...), Outs: eff.Outs}
}

func (c *Checker) checkIfElse(op ast.Op, pop popFn, push pushFn) TypedOp {
	cond := pop(op.Span)
	c.unify(cond, TBool, op.Span)

	thenEff, typedThen := c.checkBlockBody(op.Body)
	elseEff, typedElse := c.checkBlockBody(op.Else)

	if !symmetrical(thenEff.Ins, thenEff.Outs) {
		c.diag.Add(diag.Type, "if-branch must be symmetrical", op.Span)
	}
	if !symmetrical(elseEff.Ins, elseEff.Outs) {
		c.diag.Add(diag.Type, "else-branch must be symmetrical", op.Span)
	}
	if !sameTypes(thenEff.Ins, elseEff.Ins) || !sameTypes(thenEff.Outs, elseEff.Outs) {
		c.diag.Add(diag.Type, "if/else branches disagree on effect", op.Span)
	}

	for i := len(thenEff.Ins) - 1; i >= 0; i-- {
		actual := pop(op.Span)
		c.unify(actual, thenEff.Ins[i], op.Span)
	}
	for _, o := range thenEff.Outs {
		push(o, op.Span)
	}
	return TypedOp{
		Kind: op.Kind, Span: op.Span,
		Body: typedThen, Else: typedElse,
		Ins:  append([]TypeKind{TBool}, thenEff.Ins...),
		Outs: thenEff.Outs,
	}
}

func sameTypes(a, b []TypeKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].String() != b[i].String() {
			return false
		}
	}
	return true
}

func (c *Checker) checkBinding(op ast.Op, pop popFn, push pushFn) TypedOp {
	scope := swiss.NewMap[string, TypeKind](uint32(len(op.Names)))
	// names are written in the order they'll be bound; each pops one type
	// from the stack in reverse declared order (rightmost name binds the
	// topmost stack value).
	bound := make([]TypeKind, len(op.Names))
	for i := len(op.Names) - 1; i >= 0; i-- {
		bound[i] = pop(op.Span)
		scope.Put(op.Names[i], c.erase(bound[i]))
	}
	c.bindings = append(c.bindings, scope)

	eff, typedBody := c.checkBlockBody(op.Body)

	c.bindings = c.bindings[:len(c.bindings)-1]
	for i := len(eff.Ins) - 1; i >= 0; i-- {
		actual := pop(op.Span)
		c.unify(actual, eff.Ins[i], op.Span)
	}
	for _, o := range eff.Outs {
		push(o, op.Span)
	}
	return TypedOp{
		Kind: op.Kind, Span: op.Span, Names: op.Names,
		Body: typedBody,
		Ins:  eff.Ins,
		Outs: eff.Outs,
	}
}
