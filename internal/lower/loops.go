package lower

import "github.com/mna/do/internal/bytecode"

// lowerListDup deep-duplicates a list to preserve value semantics: walk it
// counting down, rebuild a twin via NewList, then restore [original new] on
// the operand stack.
func (l *Lowerer) lowerListDup(f *frameCtx) {
	f.pushScope()
	list := f.bindLocal("$dup_list")
	counter := f.bindLocal("$dup_counter")
	cond := l.nextLabel()
	end := l.nextLabel()

	f.emitArg(bytecode.Store, int64(list))
	f.emitArg(bytecode.Load, int64(list))
	f.emit(bytecode.ListLen)
	f.emitArg(bytecode.Store, int64(counter))

	f.label(cond)
	f.emitArg(bytecode.Load, int64(counter))
	f.emitArg(bytecode.Push, 0)
	f.emit(bytecode.Gt)
	f.emitArg(bytecode.JumpIfFalse, int64(end))
	f.emitArg(bytecode.Load, int64(counter))
	f.emit(bytecode.Dec)
	f.emitArg(bytecode.Store, int64(counter))
	f.emitArg(bytecode.Load, int64(list))
	f.emitArg(bytecode.Load, int64(counter))
	f.emit(bytecode.ListGet)
	f.emitArg(bytecode.Jump, int64(cond))
	f.label(end)

	f.emitArg(bytecode.Load, int64(list))
	f.emit(bytecode.ListLen)
	f.emit(bytecode.NewList)
	f.emitArg(bytecode.Load, int64(list))
	f.emit(bytecode.Swap)
	f.popScope()
}

// lowerMap compiles the canonical higher-order-built-in loop: walk the list
// right-to-left, calling func on each element and leaving the N results on
// the operand stack, then materialize a same-length result list.
func (l *Lowerer) lowerMap(f *frameCtx) {
	f.pushScope()
	fn := f.bindLocal("$map_func")
	list := f.bindLocal("$map_list")
	index := f.bindLocal("$map_index")
	cond := l.nextLabel()
	end := l.nextLabel()

	f.emitArg(bytecode.Store, int64(fn))
	f.emitArg(bytecode.Store, int64(list))
	f.emitArg(bytecode.Load, int64(list))
	f.emit(bytecode.ListLen)
	f.emitArg(bytecode.Store, int64(index))

	f.label(cond)
	f.emitArg(bytecode.Load, int64(index))
	f.emitArg(bytecode.Push, 0)
	f.emit(bytecode.Gt)
	f.emitArg(bytecode.JumpIfFalse, int64(end))
	f.emitArg(bytecode.Load, int64(index))
	f.emit(bytecode.Dec)
	f.emitArg(bytecode.Store, int64(index))
	f.emitArg(bytecode.Load, int64(list))
	f.emitArg(bytecode.Load, int64(index))
	f.emit(bytecode.ListGet)
	f.emitArg(bytecode.Load, int64(fn))
	f.emit(bytecode.CallDynamic)
	f.emitArg(bytecode.Jump, int64(cond))
	f.label(end)

	f.emitArg(bytecode.Load, int64(list))
	f.emit(bytecode.ListLen)
	f.emit(bytecode.NewList)
	f.popScope()
}

// lowerFilter mirrors lowerMap but tracks a separate kept-count local and
// discards elements the predicate rejects rather than leaving them on the
// operand stack.
func (l *Lowerer) lowerFilter(f *frameCtx) {
	f.pushScope()
	fn := f.bindLocal("$filter_func")
	list := f.bindLocal("$filter_list")
	index := f.bindLocal("$filter_index")
	count := f.bindLocal("$filter_count")
	cond := l.nextLabel()
	end := l.nextLabel()
	skip := l.nextLabel()
	next := l.nextLabel()

	f.emitArg(bytecode.Store, int64(fn))
	f.emitArg(bytecode.Store, int64(list))
	f.emitArg(bytecode.Load, int64(list))
	f.emit(bytecode.ListLen)
	f.emitArg(bytecode.Store, int64(index))
	f.emitArg(bytecode.Push, 0)
	f.emitArg(bytecode.Store, int64(count))

	f.label(cond)
	f.emitArg(bytecode.Load, int64(index))
	f.emitArg(bytecode.Push, 0)
	f.emit(bytecode.Gt)
	f.emitArg(bytecode.JumpIfFalse, int64(end))
	f.emitArg(bytecode.Load, int64(index))
	f.emit(bytecode.Dec)
	f.emitArg(bytecode.Store, int64(index))
	f.emitArg(bytecode.Load, int64(list))
	f.emitArg(bytecode.Load, int64(index))
	f.emit(bytecode.ListGet)
	f.emit(bytecode.Dup)
	f.emitArg(bytecode.Load, int64(fn))
	f.emit(bytecode.CallDynamic)
	f.emitArg(bytecode.JumpIfFalse, int64(skip))
	f.emitArg(bytecode.Load, int64(count))
	f.emit(bytecode.Inc)
	f.emitArg(bytecode.Store, int64(count))
	f.emitArg(bytecode.Jump, int64(next))
	f.label(skip)
	f.emit(bytecode.Pop)
	f.label(next)
	f.emitArg(bytecode.Jump, int64(cond))
	f.label(end)

	f.emitArg(bytecode.Load, int64(count))
	f.emit(bytecode.NewList)
	f.popScope()
}

// lowerFold carries an accumulator local, updated once per element.
func (l *Lowerer) lowerFold(f *frameCtx) {
	f.pushScope()
	fn := f.bindLocal("$fold_func")
	acc := f.bindLocal("$fold_acc")
	list := f.bindLocal("$fold_list")
	index := f.bindLocal("$fold_index")
	cond := l.nextLabel()
	end := l.nextLabel()

	f.emitArg(bytecode.Store, int64(fn))
	f.emitArg(bytecode.Store, int64(acc))
	f.emitArg(bytecode.Store, int64(list))
	f.emitArg(bytecode.Load, int64(list))
	f.emit(bytecode.ListLen)
	f.emitArg(bytecode.Store, int64(index))

	f.label(cond)
	f.emitArg(bytecode.Load, int64(index))
	f.emitArg(bytecode.Push, 0)
	f.emit(bytecode.Gt)
	f.emitArg(bytecode.JumpIfFalse, int64(end))
	f.emitArg(bytecode.Load, int64(index))
	f.emit(bytecode.Dec)
	f.emitArg(bytecode.Store, int64(index))
	f.emitArg(bytecode.Load, int64(list))
	f.emitArg(bytecode.Load, int64(index))
	f.emit(bytecode.ListGet)
	f.emitArg(bytecode.Load, int64(acc))
	f.emitArg(bytecode.Load, int64(fn))
	f.emit(bytecode.CallDynamic)
	f.emitArg(bytecode.Store, int64(acc))
	f.emitArg(bytecode.Jump, int64(cond))
	f.label(end)

	f.emitArg(bytecode.Load, int64(acc))
	f.popScope()
}

// lowerForeach iterates left-to-right and produces no new list.
func (l *Lowerer) lowerForeach(f *frameCtx) {
	f.pushScope()
	fn := f.bindLocal("$foreach_func")
	list := f.bindLocal("$foreach_list")
	length := f.bindLocal("$foreach_len")
	index := f.bindLocal("$foreach_index")
	cond := l.nextLabel()
	end := l.nextLabel()

	f.emitArg(bytecode.Store, int64(fn))
	f.emitArg(bytecode.Store, int64(list))
	f.emitArg(bytecode.Load, int64(list))
	f.emit(bytecode.ListLen)
	f.emitArg(bytecode.Store, int64(length))
	f.emitArg(bytecode.Push, 0)
	f.emitArg(bytecode.Store, int64(index))

	f.label(cond)
	f.emitArg(bytecode.Load, int64(index))
	f.emitArg(bytecode.Load, int64(length))
	f.emit(bytecode.Lt)
	f.emitArg(bytecode.JumpIfFalse, int64(end))
	f.emitArg(bytecode.Load, int64(list))
	f.emitArg(bytecode.Load, int64(index))
	f.emit(bytecode.ListGet)
	f.emitArg(bytecode.Load, int64(fn))
	f.emit(bytecode.CallDynamic)
	f.emitArg(bytecode.Load, int64(index))
	f.emit(bytecode.Inc)
	f.emitArg(bytecode.Store, int64(index))
	f.emitArg(bytecode.Jump, int64(cond))
	f.label(end)
	f.popScope()
}

// lowerHead and lowerTail fill a gap the language spec leaves open: the
// opcode table has no dedicated instruction for either, so both are
// expanded, in the same spirit as the built-ins above, purely in terms of
// ListGet/ListLen/NewList.
func (l *Lowerer) lowerHead(f *frameCtx) {
	f.pushScope()
	list := f.bindLocal("$head_list")
	f.emitArg(bytecode.Store, int64(list))
	f.emitArg(bytecode.Load, int64(list))
	f.emitArg(bytecode.Push, 0)
	f.emit(bytecode.ListGet)
	f.popScope()
}

func (l *Lowerer) lowerTail(f *frameCtx) {
	f.pushScope()
	list := f.bindLocal("$tail_list")
	counter := f.bindLocal("$tail_counter")
	cond := l.nextLabel()
	end := l.nextLabel()

	f.emitArg(bytecode.Store, int64(list))
	f.emitArg(bytecode.Load, int64(list))
	f.emit(bytecode.ListLen)
	f.emitArg(bytecode.Store, int64(counter))

	f.label(cond)
	f.emitArg(bytecode.Load, int64(counter))
	f.emitArg(bytecode.Push, 1)
	f.emit(bytecode.Gt)
	f.emitArg(bytecode.JumpIfFalse, int64(end))
	f.emitArg(bytecode.Load, int64(counter))
	f.emit(bytecode.Dec)
	f.emitArg(bytecode.Store, int64(counter))
	f.emitArg(bytecode.Load, int64(list))
	f.emitArg(bytecode.Load, int64(counter))
	f.emit(bytecode.ListGet)
	f.emitArg(bytecode.Jump, int64(cond))
	f.label(end)

	f.emitArg(bytecode.Load, int64(list))
	f.emit(bytecode.ListLen)
	f.emitArg(bytecode.Push, 1)
	f.emit(bytecode.Sub)
	f.emit(bytecode.NewList)
	f.popScope()
}

// lowerListPush appends a value to the end of a list, producing a new list
// of length+1. Like head/tail, this op has no dedicated opcode and is
// expanded in terms of the existing ISA.
func (l *Lowerer) lowerListPush(f *frameCtx) {
	f.pushScope()
	value := f.bindLocal("$push_value")
	list := f.bindLocal("$push_list")
	counter := f.bindLocal("$push_counter")
	cond := l.nextLabel()
	end := l.nextLabel()

	f.emitArg(bytecode.Store, int64(value))
	f.emitArg(bytecode.Store, int64(list))
	f.emitArg(bytecode.Load, int64(value))
	f.emitArg(bytecode.Load, int64(list))
	f.emit(bytecode.ListLen)
	f.emitArg(bytecode.Store, int64(counter))

	f.label(cond)
	f.emitArg(bytecode.Load, int64(counter))
	f.emitArg(bytecode.Push, 0)
	f.emit(bytecode.Gt)
	f.emitArg(bytecode.JumpIfFalse, int64(end))
	f.emitArg(bytecode.Load, int64(counter))
	f.emit(bytecode.Dec)
	f.emitArg(bytecode.Store, int64(counter))
	f.emitArg(bytecode.Load, int64(list))
	f.emitArg(bytecode.Load, int64(counter))
	f.emit(bytecode.ListGet)
	f.emitArg(bytecode.Jump, int64(cond))
	f.label(end)

	f.emitArg(bytecode.Load, int64(list))
	f.emit(bytecode.ListLen)
	f.emitArg(bytecode.Push, 1)
	f.emit(bytecode.Add)
	f.emit(bytecode.NewList)
	f.popScope()
}

// lowerConcat builds a[0..lenA) ++ b[0..lenB) by walking b then a in
// reverse (so the final NewList pop order reconstructs a's elements first,
// then b's).
func (l *Lowerer) lowerConcat(f *frameCtx) {
	f.pushScope()
	b := f.bindLocal("$concat_b")
	a := f.bindLocal("$concat_a")
	counterB := f.bindLocal("$concat_cb")
	counterA := f.bindLocal("$concat_ca")
	condB := l.nextLabel()
	endB := l.nextLabel()
	condA := l.nextLabel()
	endA := l.nextLabel()

	f.emitArg(bytecode.Store, int64(b))
	f.emitArg(bytecode.Store, int64(a))

	f.emitArg(bytecode.Load, int64(b))
	f.emit(bytecode.ListLen)
	f.emitArg(bytecode.Store, int64(counterB))
	f.label(condB)
	f.emitArg(bytecode.Load, int64(counterB))
	f.emitArg(bytecode.Push, 0)
	f.emit(bytecode.Gt)
	f.emitArg(bytecode.JumpIfFalse, int64(endB))
	f.emitArg(bytecode.Load, int64(counterB))
	f.emit(bytecode.Dec)
	f.emitArg(bytecode.Store, int64(counterB))
	f.emitArg(bytecode.Load, int64(b))
	f.emitArg(bytecode.Load, int64(counterB))
	f.emit(bytecode.ListGet)
	f.emitArg(bytecode.Jump, int64(condB))
	f.label(endB)

	f.emitArg(bytecode.Load, int64(a))
	f.emit(bytecode.ListLen)
	f.emitArg(bytecode.Store, int64(counterA))
	f.label(condA)
	f.emitArg(bytecode.Load, int64(counterA))
	f.emitArg(bytecode.Push, 0)
	f.emit(bytecode.Gt)
	f.emitArg(bytecode.JumpIfFalse, int64(endA))
	f.emitArg(bytecode.Load, int64(counterA))
	f.emit(bytecode.Dec)
	f.emitArg(bytecode.Store, int64(counterA))
	f.emitArg(bytecode.Load, int64(a))
	f.emitArg(bytecode.Load, int64(counterA))
	f.emit(bytecode.ListGet)
	f.emitArg(bytecode.Jump, int64(condA))
	f.label(endA)

	f.emitArg(bytecode.Load, int64(a))
	f.emit(bytecode.ListLen)
	f.emitArg(bytecode.Load, int64(b))
	f.emit(bytecode.ListLen)
	f.emit(bytecode.Add)
	f.emit(bytecode.NewList)
	f.popScope()
}
