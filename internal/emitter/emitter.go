// Package emitter lowers a bytecode.Program into an LLVM IR module using
// github.com/llir/llvm. It consumes the same shared ISA the VM interprets
// (not the typed op tree), so the two backends never drift apart: anything
// the VM can run, the native target can also compile. The operand stack,
// its stack pointer, the locals window and the heap are each a single
// global i64 buffer shared by every compiled frame function and indexed
// through getelementptr, mirroring the VM's own single shared stack/
// locals/heap fields exactly (including its single-return-slot call
// convention: frame functions are void and take no parameters, so nested
// CallStatic/CallDynamic sites share one locals window across frames, the
// same limitation the VM carries).
package emitter

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/mna/do/internal/bytecode"
)

const (
	stackSlots  = 1 << 16
	heapSlots   = 1 << 20
	localsSlots = 1 << 12
)

// Emitter holds the module under construction and the cross-function
// globals every compiled frame shares: the operand stack + its pointer,
// the locals window, the heap + its bump pointer, and the dynamic-dispatch
// function-pointer table that CallDynamic indexes into.
type Emitter struct {
	m         *ir.Module
	stack     *ir.Global
	sp        *ir.Global
	locals    *ir.Global
	heap      *ir.Global
	heapTop   *ir.Global
	fnTable   *ir.Global
	fnType    *types.FuncType
	frameFunc map[string]*ir.Func
	constPool []string
	nlCounter *ir.Global
	plCounter *ir.Global

	printf      *ir.Func
	fmtIntNL    *ir.Global
	fmtIntBare  *ir.Global
	fmtIntSpace *ir.Global
	fmtLBracket *ir.Global
	fmtRBracket *ir.Global
	strTrue     *ir.Global
	strFalse    *ir.Global
}

// New creates an Emitter targeting a fresh module.
func New() *Emitter {
	return &Emitter{frameFunc: map[string]*ir.Func{}}
}

// Emit translates prog into a complete LLVM module and returns it.
func (e *Emitter) Emit(prog *bytecode.Program) *ir.Module {
	e.m = ir.NewModule()
	e.constPool = prog.ConstPool
	e.fnType = types.NewFunc(types.Void)

	e.stack = e.m.NewGlobalDef("do_stack", constant.NewZeroInitializer(types.NewArray(stackSlots, types.I64)))
	e.sp = e.m.NewGlobalDef("do_sp", constant.NewInt(types.I64, 0))
	e.locals = e.m.NewGlobalDef("do_locals", constant.NewZeroInitializer(types.NewArray(localsSlots, types.I64)))
	e.heap = e.m.NewGlobalDef("do_heap", constant.NewZeroInitializer(types.NewArray(heapSlots, types.I64)))
	e.heapTop = e.m.NewGlobalDef("do_heap_top", constant.NewInt(types.I64, 0))
	e.nlCounter = e.m.NewGlobalDef("do_new_list_i", constant.NewInt(types.I64, 0))
	e.plCounter = e.m.NewGlobalDef("do_print_list_i", constant.NewInt(types.I64, 0))

	e.printf = e.m.NewFunc("printf", types.I32, ir.NewParam("fmt", types.NewPointer(types.I8)))
	e.printf.Sig.Variadic = true
	e.fmtIntNL = e.cstrGlobal("do_fmt_int_nl", "%d\n\x00")
	e.fmtIntBare = e.cstrGlobal("do_fmt_int_bare", "%d\x00")
	e.fmtIntSpace = e.cstrGlobal("do_fmt_int_space", " %d\x00")
	e.fmtLBracket = e.cstrGlobal("do_fmt_lbracket", "[\x00")
	e.fmtRBracket = e.cstrGlobal("do_fmt_rbracket", "]\n\x00")
	e.strTrue = e.cstrGlobal("do_str_true", "true\n\x00")
	e.strFalse = e.cstrGlobal("do_str_false", "false\n\x00")

	fnPtrs := make([]constant.Constant, len(prog.ConstPool))
	for i := range fnPtrs {
		fnPtrs[i] = constant.NewNull(types.NewPointer(e.fnType))
	}
	fnTableType := types.NewArray(uint64(len(fnPtrs)), types.NewPointer(e.fnType))
	if len(fnPtrs) == 0 {
		e.fnTable = e.m.NewGlobalDef("do_fn_table", constant.NewZeroInitializer(types.NewArray(1, types.NewPointer(e.fnType))))
	} else {
		e.fnTable = e.m.NewGlobalDef("do_fn_table", constant.NewArray(fnTableType, fnPtrs...))
	}

	// Declare every frame's function up front so CallStatic and the
	// function-pointer table initializer can reference forward-declared
	// frames regardless of definition order.
	for _, frame := range prog.Frames {
		fn := e.m.NewFunc(frameSymbol(frame.Name), types.Void)
		e.frameFunc[frame.Name] = fn
	}

	for _, frame := range prog.Frames {
		e.emitFrame(frame)
	}
	initFn := e.emitFnTableInit(prog)
	e.emitMain(prog, initFn)
	return e.m
}

func frameSymbol(name string) string { return "do_frame_" + name }

// cstrGlobal defines a private, NUL-terminated i8-array global holding s
// (callers must include the trailing "\x00" themselves) for use as a
// printf format string or literal.
func (e *Emitter) cstrGlobal(name, s string) *ir.Global {
	g := e.m.NewGlobalDef(name, constant.NewCharArrayFromString(s))
	g.Immutable = true
	return g
}

// emitFnTableInit builds a constructor that populates do_fn_table at load
// time: a global array initializer cannot portably take another global
// function's address as an element in every target llir/llvm emits for, so
// the table is instead populated by an ordinary function body.
func (e *Emitter) emitFnTableInit(prog *bytecode.Program) *ir.Func {
	ctor := e.m.NewFunc("do_init_fn_table", types.Void)
	entry := ctor.NewBlock("entry")
	for i, name := range prog.ConstPool {
		fn, ok := e.frameFunc[name]
		if !ok {
			continue // constant pool entry names an identifier that never resolved to a frame
		}
		slot := entry.NewGetElementPtr(e.fnTable.ContentType, e.fnTable,
			constant.NewInt(types.I32, 0), constant.NewInt(types.I32, int64(i)))
		entry.NewStore(fn, slot)
	}
	entry.NewRet(nil)
	return ctor
}

// emitMain emits the process entry point: initialize the dispatch table,
// then call the compiled "main" frame.
func (e *Emitter) emitMain(prog *bytecode.Program, initFn *ir.Func) {
	main := e.m.NewFunc("main", types.I32)
	entry := main.NewBlock("entry")
	entry.NewCall(initFn)
	entry.NewCall(e.frameFunc[prog.Main])
	entry.NewRet(constant.NewInt(types.I32, 0))
}

// frameState carries one frame's local LLVM translation context: its
// function and the "current" block instructions append to. Every storage
// location it reads or writes (operand stack, locals, heap) lives in the
// Emitter's shared globals, not in per-frame state.
type frameState struct {
	e      *Emitter
	fn     *ir.Func
	labels map[int]*ir.Block
	cur    *ir.Block
}

func (e *Emitter) emitFrame(frame bytecode.StackFrame) {
	fn := e.frameFunc[frame.Name]
	entry := fn.NewBlock("entry")

	fs := &frameState{e: e, fn: fn, labels: map[int]*ir.Block{}}
	body := fn.NewBlock(fmt.Sprintf("%s_body", frame.Name))
	entry.NewBr(body)
	fs.cur = body

	// Pre-create one block per label so forward Jump/JumpIfFalse targets
	// resolve regardless of source order.
	for _, ins := range frame.Insns {
		if ins.Op == bytecode.Label {
			fs.labels[int(ins.Arg)] = fn.NewBlock(fmt.Sprintf("%s_L%d", frame.Name, ins.Arg))
		}
	}

	for _, ins := range frame.Insns {
		fs.emit(ins)
	}
	if fs.cur.Term == nil {
		fs.cur.NewRet(nil)
	}
}

func (fs *frameState) push(v value.Value) {
	sp := fs.cur.NewLoad(types.I64, fs.e.sp)
	slot := fs.cur.NewGetElementPtr(fs.e.stack.ContentType, fs.e.stack, constant.NewInt(types.I32, 0), sp)
	fs.cur.NewStore(v, slot)
	fs.cur.NewStore(fs.cur.NewAdd(sp, constant.NewInt(types.I64, 1)), fs.e.sp)
}

func (fs *frameState) pop() value.Value {
	sp := fs.cur.NewLoad(types.I64, fs.e.sp)
	sp1 := fs.cur.NewSub(sp, constant.NewInt(types.I64, 1))
	fs.cur.NewStore(sp1, fs.e.sp)
	slot := fs.cur.NewGetElementPtr(fs.e.stack.ContentType, fs.e.stack, constant.NewInt(types.I32, 0), sp1)
	return fs.cur.NewLoad(types.I64, slot)
}

func (fs *frameState) heapSlot(ptr value.Value) *ir.InstGetElementPtr {
	return fs.cur.NewGetElementPtr(fs.e.heap.ContentType, fs.e.heap, constant.NewInt(types.I32, 0), ptr)
}

func (fs *frameState) localSlot(idx int64) *ir.InstGetElementPtr {
	return fs.cur.NewGetElementPtr(fs.e.locals.ContentType, fs.e.locals, constant.NewInt(types.I32, 0), constant.NewInt(types.I64, idx))
}

// callPrintf emits a call to the shared printf declaration with fmtG's
// address as the format argument, followed by any variadic args.
func (fs *frameState) callPrintf(fmtG *ir.Global, args ...value.Value) {
	fmtPtr := fs.cur.NewGetElementPtr(fmtG.ContentType, fmtG, constant.NewInt(types.I32, 0), constant.NewInt(types.I32, 0))
	callArgs := append([]value.Value{fmtPtr}, args...)
	fs.cur.NewCall(fs.e.printf, callArgs...)
}

func (fs *frameState) switchBlock(b *ir.Block) {
	if fs.cur.Term == nil {
		fs.cur.NewBr(b)
	}
	fs.cur = b
}

func (fs *frameState) emit(ins bytecode.Instruction) {
	switch ins.Op {
	case bytecode.Label:
		fs.switchBlock(fs.labels[int(ins.Arg)])
	case bytecode.Push, bytecode.PushBlock:
		fs.push(constant.NewInt(types.I64, ins.Arg))
	case bytecode.Pop:
		fs.pop()
	case bytecode.Dup:
		a := fs.pop()
		fs.push(a)
		fs.push(a)
	case bytecode.Swap:
		a, b := fs.pop(), fs.pop()
		fs.push(a)
		fs.push(b)
	case bytecode.Over:
		a, b := fs.pop(), fs.pop()
		fs.push(b)
		fs.push(a)
		fs.push(b)
	case bytecode.Rot:
		a, b, c := fs.pop(), fs.pop(), fs.pop()
		fs.push(b)
		fs.push(a)
		fs.push(c)
	case bytecode.Inc:
		fs.push(fs.cur.NewAdd(fs.pop(), constant.NewInt(types.I64, 1)))
	case bytecode.Dec:
		fs.push(fs.cur.NewSub(fs.pop(), constant.NewInt(types.I64, 1)))
	case bytecode.Add:
		a, b := fs.pop(), fs.pop()
		fs.push(fs.cur.NewAdd(b, a))
	case bytecode.Sub:
		a, b := fs.pop(), fs.pop()
		fs.push(fs.cur.NewSub(b, a))
	case bytecode.Mul:
		a, b := fs.pop(), fs.pop()
		fs.push(fs.cur.NewMul(b, a))
	case bytecode.Div:
		a, b := fs.pop(), fs.pop()
		fs.push(fs.cur.NewSDiv(b, a))
	case bytecode.Mod:
		a, b := fs.pop(), fs.pop()
		fs.push(fs.cur.NewSRem(b, a))
	case bytecode.Gt, bytecode.GtEq, bytecode.Lt, bytecode.LtEq, bytecode.Eq:
		fs.emitCmp(ins.Op)
	case bytecode.NewList:
		fs.emitNewList()
	case bytecode.ListLen:
		ptr := fs.pop()
		fs.push(fs.cur.NewLoad(types.I64, fs.heapSlot(ptr)))
	case bytecode.ListGet:
		idx, ptr := fs.pop(), fs.pop()
		off := fs.cur.NewAdd(idx, constant.NewInt(types.I64, 1))
		off = fs.cur.NewAdd(off, ptr)
		fs.push(fs.cur.NewLoad(types.I64, fs.heapSlot(off)))
	case bytecode.Load:
		fs.push(fs.cur.NewLoad(types.I64, fs.localSlot(ins.Arg)))
	case bytecode.Store:
		v := fs.pop()
		fs.cur.NewStore(v, fs.localSlot(ins.Arg))
	case bytecode.Print:
		fs.callPrintf(fs.e.fmtIntNL, fs.pop())
	case bytecode.PrintBool:
		fs.emitPrintBool()
	case bytecode.PrintList:
		fs.emitPrintList()
	case bytecode.Jump:
		target := fs.labels[int(ins.Arg)]
		fs.cur.NewBr(target)
		fs.cur = fs.fn.NewBlock(fmt.Sprintf("%s_unreachable%d", fs.fn.Name(), ins.Arg))
	case bytecode.JumpIfFalse:
		cond := fs.pop()
		isZero := fs.cur.NewICmp(enum.IPredEQ, cond, constant.NewInt(types.I64, 0))
		target := fs.labels[int(ins.Arg)]
		cont := fs.fn.NewBlock(fmt.Sprintf("%s_cont%d", fs.fn.Name(), ins.Arg))
		fs.cur.NewCondBr(isZero, target, cont)
		fs.cur = cont
	case bytecode.CallStatic:
		callee := fs.e.frameFunc[fs.e.constPool[ins.Arg]]
		fs.cur.NewCall(callee)
	case bytecode.CallDynamic:
		idx := fs.pop()
		slot := fs.cur.NewGetElementPtr(fs.e.fnTable.ContentType, fs.e.fnTable, constant.NewInt(types.I32, 0), idx)
		ptr := fs.cur.NewLoad(types.NewPointer(fs.e.fnType), slot)
		fs.cur.NewCall(ptr)
	case bytecode.Return:
		fs.cur.NewRet(nil)
	}
}

func (fs *frameState) emitCmp(op bytecode.Opcode) {
	a, b := fs.pop(), fs.pop()
	var pred enum.IPred
	switch op {
	case bytecode.Gt:
		pred = enum.IPredSGT
	case bytecode.GtEq:
		pred = enum.IPredSGE
	case bytecode.Lt:
		pred = enum.IPredSLT
	case bytecode.LtEq:
		pred = enum.IPredSLE
	case bytecode.Eq:
		pred = enum.IPredEQ
	}
	cmp := fs.cur.NewICmp(pred, b, a)
	fs.push(fs.cur.NewZExt(cmp, types.I64))
}

// emitNewList bumps the shared heap bump-pointer by length+1 words, writes
// the length at the base offset, pops length elements off the operand
// stack into the following slots (first pop lands at offset 1, matching
// the VM's own NewList semantics exactly), and pushes the base pointer.
func (fs *frameState) emitNewList() {
	length := fs.pop()
	base := fs.cur.NewLoad(types.I64, fs.e.heapTop)
	newTop := fs.cur.NewAdd(base, fs.cur.NewAdd(length, constant.NewInt(types.I64, 1)))
	fs.cur.NewStore(newTop, fs.e.heapTop)
	fs.cur.NewStore(length, fs.heapSlot(base))

	loopCond := fs.fn.NewBlock(fmt.Sprintf("%s_nl_cond", fs.fn.Name()))
	loopBody := fs.fn.NewBlock(fmt.Sprintf("%s_nl_body", fs.fn.Name()))
	loopEnd := fs.fn.NewBlock(fmt.Sprintf("%s_nl_end", fs.fn.Name()))

	fs.cur.NewStore(constant.NewInt(types.I64, 0), fs.e.nlCounter)
	fs.cur.NewBr(loopCond)

	fs.cur = loopCond
	iv := fs.cur.NewLoad(types.I64, fs.e.nlCounter)
	cond := fs.cur.NewICmp(enum.IPredSLT, iv, length)
	fs.cur.NewCondBr(cond, loopBody, loopEnd)

	fs.cur = loopBody
	el := fs.pop()
	iv = fs.cur.NewLoad(types.I64, fs.e.nlCounter)
	off := fs.cur.NewAdd(base, fs.cur.NewAdd(iv, constant.NewInt(types.I64, 1)))
	fs.cur.NewStore(el, fs.heapSlot(off))
	fs.cur.NewStore(fs.cur.NewAdd(iv, constant.NewInt(types.I64, 1)), fs.e.nlCounter)
	fs.cur.NewBr(loopCond)

	fs.cur = loopEnd
	fs.push(base)
}

// emitPrintBool prints "true\n" or "false\n" depending on whether the
// popped value is nonzero, matching the VM's PrintBool semantics.
func (fs *frameState) emitPrintBool() {
	v := fs.pop()
	isZero := fs.cur.NewICmp(enum.IPredEQ, v, constant.NewInt(types.I64, 0))

	falseBlock := fs.fn.NewBlock(fmt.Sprintf("%s_pb_false", fs.fn.Name()))
	trueBlock := fs.fn.NewBlock(fmt.Sprintf("%s_pb_true", fs.fn.Name()))
	merge := fs.fn.NewBlock(fmt.Sprintf("%s_pb_merge", fs.fn.Name()))
	fs.cur.NewCondBr(isZero, falseBlock, trueBlock)

	fs.cur = falseBlock
	fs.callPrintf(fs.e.strFalse)
	fs.cur.NewBr(merge)

	fs.cur = trueBlock
	fs.callPrintf(fs.e.strTrue)
	fs.cur.NewBr(merge)

	fs.cur = merge
}

// emitPrintList prints "[e0 e1 ... en]\n", matching the VM's printList
// exactly: the bracket and inter-element spaces come from literal format
// strings, the elements from "%d"/" %d" printf calls over a loop counter
// shared across every PrintList call site (never reentrant within itself).
func (fs *frameState) emitPrintList() {
	ptr := fs.pop()
	fs.callPrintf(fs.e.fmtLBracket)

	length := fs.cur.NewLoad(types.I64, fs.heapSlot(ptr))
	isEmpty := fs.cur.NewICmp(enum.IPredEQ, length, constant.NewInt(types.I64, 0))

	emptyBlock := fs.fn.NewBlock(fmt.Sprintf("%s_pl_empty", fs.fn.Name()))
	firstBlock := fs.fn.NewBlock(fmt.Sprintf("%s_pl_first", fs.fn.Name()))
	loopCond := fs.fn.NewBlock(fmt.Sprintf("%s_pl_cond", fs.fn.Name()))
	loopBody := fs.fn.NewBlock(fmt.Sprintf("%s_pl_body", fs.fn.Name()))
	merge := fs.fn.NewBlock(fmt.Sprintf("%s_pl_merge", fs.fn.Name()))
	fs.cur.NewCondBr(isEmpty, emptyBlock, firstBlock)

	fs.cur = emptyBlock
	fs.cur.NewBr(merge)

	fs.cur = firstBlock
	first := fs.cur.NewLoad(types.I64, fs.heapSlot(fs.cur.NewAdd(ptr, constant.NewInt(types.I64, 1))))
	fs.callPrintf(fs.e.fmtIntBare, first)
	fs.cur.NewStore(constant.NewInt(types.I64, 1), fs.e.plCounter)
	fs.cur.NewBr(loopCond)

	fs.cur = loopCond
	iv := fs.cur.NewLoad(types.I64, fs.e.plCounter)
	cond := fs.cur.NewICmp(enum.IPredSLT, iv, length)
	fs.cur.NewCondBr(cond, loopBody, merge)

	fs.cur = loopBody
	iv = fs.cur.NewLoad(types.I64, fs.e.plCounter)
	off := fs.cur.NewAdd(ptr, fs.cur.NewAdd(iv, constant.NewInt(types.I64, 1)))
	el := fs.cur.NewLoad(types.I64, fs.heapSlot(off))
	fs.callPrintf(fs.e.fmtIntSpace, el)
	fs.cur.NewStore(fs.cur.NewAdd(iv, constant.NewInt(types.I64, 1)), fs.e.plCounter)
	fs.cur.NewBr(loopCond)

	fs.cur = merge
	fs.callPrintf(fs.e.fmtRBracket)
}
