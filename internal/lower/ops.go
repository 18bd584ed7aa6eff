package lower

import (
	"fmt"

	"github.com/mna/do/internal/ast"
	"github.com/mna/do/internal/bytecode"
	"github.com/mna/do/internal/types"
)

var cmpOpcode = map[ast.Kind]bytecode.Opcode{
	ast.Add: bytecode.Add,
	ast.Sub: bytecode.Sub,
	ast.Mul: bytecode.Mul,
	ast.Div: bytecode.Div,
	ast.Mod: bytecode.Mod,
	ast.Lt:  bytecode.Lt,
	ast.Le:  bytecode.LtEq,
	ast.Gt:  bytecode.Gt,
	ast.Ge:  bytecode.GtEq,
	ast.Eq:  bytecode.Eq,
}

func (l *Lowerer) lowerOp(f *frameCtx, op types.TypedOp) {
	if oc, ok := cmpOpcode[op.Kind]; ok {
		f.emit(oc)
		return
	}

	switch op.Kind {
	case ast.PushInt:
		f.emitArg(bytecode.Push, op.IntVal)
	case ast.PushBool:
		f.emitArg(bytecode.Push, boolWord(op.BoolVal))
	case ast.PushList:
		l.lowerPushList(f, op)
	case ast.PushBlock:
		l.lowerPushBlock(f, op)
	case ast.Not:
		f.emitArg(bytecode.Push, 0)
		f.emit(bytecode.Eq)
	case ast.And:
		f.emit(bytecode.Mul)
	case ast.Or:
		f.emit(bytecode.Add)
		f.emitArg(bytecode.Push, 0)
		f.emit(bytecode.Gt)
	case ast.Dup:
		if isList(op.Ins) {
			l.lowerListDup(f)
		} else {
			f.emit(bytecode.Dup)
		}
	case ast.Swap:
		f.emit(bytecode.Swap)
	case ast.Over:
		f.emit(bytecode.Over)
	case ast.Rot:
		f.emit(bytecode.Rot)
	case ast.Pop:
		f.emit(bytecode.Pop)
	case ast.Identity:
		// no bytecode: '.' is the identity op.
	case ast.Print:
		switch {
		case isList(op.Ins):
			f.emit(bytecode.PrintList)
		case isBool(op.Ins):
			f.emit(bytecode.PrintBool)
		default:
			f.emit(bytecode.Print)
		}
	case ast.Dump:
		// '???' is a static, check-time type-stack dump; it lowers to nothing.
	case ast.Len:
		f.emit(bytecode.ListLen)
	case ast.Concat:
		l.lowerConcat(f)
	case ast.Push:
		l.lowerListPush(f)
	case ast.Head:
		l.lowerHead(f)
	case ast.Tail:
		l.lowerTail(f)
	case ast.Do:
		f.emit(bytecode.CallDynamic)
	case ast.Map:
		l.lowerMap(f)
	case ast.Filter:
		l.lowerFilter(f)
	case ast.Fold:
		l.lowerFold(f)
	case ast.Foreach:
		l.lowerForeach(f)
	case ast.Fn:
		l.lowerFn(op)
	case ast.Ident:
		l.lowerIdent(f, op)
	case ast.If:
		l.lowerIf(f, op)
	case ast.IfElse:
		l.lowerIfElse(f, op)
	case ast.Binding:
		l.lowerBinding(f, op)
	default:
		panic(fmt.Sprintf("lower: unhandled op kind %v", op.Kind))
	}
}

func isList(ts []types.TypeKind) bool { return len(ts) > 0 && ts[0].Sort == types.List }
func isBool(ts []types.TypeKind) bool { return len(ts) > 0 && ts[0].Sort == types.Bool }

// lowerPushList lowers elements in reverse order so that NewList (which
// pops a length then that many values, writing the first-popped value at
// the lowest heap offset) reconstructs them in their original order.
func (l *Lowerer) lowerPushList(f *frameCtx, op types.TypedOp) {
	for i := len(op.Elems) - 1; i >= 0; i-- {
		l.lowerOp(f, op.Elems[i])
	}
	f.emitArg(bytecode.Push, int64(len(op.Elems)))
	f.emit(bytecode.NewList)
}

func (l *Lowerer) lowerPushBlock(f *frameCtx, op types.TypedOp) {
	l.blockCounter++
	name := fmt.Sprintf("block_%d", l.blockCounter)
	l.lowerFunctionBody(name, op.Body)
	idx := l.prog.ConstIndex(name)
	f.emitArg(bytecode.PushBlock, int64(idx))
}

func (l *Lowerer) lowerFn(op types.TypedOp) {
	l.lowerFunctionBody(op.Name, op.Body)
	l.prog.ConstIndex(op.Name)
}

// lowerFunctionBody lowers body into a brand new frame called name,
// terminated by Return, and registers it in the program.
func (l *Lowerer) lowerFunctionBody(name string, body []types.TypedOp) {
	fc := &frameCtx{l: l, name: name}
	fc.pushScope()
	for _, child := range body {
		l.lowerOp(fc, child)
	}
	fc.popScope()
	fc.emit(bytecode.Return)
	l.setFrame(bytecode.StackFrame{Name: name, Insns: fc.insns, MaxLocals: fc.maxLocals})
}

func (l *Lowerer) lowerIdent(f *frameCtx, op types.TypedOp) {
	if idx, ok := f.lookupLocal(op.Name); ok {
		f.emitArg(bytecode.Load, int64(idx))
		return
	}
	idx := l.prog.ConstIndex(op.Name)
	f.emitArg(bytecode.CallStatic, int64(idx))
}

func (l *Lowerer) lowerIf(f *frameCtx, op types.TypedOp) {
	end := l.nextLabel()
	f.emitArg(bytecode.JumpIfFalse, int64(end))
	for _, child := range op.Body {
		l.lowerOp(f, child)
	}
	f.label(end)
}

func (l *Lowerer) lowerIfElse(f *frameCtx, op types.TypedOp) {
	elseLbl := l.nextLabel()
	end := l.nextLabel()
	f.emitArg(bytecode.JumpIfFalse, int64(elseLbl))
	for _, child := range op.Body {
		l.lowerOp(f, child)
	}
	f.emitArg(bytecode.Jump, int64(end))
	f.label(elseLbl)
	for _, child := range op.Else {
		l.lowerOp(f, child)
	}
	f.label(end)
}

func (l *Lowerer) lowerBinding(f *frameCtx, op types.TypedOp) {
	f.pushScope()
	for i := len(op.Names) - 1; i >= 0; i-- {
		idx := f.bindLocal(op.Names[i])
		f.emitArg(bytecode.Store, int64(idx))
	}
	for _, child := range op.Body {
		l.lowerOp(f, child)
	}
	f.popScope()
}
