// Package lower translates type-checked ops into the shared bytecode ISA,
// flattening nested quotations into independent named frames and expanding
// the higher-order built-ins into explicit loops over fresh locals and
// labels, exactly as the language's stack-VM execution model requires.
package lower

import (
	"github.com/mna/do/internal/bytecode"
	"github.com/mna/do/internal/types"
)

// Lowerer owns the program being built and the single monotonic label
// counter shared across every frame (the VM resolves all labels from one
// combined table built over the whole flattened program).
type Lowerer struct {
	prog         *bytecode.Program
	labelCounter int
	blockCounter int
}

// New creates a Lowerer targeting a fresh Program.
func New() *Lowerer {
	return &Lowerer{prog: &bytecode.Program{Main: "main"}}
}

// Program lowers a whole checked program into bytecode frames and returns
// the result. Repeated calls (as in REPL mode, one call per accepted line)
// append to and reuse the same "main" frame and function/constant tables.
func (l *Lowerer) Program(ops []types.TypedOp) *bytecode.Program {
	main := l.frameFor("main")
	fc := &frameCtx{l: l, name: "main"}
	fc.pushScope()
	for _, op := range ops {
		l.lowerOp(fc, op)
	}
	fc.popScope()
	main.Insns = append(main.Insns, fc.insns...)
	if fc.maxLocals > main.MaxLocals {
		main.MaxLocals = fc.maxLocals
	}
	l.setFrame(*main)
	return l.prog
}

func (l *Lowerer) frameFor(name string) *bytecode.StackFrame {
	if f, ok := l.prog.FrameByName(name); ok {
		return &f
	}
	return &bytecode.StackFrame{Name: name}
}

func (l *Lowerer) setFrame(f bytecode.StackFrame) {
	for i := range l.prog.Frames {
		if l.prog.Frames[i].Name == f.Name {
			l.prog.Frames[i] = f
			return
		}
	}
	l.prog.Frames = append(l.prog.Frames, f)
}

func (l *Lowerer) nextLabel() int {
	id := l.labelCounter
	l.labelCounter++
	return id
}

// frameCtx accumulates one frame's instructions and its local-slot scoping.
type frameCtx struct {
	l         *Lowerer
	name      string
	insns     []bytecode.Instruction
	nextLocal int
	maxLocals int
	scopes    []map[string]int
}

func (f *frameCtx) emit(op bytecode.Opcode)                 { f.insns = append(f.insns, bytecode.Instruction{Op: op}) }
func (f *frameCtx) emitArg(op bytecode.Opcode, arg int64)    { f.insns = append(f.insns, bytecode.Instruction{Op: op, Arg: arg}) }
func (f *frameCtx) label(id int)                            { f.emitArg(bytecode.Label, int64(id)) }

func (f *frameCtx) pushScope() { f.scopes = append(f.scopes, map[string]int{}) }
func (f *frameCtx) popScope() {
	top := f.scopes[len(f.scopes)-1]
	f.scopes = f.scopes[:len(f.scopes)-1]
	f.nextLocal -= len(top)
}

func (f *frameCtx) newLocal() int {
	idx := f.nextLocal
	f.nextLocal++
	if f.nextLocal > f.maxLocals {
		f.maxLocals = f.nextLocal
	}
	return idx
}

func (f *frameCtx) bindLocal(name string) int {
	idx := f.newLocal()
	f.scopes[len(f.scopes)-1][name] = idx
	return idx
}

func (f *frameCtx) lookupLocal(name string) (int, bool) {
	for i := len(f.scopes) - 1; i >= 0; i-- {
		if idx, ok := f.scopes[i][name]; ok {
			return idx, true
		}
	}
	return 0, false
}

func boolWord(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
