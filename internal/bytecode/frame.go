package bytecode

// StackFrame is one compiled function or quotation: its instruction
// sequence and the number of local slots it needs.
type StackFrame struct {
	Name       string
	Insns      []Instruction
	MaxLocals  int
}

// Program is the lowerer's output: every named frame, plus the ordered
// constant pool of names used as CallStatic/PushBlock targets. Frame order
// within Frames does not matter for execution (the VM looks entries up by
// name) but is kept insertion-ordered for reproducible disassembly.
type Program struct {
	Frames   []StackFrame
	ConstPool []string // name -> index is ConstPool's position
	Main     string
}

// FrameByName returns the frame registered under name, if any.
func (p *Program) FrameByName(name string) (StackFrame, bool) {
	for _, f := range p.Frames {
		if f.Name == name {
			return f, true
		}
	}
	return StackFrame{}, false
}

// ConstIndex returns name's position in the constant pool, appending it if
// not already present.
func (p *Program) ConstIndex(name string) int {
	for i, n := range p.ConstPool {
		if n == name {
			return i
		}
	}
	p.ConstPool = append(p.ConstPool, name)
	return len(p.ConstPool) - 1
}
