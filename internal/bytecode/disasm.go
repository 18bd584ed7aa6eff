package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders a frame's instructions as one line per instruction,
// index-prefixed. It has no bearing on execution, and neither the REPL's
// "???" nor the driver's "-i" mode calls it.
func Disassemble(f StackFrame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (max_locals=%d)\n", f.Name, f.MaxLocals)
	for i, in := range f.Insns {
		fmt.Fprintf(&b, "%4d  %s\n", i, in)
	}
	return b.String()
}

// DisassembleProgram renders every frame in a program, main first.
func DisassembleProgram(p *Program) string {
	var b strings.Builder
	if f, ok := p.FrameByName(p.Main); ok {
		b.WriteString(Disassemble(f))
	}
	for _, f := range p.Frames {
		if f.Name == p.Main {
			continue
		}
		b.WriteString(Disassemble(f))
	}
	return b.String()
}
