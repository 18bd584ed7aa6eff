package lower

import (
	"testing"

	"github.com/mna/do/internal/bytecode"
	"github.com/mna/do/internal/diag"
	"github.com/mna/do/internal/parser"
	"github.com/mna/do/internal/types"
	"github.com/stretchr/testify/require"
)

func lowerSrc(t *testing.T, src string) *bytecode.Program {
	t.Helper()
	d := &diag.List{File: "t.do", Src: src}
	ops := parser.Parse(src, d)
	c := types.New(d, false)
	typed := c.Check(ops, false)
	require.Equal(t, 0, d.Len(), "unexpected diagnostics: %v", d.Items)
	return New().Program(typed)
}

func mainFrame(t *testing.T, prog *bytecode.Program) bytecode.StackFrame {
	t.Helper()
	f, ok := prog.FrameByName("main")
	require.True(t, ok)
	return f
}

func TestLowerArithmeticPrint(t *testing.T) {
	prog := lowerSrc(t, "1 2 + print")
	main := mainFrame(t, prog)
	require.Equal(t, []bytecode.Instruction{
		{Op: bytecode.Push, Arg: 1},
		{Op: bytecode.Push, Arg: 2},
		{Op: bytecode.Add},
		{Op: bytecode.Print},
	}, main.Insns)
}

func TestLowerPushList(t *testing.T) {
	prog := lowerSrc(t, "[1 2 3]")
	main := mainFrame(t, prog)
	require.Equal(t, []bytecode.Instruction{
		{Op: bytecode.Push, Arg: 3},
		{Op: bytecode.Push, Arg: 2},
		{Op: bytecode.Push, Arg: 1},
		{Op: bytecode.Push, Arg: 3},
		{Op: bytecode.NewList},
	}, main.Insns)
}

func TestLowerFnRegistersFrame(t *testing.T) {
	prog := lowerSrc(t, "fn sq ( dup * ) 5 sq")
	_, ok := prog.FrameByName("sq")
	require.True(t, ok)
	main := mainFrame(t, prog)
	last := main.Insns[len(main.Insns)-1]
	require.Equal(t, bytecode.CallStatic, last.Op)
}

func TestLowerPushBlockEmitsBlockFrame(t *testing.T) {
	prog := lowerSrc(t, "[1 2 3] (1 +) map")
	found := false
	for _, f := range prog.Frames {
		if f.Name == "block_1" {
			found = true
		}
	}
	require.True(t, found)
}

func TestLowerIfElseJumpShape(t *testing.T) {
	prog := lowerSrc(t, "true if ( 1 print ) else ( 2 print )")
	main := mainFrame(t, prog)
	var ops []bytecode.Opcode
	for _, in := range main.Insns {
		ops = append(ops, in.Op)
	}
	require.Contains(t, ops, bytecode.JumpIfFalse)
	require.Contains(t, ops, bytecode.Jump)
	require.Contains(t, ops, bytecode.Label)
}

func TestLowerBindingStoresReverseOrder(t *testing.T) {
	prog := lowerSrc(t, "1 2 [x y] (x y +)")
	main := mainFrame(t, prog)
	// names declared [x y]; y (rightmost) binds the topmost stack value
	// first, so the first Store seen corresponds to y, the second to x.
	var stores, loads []bytecode.Instruction
	for _, in := range main.Insns {
		switch in.Op {
		case bytecode.Store:
			stores = append(stores, in)
		case bytecode.Load:
			loads = append(loads, in)
		}
	}
	require.Len(t, stores, 2)
	require.Len(t, loads, 2)
	// the body reads x then y
	require.Equal(t, stores[1].Arg, loads[0].Arg)
	require.Equal(t, stores[0].Arg, loads[1].Arg)
}

func TestLowerMapLoopShape(t *testing.T) {
	prog := lowerSrc(t, "[1 2 3] (1 +) map")
	main := mainFrame(t, prog)
	var ops []bytecode.Opcode
	for _, in := range main.Insns {
		ops = append(ops, in.Op)
	}
	require.Contains(t, ops, bytecode.ListLen)
	require.Contains(t, ops, bytecode.CallDynamic)
	require.Contains(t, ops, bytecode.NewList)
}

func TestLowerForeachLeftToRight(t *testing.T) {
	prog := lowerSrc(t, "[1 2 3] (print) foreach")
	main := mainFrame(t, prog)
	var ops []bytecode.Opcode
	for _, in := range main.Insns {
		ops = append(ops, in.Op)
	}
	require.Contains(t, ops, bytecode.Lt)
	require.Contains(t, ops, bytecode.Inc)
}

func TestLowerConcat(t *testing.T) {
	prog := lowerSrc(t, "[1 2] [3 4] concat")
	main := mainFrame(t, prog)
	var ops []bytecode.Opcode
	for _, in := range main.Insns {
		ops = append(ops, in.Op)
	}
	require.Contains(t, ops, bytecode.NewList)
	require.Contains(t, ops, bytecode.Add)
}

func TestLowerHeadTail(t *testing.T) {
	prog := lowerSrc(t, "[1 2 3] head")
	main := mainFrame(t, prog)
	require.Equal(t, bytecode.ListGet, main.Insns[len(main.Insns)-1].Op)

	prog = lowerSrc(t, "[1 2 3] tail")
	main = mainFrame(t, prog)
	require.Equal(t, bytecode.NewList, main.Insns[len(main.Insns)-1].Op)
}
