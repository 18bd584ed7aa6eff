// Package vm implements the register-less stack machine that executes the
// bytecode ISA produced by package lower. Every frame's instructions are
// flattened into one linear word stream (matching the wire encoding in
// package bytecode exactly), labels are resolved to word offsets in a
// single prepass, and execution then walks that stream with a single
// program counter, mirroring how the reference interpreter this machine
// was modeled on lays out its rom/heap/locals.
package vm

import (
	"fmt"

	"github.com/mna/do/internal/bytecode"
)

// VM is a single-threaded interpreter over a flattened Program. It is not
// safe for concurrent use; create one per run.
type VM struct {
	Trace bool

	rom        []bytecode.Word
	pc         int
	rsp        int
	stack      []int64
	heap       []int64
	locals     []int64
	labels     map[int]int
	funcs      map[string]int
	consts     []string
	mainName   string
	mainDone   int // number of prog.Main's instructions already flattened into rom
	synthLabel int // counter for VM-internal skip-jump labels, disjoint from the lowerer's (id < 0)

	out writer
}

// writer is the subset of io.Writer the VM needs for print/print_list/
// print_bool; kept as an unexported interface so tests can capture output
// without pulling in io directly here.
type writer interface {
	WriteString(string) (int, error)
}

// New builds a VM ready to run prog, writing print output to out.
func New(prog *bytecode.Program, out writer) (*VM, error) {
	m := &VM{
		locals: make([]int64, 8),
		labels: make(map[int]int),
		funcs:  make(map[string]int),
		out:    out,
	}
	if err := m.Extend(prog); err != nil {
		return nil, err
	}
	return m, nil
}

// Extend loads whatever prog has gained since the last New/Extend call:
// every frame it doesn't already know about in full, plus any instructions
// appended to the tail of the main frame. It never resets pc, so the REPL
// can call Extend after each accepted line and then call Run again to
// resume execution exactly where the previous line left off, with the
// operand stack, heap and locals all carried over.
//
// New frames (a fn or quotation introduced by the line just accepted) are
// encoded words like any other, sitting physically in the rom right next
// to wherever main's own code happens to resume. If main has already
// started running (this isn't the very first Extend), a plain fall-through
// would walk pc straight into that unrelated function body instead of
// reaching the new main instructions, so Extend prefixes the new frame
// bytes with an unconditional Jump that skips over them; calls still reach
// that code the normal way, via CallStatic/CallDynamic's explicit address.
func (m *VM) Extend(prog *bytecode.Program) error {
	m.consts = prog.ConstPool
	m.mainName = prog.Main

	type pending struct {
		words  []bytecode.Word
		name   string
		labels map[int]int // label id -> offset within words
	}
	var newFrames []pending
	for _, frame := range prog.Frames {
		if frame.Name == prog.Main {
			continue
		}
		if _, ok := m.funcs[frame.Name]; ok {
			continue
		}
		p := pending{name: frame.Name, labels: map[int]int{}}
		for _, ins := range frame.Insns {
			if ins.Op == bytecode.Label {
				p.labels[int(ins.Arg)] = len(p.words)
			}
			p.words = append(p.words, ins.Encode()...)
		}
		newFrames = append(newFrames, p)
	}

	main, ok := prog.FrameByName(prog.Main)
	if !ok {
		return fmt.Errorf("vm: no %q frame in program", prog.Main)
	}
	_, mainAlreadyRunning := m.funcs[prog.Main]

	if len(newFrames) > 0 {
		prefix := 0
		if mainAlreadyRunning {
			prefix = bytecode.Jump.Width()
		}
		base := len(m.rom) + prefix
		for _, p := range newFrames {
			m.funcs[p.name] = base
			for id, off := range p.labels {
				m.labels[id] = base + off
			}
			base += len(p.words)
		}
		if mainAlreadyRunning {
			skip := m.nextSyntheticLabel()
			m.labels[skip] = base
			m.rom = append(m.rom, bytecode.Instruction{Op: bytecode.Jump, Arg: int64(skip)}.Encode()...)
		}
		for _, p := range newFrames {
			m.rom = append(m.rom, p.words...)
		}
	}

	if !mainAlreadyRunning {
		m.funcs[prog.Main] = len(m.rom)
		m.pc = len(m.rom)
	}
	for _, ins := range main.Insns[m.mainDone:] {
		if ins.Op == bytecode.Label {
			m.labels[int(ins.Arg)] = len(m.rom)
		}
		m.rom = append(m.rom, ins.Encode()...)
	}
	m.mainDone = len(main.Insns)
	return nil
}

// nextSyntheticLabel returns a label id guaranteed disjoint from every id
// the lowerer hands out (those start at 0 and count up).
func (m *VM) nextSyntheticLabel() int {
	m.synthLabel--
	return m.synthLabel
}

// Run executes the program from its main entry point until the rom is
// exhausted.
func (m *VM) Run() error {
	for m.pc < len(m.rom) {
		ins, n, err := bytecode.Decode(m.rom, m.pc)
		if err != nil {
			return err
		}
		m.pc += n
		if m.Trace {
			fmt.Fprintf(traceWriter{m}, "pc=%-4d %s\n", m.pc-n, ins.String())
		}
		if err := m.step(ins); err != nil {
			return err
		}
	}
	return nil
}

type traceWriter struct{ m *VM }

func (t traceWriter) Write(p []byte) (int, error) { return t.m.out.WriteString(string(p)) }

func (m *VM) step(ins bytecode.Instruction) error {
	switch ins.Op {
	case bytecode.Push:
		m.push(ins.Arg)
	case bytecode.Pop:
		if _, err := m.pop(); err != nil {
			return err
		}
	case bytecode.NewList:
		return m.newList()
	case bytecode.PushBlock:
		m.push(ins.Arg)
	case bytecode.ListLen:
		ptr, err := m.pop()
		if err != nil {
			return err
		}
		m.push(m.heap[ptr])
	case bytecode.ListGet:
		idx, err := m.pop()
		if err != nil {
			return err
		}
		ptr, err := m.pop()
		if err != nil {
			return err
		}
		m.push(m.heap[ptr+1+idx])
	case bytecode.Dup:
		a, err := m.pop()
		if err != nil {
			return err
		}
		m.push(a)
		m.push(a)
	case bytecode.Swap:
		a, b, err := m.pop2()
		if err != nil {
			return err
		}
		m.push(a)
		m.push(b)
	case bytecode.Over:
		a, b, err := m.pop2()
		if err != nil {
			return err
		}
		m.push(b)
		m.push(a)
		m.push(b)
	case bytecode.Rot:
		a, err := m.pop()
		if err != nil {
			return err
		}
		b, err := m.pop()
		if err != nil {
			return err
		}
		c, err := m.pop()
		if err != nil {
			return err
		}
		m.push(b)
		m.push(a)
		m.push(c)
	case bytecode.Inc:
		a, err := m.pop()
		if err != nil {
			return err
		}
		m.push(a + 1)
	case bytecode.Dec:
		a, err := m.pop()
		if err != nil {
			return err
		}
		m.push(a - 1)
	case bytecode.Add:
		return m.binop(func(a, b int64) int64 { return b + a })
	case bytecode.Sub:
		return m.binop(func(a, b int64) int64 { return b - a })
	case bytecode.Mul:
		return m.binop(func(a, b int64) int64 { return b * a })
	case bytecode.Div:
		a, b, err := m.pop2()
		if err != nil {
			return err
		}
		if a == 0 {
			return fmt.Errorf("vm: division by zero")
		}
		m.push(b / a)
	case bytecode.Mod:
		a, b, err := m.pop2()
		if err != nil {
			return err
		}
		if a == 0 {
			return fmt.Errorf("vm: modulo by zero")
		}
		m.push(b % a)
	case bytecode.Gt:
		return m.cmp(func(a, b int64) bool { return b > a })
	case bytecode.GtEq:
		return m.cmp(func(a, b int64) bool { return b >= a })
	case bytecode.Lt:
		return m.cmp(func(a, b int64) bool { return b < a })
	case bytecode.LtEq:
		return m.cmp(func(a, b int64) bool { return b <= a })
	case bytecode.Eq:
		return m.cmp(func(a, b int64) bool { return b == a })
	case bytecode.Print:
		v, err := m.pop()
		if err != nil {
			return err
		}
		fmt.Fprintf(traceWriter{m}, "%d\n", v)
	case bytecode.PrintBool:
		v, err := m.pop()
		if err != nil {
			return err
		}
		if v != 0 {
			m.out.WriteString("true\n")
		} else {
			m.out.WriteString("false\n")
		}
	case bytecode.PrintList:
		ptr, err := m.pop()
		if err != nil {
			return err
		}
		m.printList(ptr)
	case bytecode.Label:
		// resolved during load; a no-op marker at run time.
	case bytecode.CallStatic:
		return m.call(m.consts[ins.Arg])
	case bytecode.CallDynamic:
		idx, err := m.pop()
		if err != nil {
			return err
		}
		return m.call(m.consts[idx])
	case bytecode.Jump:
		addr, ok := m.labels[int(ins.Arg)]
		if !ok {
			return fmt.Errorf("vm: unresolved label %d", ins.Arg)
		}
		m.pc = addr
	case bytecode.JumpIfFalse:
		cond, err := m.pop()
		if err != nil {
			return err
		}
		if cond == 0 {
			addr, ok := m.labels[int(ins.Arg)]
			if !ok {
				return fmt.Errorf("vm: unresolved label %d", ins.Arg)
			}
			m.pc = addr
		}
	case bytecode.Return:
		m.pc = m.rsp
		m.rsp = 0
	case bytecode.Store:
		v, err := m.pop()
		if err != nil {
			return err
		}
		m.storeLocal(int(ins.Arg), v)
	case bytecode.Load:
		m.push(m.loadLocal(int(ins.Arg)))
	default:
		return fmt.Errorf("vm: unhandled opcode %s", ins.Op)
	}
	return nil
}

// call jumps to name's entry point, recording the current pc as the
// single return address. Like the reference interpreter this is modeled
// on, there is exactly one return slot: a function that calls another
// function before the first one returns clobbers it, and the outer
// function's Return then resumes at the inner call's return address. The
// checker accepts programs that nest calls this way (a fn calling a fn, or
// map/filter/fold/foreach inside a fn body); they do not run correctly here.
func (m *VM) call(name string) error {
	addr, ok := m.funcs[name]
	if !ok {
		return fmt.Errorf("vm: call to undefined function %q", name)
	}
	m.rsp = m.pc
	m.pc = addr
	return nil
}

func (m *VM) newList() error {
	length, err := m.pop()
	if err != nil {
		return err
	}
	ptr := m.alloc(int(length) + 1)
	m.heap[ptr] = length
	for i := int64(0); i < length; i++ {
		el, err := m.pop()
		if err != nil {
			return err
		}
		m.heap[ptr+1+i] = el
	}
	m.push(ptr)
	return nil
}

func (m *VM) printList(ptr int64) {
	length := m.heap[ptr]
	m.out.WriteString("[")
	for i := int64(0); i < length; i++ {
		if i > 0 {
			m.out.WriteString(" ")
		}
		fmt.Fprintf(traceWriter{m}, "%d", m.heap[ptr+1+i])
	}
	m.out.WriteString("]\n")
}

func (m *VM) alloc(size int) int64 {
	ptr := len(m.heap)
	m.heap = append(m.heap, make([]int64, size)...)
	return int64(ptr)
}

func (m *VM) push(v int64) { m.stack = append(m.stack, v) }

func (m *VM) pop() (int64, error) {
	if len(m.stack) == 0 {
		return 0, fmt.Errorf("vm: operand stack underflow")
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func (m *VM) pop2() (a, b int64, err error) {
	a, err = m.pop()
	if err != nil {
		return 0, 0, err
	}
	b, err = m.pop()
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func (m *VM) binop(f func(a, b int64) int64) error {
	a, b, err := m.pop2()
	if err != nil {
		return err
	}
	m.push(f(a, b))
	return nil
}

func (m *VM) cmp(f func(a, b int64) bool) error {
	a, b, err := m.pop2()
	if err != nil {
		return err
	}
	if f(a, b) {
		m.push(1)
	} else {
		m.push(0)
	}
	return nil
}

func (m *VM) storeLocal(idx int, v int64) {
	for idx >= len(m.locals) {
		m.locals = append(m.locals, 0)
	}
	m.locals[idx] = v
}

func (m *VM) loadLocal(idx int) int64 {
	if idx >= len(m.locals) {
		return 0
	}
	return m.locals[idx]
}
