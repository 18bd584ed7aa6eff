// Package bytecode defines the do instruction set: the opcode enum, its
// word encoding, and the stack-frame/program container the lowerer
// produces and the VM and native emitter both consume. The encoding here is
// the wire format: every Instruction round-trips through Encode/Decode
// exactly, byte (word) for word.
package bytecode

import "fmt"

// Opcode is a single instruction tag. Values match the table in the
// language specification exactly; gaps (0x06) are reserved.
type Opcode uint8

//nolint:revive
const (
	Push        Opcode = 0x01
	Pop         Opcode = 0x02
	NewList     Opcode = 0x03
	ListLen     Opcode = 0x04
	ListGet     Opcode = 0x05
	PushBlock   Opcode = 0x07
	Load        Opcode = 0x08
	Store       Opcode = 0x09
	Dup         Opcode = 0x0A
	Over        Opcode = 0x0B
	Rot         Opcode = 0x0C
	Swap        Opcode = 0x0D
	Add         Opcode = 0x0E
	Sub         Opcode = 0x0F
	Mul         Opcode = 0x10
	Div         Opcode = 0x11
	Mod         Opcode = 0x12
	Gt          Opcode = 0x13
	Lt          Opcode = 0x14
	GtEq        Opcode = 0x15
	LtEq        Opcode = 0x16
	Eq          Opcode = 0x17
	Print       Opcode = 0x18
	PrintList   Opcode = 0x19
	Label       Opcode = 0x1A
	CallStatic  Opcode = 0x1B
	CallDynamic Opcode = 0x1C
	Jump        Opcode = 0x1D
	JumpIfFalse Opcode = 0x1E
	Return      Opcode = 0x1F
	Inc         Opcode = 0x20
	Dec         Opcode = 0x21
	PrintBool   Opcode = 0x22
)

var opcodeNames = map[Opcode]string{
	Push:        "push",
	Pop:         "pop",
	NewList:     "new_list",
	ListLen:     "list_len",
	ListGet:     "list_get",
	PushBlock:   "push_block",
	Load:        "load",
	Store:       "store",
	Dup:         "dup",
	Over:        "over",
	Rot:         "rot",
	Swap:        "swap",
	Add:         "add",
	Sub:         "sub",
	Mul:         "mul",
	Div:         "div",
	Mod:         "mod",
	Gt:          "gt",
	Lt:          "lt",
	GtEq:        "gt_eq",
	LtEq:        "lt_eq",
	Eq:          "eq",
	Print:       "print",
	PrintList:   "print_list",
	Label:       "label",
	CallStatic:  "call_static",
	CallDynamic: "call_dynamic",
	Jump:        "jump",
	JumpIfFalse: "jump_if_false",
	Return:      "return",
	Inc:         "inc",
	Dec:         "dec",
	PrintBool:   "print_bool",
}

func (o Opcode) String() string {
	if s, ok := opcodeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("opcode(0x%02x)", uint8(o))
}

// hasOperand reports whether an opcode's encoded width is 2 words (opcode +
// operand) rather than 1.
func hasOperand(o Opcode) bool {
	switch o {
	case Push, PushBlock, Load, Store, Label, CallStatic, Jump, JumpIfFalse:
		return true
	default:
		return false
	}
}

// Width reports the encoded word width of an instruction with this opcode.
func (o Opcode) Width() int {
	if hasOperand(o) {
		return 2
	}
	return 1
}
