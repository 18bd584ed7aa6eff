package bytecode

import "fmt"

// Word is a single host-width cell of code, stack, heap or locals storage.
type Word = uint64

// Instruction is one decoded bytecode instruction. Arg is meaningful only
// for opcodes whose Width is 2 (Push's literal value; PushBlock/CallStatic's
// constant-pool index; Load/Store's local-slot index; Label/Jump/
// JumpIfFalse's label id).
type Instruction struct {
	Op  Opcode
	Arg int64
}

func (i Instruction) String() string {
	if i.Op.Width() == 1 {
		return i.Op.String()
	}
	return fmt.Sprintf("%s %d", i.Op, i.Arg)
}

// Encode serializes the instruction to its 1- or 2-word form.
func (i Instruction) Encode() []Word {
	if i.Op.Width() == 1 {
		return []Word{Word(i.Op)}
	}
	return []Word{Word(i.Op), Word(uint64(i.Arg))}
}

// Decode parses one instruction starting at words[pos], returning the
// instruction and the number of words consumed.
func Decode(words []Word, pos int) (Instruction, int, error) {
	if pos >= len(words) {
		return Instruction{}, 0, fmt.Errorf("bytecode: decode past end of stream at %d", pos)
	}
	op := Opcode(words[pos])
	width := op.Width()
	if pos+width > len(words) {
		return Instruction{}, 0, fmt.Errorf("bytecode: truncated instruction %s at %d", op, pos)
	}
	if width == 1 {
		return Instruction{Op: op}, 1, nil
	}
	return Instruction{Op: op, Arg: int64(words[pos+1])}, 2, nil
}

// EncodeAll serializes a sequence of instructions into one flat word stream.
func EncodeAll(insns []Instruction) []Word {
	var out []Word
	for _, in := range insns {
		out = append(out, in.Encode()...)
	}
	return out
}

// DecodeAll parses a flat word stream back into instructions. It is the
// left inverse of EncodeAll and is used by tests to assert the round-trip
// property required of the ISA.
func DecodeAll(words []Word) ([]Instruction, error) {
	var out []Instruction
	pos := 0
	for pos < len(words) {
		in, width, err := Decode(words, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
		pos += width
	}
	return out, nil
}
