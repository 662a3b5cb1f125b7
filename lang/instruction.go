package lang

import "strconv"

// Instruction is the single record shared by the tokenizer, optimizer and
// virtual machine. It is deliberately small and cheap to copy: all three
// layers pass it by value, the way the teacher's bytecode.Instruction is
// an 8-byte value type copied through parse/compile/exec.
type Instruction struct {
	// Pos is the column within Line, counted from the start of the line.
	Pos uint32
	// Line is the 0-based source line number.
	Line uint32
	// Value is the textual value: the literal body for Str, the glyph for
	// an ordinary single-character instruction, or optimizedValue for
	// anything the optimizer produced or rewrote.
	Value string
	// Opcode identifies the operation.
	Opcode Opcode
	// Argument is the optional run-length count. Present on
	// optimizer-produced Inc/Dec/IncPtr/DecPtr; absent (treated as 1) on
	// directly-lexed instructions.
	Argument *uint32
	// Optimized marks an instruction an optimizer pass produced or
	// rewrote. Debugger display only; the VM ignores it.
	Optimized bool
}

// argOrOne returns Argument's value, defaulting to 1 when absent — the
// convention every run-length-aware dispatch case and optimizer pass
// shares.
func (i Instruction) argOrOne() uint32 {
	if i.Argument == nil {
		return 1
	}
	return *i.Argument
}

func arg(n uint32) *uint32 {
	return &n
}

func (i Instruction) String() string {
	if i.Argument != nil {
		return i.Opcode.String() + "(" + strconv.FormatUint(uint64(*i.Argument), 10) + ")"
	}
	return i.Opcode.String()
}
