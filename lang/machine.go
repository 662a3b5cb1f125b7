package lang

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const defaultTapeSize = 128

// VM executes an optimized instruction stream against a cell tape and an
// auxiliary value stack. All state is private; callers drive it through
// Run and observe results through the output stream (see WithIO) and
// Ticks. Mirrors the
// teacher's VM struct shape (vm/vm.go) — a fixed-size register/memory
// array, a program slice, buffered stdio, and an optional debug hook —
// generalized from a 32-register machine to a cell tape plus aux stack.
type VM struct {
	instructions []Instruction
	jt           jumpTable

	ip    int
	cp    int
	ticks uint64

	memory []uint32
	stack  *valueStack

	printMode PrintMode

	stdin  *bufio.Reader
	stdout *bufio.Writer

	debugger *DebugServer
	logger   *logrus.Logger
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithTapeSize overrides the default 128-cell tape length.
func WithTapeSize(n int) Option {
	return func(vm *VM) { vm.memory = make([]uint32, n) }
}

// WithDebugger attaches a debug server; the VM sends one DebugRecord per
// dispatched instruction to it synchronously.
func WithDebugger(server *DebugServer) Option {
	return func(vm *VM) { vm.debugger = server }
}

// WithIO overrides stdin/stdout (tests use this to capture output
// in-process rather than through the real process streams).
func WithIO(in io.Reader, out io.Writer) Option {
	return func(vm *VM) {
		vm.stdin = bufio.NewReader(in)
		vm.stdout = bufio.NewWriter(out)
	}
}

// WithLogger overrides the logger stored on the VM. The VM writes no
// log entries itself; a failed debugger send is logged by the
// DebugServer through the logger it was constructed with.
func WithLogger(logger *logrus.Logger) Option {
	return func(vm *VM) { vm.logger = logger }
}

// NewVirtualMachine builds the jump table for instructions and
// constructs a VM ready to run. It fails with ErrUnmatchedBracket if any
// JzCell/JnzCell/JzStack/JnzStack is unpaired (spec.md §4.D).
func NewVirtualMachine(instructions []Instruction, opts ...Option) (*VM, error) {
	jt, err := buildJumpTable(instructions)
	if err != nil {
		return nil, err
	}

	vm := &VM{
		instructions: instructions,
		jt:           jt,
		memory:       make([]uint32, defaultTapeSize),
		stack:        newValueStack(),
		printMode:    Char,
		stdin:        bufio.NewReader(os.Stdin),
		stdout:       bufio.NewWriter(os.Stdout),
		logger:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm, nil
}

// Ticks reports the number of instructions dispatched so far.
func (vm *VM) Ticks() uint64 { return vm.ticks }

// Run executes the instruction stream to completion, flushing stdout
// when it finishes. It returns nil on a clean Terminate/end-of-stream
// exit, or the fatal error that stopped execution.
func (vm *VM) Run() error {
	defer vm.stdout.Flush()
	if vm.debugger != nil {
		defer vm.debugger.Close()
	}

	for vm.ip < len(vm.instructions) {
		if err := vm.step(); err != nil {
			return err
		}
	}
	return nil
}

// step dispatches exactly one instruction and advances ip/ticks.
func (vm *VM) step() error {
	instr := vm.instructions[vm.ip]

	if vm.debugger != nil {
		if !vm.debugger.Send(DebugRecord{Instr: &instr}) {
			vm.debugger = nil
		}
	}

	halt, err := vm.dispatch(instr)
	if err != nil {
		return err
	}

	vm.ip++
	vm.ticks++

	if halt {
		vm.ip = len(vm.instructions)
	}
	return nil
}

// dispatch executes one instruction's effect. The returned bool reports
// a clean Terminate halt.
func (vm *VM) dispatch(instr Instruction) (bool, error) {
	switch instr.Opcode {
	case IncPtr:
		vm.cp += int(instr.argOrOne())
	case DecPtr:
		delta := int(instr.argOrOne())
		if delta > vm.cp {
			vm.cp = 0
		} else {
			vm.cp -= delta
		}
	case Inc:
		if err := vm.checkBounds(instr); err != nil {
			return false, err
		}
		vm.memory[vm.cp] += instr.argOrOne()
	case Dec:
		if err := vm.checkBounds(instr); err != nil {
			return false, err
		}
		delta := instr.argOrOne()
		if delta > vm.memory[vm.cp] {
			vm.memory[vm.cp] = 0
		} else {
			vm.memory[vm.cp] -= delta
		}
	case Clear:
		if err := vm.checkBounds(instr); err != nil {
			return false, err
		}
		vm.memory[vm.cp] = 0
	case Double:
		if err := vm.checkBounds(instr); err != nil {
			return false, err
		}
		vm.memory[vm.cp] *= 2
	case Halve:
		if err := vm.checkBounds(instr); err != nil {
			return false, err
		}
		vm.memory[vm.cp] /= 2
	case Push:
		if err := vm.checkBounds(instr); err != nil {
			return false, err
		}
		vm.stack.push(vm.memory[vm.cp])
	case Pop:
		if err := vm.checkBounds(instr); err != nil {
			return false, err
		}
		vm.memory[vm.cp] = vm.stack.popOr(0)
	case Dup:
		top, ok := vm.stack.peek()
		if !ok {
			return false, positionErr(ErrStackUnderflow, instr)
		}
		vm.stack.push(top)
	case Swap:
		// Does not actually swap: pushes the second value, then the top
		// value, so the top two are duplicated in their original order
		// without removing the originals. Preserved verbatim per
		// spec.md §9 (the original tool's observed behaviour).
		top, ok0 := vm.stack.peekAt(0)
		second, ok1 := vm.stack.peekAt(1)
		if !ok0 || !ok1 {
			return false, positionErr(ErrStackUnderflow, instr)
		}
		vm.stack.push(second)
		vm.stack.push(top)
	case Count:
		if err := vm.checkBounds(instr); err != nil {
			return false, err
		}
		vm.memory[vm.cp] = uint32(vm.stack.size())
	case Compare:
		if err := vm.checkBounds(instr); err != nil {
			return false, err
		}
		top, ok0 := vm.stack.peekAt(0)
		second, ok1 := vm.stack.peekAt(1)
		if !ok0 || !ok1 {
			return false, positionErr(ErrStackUnderflow, instr)
		}
		if top == second {
			vm.memory[vm.cp] = 1
		} else {
			vm.memory[vm.cp] = 0
		}
	case ChrMod:
		vm.printMode = Char
	case IntMod:
		vm.printMode = Integer
	case Print:
		if err := vm.checkBounds(instr); err != nil {
			return false, err
		}
		if err := vm.print(instr); err != nil {
			return false, err
		}
	case Read:
		if err := vm.checkBounds(instr); err != nil {
			return false, err
		}
		if err := vm.read(instr); err != nil {
			return false, err
		}
	case Str:
		if err := vm.pushString(instr); err != nil {
			return false, err
		}
	case JzCell:
		if err := vm.checkBounds(instr); err != nil {
			return false, err
		}
		if vm.memory[vm.cp] == 0 {
			vm.ip = vm.jt[vm.ip]
		}
	case JnzCell:
		if err := vm.checkBounds(instr); err != nil {
			return false, err
		}
		if vm.memory[vm.cp] != 0 {
			vm.ip = vm.jt[vm.ip]
		}
	case JzStack:
		top, ok := vm.stack.peek()
		if !ok || top == 0 {
			vm.ip = vm.jt[vm.ip]
		}
	case JnzStack:
		top, ok := vm.stack.peek()
		if ok && top != 0 {
			vm.ip = vm.jt[vm.ip]
		}
	case Terminate:
		return true, nil
	case BinMod, HexMod, JmpStack, Break:
		return false, positionErr(ErrUnimplemented, instr)
	default:
		return false, positionErr(ErrUnimplemented, instr)
	}
	return false, nil
}

// checkBounds reports ErrTapeOutOfBounds if cp has moved past the tape.
// IncPtr/DecPtr themselves never fail (spec.md §4.D leaves growth vs.
// failure to the implementer and names TapeOutOfBounds as the canonical
// choice); any instruction that actually touches memory[cp] checks here.
func (vm *VM) checkBounds(instr Instruction) error {
	if vm.cp < 0 || vm.cp >= len(vm.memory) {
		return positionErr(ErrTapeOutOfBounds, instr)
	}
	return nil
}

func (vm *VM) print(instr Instruction) error {
	value := vm.memory[vm.cp]
	switch vm.printMode {
	case Integer:
		fmt.Fprintf(vm.stdout, "%d", value)
	default:
		if value > utf8.MaxRune || !utf8.ValidRune(rune(value)) {
			return positionErr(ErrInvalidChar, instr)
		}
		vm.stdout.WriteRune(rune(value))
	}
	return nil
}

func (vm *VM) read(instr Instruction) error {
	vm.stdout.Flush()

	n := vm.stack.popOr(512)
	if n == 0 {
		n = 512
	}

	buf := make([]byte, n)
	read, err := io.ReadFull(vm.stdin, buf)
	buf = buf[:read]
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return positionErr(ErrIO, instr)
	}

	if n == 1 {
		if len(buf) > 0 {
			vm.memory[vm.cp] = uint32(buf[0])
		} else {
			vm.memory[vm.cp] = 0
		}
		return nil
	}

	vm.stack.push(0)
	for i := len(buf) - 1; i >= 0; i-- {
		vm.stack.push(uint32(buf[i]))
	}
	return nil
}

func (vm *VM) pushString(instr Instruction) error {
	resolved, err := resolveEscapes(instr.Value)
	if err != nil {
		return positionErr(err, instr)
	}

	bytes := []byte(resolved)
	vm.stack.push(0)
	for i := len(bytes) - 1; i >= 0; i-- {
		vm.stack.push(uint32(bytes[i]))
	}
	return nil
}
