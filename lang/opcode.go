package lang

// Opcode identifies the operation an Instruction performs. The set is
// closed: every variant below is either produced directly by the
// tokenizer from a source glyph, or (Clear only) synthesised by the
// optimizer.
type Opcode int

const (
	IncPtr Opcode = iota // >
	DecPtr                // <
	Inc                   // +
	Dec                   // -
	Double                // *
	Halve                 // /
	Print                 // .
	Read                  // ,
	Push                  // :
	Pop                   // ;
	Dup                   // &
	Swap                  // \
	Count                 // #
	Compare               // =
	JzCell                // [
	JnzCell               // ]
	JzStack               // (
	JnzStack              // )
	JmpStack              // ^
	Str                   // "
	Break                 // !
	BinMod                // b
	ChrMod                // c
	IntMod                // i
	HexMod                // x
	Terminate             // q
	Clear                 // optimizer-synthesised only, no source glyph
)

// optimizedValue is the sentinel Instruction.Value for instructions
// produced or rewritten by the optimizer, rather than lexed directly.
const optimizedValue = "__optimizer_generated"

var opcodeNames = map[Opcode]string{
	IncPtr:    "IncPtr",
	DecPtr:    "DecPtr",
	Inc:       "Inc",
	Dec:       "Dec",
	Double:    "Double",
	Halve:     "Halve",
	Print:     "Print",
	Read:      "Read",
	Push:      "Push",
	Pop:       "Pop",
	Dup:       "Dup",
	Swap:      "Swap",
	Count:     "Count",
	Compare:   "Compare",
	JzCell:    "JzCell",
	JnzCell:   "JnzCell",
	JzStack:   "JzStack",
	JnzStack:  "JnzStack",
	JmpStack:  "JmpStack",
	Str:       "Str",
	Break:     "Break",
	BinMod:    "BinMod",
	ChrMod:    "ChrMod",
	IntMod:    "IntMod",
	HexMod:    "HexMod",
	Terminate: "Terminate",
	Clear:     "Clear",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "?unknown?"
}

// operatorGlyphs is position-indexed against operatorOpcodes: the
// tokenizer's fixed glyph-to-opcode table. '@' is reserved (see
// SPEC_FULL.md / original Switch-Reverse pair) and deliberately absent —
// it must never be emitted.
const operatorGlyphs = "<>[]()+-*/\\.,:;&^#=bciqx!"

var operatorOpcodes = []Opcode{
	DecPtr,
	IncPtr,
	JzCell,
	JnzCell,
	JzStack,
	JnzStack,
	Inc,
	Dec,
	Double,
	Halve,
	Swap,
	Print,
	Read,
	Push,
	Pop,
	Dup,
	JmpStack,
	Count,
	Compare,
	BinMod,
	ChrMod,
	IntMod,
	Terminate,
	HexMod,
	Break,
}

func (op Opcode) isCellOpener() bool  { return op == JzCell }
func (op Opcode) isCellCloser() bool  { return op == JnzCell }
func (op Opcode) isStackOpener() bool { return op == JzStack }
func (op Opcode) isStackCloser() bool { return op == JnzStack }
func (op Opcode) isOpener() bool      { return op.isCellOpener() || op.isStackOpener() }
func (op Opcode) isCloser() bool      { return op.isCellCloser() || op.isStackCloser() }
