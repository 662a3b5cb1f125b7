package lang

import (
	"strings"
	"unicode"
)

// Tokenizer turns a UTF-8 source string into a flat Instruction stream.
// It never fails: unrecognised characters are silently skipped, and
// malformed programs (unmatched brackets) are caught downstream by the
// virtual machine's jump-table construction.
//
// Mirrors the teacher's line-oriented preprocessLine cursor bookkeeping
// (vm/parse.go), generalized from line-based assembly source to a raw
// character stream per spec.md §4.B.
type Tokenizer struct {
	stream []rune
	pos    int // absolute cursor into stream; -1 before the first char
	column uint32
	line   uint32
}

// NewTokenizer constructs a Tokenizer over source.
func NewTokenizer(source string) *Tokenizer {
	return &Tokenizer{
		stream: []rune(source),
		pos:    -1,
	}
}

// Tokenize runs the tokenizer to completion and returns the instruction
// stream.
func (t *Tokenizer) Tokenize() []Instruction {
	tokens := make([]Instruction, 0, len(t.stream))

	for t.canAdvance(1) {
		t.skipWhitespace()
		if !t.canAdvance(1) {
			break
		}

		chr := t.peek(1)
		posLine := [2]uint32{t.column, t.line}

		if idx := strings.IndexRune(operatorGlyphs, chr); idx >= 0 {
			t.skip(1)
			tokens = append(tokens, Instruction{
				Pos:    posLine[0],
				Line:   posLine[1],
				Value:  string(chr),
				Opcode: operatorOpcodes[idx],
			})
			continue
		}

		switch chr {
		case '"':
			t.skip(1)
			var buf strings.Builder
			for t.canAdvance(1) && t.peek(1) != '"' {
				buf.WriteRune(t.peek(1))
				t.skip(1)
			}
			// consume the closing quote, if any
			t.skip(1)
			tokens = append(tokens, Instruction{
				Pos:    posLine[0],
				Line:   posLine[1],
				Value:  buf.String(),
				Opcode: Str,
			})
		case '\'':
			for t.canAdvance(1) && t.peek(1) != '\n' {
				t.skip(1)
			}
			t.skip(1)
		default:
			t.skip(1)
		}
	}

	return tokens
}

func (t *Tokenizer) canAdvance(n int) bool {
	return t.pos+n < len(t.stream)
}

// peek returns the rune n positions ahead of the cursor, or the NUL rune
// if that position is past the end of the stream.
func (t *Tokenizer) peek(n int) rune {
	if !t.canAdvance(n) {
		return 0
	}
	return t.stream[t.pos+n]
}

func (t *Tokenizer) skip(n int) {
	for i := 0; i < n; i++ {
		if t.peek(1) == '\n' {
			t.column = 0
			t.line++
		} else {
			t.column++
		}
		t.pos++
	}
}

func (t *Tokenizer) skipWhitespace() {
	for unicode.IsSpace(t.peek(1)) {
		t.skip(1)
	}
}
