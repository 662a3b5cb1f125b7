package lang

import (
	"errors"
	"testing"
)

func assertf(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func TestTokenizeOperators(t *testing.T) {
	tokens := NewTokenizer(">+.").Tokenize()
	assertf(t, len(tokens) == 3, "want 3 tokens, got %d", len(tokens))
	assertf(t, tokens[0].Opcode == IncPtr, "want IncPtr, got %s", tokens[0].Opcode)
	assertf(t, tokens[1].Opcode == Inc, "want Inc, got %s", tokens[1].Opcode)
	assertf(t, tokens[2].Opcode == Print, "want Print, got %s", tokens[2].Opcode)
}

func TestTokenizeSkipsWhitespaceAndComments(t *testing.T) {
	src := "  > 'this is a comment\n+"
	tokens := NewTokenizer(src).Tokenize()
	assertf(t, len(tokens) == 2, "want 2 tokens, got %d", len(tokens))
	assertf(t, tokens[1].Line == 1, "want comment's newline to advance to line 1, got %d", tokens[1].Line)
}

func TestTokenizeStringLiteral(t *testing.T) {
	tokens := NewTokenizer(`"hi\n"`).Tokenize()
	assertf(t, len(tokens) == 1, "want 1 token, got %d", len(tokens))
	assertf(t, tokens[0].Opcode == Str, "want Str, got %s", tokens[0].Opcode)
	assertf(t, tokens[0].Value == `hi\n`, "want raw body preserved, got %q", tokens[0].Value)
}

func TestTokenizeReportsPositionPerGlyph(t *testing.T) {
	tokens := NewTokenizer(">>[").Tokenize()
	assertf(t, tokens[2].Pos == 2, "want third glyph at column 2, got %d", tokens[2].Pos)
	assertf(t, tokens[2].Opcode == JzCell, "want JzCell, got %s", tokens[2].Opcode)
}

func TestTokenizeThenRetokenizeRoundTrips(t *testing.T) {
	// Re-emitting each token's glyph and retokenizing must reproduce the
	// same opcode sequence (string literals excepted, since their glyph
	// is the delimiter, not the body).
	src := ">><<[-]+.,:;&\\#=^bcixq!"
	first := NewTokenizer(src).Tokenize()

	rebuilt := ""
	for _, instr := range first {
		rebuilt += instr.Value
	}
	second := NewTokenizer(rebuilt).Tokenize()

	assertf(t, len(first) == len(second), "round trip changed token count: %d vs %d", len(first), len(second))
	for i := range first {
		assertf(t, first[i].Opcode == second[i].Opcode, "token %d opcode mismatch: %s vs %s", i, first[i].Opcode, second[i].Opcode)
	}
}

func TestBuildJumpTableSymmetric(t *testing.T) {
	tokens := NewTokenizer("[()]").Tokenize()
	jt, err := buildJumpTable(tokens)
	assertf(t, err == nil, "unexpected error: %v", err)
	for from, to := range jt {
		back, ok := jt[to]
		assertf(t, ok, "jump table entry %d -> %d has no return entry", from, to)
		assertf(t, back == from, "jump table not symmetric: %d -> %d -> %d", from, to, back)
	}
}

func TestBuildJumpTableUnmatchedCloser(t *testing.T) {
	tokens := NewTokenizer(">>>]").Tokenize()
	_, err := buildJumpTable(tokens)
	assertf(t, err != nil, "expected an unmatched bracket error")
	assertf(t, errors.Is(err, ErrUnmatchedBracket), "want ErrUnmatchedBracket, got %v", err)

	var posErr *PositionError
	assertf(t, errors.As(err, &posErr), "want a *PositionError, got %T", err)
	assertf(t, posErr.Line == 0 && posErr.Column == 3, "want line 0 column 3, got line %d column %d", posErr.Line, posErr.Column)
}

func TestBuildJumpTableUnmatchedOpener(t *testing.T) {
	tokens := NewTokenizer("[[>]").Tokenize()
	_, err := buildJumpTable(tokens)
	assertf(t, err != nil, "expected an unmatched bracket error")
	assertf(t, errors.Is(err, ErrUnmatchedBracket), "want ErrUnmatchedBracket, got %v", err)
}

func TestBuildJumpTableCrossFlavourNests(t *testing.T) {
	// "([)]" nests correctly across flavours because both share one
	// pairing stack.
	tokens := NewTokenizer("([)]").Tokenize()
	_, err := buildJumpTable(tokens)
	assertf(t, err == nil, "expected cross-flavour nesting to succeed, got %v", err)
}
