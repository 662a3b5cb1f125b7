package lang

import "testing"

func TestOptimizeClearLoopCollapsesToClear(t *testing.T) {
	tokens := NewTokenizer("[-]").Tokenize()
	out := NewOptimizer([]OptimizerPass{OptimizeClearLoops}, 1).Optimize(tokens)
	assertf(t, len(out) == 1, "want 1 instruction, got %d", len(out))
	assertf(t, out[0].Opcode == Clear, "want Clear, got %s", out[0].Opcode)
	assertf(t, out[0].Optimized, "want Optimized flag set")
}

func TestOptimizeRunLengthCollapsesValueChain(t *testing.T) {
	// One instruction before the run, the folded run, one after:
	// the fold itself must shrink "+++++--" to exactly one instruction.
	tokens := NewTokenizer(">+++++--<").Tokenize()
	out := NewOptimizer([]OptimizerPass{OptimizeIncDecValChains}, 1).Optimize(tokens)
	assertf(t, len(out) == 3, "want 3 instructions after folding the run, got %d", len(out))
	assertf(t, out[1].Opcode == Inc, "want folded run to be Inc, got %s", out[1].Opcode)
	assertf(t, out[1].Argument != nil && *out[1].Argument == 3, "want net magnitude 3, got %v", out[1].Argument)
}

func TestOptimizeRunLengthEqualCountsEmitsZeroDec(t *testing.T) {
	tokens := NewTokenizer("++--").Tokenize()
	out := NewOptimizer([]OptimizerPass{OptimizeIncDecValChains}, 1).Optimize(tokens)
	assertf(t, len(out) == 1, "want 1 folded instruction, got %d", len(out))
	assertf(t, out[0].Opcode == Dec, "want Dec on a tie, got %s", out[0].Opcode)
	assertf(t, out[0].Argument != nil && *out[0].Argument == 0, "want magnitude 0, got %v", out[0].Argument)
}

func TestOptimizeValChainIdempotent(t *testing.T) {
	tokens := NewTokenizer("+++++---").Tokenize()
	optimizer := NewOptimizer([]OptimizerPass{OptimizeIncDecValChains}, 1)
	once := optimizer.Optimize(tokens)
	twice := optimizer.Optimize(once)

	assertf(t, len(once) == len(twice), "pass not idempotent: %d vs %d instructions", len(once), len(twice))
	for i := range once {
		assertf(t, once[i].Opcode == twice[i].Opcode, "instruction %d opcode changed on reapply", i)
		a, b := once[i].Argument, twice[i].Argument
		if a == nil || b == nil {
			assertf(t, a == b, "instruction %d argument presence changed on reapply", i)
			continue
		}
		assertf(t, *a == *b, "instruction %d argument changed on reapply: %d vs %d", i, *a, *b)
	}
}

func TestOptimizePreservesBracketPairingCount(t *testing.T) {
	// A loop that is not the 3-instruction clear-loop shape must survive
	// PtrChains/ValChains folding with its bracket pair intact; only
	// ClearLoops ever changes the bracket count.
	src := ">>[+++>>>---<<<]"
	tokens := NewTokenizer(src).Tokenize()
	optimizer := NewOptimizer([]OptimizerPass{OptimizeIncDecPtrChains, OptimizeIncDecValChains}, 2)

	countBrackets := func(instrs []Instruction) int {
		n := 0
		for _, instr := range instrs {
			if instr.Opcode.isOpener() || instr.Opcode.isCloser() {
				n++
			}
		}
		return n
	}

	before := countBrackets(tokens)
	after := countBrackets(optimizer.Optimize(tokens))
	assertf(t, before == after, "bracket count changed across non-clearing passes: %d vs %d", before, after)
}

func TestDefaultOptimizerPipelineOrder(t *testing.T) {
	optimizer := DefaultOptimizer()
	want := []OptimizerPass{OptimizeIncDecPtrChains, OptimizeIncDecValChains, OptimizeClearLoops}
	assertf(t, len(optimizer.passes) == len(want), "want %d passes, got %d", len(want), len(optimizer.passes))
	for i, pass := range want {
		assertf(t, optimizer.passes[i] == pass, "pass %d mismatch", i)
	}
	assertf(t, optimizer.iterations == 2, "want 2 iterations, got %d", optimizer.iterations)
}
