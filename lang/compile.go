package lang

// Compile tokenizes source and runs it through an Optimizer, returning
// the optimized instruction stream ready for NewVirtualMachine. This is
// the data-flow glue spec.md §2 draws as
// "source text -> Tokenizer -> Instruction[] -> Optimizer -> Instruction[]".
func Compile(source string, optimizer *Optimizer) []Instruction {
	tokens := NewTokenizer(source).Tokenize()
	if optimizer == nil {
		return tokens
	}
	return optimizer.Optimize(tokens)
}
