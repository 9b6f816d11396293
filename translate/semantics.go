package translate

import "github.com/sarchlab/hexdbt/insts"

// Semantics is the translation of one opcode.
type Semantics interface {
	// Analyze records the explicit register operands of insn. Implicit
	// effects are derived from the instruction attributes.
	Analyze(a *Analysis, insn *insts.Insn)

	// Generate emits the operations of insn.
	Generate(g *Gen, insn *insts.Insn)
}

// OpcodeTable looks up the semantics of an opcode.
type OpcodeTable interface {
	Lookup(op insts.Opcode) (Semantics, bool)
}

// Table is an OpcodeTable backed by a map.
type Table map[insts.Opcode]Semantics

// Lookup implements OpcodeTable.
func (t Table) Lookup(op insts.Opcode) (Semantics, bool) {
	sem, ok := t[op]
	return sem, ok
}
