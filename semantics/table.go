// Package semantics implements the analyze and generate steps of every
// instruction in the insts catalog.
package semantics

import (
	"github.com/sarchlab/hexdbt/insts"
	"github.com/sarchlab/hexdbt/translate"
)

// sem is the translation of one opcode given as a pair of functions.
type sem struct {
	analyze  func(a *translate.Analysis, insn *insts.Insn)
	generate func(g *translate.Gen, insn *insts.Insn)
}

func (s sem) Analyze(a *translate.Analysis, insn *insts.Insn) {
	if s.analyze != nil {
		s.analyze(a, insn)
	}
}

func (s sem) Generate(g *translate.Gen, insn *insts.Insn) {
	s.generate(g, insn)
}

// Table returns the semantics of every catalog instruction.
func Table() translate.Table {
	t := translate.Table{}
	for _, group := range []map[insts.Opcode]sem{
		aluSemantics,
		predSemantics,
		memSemantics,
		branchSemantics,
		hvxSemantics,
	} {
		for op, s := range group {
			t[op] = s
		}
	}
	return t
}

// Without returns a copy of t without the given opcodes.
func Without(t translate.Table, ops ...insts.Opcode) translate.Table {
	out := make(translate.Table, len(t))
	for op, s := range t {
		out[op] = s
	}
	for _, op := range ops {
		delete(out, op)
	}
	return out
}

func reg(n uint8) insts.Reg {
	return insts.Reg(n)
}
