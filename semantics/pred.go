package semantics

import (
	"github.com/sarchlab/hexdbt/insts"
	"github.com/sarchlab/hexdbt/ir"
	"github.com/sarchlab/hexdbt/translate"
)

var predSemantics = map[insts.Opcode]sem{
	insts.OpC2Cmpeq: {
		analyze: func(a *translate.Analysis, insn *insts.Insn) {
			a.ReadGPR(reg(insn.Src1))
			a.ReadGPR(reg(insn.Src2))
			a.WritePred(insts.PredReg(insn.Dst))
		},
		generate: func(g *translate.Gen, insn *insts.Insn) {
			u := g.Unit()
			t := u.NewTemp()
			u.SetCond(ir.CondEQ, t, g.ReadGPR(reg(insn.Src1)), g.ReadGPR(reg(insn.Src2)))
			g.WritePred(insts.PredReg(insn.Dst), predMask(u, t))
		},
	},
	insts.OpC2Cmpeqi: {
		analyze: func(a *translate.Analysis, insn *insts.Insn) {
			a.ReadGPR(reg(insn.Src1))
			a.WritePred(insts.PredReg(insn.Dst))
		},
		generate: func(g *translate.Gen, insn *insts.Insn) {
			u := g.Unit()
			t := u.NewTemp()
			u.SetCondi(ir.CondEQ, t, g.ReadGPR(reg(insn.Src1)), int64(insn.Imm))
			g.WritePred(insts.PredReg(insn.Dst), predMask(u, t))
		},
	},
	insts.OpC2And: {
		analyze: func(a *translate.Analysis, insn *insts.Insn) {
			a.ReadPred(insts.PredReg(insn.Src1))
			a.ReadPred(insts.PredReg(insn.Src2))
			a.WritePred(insts.PredReg(insn.Dst))
		},
		generate: func(g *translate.Gen, insn *insts.Insn) {
			u := g.Unit()
			t := u.NewTemp()
			u.And(t, g.ReadPred(insts.PredReg(insn.Src1)), g.ReadPred(insts.PredReg(insn.Src2)))
			g.WritePred(insts.PredReg(insn.Dst), t)
		},
	},
}

// predMask turns a 0/1 flag into a 0x00/0xff predicate value.
func predMask(u *ir.Unit, flag ir.Var) ir.Var {
	zero := u.NewTemp()
	u.Movi(zero, 0)
	t := u.NewTemp()
	u.Sub(t, zero, flag)
	return t
}
