package semantics

import (
	"github.com/sarchlab/hexdbt/insts"
	"github.com/sarchlab/hexdbt/ir"
	"github.com/sarchlab/hexdbt/translate"
)

var aluSemantics = map[insts.Opcode]sem{
	insts.OpA2Nop: {
		generate: func(*translate.Gen, *insts.Insn) {},
	},
	insts.OpA2Add:    {analyze: analyzeRRR, generate: genBinary((*ir.Unit).Add)},
	insts.OpA2Sub:    {analyze: analyzeRRR, generate: genBinary((*ir.Unit).Sub)},
	insts.OpA2Paddt:  {analyze: analyzePredRRR, generate: genPaddt},
	insts.OpF2Sfadd:  {analyze: analyzeRRR, generate: genBinary((*ir.Unit).FAdd)},
	insts.OpA2Tfr:    {analyze: analyzeRR, generate: genTfr},
	insts.OpA2Tfrsi:  {analyze: analyzeRI, generate: genTfrsi},
	insts.OpA2Addi:   {analyze: analyzeRR, generate: genAddi},
	insts.OpA2Tfrrcr: {analyze: analyzeTfrrcr, generate: genTfrrcr},
	insts.OpA2Tfrcrr: {analyze: analyzeTfrcrr, generate: genTfrcrr},
}

func analyzeRRR(a *translate.Analysis, insn *insts.Insn) {
	a.ReadGPR(reg(insn.Src1))
	a.ReadGPR(reg(insn.Src2))
	a.WriteGPR(reg(insn.Dst))
}

func analyzePredRRR(a *translate.Analysis, insn *insts.Insn) {
	a.ReadPred(insts.PredReg(insn.Pred))
	analyzeRRR(a, insn)
}

func analyzeRR(a *translate.Analysis, insn *insts.Insn) {
	a.ReadGPR(reg(insn.Src1))
	a.WriteGPR(reg(insn.Dst))
}

func analyzeRI(a *translate.Analysis, insn *insts.Insn) {
	a.WriteGPR(reg(insn.Dst))
}

// genBinary generates Rd = op(Rs, Rt).
func genBinary(op func(u *ir.Unit, dst, a, b ir.Var)) func(*translate.Gen, *insts.Insn) {
	return func(g *translate.Gen, insn *insts.Insn) {
		u := g.Unit()
		t := u.NewTemp()
		op(u, t, g.ReadGPR(reg(insn.Src1)), g.ReadGPR(reg(insn.Src2)))
		g.WriteGPR(reg(insn.Dst), t)
	}
}

func genPaddt(g *translate.Gen, insn *insts.Insn) {
	g.IfPredicate(insn, func() {
		genBinary((*ir.Unit).Add)(g, insn)
	})
}

func genTfr(g *translate.Gen, insn *insts.Insn) {
	u := g.Unit()
	t := u.NewTemp()
	u.Mov(t, g.ReadGPR(reg(insn.Src1)))
	g.WriteGPR(reg(insn.Dst), t)
}

func genTfrsi(g *translate.Gen, insn *insts.Insn) {
	u := g.Unit()
	t := u.NewTemp()
	u.Movi(t, int64(insn.Imm))
	g.WriteGPR(reg(insn.Dst), t)
}

func genAddi(g *translate.Gen, insn *insts.Insn) {
	u := g.Unit()
	t := u.NewTemp()
	u.Addi(t, g.ReadGPR(reg(insn.Src1)), int64(insn.Imm))
	g.WriteGPR(reg(insn.Dst), t)
}

func analyzeTfrrcr(a *translate.Analysis, insn *insts.Insn) {
	a.ReadGPR(reg(insn.Src1))
	a.WriteGPR(insts.ControlReg(insn.Dst))
}

func genTfrrcr(g *translate.Gen, insn *insts.Insn) {
	u := g.Unit()
	t := u.NewTemp()
	u.Mov(t, g.ReadGPR(reg(insn.Src1)))
	g.WriteGPR(insts.ControlReg(insn.Dst), t)
}

func analyzeTfrcrr(a *translate.Analysis, insn *insts.Insn) {
	a.ReadGPR(insts.ControlReg(insn.Src1))
	a.WriteGPR(reg(insn.Dst))
}

func genTfrcrr(g *translate.Gen, insn *insts.Insn) {
	u := g.Unit()
	t := u.NewTemp()
	u.Mov(t, g.ReadGPR(insts.ControlReg(insn.Src1)))
	g.WriteGPR(reg(insn.Dst), t)
}
