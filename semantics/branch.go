package semantics

import (
	"github.com/sarchlab/hexdbt/emu"
	"github.com/sarchlab/hexdbt/insts"
	"github.com/sarchlab/hexdbt/ir"
	"github.com/sarchlab/hexdbt/translate"
)

var branchSemantics = map[insts.Opcode]sem{
	insts.OpJ2Jump: {
		generate: func(g *translate.Gen, insn *insts.Insn) {
			g.Jump(insn.Imm)
		},
	},
	insts.OpJ2Jumpt: {
		analyze: func(a *translate.Analysis, insn *insts.Insn) {
			a.ReadPred(insts.PredReg(insn.Pred))
		},
		generate: func(g *translate.Gen, insn *insts.Insn) {
			g.CondJump(g.PredCondition(insn), insn.Imm)
		},
	},
	insts.OpJ2Jumpr: {
		analyze: func(a *translate.Analysis, insn *insts.Insn) {
			a.ReadGPR(reg(insn.Src1))
		},
		generate: func(g *translate.Gen, insn *insts.Insn) {
			g.JumpR(g.ReadGPR(reg(insn.Src1)))
		},
	},
	insts.OpJ2Call: {
		generate: func(g *translate.Gen, insn *insts.Insn) {
			g.Call(insn.Imm)
		},
	},
	insts.OpJ2Loop0i: {
		generate: func(g *translate.Gen, insn *insts.Insn) {
			u := g.Unit()
			count := u.NewTemp()
			u.Movi(count, int64(insn.Imm2))
			genLoop0(g, insn, count)
		},
	},
	insts.OpJ2Loop0r: {
		analyze: func(a *translate.Analysis, insn *insts.Insn) {
			a.ReadGPR(reg(insn.Src1))
		},
		generate: func(g *translate.Gen, insn *insts.Insn) {
			genLoop0(g, insn, g.ReadGPR(reg(insn.Src1)))
		},
	},
	insts.OpJ2Trap0: {
		generate: func(g *translate.Gen, _ *insts.Insn) {
			g.RaiseAfterCommit(emu.ExcpTrap0)
		},
	},
	insts.OpJ2Endloop0: {
		analyze:  analyzeEndloop,
		generate: genEndloop0,
	},
	insts.OpJ2Endloop1: {
		analyze:  analyzeEndloop,
		generate: genEndloop1,
	},
	insts.OpJ2Endloop01: {
		analyze:  analyzeEndloop,
		generate: genEndloop01,
	},
}

// genLoop0 sets up hardware loop 0: SA0 = PC + off, LC0 = count and a
// cleared LPCFG.
func genLoop0(g *translate.Gen, insn *insts.Insn, count ir.Var) {
	u := g.Unit()

	sa := u.NewTemp()
	u.Movi(sa, int64(g.PacketPC()+uint32(insn.Imm)))
	g.WriteGPR(insts.RegSA0, sa)

	lc := u.NewTemp()
	u.Mov(lc, count)
	g.WriteGPR(insts.RegLC0, lc)

	zero := u.NewTemp()
	u.Movi(zero, 0)
	g.SetUSRField(zero, insts.USRLPCFGShift, insts.USRLPCFGWidth)
}

func analyzeEndloop(a *translate.Analysis, insn *insts.Insn) {
	if insn.Has(insts.AttrHWLoop0End) {
		a.ReadGPR(insts.RegLC0)
		a.ReadGPR(insts.RegSA0)
		a.ReadGPR(insts.RegUSR)
	}
	if insn.Has(insts.AttrHWLoop1End) {
		a.ReadGPR(insts.RegLC1)
		a.ReadGPR(insts.RegSA1)
	}
}

// genLPCFG counts down the loop configuration: P3 is set on the last
// step, and the field stops at zero.
func genLPCFG(g *translate.Gen) {
	u := g.Unit()

	lpcfg := u.NewTemp()
	u.Extract(lpcfg, ir.GPR(int(insts.RegUSR)), insts.USRLPCFGShift, insts.USRLPCFGWidth)

	notLast := u.NewLabel()
	u.Brcondi(ir.CondNE, lpcfg, 1, notLast)
	ff := u.NewTemp()
	u.Movi(ff, 0xff)
	g.WritePred(3, ff)
	u.SetLabel(notLast)

	done := u.NewLabel()
	u.Brcondi(ir.CondEQ, lpcfg, 0, done)
	u.Addi(lpcfg, lpcfg, -1)
	g.SetUSRField(lpcfg, insts.USRLPCFGShift, insts.USRLPCFGWidth)
	u.SetLabel(done)
}

// genLoopBack jumps to the loop start and decrements the count when more
// than one iteration remains. exit is taken otherwise.
func genLoopBack(g *translate.Gen, lcReg, saReg insts.Reg, exit ir.Label) {
	u := g.Unit()
	lc := ir.GPR(int(lcReg))

	u.Brcondi(ir.CondLEU, lc, 1, exit)
	g.JumpR(g.ReadGPR(saReg))
	next := u.NewTemp()
	u.Addi(next, lc, -1)
	g.WriteGPR(lcReg, next)
}

func genEndloop0(g *translate.Gen, _ *insts.Insn) {
	genLPCFG(g)

	// The block epilogue loops back on its own.
	if g.IsTightLoopEnd() {
		return
	}

	u := g.Unit()
	done := u.NewLabel()
	genLoopBack(g, insts.RegLC0, insts.RegSA0, done)
	u.SetLabel(done)
}

func genEndloop1(g *translate.Gen, _ *insts.Insn) {
	u := g.Unit()
	done := u.NewLabel()
	genLoopBack(g, insts.RegLC1, insts.RegSA1, done)
	u.SetLabel(done)
}

// genEndloop01 closes both loops: loop 0 iterates first, loop 1 only once
// loop 0 is exhausted.
func genEndloop01(g *translate.Gen, _ *insts.Insn) {
	u := g.Unit()
	genLPCFG(g)

	loop1 := u.NewLabel()
	done := u.NewLabel()
	genLoopBack(g, insts.RegLC0, insts.RegSA0, loop1)
	u.Br(done)
	u.SetLabel(loop1)
	genLoopBack(g, insts.RegLC1, insts.RegSA1, done)
	u.SetLabel(done)
}
