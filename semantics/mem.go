package semantics

import (
	"github.com/sarchlab/hexdbt/insts"
	"github.com/sarchlab/hexdbt/ir"
	"github.com/sarchlab/hexdbt/translate"
)

var memSemantics = map[insts.Opcode]sem{
	insts.OpL2Loadriio:  {analyze: analyzeRR, generate: genLoad},
	insts.OpS2Storerbio: {analyze: analyzeStore, generate: genStore},
	insts.OpS2Storerhio: {analyze: analyzeStore, generate: genStore},
	insts.OpS2Storeriio: {analyze: analyzeStore, generate: genStore},
	insts.OpS2Storerdio: {analyze: analyzeStore, generate: genStore},
	insts.OpS2Pstoreritio: {
		analyze: func(a *translate.Analysis, insn *insts.Insn) {
			a.ReadPred(insts.PredReg(insn.Pred))
			analyzeStore(a, insn)
		},
		generate: func(g *translate.Gen, insn *insts.Insn) {
			g.IfPredicate(insn, func() { genStore(g, insn) })
		},
	},
	insts.OpS2StorewLocked: {
		analyze: func(a *translate.Analysis, insn *insts.Insn) {
			a.ReadGPR(reg(insn.Src1))
			a.ReadGPR(reg(insn.Dst))
			a.WritePred(insts.PredReg(insn.Pred))
		},
		generate: genStorewLocked,
	},
	insts.OpS2Allocframe: {
		analyze: func(a *translate.Analysis, _ *insts.Insn) {
			a.ReadGPR(insts.RegSP)
			a.ReadGPR(insts.RegFP)
			a.ReadGPR(insts.RegLR)
			a.ReadGPR(insts.RegFrameKey)
		},
		generate: genAllocframe,
	},
	insts.OpY2Dczeroa: {
		analyze: func(a *translate.Analysis, insn *insts.Insn) {
			a.ReadGPR(reg(insn.Src1))
		},
		generate: func(g *translate.Gen, insn *insts.Insn) {
			g.LogDCZeroA(g.ReadGPR(reg(insn.Src1)))
		},
	},
}

// effectiveAddr computes Rs + #imm.
func effectiveAddr(g *translate.Gen, insn *insts.Insn) ir.Var {
	u := g.Unit()
	addr := u.NewTemp()
	u.Addi(addr, g.ReadGPR(reg(insn.Src1)), int64(insn.Imm))
	return addr
}

func genLoad(g *translate.Gen, insn *insts.Insn) {
	u := g.Unit()
	t := u.NewTemp()
	g.Load(t, effectiveAddr(g, insn), insn.Attrs.MemSize())
	g.WriteGPR(reg(insn.Dst), t)
}

func analyzeStore(a *translate.Analysis, insn *insts.Insn) {
	a.ReadGPR(reg(insn.Src1))
	a.ReadGPR(reg(insn.Dst))
	if insn.Attrs.MemSize() == 8 {
		a.ReadGPR(reg(insn.Dst + 1))
	}
}

// storeValue returns the value of a store: Rt, or the pair R(t+1):R(t) for
// doubleword stores.
func storeValue(g *translate.Gen, insn *insts.Insn) ir.Var {
	if insn.Attrs.MemSize() != 8 {
		return g.ReadGPR(reg(insn.Dst))
	}
	u := g.Unit()
	t := u.NewTemp()
	u.Concat(t, g.ReadGPR(reg(insn.Dst)), g.ReadGPR(reg(insn.Dst+1)))
	return t
}

func genStore(g *translate.Gen, insn *insts.Insn) {
	g.LogStore(insn.Slot, effectiveAddr(g, insn), storeValue(g, insn), insn.Attrs.MemSize())
}

// genStorewLocked always succeeds: there is no other agent to break the
// reservation.
func genStorewLocked(g *translate.Gen, insn *insts.Insn) {
	u := g.Unit()
	g.LogStore(insn.Slot, g.ReadGPR(reg(insn.Src1)), g.ReadGPR(reg(insn.Dst)), 4)
	ok := u.NewTemp()
	u.Movi(ok, 0xff)
	g.WritePred(insts.PredReg(insn.Pred), ok)
}

// genAllocframe pushes LR:FP, scrambled with FRAMEKEY, below SP and
// reserves the frame.
func genAllocframe(g *translate.Gen, insn *insts.Insn) {
	u := g.Unit()

	ea := u.NewTemp()
	u.Addi(ea, g.ReadGPR(insts.RegSP), -8)

	hi := u.NewTemp()
	u.Xor(hi, g.ReadGPR(insts.RegLR), g.ReadGPR(insts.RegFrameKey))

	val := u.NewTemp()
	u.Concat(val, g.ReadGPR(insts.RegFP), hi)
	g.LogStore(insn.Slot, ea, val, 8)

	g.WriteGPR(insts.RegFP, ea)
	sp := u.NewTemp()
	u.Addi(sp, ea, -int64(insn.Imm)*8)
	g.WriteGPR(insts.RegSP, sp)
}
