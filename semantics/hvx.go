package semantics

import (
	"github.com/sarchlab/hexdbt/insts"
	"github.com/sarchlab/hexdbt/translate"
)

var hvxSemantics = map[insts.Opcode]sem{
	insts.OpV6Vaddw: {
		analyze: func(a *translate.Analysis, insn *insts.Insn) {
			a.ReadVReg(insts.VecReg(insn.Src1))
			a.ReadVReg(insts.VecReg(insn.Src2))
			a.WriteVReg(insts.VecReg(insn.Dst))
		},
		generate: func(g *translate.Gen, insn *insts.Insn) {
			g.Unit().VAddW(g.ResultVReg(insts.VecReg(insn.Dst)),
				g.ReadVReg(insts.VecReg(insn.Src1)), g.ReadVReg(insts.VecReg(insn.Src2)))
		},
	},
	insts.OpV6Vcmov: {
		analyze: func(a *translate.Analysis, insn *insts.Insn) {
			a.ReadPred(insts.PredReg(insn.Pred))
			a.ReadVReg(insts.VecReg(insn.Src1))
			a.WriteVReg(insts.VecReg(insn.Dst))
		},
		generate: func(g *translate.Gen, insn *insts.Insn) {
			g.IfPredicate(insn, func() {
				g.Unit().VMov(g.ResultVReg(insts.VecReg(insn.Dst)), g.ReadVReg(insts.VecReg(insn.Src1)))
			})
		},
	},
	insts.OpV6Veqw: {
		analyze: func(a *translate.Analysis, insn *insts.Insn) {
			a.ReadVReg(insts.VecReg(insn.Src1))
			a.ReadVReg(insts.VecReg(insn.Src2))
			a.WriteQReg(insts.QReg(insn.Dst))
		},
		generate: func(g *translate.Gen, insn *insts.Insn) {
			g.Unit().VCmpEqW(g.ResultQReg(insts.QReg(insn.Dst)),
				g.ReadVReg(insts.VecReg(insn.Src1)), g.ReadVReg(insts.VecReg(insn.Src2)))
		},
	},
	insts.OpV6Vmux: {
		analyze: func(a *translate.Analysis, insn *insts.Insn) {
			a.ReadQReg(insts.QReg(insn.Pred))
			a.ReadVReg(insts.VecReg(insn.Src1))
			a.ReadVReg(insts.VecReg(insn.Src2))
			a.WriteVReg(insts.VecReg(insn.Dst))
		},
		generate: func(g *translate.Gen, insn *insts.Insn) {
			g.Unit().VMux(g.ResultVReg(insts.VecReg(insn.Dst)), g.ReadQReg(insts.QReg(insn.Pred)),
				g.ReadVReg(insts.VecReg(insn.Src1)), g.ReadVReg(insts.VecReg(insn.Src2)))
		},
	},
	insts.OpV6VL32bai: {
		analyze: func(a *translate.Analysis, insn *insts.Insn) {
			a.ReadGPR(reg(insn.Src1))
			a.WriteVReg(insts.VecReg(insn.Dst))
		},
		generate: func(g *translate.Gen, insn *insts.Insn) {
			g.Unit().VLoad(g.ResultVReg(insts.VecReg(insn.Dst)), effectiveAddr(g, insn))
		},
	},
	insts.OpV6VL32bTmpai: {
		analyze: func(a *translate.Analysis, insn *insts.Insn) {
			a.ReadGPR(reg(insn.Src1))
			a.WriteTmpVReg(insts.VecReg(insn.Dst))
		},
		generate: func(g *translate.Gen, insn *insts.Insn) {
			g.Unit().VLoad(g.TmpVReg(insts.VecReg(insn.Dst)), effectiveAddr(g, insn))
		},
	},
	insts.OpV6VS32bai: {
		analyze: func(a *translate.Analysis, insn *insts.Insn) {
			a.ReadGPR(reg(insn.Src1))
			a.ReadVReg(insts.VecReg(insn.Dst))
		},
		generate: func(g *translate.Gen, insn *insts.Insn) {
			g.LogHVXStore(insn.Slot, effectiveAddr(g, insn), g.ReadVReg(insts.VecReg(insn.Dst)))
		},
	},
}
