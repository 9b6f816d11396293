package translate

import (
	"github.com/sarchlab/hexdbt/emu"
	"github.com/sarchlab/hexdbt/insts"
)

// Analysis records the register effects of the instruction being analyzed.
// Semantics call it from Analyze for their explicit operands; implicit
// effects come from the instruction attributes.
//
// A read counts as a hazard only when an earlier instruction of the same
// packet writes the register.
type Analysis struct {
	s *packetState
}

func (a *Analysis) conditional() bool {
	return a.s.insn.Has(insts.AttrCondExec)
}

// ReadGPR records a read of a scalar or control register.
func (a *Analysis) ReadGPR(r insts.Reg) {
	if r == insts.RegP3_0 {
		for p := range insts.PredReg(insts.NumPreds) {
			a.ReadPred(p)
		}
		return
	}
	if a.s.regsWritten.Has(r) {
		a.s.hazard = true
	}
}

// WriteGPR records a write of a scalar or control register. Writes by a
// predicated instruction are conditional.
func (a *Analysis) WriteGPR(r insts.Reg) {
	a.writeGPR(r, a.conditional())
}

func (a *Analysis) writeGPR(r insts.Reg, conditional bool) {
	if r == insts.RegPC {
		return
	}
	if r == insts.RegP3_0 {
		for p := range insts.PredReg(insts.NumPreds) {
			a.WritePred(p)
		}
		return
	}
	a.s.insnRegs.Add(r)
	a.s.regLog.Log(r)
	if conditional {
		a.s.regsCond.Add(r)
	}
}

// ReadPred records a read of a scalar predicate.
func (a *Analysis) ReadPred(p insts.PredReg) {
	if a.s.predsWritten.Has(p) {
		a.s.hazard = true
	}
}

// WritePred records a write of a scalar predicate.
func (a *Analysis) WritePred(p insts.PredReg) {
	a.s.insnPreds.Add(p)
	a.s.predLog.Log(p)
}

// ReadVReg records a read of a vector register.
func (a *Analysis) ReadVReg(v insts.VecReg) {
	if a.s.vregsWritten.Has(v) {
		a.s.hazard = true
	}
}

// WriteVReg records a write of a vector register.
func (a *Analysis) WriteVReg(v insts.VecReg) {
	a.s.insnVRegs.Add(v)
	a.s.vregLog.Log(v)
	if a.conditional() {
		a.s.vregsCond.Add(v)
	}
}

// WriteTmpVReg records a .tmp vector load: later instructions of the packet
// read the loaded value, the register itself is never written.
func (a *Analysis) WriteTmpVReg(v insts.VecReg) {
	a.s.tmpVRegs.Log(v)
}

// ReadQReg records a read of a vector predicate.
func (a *Analysis) ReadQReg(q insts.QReg) {
	if a.s.qregsWritten.Has(q) {
		a.s.hazard = true
	}
}

// WriteQReg records a write of a vector predicate.
func (a *Analysis) WriteQReg(q insts.QReg) {
	a.s.insnQRegs.Add(q)
	a.s.qregLog.Log(q)
	if a.conditional() {
		a.s.qregsCond.Add(q)
	}
}

// implicitWrite maps an attribute to the register it writes.
type implicitWrite struct {
	attr insts.Attr
	reg  insts.Reg
}

var implicitRegWrites = []implicitWrite{
	{insts.AttrImplicitWritesFP, insts.RegFP},
	{insts.AttrImplicitWritesSP, insts.RegSP},
	{insts.AttrImplicitWritesLR, insts.RegLR},
	{insts.AttrImplicitWritesLC0, insts.RegLC0},
	{insts.AttrImplicitWritesSA0, insts.RegSA0},
	{insts.AttrImplicitWritesLC1, insts.RegLC1},
	{insts.AttrImplicitWritesSA1, insts.RegSA1},
	{insts.AttrImplicitWritesUSR, insts.RegUSR},
}

var implicitPredWrites = [insts.NumPreds]insts.Attr{
	insts.AttrImplicitWritesP0,
	insts.AttrImplicitWritesP1,
	insts.AttrImplicitWritesP2,
	insts.AttrImplicitWritesP3,
}

var implicitPredReads = [insts.NumPreds]insts.Attr{
	insts.AttrImplicitReadsP0,
	insts.AttrImplicitReadsP1,
	insts.AttrImplicitReadsP2,
	insts.AttrImplicitReadsP3,
}

func (a *Analysis) implicitEffects(insn *insts.Insn) {
	for _, w := range implicitRegWrites {
		if !insn.Has(w.attr) {
			continue
		}

		conditional := a.conditional()
		switch w.reg {
		case insts.RegUSR:
			conditional = true
		case insts.RegLC0:
			conditional = insn.Has(insts.AttrHWLoop0End)
		case insts.RegLC1:
			conditional = insn.Has(insts.AttrHWLoop1End)
		}
		a.writeGPR(w.reg, conditional)
	}

	if insn.Has(insts.AttrFPOp) {
		a.writeGPR(insts.RegUSR, true)
	}

	for p, attr := range implicitPredReads {
		if insn.Has(attr) {
			a.ReadPred(insts.PredReg(p))
		}
	}
	for p, attr := range implicitPredWrites {
		if insn.Has(attr) {
			a.WritePred(insts.PredReg(p))
		}
	}
}

// analyzePacket runs the analysis of every instruction and decides whether
// the packet needs staged commit.
func (c *DisasContext) analyzePacket(table OpcodeTable) {
	s := &c.pkt
	a := &Analysis{s: s}

	for i := range s.pkt.Insns {
		insn := &s.pkt.Insns[i]
		s.insn = insn
		s.insnRegs.Clear()
		s.insnPreds.Clear()
		s.insnVRegs.Clear()
		s.insnQRegs.Clear()

		if sem, ok := table.Lookup(insn.Opcode); ok {
			sem.Analyze(a, insn)
		}
		a.implicitEffects(insn)

		s.regsWritten.Union(&s.insnRegs)
		s.predsWritten.Union(&s.insnPreds)
		s.vregsWritten.Union(&s.insnVRegs)
		s.qregsWritten.Union(&s.insnQRegs)
	}
	s.insn = nil

	s.needCommit = c.needCommit()
}

func (c *DisasContext) needCommit() bool {
	s := &c.pkt

	if !c.cfg.ShortCircuit {
		return true
	}

	for i := range s.pkt.Insns {
		insn := &s.pkt.Insns[i]
		if insn.Has(insts.AttrLoad | insts.AttrStore | insts.AttrFPOp) {
			return true
		}
	}

	for _, r := range s.regLog.Regs() {
		if emu.ImmutableMask(r) != 0 {
			return true
		}
	}

	return s.hazard && s.pkt.RealInsns() > 1
}
