package translate

import (
	"github.com/sarchlab/hexdbt/emu"
	"github.com/sarchlab/hexdbt/insts"
	"github.com/sarchlab/hexdbt/ir"
)

// Gen is the code generation interface handed to instruction semantics.
// Reads return pre-packet values; writes go to staging when the packet
// needs commit and to canonical state otherwise.
type Gen struct {
	ctx *DisasContext
}

// Unit returns the unit being generated.
func (g *Gen) Unit() *ir.Unit {
	return g.ctx.unit
}

// PacketPC returns the address of the packet.
func (g *Gen) PacketPC() uint32 {
	return g.ctx.pkt.pkt.PC
}

// NextPC returns the address of the following packet.
func (g *Gen) NextPC() uint32 {
	return g.ctx.pkt.nextPC
}

// NeedCommit reports whether the packet stages its writes.
func (g *Gen) NeedCommit() bool {
	return g.ctx.pkt.needCommit
}

// IsTightLoopEnd reports whether the block epilogue handles the endloop0
// of this packet.
func (g *Gen) IsTightLoopEnd() bool {
	return g.ctx.pkt.tightLoopEnd
}

// ReadGPR returns the pre-packet value of a scalar or control register.
func (g *Gen) ReadGPR(r insts.Reg) ir.Var {
	u := g.ctx.unit

	switch r {
	case insts.RegPC:
		t := u.NewTemp()
		u.Movi(t, int64(g.PacketPC()))
		return t
	case insts.RegP3_0:
		t := u.NewTemp()
		u.Mov(t, ir.Pred(0))
		for p := 1; p < insts.NumPreds; p++ {
			b := u.NewTemp()
			u.Shli(b, ir.Pred(p), int64(8*p))
			u.Or(t, t, b)
		}
		return t
	}

	return ir.GPR(int(r))
}

// ResultGPR returns where the packet result of r lives.
func (g *Gen) ResultGPR(r insts.Reg) ir.Var {
	if g.ctx.pkt.needCommit {
		return ir.NewGPR(int(r))
	}
	return ir.GPR(int(r))
}

// WriteGPR writes a scalar or control register. Immutable bits keep their
// canonical value; the P3:0 alias writes the four predicates. PC cannot be
// written by a register transfer.
func (g *Gen) WriteGPR(r insts.Reg, val ir.Var) {
	u := g.ctx.unit

	switch r {
	case insts.RegPC:
		return
	case insts.RegP3_0:
		for p := range insts.PredReg(insts.NumPreds) {
			b := u.NewTemp()
			u.Shri(b, val, int64(8*p))
			g.WritePred(p, b)
		}
		return
	}

	dst := g.ResultGPR(r)
	mask := emu.ImmutableMask(r)
	if mask == 0 {
		u.Mov(dst, val)
		return
	}

	keep := u.NewTemp()
	u.Andi(keep, ir.GPR(int(r)), int64(mask))
	t := u.NewTemp()
	u.Andi(t, val, int64(^mask))
	u.Or(dst, t, keep)
}

// SetUSRField deposits val into a field of the packet's USR result.
func (g *Gen) SetUSRField(val ir.Var, shift, width uint) {
	g.ctx.unit.Deposit(g.ResultGPR(insts.RegUSR), val, shift, width)
}

// ReadPred returns the pre-packet value of a predicate.
func (g *Gen) ReadPred(p insts.PredReg) ir.Var {
	return ir.Pred(int(p))
}

// WritePred writes a predicate. Several writes of one predicate in a packet
// are ANDed together.
func (g *Gen) WritePred(p insts.PredReg, val ir.Var) {
	s := &g.ctx.pkt
	u := g.ctx.unit

	dst := ir.Pred(int(p))
	if s.needCommit {
		dst = ir.NewPred(int(p))
	}

	t := u.NewTemp()
	u.Andi(t, val, 0xff)
	if s.predsGenWritten.Has(p) {
		u.And(dst, dst, t)
		return
	}
	s.predsGenWritten.Add(p)
	u.Mov(dst, t)
}

// PredCondition returns 1 when the predicate of insn holds, else 0.
func (g *Gen) PredCondition(insn *insts.Insn) ir.Var {
	u := g.ctx.unit
	t := u.NewTemp()
	u.Andi(t, ir.Pred(int(insn.Pred)), 1)
	if insn.PredNeg {
		u.Xori(t, t, 1)
	}
	return t
}

// IfPredicate emits body guarded by the predicate of insn. When the packet
// tracks cancelled slots, a false predicate marks the slot cancelled.
func (g *Gen) IfPredicate(insn *insts.Insn, body func()) {
	u := g.ctx.unit
	cond := g.PredCondition(insn)
	skip := u.NewLabel()

	if g.ctx.pkt.slotCancelArmed {
		run := u.NewLabel()
		u.Brcondi(ir.CondNE, cond, 0, run)
		u.Ori(ir.SlotCancelled(), ir.SlotCancelled(), 1<<insn.Slot)
		u.Br(skip)
		u.SetLabel(run)
	} else {
		u.Brcondi(ir.CondEQ, cond, 0, skip)
	}

	body()
	u.SetLabel(skip)
}

// Load reads width bytes from guest memory.
func (g *Gen) Load(dst, addr ir.Var, width int) {
	g.ctx.unit.Load(dst, addr, width)
}

// LogStore records the store of a slot for commit at the end of the packet.
func (g *Gen) LogStore(slot uint8, addr, val ir.Var, width int) {
	u := g.ctx.unit
	u.Mov(ir.StoreAddr(int(slot)), addr)
	u.Mov(ir.StoreVal(int(slot)), val)
	u.Movi(ir.StoreWidth(int(slot)), int64(width))
}

// LogDCZeroA records the address of a cache line zero store.
func (g *Gen) LogDCZeroA(addr ir.Var) {
	g.ctx.unit.Mov(ir.DCZeroAddr(), addr)
}

// LogHVXStore records an HVX store for commit at the end of the packet.
func (g *Gen) LogHVXStore(slot uint8, addr, src ir.Var) {
	g.ctx.unit.VStoreLog(int(slot), addr, src)
}

// Jump branches to the packet address plus off.
func (g *Gen) Jump(off int32) {
	g.writeNewPCPcrel(off, ir.Var{})
}

// CondJump branches to the packet address plus off when cond is nonzero.
func (g *Gen) CondJump(cond ir.Var, off int32) {
	g.writeNewPCPcrel(off, cond)
}

// JumpR branches to the address held in addr.
func (g *Gen) JumpR(addr ir.Var) {
	g.writeNewPCAddr(addr, ir.Var{})
}

// Call writes the return address to LR and branches.
func (g *Gen) Call(off int32) {
	u := g.ctx.unit
	ret := u.NewTemp()
	u.Movi(ret, int64(g.NextPC()))
	g.WriteGPR(insts.RegLR, ret)
	g.Jump(off)
}

// RaiseAfterCommit raises cause once the packet has committed. The
// exception resumes at the next packet.
func (g *Gen) RaiseAfterCommit(cause uint32) {
	s := &g.ctx.pkt
	s.pendingException = true
	s.pendingExceptionNum = cause
}

// writeNewPCPcrel defers a PC-relative branch to the block epilogue unless
// the packet has several COFs, in which case the first taken one wins at
// runtime.
func (g *Gen) writeNewPCPcrel(off int32, cond ir.Var) {
	s := &g.ctx.pkt
	u := g.ctx.unit
	dest := s.pkt.PC + uint32(off)

	if s.pkt.HasMultiCOF {
		t := u.NewTemp()
		u.Movi(t, int64(dest))
		g.writeNewPCAddr(t, cond)
		return
	}

	if cond.Valid() {
		u.SetCondi(ir.CondNE, s.branchTaken, cond, 0)
		s.branchCond = BranchConditional
	} else {
		s.branchCond = BranchAlways
	}
	s.branchDest = dest
}

func (g *Gen) writeNewPCAddr(addr, cond ir.Var) {
	s := &g.ctx.pkt
	u := g.ctx.unit
	pc := ir.GPR(int(insts.RegPC))

	var skip ir.Label
	if cond.Valid() {
		skip = u.NewLabel()
		u.Brcondi(ir.CondEQ, cond, 0, skip)
	}

	if s.pkt.HasMultiCOF {
		zero := u.NewTemp()
		u.Movi(zero, 0)
		u.MovCond(ir.CondNE, pc, s.branchTaken, zero, pc, addr)
		u.Movi(s.branchTaken, 1)
	} else {
		u.Mov(pc, addr)
	}

	if cond.Valid() {
		u.SetLabel(skip)
	}
}

// ReadVReg returns the value of a vector register as seen by the packet:
// the result of a .tmp load already generated earlier in the packet, else
// the pre-packet value.
func (g *Gen) ReadVReg(v insts.VecReg) ir.Var {
	s := &g.ctx.pkt
	if s.tmpLoaded.Has(v) {
		return s.tmpSlots[v].Var()
	}
	return ir.VReg(int(v))
}

// ResultVReg returns where the packet result of v lives.
func (g *Gen) ResultVReg(v insts.VecReg) ir.Var {
	s := &g.ctx.pkt
	if !s.needCommit {
		return ir.VReg(int(v))
	}
	slot, ok := s.vregSlots[v]
	invariant(ok, "v%d written but not logged", v)
	return slot.Var()
}

// TmpVReg returns the staging slot of a .tmp vector load. Instructions
// generated after the load read the slot instead of the register.
func (g *Gen) TmpVReg(v insts.VecReg) ir.Var {
	s := &g.ctx.pkt
	slot, ok := s.tmpSlots[v]
	invariant(ok, "v%d.tmp not logged", v)
	s.tmpLoaded.Add(v)
	return slot.Var()
}

// ReadQReg returns the pre-packet value of a vector predicate.
func (g *Gen) ReadQReg(q insts.QReg) ir.Var {
	return ir.QReg(int(q))
}

// ResultQReg returns where the packet result of q lives.
func (g *Gen) ResultQReg(q insts.QReg) ir.Var {
	if g.ctx.pkt.needCommit {
		return ir.QFuture(int(q))
	}
	return ir.QReg(int(q))
}
