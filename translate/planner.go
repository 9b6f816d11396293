package translate

import (
	"github.com/sarchlab/hexdbt/insts"
	"github.com/sarchlab/hexdbt/ir"
)

// startPacket replaces the per-packet state. Nothing carries over from the
// previous packet.
func (c *DisasContext) startPacket(pkt *insts.Packet) {
	c.pkt = packetState{
		pkt:       pkt,
		nextPC:    pkt.PC + pkt.EncodedBytes,
		vregSlots: make(map[insts.VecReg]VecSlot),
		tmpSlots:  make(map[insts.VecReg]VecSlot),
	}
}

// planPacket emits the packet prologue: staging preloads, slot-cancel
// arming, the PC seed and the branch-taken flag.
func (c *DisasContext) planPacket() {
	s := &c.pkt
	u := c.unit
	pkt := s.pkt

	s.tightLoopEnd = c.isTightLoop && !pkt.HasMultiCOF &&
		pkt.Last().Opcode == insts.OpJ2Endloop0

	if s.needCommit {
		for _, r := range s.regLog.Regs() {
			if s.regsCond.Has(r) {
				u.Mov(ir.NewGPR(int(r)), ir.GPR(int(r)))
			}
		}

		if pkt.HasEndLoop {
			for _, p := range s.predLog.Regs() {
				u.Mov(ir.NewPred(int(p)), ir.Pred(int(p)))
			}
		}

		for _, v := range s.vregLog.Regs() {
			slot := s.arena.Alloc(v)
			s.vregSlots[v] = slot
			if s.vregsCond.Has(v) {
				u.VMov(slot.Var(), ir.VReg(int(v)))
			}
		}

		for _, q := range s.qregLog.Regs() {
			if s.qregsCond.Has(q) {
				u.VMov(ir.QFuture(int(q)), ir.QReg(int(q)))
			}
		}
	}

	for _, v := range s.tmpVRegs.Regs() {
		s.tmpSlots[v] = s.arena.Alloc(v)
	}

	if hasPredicatedStore(pkt) {
		s.slotCancelArmed = true
		u.Movi(ir.SlotCancelled(), 0)
	}

	if pkt.HasMultiCOF || pkt.HasIndirect || (pkt.HasEndLoop && !s.tightLoopEnd) {
		u.Movi(ir.GPR(int(insts.RegPC)), int64(s.nextPC))
	}

	if pkt.HasCOF {
		s.branchTaken = u.NewTemp()
		if pkt.HasMultiCOF {
			u.Movi(s.branchTaken, 0)
		}
	}
}

func hasPredicatedStore(pkt *insts.Packet) bool {
	for i := range pkt.Insns {
		if pkt.Insns[i].Has(insts.AttrStore) && pkt.Insns[i].Has(insts.AttrCondExec) {
			return true
		}
	}
	return false
}

// preloaded returns the scalar registers staged from canonical state.
func (s *packetState) preloaded() []insts.Reg {
	if !s.needCommit {
		return nil
	}
	var regs []insts.Reg
	for _, r := range s.regLog.Regs() {
		if s.regsCond.Has(r) {
			regs = append(regs, r)
		}
	}
	return regs
}
