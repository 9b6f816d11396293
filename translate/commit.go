package translate

import (
	"github.com/sarchlab/hexdbt/insts"
	"github.com/sarchlab/hexdbt/ir"
)

// commitRegisters copies staged results to canonical state and performs
// the logged HVX stores.
func (c *DisasContext) commitRegisters() {
	s := &c.pkt
	u := c.unit

	// A new loop start address invalidates the single-block loop.
	if s.regLog.Contains(insts.RegSA0) {
		c.isTightLoop = false
	}

	if s.needCommit {
		for _, r := range s.regLog.Regs() {
			u.Mov(ir.GPR(int(r)), ir.NewGPR(int(r)))
		}
		for _, p := range s.predLog.Regs() {
			u.Mov(ir.Pred(int(p)), ir.NewPred(int(p)))
		}
		for _, v := range s.vregLog.Regs() {
			u.VMov(ir.VReg(int(v)), s.vregSlots[v].Var())
		}
		for _, q := range s.qregLog.Regs() {
			u.VMov(ir.QReg(int(q)), ir.QFuture(int(q)))
		}
	}

	if s.pkt.HasHVXStore {
		u.Call(ir.HelperCommitHVXStores, 0, 0)
	}
}

// countPacket adds the packet to the block counters.
func (c *DisasContext) countPacket() {
	c.numPackets++
	c.numInsns += c.pkt.pkt.RealInsns()
	c.numHVXInsns += c.pkt.hvxInsns
}
