package translate

import "github.com/sarchlab/hexdbt/insts"

// generatePacket emits every instruction of the packet in program order.
// It returns false, leaving partial output behind, when an instruction has
// no generator.
func (c *DisasContext) generatePacket(table OpcodeTable) bool {
	s := &c.pkt
	pkt := s.pkt
	g := &Gen{ctx: c}

	for i := range pkt.Insns {
		insn := &pkt.Insns[i]

		sem, ok := table.Lookup(insn.Opcode)
		if !ok {
			return false
		}

		s.insn = insn
		if insn.Slot == 0 && insn.Has(insts.AttrLoad) && insn.NoShuf &&
			pkt.HasStoreS1 && !s.slot1Committed {
			c.processStore(1)
		}

		sem.Generate(g, insn)
		c.markStoreWidth(insn)

		if insn.Has(insts.AttrHVX) {
			s.hvxInsns++
		}
	}
	s.insn = nil

	return true
}

// markStoreWidth records the statically known width of a scalar store. A
// zero width means the commit has to read the width from the store log.
func (c *DisasContext) markStoreWidth(insn *insts.Insn) {
	if !insn.Has(insts.AttrStore) || insn.Has(insts.AttrDCZeroA|insts.AttrVMem) {
		return
	}
	invariant(insn.Slot < 2, "%s store in slot %d", insn.Opcode, insn.Slot)
	c.pkt.storeWidth[insn.Slot] = insn.Attrs.MemSize()
}
