package translate

import "github.com/sarchlab/hexdbt/ir"

// commitStores probes and performs the logged stores of the packet. Slot 1
// always commits before slot 0.
func (c *DisasContext) commitStores() {
	s := &c.pkt
	u := c.unit
	pkt := s.pkt

	hasStoreS1 := pkt.HasStoreS1 && !s.slot1Committed

	if pkt.HasDCZeroA {
		u.Call(ir.HelperDCZeroA, 0, 0)
		return
	}

	switch {
	case pkt.HasHVXStore:
		mask := int64(ir.ProbeHasHVX)
		if pkt.HasStoreS0 {
			mask |= ir.ProbeHasStore0
			if pkt.SlotPredicated(0) {
				mask |= ir.ProbeStore0Predicated
			}
		}
		if hasStoreS1 {
			mask |= ir.ProbeHasStore1
			if pkt.SlotPredicated(1) {
				mask |= ir.ProbeStore1Predicated
			}
		}
		u.Call(ir.HelperProbeStores, mask, 0)
	case pkt.HasStoreS0 && hasStoreS1:
		// Slot 1 commits first, so only slot 0 can fault after a side
		// effect.
		mask := int64(ir.ProbeHasStore0)
		if pkt.SlotPredicated(0) {
			mask |= ir.ProbeStore0Predicated
		}
		u.Call(ir.HelperProbeStores, mask, 0)
	}

	if hasStoreS1 {
		c.processStore(1)
	}
	if pkt.HasStoreS0 {
		c.processStore(0)
	}
}

// processStore emits the commit of one slot's logged store. Slot 1 is
// emitted at most once per packet.
func (c *DisasContext) processStore(slot int) {
	s := &c.pkt
	u := c.unit

	if slot == 1 {
		if s.slot1Committed {
			return
		}
		s.slot1Committed = true
	}
	s.storeOrder = append(s.storeOrder, slot)

	var skip ir.Label
	predicated := s.pkt.SlotPredicated(uint8(slot))
	if predicated {
		invariant(s.slotCancelArmed, "predicated store in slot %d without slot cancel", slot)
		skip = u.NewLabel()
		cancelled := u.NewTemp()
		u.Extract(cancelled, ir.SlotCancelled(), uint(slot), 1)
		u.Brcondi(ir.CondNE, cancelled, 0, skip)
	}

	switch width := s.storeWidth[slot]; width {
	case 1, 2, 4, 8:
		if c.cfg.Debug {
			u.Call(ir.HelperCheckStoreWidth, int64(slot), width)
		}
		u.Store(slot, ir.StoreAddr(slot), ir.StoreVal(slot), width)
	default:
		u.Call(ir.HelperCommitStore, int64(slot), 0)
	}

	if predicated {
		u.SetLabel(skip)
	}
}
