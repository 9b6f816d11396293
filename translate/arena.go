package translate

import (
	"github.com/sarchlab/hexdbt/insts"
	"github.com/sarchlab/hexdbt/ir"
)

// VecSlot is an index into the vector staging arena.
type VecSlot int

// VecArena hands out vector staging slots for one packet.
type VecArena struct {
	used  int
	owner [ir.NumVecTemps]insts.VecReg
}

// Alloc reserves a slot for v. Running out of slots is a translator bug:
// a packet cannot produce more vector results than the arena holds.
func (a *VecArena) Alloc(v insts.VecReg) VecSlot {
	invariant(a.used < ir.NumVecTemps, "vector arena exhausted allocating v%d", v)
	slot := VecSlot(a.used)
	a.owner[slot] = v
	a.used++
	return slot
}

// Used returns the number of allocated slots.
func (a *VecArena) Used() int {
	return a.used
}

// Owner returns the register a slot was allocated for.
func (a *VecArena) Owner(slot VecSlot) insts.VecReg {
	invariant(int(slot) < a.used, "vector arena slot %d not allocated", slot)
	return a.owner[slot]
}

// Var returns the IR operand of a slot.
func (s VecSlot) Var() ir.Var {
	return ir.VFuture(int(s))
}
