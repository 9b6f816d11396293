package translate

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/sarchlab/hexdbt/insts"
)

// RegIndex is any register index type of the insts package.
type RegIndex interface {
	~uint8
}

// RegSet is a set of registers of one class.
type RegSet[R RegIndex] struct {
	bits bitset.BitSet
}

// Types of the register classes tracked per packet.
type (
	GPRSet  = RegSet[insts.Reg]
	PredSet = RegSet[insts.PredReg]
	VRegSet = RegSet[insts.VecReg]
	QRegSet = RegSet[insts.QReg]
)

// Add inserts r.
func (s *RegSet[R]) Add(r R) {
	s.bits.Set(uint(r))
}

// Has reports whether r is in the set.
func (s *RegSet[R]) Has(r R) bool {
	return s.bits.Test(uint(r))
}

// Len returns the number of registers in the set.
func (s *RegSet[R]) Len() int {
	return int(s.bits.Count())
}

// Union adds every register of other.
func (s *RegSet[R]) Union(other *RegSet[R]) {
	s.bits.InPlaceUnion(&other.bits)
}

// Clear empties the set.
func (s *RegSet[R]) Clear() {
	s.bits.ClearAll()
}

// Regs returns the registers in ascending order.
func (s *RegSet[R]) Regs() []R {
	regs := make([]R, 0, s.Len())
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		regs = append(regs, R(i))
	}
	return regs
}
