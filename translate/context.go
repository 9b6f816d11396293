package translate

import (
	"github.com/sarchlab/hexdbt/insts"
	"github.com/sarchlab/hexdbt/ir"
)

// BranchCond is the deferred branch state of a packet.
type BranchCond uint8

// Branch states.
const (
	BranchNever BranchCond = iota
	BranchAlways
	BranchConditional // taken when the branch-taken temp is nonzero
)

func (c BranchCond) String() string {
	switch c {
	case BranchAlways:
		return "always"
	case BranchConditional:
		return "conditional"
	}
	return "never"
}

// DisasContext is the translation state of one block.
type DisasContext struct {
	cfg  *Config
	unit *ir.Unit

	blockPC     uint32
	isTightLoop bool

	numPackets  int
	numInsns    int
	numHVXInsns int

	pkt packetState
}

func newDisasContext(cfg *Config, unit *ir.Unit, pc uint32, flags BlockFlags) *DisasContext {
	return &DisasContext{
		cfg:         cfg,
		unit:        unit,
		blockPC:     pc,
		isTightLoop: flags.TightLoop,
	}
}

// packetState is the per-packet working state. It is replaced wholesale at
// the start of every packet.
type packetState struct {
	pkt    *insts.Packet
	insn   *insts.Insn
	nextPC uint32

	needCommit bool
	hazard     bool

	regsWritten GPRSet
	insnRegs    GPRSet
	regsCond    GPRSet
	regLog      WriteLog[insts.Reg]

	predsWritten PredSet
	insnPreds    PredSet
	predLog      WriteLog[insts.PredReg]

	vregsWritten VRegSet
	insnVRegs    VRegSet
	vregsCond    VRegSet
	vregLog      WriteLog[insts.VecReg]
	tmpVRegs     WriteLog[insts.VecReg]
	tmpLoaded    VRegSet

	qregsWritten QRegSet
	insnQRegs    QRegSet
	qregsCond    QRegSet
	qregLog      WriteLog[insts.QReg]

	arena     VecArena
	vregSlots map[insts.VecReg]VecSlot
	tmpSlots  map[insts.VecReg]VecSlot

	slotCancelArmed bool
	tightLoopEnd    bool
	branchTaken     ir.Var
	branchCond      BranchCond
	branchDest      uint32

	predsGenWritten PredSet
	storeWidth      [2]int
	slot1Committed  bool
	storeOrder      []int
	hvxInsns        int

	pendingException    bool
	pendingExceptionNum uint32
}
