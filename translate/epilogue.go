package translate

import (
	"github.com/sarchlab/hexdbt/insts"
	"github.com/sarchlab/hexdbt/ir"
)

// Epilogue is the way a packet ends its block.
type Epilogue uint8

// Epilogues.
const (
	EpilogueNone Epilogue = iota
	EpilogueTaken
	EpilogueConditional
	EpilogueTightLoop
	EpilogueIndirect
	EpilogueException
	EpilogueFallthrough
)

var epilogueNames = [...]string{
	"none", "taken", "conditional", "tight_loop", "indirect", "exception",
	"fallthrough",
}

func (e Epilogue) String() string {
	if int(e) < len(epilogueNames) {
		return epilogueNames[e]
	}
	return "?"
}

// MarshalText renders the epilogue by name.
func (e Epilogue) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// emitCounters adds the block counters to the execution counters.
func (c *DisasContext) emitCounters() {
	u := c.unit
	add := func(counter, n int) {
		if n != 0 {
			u.Addi(ir.Counter(counter), ir.Counter(counter), int64(n))
		}
	}
	add(ir.CounterPackets, c.numPackets)
	add(ir.CounterInsns, c.numInsns)
	add(ir.CounterHVXInsns, c.numHVXInsns)
}

// endBranch ends the block after a packet with a change of flow.
func (c *DisasContext) endBranch() Epilogue {
	s := &c.pkt
	u := c.unit

	c.emitCounters()

	switch {
	case s.branchCond == BranchAlways:
		u.GotoTB(0, s.branchDest)
		return EpilogueTaken
	case s.branchCond == BranchConditional:
		notTaken := u.NewLabel()
		u.Brcondi(ir.CondEQ, s.branchTaken, 0, notTaken)
		u.GotoTB(0, s.branchDest)
		u.SetLabel(notTaken)
		u.GotoTB(1, s.nextPC)
		return EpilogueConditional
	case s.tightLoopEnd:
		lc0 := ir.GPR(int(insts.RegLC0))
		exit := u.NewLabel()
		u.Brcondi(ir.CondLEU, lc0, 1, exit)
		u.Addi(lc0, lc0, -1)
		u.GotoTB(0, c.blockPC)
		u.SetLabel(exit)
		u.GotoTB(1, s.nextPC)
		return EpilogueTightLoop
	}

	u.ExitIndirect()
	return EpilogueIndirect
}

// endFallthrough ends the block before pc.
func (c *DisasContext) endFallthrough(pc uint32) Epilogue {
	c.emitCounters()
	c.unit.GotoTB(ir.ChainNone, pc)
	return EpilogueFallthrough
}

// endException raises cause with PC set to pc.
func (c *DisasContext) endException(pc, cause uint32) Epilogue {
	u := c.unit
	c.emitCounters()
	u.Movi(ir.GPR(int(insts.RegPC)), int64(pc))
	u.Raise(cause)
	return EpilogueException
}
