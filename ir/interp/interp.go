// Package interp executes translation units against an emu register file
// and guest memory. It is the reference backend used by the engine and by
// tests to observe the behavior of translated code.
package interp

import (
	"errors"
	"fmt"
	"math"

	"github.com/sarchlab/hexdbt/emu"
	"github.com/sarchlab/hexdbt/insts"
	"github.com/sarchlab/hexdbt/ir"
)

// maxSteps bounds the number of ops executed by one Run.
const maxSteps = 1 << 20

// ExitKind says how a unit left.
type ExitKind uint8

// Exit kinds.
const (
	ExitGoto ExitKind = iota
	ExitIndirect
	ExitException
)

func (k ExitKind) String() string {
	switch k {
	case ExitGoto:
		return "goto"
	case ExitIndirect:
		return "indirect"
	case ExitException:
		return "exception"
	}
	return "?"
}

// Exit describes how a unit finished.
type Exit struct {
	Kind  ExitKind
	PC    uint32 // Next PC, or the resume PC of an exception
	Chain int
	Cause uint32
}

// StoreEvent records one committed scalar store.
type StoreEvent struct {
	Slot  int
	Addr  uint32
	Width int
	Value uint64
}

type hvxStore struct {
	pending bool
	addr    uint32
	data    emu.VecValue
}

// Machine holds the architectural state plus the packet staging state that
// translated code reads and writes.
type Machine struct {
	Regs *emu.RegFile
	LSU  *emu.LoadStoreUnit

	// TraceStores enables recording of committed scalar stores in Stores.
	TraceStores bool
	Stores      []StoreEvent

	newGPR        [insts.NumRegs]uint32
	newPred       [insts.NumPreds]uint8
	storeAddr     [2]uint32
	storeVal      [2]uint64
	storeWidth    [2]uint32
	slotCancelled uint32
	dczeroAddr    uint32
	vFuture       [ir.NumVecTemps]emu.VecValue
	qFuture       [insts.NumQRegs]emu.QValue
	hvxStores     [2]hvxStore

	temps  []uint64
	labels []int
	pc     uint32
}

// NewMachine creates a machine over the given state.
func NewMachine(regs *emu.RegFile, lsu *emu.LoadStoreUnit) *Machine {
	return &Machine{
		Regs: regs,
		LSU:  lsu,
	}
}

// Run executes u until it exits. Guest memory faults end the unit with an
// exception exit; malformed units return an error.
func (m *Machine) Run(u *ir.Unit) (Exit, error) {
	m.prepare(u)

	steps := 0
	for ip := 0; ip < len(u.Ops); ip++ {
		steps++
		if steps > maxSteps {
			return Exit{}, fmt.Errorf("unit did not exit after %d ops", maxSteps)
		}

		op := &u.Ops[ip]

		switch op.Kind {
		case ir.KindBrcondi, ir.KindBr:
			if op.Kind == ir.KindBr || op.Cond.Eval(uint32(m.get(op.Src[0])), uint32(op.Imm)) {
				target := m.labels[op.Label]
				if target < 0 {
					return Exit{}, fmt.Errorf("op %d: label L%d is never set", ip, op.Label)
				}
				ip = target
			}
			continue
		case ir.KindGotoTB:
			m.Regs.SetPC(op.Target)
			return Exit{Kind: ExitGoto, PC: op.Target, Chain: op.Chain}, nil
		case ir.KindExitIndirect:
			return Exit{Kind: ExitIndirect, PC: m.Regs.PC(), Chain: ir.ChainNone}, nil
		case ir.KindRaise:
			return Exit{
				Kind:  ExitException,
				PC:    m.Regs.PC(),
				Chain: ir.ChainNone,
				Cause: uint32(op.Imm),
			}, nil
		}

		if err := m.step(op); err != nil {
			var fault *emu.Fault
			if errors.As(err, &fault) {
				m.Regs.SetPC(m.pc)
				return Exit{
					Kind:  ExitException,
					PC:    m.pc,
					Chain: ir.ChainNone,
					Cause: fault.Cause(),
				}, nil
			}
			return Exit{}, fmt.Errorf("op %d (%s): %w", ip, op.String(), err)
		}
	}

	return Exit{}, errors.New("unit fell off the end")
}

func (m *Machine) prepare(u *ir.Unit) {
	// HVX stores logged by a unit that faulted never commit.
	m.hvxStores = [2]hvxStore{}

	if n := u.NumTemps(); cap(m.temps) < n {
		m.temps = make([]uint64, n)
	} else {
		m.temps = m.temps[:n]
		clear(m.temps)
	}

	if n := u.NumLabels(); cap(m.labels) < n {
		m.labels = make([]int, n)
	} else {
		m.labels = m.labels[:n]
	}
	for i := range m.labels {
		m.labels[i] = -1
	}
	for i := range u.Ops {
		if u.Ops[i].Kind == ir.KindLabel {
			m.labels[u.Ops[i].Label] = i
		}
	}
}

//nolint:gocyclo
func (m *Machine) step(op *ir.Op) error {
	a := uint32(m.get(op.Src[0]))
	b := uint32(m.get(op.Src[1]))
	imm := uint32(op.Imm)

	switch op.Kind {
	case ir.KindNop, ir.KindLabel:
	case ir.KindInsnStart:
		m.pc = imm
	case ir.KindMovi:
		m.set(op.Dst, uint64(op.Imm))
	case ir.KindMov:
		m.set(op.Dst, m.get(op.Src[0]))
	case ir.KindAdd:
		m.set32(op.Dst, a+b)
	case ir.KindAddi:
		m.set32(op.Dst, a+imm)
	case ir.KindSub:
		m.set32(op.Dst, a-b)
	case ir.KindAnd:
		m.set32(op.Dst, a&b)
	case ir.KindAndi:
		m.set32(op.Dst, a&imm)
	case ir.KindOr:
		m.set32(op.Dst, a|b)
	case ir.KindOri:
		m.set32(op.Dst, a|imm)
	case ir.KindXori:
		m.set32(op.Dst, a^imm)
	case ir.KindXor:
		m.set32(op.Dst, a^b)
	case ir.KindShli:
		m.set32(op.Dst, a<<(imm&31))
	case ir.KindShri:
		m.set32(op.Dst, a>>(imm&31))
	case ir.KindSetCond:
		m.set32(op.Dst, boolWord(op.Cond.Eval(a, b)))
	case ir.KindSetCondi:
		m.set32(op.Dst, boolWord(op.Cond.Eval(a, imm)))
	case ir.KindMovCond:
		if op.Cond.Eval(a, b) {
			m.set(op.Dst, m.get(op.Src[2]))
		} else {
			m.set(op.Dst, m.get(op.Src[3]))
		}
	case ir.KindConcat:
		m.set(op.Dst, uint64(b)<<32|uint64(a))
	case ir.KindFAdd:
		sum := math.Float32frombits(a) + math.Float32frombits(b)
		m.set32(op.Dst, math.Float32bits(sum))
	case ir.KindLoad:
		v, err := m.LSU.Load(a, op.Width)
		if err != nil {
			return err
		}
		m.set(op.Dst, v)
	case ir.KindStore:
		val := m.get(op.Src[1])
		if err := m.LSU.Store(a, op.Width, val); err != nil {
			return err
		}
		m.traceStore(int(op.Imm), a, op.Width, val)
	case ir.KindCall:
		return m.call(op)
	default:
		return m.vector(op)
	}

	return nil
}

func (m *Machine) vector(op *ir.Op) error {
	switch op.Kind {
	case ir.KindVMov:
		if op.Dst.Space.IsVectorPred() {
			*m.qvec(op.Dst) = *m.qvec(op.Src[0])
		} else {
			*m.vec(op.Dst) = *m.vec(op.Src[0])
		}
	case ir.KindVAddW:
		x, y := m.vec(op.Src[0]), m.vec(op.Src[1])
		var out emu.VecValue
		for i := 0; i < len(out); i += 4 {
			putWord(out[i:], word(x[i:])+word(y[i:]))
		}
		*m.vec(op.Dst) = out
	case ir.KindVCmpEqW:
		x, y := m.vec(op.Src[0]), m.vec(op.Src[1])
		var out emu.QValue
		for i := 0; i < len(x); i += 4 {
			if word(x[i:]) == word(y[i:]) {
				// One predicate bit per byte lane.
				out[i/8] |= 0xf << (i % 8)
			}
		}
		*m.qvec(op.Dst) = out
	case ir.KindVMux:
		q := m.qvec(op.Src[0])
		x, y := m.vec(op.Src[1]), m.vec(op.Src[2])
		var out emu.VecValue
		for i := range out {
			if q[i/8]>>(i%8)&1 == 1 {
				out[i] = x[i]
			} else {
				out[i] = y[i]
			}
		}
		*m.vec(op.Dst) = out
	case ir.KindVLoad:
		var v emu.VecValue
		if err := m.LSU.LoadVector(uint32(m.get(op.Src[0])), &v); err != nil {
			return err
		}
		*m.vec(op.Dst) = v
	case ir.KindVStoreLog:
		slot := op.Imm & 1
		m.hvxStores[slot] = hvxStore{
			pending: true,
			addr:    emu.VectorAddr(uint32(m.get(op.Src[0]))),
			data:    *m.vec(op.Src[1]),
		}
	default:
		return fmt.Errorf("unknown op kind %s", op.Kind)
	}

	return nil
}

func (m *Machine) call(op *ir.Op) error {
	switch op.Helper {
	case ir.HelperProbeStores:
		return m.probeStores(uint32(op.Imm))
	case ir.HelperCommitStore:
		slot := op.Imm & 1
		width := int(m.storeWidth[slot])
		addr, val := m.storeAddr[slot], m.storeVal[slot]
		if err := m.LSU.Store(addr, width, val); err != nil {
			return err
		}
		m.traceStore(int(slot), addr, width, val)
	case ir.HelperCommitHVXStores:
		for slot := 1; slot >= 0; slot-- {
			st := &m.hvxStores[slot]
			if !st.pending {
				continue
			}
			if err := m.LSU.StoreVector(st.addr, &st.data); err != nil {
				return err
			}
			st.pending = false
		}
	case ir.HelperDCZeroA:
		return m.LSU.ZeroLine(m.dczeroAddr)
	case ir.HelperCheckStoreWidth:
		slot := op.Imm & 1
		if int(m.storeWidth[slot]) != op.Width {
			return fmt.Errorf("slot %d store width %d, translated as %d",
				slot, m.storeWidth[slot], op.Width)
		}
	default:
		return fmt.Errorf("unknown helper %s", op.Helper)
	}

	return nil
}

func (m *Machine) probeStores(mask uint32) error {
	check := func(slot int, has, predicated uint32) error {
		if mask&has == 0 {
			return nil
		}
		if mask&predicated != 0 && m.slotCancelled>>slot&1 == 1 {
			return nil
		}
		return m.LSU.ProbeStore(m.storeAddr[slot], int(m.storeWidth[slot]))
	}

	if err := check(0, ir.ProbeHasStore0, ir.ProbeStore0Predicated); err != nil {
		return err
	}
	if err := check(1, ir.ProbeHasStore1, ir.ProbeStore1Predicated); err != nil {
		return err
	}

	if mask&ir.ProbeHasHVX != 0 {
		for slot := range m.hvxStores {
			if m.hvxStores[slot].pending {
				if err := m.LSU.ProbeVector(m.hvxStores[slot].addr); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func (m *Machine) traceStore(slot int, addr uint32, width int, val uint64) {
	if m.TraceStores {
		m.Stores = append(m.Stores, StoreEvent{Slot: slot, Addr: addr, Width: width, Value: val})
	}
}

func (m *Machine) get(v ir.Var) uint64 {
	switch v.Space {
	case ir.SpaceTemp:
		return m.temps[v.Index]
	case ir.SpaceGPR:
		return uint64(m.Regs.R[v.Index])
	case ir.SpaceNewGPR:
		return uint64(m.newGPR[v.Index])
	case ir.SpacePred:
		return uint64(m.Regs.P[v.Index])
	case ir.SpaceNewPred:
		return uint64(m.newPred[v.Index])
	case ir.SpaceStoreAddr:
		return uint64(m.storeAddr[v.Index])
	case ir.SpaceStoreVal:
		return m.storeVal[v.Index]
	case ir.SpaceStoreWidth:
		return uint64(m.storeWidth[v.Index])
	case ir.SpaceSlotCancelled:
		return uint64(m.slotCancelled)
	case ir.SpaceDCZeroAddr:
		return uint64(m.dczeroAddr)
	case ir.SpaceCounter:
		return *m.counter(v.Index)
	}
	return 0
}

func (m *Machine) set(v ir.Var, x uint64) {
	switch v.Space {
	case ir.SpaceTemp:
		m.temps[v.Index] = x
	case ir.SpaceGPR:
		m.Regs.R[v.Index] = uint32(x)
	case ir.SpaceNewGPR:
		m.newGPR[v.Index] = uint32(x)
	case ir.SpacePred:
		m.Regs.P[v.Index] = uint8(x)
	case ir.SpaceNewPred:
		m.newPred[v.Index] = uint8(x)
	case ir.SpaceStoreAddr:
		m.storeAddr[v.Index] = uint32(x)
	case ir.SpaceStoreVal:
		m.storeVal[v.Index] = x
	case ir.SpaceStoreWidth:
		m.storeWidth[v.Index] = uint32(x)
	case ir.SpaceSlotCancelled:
		m.slotCancelled = uint32(x)
	case ir.SpaceDCZeroAddr:
		m.dczeroAddr = uint32(x)
	case ir.SpaceCounter:
		*m.counter(v.Index) = x
	}
}

func (m *Machine) set32(v ir.Var, x uint32) {
	m.set(v, uint64(x))
}

func (m *Machine) counter(i int) *uint64 {
	switch i {
	case ir.CounterPackets:
		return &m.Regs.Counters.Packets
	case ir.CounterInsns:
		return &m.Regs.Counters.Insns
	default:
		return &m.Regs.Counters.HVXInsns
	}
}

func (m *Machine) vec(v ir.Var) *emu.VecValue {
	if v.Space == ir.SpaceVFuture {
		return &m.vFuture[v.Index]
	}
	return &m.Regs.V[v.Index]
}

func (m *Machine) qvec(v ir.Var) *emu.QValue {
	if v.Space == ir.SpaceQFuture {
		return &m.qFuture[v.Index]
	}
	return &m.Regs.Q[v.Index]
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func word(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putWord(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
