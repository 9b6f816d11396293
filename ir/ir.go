// Package ir defines the operations emitted by the translator and the
// translation unit that collects them.
//
// Operands are Vars: either block-local temporaries or named pieces of CPU
// state (canonical registers, packet staging copies, the store log). Scalar
// arithmetic is 32-bit; store values and Concat results are 64-bit.
package ir

import (
	"fmt"
	"strings"
)

// NumVecTemps is the capacity of the per-packet vector staging arena.
const NumVecTemps = 4

// ChainNone marks an exit that carries no block chaining hint.
const ChainNone = -1

// Space identifies what a Var refers to.
type Space uint8

// Var spaces.
const (
	SpaceNone Space = iota
	SpaceTemp
	SpaceGPR          // Canonical scalar/control register
	SpaceNewGPR       // Staged scalar/control register
	SpacePred         // Canonical predicate
	SpaceNewPred      // Staged predicate
	SpaceStoreAddr    // Store log address, per slot
	SpaceStoreVal     // Store log value, per slot
	SpaceStoreWidth   // Store log width, per slot
	SpaceSlotCancelled
	SpaceDCZeroAddr
	SpaceCounter // Execution counters
	SpaceVReg    // Canonical vector register
	SpaceVFuture // Vector staging arena slot
	SpaceQReg    // Canonical vector predicate
	SpaceQFuture // Staged vector predicate
)

var spaceNames = [...]string{
	SpaceNone:          "none",
	SpaceTemp:          "t",
	SpaceGPR:           "gpr",
	SpaceNewGPR:        "new_gpr",
	SpacePred:          "p",
	SpaceNewPred:       "new_p",
	SpaceStoreAddr:     "store_addr",
	SpaceStoreVal:      "store_val",
	SpaceStoreWidth:    "store_width",
	SpaceSlotCancelled: "slot_cancelled",
	SpaceDCZeroAddr:    "dczero_addr",
	SpaceCounter:       "counter",
	SpaceVReg:          "v",
	SpaceVFuture:       "future_v",
	SpaceQReg:          "q",
	SpaceQFuture:       "future_q",
}

func (s Space) String() string {
	if int(s) < len(spaceNames) {
		return spaceNames[s]
	}
	return fmt.Sprintf("space%d", s)
}

// IsVector reports whether vars in the space hold vector values.
func (s Space) IsVector() bool {
	return s == SpaceVReg || s == SpaceVFuture
}

// IsVectorPred reports whether vars in the space hold vector predicates.
func (s Space) IsVectorPred() bool {
	return s == SpaceQReg || s == SpaceQFuture
}

// Staging reports whether the space holds packet staging state.
func (s Space) Staging() bool {
	switch s {
	case SpaceNewGPR, SpaceNewPred, SpaceVFuture, SpaceQFuture:
		return true
	}
	return false
}

// Var is an operand.
type Var struct {
	Space Space `json:"space"`
	Index int   `json:"index"`
}

// Valid reports whether the var refers to anything.
func (v Var) Valid() bool {
	return v.Space != SpaceNone
}

func (v Var) String() string {
	switch v.Space {
	case SpaceNone:
		return "_"
	case SpaceSlotCancelled, SpaceDCZeroAddr:
		return v.Space.String()
	}
	return fmt.Sprintf("%s%d", v.Space, v.Index)
}

// Constructors for named state.
func GPR(r int) Var { return Var{SpaceGPR, r} }
func NewGPR(r int) Var { return Var{SpaceNewGPR, r} }
func Pred(p int) Var { return Var{SpacePred, p} }
func NewPred(p int) Var { return Var{SpaceNewPred, p} }
func StoreAddr(slot int) Var { return Var{SpaceStoreAddr, slot} }
func StoreVal(slot int) Var { return Var{SpaceStoreVal, slot} }
func StoreWidth(slot int) Var { return Var{SpaceStoreWidth, slot} }
func SlotCancelled() Var { return Var{SpaceSlotCancelled, 0} }
func DCZeroAddr() Var { return Var{SpaceDCZeroAddr, 0} }
func Counter(c int) Var { return Var{SpaceCounter, c} }
func VReg(v int) Var { return Var{SpaceVReg, v} }
func VFuture(slot int) Var { return Var{SpaceVFuture, slot} }
func QReg(q int) Var { return Var{SpaceQReg, q} }
func QFuture(q int) Var { return Var{SpaceQFuture, q} }

// Execution counter indices.
const (
	CounterPackets = iota
	CounterInsns
	CounterHVXInsns
)

// Label is a branch target within a unit.
type Label int

// Cond is a comparison condition.
type Cond uint8

// Conditions. Unsigned unless noted.
const (
	CondEQ Cond = iota
	CondNE
	CondLTU
	CondLEU
	CondGTU
	CondGEU
	CondLT // Signed
	CondGE // Signed
)

var condNames = [...]string{"eq", "ne", "ltu", "leu", "gtu", "geu", "lt", "ge"}

func (c Cond) String() string {
	if int(c) < len(condNames) {
		return condNames[c]
	}
	return "?"
}

// Eval evaluates the condition on 32-bit operands.
func (c Cond) Eval(a, b uint32) bool {
	switch c {
	case CondEQ:
		return a == b
	case CondNE:
		return a != b
	case CondLTU:
		return a < b
	case CondLEU:
		return a <= b
	case CondGTU:
		return a > b
	case CondGEU:
		return a >= b
	case CondLT:
		return int32(a) < int32(b)
	case CondGE:
		return int32(a) >= int32(b)
	}
	return false
}

// Helper identifies a runtime helper called from translated code.
type Helper uint8

// Runtime helpers.
const (
	HelperNone Helper = iota
	// HelperProbeStores checks, before any side effect, that every store
	// selected by the Imm mask (Probe* bits) would succeed.
	HelperProbeStores
	// HelperCommitStore performs the logged store of slot Imm with the
	// width found in the store log.
	HelperCommitStore
	// HelperCommitHVXStores performs every pending HVX store.
	HelperCommitHVXStores
	// HelperDCZeroA clears the cache line at the logged dczeroa address.
	HelperDCZeroA
	// HelperCheckStoreWidth asserts that the store log width of slot Imm
	// equals Width.
	HelperCheckStoreWidth
)

var helperNames = [...]string{
	"none", "probe_stores", "commit_store", "commit_hvx_stores",
	"dczeroa", "check_store_width",
}

func (h Helper) String() string {
	if int(h) < len(helperNames) {
		return helperNames[h]
	}
	return "?"
}

// Probe mask bits for HelperProbeStores.
const (
	ProbeHasStore0 = 1 << iota
	ProbeHasStore1
	ProbeHasHVX
	ProbeStore0Predicated
	ProbeStore1Predicated
)

// Kind is the operation code of an Op.
type Kind uint8

// Operation kinds.
const (
	KindNop       Kind = iota
	KindInsnStart      // Imm = packet PC of the instruction
	KindMovi           // Dst = Imm
	KindMov            // Dst = Src0
	KindAdd            // Dst = Src0 + Src1
	KindAddi           // Dst = Src0 + Imm
	KindSub            // Dst = Src0 - Src1
	KindAnd            // Dst = Src0 & Src1
	KindAndi           // Dst = Src0 & Imm
	KindOr             // Dst = Src0 | Src1
	KindOri            // Dst = Src0 | Imm
	KindXori           // Dst = Src0 ^ Imm
	KindXor            // Dst = Src0 ^ Src1
	KindShli           // Dst = Src0 << Imm
	KindShri           // Dst = Src0 >> Imm (logical)
	KindSetCond        // Dst = Src0 Cond Src1
	KindSetCondi       // Dst = Src0 Cond Imm
	KindMovCond        // Dst = (Src0 Cond Src1) ? Src2 : Src3
	KindConcat         // Dst = Src1:Src0 (64-bit)
	KindLoad           // Dst = mem[Src0], Width bytes, zero-extended
	KindStore          // mem[Src0] = Src1, Width bytes, for slot Imm
	KindFAdd           // Dst = Src0 + Src1 as IEEE single precision
	KindBrcondi        // if Src0 Cond Imm goto Label
	KindBr             // goto Label
	KindLabel          // Label:
	KindCall           // Helper(Imm, Width)
	KindGotoTB         // PC = Target, exit with successor hint Chain
	KindExitIndirect   // exit to the address in the PC register
	KindRaise          // raise exception Imm; PC already holds the resume PC
	KindVMov           // Dst = Src0 (vector or vector predicate)
	KindVAddW          // Dst.w = Src0.w + Src1.w
	KindVCmpEqW        // Dst(Q) = Src0.w == Src1.w
	KindVMux           // Dst = Src0(Q) ? Src1 : Src2, per byte
	KindVLoad          // Dst = vmem[Src0]
	KindVStoreLog      // log HVX store of Src1 at Src0 for slot Imm
)

var kindNames = [...]string{
	"nop", "insn_start", "movi", "mov", "add", "addi", "sub", "and", "andi",
	"or", "ori", "xori", "xor", "shli", "shri", "setcond", "setcondi", "movcond",
	"concat", "ld", "st", "fadd", "brcondi", "br", "label", "call",
	"goto_tb", "exit_indirect", "raise", "vmov", "vaddw", "vcmpeqw",
	"vmux", "vld", "vst_log",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind%d", k)
}

// Op is one IR operation.
type Op struct {
	Kind   Kind   `json:"kind"`
	Dst    Var    `json:"dst"`
	Src    [4]Var `json:"src"`
	Imm    int64  `json:"imm"`
	Cond   Cond   `json:"cond"`
	Label  Label  `json:"label"`
	Helper Helper `json:"helper"`
	Width  int    `json:"width"`
	Target uint32 `json:"target"`
	Chain  int    `json:"chain"`
}

// Exits reports whether the op leaves the unit.
func (op *Op) Exits() bool {
	switch op.Kind {
	case KindGotoTB, KindExitIndirect, KindRaise:
		return true
	}
	return false
}

func (op *Op) String() string {
	var b strings.Builder

	switch op.Kind {
	case KindLabel:
		fmt.Fprintf(&b, "L%d:", op.Label)
		return b.String()
	case KindInsnStart:
		fmt.Fprintf(&b, "---- insn_start 0x%08x", uint32(op.Imm))
		return b.String()
	}

	b.WriteString(op.Kind.String())

	var args []string
	if op.Dst.Valid() {
		args = append(args, op.Dst.String())
	}
	for _, s := range op.Src {
		if s.Valid() {
			args = append(args, s.String())
		}
	}

	switch op.Kind {
	case KindSetCond, KindSetCondi, KindMovCond, KindBrcondi:
		args = append(args, op.Cond.String())
	}

	switch op.Kind {
	case KindMovi, KindAddi, KindAndi, KindOri, KindXori, KindShli,
		KindShri, KindSetCondi, KindBrcondi, KindRaise, KindVStoreLog:
		args = append(args, fmt.Sprintf("$%#x", op.Imm))
	case KindCall:
		args = append(args, op.Helper.String(), fmt.Sprintf("$%#x", op.Imm))
		if op.Width != 0 {
			args = append(args, fmt.Sprintf("w%d", op.Width))
		}
	case KindLoad:
		args = append(args, fmt.Sprintf("w%d", op.Width))
	case KindStore:
		args = append(args, fmt.Sprintf("w%d", op.Width), fmt.Sprintf("slot%d", op.Imm))
	case KindGotoTB:
		args = append(args, fmt.Sprintf("0x%08x", op.Target), fmt.Sprintf("chain=%d", op.Chain))
	}

	switch op.Kind {
	case KindBrcondi, KindBr:
		args = append(args, fmt.Sprintf("L%d", op.Label))
	}

	if len(args) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(args, ", "))
	}

	return b.String()
}
