package ir

import (
	"fmt"
	"strings"
)

// Unit is the sequence of operations of one translation block.
type Unit struct {
	Ops []Op

	temps  int
	labels int
}

// Mark is a rollback point in a unit.
type Mark struct {
	ops    int
	temps  int
	labels int
}

// NewUnit creates an empty unit.
func NewUnit() *Unit {
	return &Unit{}
}

// NumTemps returns the number of temporaries allocated so far.
func (u *Unit) NumTemps() int {
	return u.temps
}

// NumLabels returns the number of labels allocated so far.
func (u *Unit) NumLabels() int {
	return u.labels
}

// Len returns the number of operations.
func (u *Unit) Len() int {
	return len(u.Ops)
}

// NewTemp allocates a temporary.
func (u *Unit) NewTemp() Var {
	v := Var{Space: SpaceTemp, Index: u.temps}
	u.temps++
	return v
}

// NewLabel allocates a label.
func (u *Unit) NewLabel() Label {
	l := Label(u.labels)
	u.labels++
	return l
}

// Mark returns the current rollback point.
func (u *Unit) Mark() Mark {
	return Mark{ops: len(u.Ops), temps: u.temps, labels: u.labels}
}

// Truncate discards everything emitted after m.
func (u *Unit) Truncate(m Mark) {
	u.Ops = u.Ops[:m.ops]
	u.temps = m.temps
	u.labels = m.labels
}

// OpsSince returns the operations emitted after m.
func (u *Unit) OpsSince(m Mark) []Op {
	return u.Ops[m.ops:]
}

// Index returns the op index of a mark.
func (m Mark) Index() int {
	return m.ops
}

// Emit appends an operation.
func (u *Unit) Emit(op Op) {
	u.Ops = append(u.Ops, op)
}

func (u *Unit) InsnStart(pc uint32) {
	u.Emit(Op{Kind: KindInsnStart, Imm: int64(pc)})
}

func (u *Unit) Movi(dst Var, imm int64) {
	u.Emit(Op{Kind: KindMovi, Dst: dst, Imm: imm})
}

func (u *Unit) Mov(dst, src Var) {
	u.Emit(Op{Kind: KindMov, Dst: dst, Src: [4]Var{src}})
}

func (u *Unit) binary(k Kind, dst, a, b Var) {
	u.Emit(Op{Kind: k, Dst: dst, Src: [4]Var{a, b}})
}

func (u *Unit) immediate(k Kind, dst, a Var, imm int64) {
	u.Emit(Op{Kind: k, Dst: dst, Src: [4]Var{a}, Imm: imm})
}

func (u *Unit) Add(dst, a, b Var) { u.binary(KindAdd, dst, a, b) }
func (u *Unit) Sub(dst, a, b Var) { u.binary(KindSub, dst, a, b) }
func (u *Unit) And(dst, a, b Var) { u.binary(KindAnd, dst, a, b) }
func (u *Unit) Or(dst, a, b Var) { u.binary(KindOr, dst, a, b) }
func (u *Unit) Xor(dst, a, b Var) { u.binary(KindXor, dst, a, b) }
func (u *Unit) Concat(dst, lo, hi Var) { u.binary(KindConcat, dst, lo, hi) }
func (u *Unit) FAdd(dst, a, b Var) { u.binary(KindFAdd, dst, a, b) }
func (u *Unit) Addi(dst, a Var, imm int64) { u.immediate(KindAddi, dst, a, imm) }
func (u *Unit) Andi(dst, a Var, imm int64) { u.immediate(KindAndi, dst, a, imm) }
func (u *Unit) Ori(dst, a Var, imm int64) { u.immediate(KindOri, dst, a, imm) }
func (u *Unit) Xori(dst, a Var, imm int64) { u.immediate(KindXori, dst, a, imm) }
func (u *Unit) Shli(dst, a Var, imm int64) { u.immediate(KindShli, dst, a, imm) }
func (u *Unit) Shri(dst, a Var, imm int64) { u.immediate(KindShri, dst, a, imm) }

// SetCond sets dst to 1 when a cond b holds, else 0.
func (u *Unit) SetCond(c Cond, dst, a, b Var) {
	u.Emit(Op{Kind: KindSetCond, Cond: c, Dst: dst, Src: [4]Var{a, b}})
}

// SetCondi sets dst to 1 when a cond imm holds, else 0.
func (u *Unit) SetCondi(c Cond, dst, a Var, imm int64) {
	u.Emit(Op{Kind: KindSetCondi, Cond: c, Dst: dst, Src: [4]Var{a}, Imm: imm})
}

// MovCond sets dst to t when a cond b holds, else to f.
func (u *Unit) MovCond(c Cond, dst, a, b, t, f Var) {
	u.Emit(Op{Kind: KindMovCond, Cond: c, Dst: dst, Src: [4]Var{a, b, t, f}})
}

// Extract sets dst to the width-bit field of src starting at bit start.
func (u *Unit) Extract(dst, src Var, start, width uint) {
	u.Shri(dst, src, int64(start))
	u.Andi(dst, dst, int64(1)<<width-1)
}

// Deposit replaces the width-bit field of dst starting at bit start with the
// low bits of val.
func (u *Unit) Deposit(dst, val Var, start, width uint) {
	mask := int64(1)<<width - 1
	field := u.NewTemp()
	u.Andi(field, val, mask)
	u.Shli(field, field, int64(start))
	u.Andi(dst, dst, int64(^uint32(mask<<start)))
	u.Or(dst, dst, field)
}

func (u *Unit) Load(dst, addr Var, width int) {
	u.Emit(Op{Kind: KindLoad, Dst: dst, Src: [4]Var{addr}, Width: width})
}

// Store emits a typed store on behalf of the given slot.
func (u *Unit) Store(slot int, addr, val Var, width int) {
	u.Emit(Op{Kind: KindStore, Src: [4]Var{addr, val}, Width: width, Imm: int64(slot)})
}

func (u *Unit) Brcondi(c Cond, a Var, imm int64, l Label) {
	u.Emit(Op{Kind: KindBrcondi, Cond: c, Src: [4]Var{a}, Imm: imm, Label: l})
}

func (u *Unit) Br(l Label) {
	u.Emit(Op{Kind: KindBr, Label: l})
}

func (u *Unit) SetLabel(l Label) {
	u.Emit(Op{Kind: KindLabel, Label: l})
}

// Call emits a runtime helper call.
func (u *Unit) Call(h Helper, imm int64, width int) {
	u.Emit(Op{Kind: KindCall, Helper: h, Imm: imm, Width: width})
}

// GotoTB ends the block at target. chain is the successor hint for the
// backend: 0 or 1 for a chainable exit, ChainNone otherwise.
func (u *Unit) GotoTB(chain int, target uint32) {
	u.Emit(Op{Kind: KindGotoTB, Chain: chain, Target: target})
}

func (u *Unit) ExitIndirect() {
	u.Emit(Op{Kind: KindExitIndirect})
}

func (u *Unit) Raise(cause uint32) {
	u.Emit(Op{Kind: KindRaise, Imm: int64(cause)})
}

func (u *Unit) VMov(dst, src Var) {
	u.Emit(Op{Kind: KindVMov, Dst: dst, Src: [4]Var{src}})
}

func (u *Unit) VAddW(dst, a, b Var) { u.binary(KindVAddW, dst, a, b) }
func (u *Unit) VCmpEqW(dst, a, b Var) { u.binary(KindVCmpEqW, dst, a, b) }

func (u *Unit) VMux(dst, q, a, b Var) {
	u.Emit(Op{Kind: KindVMux, Dst: dst, Src: [4]Var{q, a, b}})
}

func (u *Unit) VLoad(dst, addr Var) {
	u.Emit(Op{Kind: KindVLoad, Dst: dst, Src: [4]Var{addr}})
}

func (u *Unit) VStoreLog(slot int, addr, src Var) {
	u.Emit(Op{Kind: KindVStoreLog, Src: [4]Var{addr, src}, Imm: int64(slot)})
}

// Count returns the number of ops matching fn.
func (u *Unit) Count(fn func(*Op) bool) int {
	n := 0
	for i := range u.Ops {
		if fn(&u.Ops[i]) {
			n++
		}
	}
	return n
}

// String renders the unit one op per line.
func (u *Unit) String() string {
	var b strings.Builder
	for i := range u.Ops {
		fmt.Fprintf(&b, "%4d  %s\n", i, u.Ops[i].String())
	}
	return b.String()
}
