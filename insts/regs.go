package insts

import "strconv"

// Reg is an index into the combined scalar and control register file.
// Indices 0-31 are R0-R31, 32-63 are the control registers C0-C31.
type Reg uint8

// PredReg is a scalar predicate register index (P0-P3).
type PredReg uint8

// VecReg is an HVX vector register index (V0-V31).
type VecReg uint8

// QReg is an HVX vector predicate register index (Q0-Q3).
type QReg uint8

// Register file geometry.
const (
	NumRegs  = 64
	NumPreds = 4
	NumVRegs = 32
	NumQRegs = 4

	// VecBytes is the size of one HVX vector register in 128-byte mode.
	VecBytes = 128
	// QBytes is the size of one HVX vector predicate (one bit per byte lane).
	QBytes = VecBytes / 8
)

// Named scalar registers.
const (
	RegSP Reg = 29 // Stack pointer
	RegFP Reg = 30 // Frame pointer
	RegLR Reg = 31 // Link register
)

// Control registers, as indices into the combined register file.
const (
	RegSA0       Reg = 32 // C0: loop 0 start address
	RegLC0       Reg = 33 // C1: loop 0 count
	RegSA1       Reg = 34 // C2: loop 1 start address
	RegLC1       Reg = 35 // C3: loop 1 count
	RegP3_0      Reg = 36 // C4: alias of P3:0
	RegM0        Reg = 38 // C6
	RegM1        Reg = 39 // C7
	RegUSR       Reg = 40 // C8: user status register
	RegPC        Reg = 41 // C9
	RegUGP       Reg = 42 // C10
	RegGP        Reg = 43 // C11
	RegCS0       Reg = 44 // C12
	RegCS1       Reg = 45 // C13
	RegUPCycleLo Reg = 46 // C14
	RegUPCycleHi Reg = 47 // C15
	RegFrameLim  Reg = 48 // C16
	RegFrameKey  Reg = 49 // C17
	RegPktCntLo  Reg = 50 // C18
	RegPktCntHi  Reg = 51 // C19
	RegUTimerLo  Reg = 62 // C30
	RegUTimerHi  Reg = 63 // C31
)

// USR fields.
const (
	USRLPCFGShift = 8
	USRLPCFGWidth = 2
)

// ControlReg converts a control register number (Cn) to a register index.
func ControlReg(n uint8) Reg {
	return Reg(32 + n&0x1F)
}

// RegName returns the assembler name of a register.
func RegName(r Reg) string {
	switch r {
	case RegSP:
		return "sp"
	case RegFP:
		return "fp"
	case RegLR:
		return "lr"
	case RegSA0:
		return "sa0"
	case RegLC0:
		return "lc0"
	case RegSA1:
		return "sa1"
	case RegLC1:
		return "lc1"
	case RegP3_0:
		return "p3:0"
	case RegUSR:
		return "usr"
	case RegPC:
		return "pc"
	case RegUGP:
		return "ugp"
	case RegGP:
		return "gp"
	}

	if r < 32 {
		return "r" + strconv.Itoa(int(r))
	}

	return "c" + strconv.Itoa(int(r)-32)
}
