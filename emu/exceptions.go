package emu

import "fmt"

// Guest exception causes.
const (
	ExcpFetchNoUPage  uint32 = 0x012
	ExcpInvalidOpcode uint32 = 0x015
	ExcpPrivNoURead   uint32 = 0x024
	ExcpPrivNoUWrite  uint32 = 0x025
	ExcpInvalidPacket uint32 = 0x026
	ExcpTrap0         uint32 = 0x172
)

// ExcpName returns a readable name for an exception cause.
func ExcpName(cause uint32) string {
	switch cause {
	case ExcpFetchNoUPage:
		return "fetch_no_upage"
	case ExcpInvalidOpcode:
		return "invalid_opcode"
	case ExcpPrivNoURead:
		return "priv_no_uread"
	case ExcpPrivNoUWrite:
		return "priv_no_uwrite"
	case ExcpInvalidPacket:
		return "invalid_packet"
	case ExcpTrap0:
		return "trap0"
	}
	return fmt.Sprintf("cause_0x%03x", cause)
}
