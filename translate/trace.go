package translate

import (
	"github.com/sarchlab/akita/v4/sim"
)

// Hook positions invoked when debugging is enabled.
var (
	// HookPosPacket is invoked after each packet with its *PacketSummary.
	HookPosPacket = &sim.HookPos{Name: "Translate Packet"}

	// HookPosBlock is invoked after each block with its *Block.
	HookPosBlock = &sim.HookPos{Name: "Translate Block"}
)

func (t *Translator) tracePacket(p *PacketSummary) {
	if !t.cfg.Debug {
		return
	}

	t.logger.Debug("packet",
		"pc", hex(p.PC),
		"insns", p.Insns,
		"need_commit", p.NeedCommit,
		"hazard", p.Hazard,
		"reg_log", p.RegLog,
		"store_order", p.StoreOrder,
		"epilogue", p.Epilogue.String(),
	)

	if t.NumHooks() > 0 {
		t.InvokeHook(sim.HookCtx{
			Domain: t,
			Pos:    HookPosPacket,
			Item:   p,
		})
	}
}

func (t *Translator) traceBlock(b *Block) {
	if !t.cfg.Debug {
		return
	}

	t.logger.Debug("block",
		"pc", hex(b.PC),
		"end_pc", hex(b.EndPC),
		"packets", b.NumPackets,
		"insns", b.NumInsns,
		"exit", b.Exit.String(),
		"ops", b.Unit.Len(),
	)

	if t.NumHooks() > 0 {
		t.InvokeHook(sim.HookCtx{
			Domain: t,
			Pos:    HookPosBlock,
			Item:   b,
		})
	}
}
