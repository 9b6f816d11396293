// Package translate turns Hexagon packets into IR.
//
// Every instruction of a packet reads the state from before the packet and
// all results become visible together. Packets without a hazard write
// canonical state directly; the rest stage their results and commit them
// after the last instruction, stores in slot 1 then slot 0.
package translate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sarchlab/hexdbt/emu"
	"github.com/sarchlab/hexdbt/insts"
	"github.com/sarchlab/hexdbt/ir"
)

const tracerName = "github.com/sarchlab/hexdbt/translate"

// PacketDecoder decodes the words of one packet.
type PacketDecoder interface {
	Decode(words []uint32, pc uint32) (*insts.Packet, error)
}

// BlockFlags is the CPU state a block was translated for.
type BlockFlags struct {
	// TightLoop is set when loop 0 starts at the block address.
	TightLoop bool `json:"tight_loop"`
}

// FlagsFromState derives the block flags for a block at pc.
func FlagsFromState(regs *emu.RegFile, pc uint32) BlockFlags {
	return BlockFlags{TightLoop: regs.R[insts.RegSA0] == pc}
}

// PacketSummary describes how one packet was translated.
type PacketSummary struct {
	PC         uint32   `json:"pc"`
	Insns      []string `json:"insns"`
	NeedCommit bool     `json:"need_commit"`
	Hazard     bool     `json:"hazard"`
	RegLog     []int    `json:"reg_log,omitempty"`
	PredLog    []int    `json:"pred_log,omitempty"`
	VRegLog    []int    `json:"vreg_log,omitempty"`
	QRegLog    []int    `json:"qreg_log,omitempty"`
	Preloaded  []int    `json:"preloaded,omitempty"`
	ArenaUsed  int      `json:"arena_used"`
	StoreOrder []int    `json:"store_order,omitempty"`
	Epilogue   Epilogue `json:"epilogue"`
	OpStart    int      `json:"op_start"`
	OpEnd      int      `json:"op_end"`
}

// Block is a translated block.
type Block struct {
	PC          uint32     `json:"pc"`
	EndPC       uint32     `json:"end_pc"`
	Flags       BlockFlags `json:"flags"`
	NumPackets  int        `json:"num_packets"`
	NumInsns    int        `json:"num_insns"`
	NumHVXInsns int        `json:"num_hvx_insns"`

	Exit      Epilogue `json:"exit"`
	ExitCause uint32   `json:"exit_cause,omitempty"`

	Packets []PacketSummary `json:"packets"`
	Unit    *ir.Unit        `json:"unit"`
}

// Translator translates blocks of guest code.
// A Translator is not safe for concurrent use.
type Translator struct {
	*sim.HookableBase

	mem     CodeReader
	table   OpcodeTable
	decoder PacketDecoder
	cfg     *Config
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option is a functional option for configuring the Translator.
type Option func(*Translator)

// WithConfig sets the translation policy.
func WithConfig(cfg *Config) Option {
	return func(t *Translator) {
		t.cfg = cfg.Clone()
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Translator) {
		t.logger = logger
	}
}

// WithTracer sets the tracer used for block spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(t *Translator) {
		t.tracer = tracer
	}
}

// WithDecoder replaces the packet decoder.
func WithDecoder(decoder PacketDecoder) Option {
	return func(t *Translator) {
		t.decoder = decoder
	}
}

// WithHook registers a hook invoked for every packet and block when
// debugging is enabled.
func WithHook(hook sim.Hook) Option {
	return func(t *Translator) {
		t.AcceptHook(hook)
	}
}

// NewTranslator creates a translator reading code from mem.
func NewTranslator(mem CodeReader, table OpcodeTable, opts ...Option) *Translator {
	t := &Translator{
		HookableBase: sim.NewHookableBase(),
		mem:          mem,
		table:        table,
		decoder:      insts.NewDecoder(),
		cfg:          DefaultConfig(),
		logger:       slog.New(slog.DiscardHandler),
		tracer:       otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(t)
	}

	t.logger = t.logger.With("module", "translate")

	return t
}

// Config returns the translation policy.
func (t *Translator) Config() *Config {
	return t.cfg
}

// TranslateBlock translates the block starting at pc.
func (t *Translator) TranslateBlock(ctx context.Context, pc uint32, flags BlockFlags) *Block {
	_, span := t.tracer.Start(ctx, "TranslateBlock", trace.WithAttributes(
		attribute.String("pc", fmt.Sprintf("0x%08x", pc)),
		attribute.Bool("tight_loop", flags.TightLoop),
	))
	defer span.End()

	u := ir.NewUnit()
	dc := newDisasContext(t.cfg, u, pc, flags)
	b := &Block{PC: pc, Flags: flags, Unit: u}

	pageSize := t.cfg.PageSize
	pageStart := pc &^ (pageSize - 1)
	cur := pc

	for {
		first := len(b.Packets) == 0
		mark := u.Mark()

		words, err := ReadPacketWords(t.mem, cur)
		if err != nil {
			if first {
				t.logger.Debug("fetch fault", "pc", hex(cur), "err", err)
				t.finish(b, dc, cur, dc.endException(cur, emu.ExcpFetchNoUPage), emu.ExcpFetchNoUPage)
			} else {
				t.finish(b, dc, cur, dc.endFallthrough(cur), 0)
			}
			break
		}
		if len(words) == 0 {
			t.finish(b, dc, cur, dc.endException(cur, emu.ExcpInvalidPacket), emu.ExcpInvalidPacket)
			break
		}
		invariant(first || !PacketCrossesPage(cur, len(words), pageSize),
			"packet at 0x%08x crosses the page of block 0x%08x", cur, pc)

		pkt, err := t.decoder.Decode(words, cur)
		if err != nil {
			t.logger.Debug("invalid packet", "pc", hex(cur), "err", err)
			t.finish(b, dc, cur, dc.endException(cur, emu.ExcpInvalidPacket), emu.ExcpInvalidPacket)
			break
		}

		dc.startPacket(pkt)
		u.InsnStart(cur)
		dc.analyzePacket(t.table)
		dc.planPacket()

		if !dc.generatePacket(t.table) {
			// Nothing of the packet may take effect.
			u.Truncate(mark)
			t.finish(b, dc, cur, dc.endException(cur, emu.ExcpInvalidOpcode), emu.ExcpInvalidOpcode)
			break
		}

		dc.commitStores()
		dc.commitRegisters()
		dc.countPacket()

		epilogue := EpilogueNone
		var cause uint32
		switch {
		case dc.pkt.pendingException:
			cause = dc.pkt.pendingExceptionNum
			epilogue = dc.endException(dc.pkt.nextPC, cause)
		case pkt.HasCOF:
			epilogue = dc.endBranch()
		}

		summary := dc.summarize(mark, u.Len(), epilogue)
		b.Packets = append(b.Packets, summary)
		t.tracePacket(&summary)

		if epilogue != EpilogueNone {
			t.finish(b, dc, dc.pkt.nextPC, epilogue, cause)
			break
		}

		cur = dc.pkt.nextPC
		if t.shouldStop(dc, cur, pageStart) {
			t.finish(b, dc, cur, dc.endFallthrough(cur), 0)
			break
		}
	}

	span.SetAttributes(
		attribute.Int("packets", b.NumPackets),
		attribute.String("exit", b.Exit.String()),
	)
	t.traceBlock(b)

	return b
}

// shouldStop decides whether the block ends before the packet at next.
func (t *Translator) shouldStop(dc *DisasContext, next, pageStart uint32) bool {
	cfg := t.cfg

	if dc.numPackets >= cfg.MaxPacketsPerBlock {
		return true
	}
	if dc.numInsns+insts.PacketWordsMax > cfg.MaxInsnsPerBlock {
		return true
	}

	off := next - pageStart
	if off >= cfg.PageSize {
		return true
	}
	if off >= cfg.PageSize-4*insts.PacketWordsMax {
		return NextPacketMayCrossPage(t.mem, next, cfg.PageSize)
	}

	return false
}

func (t *Translator) finish(b *Block, dc *DisasContext, end uint32, exit Epilogue, cause uint32) {
	b.EndPC = end
	b.Exit = exit
	b.ExitCause = cause
	b.NumPackets = dc.numPackets
	b.NumInsns = dc.numInsns
	b.NumHVXInsns = dc.numHVXInsns
}

func (c *DisasContext) summarize(mark ir.Mark, end int, epilogue Epilogue) PacketSummary {
	s := &c.pkt

	insns := make([]string, 0, len(s.pkt.Insns))
	for i := range s.pkt.Insns {
		insns = append(insns, s.pkt.Insns[i].Opcode.String())
	}

	return PacketSummary{
		PC:         s.pkt.PC,
		Insns:      insns,
		NeedCommit: s.needCommit,
		Hazard:     s.hazard,
		RegLog:     ints(s.regLog.Regs()),
		PredLog:    ints(s.predLog.Regs()),
		VRegLog:    ints(s.vregLog.Regs()),
		QRegLog:    ints(s.qregLog.Regs()),
		Preloaded:  ints(s.preloaded()),
		ArenaUsed:  s.arena.Used(),
		StoreOrder: s.storeOrder,
		Epilogue:   epilogue,
		OpStart:    mark.Index(),
		OpEnd:      end,
	}
}

func ints[R RegIndex](regs []R) []int {
	if len(regs) == 0 {
		return nil
	}
	out := make([]int, len(regs))
	for i, r := range regs {
		out[i] = int(r)
	}
	return out
}

func hex(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}
