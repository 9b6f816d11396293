// Package engine runs guest programs by translating blocks of packets and
// executing them on the reference backend.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sarchlab/hexdbt/emu"
	"github.com/sarchlab/hexdbt/insts"
	"github.com/sarchlab/hexdbt/ir/interp"
	"github.com/sarchlab/hexdbt/loader"
	"github.com/sarchlab/hexdbt/semantics"
	"github.com/sarchlab/hexdbt/translate"
)

// ErrPacketLimit is returned once the packet budget set with WithMaxPackets
// is used up.
var ErrPacketLimit = errors.New("max packets reached")

// GuestException is a guest exception the engine cannot service.
type GuestException struct {
	Cause uint32
	PC    uint32
}

func (e *GuestException) Error() string {
	return fmt.Sprintf("guest exception %s at 0x%08x", emu.ExcpName(e.Cause), e.PC)
}

// StepResult represents the result of executing a single block.
type StepResult struct {
	// Exited is true if the program terminated (via exit syscall).
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64

	// Err is set if an error occurred during execution.
	Err error
}

// Stats holds block cache and dispatch statistics.
type Stats struct {
	BlocksTranslated uint64
	BlocksExecuted   uint64
	CacheHits        uint64
	Syscalls         uint64
}

type blockKey struct {
	pc    uint32
	flags translate.BlockFlags
}

// Engine executes Hexagon programs block by block.
type Engine struct {
	regFile        *emu.RegFile
	memory         *emu.Memory
	lsu            *emu.LoadStoreUnit
	machine        *interp.Machine
	translator     *translate.Translator
	syscallHandler emu.SyscallHandler

	cfg     *translate.Config
	trOpts  []translate.Option
	logger  *slog.Logger
	log     *slog.Logger
	blocks  map[blockKey]*translate.Block
	stats   Stats
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	maxPkts uint64 // 0 means no limit
}

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithStdin sets the reader behind guest descriptor 0.
func WithStdin(r io.Reader) Option {
	return func(e *Engine) {
		e.stdin = r
	}
}

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) Option {
	return func(e *Engine) {
		e.stdout = w
	}
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) Option {
	return func(e *Engine) {
		e.stderr = w
	}
}

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler emu.SyscallHandler) Option {
	return func(e *Engine) {
		e.syscallHandler = handler
	}
}

// WithMemory runs the engine on an existing address space.
func WithMemory(memory *emu.Memory) Option {
	return func(e *Engine) {
		e.memory = memory
	}
}

// WithStackPointer sets the initial stack pointer value.
func WithStackPointer(sp uint32) Option {
	return func(e *Engine) {
		e.regFile.WriteReg(insts.RegSP, sp)
	}
}

// WithMaxPackets sets the maximum number of packets to execute.
// A value of 0 means no limit.
func WithMaxPackets(limit uint64) Option {
	return func(e *Engine) {
		e.maxPkts = limit
	}
}

// WithConfig sets the translation policy.
func WithConfig(cfg *translate.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg.Clone()
	}
}

// WithLogger sets the logger shared with the translator.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTranslatorOptions passes extra options to the translator.
func WithTranslatorOptions(opts ...translate.Option) Option {
	return func(e *Engine) {
		e.trOpts = append(e.trOpts, opts...)
	}
}

// NewEngine creates a new engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		regFile: &emu.RegFile{},
		cfg:     translate.DefaultConfig(),
		logger:  slog.New(slog.DiscardHandler),
		blocks:  make(map[blockKey]*translate.Block),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.memory == nil {
		e.memory = emu.NewMemory(emu.WithPageSize(e.cfg.PageSize))
	}

	e.build()

	return e
}

// build creates the units that depend on the register file and memory.
func (e *Engine) build() {
	e.lsu = emu.NewLoadStoreUnit(e.memory)
	e.machine = interp.NewMachine(e.regFile, e.lsu)

	trOpts := append([]translate.Option{
		translate.WithConfig(e.cfg),
		translate.WithLogger(e.logger),
	}, e.trOpts...)
	e.translator = translate.NewTranslator(e.memory, semantics.Table(), trOpts...)

	if e.syscallHandler == nil {
		h := emu.NewDefaultSyscallHandler(e.regFile, e.memory, e.stdout, e.stderr)
		h.SetStdin(e.stdin)
		e.syscallHandler = h
	}

	e.log = e.logger.With("module", "engine")
}

// RegFile returns the engine's register file.
func (e *Engine) RegFile() *emu.RegFile {
	return e.regFile
}

// Memory returns the engine's memory.
func (e *Engine) Memory() *emu.Memory {
	return e.memory
}

// Translator returns the engine's translator.
func (e *Engine) Translator() *translate.Translator {
	return e.translator
}

// Stats returns the block cache and dispatch statistics.
func (e *Engine) Stats() Stats {
	return e.stats
}

// PacketCount returns the number of packets executed.
func (e *Engine) PacketCount() uint64 {
	return e.regFile.Counters.Packets
}

// LoadProgram maps program bytes read-write-execute at entry and sets the
// entry point.
func (e *Engine) LoadProgram(entry uint32, program []byte) error {
	e.memory.Map(entry, uint32(len(program)), emu.PermRWX)
	if err := e.memory.LoadBytes(entry, program); err != nil {
		return err
	}

	e.regFile.SetPC(entry)
	e.Flush()

	return nil
}

// LoadELF maps a loaded ELF program and sets the entry point and the stack
// pointer.
func (e *Engine) LoadELF(prog *loader.Program) error {
	if err := prog.MapInto(e.memory); err != nil {
		return err
	}

	e.regFile.SetPC(prog.EntryPoint)
	e.regFile.WriteReg(insts.RegSP, prog.InitialSP)
	e.Flush()

	return nil
}

// Flush drops every cached block. Call it after changing guest code.
func (e *Engine) Flush() {
	clear(e.blocks)
}

// Reset resets the engine to its initial state with an empty address
// space.
func (e *Engine) Reset() {
	e.regFile = &emu.RegFile{}
	e.memory = emu.NewMemory(emu.WithPageSize(e.cfg.PageSize))
	e.stats = Stats{}
	e.syscallHandler = nil
	e.Flush()

	e.build()
}

// lookup returns the translated block for the current state at pc.
func (e *Engine) lookup(ctx context.Context, pc uint32) *translate.Block {
	key := blockKey{pc: pc, flags: translate.FlagsFromState(e.regFile, pc)}

	if b, ok := e.blocks[key]; ok {
		e.stats.CacheHits++
		return b
	}

	b := e.translator.TranslateBlock(ctx, pc, key.flags)
	e.blocks[key] = b
	e.stats.BlocksTranslated++

	e.log.Debug("translated block",
		"pc", fmt.Sprintf("0x%08x", pc),
		"packets", b.NumPackets,
		"exit", b.Exit.String(),
	)

	return b
}

// Step translates, if needed, and executes the block at the current PC.
// Returns a StepResult indicating whether execution should continue.
func (e *Engine) Step(ctx context.Context) StepResult {
	if e.maxPkts > 0 && e.PacketCount() >= e.maxPkts {
		return StepResult{Err: ErrPacketLimit}
	}

	pc := e.regFile.PC()
	b := e.lookup(ctx, pc)

	exit, err := e.machine.Run(b.Unit)
	if err != nil {
		return StepResult{Err: fmt.Errorf("failed to run block at 0x%08x: %w", pc, err)}
	}
	e.stats.BlocksExecuted++

	if exit.Kind != interp.ExitException {
		return StepResult{}
	}

	if exit.Cause != emu.ExcpTrap0 {
		return StepResult{Err: &GuestException{Cause: exit.Cause, PC: exit.PC}}
	}

	// PC already holds the packet after the trap.
	e.stats.Syscalls++
	res := e.syscallHandler.Handle()

	return StepResult{
		Exited:   res.Exited,
		ExitCode: res.ExitCode,
	}
}

// Run executes blocks until the program exits or an error occurs.
// Returns the exit code (-1 if error).
func (e *Engine) Run(ctx context.Context) int64 {
	code, err := e.RunE(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(e.stderr, "Emulation error: %v\n", err)
		return -1
	}
	return code
}

// RunE is Run with the error returned instead of printed.
func (e *Engine) RunE(ctx context.Context) (int64, error) {
	for {
		if err := ctx.Err(); err != nil {
			return -1, err
		}

		result := e.Step(ctx)
		if result.Exited {
			e.log.Debug("guest exited",
				"code", result.ExitCode,
				"packets", e.PacketCount(),
				"blocks", e.stats.BlocksExecuted,
			)
			return result.ExitCode, nil
		}
		if result.Err != nil {
			return -1, result.Err
		}
	}
}
