package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sarchlab/hexdbt/engine"
	"github.com/sarchlab/hexdbt/loader"
	"github.com/sarchlab/hexdbt/translate"
)

// app holds the streams and the global flags shared by every command.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath   string
	debug        bool
	logLevel     string
	otlpEndpoint string

	exitCode int
}

// execute runs the command line and returns the process exit status.
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	rootCmd := a.rootCmd()
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		return 1
	}

	return a.exitCode
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "hexdbt",
		Short:        "Packet-level Hexagon binary translator",
		SilenceUsage: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetIn(a.stdin)
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to translator configuration JSON file")
	flags.BoolVar(&a.debug, "debug", false, "Enable the packet trace and store width assertions")
	flags.StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&a.otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP endpoint receiving translation spans")

	rootCmd.AddCommand(a.translateCmd(), a.runCmd(), a.configCmd())

	return rootCmd
}

// logger builds the text logger for the chosen level. --debug implies the
// debug level.
func (a *app) logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", a.logLevel, err)
	}
	if a.debug {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level})), nil
}

// config loads the translator configuration named by --config and applies
// --debug.
func (a *app) config() (*translate.Config, error) {
	cfg := translate.DefaultConfig()
	if a.configPath != "" {
		loaded, err := translate.LoadConfig(a.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if a.debug {
		cfg.Debug = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid translator config: %w", err)
	}

	return cfg, nil
}

// image says where the guest program comes from.
type image struct {
	raw  bool
	base uint32
}

func (img *image) addFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&img.raw, "raw", false, "Treat the input as raw little-endian code instead of ELF")
	cmd.Flags().Uint32Var(&img.base, "base", 0x1000, "Load address of raw code")
}

// newEngine creates an engine with the program at path loaded.
func (a *app) newEngine(
	ctx context.Context,
	path string,
	img image,
	opts ...engine.Option,
) (*engine.Engine, func(), error) {
	cfg, err := a.config()
	if err != nil {
		return nil, nil, err
	}

	logger, err := a.logger()
	if err != nil {
		return nil, nil, err
	}

	shutdown, err := setupTracing(ctx, a.otlpEndpoint)
	if err != nil {
		return nil, nil, err
	}

	opts = append([]engine.Option{
		engine.WithConfig(cfg),
		engine.WithLogger(logger),
		engine.WithStdin(a.stdin),
		engine.WithStdout(a.stdout),
		engine.WithStderr(a.stderr),
	}, opts...)
	e := engine.NewEngine(opts...)

	if img.raw {
		data, err := os.ReadFile(path)
		if err != nil {
			shutdown()
			return nil, nil, fmt.Errorf("failed to read program: %w", err)
		}
		err = e.LoadProgram(img.base, data)
		if err != nil {
			shutdown()
			return nil, nil, err
		}
	} else {
		prog, err := loader.Load(path)
		if err != nil {
			shutdown()
			return nil, nil, err
		}
		if err := e.LoadELF(prog); err != nil {
			shutdown()
			return nil, nil, err
		}
		logger.Debug("loaded program",
			"path", path,
			"entry", fmt.Sprintf("0x%08x", prog.EntryPoint),
			"segments", len(prog.Segments),
		)
	}

	return e, shutdown, nil
}

// parseAddr parses a decimal or 0x-prefixed guest address.
func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint32(v), nil
}
