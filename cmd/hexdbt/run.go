package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/hexdbt/engine"
)

func (a *app) runCmd() *cobra.Command {
	var (
		img        image
		maxPackets uint64
		stats      bool
	)

	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Run a guest program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, shutdown, err := a.newEngine(ctx, args[0], img, engine.WithMaxPackets(maxPackets))
			if err != nil {
				return err
			}
			defer shutdown()

			code, err := e.RunE(ctx)
			if stats {
				s := e.Stats()
				c := e.RegFile().Counters
				fmt.Fprintf(cmd.ErrOrStderr(),
					"packets=%d insns=%d hvx_insns=%d blocks_translated=%d blocks_executed=%d cache_hits=%d syscalls=%d\n",
					c.Packets, c.Insns, c.HVXInsns,
					s.BlocksTranslated, s.BlocksExecuted, s.CacheHits, s.Syscalls)
			}
			if err != nil {
				return fmt.Errorf("emulation error: %w", err)
			}

			a.exitCode = int(code)

			return nil
		},
	}

	img.addFlags(cmd)
	cmd.Flags().Uint64Var(&maxPackets, "max-packets", 0, "Stop after this many packets (0 means no limit)")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print execution statistics to stderr")

	return cmd
}
