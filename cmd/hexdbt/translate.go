package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/hexdbt/translate"
)

func (a *app) translateCmd() *cobra.Command {
	var (
		img     image
		pcFlag  string
		ops     bool
		asJSON  bool
		nblocks int
	)

	cmd := &cobra.Command{
		Use:   "translate <program>",
		Short: "Translate blocks and print their packets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, shutdown, err := a.newEngine(ctx, args[0], img)
			if err != nil {
				return err
			}
			defer shutdown()

			pc := e.RegFile().PC()
			if pcFlag != "" {
				if pc, err = parseAddr(pcFlag); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			tr := e.Translator()
			for i := 0; i < nblocks; i++ {
				b := tr.TranslateBlock(ctx, pc, translate.FlagsFromState(e.RegFile(), pc))

				if asJSON {
					data, err := json.MarshalIndent(b, "", "  ")
					if err != nil {
						return fmt.Errorf("failed to serialize block: %w", err)
					}
					fmt.Fprintln(out, string(data))
				} else {
					fmt.Fprint(out, b.Tree(ops).String())
				}

				// Only fallthrough exits have a static successor.
				if b.Exit != translate.EpilogueFallthrough {
					break
				}
				pc = b.EndPC
			}

			return nil
		},
	}

	img.addFlags(cmd)
	cmd.Flags().StringVar(&pcFlag, "pc", "", "Address of the first block (default: entry point)")
	cmd.Flags().BoolVar(&ops, "ops", false, "List the IR of every packet")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print blocks as JSON")
	cmd.Flags().IntVar(&nblocks, "blocks", 1, "Number of consecutive fallthrough blocks to translate")

	return cmd
}
