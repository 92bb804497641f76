package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/queryroute/internal/hotpotqa"
)

func newPreprocessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Convert datasets into indexable JSONL",
		// Preprocessing needs no configuration.
		PersistentPreRun: func(*cobra.Command, []string) {},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "hotpotqa <in.json> <out.jsonl>",
		Short: "Convert a HotpotQA JSON array into JSONL with flattened contexts",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer in.Close()

			out, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}

			n, err := hotpotqa.Convert(in, out)
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %d document(s) to %s\n", color.GreenString("✓"), n, args[1])
			return nil
		},
	})
	return cmd
}
