package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/queryroute/internal/status"
)

func newStatusCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show available strategies and index state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := buildStack(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer st.Close()

			report := st.status(cmd.Context())
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printReport(w io.Writer, r *status.Report) {
	fmt.Fprintf(w, "Capability: %s\n\n", color.New(color.Bold).Sprint(r.Level))

	fmt.Fprintln(w, "Strategies:")
	for _, s := range r.Strategies {
		switch {
		case s.Available && s.Remote != "":
			fmt.Fprintf(w, "  %s %-10s remote %s\n", color.GreenString("✓"), s.Name, s.Remote)
		case s.Available:
			fmt.Fprintf(w, "  %s %-10s\n", color.GreenString("✓"), s.Name)
		default:
			fmt.Fprintf(w, "  %s %-10s %s\n", color.RedString("✗"), s.Name, s.Reason)
		}
	}

	if n := r.NaiveIndex; n != nil {
		fmt.Fprintf(w, "\nnaive_rag index (%s): ", n.Store)
		if n.Error != "" {
			fmt.Fprintln(w, color.RedString(n.Error))
		} else {
			fmt.Fprintf(w, "%d chunk(s)\n", n.Chunks)
		}
	}

	if g := r.GraphIndex; g != nil {
		fmt.Fprintf(w, "\ngraph_rag index (%s): ", g.DataPath)
		switch {
		case g.Error != "":
			fmt.Fprintln(w, color.RedString(g.Error))
		case len(g.Missing) > 0:
			fmt.Fprintf(w, "%s %v\n", color.YellowString("missing"), g.Missing)
		case g.Ready && g.Stats != nil:
			fmt.Fprintf(w, "%d entities, %d relationships, %d reports, %d text units\n",
				g.Stats.EntityCount, g.Stats.RelationshipCount, g.Stats.ReportCount, g.Stats.TextUnitCount)
		default:
			fmt.Fprintln(w, "ready")
		}
	}
}
