package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/queryroute/internal/export"
	"github.com/dusk-indust/queryroute/internal/graph"
)

func newDiagramCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diagram [data-path]",
		Short: "Print a Mermaid diagram of a graph_rag index",
		Long: `Load the graph_rag index under data-path (default graph_rag.data_path)
and print its communities and relationships as a Mermaid flowchart.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataPath := a.cfg.GraphRAG.DataPath
			if len(args) == 1 {
				dataPath = args[0]
			}
			if dataPath == "" {
				return fmt.Errorf("no data path given and graph_rag.data_path is not set")
			}
			if missing := graph.MissingFiles(dataPath); len(missing) > 0 {
				return fmt.Errorf("no graph index at %s (missing %s)\nRun 'queryroute index graph' first",
					dataPath, strings.Join(missing, ", "))
			}

			store := graph.NewMemStore()
			defer store.Close()

			ctx := cmd.Context()
			if err := graph.LoadDir(ctx, dataPath, store); err != nil {
				return err
			}
			mermaid, err := export.GenerateGraphMermaid(ctx, store)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), mermaid)
			return err
		},
	}
}
