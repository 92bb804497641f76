package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/queryroute/internal/backend/graphrag"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
)

func newIndexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build a strategy index from document files",
		Long: `Index document files for naive_rag or graph_rag. A .jsonl file (for
example the output of "preprocess hotpotqa") contributes one document per
line; any other file is a single document.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "naive <files...>",
		Short: "Chunk, embed and store documents for naive_rag",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, a, orchestrator.NaiveRAG, args, nil)
		},
	})

	var dataPath string
	graphCmd := &cobra.Command{
		Use:   "graph <files...>",
		Short: "Extract a knowledge graph index for graph_rag",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata := map[string]any{}
			if dataPath != "" {
				metadata[graphrag.ContextDataPath] = dataPath
			}
			return runIndex(cmd, a, orchestrator.GraphRAG, args, metadata)
		},
	}
	graphCmd.Flags().StringVar(&dataPath, "data-path", "", "index directory (default graph_rag.data_path)")
	cmd.AddCommand(graphCmd)

	return cmd
}

func runIndex(cmd *cobra.Command, a *app, name orchestrator.StrategyName, files []string, metadata map[string]any) error {
	docs, err := readDocuments(files)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return errors.New("no documents found in the given files")
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["source"] = "cli"

	st, err := buildStack(cmd.Context(), a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ok, err := st.registry.BuildIndex(cmd.Context(), name, docs, metadata)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s index build failed; see the log for details", name)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s indexed %d document(s) for %s\n", color.GreenString("✓"), len(docs), name)
	return nil
}
