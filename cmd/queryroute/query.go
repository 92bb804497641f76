package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/queryroute/internal/backend/graphrag"
	"github.com/dusk-indust/queryroute/internal/backend/naiverag"
	"github.com/dusk-indust/queryroute/internal/export"
	"github.com/dusk-indust/queryroute/internal/hotpotqa"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
)

type queryFlags struct {
	Context   []string
	Documents []string
	DataPath  string
	Trace     bool
	Progress  bool
	Format    string
}

func newQueryCmd(a *app) *cobra.Command {
	var f queryFlags

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Answer a query through the full pipeline",
		Long: `Decompose the query, route every sub-query, execute them and print the
combined answer.

--documents files are passed to naive_rag and indexed before retrieval; a
.jsonl file contributes the "context" field of every line.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, a, f, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringArrayVarP(&f.Context, "context", "c", nil, "context entry as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&f.Documents, "documents", nil, "document file for naive_rag (repeatable)")
	cmd.Flags().StringVar(&f.DataPath, "data-path", "", "graph_rag index directory for this query")
	cmd.Flags().BoolVar(&f.Trace, "trace", false, "print every sub-query, its strategy and timing")
	cmd.Flags().BoolVar(&f.Progress, "progress", false, "print pipeline progress to stderr")
	cmd.Flags().StringVar(&f.Format, "format", "text", "output format: text, json or mermaid")
	return cmd
}

func runQuery(cmd *cobra.Command, a *app, f queryFlags, query string) error {
	switch f.Format {
	case "text", "json", "mermaid":
	default:
		return fmt.Errorf("unknown format %q (want text, json or mermaid)", f.Format)
	}

	c, err := parseContext(f.Context)
	if err != nil {
		return err
	}
	if len(f.Documents) > 0 {
		docs, err := readDocuments(f.Documents)
		if err != nil {
			return err
		}
		c[naiverag.ContextDocuments] = docs
	}
	if f.DataPath != "" {
		c[graphrag.ContextDataPath] = f.DataPath
	}

	ctx := cmd.Context()

	var (
		opts []orchestrator.PipelineOption
		pr   *orchestrator.ProgressReporter
		wg   sync.WaitGroup
	)
	if f.Progress {
		pr = orchestrator.NewProgressReporter()
		opts = append(opts, orchestrator.WithProgress(pr))
		wg.Add(1)
		go func() {
			defer wg.Done()
			printProgress(cmd.ErrOrStderr(), query, pr.Subscribe())
		}()
	}

	st, err := buildStack(ctx, a.cfg, a.logger, opts...)
	if err != nil {
		if pr != nil {
			pr.Close()
			wg.Wait()
		}
		return err
	}
	defer st.Close()

	trace, err := st.pipeline.ProcessTrace(ctx, query, c)
	if pr != nil {
		pr.Close()
		wg.Wait()
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch f.Format {
	case "json":
		return export.WriteJSON(out, trace)
	case "mermaid":
		_, err := fmt.Fprint(out, export.GenerateTraceMermaid(trace))
		return err
	}

	if f.Trace {
		printTrace(out, trace)
	}
	_, err = fmt.Fprintln(out, trace.Answer)
	return err
}

type routeFlags struct {
	Format string
}

func newRouteCmd(a *app) *cobra.Command {
	var f routeFlags

	cmd := &cobra.Command{
		Use:   "route <text>",
		Short: "Decompose and route a query without executing it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoute(cmd, a, f, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&f.Format, "format", "text", "output format: text or json")
	return cmd
}

func runRoute(cmd *cobra.Command, a *app, f routeFlags, query string) error {
	if f.Format != "text" && f.Format != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", f.Format)
	}

	st, err := buildStack(cmd.Context(), a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer st.Close()

	routes, err := st.pipeline.RouteOnly(cmd.Context(), query)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.Format == "json" {
		type route struct {
			Subquery string `json:"subquery"`
			Strategy string `json:"strategy"`
		}
		rows := make([]route, len(routes))
		for i, r := range routes {
			rows[i] = route{Subquery: r.Subquery, Strategy: string(r.Strategy)}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(rows)
	}

	for i, r := range routes {
		fmt.Fprintf(out, "%d. %s -> %s\n", i+1, r.Subquery, strategyColor(r.Strategy).Sprint(r.Strategy))
	}
	return nil
}

// parseContext turns key=value pairs into a pipeline context. Values that
// look like JSON arrays or objects are decoded; everything else stays a
// string.
func parseContext(pairs []string) (orchestrator.Context, error) {
	c := make(orchestrator.Context, len(pairs))
	for _, p := range pairs {
		key, val, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --context %q (want key=value)", p)
		}
		if strings.HasPrefix(val, "[") || strings.HasPrefix(val, "{") {
			var v any
			if err := json.Unmarshal([]byte(val), &v); err == nil {
				c[key] = v
				continue
			}
		}
		c[key] = val
	}
	return c, nil
}

// readDocuments loads document files. A .jsonl file yields the context of
// every line; any other file is one document.
func readDocuments(paths []string) ([]string, error) {
	var docs []string
	for _, p := range paths {
		fh, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("read documents: %w", err)
		}
		if strings.EqualFold(filepath.Ext(p), ".jsonl") {
			ctxs, err := hotpotqa.Contexts(fh)
			fh.Close()
			if err != nil {
				return nil, fmt.Errorf("read documents %s: %w", p, err)
			}
			docs = append(docs, ctxs...)
			continue
		}
		data, err := io.ReadAll(fh)
		fh.Close()
		if err != nil {
			return nil, fmt.Errorf("read documents %s: %w", p, err)
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			docs = append(docs, text)
		}
	}
	return docs, nil
}

func printTrace(w io.Writer, t *orchestrator.Trace) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "Query: %s\n", t.Query)
	if t.Fallback {
		color.New(color.FgYellow).Fprintln(w, "  decomposition failed, processed unsplit")
	}
	for i, r := range t.Results {
		mark := color.GreenString("✓")
		if r.Err != nil {
			mark = color.RedString("✗")
		}
		fmt.Fprintf(w, "  %s %d. %s [%s] %s\n", mark, i+1, r.Subquery,
			strategyColor(r.Strategy).Sprint(r.Strategy), r.Duration.Round(time.Millisecond))
	}
	bold.Fprintf(w, "Total: %s\n\n", t.Duration.Round(time.Millisecond))
}

func printProgress(w io.Writer, query string, events <-chan orchestrator.ProgressEvent) {
	stage := orchestrator.Stage(-1)
	for ev := range events {
		if ev.Stage != stage {
			stage = ev.Stage
			color.New(color.Faint).Fprintln(w, orchestrator.FormatStageHeader(query, stage))
		}
		line := orchestrator.FormatProgress(ev)
		if ev.Status == orchestrator.ProgressFailed {
			line = color.RedString(line)
		}
		fmt.Fprintln(w, line)
	}
}

func strategyColor(name orchestrator.StrategyName) *color.Color {
	switch name {
	case orchestrator.NaiveRAG:
		return color.New(color.FgCyan)
	case orchestrator.GraphRAG:
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgGreen)
	}
}
