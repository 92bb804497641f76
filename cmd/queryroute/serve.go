package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/queryroute/internal/agent"
	"github.com/dusk-indust/queryroute/internal/mcptools"
	"github.com/dusk-indust/queryroute/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the pipeline over MCP or A2A",
	}
	cmd.AddCommand(newServeMCPCmd(a), newServeA2ACmd(a))
	return cmd
}

func newServeMCPCmd(a *app) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio, or on streamable HTTP with --http",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := buildStack(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer st.Close()

			svc := mcptools.NewQueryService(st.pipeline, st.registry, st.caps, st.status)
			server := mcptools.NewQueryMCPServer(svc)

			if httpAddr != "" {
				extra := map[string]http.Handler{}
				if a.cfg.Metrics.Enabled {
					extra["/metrics"] = metrics.Handler()
				}
				a.logger.Info("serving MCP over HTTP", zap.String("addr", httpAddr))
				return mcptools.RunHTTP(ctx, server, httpAddr, extra)
			}

			if a.cfg.Metrics.Enabled {
				go serveMetrics(ctx, a.cfg.Metrics.Addr, a.logger)
			}
			return mcptools.RunStdio(ctx, server)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	return cmd
}

type serveA2AFlags struct {
	Addr           string
	ExposeBackends bool
	BackendHost    string
	BackendPort    int
}

func newServeA2ACmd(a *app) *cobra.Command {
	var f serveA2AFlags

	cmd := &cobra.Command{
		Use:   "a2a",
		Short: "Run the pipeline as an A2A agent",
		Long: `Serve the pipeline as an A2A agent at --addr, with Prometheus metrics at
/metrics. With --expose-backends every local strategy is also served as its
own agent on sequential ports from --backend-port, so that other queryroute
instances can use it through the remote section of their configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeA2A(cmd, a, f)
		},
	}
	cmd.Flags().StringVar(&f.Addr, "addr", ":9100", "listen address of the pipeline agent")
	cmd.Flags().BoolVar(&f.ExposeBackends, "expose-backends", false, "also serve each strategy backend as an agent")
	cmd.Flags().StringVar(&f.BackendHost, "backend-host", "127.0.0.1", "host for backend agents")
	cmd.Flags().IntVar(&f.BackendPort, "backend-port", 9101, "first port for backend agents")
	return cmd
}

func runServeA2A(cmd *cobra.Command, a *app, f serveA2AFlags) error {
	ctx := cmd.Context()
	st, err := buildStack(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()

	pipelineAgent := agent.NewPipelineAgent(st.pipeline, agent.WithLogger(a.logger))
	pipelineAgent.Server().Handle("GET /metrics", metrics.Handler())
	if err := pipelineAgent.Start(ctx, f.Addr); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s pipeline agent listening on %s\n", color.GreenString("✓"), f.Addr)

	agents := agent.NewRegistry()
	if f.ExposeBackends {
		for _, name := range st.registry.Names() {
			b, _ := st.registry.Lookup(name)
			agents.Register(string(name), func() agent.Agent {
				return agent.NewBackendAgent(name, b, agent.WithLogger(a.logger.Named(string(name))))
			})
		}
		endpoints, err := agents.SpawnAll(ctx, f.BackendHost, f.BackendPort)
		if err != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return multierror.Append(err, pipelineAgent.Stop(stopCtx)).ErrorOrNil()
		}
		for _, ep := range endpoints {
			fmt.Fprintf(out, "%s %s agent listening on http://%s\n", color.GreenString("✓"), ep.Name, ep.Addr)
		}
	}

	<-ctx.Done()
	a.logger.Info("shutting down agents")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return multierror.Append(agents.StopAll(stopCtx), pipelineAgent.Stop(stopCtx)).ErrorOrNil()
}

// serveMetrics exposes /metrics on addr until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(stopCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
	}
}
