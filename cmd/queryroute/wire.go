package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/dusk-indust/queryroute/internal/a2a"
	"github.com/dusk-indust/queryroute/internal/backend/graphrag"
	"github.com/dusk-indust/queryroute/internal/backend/naiverag"
	"github.com/dusk-indust/queryroute/internal/backend/norag"
	"github.com/dusk-indust/queryroute/internal/backend/remote"
	"github.com/dusk-indust/queryroute/internal/cache"
	"github.com/dusk-indust/queryroute/internal/config"
	"github.com/dusk-indust/queryroute/internal/decomposer"
	"github.com/dusk-indust/queryroute/internal/embed"
	"github.com/dusk-indust/queryroute/internal/graph"
	"github.com/dusk-indust/queryroute/internal/llm"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
	"github.com/dusk-indust/queryroute/internal/router"
	"github.com/dusk-indust/queryroute/internal/status"
	"github.com/dusk-indust/queryroute/internal/vectorstore"
)

// stack is a fully wired pipeline together with the resources it owns.
type stack struct {
	cfg      *config.Config
	logger   *zap.Logger
	pipeline *orchestrator.Pipeline
	registry *orchestrator.Registry
	caps     orchestrator.Capabilities

	// naiveStore is nil when naive_rag is disabled.
	naiveStore vectorstore.Store
	cache      cache.Store
	closers    []func() error
}

// buildStack wires decomposer, router, backends and pipeline from cfg. opts
// are applied to the pipeline after the configured options.
func buildStack(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...orchestrator.PipelineOption) (*stack, error) {
	s := &stack{cfg: cfg, logger: logger}
	if err := s.build(ctx, opts); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *stack) build(ctx context.Context, opts []orchestrator.PipelineOption) error {
	d, err := s.decomposer()
	if err != nil {
		return err
	}
	r, err := s.router()
	if err != nil {
		return err
	}

	backends, flags, err := s.localBackends(ctx)
	if err != nil {
		return err
	}

	remotes := make(map[orchestrator.StrategyName]string, len(s.cfg.Remote))
	for name, ep := range s.cfg.Remote {
		remotes[orchestrator.StrategyName(name)] = ep
	}
	client := a2a.NewHTTPClient(
		a2a.WithRetry(s.cfg.Retry.Attempts, s.cfg.Retry.Delay),
		a2a.WithClientLogger(s.logger),
	)
	caps, err := orchestrator.NewDefaultDetector(flags, remotes, client, s.logger).Detect(ctx)
	if err != nil {
		return fmt.Errorf("detect capabilities: %w", err)
	}
	s.caps = caps

	// A reachable remote agent takes over its strategy.
	for name, ep := range caps.Remote {
		backends[name] = remote.New(client, ep, remote.WithLogger(s.logger))
	}

	if s.cfg.Cache.Enabled {
		store, err := cache.Open(ctx, s.cfg.Cache)
		if err != nil {
			return err
		}
		s.cache = store
		s.closers = append(s.closers, store.Close)
		for name, b := range backends {
			backends[name] = cache.Wrap(name, b, store,
				cache.WithLogger(s.logger),
				cache.WithTTL(s.cfg.Cache.TTL),
			)
		}
	}

	s.registry = orchestrator.NewRegistry()
	for name, b := range backends {
		s.registry.Register(name, b)
	}

	opts = append([]orchestrator.PipelineOption{
		orchestrator.WithOptions(orchestrator.Options{
			Concurrency:       s.cfg.Pipeline.Concurrency,
			DecomposeFallback: s.cfg.Pipeline.DecomposeFallback,
		}),
		orchestrator.WithLogger(s.logger),
	}, opts...)
	s.pipeline = orchestrator.NewPipeline(d, r, s.registry, opts...)

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, string(name))
	}
	sort.Strings(names)
	s.logger.Debug("pipeline wired", zap.Strings("strategies", names), zap.Stringer("level", caps.Level))
	return nil
}

// decomposer returns the rule-based decomposer when rules.decompositions is
// set, otherwise the model-backed one.
func (s *stack) decomposer() (orchestrator.Decomposer, error) {
	if path := s.cfg.Rules.Decompositions; path != "" {
		rf, err := decomposer.LoadRuleFile(path)
		if err != nil {
			return nil, err
		}
		return decomposer.NewRuleDecomposer(rf.Decompositions), nil
	}
	client, err := llm.New(s.cfg.Decomposer, s.cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("decomposer: %w", err)
	}
	return decomposer.NewLLMDecomposer(client, s.cfg.Decomposer), nil
}

// router mirrors decomposer for rules.routes.
func (s *stack) router() (orchestrator.Router, error) {
	if path := s.cfg.Rules.Routes; path != "" {
		rf, err := decomposer.LoadRuleFile(path)
		if err != nil {
			return nil, err
		}
		return router.NewRuleRouter(rf.Routes), nil
	}
	client, err := llm.New(s.cfg.Router, s.cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	return router.NewLLMRouter(client, s.cfg.Router, router.WithLogger(s.logger)), nil
}

// localBackends builds the in-process backends enabled by rag.* and reports
// the flags the detector needs.
func (s *stack) localBackends(ctx context.Context) (map[orchestrator.StrategyName]orchestrator.Backend, orchestrator.StrategyFlags, error) {
	backends := make(map[orchestrator.StrategyName]orchestrator.Backend)
	flags := orchestrator.StrategyFlags{
		NaiveRAG: s.cfg.RAG.NaiveRAGEnabled,
		GraphRAG: s.cfg.RAG.GraphRAGEnabled,
	}

	client, err := llm.New(s.cfg.NoRAG.ModelConfig, s.cfg.Retry)
	if err != nil {
		return nil, flags, fmt.Errorf("no_rag: %w", err)
	}
	backends[orchestrator.NoRAG] = norag.New(client, s.cfg.NoRAG, norag.WithLogger(s.logger))

	if flags.NaiveRAG {
		client, err := llm.New(s.cfg.NaiveRAG.ModelConfig, s.cfg.Retry)
		if err != nil {
			return nil, flags, fmt.Errorf("naive_rag: %w", err)
		}
		store, err := vectorstore.Open(ctx, s.cfg.NaiveRAG)
		if err != nil {
			return nil, flags, err
		}
		s.naiveStore = store
		s.closers = append(s.closers, store.Close)
		backends[orchestrator.NaiveRAG] = naiverag.New(client, embed.New(s.cfg.NaiveRAG), store, s.cfg.NaiveRAG,
			naiverag.WithLogger(s.logger),
		)
	}

	if flags.GraphRAG {
		flags.GraphStoreErr = probeGraphStore(s.cfg.GraphRAG)
		if flags.GraphStoreErr == nil {
			client, err := llm.New(s.cfg.GraphRAG.ModelConfig, s.cfg.Retry)
			if err != nil {
				return nil, flags, fmt.Errorf("graph_rag: %w", err)
			}
			b := graphrag.New(client, s.cfg.GraphRAG, graphrag.WithLogger(s.logger))
			s.closers = append(s.closers, b.Close)
			backends[orchestrator.GraphRAG] = b
		}
	}
	return backends, flags, nil
}

// probeGraphStore reports whether the configured graph store can be opened in
// this build.
func probeGraphStore(cfg config.BackendConfig) error {
	if cfg.Store != "kuzu" {
		return nil
	}
	probe := cfg
	probe.DataPath = ""
	st, err := graph.Open(probe)
	if err != nil {
		return fmt.Errorf("graph_rag.store kuzu: %w", err)
	}
	return st.Close()
}

// status collects the deployment status.
func (s *stack) status(ctx context.Context) *status.Report {
	return status.Collect(ctx, s.cfg, s.caps, s.naiveStore)
}

// Close releases every resource in reverse order of acquisition.
func (s *stack) Close() error {
	var result *multierror.Error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.closers = nil
	return result.ErrorOrNil()
}
