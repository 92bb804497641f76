package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Compile-time check.
var _ Detector = (*DefaultDetector)(nil)

// DefaultDetector combines configuration flags with a reachability check of
// configured remote agents.
type DefaultDetector struct {
	flags        StrategyFlags
	remotes      map[StrategyName]string
	client       AgentDiscoverer
	probeTimeout time.Duration
	logger       *zap.Logger
}

// NewDefaultDetector creates a DefaultDetector. remotes maps strategies to
// A2A endpoints; client may be nil when there are no remotes.
func NewDefaultDetector(flags StrategyFlags, remotes map[StrategyName]string, client AgentDiscoverer, logger *zap.Logger) *DefaultDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultDetector{
		flags:        flags,
		remotes:      remotes,
		client:       client,
		probeTimeout: 2 * time.Second,
		logger:       logger,
	}
}

// Detect evaluates the flags and probes remote agents concurrently. no_rag is
// always available.
func (d *DefaultDetector) Detect(ctx context.Context) (Capabilities, error) {
	avail := map[StrategyName]bool{NoRAG: true}
	unavailable := make(map[StrategyName]string)

	if d.flags.NaiveRAG {
		avail[NaiveRAG] = true
	} else {
		unavailable[NaiveRAG] = "disabled by rag.naive_rag_enabled"
	}

	switch {
	case !d.flags.GraphRAG:
		unavailable[GraphRAG] = "disabled by rag.graph_rag_enabled"
	case d.flags.GraphStoreErr != nil:
		unavailable[GraphRAG] = d.flags.GraphStoreErr.Error()
	default:
		avail[GraphRAG] = true
	}

	remote := d.probeRemotes(ctx)
	for name := range d.remotes {
		if _, ok := remote[name]; !ok {
			unavailable[name] = fmt.Sprintf("remote agent %s unreachable", d.remotes[name])
		} else {
			delete(unavailable, name)
		}
	}

	caps := Capabilities{
		Available:   sortedStrategies(avail),
		Unavailable: unavailable,
		Remote:      remote,
	}
	for name := range remote {
		avail[name] = true
	}
	caps.Level = levelFor(avail)

	d.logger.Info("detector: capabilities",
		zap.Stringer("level", caps.Level),
		zap.Int("local", len(caps.Available)),
		zap.Int("remote", len(remote)),
	)
	return caps, nil
}

// probeRemotes fetches each remote agent's card in parallel and returns the
// endpoints that answered.
func (d *DefaultDetector) probeRemotes(ctx context.Context) map[StrategyName]string {
	found := make(map[StrategyName]string)
	if d.client == nil || len(d.remotes) == 0 {
		return found
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, ep := range d.remotes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.probeAgent(ctx, ep) {
				mu.Lock()
				found[name] = ep
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return found
}

// probeAgent reports whether endpoint serves an agent card within the timeout.
func (d *DefaultDetector) probeAgent(ctx context.Context, endpoint string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("detector: panic probing agent", zap.String("endpoint", endpoint), zap.Any("panic", r))
			ok = false
		}
	}()

	probeCtx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()

	card, err := d.client.DiscoverAgent(probeCtx, endpoint)
	if err != nil {
		d.logger.Debug("detector: agent probe failed", zap.String("endpoint", endpoint), zap.Error(err))
		return false
	}
	return card != nil
}
