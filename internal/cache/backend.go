package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/queryroute/internal/metrics"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
)

// Compile-time interface checks.
var (
	_ orchestrator.Backend      = (*Backend)(nil)
	_ orchestrator.IndexBuilder = (*Backend)(nil)
)

// Backend memoizes the successful answers of another backend. Failures and
// fallback answers are never cached, and a cache that cannot be reached
// degrades to a miss.
type Backend struct {
	name   orchestrator.StrategyName
	next   orchestrator.Backend
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithTTL sets how long answers are kept. Zero uses the store default.
func WithTTL(d time.Duration) Option {
	return func(b *Backend) { b.ttl = d }
}

// Wrap caches the answers next gives for strategy name.
func Wrap(name orchestrator.StrategyName, next orchestrator.Backend, store Store, opts ...Option) *Backend {
	b := &Backend{name: name, next: next, store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Unwrap returns the cached backend.
func (b *Backend) Unwrap() orchestrator.Backend { return b.next }

// Execute returns the cached answer for (strategy, query, c) or runs the
// wrapped backend and caches its answer.
func (b *Backend) Execute(ctx context.Context, query string, c orchestrator.Context) (string, error) {
	key, ok := Key(b.name, query, c)
	if !ok {
		return b.next.Execute(ctx, query, c)
	}

	v, hit, err := b.store.Get(ctx, key)
	switch {
	case err != nil:
		metrics.IncCache("error")
		b.logger.Warn("cache: lookup failed", zap.String("strategy", string(b.name)), zap.Error(err))
	case hit:
		metrics.IncCache("hit")
		return v, nil
	default:
		metrics.IncCache("miss")
	}

	out, err := b.next.Execute(ctx, query, c)
	if err != nil {
		return "", err
	}
	if fr, ok := b.next.(orchestrator.FallbackReporter); ok && fr.IsFallback(query, out) {
		return out, nil
	}
	if err := b.store.Set(ctx, key, out, b.ttl); err != nil {
		b.logger.Warn("cache: store failed", zap.String("strategy", string(b.name)), zap.Error(err))
	}
	return out, nil
}

// BuildIndex forwards to the wrapped backend and, on success, purges the
// cache since earlier answers may be stale. A wrapped backend without an
// index reports false.
func (b *Backend) BuildIndex(ctx context.Context, data []string, metadata map[string]any) bool {
	ib, ok := b.next.(orchestrator.IndexBuilder)
	if !ok {
		b.logger.Error("cache: wrapped backend does not build an index", zap.String("strategy", string(b.name)))
		return false
	}
	if !ib.BuildIndex(ctx, data, metadata) {
		return false
	}
	if err := b.store.Purge(ctx); err != nil {
		b.logger.Warn("cache: purge failed", zap.String("strategy", string(b.name)), zap.Error(err))
	}
	return true
}

// Key derives the cache key of one execution. It is false when c cannot be
// encoded, in which case the call is not cached.
func Key(name orchestrator.StrategyName, query string, c orchestrator.Context) (string, bool) {
	ctxJSON, err := json.Marshal(c)
	if err != nil {
		return "", false
	}
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write(ctxJSON)
	return hex.EncodeToString(h.Sum(nil)), true
}
