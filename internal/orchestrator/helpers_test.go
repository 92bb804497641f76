package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// mapDecomposer returns fixed decompositions; unknown queries decompose to
// an empty sequence.
type mapDecomposer struct {
	rules  map[string][]string
	err    error
	called atomic.Int32
}

func (d *mapDecomposer) Decompose(_ context.Context, query string) ([]string, error) {
	d.called.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return d.rules[query], nil
}

// mapRouter routes by exact match and falls back to DefaultStrategy.
type mapRouter struct {
	rules map[string]StrategyName
}

func (r *mapRouter) Route(_ context.Context, subquery string) StrategyName {
	if s, ok := r.rules[subquery]; ok {
		return s
	}
	return DefaultStrategy
}

// fakeBackend answers from a map or with a prefix, recording every call.
type fakeBackend struct {
	mu       sync.Mutex
	answers  map[string]string
	prefix   string
	err      error
	calls    []string
	contexts []Context
}

func (b *fakeBackend) Execute(_ context.Context, query string, c Context) (string, error) {
	b.mu.Lock()
	b.calls = append(b.calls, query)
	b.contexts = append(b.contexts, c)
	b.mu.Unlock()

	if b.err != nil {
		return "", b.err
	}
	if a, ok := b.answers[query]; ok {
		return a, nil
	}
	return b.prefix + query, nil
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// indexingBackend is a fakeBackend that also builds an index.
type indexingBackend struct {
	fakeBackend
	ok   bool
	data []string
}

func (b *indexingBackend) BuildIndex(_ context.Context, data []string, _ map[string]any) bool {
	b.data = data
	return b.ok
}

var errBoom = errors.New("boom")

const (
	scenarioAQuery = "谁是美国总统且美国首都在哪里？"
	scenarioASub1  = "谁是美国总统？"
	scenarioASub2  = "美国首都在哪里？"
	scenarioBQuery = "如何制作蛋糕"
	scenarioCQuery = "北京的天气如何以及上海的GDP是多少？"
	scenarioCSub1  = "北京的天气如何？"
	scenarioCSub2  = "上海的GDP是多少？"
)

// scenarioFixtures returns the decomposer and router used by the scenario
// tests, mirroring the rule-based fixtures shipped in testdata.
func scenarioFixtures() (*mapDecomposer, *mapRouter) {
	d := &mapDecomposer{rules: map[string][]string{
		scenarioAQuery: {scenarioASub1, scenarioASub2},
		scenarioCQuery: {scenarioCSub1, scenarioCSub2},
		scenarioBQuery: {},
	}}
	r := &mapRouter{rules: map[string]StrategyName{
		scenarioASub1:  NaiveRAG,
		scenarioASub2:  GraphRAG,
		scenarioCSub1:  NoRAG,
		scenarioCSub2:  NaiveRAG,
		scenarioBQuery: NaiveRAG,
	}}
	return d, r
}
