package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dusk-indust/queryroute/internal/a2a"
	"github.com/dusk-indust/queryroute/internal/orchestrator"
)

// version is set by the linker at build time.
var version = "dev"

// NewPipelineAgent exposes the full query pipeline. The message text is the
// query; an optional data part is passed to backends as the pipeline context.
func NewPipelineAgent(p orchestrator.Orchestrator, opts ...Option) *BaseAgent {
	card := a2a.AgentCard{
		Name:        "queryroute",
		Description: "Decomposes a query, routes each sub-query to a retrieval strategy and combines the answers.",
		Version:     version,
		Skills: []a2a.AgentSkill{{
			ID:          "process_query",
			Name:        "Process query",
			Description: "Answer a natural-language query through the routing pipeline.",
			Tags:        []string{"rag", "routing"},
		}},
		DefaultInputModes:  []string{"text/plain", "application/json"},
		DefaultOutputModes: []string{"text/plain"},
	}

	return NewBaseAgent(card, func(ctx context.Context, _ *a2a.Task, msg a2a.Message) ([]a2a.Artifact, error) {
		query, c, err := decodeRequest(msg)
		if err != nil {
			return nil, err
		}
		answer, err := p.Process(ctx, query, c)
		if err != nil {
			return nil, err
		}
		return []a2a.Artifact{a2a.NewTextArtifact(AnswerArtifactName, answer)}, nil
	}, opts...)
}

// NewBackendAgent exposes a single strategy backend so that other pipelines
// can reach it as a remote strategy.
func NewBackendAgent(name orchestrator.StrategyName, b orchestrator.Backend, opts ...Option) *BaseAgent {
	card := a2a.AgentCard{
		Name:        "queryroute-" + string(name),
		Description: fmt.Sprintf("Answers sub-queries with the %s strategy.", name),
		Version:     version,
		Skills: []a2a.AgentSkill{{
			ID:          string(name),
			Name:        string(name),
			Description: "Execute one sub-query with this strategy.",
			Tags:        []string{"rag", string(name)},
		}},
		DefaultInputModes:  []string{"text/plain", "application/json"},
		DefaultOutputModes: []string{"text/plain"},
	}

	return NewBaseAgent(card, func(ctx context.Context, _ *a2a.Task, msg a2a.Message) ([]a2a.Artifact, error) {
		query, c, err := decodeRequest(msg)
		if err != nil {
			return nil, err
		}
		answer, err := b.Execute(ctx, query, c)
		if err != nil {
			return nil, err
		}
		return []a2a.Artifact{a2a.NewTextArtifact(AnswerArtifactName, answer)}, nil
	}, opts...)
}

// decodeRequest extracts the query text and optional context from msg.
func decodeRequest(msg a2a.Message) (string, orchestrator.Context, error) {
	query := strings.TrimSpace(msg.Text())
	if query == "" {
		return "", nil, errors.New("agent: message has no query text")
	}

	var c orchestrator.Context
	if data := msg.Data(); len(data) > 0 {
		if err := json.Unmarshal(data, &c); err != nil {
			return "", nil, fmt.Errorf("agent: decode context: %w", err)
		}
	}
	return query, c, nil
}
