package agent

import (
	"context"

	"github.com/dusk-indust/queryroute/internal/a2a"
)

// Agent is an A2A endpoint serving the pipeline or one of its backends.
type Agent interface {
	Card() a2a.AgentCard

	// HandleTask runs task to a terminal state and returns it.
	HandleTask(ctx context.Context, task a2a.Task, msg a2a.Message) (*a2a.Task, error)

	// Start binds addr and serves in the background.
	Start(ctx context.Context, addr string) error
	Stop(ctx context.Context) error
}

// AnswerArtifactName names the artifact carrying an agent's answer. The
// remote backend reads the first text artifact regardless of its name.
const AnswerArtifactName = "answer"
