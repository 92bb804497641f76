package a2a

import "context"

// Client is the caller side of the protocol. The remote backend and the
// capability detector depend on it rather than on HTTPClient so they can be
// tested with in-process fakes.
type Client interface {
	SendMessage(ctx context.Context, endpoint string, req SendMessageRequest) (*Task, error)
	GetTask(ctx context.Context, endpoint string, req GetTaskRequest) (*Task, error)
	CancelTask(ctx context.Context, endpoint string, req CancelTaskRequest) (*Task, error)

	// DiscoverAgent fetches the card served at baseURL + AgentCardPath.
	DiscoverAgent(ctx context.Context, baseURL string) (*AgentCard, error)
}
