package orchestrator

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the pipeline and its collaborators.
var (
	// ErrTransport wraps network or API failures inside a collaborator.
	ErrTransport = errors.New("transport error")

	// ErrUnrecognizedStrategy means classifier output named no known strategy.
	ErrUnrecognizedStrategy = errors.New("unrecognized strategy")

	// ErrMissingStrategy means a routed strategy has no registered backend.
	ErrMissingStrategy = errors.New("strategy not found")

	// ErrBackendExecution wraps a backend failure recovered at the execute stage.
	ErrBackendExecution = errors.New("backend execution failed")
)

// MissingStrategyText is the result text for a strategy absent from the registry.
func MissingStrategyText(name StrategyName) string {
	return fmt.Sprintf("Error: strategy not found: %q", string(name))
}

// BackendErrorText is the result text for a failed backend execution.
func BackendErrorText(name StrategyName, err error) string {
	return fmt.Sprintf("Error executing strategy %q: %v", string(name), err)
}
