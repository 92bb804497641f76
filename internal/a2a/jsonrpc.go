package a2a

import (
	"encoding/json"
	"errors"
)

const JSONRPCVersion = "2.0"

// JSONRPCRequest is the request envelope. IDs are echoed back verbatim, so
// both numeric and string IDs work.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603

	ErrCodeTaskNotFound = -32001
)

const (
	MethodSendMessage = "message/send"
	MethodGetTask     = "tasks/get"
	MethodCancelTask  = "tasks/cancel"
)

// AgentCardPath is where every agent serves its card.
const AgentCardPath = "/.well-known/agent-card.json"

// validate rejects envelopes that are JSON but not JSON-RPC 2.0 requests.
func (r *JSONRPCRequest) validate() *JSONRPCError {
	switch {
	case r.JSONRPC != JSONRPCVersion:
		return &JSONRPCError{Code: ErrCodeInvalidRequest, Message: "Invalid request: jsonrpc must be \"2.0\""}
	case r.Method == "":
		return &JSONRPCError{Code: ErrCodeInvalidRequest, Message: "Invalid request: missing method"}
	}
	return nil
}

func resultResponse(id any, result any) JSONRPCResponse {
	data, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, ErrCodeInternal, "Failed to marshal result: "+err.Error())
	}
	return JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: id, Result: data}
}

func errorResponse(id any, code int, message string) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message},
	}
}

// errorCode maps a handler error onto a JSON-RPC error code.
func errorCode(err error) int {
	if errors.Is(err, ErrTaskNotFound) {
		return ErrCodeTaskNotFound
	}
	return ErrCodeInternal
}
