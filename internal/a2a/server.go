package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Handler processes incoming A2A requests.
type Handler interface {
	HandleSendMessage(ctx context.Context, req SendMessageRequest) (*Task, error)
	HandleGetTask(ctx context.Context, req GetTaskRequest) (*Task, error)
	HandleCancelTask(ctx context.Context, req CancelTaskRequest) (*Task, error)
}

// ErrTaskNotFound is returned by handlers for unknown task IDs. The server
// maps it to ErrCodeTaskNotFound.
var ErrTaskNotFound = errors.New("task not found")

// Server exposes a Handler over HTTP: the agent card at AgentCardPath and
// JSON-RPC at "/".
type Server struct {
	card    AgentCard
	handler Handler
	mux     *http.ServeMux
	http    *http.Server
}

// NewServer creates an A2A server for the given agent.
func NewServer(card AgentCard, handler Handler) *Server {
	s := &Server{
		card:    card,
		handler: handler,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET "+AgentCardPath, s.handleAgentCard)
	s.mux.HandleFunc("POST /", s.handleJSONRPC)
	return s
}

// Handle mounts an extra handler on the server mux, e.g. /metrics.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start binds addr and serves in a background goroutine. Bind errors are
// returned synchronously.
func (s *Server) Start(_ context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("a2a: listen %s: %w", addr, err)
	}
	s.http = &http.Server{Handler: s.mux}
	go s.http.Serve(ln)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.card); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, errorResponse(nil, ErrCodeParse, "Parse error: "+err.Error()))
		return
	}
	if rpcErr := req.validate(); rpcErr != nil {
		writeResponse(w, JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: req.ID, Error: rpcErr})
		return
	}

	ctx := r.Context()
	var resp JSONRPCResponse
	switch req.Method {
	case MethodSendMessage:
		resp = dispatch(ctx, &req, s.handler.HandleSendMessage)
	case MethodGetTask:
		resp = dispatch(ctx, &req, s.handler.HandleGetTask)
	case MethodCancelTask:
		resp = dispatch(ctx, &req, s.handler.HandleCancelTask)
	default:
		resp = errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
	writeResponse(w, resp)
}

// dispatch decodes params into P and calls fn.
func dispatch[P any](ctx context.Context, req *JSONRPCRequest, fn func(context.Context, P) (*Task, error)) JSONRPCResponse {
	var params P
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
	}
	task, err := fn(ctx, params)
	if err != nil {
		return errorResponse(req.ID, errorCode(err), err.Error())
	}
	return resultResponse(req.ID, task)
}

func writeResponse(w http.ResponseWriter, resp JSONRPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
