// Package rpc implements the JSON-RPC 2.0 `nova_*` API over
// gorilla/mux, the way orbas1-Synnergy's xchainserver wires its HTTP
// surface: a single mux.Router, one handler per method, structured
// logging via logrus on each request.
package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Standard and application JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeTxNotFound    = -32000
	CodeBlockNotFound = -32001
	CodeAccountNotFound = -32002
	CodeTxRejected    = -32003
	CodeNodeSyncing   = -32004
)

// Request is a JSON-RPC 2.0 request object.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Response is a JSON-RPC 2.0 response object. Exactly one of Result or
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func errorResponse(id json.RawMessage, code int, message string) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}}
}

func resultResponse(id json.RawMessage, result interface{}) Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, CodeInternalError, "failed to marshal result")
	}
	return Response{JSONRPC: "2.0", ID: id, Result: raw}
}

// HandlerFunc answers one nova_* method given its raw params.
type HandlerFunc func(params json.RawMessage) (interface{}, *Error)

// Server dispatches JSON-RPC requests to registered nova_* methods.
type Server struct {
	log      *logrus.Logger
	methods  map[string]HandlerFunc
	router   *mux.Router
}

// NewServer builds a Server with every nova_* method wired against
// backend. log receives one structured entry per request, matching
// the sparse lifecycle/error-only density the rest of the module uses.
func NewServer(backend *Backend, log *logrus.Logger) *Server {
	s := &Server{
		log:     log,
		methods: make(map[string]HandlerFunc),
		router:  mux.NewRouter(),
	}
	s.registerMethods(backend)
	s.router.HandleFunc("/rpc", s.handleHTTP).Methods(http.MethodPost)
	return s
}

// Router exposes the underlying mux.Router for embedding into a larger
// HTTP mux (e.g. alongside a metrics endpoint).
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) register(method string, h HandlerFunc) {
	s.methods[method] = h
}

func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, errorResponse(nil, CodeParseError, "invalid JSON"))
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeResponse(w, errorResponse(req.ID, CodeInvalidRequest, "not a valid JSON-RPC 2.0 request"))
		return
	}

	handler, ok := s.methods[req.Method]
	if !ok {
		writeResponse(w, errorResponse(req.ID, CodeMethodNotFound, "unknown method: "+req.Method))
		return
	}

	result, rpcErr := handler(req.Params)
	if rpcErr != nil {
		s.log.WithFields(logrus.Fields{"component": "rpc", "method": req.Method, "code": rpcErr.Code}).Warn(rpcErr.Message)
		writeResponse(w, errorResponse(req.ID, rpcErr.Code, rpcErr.Message))
		return
	}
	writeResponse(w, resultResponse(req.ID, result))
}

func writeResponse(w http.ResponseWriter, resp Response) {
	_ = json.NewEncoder(w).Encode(resp)
}
