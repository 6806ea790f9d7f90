package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"atelier/core/events"
	"atelier/native/common"
	"atelier/native/marketplace"
	"atelier/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server exposes the marketplace ledger over JSON-RPC. The ledger assumes
// strictly serialized mutations, so a single mutex wraps every state-changing
// call; queries go through without it.
type Server struct {
	engine *marketplace.Engine
	log    *events.Log

	mu        sync.Mutex
	authToken string
}

// NewServer constructs a server bound to the supplied engine. The optional
// event log backs the debug event feed.
func NewServer(engine *marketplace.Engine, log *events.Log) *Server {
	token := strings.TrimSpace(os.Getenv("ATELIER_RPC_TOKEN"))
	return &Server{
		engine:    engine,
		log:       log,
		authToken: token,
	}
}

// Start begins serving JSON-RPC requests on addr.
func (s *Server) Start(addr string) error {
	slog.Info("starting JSON-RPC server", "addr", addr)
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	return http.ListenAndServe(addr, mux)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeEngineError maps the ledger's closed error set onto RPC error codes.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, marketplace.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeUnauthorized, err.Error(), nil)
	case errors.Is(err, marketplace.ErrNotFound),
		errors.Is(err, marketplace.ErrInvalidAmount),
		errors.Is(err, marketplace.ErrInsufficientBalance),
		errors.Is(err, marketplace.ErrAlreadyExists),
		errors.Is(err, marketplace.ErrInvalidRoyalty):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	case errors.Is(err, common.ErrModulePaused):
		writeError(w, http.StatusServiceUnavailable, id, codeServerError, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, err.Error(), nil)
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "Bearer "+s.authToken {
		return nil
	}
	return &RPCError{Code: codeUnauthorized, Message: "unauthorized"}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", err.Error())
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC request", err.Error())
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method is required", nil)
		return
	}

	start := time.Now()
	outcome := s.dispatch(w, r, &req)
	observability.MarketplaceMetrics().ObserveRequest(req.Method, outcome, time.Since(start).Seconds())
	slog.Debug("rpc request", "method", req.Method, "outcome", outcome, "duration", time.Since(start))
}

// dispatch routes a request and reports the outcome label recorded in
// metrics. Mutating methods take the server mutex to reproduce the ledger's
// single-writer semantics in front of concurrent HTTP clients.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	switch req.Method {
	case "marketplace_createProfile":
		return s.mutating(func() string { return s.handleCreateProfile(w, r, req) })
	case "marketplace_updateProfile":
		return s.mutating(func() string { return s.handleUpdateProfile(w, r, req) })
	case "marketplace_createWork":
		return s.mutating(func() string { return s.handleCreateWork(w, r, req) })
	case "marketplace_addRoyaltySplit":
		return s.mutating(func() string { return s.handleAddRoyaltySplit(w, r, req) })
	case "marketplace_listForSale":
		return s.mutating(func() string { return s.handleListForSale(w, r, req) })
	case "marketplace_cancelListing":
		return s.mutating(func() string { return s.handleCancelListing(w, r, req) })
	case "marketplace_purchase":
		return s.mutating(func() string { return s.handlePurchase(w, r, req) })
	case "marketplace_setPlatformFee":
		return s.mutating(func() string { return s.handleSetPlatformFee(w, r, req) })
	case "marketplace_verifyCreator":
		return s.mutating(func() string { return s.handleVerifyCreator(w, r, req) })
	case "marketplace_deactivateWork":
		return s.mutating(func() string { return s.handleDeactivateWork(w, r, req) })
	case "marketplace_getWork":
		return s.handleGetWork(w, req)
	case "marketplace_getOwnership":
		return s.handleGetOwnership(w, req)
	case "marketplace_getProfile":
		return s.handleGetProfile(w, req)
	case "marketplace_getListing":
		return s.handleGetListing(w, req)
	case "marketplace_getRoyaltySplit":
		return s.handleGetRoyaltySplit(w, req)
	case "marketplace_nextWorkId":
		return s.handleNextWorkID(w, req)
	case "marketplace_platformFee":
		return s.handlePlatformFee(w, req)
	case "marketplace_events":
		return s.handleEvents(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
		return "method_not_found"
	}
}

func (s *Server) mutating(fn func() string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}
