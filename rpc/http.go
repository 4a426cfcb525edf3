package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/adnhq/collateralized-lending/core/events"
	"github.com/adnhq/collateralized-lending/native/lending"
	"github.com/adnhq/collateralized-lending/native/oracle"
	"github.com/adnhq/collateralized-lending/native/token"
	"github.com/adnhq/collateralized-lending/observability"
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
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeNotFound       = -32004
)

// Server exposes the settlement engine over JSON-RPC 2.0. Admin-only methods
// additionally require a bearer token; the engine still enforces the ledger's
// own access control on the supplied caller address.
type Server struct {
	engine    *lending.Engine
	feeds     map[lending.CollateralKind]*oracle.ManualFeed
	events    *events.MemoryEmitter
	authToken string
	log       *slog.Logger
	metrics   *observability.RPCMetrics
}

// NewServer constructs a server around the engine. The admin bearer token is
// read from LENDINGD_RPC_TOKEN and may be overridden via SetAuthToken.
func NewServer(engine *lending.Engine) *Server {
	return &Server{
		engine:    engine,
		feeds:     make(map[lending.CollateralKind]*oracle.ManualFeed),
		authToken: strings.TrimSpace(os.Getenv("LENDINGD_RPC_TOKEN")),
		log:       slog.Default(),
		metrics:   observability.NewRPCMetrics(),
	}
}

// SetAuthToken replaces the bearer token guarding admin methods.
func (s *Server) SetAuthToken(token string) {
	s.authToken = strings.TrimSpace(token)
}

// SetEventSource wires the emitter backing lending_listEvents.
func (s *Server) SetEventSource(emitter *events.MemoryEmitter) {
	s.events = emitter
}

// BindManualFeed exposes a manual price feed through lending_setRate.
func (s *Server) BindManualFeed(kind lending.CollateralKind, feed *oracle.ManualFeed) {
	if !kind.Valid() || feed == nil {
		return
	}
	s.feeds[kind] = feed
}

// SetLogger replaces the request logger.
func (s *Server) SetLogger(log *slog.Logger) {
	if log != nil {
		s.log = log
	}
}

// Handler returns the HTTP handler serving the RPC endpoint. Prometheus
// metrics are exposed next to it under /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// Start serves the RPC endpoint on addr until the listener fails.
func (s *Server) Start(addr string) error {
	s.log.Info("starting JSON-RPC server", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// RPCRequest is a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError carries a JSON-RPC error object.
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
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// statusRecorder captures the status code ultimately written to the response
// so the dispatcher can label its metrics with the request outcome.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	method := s.dispatch(recorder, r)
	s.metrics.Observe(method, recorder.status, time.Since(start))
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) string {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body", nil)
		return ""
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC request", err.Error())
		return ""
	}

	handler, ok := s.route(req.Method)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return req.Method
	}
	handler(w, r, &req)
	return req.Method
}

func (s *Server) route(method string) (func(http.ResponseWriter, *http.Request, *RPCRequest), bool) {
	switch method {
	case "lending_getLoanInfo":
		return s.handleGetLoanInfo, true
	case "lending_getTotalInterest":
		return s.handleGetTotalInterest, true
	case "lending_totalLoansIssued":
		return s.handleTotalLoansIssued, true
	case "lending_takeLoan":
		return s.handleTakeLoan, true
	case "lending_payInterest":
		return s.handlePayInterest, true
	case "lending_reimburse":
		return s.handleReimburse, true
	case "lending_refinance":
		return s.handleRefinance, true
	case "lending_collectInterest":
		return s.withAuth(s.handleCollectInterest), true
	case "lending_reinstate":
		return s.withAuth(s.handleReinstate), true
	case "lending_withdrawTokens":
		return s.withAuth(s.handleWithdrawTokens), true
	case "lending_setRate":
		return s.withAuth(s.handleSetRate), true
	case "lending_listEvents":
		return s.handleListEvents, true
	default:
		return nil, false
	}
}

func (s *Server) withAuth(next func(http.ResponseWriter, *http.Request, *RPCRequest)) func(http.ResponseWriter, *http.Request, *RPCRequest) {
	return func(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
		if rpcErr := s.requireAuth(r); rpcErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			return
		}
		next(w, r, req)
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC authentication token"}
	}
	return nil
}

// errorCode maps engine and collaborator failures to JSON-RPC error codes.
// Collaborator failures propagate with their original message.
func errorCode(err error) int {
	switch {
	case errors.Is(err, lending.ErrLoanNotFound):
		return codeNotFound
	case errors.Is(err, lending.ErrUnauthorized):
		return codeUnauthorized
	case errors.Is(err, lending.ErrInvalidAmount),
		errors.Is(err, lending.ErrCollateralRatioOutOfRange),
		errors.Is(err, token.ErrInvalidAmount):
		return codeInvalidParams
	default:
		return codeServerError
	}
}

func errorStatus(code int) int {
	switch code {
	case codeNotFound:
		return http.StatusNotFound
	case codeUnauthorized:
		return http.StatusUnauthorized
	case codeInvalidParams:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	code := errorCode(err)
	writeError(w, errorStatus(code), id, code, err.Error(), nil)
}
