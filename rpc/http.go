package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"estatechain/native/registry"
	"estatechain/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "ESTATE_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
)

// Server exposes the escrow registry over JSON-RPC. Mutations require a bearer
// token when one is configured; reads are always open.
type Server struct {
	registry  *registry.Registry
	logger    *slog.Logger
	metrics   *observability.RegistryMetrics
	authToken string
}

func NewServer(reg *registry.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry:  reg,
		logger:    logger,
		metrics:   observability.Registry(),
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
	}
}

// SetAuthToken overrides the bearer token sourced from the environment. An
// empty token disables authentication.
func (s *Server) SetAuthToken(token string) {
	s.authToken = strings.TrimSpace(token)
}

// Router builds the HTTP handler: the JSON-RPC endpoint at the root plus
// health and prometheus endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves the router on addr and blocks.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
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
	w.Header().Set("Content-Type", "application/json")
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
	w.Header().Set("Content-Type", "application/json")
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "missing bearer token"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: "invalid bearer token"}
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	start := time.Now()
	outcome := "ok"
	defer func() {
		s.metrics.ObserveRequest(method, outcome, time.Since(start))
	}()

	switch method {
	case "registry_register":
		outcome = s.handleRegister(w, r, &req)
	case "registry_updateListing":
		outcome = s.handleUpdateListing(w, r, &req)
	case "registry_approvePurchase":
		outcome = s.handleApprovePurchase(w, r, &req)
	case "registry_aiApprove":
		outcome = s.handleAIApprove(w, r, &req)
	case "registry_completePurchase":
		outcome = s.handleCompletePurchase(w, r, &req)
	case "registry_getProperty":
		outcome = s.handleGetProperty(w, &req)
	case "registry_propertyCount":
		outcome = s.handlePropertyCount(w, &req)
	case "registry_minPrice":
		outcome = s.handleMinPrice(w, &req)
	default:
		outcome = "error"
		s.metrics.ObserveError(method, strconv.Itoa(codeMethodNotFound))
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", method)
	}
}

// rpcError maps registry failures onto JSON-RPC codes so clients can branch on
// the error kind without parsing messages.
func (s *Server) rpcError(w http.ResponseWriter, req *RPCRequest, method string, err error) string {
	status := http.StatusBadRequest
	code := codeServerError
	switch {
	case errors.Is(err, registry.ErrPropertyNotFound):
		status, code = http.StatusNotFound, codeRegistryNotFound
	case errors.Is(err, registry.ErrUnauthorized):
		status, code = http.StatusForbidden, codeRegistryForbidden
	case errors.Is(err, registry.ErrInvalidBuyer):
		status, code = http.StatusForbidden, codeRegistryInvalidBuyer
	case errors.Is(err, registry.ErrPriceTooLow):
		code = codeRegistryPriceTooLow
	case errors.Is(err, registry.ErrNotForSale):
		status, code = http.StatusConflict, codeRegistryNotForSale
	case errors.Is(err, registry.ErrApprovalIncomplete):
		status, code = http.StatusConflict, codeRegistryApprovalIncomplete
	case errors.Is(err, registry.ErrFundsMismatch):
		status, code = http.StatusConflict, codeRegistryFundsMismatch
	default:
		status = http.StatusInternalServerError
	}
	s.metrics.ObserveError(method, strconv.Itoa(code))
	s.logger.Warn("registry call failed", slog.String("method", method), slog.Any("error", err))
	writeError(w, status, req.ID, code, err.Error(), nil)
	return "error"
}
