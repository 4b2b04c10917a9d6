package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"questchain/core"
	"questchain/observability"
	"questchain/observability/logging"
	"questchain/storage/eventlog"
)

const (
	jsonRPCVersion         = "2.0"
	defaultMaxRequestBytes = 1 << 20 // 1 MiB
	requestIDHeader        = "X-Request-ID"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// EventSource pages through the committed event journal.
type EventSource interface {
	List(ctx context.Context, filter eventlog.Filter) ([]eventlog.Record, error)
}

// ServerConfig tunes the JSON-RPC listener.
type ServerConfig struct {
	JWTSecret          string
	JWTIssuer          string
	RateLimitPerMinute uint32
	TrustProxyHeaders  bool
	MaxRequestBytes    int64
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
}

type Server struct {
	ledger  *core.Ledger
	events  EventSource
	cfg     ServerConfig
	auth    *Authenticator
	limiter *RateLimiter
	logger  *slog.Logger
	handler http.Handler
}

// NewServer builds the JSON-RPC server. events may be nil when no journal is
// configured; quest_listEvents then reports an error.
func NewServer(ledger *core.Ledger, events EventSource, cfg ServerConfig, logger *slog.Logger) (*Server, error) {
	if ledger == nil {
		return nil, fmt.Errorf("rpc: ledger required")
	}
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = defaultMaxRequestBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		ledger: ledger,
		events: events,
		cfg:    cfg,
		auth:   NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer),
		logger: logger.With(slog.String("component", "rpc")),
	}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimitPerMinute)
		s.limiter.TrustProxyHeaders = cfg.TrustProxyHeaders
	}
	if !s.auth.Enabled() {
		s.logger.Warn("JWT secret not configured; mutating methods are disabled")
	}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(rpc chi.Router) {
		if s.limiter != nil {
			rpc.Use(s.limiter.Middleware)
		}
		rpc.Use(s.auth.Middleware)
		rpc.Post("/", s.handle)
	})
	return otelhttp.NewHandler(r, "questd.rpc")
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Serve listens on addr until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
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

func (e *RPCError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
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
	w.Header().Set("Content-Type", "application/json")
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	start := time.Now()
	result, rpcErr := s.dispatch(r, req)
	code := 0
	if rpcErr != nil {
		code = rpcErr.Code
	}
	observability.ModuleMetrics().Observe("quest", req.Method, code, time.Since(start))
	if rpcErr != nil {
		s.logger.Debug("request failed",
			slog.String("request_id", requestIDFromContext(r.Context())),
			slog.String("method", req.Method),
			slog.Int("code", rpcErr.Code),
			slog.String("reason", rpcErr.Message),
			slog.String("authorization", logging.MaskBearer(r.Header.Get("Authorization"))))
		status := http.StatusOK
		switch rpcErr.Code {
		case codeMethodNotFound:
			status = http.StatusNotFound
		case codeUnauthorized:
			status = http.StatusUnauthorized
		}
		writeError(w, status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) dispatch(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	switch req.Method {
	case "quest_instantiate":
		return s.handleInstantiate(r, req)
	case "quest_execute":
		return s.handleExecute(r, req)
	case "quest_createQuest":
		return s.handleCreateQuest(r, req)
	case "quest_completeQuest":
		return s.handleCompleteQuest(r, req)
	case "quest_transfer":
		return s.handleTransfer(r, req)
	case "quest_adminWithdraw":
		return s.handleAdminWithdraw(r, req)
	case "quest_query":
		return s.handleQuery(r, req)
	case "quest_getConfig":
		return s.query(r, core.QueryMsg{GetConfig: &core.Empty{}})
	case "quest_getBalance":
		return s.handleAddressQuery(r, req, func(q *core.AddressQuery) core.QueryMsg { return core.QueryMsg{GetBalance: q} })
	case "quest_getQuest":
		return s.handleGetQuest(r, req)
	case "quest_getActiveQuests":
		return s.query(r, core.QueryMsg{GetActiveQuests: &core.Empty{}})
	case "quest_getUserQuests":
		return s.handleAddressQuery(r, req, func(q *core.AddressQuery) core.QueryMsg { return core.QueryMsg{GetUserQuests: q} })
	case "quest_getUserStats":
		return s.handleAddressQuery(r, req, func(q *core.AddressQuery) core.QueryMsg { return core.QueryMsg{GetUserStats: q} })
	case "quest_listEvents":
		return s.handleListEvents(r, req)
	case "quest_status":
		return s.handleStatus(r, req)
	default:
		return nil, &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %s", req.Method)}
	}
}

func (s *Server) requireAuth(r *http.Request) (string, *RPCError) {
	if !s.auth.Enabled() {
		return "", &RPCError{Code: codeUnauthorized, Message: "authentication not configured"}
	}
	sender, ok := senderFromContext(r.Context())
	if !ok {
		return "", &RPCError{Code: codeUnauthorized, Message: "bearer token required"}
	}
	return sender, nil
}

// decodeParams decodes the single object parameter of req into out. Unknown
// fields are rejected.
func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected a single object parameter"}
	}
	dec := json.NewDecoder(bytes.NewReader(req.Params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid params", Data: err.Error()}
	}
	return nil
}
