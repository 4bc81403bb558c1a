package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"cdfichain/core"
	"cdfichain/core/types"
	"cdfichain/observability"
)

const (
	maxRequestBytes   = 1 << 20 // 1 MiB
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
	requestIDHeader   = "X-Request-ID"
)

// EventSource serves indexed events for cdfi_getEvents.
type EventSource interface {
	Events(eventType string, limit int) ([]types.Event, error)
}

type ServerConfig struct {
	// JWTSecret enables HS256 bearer auth on cdfi_sendTransaction.
	JWTSecret         string
	RequestsPerMinute int
	Burst             int
	Events            EventSource
	Logger            *slog.Logger
}

type Server struct {
	node    *core.Node
	events  EventSource
	auth    *jwtVerifier
	limiter *sourceLimiter
	hub     *Hub
	logger  *slog.Logger
	router  http.Handler

	serverMu   sync.Mutex
	httpServer *http.Server
}

func NewServer(node *core.Node, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:    node,
		events:  cfg.Events,
		auth:    newJWTVerifier(cfg.JWTSecret),
		limiter: newSourceLimiter(cfg.RequestsPerMinute, cfg.Burst),
		hub:     NewHub(logger),
		logger:  logger,
	}
	s.router = s.buildRouter()
	return s
}

// Hub is the receipt fan-out behind /ws. Register it as a node receipt sink.
func (s *Server) Hub() *Hub { return s.hub }

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.handleReceiptsWS)
	r.Method(http.MethodPost, "/", otelhttp.NewHandler(http.HandlerFunc(s.handle), "jsonrpc"))
	return r
}

// Serve runs the server on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("rpc server listening", "addr", listener.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rpc: shutdown: %w", err)
		}
		return nil
	}
}

// Start listens on addr and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

type requestIDKey struct{}

// requestID tags each request with a UUID, reusing the caller's header when
// present.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"chainId": s.node.ChainID(),
		"height":  s.node.Height(),
	})
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = "request body too large"
		}
		writeError(w, status, nil, codeInvalidRequest, message, nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to parse request", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}

	source := clientSource(r)
	if !s.limiter.allow(source) {
		observability.ModuleMetrics().RecordThrottle(moduleOf(req.Method), "rate_limit")
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", source)
		return
	}

	start := time.Now()
	result, rpcErr := s.dispatch(r, req)
	status := 0
	if rpcErr != nil {
		status = rpcErr.Code
	}
	observability.ModuleMetrics().Observe(moduleOf(req.Method), req.Method, status, time.Since(start))
	s.logger.Debug("rpc request",
		"method", req.Method,
		"requestid", requestIDFrom(r.Context()),
		"status", status,
		"duration", time.Since(start))

	if rpcErr != nil {
		writeError(w, rpcErr.status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	writeResult(w, req.ID, result)
}

func moduleOf(method string) string {
	if idx := strings.Index(method, "_"); idx > 0 {
		return method[:idx]
	}
	return "unknown"
}

func clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
