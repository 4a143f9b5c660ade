package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NERVsystems/osmnode/pkg/core"
	"github.com/NERVsystems/osmnode/pkg/monitoring"
)

// HTTPTransportConfig holds configuration for the HTTP transport
type HTTPTransportConfig struct {
	Addr           string // listen address, e.g. ":7082"
	BaseURL        string // advertised base URL; derived from the request when empty
	SSEEndpoint    string
	MsgEndpoint    string
	MaxRequestSize int64

	// AuthToken enables bearer authentication on the MCP endpoints when set
	AuthToken string
}

// DefaultHTTPTransportConfig returns sensible defaults
func DefaultHTTPTransportConfig() HTTPTransportConfig {
	return HTTPTransportConfig{
		Addr:           ":7082",
		SSEEndpoint:    "/sse",
		MsgEndpoint:    "/message",
		MaxRequestSize: 10 << 20,
	}
}

// HTTPTransport serves MCP over HTTP+SSE next to the health and metrics endpoints
type HTTPTransport struct {
	config    HTTPTransportConfig
	logger    *slog.Logger
	sseServer *mcpserver.SSEServer
	mux       *http.ServeMux
	health    *monitoring.HealthChecker

	mu      sync.Mutex
	httpSrv *http.Server
}

// NewHTTPTransport creates a new HTTP transport instance. hc may be nil.
func NewHTTPTransport(mcpServer *mcpserver.MCPServer, config HTTPTransportConfig, hc *monitoring.HealthChecker, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultHTTPTransportConfig()
	if config.SSEEndpoint == "" {
		config.SSEEndpoint = defaults.SSEEndpoint
	}
	if config.MsgEndpoint == "" {
		config.MsgEndpoint = defaults.MsgEndpoint
	}
	if config.MaxRequestSize <= 0 {
		config.MaxRequestSize = defaults.MaxRequestSize
	}
	if config.AuthToken != "" {
		if err := core.ValidateAuthToken(config.AuthToken); err != nil {
			logger.Warn("weak authentication token detected", "error", err.Error())
		}
	}

	sseServer := mcpserver.NewSSEServer(
		mcpServer,
		mcpserver.WithSSEEndpoint(config.SSEEndpoint),
		mcpserver.WithMessageEndpoint(config.MsgEndpoint),
		mcpserver.WithBaseURL(config.BaseURL),
	)

	t := &HTTPTransport{
		config:    config,
		logger:    logger,
		sseServer: sseServer,
		mux:       http.NewServeMux(),
		health:    hc,
	}
	t.setupRoutes()
	return t
}

func (t *HTTPTransport) setupRoutes() {
	t.mux.HandleFunc("/", t.handleServiceDiscovery)
	MountMonitoring(t.mux, t.health)
	t.mux.Handle(t.config.SSEEndpoint, t.authMiddleware(t.sseServer.SSEHandler()))
	t.mux.Handle(t.config.MsgEndpoint, t.authMiddleware(t.sseServer.MessageHandler()))
}

// authMiddleware requires a bearer token on the MCP endpoints
func (t *HTTPTransport) authMiddleware(next http.Handler) http.Handler {
	if t.config.AuthToken == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := core.AuthenticateBearer(r.Header.Get("Authorization"), t.config.AuthToken); err != nil {
			t.logger.Warn("authentication failed",
				"remote_addr", getIP(r),
				"path", r.URL.Path,
				"error", err)
			w.Header().Set("WWW-Authenticate", "Bearer")
			t.writeJSONRPCError(w, http.StatusUnauthorized, -32001, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (t *HTTPTransport) writeJSONRPCError(w http.ResponseWriter, status, code int, message string) {
	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      nil,
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		t.logger.Error("failed to encode JSON-RPC error", "error", err)
	}
}

// MountMonitoring registers /health, /ready, /live and /metrics on mux.
// Without a health checker the probes answer a static ok.
func MountMonitoring(mux *http.ServeMux, hc *monitoring.HealthChecker) {
	if hc != nil {
		mux.HandleFunc("/health", hc.HealthHandler())
		mux.HandleFunc("/ready", hc.ReadinessHandler())
		mux.HandleFunc("/live", hc.LivenessHandler())
	} else {
		ok := func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}
		mux.HandleFunc("/health", ok)
		mux.HandleFunc("/ready", ok)
		mux.HandleFunc("/live", ok)
	}
	mux.Handle("/metrics", promhttp.Handler())
}

// handleServiceDiscovery tells MCP clients where the SSE and message endpoints live
func (t *HTTPTransport) handleServiceDiscovery(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	baseURL := t.config.BaseURL
	if baseURL == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}

	discovery := map[string]interface{}{
		"service":   ServerName,
		"transport": "HTTP+SSE",
		"endpoints": map[string]string{
			"sse":     baseURL + t.config.SSEEndpoint,
			"message": baseURL + t.config.MsgEndpoint,
		},
		"auth": map[string]interface{}{
			"required": t.config.AuthToken != "",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(discovery); err != nil {
		t.logger.Error("failed to encode service discovery response", "error", err)
	}
}

// Handler returns the routed mux wrapped in the transport middleware
func (t *HTTPTransport) Handler() http.Handler {
	handler := http.Handler(t.mux)
	handler = TracingMiddleware()(handler)
	handler = LoggingMiddleware(t.logger)(handler)
	handler = SecurityHeaders(handler)
	return RequestSizeLimiter(t.config.MaxRequestSize)(handler)
}

// Start begins serving on the configured address and blocks until Shutdown
func (t *HTTPTransport) Start() error {
	ln, err := net.Listen("tcp", t.config.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", t.config.Addr, err)
	}
	return t.Serve(ln)
}

// Serve accepts connections on ln until Shutdown
func (t *HTTPTransport) Serve(ln net.Listener) error {
	t.mu.Lock()
	if t.httpSrv != nil {
		t.mu.Unlock()
		return core.NewError(core.ErrInternalError, "HTTP transport already started").
			WithGuidance("Stop the running transport before starting it again.")
	}
	t.httpSrv = &http.Server{
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv := t.httpSrv
	t.mu.Unlock()

	t.logger.Info("starting HTTP transport",
		"addr", ln.Addr().String(),
		"sse_endpoint", t.config.SSEEndpoint,
		"message_endpoint", t.config.MsgEndpoint,
		"auth_required", t.config.AuthToken != "")

	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP transport
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.httpSrv == nil {
		return nil
	}

	t.logger.Info("shutting down HTTP transport")
	if err := t.sseServer.Shutdown(ctx); err != nil {
		t.logger.Error("failed to shutdown SSE server", "error", err)
	}

	err := t.httpSrv.Shutdown(ctx)
	t.httpSrv = nil
	return err
}
