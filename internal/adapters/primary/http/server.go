package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"

	"github.com/fredcamaral/reloadrelay/internal/domain/entities"
	"github.com/fredcamaral/reloadrelay/internal/domain/ports"
)

const (
	// requestsPerMinute is the per-IP request budget
	requestsPerMinute = 300

	// gzipMinSize is the smallest response worth compressing
	gzipMinSize = 256
)

// Server is the tab-facing side of the relay: it attaches tabs over
// websocket, accepts the config handshake and fans broadcasts out.
type Server struct {
	server       *http.Server
	listener     net.Listener
	connMgr      *ConnectionManager
	hubCancel    context.CancelFunc
	sink         ports.ConfigSink
	status       ports.RelayStatusProvider
	stats        ports.MetricsProvider
	metrics      ports.RelayMetrics
	config       *entities.ServerConfig
	clientBuffer int
	limiter      *rateLimiter
	logger       *slog.Logger
	mu           sync.RWMutex
	running      bool
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the recorder for tab attach and detach events
func WithMetrics(metrics ports.RelayMetrics) Option {
	return func(s *Server) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithStats exposes process and relay counters on the status endpoints
func WithStats(stats ports.MetricsProvider) Option {
	return func(s *Server) {
		s.stats = stats
	}
}

// WithClientBuffer sets the per-tab send queue length
func WithClientBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.clientBuffer = n
		}
	}
}

// NewServer creates a new HTTP server.
// config must not be nil - use config.GetDefaultConfig().Server if needed
func NewServer(sink ports.ConfigSink, status ports.RelayStatusProvider, config *entities.ServerConfig, opts ...Option) *Server {
	if config == nil {
		panic("server config cannot be nil - provide a valid ServerConfig")
	}

	s := &Server{
		sink:         sink,
		status:       status,
		config:       config,
		clientBuffer: 64,
		metrics:      ports.NopMetrics{},
		logger:       slog.Default(),
		limiter:      newRateLimiter(requestsPerMinute, time.Minute),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "http_server")
	s.connMgr = NewConnectionManager(s.logger, s.metrics)

	return s
}

// Start binds the listener and serves in the background. Port 0 picks a free port.
func (s *Server) Start(ctx context.Context, port int, host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("server already running")
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	hubCtx, hubCancel := context.WithCancel(ctx)
	go s.connMgr.Run(hubCtx)
	go s.limiter.run(hubCtx)

	s.listener = listener
	s.hubCancel = hubCancel
	s.server = &http.Server{
		Addr:              listener.Addr().String(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.GetReadTimeout(),
		IdleTimeout:       60 * time.Second,
	}
	s.running = true

	go func() {
		s.logger.Info("HTTP server listening", slog.String("addr", listener.Addr().String()))
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop detaches every tab and gracefully shuts the HTTP server down
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return errors.New("server not running")
	}
	s.running = false

	// Closing the hub closes every tab's send queue
	s.hubCancel()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.GetShutdownTimeout())
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

// NotifyClients sends a broadcast to every attached tab
func (s *Server) NotifyClients(msg entities.BroadcastMessage) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running {
		return errors.New("server not running")
	}

	return s.connMgr.Broadcast(msg)
}

// Publish implements ports.Broadcaster
func (s *Server) Publish(msg entities.BroadcastMessage) error {
	return s.NotifyClients(msg)
}

// ClientCount returns the number of attached tabs
func (s *Server) ClientCount() int {
	return s.connMgr.Count()
}

// IsRunning returns whether the server is currently running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the bound listener address, or "" before Start
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler builds the routed and wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	compress := gzipWrapper()

	// Tab attach endpoint
	router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	// API endpoints
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/config", s.handleConfig).Methods(http.MethodPost)
	api.Handle("/status", compress(http.HandlerFunc(s.handleStatus))).Methods(http.MethodGet)

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/status", compress(http.HandlerFunc(s.handleStatusPage))).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handleError(w, fmt.Errorf("no route for %s", r.URL.Path), http.StatusNotFound)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handleError(w, fmt.Errorf("%s not allowed on %s", r.Method, r.URL.Path), http.StatusMethodNotAllowed)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   s.config.GetCORSOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	})

	// Apply middleware in order: cors -> security -> rate limiting -> logging -> recovery
	handler := c.Handler(router)
	handler = securityHeadersMiddleware(handler)
	handler = rateLimitMiddleware(handler, s.limiter)
	handler = loggingMiddleware(handler, s.logger)
	handler = recoveryMiddleware(handler, s.logger)

	return handler
}

// gzipWrapper returns the response compression wrapper for read endpoints
func gzipWrapper() func(http.Handler) http.HandlerFunc {
	wrapper, err := gzhttp.NewWrapper(gzhttp.MinSize(gzipMinSize))
	if err != nil {
		// Only reachable with invalid static options
		return gzhttp.GzipHandler
	}
	return wrapper
}

// Ensure Server implements ports.Broadcaster
var _ ports.Broadcaster = (*Server)(nil)
