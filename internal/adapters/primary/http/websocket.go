package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fredcamaral/reloadrelay/internal/domain/entities"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// MessageTypeConfig is the client frame carrying the relay configuration
const MessageTypeConfig = "config"

// createUpgrader creates a WebSocket upgrader with proper origin validation
func (s *Server) createUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return s.isValidOrigin(r)
		},
	}
}

// WebSocketClient represents an attached tab
type WebSocketClient struct {
	id      string
	conn    *websocket.Conn
	send    chan entities.BroadcastMessage
	server  *Server
	baseURL string
	logger  *slog.Logger
}

// ClientMessage represents a message received from a tab
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// handleWebSocket attaches a tab to the fan-out
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := s.createUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	id := uuid.New().String()
	client := &WebSocketClient{
		id:      id,
		conn:    conn,
		send:    make(chan entities.BroadcastMessage, s.clientBuffer),
		server:  s,
		baseURL: requestBaseURL(r),
		logger:  s.logger.With("tab_id", id),
	}

	if !s.connMgr.RegisterConnection(&Connection{ID: client.id, Send: client.send}) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump reads handshake frames from the tab until the connection ends
func (c *WebSocketClient) readPump() {
	defer func() {
		c.server.connMgr.Unregister(c.id)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket connection error", slog.String("error", err.Error()))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Debug("Ignoring unparsable tab message", slog.String("error", err.Error()))
			continue
		}

		if msg.Type != MessageTypeConfig {
			c.logger.Debug("Ignoring tab message", slog.String("type", msg.Type))
			continue
		}

		c.handleConfig(msg.Data)
	}
}

// handleConfig offers the tab's configuration to the relay
func (c *WebSocketClient) handleConfig(data json.RawMessage) {
	var cfg entities.RelayConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		c.logger.Warn("Invalid config handshake", slog.String("error", err.Error()))
		return
	}
	cfg.EventsURL = resolveEventsURL(cfg.EventsURL, c.baseURL)

	accepted, err := c.server.sink.Configure(cfg)
	switch {
	case err != nil:
		c.logger.Warn("Rejected config handshake",
			slog.String("events_url", cfg.EventsURL),
			slog.String("error", err.Error()),
		)
	case accepted:
		c.logger.Info("Config handshake accepted", slog.String("events_url", cfg.EventsURL))
	default:
		c.logger.Debug("Config handshake ignored, relay already configured")
	}
}

// writePump writes broadcasts to the tab and keeps the connection alive
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The manager closed the queue
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// requestBaseURL returns the origin a relative events URL is resolved against
func requestBaseURL(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" && origin != "null" {
		return origin
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// resolveEventsURL makes raw absolute against base. Absolute or unparsable
// values are returned unchanged so validation reports them.
func resolveEventsURL(raw, base string) string {
	if raw == "" || base == "" {
		return raw
	}

	ref, err := url.Parse(raw)
	if err != nil || ref.IsAbs() {
		return raw
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return raw
	}
	return baseURL.ResolveReference(ref).String()
}

// isValidOrigin validates WebSocket connection origins based on environment
func (s *Server) isValidOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Allow empty origin (same-origin requests and non-browser clients)
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		s.logger.Warn("WebSocket connection rejected: invalid origin URL",
			slog.String("origin", origin),
			slog.String("error", err.Error()),
		)
		return false
	}

	// Development mode: allow localhost and LAN addresses
	if s.config.IsDevelopment() {
		return s.isDevelopmentOrigin(originURL)
	}

	// Production mode: strict whitelist validation
	return s.isProductionOrigin(originURL)
}

// isDevelopmentOrigin validates origins for development environment
func (s *Server) isDevelopmentOrigin(originURL *url.URL) bool {
	hostname := originURL.Hostname()

	switch hostname {
	case "localhost", "127.0.0.1", "0.0.0.0", "::1":
		return true
	}

	// Private network ranges (192.168.x.x, 10.x.x.x, 172.16-31.x.x)
	return strings.HasPrefix(hostname, "192.168.") ||
		strings.HasPrefix(hostname, "10.") ||
		isPrivateClassB(hostname)
}

// isProductionOrigin validates origins against the configured CORS origins
func (s *Server) isProductionOrigin(originURL *url.URL) bool {
	for _, allowedOrigin := range s.config.GetCORSOrigins() {
		if allowedOrigin == "*" || originURL.String() == allowedOrigin {
			return true
		}

		// Wildcard subdomains (*.example.com)
		if strings.HasPrefix(allowedOrigin, "*.") {
			domain := strings.TrimPrefix(allowedOrigin, "*")
			if strings.HasSuffix(originURL.Hostname(), domain) {
				return true
			}
		}
	}

	s.logger.Warn("WebSocket connection rejected: origin not in whitelist",
		slog.String("origin", originURL.String()),
		slog.Any("allowed_origins", s.config.GetCORSOrigins()),
	)
	return false
}

// isPrivateClassB checks for 172.16.0.0 to 172.31.255.255 range
func isPrivateClassB(hostname string) bool {
	if !strings.HasPrefix(hostname, "172.") {
		return false
	}

	parts := strings.Split(hostname, ".")
	if len(parts) < 2 {
		return false
	}

	switch parts[1] {
	case "16", "17", "18", "19", "20", "21", "22", "23", "24", "25", "26", "27", "28", "29", "30", "31":
		return true
	default:
		return false
	}
}
