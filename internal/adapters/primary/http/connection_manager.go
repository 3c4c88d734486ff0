package http

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fredcamaral/reloadrelay/internal/domain/entities"
	"github.com/fredcamaral/reloadrelay/internal/domain/ports"
)

// ErrHubStopped is returned when broadcasting after the hub has shut down
var ErrHubStopped = errors.New("connection manager stopped")

// Connection represents an attached tab
type Connection struct {
	ID   string
	Send chan entities.BroadcastMessage
}

// ConnectionManager owns the set of attached tabs. Only the Run goroutine
// mutates the connection map; mu lets other goroutines count tabs.
type ConnectionManager struct {
	connections map[string]*Connection
	broadcast   chan entities.BroadcastMessage
	register    chan *Connection
	unregister  chan string
	mu          sync.RWMutex
	done        chan struct{}
	logger      *slog.Logger
	metrics     ports.RelayMetrics
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(logger *slog.Logger, metrics ports.RelayMetrics) *ConnectionManager {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	return &ConnectionManager{
		connections: make(map[string]*Connection),
		broadcast:   make(chan entities.BroadcastMessage, 256),
		register:    make(chan *Connection),
		unregister:  make(chan string),
		done:        make(chan struct{}),
		logger:      logger.With("component", "connection_manager"),
		metrics:     metrics,
	}
}

// Run starts the connection manager main loop. When ctx ends every
// connection is closed and later registrations are refused.
func (cm *ConnectionManager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(cm.done)
			cm.closeAll()
			return

		case conn := <-cm.register:
			cm.mu.Lock()
			cm.connections[conn.ID] = conn
			count := len(cm.connections)
			cm.mu.Unlock()

			cm.metrics.RecordTabAttached()
			cm.logger.Debug("Tab attached", slog.String("tab_id", conn.ID), slog.Int("tabs", count))

		case id := <-cm.unregister:
			cm.drop(id, "detached")

		case msg := <-cm.broadcast:
			cm.mu.RLock()
			var slow []string
			for id, conn := range cm.connections {
				select {
				case conn.Send <- msg:
				default:
					slow = append(slow, id)
				}
			}
			cm.mu.RUnlock()

			// Tabs that cannot keep up are disconnected; they get no replay
			for _, id := range slow {
				cm.drop(id, "too slow")
			}
		}
	}
}

// drop removes a connection and closes its send queue
func (cm *ConnectionManager) drop(id, reason string) {
	cm.mu.Lock()
	conn, ok := cm.connections[id]
	if ok {
		delete(cm.connections, id)
		close(conn.Send)
	}
	count := len(cm.connections)
	cm.mu.Unlock()

	if ok {
		cm.metrics.RecordTabDetached()
		cm.logger.Debug("Tab removed",
			slog.String("tab_id", id),
			slog.String("reason", reason),
			slog.Int("tabs", count),
		)
	}
}

// RegisterConnection adds a new connection. It reports false once the manager has stopped.
func (cm *ConnectionManager) RegisterConnection(conn *Connection) bool {
	select {
	case cm.register <- conn:
		return true
	case <-cm.done:
		return false
	}
}

// Unregister removes a connection
func (cm *ConnectionManager) Unregister(connID string) {
	select {
	case cm.unregister <- connID:
	case <-cm.done:
	}
}

// Broadcast queues msg for every connection attached when it is dispatched
func (cm *ConnectionManager) Broadcast(msg entities.BroadcastMessage) error {
	select {
	case <-cm.done:
		return ErrHubStopped
	default:
	}

	select {
	case cm.broadcast <- msg:
		return nil
	case <-cm.done:
		return ErrHubStopped
	}
}

// Count returns the number of attached connections
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// closeAll closes all connections
func (cm *ConnectionManager) closeAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for id, conn := range cm.connections {
		close(conn.Send)
		delete(cm.connections, id)
	}
}
