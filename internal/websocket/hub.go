package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"rotationdash/internal/infrastructure"
	"rotationdash/internal/operations"
)

// Message types
const (
	TypeConnection    = "connection"
	TypeStageStarted  = "stage:started"
	TypeStageFinished = "stage:finished"
)

// Event is the envelope pushed to every client
type Event struct {
	Type      string                  `json:"type"`
	RunID     string                  `json:"run_id,omitempty"`
	Index     int                     `json:"index"`
	Stage     string                  `json:"stage,omitempty"`
	Result    *operations.StageResult `json:"result,omitempty"`
	ClientID  string                  `json:"client_id,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
	TraceID   string                  `json:"trace_id,omitempty"`
}

// Hub maintains the set of active clients and fans stage events out to them.
// It implements operations.Observer.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	quit    chan struct{}
	done    chan struct{}
	running bool
	logger  *slog.Logger
	now     func() time.Time
}

var _ operations.Observer = (*Hub)(nil)

// NewHub creates a hub; call Start before registering clients
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		now:        time.Now,
	}
}

// Start runs the hub loop in the background. Calling it twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Stop disconnects every client and ends the hub loop
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			h.logger.Info("hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.InfoContext(c.context(), "client registered",
				slog.String("client_id", c.id),
				slog.String("remote_addr", c.remoteAddr),
				slog.Int("total_clients", count))

			if data, err := json.Marshal(Event{
				Type:      TypeConnection,
				ClientID:  c.id,
				Timestamp: h.now(),
				TraceID:   c.traceID,
			}); err == nil {
				select {
				case c.send <- data:
				default:
				}
			}

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.InfoContext(c.context(), "client unregistered",
				slog.String("client_id", c.id),
				slog.Int("total_clients", count),
				slog.Duration("connection_duration", time.Since(c.connectedAt)))

		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Slow consumer; drop it rather than stall the pipeline
					close(c.send)
					delete(h.clients, c)
					h.logger.WarnContext(c.context(), "client send buffer full, disconnecting",
						slog.String("client_id", c.id))
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a client. It blocks until the hub loop accepts it.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.quit:
		close(c.send)
	}
}

// Unregister removes a client
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an event for every client. It never blocks: when the
// queue is full the event is dropped.
func (h *Hub) Broadcast(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = h.now()
	}
	if ev.TraceID == "" {
		ev.TraceID = infrastructure.GetTraceID(ctx)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal event",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.WarnContext(ctx, "broadcast queue full, dropping event",
			slog.String("type", ev.Type))
	}
}

// StageStarted implements operations.Observer
func (h *Hub) StageStarted(ctx context.Context, runID string, index int, stage operations.Stage) {
	h.Broadcast(ctx, Event{
		Type:  TypeStageStarted,
		RunID: runID,
		Index: index,
		Stage: stage.Name,
	})
}

// StageFinished implements operations.Observer
func (h *Hub) StageFinished(ctx context.Context, runID string, index int, result operations.StageResult) {
	h.Broadcast(ctx, Event{
		Type:   TypeStageFinished,
		RunID:  runID,
		Index:  index,
		Stage:  result.StageName,
		Result: &result,
	})
}
