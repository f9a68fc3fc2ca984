package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Command is a control message received from a UI subscriber.
type Command struct {
	// Action is "start" or "stop", toggling the push-to-talk session.
	Action string `json:"action"`
}

// event is the wire envelope broadcast to subscribers.
type event struct {
	Type   string      `json:"type"`
	Stats  *QueueStats `json:"stats,omitempty"`
	Status string      `json:"status,omitempty"`
}

// Hub implements Sink by broadcasting events to WebSocket subscribers and
// exposes the commands they send back. Register it as the handler for the
// UI endpoint:
//
//	mux.Handle("/ws", hub)
//
// Events are fanned out from a single broadcaster goroutine; when the event
// buffer is full the oldest events are dropped so a stalled subscriber can
// never block the audio path.
type Hub struct {
	logger *slog.Logger

	events   chan event
	commands chan Command

	mu     sync.Mutex
	subs   map[*websocket.Conn]struct{}
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewHub creates a Hub and starts its broadcaster goroutine. Call Close to
// stop it and disconnect all subscribers.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		logger:   logger,
		events:   make(chan event, 64),
		commands: make(chan Command, 16),
		subs:     make(map[*websocket.Conn]struct{}),
		done:     make(chan struct{}),
	}
	h.wg.Add(1)
	go h.broadcastLoop()
	return h
}

// Commands returns the channel of control messages sent by subscribers.
func (h *Hub) Commands() <-chan Command { return h.commands }

// OnStatsChanged implements Sink.
func (h *Hub) OnStatsChanged(stats QueueStats) {
	h.publish(event{Type: "stats", Stats: &stats})
}

// OnChunkStatus implements Sink.
func (h *Hub) OnChunkStatus(status string) {
	h.publish(event{Type: "chunk_status", Status: status})
}

// publish queues an event for broadcast, evicting the oldest when full.
func (h *Hub) publish(ev event) {
	select {
	case h.events <- ev:
		return
	default:
	}
	select {
	case <-h.events:
	default:
	}
	select {
	case h.events <- ev:
	default:
	}
}

// ServeHTTP upgrades the request and subscribes the connection until it
// drops. Incoming text messages are parsed as Commands.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", "error", err)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close(websocket.StatusGoingAway, "hub closed")
		return
	}
	h.subs[conn] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.subs, conn)
		h.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "subscriber done")
	}()

	for {
		typ, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.logger.Warn("invalid control message", "error", err)
			continue
		}
		select {
		case h.commands <- cmd:
		default:
			h.logger.Warn("control command dropped: channel full", "action", cmd.Action)
		}
	}
}

// broadcastLoop serialises all writes to subscribers.
func (h *Hub) broadcastLoop() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return
		case ev := <-h.events:
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("marshal event", "error", err)
				continue
			}
			h.mu.Lock()
			conns := make([]*websocket.Conn, 0, len(h.subs))
			for c := range h.subs {
				conns = append(conns, c)
			}
			h.mu.Unlock()

			for _, c := range conns {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				if err := c.Write(ctx, websocket.MessageText, data); err != nil {
					h.logger.Debug("subscriber write failed", "error", err)
				}
				cancel()
			}
		}
	}
}

// Close stops the broadcaster and disconnects all subscribers. Idempotent.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.subs))
	for c := range h.subs {
		conns = append(conns, c)
	}
	h.subs = map[*websocket.Conn]struct{}{}
	h.mu.Unlock()

	close(h.done)
	h.wg.Wait()
	for _, c := range conns {
		c.Close(websocket.StatusGoingAway, "hub closed")
	}
	return nil
}
