package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/google/uuid"
)

// SSEManager streams room lifecycle events (room-opened, room-closed,
// peer-joined, peer-left) to admin dashboard clients. It implements the
// services' EventSink.
type SSEManager struct {
	mu      sync.RWMutex
	clients map[string]chan sse.Event

	keepAlive time.Duration
}

func NewSSEManager() *SSEManager {
	return &SSEManager{
		clients:   make(map[string]chan sse.Event),
		keepAlive: 30 * time.Second,
	}
}

// Publish fans the event out to every connected client. A client that cannot
// keep up loses events rather than blocking the publisher.
func (m *SSEManager) Publish(event string, data any) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ch := range m.clients {
		select {
		case ch <- sse.Event{Event: event, Data: data}:
		default:
		}
	}
}

// ServeHTTP implements the event-stream endpoint.
func (m *SSEManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id := uuid.NewString()
	ch := make(chan sse.Event, 16)

	m.mu.Lock()
	m.clients[id] = ch
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.clients, id)
		m.mu.Unlock()
	}()
	slog.Debug("sse client connected", "client", id)

	keepAlive := time.NewTicker(m.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			slog.Debug("sse client disconnected", "client", id)
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-ch:
			if err := sse.Encode(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
