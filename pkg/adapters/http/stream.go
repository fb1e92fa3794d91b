package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
)

// StreamManager fans state updates out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan string]struct{}
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan string]struct{}),
		logger:      slog.Default(),
	}
}

func (sm *StreamManager) Subscribe() (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	sm.subscribers[ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// Count is the number of live subscribers.
func (sm *StreamManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

func (sm *StreamManager) Broadcast(msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- msg:
		default:
			// Slow client.
			sm.logger.Warn("SSE: client buffer full, dropping message")
		}
	}
}

// subscribeEvents streams state views as server-sent events.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
