// Package server exposes the operator status surface over HTTP and WebSocket
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/voicerig/voicerig/internal/dispatch"
	"github.com/voicerig/voicerig/internal/events"
	"github.com/voicerig/voicerig/internal/trace"
)

// Message types.
type Message struct {
	Type string `json:"type"`
}

type EventMessage struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Data any    `json:"data,omitempty"`
}

type TriggerMessage struct {
	Type     string `json:"type"`
	ActionID string `json:"action_id"`
}

type PongMessage struct {
	Type string `json:"type"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StatusFunc supplies the snapshot returned by GET /api/status.
type StatusFunc func() map[string]any

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server pushes pipeline events to connected status clients and accepts
// manual trigger requests from them.
type Server struct {
	dispatcher *dispatch.Dispatcher
	status     StatusFunc
	sub        *events.Subscription

	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
}

// New creates a server fanning out bus events to its clients.
func New(bus *events.Bus, dispatcher *dispatch.Dispatcher, status StatusFunc) *Server {
	s := &Server{
		dispatcher: dispatcher,
		status:     status,
		sub:        bus.Subscribe(EventBufferSize),
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
	}
	go s.broadcast()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/status", s.handleStatus)

	return corsMiddleware(trace.Middleware(mux))
}

// Close stops the event fanout. Open client connections drain on their own.
func (s *Server) Close() {
	s.sub.Close()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = &rateLimiter{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("status client connected", "remote", r.RemoteAddr)

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		// Check rate limit
		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{
				Type:    "error",
				Message: "rate limit exceeded",
			})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "ping":
			_ = wsjson.Write(baseCtx, conn, PongMessage{Type: "pong"})
		case "trigger":
			var trig TriggerMessage
			if err := json.Unmarshal(msg, &trig); err != nil || trig.ActionID == "" {
				continue
			}
			s.handleTrigger(baseCtx, conn, trig.ActionID)
		}
	}
}

// handleTrigger fires an action on behalf of a status client, bypassing the
// phrase resolver and cooldown gate.
func (s *Server) handleTrigger(ctx context.Context, conn *websocket.Conn, actionID string) {
	ctx, span := trace.StartSpan(ctx, "manual_trigger")
	defer span.End()
	span.SetAttr("action_id", actionID)

	log := trace.Logger(ctx)
	log.Info("manual trigger", "action_id", actionID)

	if err := s.dispatcher.Enqueue(ctx, actionID, "manual"); err != nil {
		_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: err.Error()})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := map[string]any{}
	if s.status != nil {
		snapshot = s.status()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshot)
}

func (s *Server) broadcast() {
	for evt := range s.sub.Events() {
		msg := EventMessage{Type: "event", Name: evt.Name, Data: evt.Data}

		s.mu.RLock()
		for conn := range s.conns {
			go func(c *websocket.Conn) {
				_ = wsjson.Write(context.Background(), c, msg)
			}(conn)
		}
		s.mu.RUnlock()
	}
}
