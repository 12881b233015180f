package vts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voicerig/voicerig/internal/dispatch"
	apperrors "github.com/voicerig/voicerig/internal/errors"
)

const (
	dialTimeout    = 5 * time.Second
	writeTimeout   = 5 * time.Second
	requestTimeout = 10 * time.Second
	maxFrameSize   = 1 << 20
	pingInterval   = 20 * time.Second
)

// EventFunc receives unsolicited event frames (message types ending in
// "Event") from the peer.
type EventFunc func(messageType string, data json.RawMessage)

// Session is one authenticated WebSocket connection to the avatar host.
// Requests are correlated to responses by request id so callers can issue
// them from any goroutine; writes are serialized internally.
type Session struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan envelope
	closed  bool

	done    chan struct{}
	onEvent EventFunc
}

// Dial connects to the peer at addr (host:port) and starts the read loop.
func Dial(ctx context.Context, addr string, onEvent EventFunc) (*Session, error) {
	url := fmt.Sprintf("ws://%s", addr)

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeTransient, "dialing %s", url)
	}
	conn.SetReadLimit(maxFrameSize)

	s := &Session{
		conn:    conn,
		pending: make(map[string]chan envelope),
		done:    make(chan struct{}),
		onEvent: onEvent,
	}
	go s.readLoop()
	go s.pingLoop()

	slog.Info("connected to peer", "url", url)
	return s, nil
}

// Done closes when the session has terminated for any reason.
func (s *Session) Done() <-chan struct{} { return s.done }

// request sends one envelope and decodes the matching response into out.
// An APIError response becomes a CodeRemote error.
func (s *Session) request(ctx context.Context, messageType string, payload, out any) error {
	return s.requestWithTimeout(ctx, messageType, payload, out, requestTimeout)
}

func (s *Session) requestWithTimeout(ctx context.Context, messageType string, payload, out any, timeout time.Duration) error {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeUnknown, "encoding request payload")
		}
		data = b
	}

	id := uuid.NewString()
	env := envelope{
		APIName:     apiName,
		APIVersion:  apiVersion,
		RequestID:   id,
		MessageType: messageType,
		Data:        data,
	}

	ch := make(chan envelope, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return apperrors.New(apperrors.CodeTransient, "session closed")
	}
	s.pending[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.write(env); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return apperrors.Wrapf(ctx.Err(), apperrors.CodeTransient, "awaiting %s response", messageType)
	case <-s.done:
		return apperrors.New(apperrors.CodeTransient, "session closed")
	case resp := <-ch:
		if resp.MessageType == msgAPIError {
			var apiErr apiErrorData
			if err := json.Unmarshal(resp.Data, &apiErr); err != nil {
				return apperrors.Wrap(err, apperrors.CodeRemote, "decoding api error")
			}
			return apperrors.Newf(apperrors.CodeRemote, "peer rejected %s: %s", messageType, apiErr.Message).
				WithMetadata("error_id", strconv.Itoa(apiErr.ErrorID))
		}
		if out != nil {
			if err := json.Unmarshal(resp.Data, out); err != nil {
				return apperrors.Wrapf(err, apperrors.CodeRemote, "decoding %s", resp.MessageType)
			}
		}
		return nil
	}
}

func (s *Session) write(env envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(env); err != nil {
		return apperrors.Wrap(err, apperrors.CodeTransient, "writing frame")
	}
	return nil
}

func (s *Session) readLoop() {
	defer s.Close()
	for {
		var env envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				slog.Warn("peer connection lost", "error", err)
			}
			return
		}

		if env.RequestID != "" {
			s.mu.Lock()
			ch, ok := s.pending[env.RequestID]
			s.mu.Unlock()
			if ok {
				ch <- env
				continue
			}
		}

		if strings.HasSuffix(env.MessageType, "Event") {
			if s.onEvent != nil {
				s.onEvent(env.MessageType, env.Data)
			}
			continue
		}

		slog.Debug("dropping unmatched frame",
			"message_type", env.MessageType,
			"request_id", env.RequestID)
	}
}

func (s *Session) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				s.Close()
				return
			}
		}
	}
}

// Close tears down the connection. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	_ = s.conn.Close()
}

// ListActions implements dispatch.Commander.
func (s *Session) ListActions(ctx context.Context) ([]dispatch.ActionEntry, error) {
	var resp hotkeysResponseData
	if err := s.request(ctx, msgHotkeysRequest, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.ModelLoaded {
		return nil, apperrors.New(apperrors.CodeRemote, "no model loaded on peer")
	}

	entries := make([]dispatch.ActionEntry, 0, len(resp.AvailableHotkeys))
	for _, hk := range resp.AvailableHotkeys {
		entries = append(entries, dispatch.ActionEntry{
			ID:          hk.HotkeyID,
			DisplayName: hk.Name,
			Type:        hk.Type,
		})
	}
	return entries, nil
}

// Trigger implements dispatch.Commander.
func (s *Session) Trigger(ctx context.Context, id string) error {
	return s.request(ctx, msgHotkeyTriggerRequest, hotkeyTriggerRequestData{HotkeyID: id}, nil)
}

// SubscribeModelLoaded asks the peer to push ModelLoadedEvent frames, which
// arrive through the EventFunc passed to Dial.
func (s *Session) SubscribeModelLoaded(ctx context.Context) error {
	payload := eventSubRequestData{EventName: msgModelLoadedEvent, Subscribe: true}
	return s.request(ctx, msgEventSubRequest, payload, nil)
}
