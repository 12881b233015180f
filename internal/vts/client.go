package vts

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/voicerig/voicerig/internal/dispatch"
	apperrors "github.com/voicerig/voicerig/internal/errors"
	"github.com/voicerig/voicerig/internal/events"
	"github.com/voicerig/voicerig/internal/resilience"
	"github.com/voicerig/voicerig/internal/syncx"
)

// ClientConfig wires a Client to the rest of the process.
type ClientConfig struct {
	Addr       string
	TokenStore *TokenStore
	Bus        *events.Bus

	// OnModelLoaded fires after the peer loads a model, and once after every
	// (re)connect. Used to resynchronize the action catalog.
	OnModelLoaded func()
}

// Client keeps an authenticated session alive, reconnecting with backoff
// when the peer drops. It implements dispatch.Commander; while disconnected,
// commands fail fast with a transient error.
type Client struct {
	cfg     ClientConfig
	session *syncx.RWGuard[*Session]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a disconnected client.
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		cfg:     cfg,
		session: syncx.NewGuard[*Session](nil),
	}
}

// Connect performs the initial connect and auth, retrying with backoff.
// Exhausting the retries is fatal to startup. On success a monitor goroutine
// keeps the connection alive until Close.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.establish(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.CodeFatalStartup, "connecting to peer")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.monitor(runCtx)
	return nil
}

// establish dials, authenticates and subscribes, with backoff across the
// whole sequence.
func (c *Client) establish(ctx context.Context) error {
	return resilience.Retry(ctx, resilience.ConnectRetryConfig(), func() error {
		sess, err := Dial(ctx, c.cfg.Addr, c.handleEvent)
		if err != nil {
			return err
		}
		if err := sess.Authenticate(ctx, c.cfg.TokenStore); err != nil {
			sess.Close()
			return err
		}
		if err := sess.SubscribeModelLoaded(ctx); err != nil {
			// Not every host supports event push; polling still works.
			slog.Warn("model event subscription failed", "error", err)
		}

		if old := c.session.Swap(sess); old != nil {
			old.Close()
		}
		c.publishState("connected")
		if c.cfg.OnModelLoaded != nil {
			c.cfg.OnModelLoaded()
		}
		return nil
	})
}

func (c *Client) monitor(ctx context.Context) {
	defer close(c.done)
	for {
		sess := c.session.Get()
		if sess == nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-sess.Done():
		}

		c.publishState("disconnected")
		slog.Info("reconnecting to peer", "addr", c.cfg.Addr)

		if err := c.establish(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("reconnect attempts exhausted", "error", err)
			c.publishState("failed")
			return
		}
	}
}

func (c *Client) handleEvent(messageType string, data json.RawMessage) {
	if messageType != msgModelLoadedEvent {
		slog.Debug("ignoring peer event", "message_type", messageType)
		return
	}
	slog.Info("peer loaded a model")
	if c.cfg.OnModelLoaded != nil {
		c.cfg.OnModelLoaded()
	}
}

func (c *Client) publishState(state string) {
	if c.cfg.Bus != nil {
		c.cfg.Bus.Publish(events.ConnectionState, map[string]any{"state": state})
	}
}

func (c *Client) current() (*Session, error) {
	sess := c.session.Get()
	if sess == nil {
		return nil, apperrors.New(apperrors.CodeTransient, "not connected to peer")
	}
	return sess, nil
}

// ListActions implements dispatch.Commander.
func (c *Client) ListActions(ctx context.Context) ([]dispatch.ActionEntry, error) {
	sess, err := c.current()
	if err != nil {
		return nil, err
	}
	return sess.ListActions(ctx)
}

// Trigger implements dispatch.Commander.
func (c *Client) Trigger(ctx context.Context, id string) error {
	sess, err := c.current()
	if err != nil {
		return err
	}
	return sess.Trigger(ctx, id)
}

// Close tears down the connection and stops reconnecting.
func (c *Client) Close() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sess := c.session.Swap(nil); sess != nil {
		sess.Close()
	}
	if done != nil {
		<-done
	}
}
