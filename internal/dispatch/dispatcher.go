package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/voicerig/voicerig/internal/errors"
	"github.com/voicerig/voicerig/internal/events"
	"github.com/voicerig/voicerig/internal/resilience"
	"github.com/voicerig/voicerig/internal/trace"
)

const (
	// queueDepth bounds pending triggers. Triggers arrive at most one per
	// transcription cycle, so a small queue only fills when the peer stalls.
	queueDepth = 16

	// triggerTimeout bounds one round trip to the peer.
	triggerTimeout = 10 * time.Second
)

type listResult struct {
	entries []ActionEntry
	err     error
}

type request struct {
	actionID string
	phrase   string
	ctx      context.Context

	// list is non-nil for catalog fetches, which travel the same lane as
	// triggers so only one call is ever outstanding on the peer.
	list chan listResult
}

// Dispatcher owns the single worker that sends commands to the peer in FIFO
// order. One command is in flight at a time.
type Dispatcher struct {
	cmd     Commander
	breaker *resilience.Breaker
	bus     *events.Bus

	queue chan request

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// New creates a dispatcher and starts its worker.
func New(cmd Commander, bus *events.Bus) *Dispatcher {
	d := &Dispatcher{
		cmd:     cmd,
		breaker: resilience.New(resilience.DefaultConfig()),
		bus:     bus,
		queue:   make(chan request, queueDepth),
		done:    make(chan struct{}),
	}
	go d.worker()
	return d
}

// Enqueue queues a trigger for the worker. Returns CodeExhausted when the
// queue is full rather than blocking the pipeline.
func (d *Dispatcher) Enqueue(ctx context.Context, actionID, phrase string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return apperrors.New(apperrors.CodeExhausted, "dispatcher closed")
	}

	select {
	case d.queue <- request{actionID: actionID, phrase: phrase, ctx: ctx}:
		return nil
	default:
		slog.Warn("dispatch queue full, dropping trigger",
			"action_id", actionID, "phrase", phrase)
		return apperrors.New(apperrors.CodeExhausted, "dispatch queue full")
	}
}

func (d *Dispatcher) worker() {
	defer close(d.done)
	for req := range d.queue {
		if req.list != nil {
			entries, err := d.cmd.ListActions(req.ctx)
			req.list <- listResult{entries: entries, err: err}
			continue
		}
		d.execute(req)
	}
}

func (d *Dispatcher) execute(req request) {
	ctx, span := trace.StartSpan(req.ctx, "dispatch.trigger")
	defer span.End()
	span.SetAttr("action_id", req.actionID)

	ctx, cancel := context.WithTimeout(ctx, triggerTimeout)
	defer cancel()

	log := trace.Logger(ctx)

	err := d.breaker.Execute(func() error {
		return d.cmd.Trigger(ctx, req.actionID)
	})
	if err != nil {
		log.Error("trigger failed",
			"action_id", req.actionID,
			"phrase", req.phrase,
			"error", err)
		d.bus.Publish(events.TriggerFailed, map[string]any{
			"action_id": req.actionID,
			"phrase":    req.phrase,
			"error":     err.Error(),
		})
		return
	}

	log.Info("trigger fired", "action_id", req.actionID, "phrase", req.phrase)
	d.bus.Publish(events.TriggerFired, map[string]any{
		"action_id": req.actionID,
		"phrase":    req.phrase,
	})
}

// ListActions fetches the catalog from the peer through the worker lane, so
// the fetch never overlaps an in-flight trigger.
func (d *Dispatcher) ListActions(ctx context.Context) ([]ActionEntry, error) {
	reply := make(chan listResult, 1)
	req := request{ctx: ctx, list: reply}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, apperrors.New(apperrors.CodeExhausted, "dispatcher closed")
	}
	select {
	case d.queue <- req:
		d.mu.Unlock()
	default:
		d.mu.Unlock()
		return nil, apperrors.New(apperrors.CodeExhausted, "dispatch queue full")
	}

	select {
	case res := <-reply:
		return res.entries, res.err
	case <-ctx.Done():
		return nil, apperrors.Wrap(ctx.Err(), apperrors.CodeTransient, "awaiting catalog fetch")
	case <-d.done:
		return nil, apperrors.New(apperrors.CodeExhausted, "dispatcher closed")
	}
}

// Close stops accepting triggers and waits for the in-flight command to
// finish. Queued but unstarted triggers are dropped.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true

	// Drop whatever is still queued so close does not wait on the peer.
	for {
		select {
		case req := <-d.queue:
			if req.list != nil {
				req.list <- listResult{err: apperrors.New(apperrors.CodeExhausted, "dispatcher closed")}
				continue
			}
			slog.Debug("dropping queued trigger on close", "action_id", req.actionID)
			continue
		default:
		}
		break
	}
	close(d.queue)
	d.mu.Unlock()

	<-d.done
}
