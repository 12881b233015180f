package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "github.com/voicerig/voicerig/internal/errors"
	"github.com/voicerig/voicerig/internal/events"
)

type fakeCommander struct {
	mu        sync.Mutex
	triggered []string
	fail      bool
	fired     chan string
}

func newFakeCommander() *fakeCommander {
	return &fakeCommander{fired: make(chan string, 32)}
}

func (f *fakeCommander) ListActions(ctx context.Context) ([]ActionEntry, error) {
	return []ActionEntry{{ID: "h1", DisplayName: "Wave", Type: "ToggleExpression"}}, nil
}

func (f *fakeCommander) Trigger(ctx context.Context, id string) error {
	f.mu.Lock()
	fail := f.fail
	f.triggered = append(f.triggered, id)
	f.mu.Unlock()
	f.fired <- id
	if fail {
		return apperrors.New(apperrors.CodeRemote, "hotkey not found")
	}
	return nil
}

func (f *fakeCommander) order() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.triggered...)
}

func waitFired(t *testing.T, f *fakeCommander, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.fired:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for trigger %d of %d", i+1, n)
		}
	}
}

func TestDispatcherFIFO(t *testing.T) {
	cmd := newFakeCommander()
	d := New(cmd, events.NewBus())
	defer d.Close()

	ctx := context.Background()
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		if err := d.Enqueue(ctx, id, "phrase"); err != nil {
			t.Fatalf("Enqueue(%q) error = %v", id, err)
		}
	}
	waitFired(t, cmd, len(ids))

	got := cmd.order()
	for i, id := range ids {
		if got[i] != id {
			t.Errorf("trigger %d = %q, want %q", i, got[i], id)
		}
	}
}

func TestDispatcherPublishesEvents(t *testing.T) {
	cmd := newFakeCommander()
	bus := events.NewBus()
	sub := bus.Subscribe(8)
	defer sub.Close()

	d := New(cmd, bus)
	defer d.Close()

	if err := d.Enqueue(context.Background(), "h1", "wave"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	select {
	case ev := <-sub.Events():
		if ev.Name != events.TriggerFired {
			t.Errorf("event = %q, want %q", ev.Name, events.TriggerFired)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
}

func TestDispatcherPublishesFailure(t *testing.T) {
	cmd := newFakeCommander()
	cmd.fail = true
	bus := events.NewBus()
	sub := bus.Subscribe(8)
	defer sub.Close()

	d := New(cmd, bus)
	defer d.Close()

	if err := d.Enqueue(context.Background(), "h1", "wave"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	select {
	case ev := <-sub.Events():
		if ev.Name != events.TriggerFailed {
			t.Errorf("event = %q, want %q", ev.Name, events.TriggerFailed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
}

// blockingCommander parks Trigger calls until released and counts how many
// remote calls are outstanding at once.
type blockingCommander struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
	started  chan struct{}
	release  chan struct{}
}

func newBlockingCommander() *blockingCommander {
	return &blockingCommander{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (b *blockingCommander) enter() {
	b.mu.Lock()
	b.inFlight++
	if b.inFlight > b.maxSeen {
		b.maxSeen = b.inFlight
	}
	b.mu.Unlock()
}

func (b *blockingCommander) exit() {
	b.mu.Lock()
	b.inFlight--
	b.mu.Unlock()
}

func (b *blockingCommander) ListActions(ctx context.Context) ([]ActionEntry, error) {
	b.enter()
	defer b.exit()
	return []ActionEntry{{ID: "h1", DisplayName: "Wave", Type: "ToggleExpression"}}, nil
}

func (b *blockingCommander) Trigger(ctx context.Context, id string) error {
	b.enter()
	defer b.exit()
	b.started <- struct{}{}
	<-b.release
	return nil
}

// A catalog fetch must wait behind an in-flight trigger: one outstanding
// remote call at a time, fetches included.
func TestListActionsSerializedBehindTrigger(t *testing.T) {
	cmd := newBlockingCommander()
	d := New(cmd, events.NewBus())
	defer d.Close()

	ctx := context.Background()
	if err := d.Enqueue(ctx, "h1", "wave"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	<-cmd.started // trigger is now parked in the worker

	listDone := make(chan error, 1)
	go func() {
		_, err := d.ListActions(ctx)
		listDone <- err
	}()

	select {
	case <-listDone:
		t.Fatal("ListActions completed while a trigger was still in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(cmd.release)

	select {
	case err := <-listDone:
		if err != nil {
			t.Fatalf("ListActions() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ListActions never completed after the trigger finished")
	}

	cmd.mu.Lock()
	defer cmd.mu.Unlock()
	if cmd.maxSeen != 1 {
		t.Errorf("max outstanding remote calls = %d, want 1", cmd.maxSeen)
	}
}

func TestListActionsAfterClose(t *testing.T) {
	d := New(newFakeCommander(), events.NewBus())
	d.Close()

	_, err := d.ListActions(context.Background())
	if !apperrors.IsCode(err, apperrors.CodeExhausted) {
		t.Errorf("ListActions after close error = %v, want exhausted", err)
	}
}

func TestDispatcherEnqueueAfterClose(t *testing.T) {
	d := New(newFakeCommander(), events.NewBus())
	d.Close()

	err := d.Enqueue(context.Background(), "h1", "wave")
	if !apperrors.IsCode(err, apperrors.CodeExhausted) {
		t.Errorf("Enqueue after close error = %v, want exhausted", err)
	}
}

func TestDispatcherCloseIdempotent(t *testing.T) {
	d := New(newFakeCommander(), events.NewBus())
	d.Close()
	d.Close()
}
