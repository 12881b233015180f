package catalog

import (
	"context"
	"testing"

	"github.com/spf13/afero"

	"github.com/voicerig/voicerig/internal/config"
	"github.com/voicerig/voicerig/internal/dispatch"
	"github.com/voicerig/voicerig/internal/events"
)

type fakeCatalog struct {
	entries []dispatch.ActionEntry
}

func (f *fakeCatalog) ListActions(ctx context.Context) ([]dispatch.ActionEntry, error) {
	return f.entries, nil
}

func newTestStore(t *testing.T) (*config.Store, *config.Config) {
	t.Helper()
	store := config.NewStoreFs(afero.NewMemMapFs(), "voicerig.yaml")
	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return store, cfg
}

func TestSyncAddsPlaceholdersAndPrunes(t *testing.T) {
	store, cfg := newTestStore(t)
	cfg.Actions.Set("shock me", "h1")
	cfg.Actions.Set("old phrase", "gone")

	cmd := &fakeCatalog{entries: []dispatch.ActionEntry{
		{ID: "h1", DisplayName: "Shock", Type: "ToggleExpression"},
		{ID: "h2", DisplayName: "Cat Ears", Type: "ToggleExpression"},
		{ID: "h3", DisplayName: "Walk Left", Type: "TriggerAnimation"}, // ineligible
	}}

	var gotMappings config.ActionMap
	var gotActions []dispatch.ActionEntry
	s := NewSyncer(cmd, store, cfg, events.NewBus(), func(m config.ActionMap, a []dispatch.ActionEntry) {
		gotMappings, gotActions = m, a
	})

	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	// Existing mapping kept, vanished mapping pruned, new action gets a
	// placeholder, ineligible types ignored.
	if id, ok := cfg.Actions.Get("shock me"); !ok || id != "h1" {
		t.Errorf("shock me mapping = %q, %v", id, ok)
	}
	if _, ok := cfg.Actions.Get("old phrase"); ok {
		t.Error("vanished mapping not pruned")
	}
	if id, ok := cfg.Actions.Get("new_keyword_cat_ears"); !ok || id != "h2" {
		t.Errorf("placeholder mapping = %q, %v", id, ok)
	}
	if _, ok := cfg.Actions.Get("new_keyword_walk_left"); ok {
		t.Error("ineligible action got a placeholder")
	}

	if len(gotActions) != 2 {
		t.Errorf("update callback actions = %d, want 2", len(gotActions))
	}
	if len(gotMappings) != 2 {
		t.Errorf("update callback mappings = %d, want 2", len(gotMappings))
	}

	// Changes were persisted.
	reloaded, err := store.Load()
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if !reloaded.Actions.Equal(cfg.Actions) {
		t.Errorf("persisted actions = %v, want %v", reloaded.Actions, cfg.Actions)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	store, cfg := newTestStore(t)
	cmd := &fakeCatalog{entries: []dispatch.ActionEntry{
		{ID: "h1", DisplayName: "Shock", Type: "ToggleExpression"},
	}}

	s := NewSyncer(cmd, store, cfg, nil, nil)
	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}
	after := cfg.Actions.Clone()

	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if !cfg.Actions.Equal(after) {
		t.Errorf("second sync changed mappings: %v -> %v", after, cfg.Actions)
	}
}

func TestSyncPublishesEvent(t *testing.T) {
	store, cfg := newTestStore(t)
	bus := events.NewBus()
	sub := bus.Subscribe(4)
	defer sub.Close()

	cmd := &fakeCatalog{entries: []dispatch.ActionEntry{
		{ID: "h1", DisplayName: "Shock", Type: "ToggleExpression"},
	}}
	if err := NewSyncer(cmd, store, cfg, bus, nil).Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	select {
	case ev := <-sub.Events():
		if ev.Name != events.CatalogSynced {
			t.Errorf("event = %q, want %q", ev.Name, events.CatalogSynced)
		}
	default:
		t.Fatal("no catalog event published")
	}
}

func TestPlaceholderPhrase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Shock", "new_keyword_shock"},
		{"Cat Ears", "new_keyword_cat_ears"},
		{"  Spaced  ", "new_keyword_spaced"},
		{"ALLCAPS", "new_keyword_allcaps"},
	}
	for _, tt := range tests {
		if got := PlaceholderPhrase(tt.in); got != tt.want {
			t.Errorf("PlaceholderPhrase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
