// Package catalog reconciles the peer's action catalog with the local
// phrase-to-action config.
package catalog

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/voicerig/voicerig/internal/config"
	"github.com/voicerig/voicerig/internal/dispatch"
	"github.com/voicerig/voicerig/internal/events"
	"github.com/voicerig/voicerig/internal/trace"
)

// placeholderPrefix marks mappings generated for newly discovered actions.
// The user edits the phrase in the config file to arm the action.
const placeholderPrefix = "new_keyword_"

// UpdateFunc receives the reconciled mappings and the eligible actions after
// every sync, in config file order.
type UpdateFunc func(mappings config.ActionMap, actions []dispatch.ActionEntry)

// Lister fetches the peer's action catalog. Satisfied by the dispatcher, so
// fetches share the serialized command lane.
type Lister interface {
	ListActions(ctx context.Context) ([]dispatch.ActionEntry, error)
}

// Syncer keeps cfg.Actions consistent with what the peer actually exposes:
// mappings to vanished actions are pruned, new eligible actions get a
// placeholder mapping, and the config file is rewritten only when something
// changed.
type Syncer struct {
	cmd          Lister
	store        *config.Store
	eligibleType string
	bus          *events.Bus
	onUpdate     UpdateFunc

	mu  sync.Mutex
	cfg *config.Config
}

// NewSyncer reconciles cfg against the peer reachable through cmd.
func NewSyncer(cmd Lister, store *config.Store, cfg *config.Config, bus *events.Bus, onUpdate UpdateFunc) *Syncer {
	return &Syncer{
		cmd:          cmd,
		store:        store,
		eligibleType: cfg.EligibleActionType,
		bus:          bus,
		onUpdate:     onUpdate,
		cfg:          cfg,
	}
}

// Sync performs one reconciliation pass. Safe to call repeatedly; a pass
// that changes nothing writes nothing.
func (s *Syncer) Sync(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "catalog.sync")
	defer span.End()
	log := trace.Logger(ctx)

	entries, err := s.cmd.ListActions(ctx)
	if err != nil {
		return err
	}

	eligible := make([]dispatch.ActionEntry, 0, len(entries))
	byID := make(map[string]dispatch.ActionEntry, len(entries))
	for _, e := range entries {
		if e.Type != s.eligibleType {
			continue
		}
		eligible = append(eligible, e)
		byID[e.ID] = e
	}

	s.mu.Lock()
	before := s.cfg.Actions.Clone()

	pruned := s.pruneStale(log, byID)
	added := s.addPlaceholders(log, eligible)

	changed := !s.cfg.Actions.Equal(before)
	mappings := s.cfg.Actions.Clone()
	s.mu.Unlock()

	if changed {
		if err := s.store.Save(s.cfg); err != nil {
			return err
		}
	}

	if s.onUpdate != nil {
		s.onUpdate(mappings, eligible)
	}
	if s.bus != nil {
		s.bus.Publish(events.CatalogSynced, map[string]any{
			"eligible": len(eligible),
			"added":    added,
			"pruned":   pruned,
		})
	}

	log.Info("catalog synchronized",
		"eligible", len(eligible),
		"added", added,
		"pruned", pruned,
		"persisted", changed)
	return nil
}

// pruneStale drops mappings whose action the peer no longer exposes.
func (s *Syncer) pruneStale(log *slog.Logger, byID map[string]dispatch.ActionEntry) int {
	var stale []string
	for _, m := range s.cfg.Actions {
		if _, ok := byID[m.ActionID]; !ok {
			stale = append(stale, m.Phrase)
			log.Warn("pruning mapping for vanished action",
				"phrase", m.Phrase,
				"action_id", m.ActionID)
		}
	}
	for _, phrase := range stale {
		s.cfg.Actions.Remove(phrase)
	}
	return len(stale)
}

// addPlaceholders creates a placeholder mapping for every eligible action
// not yet referenced by any phrase.
func (s *Syncer) addPlaceholders(log *slog.Logger, eligible []dispatch.ActionEntry) int {
	mapped := make(map[string]bool, len(s.cfg.Actions))
	for _, m := range s.cfg.Actions {
		mapped[m.ActionID] = true
	}

	added := 0
	for _, e := range eligible {
		if mapped[e.ID] {
			continue
		}
		phrase := PlaceholderPhrase(e.DisplayName)
		if _, taken := s.cfg.Actions.Get(phrase); taken {
			log.Warn("placeholder phrase collision, skipping",
				"phrase", phrase,
				"action_id", e.ID)
			continue
		}
		s.cfg.Actions.Set(phrase, e.ID)
		added++
		log.Info("discovered new action",
			"action", e.DisplayName,
			"action_id", e.ID,
			"placeholder", phrase)
	}
	return added
}

// PlaceholderPhrase derives the placeholder for a discovered action from its
// display name: lowercased, spaces replaced with underscores.
func PlaceholderPhrase(displayName string) string {
	name := strings.ToLower(strings.TrimSpace(displayName))
	name = strings.ReplaceAll(name, " ", "_")
	return placeholderPrefix + name
}
