// Package pipeline runs the capture-transcribe-resolve-dispatch loop.
package pipeline

import (
	"strings"

	"github.com/voicerig/voicerig/internal/config"
	"github.com/voicerig/voicerig/internal/dispatch"
)

type phraseEntry struct {
	phrase   string // lowercase
	actionID string
}

// PhraseMap resolves transcribed text to an action id. Matching is
// case-insensitive substring search; entries are checked in order, config
// mappings first (file order), then eligible action display names, so the
// earliest match wins deterministically.
type PhraseMap struct {
	entries []phraseEntry
}

// BuildPhraseMap assembles the lookup from the reconciled config mappings
// and the peer's eligible actions.
func BuildPhraseMap(mappings config.ActionMap, actions []dispatch.ActionEntry) *PhraseMap {
	pm := &PhraseMap{entries: make([]phraseEntry, 0, len(mappings)+len(actions))}
	seen := make(map[string]bool, len(mappings)+len(actions))

	add := func(phrase, actionID string) {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" || seen[phrase] {
			return
		}
		seen[phrase] = true
		pm.entries = append(pm.entries, phraseEntry{phrase: phrase, actionID: actionID})
	}

	for _, m := range mappings {
		add(m.Phrase, m.ActionID)
	}
	// Display names act as implicit phrases for discovered actions.
	for _, a := range actions {
		add(a.DisplayName, a.ID)
	}
	return pm
}

// Resolve returns the first entry whose phrase occurs in text. The matched
// phrase is returned for logging.
func (pm *PhraseMap) Resolve(text string) (actionID, phrase string, ok bool) {
	text = strings.ToLower(text)
	for _, e := range pm.entries {
		if strings.Contains(text, e.phrase) {
			return e.actionID, e.phrase, true
		}
	}
	return "", "", false
}

// Len reports the number of resolvable phrases.
func (pm *PhraseMap) Len() int { return len(pm.entries) }
