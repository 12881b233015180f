package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Mapping is one configured trigger phrase bound to a remote action id.
type Mapping struct {
	Phrase   string
	ActionID string
}

// ActionMap is the ordered phrase-to-action section of the config document.
// Document order is load-bearing: it decides first-match tie-breaks in the
// resolver, so the map round-trips through YAML preserving entry order.
type ActionMap []Mapping

// Get returns the action id bound to phrase.
func (m ActionMap) Get(phrase string) (string, bool) {
	for _, e := range m {
		if e.Phrase == phrase {
			return e.ActionID, true
		}
	}
	return "", false
}

// Set binds phrase to id, appending if phrase is new.
func (m *ActionMap) Set(phrase, id string) {
	for i, e := range *m {
		if e.Phrase == phrase {
			(*m)[i].ActionID = id
			return
		}
	}
	*m = append(*m, Mapping{Phrase: phrase, ActionID: id})
}

// Remove deletes the entry for phrase, reporting whether it existed.
func (m *ActionMap) Remove(phrase string) bool {
	for i, e := range *m {
		if e.Phrase == phrase {
			*m = append((*m)[:i], (*m)[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns an independent copy.
func (m ActionMap) Clone() ActionMap {
	out := make(ActionMap, len(m))
	copy(out, m)
	return out
}

// Equal reports whether both maps hold the same entries in the same order.
func (m ActionMap) Equal(other ActionMap) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if m[i] != other[i] {
			return false
		}
	}
	return true
}

// UnmarshalYAML decodes a YAML mapping preserving key order.
func (m *ActionMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("actions: expected a mapping, got %v", node.Kind)
	}
	out := make(ActionMap, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		out = append(out, Mapping{
			Phrase:   node.Content[i].Value,
			ActionID: node.Content[i+1].Value,
		})
	}
	*m = out
	return nil
}

// MarshalYAML encodes entries as a mapping in slice order.
func (m ActionMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range m {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Phrase},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.ActionID},
		)
	}
	return node, nil
}
