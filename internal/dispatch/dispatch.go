// Package dispatch serializes remote action commands against the avatar
// host. The peer executes one command at a time, so all triggers flow
// through a single worker.
package dispatch

import "context"

// ActionEntry describes one action exposed by the connected peer.
type ActionEntry struct {
	ID          string
	DisplayName string
	Type        string
}

// Commander is the remote surface the dispatcher drives. Implemented by the
// peer session.
type Commander interface {
	// ListActions fetches the peer's current action catalog.
	ListActions(ctx context.Context) ([]ActionEntry, error)
	// Trigger fires the action with the given id on the peer.
	Trigger(ctx context.Context, id string) error
}
