// Package server exposes the operator status surface over HTTP and WebSocket
package server

import "time"

const (
	// Per-connection inbound rate limiting
	RateLimitMessages = 10          // Max inbound messages per window
	RateLimitWindow   = time.Second // Sliding window duration

	// Outbound event fanout
	EventBufferSize = 64 // Bus subscription buffer before events are dropped
)
