// Package stt turns captured audio into text.
package stt

import "context"

// Transcriber converts mono float32 PCM into text. Implementations must be
// safe for use from a single pipeline goroutine; they need not be concurrent.
type Transcriber interface {
	// Transcribe returns the recognized text for one cycle of audio.
	// samples are mono in [-1, 1] at sampleRate Hz.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
	Close() error
}
