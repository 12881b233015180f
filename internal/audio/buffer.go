// Package audio handles microphone capture and sample buffering for the
// transcription pipeline.
package audio

import (
	"log/slog"
	"sync"
)

// OverflowFunc is invoked (outside the buffer lock) when the buffer cap is
// exceeded and old samples are discarded. samplesDropped is the count removed.
type OverflowFunc func(samplesDropped int)

// CaptureBuffer accumulates raw samples between transcription cycles.
// Append is called from the capture callback; Drain swaps the accumulated
// slice out wholesale so a sample is returned by exactly one drain.
type CaptureBuffer struct {
	mu         sync.Mutex
	samples    []float32
	maxSamples int
	dropped    int

	onOverflow OverflowFunc
}

// NewCaptureBuffer creates a buffer capped at maxSamples. A cap of zero or
// below means unbounded.
func NewCaptureBuffer(maxSamples int) *CaptureBuffer {
	return &CaptureBuffer{maxSamples: maxSamples}
}

// OnOverflow registers a callback fired after samples are discarded.
func (b *CaptureBuffer) OnOverflow(fn OverflowFunc) { b.onOverflow = fn }

// Append adds samples to the buffer, discarding the oldest samples when the
// cap would be exceeded. Newest audio always wins.
func (b *CaptureBuffer) Append(samples []float32) {
	var droppedNow int

	b.mu.Lock()
	b.samples = append(b.samples, samples...)
	if b.maxSamples > 0 && len(b.samples) > b.maxSamples {
		droppedNow = len(b.samples) - b.maxSamples
		b.samples = b.samples[droppedNow:]
		b.dropped += droppedNow
	}
	fn := b.onOverflow
	b.mu.Unlock()

	if droppedNow > 0 {
		slog.Warn("capture buffer overflow, dropping oldest audio",
			"dropped_samples", droppedNow)
		if fn != nil {
			fn(droppedNow)
		}
	}
}

// Drain returns all accumulated samples and resets the buffer. The returned
// slice is owned by the caller.
func (b *CaptureBuffer) Drain() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.samples
	b.samples = nil
	return out
}

// Len reports the number of buffered samples.
func (b *CaptureBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Dropped reports the total samples discarded to overflow since creation.
func (b *CaptureBuffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
