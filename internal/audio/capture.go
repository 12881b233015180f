package audio

import (
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	apperrors "github.com/voicerig/voicerig/internal/errors"
)

const framesPerBuffer = 1024 // ~64ms at 16kHz

// Capturer streams mono samples from the default input device into a
// CaptureBuffer.
type Capturer struct {
	buf        *CaptureBuffer
	sampleRate int

	mu      sync.Mutex
	stream  *portaudio.Stream
	running bool
}

// NewCapturer initializes portaudio and prepares a capturer feeding buf.
func NewCapturer(sampleRate int, buf *CaptureBuffer) (*Capturer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeFatalStartup, "initializing audio host")
	}
	return &Capturer{
		buf:        buf,
		sampleRate: sampleRate,
	}, nil
}

// Start opens the default input device and begins appending samples to the
// buffer. Idempotent while running.
func (c *Capturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeFatalStartup, "no default input device")
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(c.sampleRate),
		FramesPerBuffer: framesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, c.callback)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeFatalStartup, "opening input stream")
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return apperrors.Wrap(err, apperrors.CodeFatalStartup, "starting input stream")
	}

	c.stream = stream
	c.running = true
	slog.Info("started audio capture",
		"device", dev.Name,
		"sample_rate", c.sampleRate)
	return nil
}

// callback runs on the portaudio thread. Copy out and hand off fast.
func (c *Capturer) callback(in []float32) {
	c.buf.Append(in)
}

// Stop halts capture and releases the device. Safe to call more than once.
func (c *Capturer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	if c.stream != nil {
		_ = c.stream.Stop()
		_ = c.stream.Close()
		c.stream = nil
	}
	c.running = false
	_ = portaudio.Terminate()
	slog.Info("stopped audio capture")
}
