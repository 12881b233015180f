package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/voicerig/voicerig/internal/audio"
	"github.com/voicerig/voicerig/internal/config"
	"github.com/voicerig/voicerig/internal/dispatch"
	"github.com/voicerig/voicerig/internal/events"
	"github.com/voicerig/voicerig/internal/stt"
	"github.com/voicerig/voicerig/internal/syncx"
	"github.com/voicerig/voicerig/internal/trace"
)

// Options assembles a Pipeline from its collaborators.
type Options struct {
	Buffer      *audio.CaptureBuffer
	Transcriber stt.Transcriber
	Dispatcher  *dispatch.Dispatcher
	Gate        *Gate
	Bus         *events.Bus

	SampleRate   int
	TickInterval time.Duration
	MinCycle     time.Duration

	// DumpWriter, when set, persists each cycle's audio for debugging.
	DumpWriter *audio.CycleWriter

	// StopGrace bounds how long Stop waits for an in-flight cycle before
	// abandoning it. Zero means DefaultStopGrace.
	StopGrace time.Duration
}

// DefaultStopGrace is how long Stop waits for a transcription already in
// flight; the whisper engine only honors cancellation between segments.
const DefaultStopGrace = 10 * time.Second

// Pipeline drives the periodic transcription cycle: drain buffered audio,
// transcribe it, resolve a phrase, gate it, and hand the trigger to the
// dispatcher. Cycles never overlap; the loop runs on one goroutine.
type Pipeline struct {
	opts       Options
	phrases    *syncx.RWGuard[*PhraseMap]
	minSamples int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	now func() time.Time
}

// New creates a stopped pipeline with an empty phrase map.
func New(opts Options) *Pipeline {
	if opts.StopGrace <= 0 {
		opts.StopGrace = DefaultStopGrace
	}
	return &Pipeline{
		opts:       opts,
		phrases:    syncx.NewGuard(BuildPhraseMap(nil, nil)),
		minSamples: int(opts.MinCycle.Seconds() * float64(opts.SampleRate)),
		now:        time.Now,
	}
}

// UpdatePhrases swaps in a rebuilt phrase map. Called by the catalog syncer
// after every reconciliation.
func (p *Pipeline) UpdatePhrases(mappings config.ActionMap, actions []dispatch.ActionEntry) {
	pm := BuildPhraseMap(mappings, actions)
	p.phrases.Set(pm)
	slog.Info("phrase map updated", "phrases", pm.Len())
}

// Start launches the cycle loop. Idempotent while running.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx)
}

// Stop halts the loop, giving an in-flight cycle a bounded grace period to
// finish before its result is abandoned.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	select {
	case <-done:
	case <-time.After(p.opts.StopGrace):
		slog.Warn("in-flight cycle outlived the stop grace period, abandoning",
			"grace", p.opts.StopGrace)
	}
}

func (p *Pipeline) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.opts.TickInterval)
	defer ticker.Stop()

	// A slow transcription outlasts the tick; missed ticks coalesce, so the
	// loop self-throttles instead of piling cycles up.
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		p.runCycle(ctx)
	}
}

// runCycle executes one transcription cycle. Exposed to the loop and tests.
func (p *Pipeline) runCycle(ctx context.Context) {
	// Let short snippets keep accumulating; whisper does poorly on them.
	if p.opts.Buffer.Len() < p.minSamples {
		return
	}
	samples := p.opts.Buffer.Drain()
	if len(samples) == 0 {
		return
	}

	ctx, span := trace.StartSpan(ctx, "pipeline.cycle")
	defer span.End()
	span.SetAttr("samples", len(samples))
	log := trace.Logger(ctx)

	audio.Normalize(samples)

	if p.opts.DumpWriter != nil {
		if path, err := p.opts.DumpWriter.Write(samples); err != nil {
			log.Warn("audio dump failed", "error", err)
		} else {
			log.Debug("dumped cycle audio", "path", path)
		}
	}

	text, err := p.opts.Transcriber.Transcribe(ctx, samples, p.opts.SampleRate)
	if err != nil {
		log.Error("transcription failed, dropping cycle", "error", err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	log.Debug("transcribed", "text", text)
	p.publish(events.Transcription, map[string]any{"text": text})

	actionID, phrase, ok := p.phrases.Get().Resolve(text)
	if !ok {
		return
	}

	log.Info("keyword matched", "phrase", phrase, "action_id", actionID)
	p.publish(events.KeywordMatched, map[string]any{
		"phrase":    phrase,
		"action_id": actionID,
	})

	now := p.now()
	if !p.opts.Gate.Allow(actionID, now) {
		log.Info("trigger suppressed by cooldown",
			"action_id", actionID,
			"remaining", p.opts.Gate.Remaining(actionID, now))
		p.publish(events.CooldownSuppressed, map[string]any{
			"phrase":    phrase,
			"action_id": actionID,
		})
		return
	}

	if err := p.opts.Dispatcher.Enqueue(ctx, actionID, phrase); err != nil {
		log.Warn("trigger not queued", "action_id", actionID, "error", err)
	}
}

func (p *Pipeline) publish(name string, data any) {
	if p.opts.Bus != nil {
		p.opts.Bus.Publish(name, data)
	}
}
