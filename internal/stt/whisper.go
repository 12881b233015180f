package stt

import (
	"context"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	apperrors "github.com/voicerig/voicerig/internal/errors"
	"github.com/voicerig/voicerig/internal/trace"
)

// WhisperConfig tunes the local whisper.cpp engine.
type WhisperConfig struct {
	ModelPath string
	Language  string // "" or "auto" for detection
	Threads   int    // <=0 uses NumCPU
}

// WhisperTranscriber runs whisper.cpp in process. One transcription at a
// time; calls are serialized internally.
type WhisperTranscriber struct {
	model   whisper.Model
	cfg     WhisperConfig
	mu      sync.Mutex
	threads uint
}

// NewWhisper loads the model from cfg.ModelPath.
func NewWhisper(cfg WhisperConfig) (*WhisperTranscriber, error) {
	if cfg.ModelPath == "" {
		return nil, apperrors.New(apperrors.CodeConfig, "whisper model path not set")
	}
	model, err := whisper.New(cfg.ModelPath)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeFatalStartup,
			"loading whisper model %q", cfg.ModelPath)
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &WhisperTranscriber{model: model, cfg: cfg, threads: uint(threads)}, nil
}

// Transcribe implements Transcriber. Whisper expects 16kHz mono input; the
// pipeline is configured to capture at that rate.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	if sampleRate != whisper.SampleRate {
		return "", apperrors.Newf(apperrors.CodeConfig,
			"whisper requires %dHz input, got %dHz", whisper.SampleRate, sampleRate)
	}

	ctx, span := trace.StartSpan(ctx, "stt.transcribe")
	defer span.End()
	span.SetAttr("samples", len(samples))

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeTransient, "creating whisper context")
	}

	lang := w.cfg.Language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return "", apperrors.Wrapf(err, apperrors.CodeConfig, "setting language %q", lang)
	}
	wctx.SetThreads(w.threads)
	wctx.SetTranslate(false)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeTransient, "whisper process")
	}

	var sb strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.CodeTransient, "reading segment")
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strings.TrimSpace(seg.Text))
	}
	return sb.String(), nil
}

// Close releases the loaded model.
func (w *WhisperTranscriber) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model == nil {
		return nil
	}
	err := w.model.Close()
	w.model = nil
	return err
}
