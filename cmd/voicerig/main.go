// voicerig - listens on the microphone and fires avatar actions when
// configured phrases are spoken.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"

	"github.com/voicerig/voicerig/internal/audio"
	"github.com/voicerig/voicerig/internal/catalog"
	"github.com/voicerig/voicerig/internal/config"
	"github.com/voicerig/voicerig/internal/dispatch"
	"github.com/voicerig/voicerig/internal/events"
	"github.com/voicerig/voicerig/internal/pipeline"
	"github.com/voicerig/voicerig/internal/server"
	"github.com/voicerig/voicerig/internal/stt"
	"github.com/voicerig/voicerig/internal/vts"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var (
		configPath = pflag.String("config", "voicerig.yaml", "path to the config file")
		envPath    = pflag.String("env", "", "optional .env file with overrides")
		logLevel   = pflag.String("log", "info", "log level: debug, info, warn, error")
		dumpDir    = pflag.String("dump-audio", "", "directory to dump per-cycle WAV files")
	)
	pflag.Parse()

	if *envPath != "" {
		if err := godotenv.Load(*envPath); err != nil {
			fmt.Fprintf(os.Stderr, "loading %s: %v\n", *envPath, err)
			os.Exit(1)
		}
	}

	setupLogging(*logLevel)

	if err := run(*configPath, *dumpDir); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.TimeOnly,
	})
	slog.SetDefault(slog.New(handler))
}

func run(configPath, dumpDir string) error {
	store := config.NewStore(configPath)
	cfg, err := store.Load()
	if err != nil {
		return err
	}
	if dumpDir != "" {
		cfg.Audio.DumpDir = dumpDir
	}

	bus := events.NewBus()
	start := time.Now()

	// Audio capture feeds the buffer continuously; the pipeline drains it
	// on its own clock.
	buf := audio.NewCaptureBuffer(cfg.Audio.MaxBufferSeconds * cfg.Audio.SampleRate)
	buf.OnOverflow(func(dropped int) {
		bus.Publish(events.BufferOverflow, map[string]any{"dropped_samples": dropped})
	})

	capturer, err := audio.NewCapturer(cfg.Audio.SampleRate, buf)
	if err != nil {
		return err
	}

	transcriber, err := stt.NewWhisper(stt.WhisperConfig{
		ModelPath: cfg.Whisper.ModelPath,
		Language:  cfg.Whisper.Language,
		Threads:   cfg.Whisper.Threads,
	})
	if err != nil {
		return err
	}
	defer func() { _ = transcriber.Close() }()

	// Peer connection. Model loads on the peer kick off a catalog resync;
	// the callback is assigned below, before Connect starts any goroutine
	// that could invoke it.
	var resync func()
	tokenPath := cfg.Connection.TokenFile
	if !filepath.IsAbs(tokenPath) {
		tokenPath = filepath.Join(filepath.Dir(configPath), tokenPath)
	}
	client := vts.NewClient(vts.ClientConfig{
		Addr:       fmt.Sprintf("%s:%d", cfg.Connection.Host, cfg.Connection.Port),
		TokenStore: vts.NewTokenStore(tokenPath),
		Bus:        bus,
		OnModelLoaded: func() {
			if resync != nil {
				resync()
			}
		},
	})

	dispatcher := dispatch.New(client, bus)

	gate := pipeline.NewGate(cfg.CooldownWindow())

	var dump *audio.CycleWriter
	if cfg.Audio.DumpDir != "" {
		dump, err = audio.NewCycleWriter(cfg.Audio.DumpDir, cfg.Audio.SampleRate)
		if err != nil {
			return err
		}
	}

	pipe := pipeline.New(pipeline.Options{
		Buffer:       buf,
		Transcriber:  transcriber,
		Dispatcher:   dispatcher,
		Gate:         gate,
		Bus:          bus,
		SampleRate:   cfg.Audio.SampleRate,
		TickInterval: cfg.TickInterval(),
		MinCycle:     cfg.MinCycle(),
		DumpWriter:   dump,
	})

	// Catalog fetches go through the dispatcher so they share the serialized
	// command lane with triggers.
	syncer := catalog.NewSyncer(dispatcher, store, cfg, bus, pipe.UpdatePhrases)
	resync = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := syncer.Sync(ctx); err != nil {
			slog.Error("catalog sync failed", "error", err)
		}
	}

	// Connect runs the first sync through OnModelLoaded before returning.
	connectCtx, connectCancel := context.WithCancel(context.Background())
	defer connectCancel()
	if err := client.Connect(connectCtx); err != nil {
		return err
	}
	defer client.Close()

	if err := capturer.Start(); err != nil {
		return err
	}
	pipe.Start()

	// Operator status surface.
	var httpServer *http.Server
	var statusSrv *server.Server
	if cfg.Status.Enabled {
		statusSrv = server.New(bus, dispatcher, func() map[string]any {
			return map[string]any{
				"uptime_seconds": int(time.Since(start).Seconds()),
				"mappings":       len(cfg.Actions),
			}
		})
		httpServer = &http.Server{
			Addr:         cfg.Status.Addr,
			Handler:      statusSrv.Handler(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("status server starting", "addr", cfg.Status.Addr)
			if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
				slog.Error("status server error", "error", err)
			}
		}()
	}

	slog.Info("voicerig running",
		"peer", fmt.Sprintf("%s:%d", cfg.Connection.Host, cfg.Connection.Port),
		"mappings", len(cfg.Actions))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")

	// Stop feeding audio first, let the in-flight cycle finish, then drain
	// the dispatcher before dropping the peer connection.
	capturer.Stop()
	pipe.Stop()
	dispatcher.Close()

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("status server shutdown error", "error", err)
		}
		statusSrv.Close()
	}

	slog.Info("shutdown complete")
	return nil
}
