// Command voiceapp is the main entry point for the voice navigation assistant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/racksdue/voice-application/internal/app"
	"github.com/racksdue/voice-application/internal/config"
	"github.com/racksdue/voice-application/internal/health"
	"github.com/racksdue/voice-application/internal/observe"
	"github.com/racksdue/voice-application/pkg/audio"
	"github.com/racksdue/voice-application/pkg/provider/asr"
	"github.com/racksdue/voice-application/pkg/provider/asr/whisper"
	"github.com/racksdue/voice-application/pkg/provider/tts"
	"github.com/racksdue/voice-application/pkg/provider/tts/piper"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voiceapp: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voiceapp: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voiceapp starting",
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Metrics and health endpoints ──────────────────────────────────────────
	var metricsSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		metricsSrv = startMetricsServer(cfg.Server.MetricsAddr, application.HealthCheckers()...)
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	// Trigger table and log level changes apply without a restart; everything
	// else (providers, stream geometry) requires one.
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		applyConfigChange(application, old, new)
	})
	if err != nil {
		slog.Warn("config watcher unavailable", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Playback device ───────────────────────────────────────────────────────
	// The speaker pulls from the app's playback queue; without a synthesizer
	// there is nothing to play and no device is opened.
	var speaker *audio.Speaker
	if providers.TTS != nil {
		speaker, err = audio.NewSpeaker(providers.TTS.SampleRate(), application.Player())
		if err != nil {
			slog.Error("failed to open playback device", "err", err)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			application.Shutdown(shutdownCtx)
			return 1
		}
	}

	slog.Info("assistant ready — press Ctrl+C to shut down")

	// The run loop and the metrics server shut down together: when Run
	// returns (exit trigger, stop request, signal), runCtx is cancelled and
	// the second goroutine drains the HTTP server.
	runCtx, stopAll := context.WithCancel(ctx)
	defer stopAll()

	var g errgroup.Group
	g.Go(func() error {
		defer stopAll()
		return application.Run(runCtx)
	})
	if metricsSrv != nil {
		g.Go(func() error {
			<-runCtx.Done()
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsSrv.Shutdown(closeCtx); err != nil {
				slog.Warn("metrics server shutdown error", "err", err)
			}
			return nil
		})
	}

	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping…")

	if speaker != nil {
		if err := speaker.Close(); err != nil {
			slog.Warn("playback device close error", "err", err)
		}
	}

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterASR("whisper", func(entry config.ProviderEntry) (asr.Engine, error) {
		var opts []whisper.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.Model, opts...)
	})

	reg.RegisterTTS("piper", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		var opts []piper.Option
		if entry.Binary != "" {
			opts = append(opts, piper.WithBinary(entry.Binary))
		}
		if entry.SampleRate > 0 {
			opts = append(opts, piper.WithSampleRate(entry.SampleRate))
		}
		if speaker, ok := optInt(entry.Options, "speaker"); ok {
			opts = append(opts, piper.WithSpeaker(speaker))
		}
		if scale, ok := optFloat(entry.Options, "length_scale"); ok {
			opts = append(opts, piper.WithLengthScale(scale))
		}
		return piper.New(entry.Model, opts...)
	})
}

// buildProviders instantiates the providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.ASR.Name; name != "" {
		p, err := reg.CreateASR(cfg.ASR)
		if err != nil {
			return nil, fmt.Errorf("create asr provider %q: %w", name, err)
		}
		ps.ASR = p
		slog.Info("provider created", "kind", "asr", "name", name, "model", cfg.ASR.Model)
	} else {
		return nil, errors.New("asr.name is required")
	}

	if name := cfg.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.TTS)
		if err != nil {
			ps.ASR.Close()
			return nil, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		ps.TTS = p
		slog.Info("provider created", "kind", "tts", "name", name, "model", cfg.TTS.Model)
	} else {
		slog.Warn("no tts provider configured; trigger responses will be logged only")
	}

	return ps, nil
}

// ── Config hot reload ─────────────────────────────────────────────────────────

// applyConfigChange applies the reloadable parts of a config change to the
// running application.
func applyConfigChange(application *app.App, old, new *config.Config) {
	diff := config.Diff(old, new)
	if diff.LogLevelChanged {
		slog.SetDefault(newLogger(diff.NewLogLevel))
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.TriggersChanged {
		application.UpdateTriggers(new.Triggers)
	}
}

// ── Metrics endpoint ──────────────────────────────────────────────────────────

// startMetricsServer serves the Prometheus scrape endpoint plus health and
// readiness probes in a background goroutine.
func startMetricsServer(addr string, checkers ...health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(checkers...).Register(mux)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		slog.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "err", err)
		}
	}()
	return srv
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        voiceapp — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("ASR", cfg.ASR.Name, cfg.ASR.Model)
	printProvider("TTS", cfg.TTS.Name, cfg.TTS.Model)
	mode := "fixed-step"
	if cfg.Stream.StepMs < 0 {
		mode = "vad"
	}
	fmt.Printf("║  Capture mode    : %-19s ║\n", mode)
	fmt.Printf("║  Triggers        : %-19d ║\n", len(cfg.Triggers))
	if cfg.Server.MetricsAddr != "" {
		fmt.Printf("║  Metrics addr    : %-19s ║\n", cfg.Server.MetricsAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// optInt extracts an integer value from a provider Options map. YAML decodes
// whole numbers as int.
func optInt(opts map[string]any, key string) (int, bool) {
	if opts == nil {
		return 0, false
	}
	v, ok := opts[key]
	if !ok {
		return 0, false
	}
	n, ok := v.(int)
	return n, ok
}

// optFloat extracts a float value from a provider Options map, accepting both
// float and int YAML scalars.
func optFloat(opts map[string]any, key string) (float64, bool) {
	if opts == nil {
		return 0, false
	}
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
