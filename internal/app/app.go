// Package app wires all subsystems into a running voice assistant.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the listen-and-respond loop, and Shutdown tears
// everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithCaptureDevice, WithPlayer, etc.). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/racksdue/voice-application/internal/config"
	"github.com/racksdue/voice-application/internal/health"
	"github.com/racksdue/voice-application/internal/observe"
	"github.com/racksdue/voice-application/internal/resilience"
	"github.com/racksdue/voice-application/internal/stream"
	"github.com/racksdue/voice-application/internal/trigger"
	"github.com/racksdue/voice-application/pkg/audio"
	"github.com/racksdue/voice-application/pkg/provider/asr"
	"github.com/racksdue/voice-application/pkg/provider/tts"
)

// speechPeak is the normalization target for synthesized audio before it is
// queued for playback.
const speechPeak = 0.95

// Providers holds one interface value per provider slot. ASR is required;
// a nil TTS means trigger responses are logged instead of spoken.
// Populated by main.go via the config registry.
type Providers struct {
	ASR asr.Engine
	TTS tts.Synthesizer
}

// App owns all subsystem lifetimes and orchestrates the voice command loop.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	controller *stream.Controller
	capture    audio.CaptureDevice
	player     *audio.Player
	breaker    *resilience.CircuitBreaker

	metrics *observe.Metrics
	log     *slog.Logger

	// triggers is the active trigger table. Guarded by triggerMu so the
	// config watcher can swap it while Run is looping.
	triggerMu sync.RWMutex
	triggers  []config.TriggerConfig

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithCaptureDevice injects a capture device instead of opening a microphone.
func WithCaptureDevice(dev audio.CaptureDevice) Option {
	return func(a *App) { a.capture = dev }
}

// WithPlayer injects the playback queue. The caller keeps responsibility for
// wiring its consumer side to an output device.
func WithPlayer(p *audio.Player) Option {
	return func(a *App) { a.player = p }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
//
// On success the app owns the capture device and both providers; all are
// released in Shutdown. On error everything opened so far is unwound and
// ownership of injected values stays with the caller.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.ASR == nil {
		return nil, errors.New("app: a recognition engine is required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		triggers:  cfg.Triggers,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.player == nil {
		a.player = audio.NewPlayer()
	}

	// ── 1. Capture device ────────────────────────────────────────────────
	if a.capture == nil {
		bufferMs := cfg.Audio.BufferMs
		if bufferMs <= 0 {
			bufferMs = 30000
		}
		mic, err := audio.NewMicrophone(cfg.Audio.CaptureDevice, stream.SampleRate, bufferMs)
		if err != nil {
			return nil, fmt.Errorf("app: open microphone: %w", err)
		}
		a.capture = mic
	}

	// ── 2. Stream controller ─────────────────────────────────────────────
	ctrl, err := stream.Open(cfg.StreamParameters(), a.capture, providers.ASR,
		stream.WithLogger(a.log),
		stream.WithMetrics(a.metrics),
		stream.WithTriggerMode(matchingMode(cfg.Matching)),
	)
	if err != nil {
		a.capture.Close()
		return nil, fmt.Errorf("app: open stream controller: %w", err)
	}
	a.controller = ctrl
	// The controller owns capture and ASR from here on.
	a.closers = append(a.closers, ctrl.Stop)

	// ── 3. Speech output ─────────────────────────────────────────────────
	if providers.TTS != nil {
		a.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:         "tts",
			MaxFailures:  3,
			ResetTimeout: 10 * time.Second,
		})
		a.closers = append(a.closers, providers.TTS.Close)
	}

	return a, nil
}

// Controller exposes the stream controller, mainly for pause control from
// outside the run loop.
func (a *App) Controller() *stream.Controller { return a.controller }

// HealthCheckers returns the readiness probes for this app: the stream
// controller must be accepting cycles, and the synthesis circuit breaker (if
// speech output is configured) must not be open.
func (a *App) HealthCheckers() []health.Checker {
	checkers := []health.Checker{
		health.Bool("stream", "stream controller stopped", a.controller.Ready),
	}
	if a.breaker != nil {
		checkers = append(checkers, health.Bool("synthesis", "synthesis circuit breaker open", func() bool {
			return a.breaker.State() != resilience.StateOpen
		}))
	}
	return checkers
}

// Player exposes the playback queue so main.go can wire an output device to
// its consumer side.
func (a *App) Player() *audio.Player { return a.player }

// UpdateTriggers replaces the active trigger table. The next listen cycle
// picks up the new phrases; a cycle already in flight finishes against the
// old table.
func (a *App) UpdateTriggers(triggers []config.TriggerConfig) {
	a.triggerMu.Lock()
	a.triggers = triggers
	a.triggerMu.Unlock()
	a.log.Info("trigger table updated", "triggers", len(triggers))
}

// triggerPhrases returns the phrases of the active trigger table.
func (a *App) triggerPhrases() []string {
	a.triggerMu.RLock()
	defer a.triggerMu.RUnlock()
	phrases := make([]string, 0, len(a.triggers))
	for _, t := range a.triggers {
		phrases = append(phrases, t.Phrase)
	}
	return phrases
}

// triggerFor looks up a trigger by phrase, case-insensitively.
func (a *App) triggerFor(phrase string) (config.TriggerConfig, bool) {
	a.triggerMu.RLock()
	defer a.triggerMu.RUnlock()
	for _, t := range a.triggers {
		if strings.EqualFold(t.Phrase, phrase) {
			return t, true
		}
	}
	return config.TriggerConfig{}, false
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run executes the listen-and-respond loop until ctx is cancelled, the
// capture device requests a stop, or an exit trigger fires.
//
// Each cycle listens for one window, and on a trigger match pauses capture,
// speaks the configured response, and resumes. Audio captured while the
// assistant is speaking never reaches recognition, so the assistant cannot
// trigger itself.
func (a *App) Run(ctx context.Context) error {
	params := a.cfg.StreamParameters()
	a.log.Info("assistant running",
		"triggers", len(a.triggerPhrases()),
		"mode", params.Mode(),
		"speech_output", a.providers.TTS != nil)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := a.controller.Listen(ctx, a.triggerPhrases()...)
		switch {
		case errors.Is(err, stream.ErrStopRequested):
			a.log.Info("stop requested by capture device")
			return nil
		case err != nil:
			return fmt.Errorf("app: listen: %w", err)
		}

		if res.Text != "" && !res.Matched {
			a.log.Debug("heard", "text", res.Text)
		}
		if !res.Matched {
			continue
		}

		trig, ok := a.triggerFor(res.Trigger)
		if !ok {
			// A matcher phrase that is not in the active table means the
			// table was swapped mid-cycle. Drop the stale match.
			a.log.Warn("matched phrase has no configured trigger", "phrase", res.Trigger)
			continue
		}

		a.log.Info("trigger matched", "phrase", res.Trigger, "action", trig.Action, "heard", res.Text)

		if err := a.handleTrigger(ctx, trig); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.log.Error("trigger handling failed", "phrase", trig.Phrase, "err", err)
		}

		if trig.Action == config.ActionExit {
			a.log.Info("exit trigger fired, shutting down")
			return nil
		}
	}
}

// handleTrigger pauses capture, speaks the trigger's response, and resumes.
// Capture stays paused for the whole spoken response so the microphone never
// hears the assistant's own voice.
func (a *App) handleTrigger(ctx context.Context, trig config.TriggerConfig) error {
	ctx, span := observe.StartSpan(ctx, "app.handleTrigger")
	defer span.End()

	if err := a.controller.Pause(); err != nil {
		return fmt.Errorf("pause capture: %w", err)
	}

	speakErr := a.speak(ctx, trig.Response)

	// Exit triggers leave capture paused; the controller is stopped right
	// after in Shutdown.
	if trig.Action != config.ActionExit {
		if err := a.controller.Resume(); err != nil {
			return errors.Join(speakErr, fmt.Errorf("resume capture: %w", err))
		}
	}
	return speakErr
}

// speak synthesizes text and plays it to completion. With no synthesizer or
// no text it is a no-op. Synthesis runs behind the circuit breaker so a
// failing synthesis backend cannot stall every trigger for its full timeout.
func (a *App) speak(ctx context.Context, text string) error {
	if text == "" || a.providers.TTS == nil {
		if text != "" {
			a.log.Info("response (no speech output configured)", "text", text)
		}
		return nil
	}

	start := time.Now()
	var samples []float32
	err := a.breaker.Execute(func() error {
		var serr error
		samples, serr = a.providers.TTS.Synthesize(ctx, text)
		return serr
	})
	a.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	audio.NormalizePeak(samples, speechPeak)
	a.player.Queue(samples)

	// Wait for the playback queue to drain, but never past ctx.
	done := make(chan struct{})
	go func() {
		a.player.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}

		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

// matchingMode converts a config.Matching value to a trigger.Mode.
func matchingMode(m config.Matching) trigger.Mode {
	if m == config.MatchingPhonetic {
		return trigger.ModePhonetic
	}
	return trigger.ModeSubstring
}
