package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/racksdue/voice-application/internal/observe"
	"github.com/racksdue/voice-application/internal/trigger"
	"github.com/racksdue/voice-application/pkg/audio"
	"github.com/racksdue/voice-application/pkg/provider/asr"
)

// ErrNotReady is returned by Listen, Pause, and Resume when the controller
// has not been opened or has already been stopped.
var ErrNotReady = errors.New("stream: controller not ready")

// Result is the outcome of one Listen cycle. A zero Result with a nil error
// means the cycle produced nothing: the gate stayed closed, the controller
// was paused, or the window's inference failed and was dropped.
type Result struct {
	// Text is the decoded text of the whole window, segments joined in
	// order.
	Text string

	// Segments carries the per-segment detail.
	Segments []asr.Segment

	// Trigger is the matched trigger phrase when Matched is true.
	Trigger string

	// Matched reports whether any segment contained a trigger phrase.
	Matched bool
}

// Option is a functional option for configuring a Controller.
type Option func(*Controller)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithTriggerMode sets the matching strategy used for the trigger phrases
// passed to Listen. Defaults to trigger.ModeSubstring.
func WithTriggerMode(mode trigger.Mode) Option {
	return func(c *Controller) { c.triggerMode = mode }
}

// Controller drives the capture-and-transcribe loop. Exactly one Listen call
// may be in flight at a time (cycles are strictly sequential); Pause, Resume,
// and Stop may be called concurrently from other goroutines.
//
// Lifecycle: Open → Listen… ⇄ Pause/Resume → Stop. The three lifecycle flags
// are atomics so the polling hot path never contends with a concurrent
// pause; buffer contents are guarded by a finer lock inside the window
// source.
type Controller struct {
	params      Parameters
	dev         audio.CaptureDevice
	engine      asr.Engine
	source      windowSource
	inv         *invoker
	history     *tokenHistory
	log         *slog.Logger
	metrics     *observe.Metrics
	triggerMode trigger.Mode

	stateMu     sync.Mutex // structural transitions: pause/resume/stop
	initialized atomic.Bool
	paused      atomic.Bool
	running     atomic.Bool

	stopOnce sync.Once
	stopErr  error
}

// Open validates params against the engine and builds a ready Controller.
// The capture device must already be opened by the caller; on success the
// controller takes ownership of both dev and engine and closes them in Stop.
// On error, ownership stays with the caller and nothing is left half
// initialized.
//
// A language the engine does not support is a configuration error. When the
// engine is monolingual, a non-English language or a translate request is
// downgraded to plain English recognition with a warning.
func Open(params Parameters, dev audio.CaptureDevice, engine asr.Engine, opts ...Option) (*Controller, error) {
	if dev == nil {
		return nil, errors.New("stream: capture device must not be nil")
	}
	if engine == nil {
		return nil, errors.New("stream: engine must not be nil")
	}
	if err := params.Normalize(); err != nil {
		return nil, err
	}

	if !engine.SupportsLanguage(params.Language) {
		return nil, fmt.Errorf("stream: language %q is not supported by the engine", params.Language)
	}

	c := &Controller{
		params:      params,
		dev:         dev,
		engine:      engine,
		history:     newTokenHistory(params.MaxContextTokens),
		log:         slog.Default(),
		triggerMode: trigger.ModeSubstring,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}

	if !engine.IsMultilingual() && (c.params.Language != "en" || c.params.Translate) {
		c.log.Warn("engine is monolingual, forcing English recognition",
			"requested_language", c.params.Language, "translate", c.params.Translate)
		c.params.Language = "en"
		c.params.Translate = false
	}

	if c.params.UseVAD() {
		c.source = newVADGatedSource(dev, c.params, &c.paused, c.metrics, c.log)
	} else {
		c.source = newFixedStepSource(dev, c.params, &c.paused, c.metrics, c.log)
	}
	c.inv = newInvoker(engine, c.params, c.metrics, c.log)

	c.initialized.Store(true)
	c.running.Store(true)

	c.log.Info("stream controller ready",
		"mode", c.params.Mode(),
		"step_ms", c.params.StepMs,
		"length_ms", c.params.LengthMs,
		"keep_ms", c.params.KeepMs,
		"language", c.params.Language)
	return c, nil
}

// Ready reports whether the controller can accept Listen calls.
func (c *Controller) Ready() bool {
	return c.initialized.Load() && c.running.Load()
}

// Paused reports whether capture is currently paused.
func (c *Controller) Paused() bool { return c.paused.Load() }

// Listen runs one capture-and-transcribe cycle and returns the decoded text.
// When trigger phrases are given, segments are matched as they are scanned
// and the first hit sets Result.Matched and Result.Trigger.
//
// A zero Result with nil error means this cycle produced nothing; callers
// simply loop. ErrStopRequested signals a cooperative shutdown observed
// while polling. Cycles are strictly sequential: callers must not invoke
// Listen concurrently.
func (c *Controller) Listen(ctx context.Context, triggers ...string) (Result, error) {
	if !c.Ready() {
		return Result{}, ErrNotReady
	}
	if c.paused.Load() {
		return Result{}, nil
	}

	var matcher *trigger.Matcher
	if len(triggers) > 0 {
		var err error
		matcher, err = trigger.New(triggers, trigger.WithMode(c.triggerMode))
		if err != nil {
			return Result{}, err
		}
	}

	cycleStart := time.Now()

	window, err := c.source.next(ctx)
	switch {
	case errors.Is(err, errCycleSkipped):
		return Result{}, nil
	case errors.Is(err, ErrStopRequested):
		c.running.Store(false)
		return Result{}, ErrStopRequested
	case err != nil:
		return Result{}, err
	}

	// A pause that landed while the window was being built wins: the window
	// is discarded, never submitted.
	if c.paused.Load() {
		return Result{}, nil
	}

	useContext := !c.params.UseVAD() && c.params.MaxContextTokens > 0
	var ctxTokens []asr.Token
	if useContext {
		ctxTokens = c.history.current()
	}

	segments, phrase, err := c.inv.transcribe(ctx, window, c.params.options(ctxTokens), matcher)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		// Transient inference failure: the window is dropped, the stream
		// continues.
		return Result{}, nil
	}

	c.metrics.RecordWindow(ctx, c.params.Mode(), time.Since(cycleStart).Seconds())

	res := Result{
		Text:     joinSegments(segments),
		Segments: segments,
	}
	if phrase != "" {
		res.Trigger = phrase
		res.Matched = true
		return res, nil
	}

	if useContext {
		c.history.add(segments)
	}
	if c.source.commit() && useContext {
		c.history.prune()
		c.metrics.ContextTokens.Record(ctx, int64(c.history.len()))
	}

	return res, nil
}

// Pause stops the capture device and purges every pending buffer so that no
// audio captured before the pause can ever reach inference. Safe to call
// while a Listen cycle is in flight on another goroutine. Idempotent.
func (c *Controller) Pause() error {
	if !c.initialized.Load() {
		return ErrNotReady
	}

	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if c.paused.Load() {
		return nil
	}
	c.paused.Store(true)

	err := c.dev.Pause()
	c.dev.Clear()
	c.source.reset()

	if err != nil {
		return fmt.Errorf("stream: pause capture: %w", err)
	}
	return nil
}

// Resume clears buffers again and restarts capture. The double clear (once
// in Pause, once here) guarantees resuming starts from a clean window even
// if the device queued anything in between.
func (c *Controller) Resume() error {
	if !c.initialized.Load() {
		return ErrNotReady
	}

	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	c.dev.Clear()
	c.source.reset()

	if err := c.dev.Resume(); err != nil {
		return fmt.Errorf("stream: resume capture: %w", err)
	}
	c.paused.Store(false)
	return nil
}

// Stop releases the capture device and the recognition engine exactly once
// and transitions the controller to its terminal state. Valid from any
// state; repeated calls return the first call's result.
func (c *Controller) Stop() error {
	c.stopOnce.Do(func() {
		c.stateMu.Lock()
		defer c.stateMu.Unlock()

		c.running.Store(false)
		c.initialized.Store(false)
		c.history.clear()

		c.stopErr = errors.Join(c.dev.Close(), c.engine.Close())
		c.log.Info("stream controller stopped")
	})
	return c.stopErr
}

// joinSegments concatenates segment texts with single spaces.
func joinSegments(segments []asr.Segment) string {
	if len(segments) == 0 {
		return ""
	}
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, " ")
}
