package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/racksdue/voice-application/internal/observe"
	"github.com/racksdue/voice-application/internal/vad"
	"github.com/racksdue/voice-application/pkg/audio"
)

// ErrStopRequested is returned by Listen when the capture device reports an
// external quit request. It is a cooperative shutdown signal, not a failure.
var ErrStopRequested = errors.New("stream: stop requested")

// errCycleSkipped signals that the current cycle produced no window: the
// controller was paused mid-poll, the VAD gate stayed closed, or no audio
// was available. The cycle is absorbed and Listen returns an empty Result.
var errCycleSkipped = errors.New("stream: cycle produced no window")

// windowSource produces inference windows from the capture device. next
// blocks (in bounded polling increments) until a window is ready or the
// cycle is abandoned. commit is called after each successfully decoded
// window and reports whether the decoding context should be refreshed.
// reset clears all carried state; it is called on pause and resume and may
// run concurrently with next.
type windowSource interface {
	next(ctx context.Context) ([]float32, error)
	commit() bool
	reset()
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ---- fixed-step mode ---------------------------------------------------------

// fixedStepSource cuts a window every StepMs milliseconds, carrying KeepMs of
// trailing audio from the previous window for continuity. When the capture
// backlog exceeds twice the step the buffered audio is discarded rather than
// processed late: the loop prefers dropping audio over building unbounded
// latency.
type fixedStepSource struct {
	dev     audio.CaptureDevice
	params  Parameters
	paused  *atomic.Bool
	metrics *observe.Metrics
	log     *slog.Logger

	mu   sync.Mutex // guards tail and iter against a concurrent reset
	tail []float32
	iter int
}

func newFixedStepSource(dev audio.CaptureDevice, p Parameters, paused *atomic.Bool, m *observe.Metrics, log *slog.Logger) *fixedStepSource {
	return &fixedStepSource{dev: dev, params: p, paused: paused, metrics: m, log: log}
}

func (s *fixedStepSource) next(ctx context.Context) ([]float32, error) {
	step := s.params.stepSamples()

	var chunk []float32
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.dev.PollEvents() {
			return nil, ErrStopRequested
		}
		if s.paused.Load() {
			return nil, errCycleSkipped
		}

		// Drain everything buffered so a processing lag is visible as a
		// chunk larger than one step.
		chunk = s.dev.Drain(0)

		if len(chunk) > 2*step {
			// Processing lag: drop the backlog and let capture settle.
			droppedMs := int64(len(chunk)) * 1000 / SampleRate
			s.metrics.DroppedAudioMs.Add(ctx, droppedMs)
			s.log.Debug("capture backlog exceeded, dropping buffered audio",
				"buffered_ms", droppedMs)
			s.dev.Clear()
			if err := sleepCtx(ctx, backpressurePause); err != nil {
				return nil, err
			}
			continue
		}
		if len(chunk) >= step {
			s.dev.Clear()
			break
		}
		if err := sleepCtx(ctx, pollInterval); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	take := min(len(s.tail), max(0, s.params.keepSamples()+s.params.lengthSamples()-len(chunk)))
	window := make([]float32, 0, take+len(chunk))
	window = append(window, s.tail[len(s.tail)-take:]...)
	window = append(window, chunk...)
	s.tail = window

	return window, nil
}

// commit advances the window counter. Every newLineEvery windows the carried
// tail is trimmed down to KeepMs and the caller is told to refresh the
// decoding context.
func (s *fixedStepSource) commit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.iter++
	if s.iter%s.params.newLineEvery() != 0 {
		return false
	}
	if keep := s.params.keepSamples(); len(s.tail) > keep {
		s.tail = s.tail[len(s.tail)-keep:]
	}
	return true
}

func (s *fixedStepSource) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tail = nil
}

// ---- VAD-gated mode ----------------------------------------------------------

// vadGatedSource probes the capture buffer for voice activity and only cuts
// a window when speech is present. Probes are suppressed for vadGateMs after
// each decoded window so the loop samples at a coarse, mandatory interval
// rather than continuously.
type vadGatedSource struct {
	dev     audio.CaptureDevice
	params  Parameters
	paused  *atomic.Bool
	metrics *observe.Metrics
	log     *slog.Logger

	// detector is non-nil when adaptive VAD is enabled; otherwise a static
	// single-threshold test is used.
	detector *vad.Adaptive

	mu         sync.Mutex
	lastWindow time.Time
}

func newVADGatedSource(dev audio.CaptureDevice, p Parameters, paused *atomic.Bool, m *observe.Metrics, log *slog.Logger) *vadGatedSource {
	s := &vadGatedSource{dev: dev, params: p, paused: paused, metrics: m, log: log}
	if p.AdaptiveVAD {
		s.detector = vad.NewAdaptive(p.VADThreshold)
	}
	return s
}

func (s *vadGatedSource) next(ctx context.Context) ([]float32, error) {
	// Honor the gate: wait out the remainder of the sampling interval in
	// short increments so pause and quit stay responsive.
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.dev.PollEvents() {
			return nil, ErrStopRequested
		}
		if s.paused.Load() {
			return nil, errCycleSkipped
		}

		s.mu.Lock()
		elapsed := time.Since(s.lastWindow)
		s.mu.Unlock()
		if elapsed >= vadGateMs*time.Millisecond {
			break
		}
		if err := sleepCtx(ctx, pollInterval); err != nil {
			return nil, err
		}
	}

	probe := s.dev.Drain(vadGateMs)
	if len(probe) == 0 {
		if err := sleepCtx(ctx, pollInterval); err != nil {
			return nil, err
		}
		return nil, errCycleSkipped
	}

	var speech bool
	if s.detector != nil {
		speech = s.detector.Detect(probe, SampleRate, vadProbeMs, s.params.FreqCutoff, s.params.EnergyFloor)
	} else {
		speech = vad.Detect(probe, SampleRate, vadProbeMs, s.params.VADThreshold, s.params.FreqCutoff)
	}
	s.metrics.RecordVADDecision(ctx, speech)

	if !speech {
		// Probe again next cycle; the gate only arms after a decode.
		if err := sleepCtx(ctx, pollInterval); err != nil {
			return nil, err
		}
		return nil, errCycleSkipped
	}

	window := s.dev.Drain(s.params.LengthMs)

	s.mu.Lock()
	s.lastWindow = time.Now()
	s.mu.Unlock()

	if len(window) == 0 {
		return nil, errCycleSkipped
	}
	if s.detector != nil {
		s.log.Debug("speech detected", "threshold", s.detector.Threshold())
	}
	return window, nil
}

// commit reports false: VAD-gated windows are self-contained utterances, so
// no cross-window context is carried.
func (s *vadGatedSource) commit() bool { return false }

func (s *vadGatedSource) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastWindow = time.Time{}
}
