// Package stream implements the real-time capture-and-transcribe loop: it
// turns a continuously filling capture buffer into discrete audio windows,
// runs each window through a speech recognition engine with bounded retries,
// carries decoding context across windows, and matches decoded text against
// trigger phrases.
//
// The package has two windowing modes, selected once at initialization from
// StepMs: a positive value selects fixed-step mode (overlapping windows every
// StepMs milliseconds), a non-positive value selects VAD-gated mode (windows
// are only cut when voice activity is detected). The top-level type is
// [Controller].
package stream

import (
	"fmt"
	"time"

	"github.com/racksdue/voice-application/pkg/provider/asr"
)

// SampleRate is the fixed audio sample rate of the capture pipeline, in Hz.
const SampleRate = asr.SampleRate

const (
	defaultStepMs           = 3000
	defaultLengthMs         = 10000
	defaultKeepMs           = 200
	defaultMaxTokens        = 32
	defaultMaxRetries       = 3
	defaultMaxContextTokens = 256
	defaultVADThreshold     = 0.6
	defaultFreqCutoff       = 100.0
	defaultEnergyFloor      = 1e-4
	defaultRetryBackoff     = 100 * time.Millisecond

	// vadGateMs is the mandatory sampling interval between VAD probes in
	// VAD-gated mode, and also the span drained for each probe.
	vadGateMs = 2000

	// vadProbeMs is the trailing span inside a probe that the energy test
	// evaluates.
	vadProbeMs = 1000

	// pollInterval is the sleep between capture polls while waiting for a
	// full step of samples.
	pollInterval = 20 * time.Millisecond

	// backpressurePause is the sleep after discarding a lagging capture
	// backlog, giving the device queue time to settle.
	backpressurePause = 100 * time.Millisecond
)

// Parameters configures a Controller. The zero value is not usable; start
// from DefaultParameters and override fields as needed. Parameters are
// immutable after Open.
type Parameters struct {
	// Threads is the CPU thread count for inference. Zero picks an engine
	// default.
	Threads int

	// StepMs is the interval between inference windows in fixed-step mode.
	// Non-positive selects VAD-gated mode.
	StepMs int

	// LengthMs is the total window length submitted to inference.
	LengthMs int

	// KeepMs is the audio carried over from the previous window for
	// continuity in fixed-step mode.
	KeepMs int

	// CaptureDevice is the capture device index. Negative selects the
	// system default.
	CaptureDevice int

	// MaxTokens caps tokens per decoded segment. Zero means no cap.
	MaxTokens int

	// AudioCtx overrides the encoder audio context size. Zero keeps the
	// model default.
	AudioCtx int

	// BeamSize sets the decoder beam width. Zero selects greedy decoding.
	BeamSize int

	// MaxRetries bounds inference attempts per window.
	MaxRetries int

	// MaxContextTokens bounds the rolling decoding context. Zero disables
	// cross-window context entirely.
	MaxContextTokens int

	// VADThreshold is the static energy threshold, and the starting point
	// for the adaptive detector.
	VADThreshold float32

	// FreqCutoff is the high-pass cutoff in Hz applied before the energy
	// test. Zero disables the filter.
	FreqCutoff float32

	// EnergyFloor is the minimum window energy recorded into the adaptive
	// detector's history.
	EnergyFloor float32

	// Language is the ISO 639-1 recognition language.
	Language string

	// Translate requests translation of recognition output to English.
	Translate bool

	// NoFallback disables the decoder's temperature fallback.
	NoFallback bool

	// Timestamps enables per-segment timestamps.
	Timestamps bool

	// AdaptiveVAD enables the self-tuning detector in VAD-gated mode. When
	// false a static threshold test is used instead.
	AdaptiveVAD bool
}

// DefaultParameters returns the canonical defaults: fixed-step mode with a
// 3 s step, 10 s windows, 200 ms overlap, adaptive VAD enabled.
func DefaultParameters() Parameters {
	return Parameters{
		StepMs:           defaultStepMs,
		LengthMs:         defaultLengthMs,
		KeepMs:           defaultKeepMs,
		CaptureDevice:    -1,
		MaxTokens:        defaultMaxTokens,
		MaxRetries:       defaultMaxRetries,
		MaxContextTokens: defaultMaxContextTokens,
		VADThreshold:     defaultVADThreshold,
		FreqCutoff:       defaultFreqCutoff,
		EnergyFloor:      defaultEnergyFloor,
		Language:         "en",
		AdaptiveVAD:      true,
	}
}

// Normalize clamps dependent fields into their invariant ranges: KeepMs may
// not exceed StepMs and LengthMs may not fall below StepMs. It returns an
// error for fields that cannot be fixed up.
func (p *Parameters) Normalize() error {
	if p.LengthMs <= 0 {
		return fmt.Errorf("stream: LengthMs must be positive, got %d", p.LengthMs)
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = defaultMaxRetries
	}
	if p.Language == "" {
		p.Language = "en"
	}
	if p.StepMs > 0 {
		p.KeepMs = min(p.KeepMs, p.StepMs)
		p.LengthMs = max(p.LengthMs, p.StepMs)
	}
	if p.KeepMs < 0 {
		p.KeepMs = 0
	}
	return nil
}

// UseVAD reports whether the parameters select VAD-gated mode.
func (p *Parameters) UseVAD() bool { return p.StepMs <= 0 }

// Mode returns the capture mode name, for logs and metrics.
func (p *Parameters) Mode() string {
	if p.UseVAD() {
		return "vad"
	}
	return "fixed-step"
}

// stepSamples returns StepMs expressed in samples.
func (p *Parameters) stepSamples() int { return p.StepMs * SampleRate / 1000 }

// lengthSamples returns LengthMs expressed in samples.
func (p *Parameters) lengthSamples() int { return p.LengthMs * SampleRate / 1000 }

// keepSamples returns KeepMs expressed in samples.
func (p *Parameters) keepSamples() int { return p.KeepMs * SampleRate / 1000 }

// newLineEvery returns the number of decoded windows between context
// refreshes in fixed-step mode.
func (p *Parameters) newLineEvery() int {
	return max(1, p.LengthMs/p.StepMs-1)
}

// options builds the per-call recognition options shared by every window.
func (p *Parameters) options(tokens []asr.Token) asr.Options {
	return asr.Options{
		Language:   p.Language,
		Translate:  p.Translate,
		Threads:    p.Threads,
		MaxTokens:  p.MaxTokens,
		AudioCtx:   p.AudioCtx,
		BeamSize:   p.BeamSize,
		Timestamps: p.Timestamps,
		NoFallback: p.NoFallback,
		Context:    tokens,
	}
}
