// Package config provides the configuration schema, loader, and provider
// registry for the voice assistant.
package config

import (
	"strings"

	"github.com/racksdue/voice-application/internal/stream"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Action is what the assistant does when a trigger phrase is heard.
type Action string

const (
	// ActionSpeak speaks the trigger's response text and resumes listening.
	ActionSpeak Action = "speak"

	// ActionExit speaks the response (if any) and shuts the assistant down.
	ActionExit Action = "exit"
)

// IsValid reports whether a is a recognised action.
func (a Action) IsValid() bool {
	return a == ActionSpeak || a == ActionExit
}

// Matching selects the trigger phrase matching strategy.
type Matching string

const (
	// MatchingSubstring matches case-insensitive substrings.
	MatchingSubstring Matching = "substring"

	// MatchingPhonetic additionally tolerates recognition misspellings.
	MatchingPhonetic Matching = "phonetic"
)

// IsValid reports whether m is a recognised matching strategy.
func (m Matching) IsValid() bool {
	return m == MatchingSubstring || m == MatchingPhonetic
}

// Config is the root configuration structure, typically loaded from a YAML
// file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Stream   StreamConfig    `yaml:"stream"`
	VAD      VADConfig       `yaml:"vad"`
	Audio    AudioConfig     `yaml:"audio"`
	ASR      ProviderEntry   `yaml:"asr"`
	TTS      ProviderEntry   `yaml:"tts"`
	Matching Matching        `yaml:"matching"`
	Triggers []TriggerConfig `yaml:"triggers"`
}

// ServerConfig holds logging and observability settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address the Prometheus metrics endpoint
	// listens on (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// StreamConfig tunes the capture-and-transcribe loop. Zero values select
// the defaults from [stream.DefaultParameters]; explicit values override
// them field by field.
type StreamConfig struct {
	// StepMs is the interval between inference windows. Set to -1 for
	// VAD-gated mode.
	StepMs int `yaml:"step_ms"`

	// LengthMs is the total window length submitted to inference.
	LengthMs int `yaml:"length_ms"`

	// KeepMs is the audio carried between consecutive windows.
	KeepMs int `yaml:"keep_ms"`

	// Threads is the CPU thread count for inference. Zero picks a default.
	Threads int `yaml:"threads"`

	// MaxTokens caps tokens per decoded segment.
	MaxTokens int `yaml:"max_tokens"`

	// AudioCtx overrides the encoder audio context size.
	AudioCtx int `yaml:"audio_ctx"`

	// BeamSize sets the decoder beam width. Zero selects greedy decoding.
	BeamSize int `yaml:"beam_size"`

	// MaxRetries bounds inference attempts per window.
	MaxRetries int `yaml:"max_retries"`

	// MaxContextTokens bounds the rolling decoding context. Set to -1 to
	// disable cross-window context.
	MaxContextTokens int `yaml:"max_context_tokens"`

	// Language is the ISO 639-1 recognition language.
	Language string `yaml:"language"`

	// Translate requests translation of recognition output to English.
	Translate bool `yaml:"translate"`

	// NoFallback disables the decoder's temperature fallback.
	NoFallback bool `yaml:"no_fallback"`

	// Timestamps enables per-segment timestamps.
	Timestamps bool `yaml:"timestamps"`
}

// VADConfig tunes voice activity detection.
type VADConfig struct {
	// Adaptive enables the self-tuning detector. When false a static
	// threshold test is used.
	Adaptive bool `yaml:"adaptive"`

	// Threshold is the energy threshold in (0, 1]. Zero selects the
	// default.
	Threshold float32 `yaml:"threshold"`

	// FreqCutoff is the high-pass cutoff in Hz applied before the energy
	// test. Negative disables the filter.
	FreqCutoff float32 `yaml:"freq_cutoff"`

	// EnergyFloor is the minimum window energy recorded into the adaptive
	// detector's history.
	EnergyFloor float32 `yaml:"energy_floor"`
}

// AudioConfig selects the capture and playback devices.
type AudioConfig struct {
	// CaptureDevice is the capture device index. Negative selects the
	// system default.
	CaptureDevice int `yaml:"capture_device"`

	// BufferMs is the capture ring buffer length. Zero selects 30 seconds.
	BufferMs int `yaml:"buffer_ms"`
}

// ProviderEntry is the common configuration block shared by the speech
// providers. The Name field is used to look up the constructor in the
// [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g.,
	// "whisper", "piper").
	Name string `yaml:"name"`

	// Model is the path to the provider's model file.
	Model string `yaml:"model"`

	// Binary is the path to an external binary for subprocess-based
	// providers. Empty falls back to a PATH lookup of the default name.
	Binary string `yaml:"binary"`

	// SampleRate is the provider's output sample rate in Hz, for providers
	// whose rate is a property of the model.
	SampleRate int `yaml:"sample_rate"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// TriggerConfig binds a spoken phrase to an assistant action.
type TriggerConfig struct {
	// Phrase is the phrase to listen for, matched per the configured
	// Matching strategy.
	Phrase string `yaml:"phrase"`

	// Response is the text spoken back when the phrase is heard. May be
	// empty for silent actions.
	Response string `yaml:"response"`

	// Action selects what happens on a match. Empty defaults to "speak".
	Action Action `yaml:"action"`
}

// StreamParameters maps the stream and VAD sections onto a validated
// [stream.Parameters], applying defaults for unset fields. The sentinel
// value -1 means "explicitly off" for fields whose zero value selects a
// default.
func (c *Config) StreamParameters() stream.Parameters {
	p := stream.DefaultParameters()

	if c.Stream.StepMs != 0 {
		p.StepMs = max(c.Stream.StepMs, 0)
	}
	if c.Stream.LengthMs != 0 {
		p.LengthMs = c.Stream.LengthMs
	}
	if c.Stream.KeepMs != 0 {
		p.KeepMs = max(c.Stream.KeepMs, 0)
	}
	if c.Stream.Threads != 0 {
		p.Threads = c.Stream.Threads
	}
	if c.Stream.MaxTokens != 0 {
		p.MaxTokens = max(c.Stream.MaxTokens, 0)
	}
	if c.Stream.AudioCtx != 0 {
		p.AudioCtx = c.Stream.AudioCtx
	}
	if c.Stream.BeamSize != 0 {
		p.BeamSize = c.Stream.BeamSize
	}
	if c.Stream.MaxRetries != 0 {
		p.MaxRetries = c.Stream.MaxRetries
	}
	if c.Stream.MaxContextTokens != 0 {
		p.MaxContextTokens = max(c.Stream.MaxContextTokens, 0)
	}
	if c.Stream.Language != "" {
		p.Language = c.Stream.Language
	}
	p.Translate = c.Stream.Translate
	p.NoFallback = c.Stream.NoFallback
	p.Timestamps = c.Stream.Timestamps

	p.AdaptiveVAD = c.VAD.Adaptive
	if c.VAD.Threshold != 0 {
		p.VADThreshold = c.VAD.Threshold
	}
	if c.VAD.FreqCutoff != 0 {
		p.FreqCutoff = max(c.VAD.FreqCutoff, 0)
	}
	if c.VAD.EnergyFloor != 0 {
		p.EnergyFloor = c.VAD.EnergyFloor
	}

	p.CaptureDevice = c.Audio.CaptureDevice

	return p
}

// TriggerPhrases returns the configured phrases in declaration order.
func (c *Config) TriggerPhrases() []string {
	phrases := make([]string, len(c.Triggers))
	for i, t := range c.Triggers {
		phrases[i] = t.Phrase
	}
	return phrases
}

// TriggerFor returns the trigger config for a matched phrase. Matching is
// case-insensitive because matchers report phrases in lowered form.
func (c *Config) TriggerFor(phrase string) (TriggerConfig, bool) {
	for _, t := range c.Triggers {
		if strings.EqualFold(t.Phrase, phrase) {
			return t, true
		}
	}
	return TriggerConfig{}, false
}
