package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"asr": {"whisper"},
	"tts": {"piper"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("asr", cfg.ASR.Name)
	validateProviderName("tts", cfg.TTS.Name)

	if cfg.ASR.Name != "" && cfg.ASR.Model == "" {
		errs = append(errs, fmt.Errorf("asr.model is required when asr.name is set"))
	}
	if cfg.TTS.Name == "" && hasSpokenResponse(cfg.Triggers) {
		slog.Warn("triggers define spoken responses but no TTS provider is configured; responses will be logged only")
	}

	// Stream
	if cfg.Stream.LengthMs < 0 {
		errs = append(errs, fmt.Errorf("stream.length_ms %d must not be negative", cfg.Stream.LengthMs))
	}
	if cfg.Stream.StepMs > 0 && cfg.Stream.KeepMs > cfg.Stream.StepMs {
		slog.Warn("stream.keep_ms exceeds stream.step_ms and will be clamped",
			"keep_ms", cfg.Stream.KeepMs, "step_ms", cfg.Stream.StepMs)
	}
	if cfg.Stream.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("stream.max_retries %d must not be negative", cfg.Stream.MaxRetries))
	}

	// VAD
	if cfg.VAD.Threshold < 0 || cfg.VAD.Threshold > 1 {
		errs = append(errs, fmt.Errorf("vad.threshold %.2f is out of range [0, 1]", cfg.VAD.Threshold))
	}

	// Matching strategy
	if cfg.Matching != "" && !cfg.Matching.IsValid() {
		errs = append(errs, fmt.Errorf("matching %q is invalid; valid values: substring, phonetic", cfg.Matching))
	}

	// Triggers
	phrasesSeen := make(map[string]int, len(cfg.Triggers))
	for i, t := range cfg.Triggers {
		prefix := fmt.Sprintf("triggers[%d]", i)
		phrase := strings.ToLower(strings.TrimSpace(t.Phrase))
		if phrase == "" {
			errs = append(errs, fmt.Errorf("%s.phrase is required", prefix))
		} else {
			if prev, ok := phrasesSeen[phrase]; ok {
				errs = append(errs, fmt.Errorf("%s.phrase %q is a duplicate of triggers[%d]", prefix, t.Phrase, prev))
			}
			phrasesSeen[phrase] = i
		}
		if t.Action != "" && !t.Action.IsValid() {
			errs = append(errs, fmt.Errorf("%s.action %q is invalid; valid values: speak, exit", prefix, t.Action))
		}
		if t.Action == ActionSpeak && t.Response == "" {
			slog.Warn("trigger action is speak but no response text is set",
				"phrase", t.Phrase)
		}
	}

	return errors.Join(errs...)
}

// hasSpokenResponse reports whether any trigger would produce speech.
func hasSpokenResponse(triggers []TriggerConfig) bool {
	for _, t := range triggers {
		if t.Response != "" {
			return true
		}
	}
	return false
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
