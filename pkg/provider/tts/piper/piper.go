// Package piper provides a local Piper-backed TTS synthesizer. It implements
// the tts.Synthesizer interface by invoking the piper binary in --output-raw
// mode: the phrase is written to stdin and the 16-bit signed little-endian
// PCM output is collected from stdout.
//
// Piper voices declare their own sample rate (most release voices use
// 22 050 Hz); configure the provider to match the loaded model.
//
// Typical usage:
//
//	p, err := piper.New("/opt/voices/en_US-amy-medium.onnx",
//	    piper.WithBinary("/usr/local/bin/piper"),
//	    piper.WithSampleRate(22050),
//	)
//	samples, err := p.Synthesize(ctx, "Starting navigation.")
package piper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/racksdue/voice-application/pkg/audio"
	"github.com/racksdue/voice-application/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Provider)(nil)

const (
	defaultBinary     = "piper"
	defaultSampleRate = 22050
	defaultTimeout    = 30 * time.Second
)

// Option is a functional option for configuring a Piper Provider.
type Option func(*Provider)

// WithBinary sets the path to the piper executable. Defaults to "piper"
// (resolved via PATH).
func WithBinary(path string) Option {
	return func(p *Provider) { p.binary = path }
}

// WithSampleRate declares the output sample rate of the loaded voice model in
// Hz. This must match the model's own configuration; piper does not resample.
// Defaults to 22050.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithSpeaker selects a speaker ID for multi-speaker voice models. Ignored by
// single-speaker models.
func WithSpeaker(id int) Option {
	return func(p *Provider) {
		p.speaker = id
		p.hasSpeaker = true
	}
}

// WithLengthScale adjusts the speaking rate. Values above 1.0 slow speech
// down, below 1.0 speed it up. Zero keeps the model default.
func WithLengthScale(scale float64) Option {
	return func(p *Provider) { p.lengthScale = scale }
}

// WithTimeout sets the per-phrase synthesis timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

// Provider implements tts.Synthesizer by shelling out to the piper binary.
// Each Synthesize call runs a fresh process, so the provider is safe for
// concurrent use.
type Provider struct {
	binary      string
	modelPath   string
	sampleRate  int
	speaker     int
	hasSpeaker  bool
	lengthScale float64
	timeout     time.Duration
}

// New creates a Provider that synthesizes speech with the Piper voice model
// at modelPath. modelPath must be non-empty; the binary is not invoked until
// the first Synthesize call.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("piper: modelPath must not be empty")
	}
	p := &Provider{
		binary:     defaultBinary,
		modelPath:  modelPath,
		sampleRate: defaultSampleRate,
		timeout:    defaultTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// SampleRate returns the configured output sample rate in Hz.
func (p *Provider) SampleRate() int { return p.sampleRate }

// Close is a no-op; each synthesis runs its own short-lived process.
func (p *Provider) Close() error { return nil }

// Synthesize runs the piper binary over text and returns the decoded float32
// samples. An empty or whitespace-only text returns no samples and no error.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{"--model", p.modelPath, "--output-raw"}
	if p.hasSpeaker {
		args = append(args, "--speaker", strconv.Itoa(p.speaker))
	}
	if p.lengthScale > 0 {
		args = append(args, "--length_scale", strconv.FormatFloat(p.lengthScale, 'f', -1, 64))
	}

	cmd := exec.CommandContext(runCtx, p.binary, args...)
	cmd.Stdin = bytes.NewBufferString(text + "\n")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() != nil {
			return nil, fmt.Errorf("piper: synthesis timed out or cancelled: %w", runCtx.Err())
		}
		return nil, fmt.Errorf("piper: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}

	samples := audio.PCM16ToSamples(stdout.Bytes())
	if len(samples) == 0 {
		return nil, fmt.Errorf("piper: no audio produced for %q", text)
	}
	return samples, nil
}
