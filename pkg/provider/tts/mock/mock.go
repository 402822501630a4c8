// Package mock provides a test double for the tts.Synthesizer interface.
//
// By default every Synthesize call returns a short constant-amplitude sample
// buffer, which is enough for playback plumbing tests. Set Samples or Err to
// script specific outcomes, and inspect SynthesizeCalls to verify what text
// was spoken.
package mock

import (
	"context"
	"sync"

	"github.com/racksdue/voice-application/pkg/provider/tts"
)

// Ensure Synthesizer implements tts.Synthesizer at compile time.
var _ tts.Synthesizer = (*Synthesizer)(nil)

// Synthesizer is a mock implementation of tts.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// Samples is returned from every Synthesize call. If nil, a 160-sample
	// buffer of amplitude 0.5 is returned instead.
	Samples []float32

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// Rate is the value returned by SampleRate. Zero defaults to 22050.
	Rate int

	// SynthesizeCalls records the text of every Synthesize call.
	SynthesizeCalls []string

	// CloseCalls counts invocations of Close.
	CloseCalls int
}

// Synthesize records the call and returns the scripted Samples or Err.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.SynthesizeCalls = append(s.SynthesizeCalls, text)

	if s.Err != nil {
		return nil, s.Err
	}
	if s.Samples != nil {
		out := make([]float32, len(s.Samples))
		copy(out, s.Samples)
		return out, nil
	}
	out := make([]float32, 160)
	for i := range out {
		out[i] = 0.5
	}
	return out, nil
}

// SampleRate returns the configured Rate, defaulting to 22050.
func (s *Synthesizer) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Rate == 0 {
		return 22050
	}
	return s.Rate
}

// Close counts the call and returns nil.
func (s *Synthesizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
	return nil
}

// Reset clears all recorded calls. Thread-safe.
func (s *Synthesizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SynthesizeCalls = nil
	s.CloseCalls = 0
}
