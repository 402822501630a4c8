// Package mock provides a test double for the asr.Engine interface.
//
// Pre-populate Results with the segment slices (or errors) that successive
// Transcribe calls should return, then inspect TranscribeCalls to verify what
// audio and options the caller delivered.
//
// Example:
//
//	eng := &mock.Engine{
//	    Results: []mock.Result{
//	        {Segments: []asr.Segment{{Text: "start navigation"}}},
//	    },
//	}
//	segs, err := eng.Transcribe(ctx, window, asr.Options{})
package mock

import (
	"context"
	"sync"

	"github.com/racksdue/voice-application/pkg/provider/asr"
)

// Ensure Engine implements asr.Engine at compile time.
var _ asr.Engine = (*Engine)(nil)

// Result is the scripted outcome of one Transcribe call.
type Result struct {
	Segments []asr.Segment
	Err      error
}

// TranscribeCall records a single invocation of Engine.Transcribe.
type TranscribeCall struct {
	// Samples is a copy of the audio window passed to Transcribe.
	Samples []float32
	// Opts is the Options value passed to Transcribe.
	Opts asr.Options
}

// Engine is a mock implementation of asr.Engine. The zero value returns no
// segments and no error from every Transcribe call.
type Engine struct {
	mu sync.Mutex

	// Results are consumed one per Transcribe call, in order. Once exhausted,
	// further calls return (nil, nil) unless DefaultErr is set.
	Results []Result

	// DefaultErr, if non-nil, is returned once Results is exhausted.
	DefaultErr error

	// Multilingual is the value returned by IsMultilingual.
	Multilingual bool

	// Languages is the set accepted by SupportsLanguage. When nil, every
	// code is accepted.
	Languages []string

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall

	// CloseCalls counts invocations of Close.
	CloseCalls int

	next int
}

// Transcribe records the call and returns the next scripted Result. It also
// honours ctx cancellation so retry loops can be tested against it.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, opts asr.Options) ([]asr.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cp := make([]float32, len(samples))
	copy(cp, samples)
	e.TranscribeCalls = append(e.TranscribeCalls, TranscribeCall{Samples: cp, Opts: opts})

	if e.next < len(e.Results) {
		r := e.Results[e.next]
		e.next++
		return r.Segments, r.Err
	}
	if e.DefaultErr != nil {
		return nil, e.DefaultErr
	}
	return nil, nil
}

// IsMultilingual returns the configured Multilingual flag.
func (e *Engine) IsMultilingual() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Multilingual
}

// SupportsLanguage reports whether code is in Languages, or true when no
// Languages were configured.
func (e *Engine) SupportsLanguage(code string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Languages == nil {
		return true
	}
	for _, l := range e.Languages {
		if l == code {
			return true
		}
	}
	return false
}

// Close counts the call and returns nil.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CloseCalls++
	return nil
}

// Reset clears recorded calls and rewinds the scripted Results. Thread-safe.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.TranscribeCalls = nil
	e.CloseCalls = 0
	e.next = 0
}
