// Package tts defines the Synthesizer interface for text-to-speech backends.
//
// A synthesizer turns a response phrase into float32 PCM samples ready for
// the playback buffer. Synthesis happens while capture is paused, so the
// interface is batch rather than streaming: one phrase in, one sample buffer
// out.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Synthesizer is the abstraction over any TTS backend.
type Synthesizer interface {
	// Synthesize renders text as mono float32 PCM samples at the rate
	// reported by SampleRate. The returned samples are normalized by the
	// caller before playback; implementations should not clip.
	//
	// Returns an error if synthesis fails or ctx is cancelled. An empty text
	// returns an empty sample slice and no error.
	Synthesize(ctx context.Context, text string) ([]float32, error)

	// SampleRate returns the output sample rate in Hz of the synthesized
	// audio. The playback device is configured to match.
	SampleRate() int

	// Close releases all associated resources. Calling Close more than once
	// is safe and returns nil.
	Close() error
}
