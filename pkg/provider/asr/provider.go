// Package asr defines the Engine interface for automatic speech recognition
// backends.
//
// An ASR engine performs batch transcription: it accepts a window of float32
// PCM samples and returns the recognized segments. The streaming behaviour of
// the application (windowing, overlap, context carry-over) lives above this
// interface in internal/stream; engines only need to transcribe one window at
// a time.
//
// Implementations need not be safe for concurrent use. The streaming layer
// serializes all Transcribe calls on a single goroutine.
package asr

import "context"

// Engine is the abstraction over any batch speech recognition backend.
type Engine interface {
	// Transcribe runs recognition over a window of mono float32 PCM samples
	// at the engine's expected sample rate and returns the recognized
	// segments in order. An empty slice (with nil error) means the window
	// contained no recognizable speech.
	//
	// Returns an error if inference fails or ctx is cancelled. A failed call
	// leaves the engine usable; callers may retry with the same window.
	Transcribe(ctx context.Context, samples []float32, opts Options) ([]Segment, error)

	// IsMultilingual reports whether the loaded model supports languages
	// other than English. Engines backed by a monolingual model ignore the
	// Language and Translate options.
	IsMultilingual() bool

	// SupportsLanguage reports whether the engine recognizes the given ISO
	// 639-1 language code. Used to validate configuration before streaming
	// starts.
	SupportsLanguage(code string) bool

	// Close releases the model and all associated resources. After Close
	// returns, Transcribe must not be called. Calling Close more than once
	// is safe and returns nil.
	Close() error
}
