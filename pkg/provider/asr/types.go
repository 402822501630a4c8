package asr

import "time"

// SampleRate is the audio sample rate in Hz that engines expect. Whisper
// models are trained on 16 kHz mono audio; capture and playback layers
// resample or configure devices accordingly.
const SampleRate = 16000

// Token is a single recognized token with its model vocabulary ID. Tokens
// from prior windows are fed back through Options.Context so the model keeps
// sentence continuity across window boundaries.
type Token struct {
	ID   int32
	Text string
}

// Segment represents one recognized span of speech within a window.
type Segment struct {
	// Text is the recognized speech content, whitespace-trimmed.
	Text string

	// Start and End are offsets relative to the beginning of the window.
	Start time.Duration
	End   time.Duration

	// SpeakerTurn reports a speaker change after this segment. Only set by
	// engines running a diarization-capable model.
	SpeakerTurn bool

	// Tokens contains the per-token detail for this segment. Used to build
	// the rolling context for subsequent windows.
	Tokens []Token
}

// Options carries per-call recognition settings. The zero value is usable;
// engines apply their own defaults for zero fields.
type Options struct {
	// Language is the ISO 639-1 language code for recognition (e.g. "en",
	// "de"). Ignored by monolingual models.
	Language string

	// Translate requests translation of the recognition output to English.
	// Ignored by monolingual models.
	Translate bool

	// Threads is the number of CPU threads to use for inference. Zero lets
	// the engine pick a default based on runtime.NumCPU.
	Threads int

	// MaxTokens caps the number of tokens per segment. Zero means no cap.
	MaxTokens int

	// AudioCtx overrides the encoder audio context size. Zero keeps the
	// model default. Smaller values trade accuracy for speed on short
	// windows.
	AudioCtx int

	// BeamSize sets the beam search width. Zero selects greedy decoding.
	BeamSize int

	// Timestamps enables per-segment timestamp output.
	Timestamps bool

	// NoFallback disables the decoder's temperature fallback. Faster and
	// more deterministic on short streaming windows, at some accuracy cost
	// on difficult audio.
	NoFallback bool

	// Context is the rolling token context accumulated from prior windows.
	// Engines use it to prime decoding so utterances split across window
	// boundaries stay coherent.
	Context []Token
}
