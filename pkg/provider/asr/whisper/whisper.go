// Package whisper provides an asr.Engine backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// The model is loaded once in New and shared across all Transcribe calls.
// Each call creates a fresh whisper context; contexts are not thread-safe but
// the model is, so a single Engine may back multiple pipelines as long as
// each pipeline serializes its own calls.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/racksdue/voice-application/pkg/provider/asr"
)

// Compile-time assertion that Engine satisfies asr.Engine.
var _ asr.Engine = (*Engine)(nil)

const defaultLanguage = "en"

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithLanguage sets the default ISO 639-1 language code used when a
// Transcribe call does not specify one. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(e *Engine) { e.language = lang }
}

// WithLogger sets the logger used for downgrade and language warnings.
// Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// Engine implements asr.Engine using the whisper.cpp Go bindings.
type Engine struct {
	model    whisperlib.Model
	language string
	log      *slog.Logger

	downgradeOnce sync.Once
	closeOnce     sync.Once
	closeErr      error
}

// New creates an Engine that loads the whisper.cpp model from the given file
// path. The caller must call Close when the engine is no longer needed.
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	e := &Engine{
		model:    model,
		language: defaultLanguage,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// IsMultilingual reports whether the loaded model supports languages other
// than English.
func (e *Engine) IsMultilingual() bool {
	return e.model.IsMultilingual()
}

// SupportsLanguage reports whether code is in the model's language table.
func (e *Engine) SupportsLanguage(code string) bool {
	for _, l := range e.model.Languages() {
		if l == code {
			return true
		}
	}
	return false
}

// Close releases the whisper model. Calling Close more than once is safe and
// returns the result of the first call.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.model.Close()
	})
	return e.closeErr
}

// Transcribe runs whisper.cpp inference over a window of 16 kHz mono float32
// samples and returns the recognized segments with their token detail.
//
// When the loaded model is monolingual, any non-English language or translate
// request is downgraded to plain English recognition; the downgrade is logged
// once per engine.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, opts asr.Options) ([]asr.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	if len(samples) == 0 {
		return nil, nil
	}

	lang := opts.Language
	if lang == "" {
		lang = e.language
	}
	translate := opts.Translate
	if !e.model.IsMultilingual() && (lang != "en" || translate) {
		e.downgradeOnce.Do(func() {
			e.log.Warn("model is monolingual, forcing English recognition",
				"requested_language", lang, "translate", translate)
		})
		lang = "en"
		translate = false
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("whisper: set language %q: %w", lang, err)
	}
	wctx.SetTranslate(translate)

	threads := opts.Threads
	if threads <= 0 {
		threads = min(4, runtime.NumCPU())
	}
	wctx.SetThreads(uint(threads))

	if opts.MaxTokens > 0 {
		wctx.SetMaxTokensPerSegment(uint(opts.MaxTokens))
	}
	if opts.AudioCtx > 0 {
		wctx.SetAudioCtx(uint(opts.AudioCtx))
	}
	if opts.BeamSize > 0 {
		wctx.SetBeamSize(opts.BeamSize)
	}
	wctx.SetTokenTimestamps(opts.Timestamps)
	if opts.NoFallback {
		wctx.SetTemperatureFallback(0)
	}

	// The bindings take the rolling context as an initial prompt string
	// rather than raw token IDs; the tokenizer re-derives the IDs.
	if prompt := contextPrompt(opts.Context); prompt != "" {
		wctx.SetInitialPrompt(prompt)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var segments []asr.Segment
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}

		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		out := asr.Segment{
			Text:        text,
			Start:       seg.Start,
			End:         seg.End,
			SpeakerTurn: seg.SpeakerTurnNext,
		}
		for _, tok := range seg.Tokens {
			if !wctx.IsText(tok) {
				continue
			}
			out.Tokens = append(out.Tokens, asr.Token{
				ID:   int32(tok.Id),
				Text: tok.Text,
			})
		}
		segments = append(segments, out)
	}

	return segments, nil
}

// contextPrompt joins the text of the rolling context tokens into a single
// prompt string for the decoder.
func contextPrompt(tokens []asr.Token) string {
	if len(tokens) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Text)
	}
	return strings.TrimSpace(b.String())
}
