package stream

import (
	"context"
	"log/slog"
	"time"

	"github.com/racksdue/voice-application/internal/observe"
	"github.com/racksdue/voice-application/internal/resilience"
	"github.com/racksdue/voice-application/internal/trigger"
	"github.com/racksdue/voice-application/pkg/provider/asr"
)

// invoker wraps the recognition engine with the per-window retry policy and
// per-segment trigger matching.
type invoker struct {
	engine  asr.Engine
	retries int
	backoff resilience.BackoffFunc
	metrics *observe.Metrics
	log     *slog.Logger
}

func newInvoker(engine asr.Engine, p Parameters, m *observe.Metrics, log *slog.Logger) *invoker {
	return &invoker{
		engine:  engine,
		retries: p.MaxRetries,
		backoff: resilience.LinearBackoff(defaultRetryBackoff),
		metrics: m,
		log:     log,
	}
}

// transcribe runs the engine over one window with bounded retries. On
// success it scans the segments in order against matcher (when non-nil) and
// returns the first matching phrase. A window whose retry budget is spent is
// reported as failed; the caller drops it and moves on — no window is ever
// retried across cycles.
func (iv *invoker) transcribe(ctx context.Context, window []float32, opts asr.Options, matcher *trigger.Matcher) ([]asr.Segment, string, error) {
	var segments []asr.Segment

	start := time.Now()
	attempts := 0
	err := resilience.Retry(ctx, iv.retries, iv.backoff, func() error {
		attempts++
		var ferr error
		segments, ferr = iv.engine.Transcribe(ctx, window, opts)
		return ferr
	})
	iv.metrics.InferenceDuration.Record(ctx, time.Since(start).Seconds())
	if attempts > 1 {
		iv.metrics.InferenceRetries.Add(ctx, int64(attempts-1))
	}

	if err != nil {
		iv.metrics.InferenceFailures.Add(ctx, 1)
		iv.log.Warn("window dropped after retry budget spent",
			"attempts", attempts, "error", err)
		return nil, "", err
	}

	if matcher != nil {
		// Per-segment short-circuit: the first segment containing a trigger
		// phrase ends the scan.
		for _, seg := range segments {
			if phrase, ok := matcher.Match(seg.Text); ok {
				iv.metrics.RecordTriggerMatch(ctx, phrase)
				return segments, phrase, nil
			}
		}
	}

	return segments, "", nil
}
