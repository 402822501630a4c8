// Package audio provides the capture and playback primitives for the voice
// assistant pipeline.
//
// The two primary abstractions are:
//
//   - [CaptureDevice] — a microphone-like source that continuously records into
//     a rolling buffer and lets the stream controller drain the most recent
//     span of samples.
//   - [Player] — a thread-safe append-and-consume sample queue feeding an
//     audio-output device callback.
//
// The concrete implementations ([Microphone], [Speaker]) are backed by
// miniaudio via the malgo bindings. Test code should use the in-memory
// implementations in the audio/mock package instead of real devices.
//
// All samples are 32-bit float mono PCM. The capture side records at the
// inference engine's native rate; the playback side runs at whatever rate the
// synthesizer produces.
package audio

import "sync"

// CaptureDevice is the abstraction over a continuously-recording audio input.
//
// A capture device owns a background thread (the OS audio callback) that
// appends incoming samples to an internal rolling buffer. Drain and Clear
// operate on that buffer; Pause and Resume gate the device itself.
//
// Implementations must be safe for concurrent use: Drain/Clear are called from
// the stream-controller goroutine while the audio callback keeps writing.
type CaptureDevice interface {
	// Drain copies the most recent ms milliseconds of captured audio out of the
	// rolling buffer. It returns fewer samples if less audio has been captured
	// since the last Clear; ms ≤ 0 returns everything buffered. The buffer
	// itself is not consumed; call Clear once the samples have been handed to
	// inference.
	Drain(ms int) []float32

	// Clear empties the rolling buffer. Audio captured before Clear is never
	// observed by a subsequent Drain.
	Clear()

	// Pause stops the device from recording. The rolling buffer keeps its
	// contents until Clear is called.
	Pause() error

	// Resume restarts recording after a Pause.
	Resume() error

	// PollEvents performs a non-blocking check of the device's event queue.
	// It returns false when an external quit has been requested, signalling the
	// driving loop to wind down.
	PollEvents() bool

	// Close releases the device. Close is idempotent.
	Close() error
}

// Ring is a fixed-capacity rolling sample buffer. The audio callback writes
// into it; readers copy the most recent span out. Once full, the oldest
// samples are overwritten.
//
// All methods are safe for concurrent use.
type Ring struct {
	mu  sync.Mutex
	buf []float32
	pos int // next write index
	n   int // number of valid samples, ≤ len(buf)

	sampleRate int
}

// NewRing creates a Ring holding up to lenMs milliseconds of audio at the
// given sample rate.
func NewRing(sampleRate, lenMs int) *Ring {
	capacity := sampleRate * lenMs / 1000
	if capacity <= 0 {
		capacity = sampleRate
	}
	return &Ring{
		buf:        make([]float32, capacity),
		sampleRate: sampleRate,
	}
}

// Write appends samples, overwriting the oldest data once the ring is full.
func (r *Ring) Write(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range samples {
		r.buf[r.pos] = s
		r.pos = (r.pos + 1) % len(r.buf)
	}
	r.n += len(samples)
	if r.n > len(r.buf) {
		r.n = len(r.buf)
	}
}

// ReadLast copies out the most recent ms milliseconds of audio. If less audio
// is buffered, everything available is returned. ms ≤ 0 returns the whole
// buffer contents.
func (r *Ring) ReadLast(ms int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := r.n
	if ms > 0 {
		if n := r.sampleRate * ms / 1000; n < want {
			want = n
		}
	}
	out := make([]float32, want)
	start := (r.pos - want + len(r.buf)) % len(r.buf)
	for i := 0; i < want; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// Clear discards all buffered samples.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pos = 0
	r.n = 0
}

// Len returns the number of valid samples currently buffered.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}
