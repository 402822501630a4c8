// Package mock provides in-memory audio implementations for tests: a
// scriptable capture device and a null speaker sink. No real devices are
// opened.
package mock

import (
	"sync"

	"github.com/racksdue/voice-application/pkg/audio"
)

// Compile-time assertion that Capture implements audio.CaptureDevice.
var _ audio.CaptureDevice = (*Capture)(nil)

// Capture is a scriptable in-memory [audio.CaptureDevice]. Tests feed samples
// in with [Capture.Feed]; the code under test drains them exactly as it would
// from a real rolling buffer.
type Capture struct {
	mu         sync.Mutex
	sampleRate int
	buf        []float32
	paused     bool
	quit       bool

	// Call counters for assertions.
	DrainCalls  int
	ClearCalls  int
	PauseCalls  int
	ResumeCalls int
}

// NewCapture creates an empty capture device at the given sample rate.
func NewCapture(sampleRate int) *Capture {
	return &Capture{sampleRate: sampleRate}
}

// Feed appends samples to the rolling buffer, as the OS audio callback would.
// Samples fed while paused are discarded.
func (c *Capture) Feed(samples []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return
	}
	c.buf = append(c.buf, samples...)
}

// FeedMillis feeds ms milliseconds of constant-value audio. Convenient for
// building windows of a known energy level.
func (c *Capture) FeedMillis(ms int, value float32) {
	n := c.sampleRate * ms / 1000
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = value
	}
	c.Feed(samples)
}

// Drain returns the most recent ms milliseconds of buffered audio without
// consuming it, mirroring the real device's rolling-buffer semantics.
func (c *Capture) Drain(ms int) []float32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.DrainCalls++
	want := len(c.buf)
	if ms > 0 {
		if n := c.sampleRate * ms / 1000; n < want {
			want = n
		}
	}
	out := make([]float32, want)
	copy(out, c.buf[len(c.buf)-want:])
	return out
}

// Clear empties the rolling buffer.
func (c *Capture) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ClearCalls++
	c.buf = c.buf[:0]
}

// Buffered returns the number of samples currently held.
func (c *Capture) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// Pause marks the device paused; fed samples are discarded until Resume.
func (c *Capture) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PauseCalls++
	c.paused = true
	return nil
}

// Resume unpauses the device.
func (c *Capture) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ResumeCalls++
	c.paused = false
	return nil
}

// PollEvents returns false once RequestStop has been called.
func (c *Capture) PollEvents() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.quit
}

// RequestStop makes all subsequent PollEvents calls return false.
func (c *Capture) RequestStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quit = true
}

// Close is a no-op.
func (c *Capture) Close() error { return nil }
