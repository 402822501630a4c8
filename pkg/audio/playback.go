package audio

import "sync"

// Player is a thread-safe append-and-consume sample queue feeding an
// audio-output device callback.
//
// The producer side calls [Player.Queue] to append synthesized samples and
// [Player.Wait] to block until playback has drained. The consumer side — the
// OS audio callback — calls [Player.ReadInto] to pull the next block of
// samples, receiving silence once the queue is empty. The callback never
// blocks waiting on the producer.
type Player struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buf     []float32
	pos     int
	playing bool
}

// NewPlayer creates an empty Player.
func NewPlayer() *Player {
	p := &Player{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Queue appends samples for playback. If nothing is currently playing the
// queue is restarted from the new samples; otherwise they are appended after
// the pending audio.
func (p *Player) Queue(samples []float32) {
	if len(samples) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing {
		p.buf = append(p.buf[:0], samples...)
		p.pos = 0
	} else {
		p.buf = append(p.buf, samples...)
	}
	p.playing = true
}

// Playing reports whether queued audio remains to be consumed.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Wait blocks until all queued audio has been consumed by the device
// callback. Returns immediately if nothing is playing.
func (p *Player) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.playing {
		p.cond.Wait()
	}
}

// ReadInto fills out with the next queued samples, zero-filling whatever the
// queue cannot cover. It returns the number of real samples written. When the
// queue drains, waiters blocked in [Player.Wait] are released.
//
// ReadInto is intended to be called from the audio device callback and never
// blocks.
func (p *Player) ReadInto(out []float32) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := copy(out, p.buf[p.pos:])
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	p.pos += n

	if p.playing && p.pos >= len(p.buf) {
		p.playing = false
		p.buf = p.buf[:0]
		p.pos = 0
		p.cond.Broadcast()
	}
	return n
}
