package audio

import (
	"testing"
	"time"
)

func TestPlayer_QueueAndConsume(t *testing.T) {
	p := NewPlayer()
	p.Queue([]float32{1, 2, 3, 4})

	if !p.Playing() {
		t.Fatal("Playing() = false after Queue")
	}

	out := make([]float32, 3)
	n := p.ReadInto(out)
	if n != 3 {
		t.Fatalf("ReadInto returned %d, want 3", n)
	}
	if out[0] != 1 || out[1] != 2 || out[2] != 3 {
		t.Errorf("out = %v, want [1 2 3]", out)
	}

	// Second read drains the queue and zero-fills the remainder.
	n = p.ReadInto(out)
	if n != 1 {
		t.Fatalf("ReadInto returned %d, want 1", n)
	}
	if out[0] != 4 || out[1] != 0 || out[2] != 0 {
		t.Errorf("out = %v, want [4 0 0]", out)
	}
	if p.Playing() {
		t.Error("Playing() = true after queue drained")
	}
}

func TestPlayer_QueueWhilePlayingAppends(t *testing.T) {
	p := NewPlayer()
	p.Queue([]float32{1, 2})
	p.Queue([]float32{3, 4})

	out := make([]float32, 4)
	p.ReadInto(out)
	want := []float32{1, 2, 3, 4}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}
}

func TestPlayer_QueueAfterDrainRestarts(t *testing.T) {
	p := NewPlayer()
	p.Queue([]float32{1})
	p.ReadInto(make([]float32, 1))

	p.Queue([]float32{9})
	out := make([]float32, 1)
	p.ReadInto(out)
	if out[0] != 9 {
		t.Errorf("out[0] = %v, want 9 (stale samples not discarded)", out[0])
	}
}

func TestPlayer_WaitReleasedOnDrain(t *testing.T) {
	p := NewPlayer()
	p.Queue(make([]float32, 64))

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	// Consume in blocks, as a device callback would.
	go func() {
		block := make([]float32, 16)
		for p.Playing() {
			p.ReadInto(block)
			time.Sleep(time.Millisecond)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after queue drained")
	}
}

func TestPlayer_WaitNoAudioReturnsImmediately(t *testing.T) {
	p := NewPlayer()
	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked with empty queue")
	}
}

func TestPlayer_QueueEmptyIsNoop(t *testing.T) {
	p := NewPlayer()
	p.Queue(nil)
	if p.Playing() {
		t.Error("Playing() = true after queueing nothing")
	}
}

func TestRing_ReadLastReturnsMostRecent(t *testing.T) {
	r := NewRing(1000, 100) // capacity 100 samples

	r.Write([]float32{1, 2, 3, 4, 5})
	got := r.ReadLast(3) // 3 ms = 3 samples at 1 kHz
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0] != 3 || got[1] != 4 || got[2] != 5 {
		t.Errorf("got = %v, want [3 4 5]", got)
	}
}

func TestRing_OverwritesOldest(t *testing.T) {
	r := NewRing(1000, 4) // capacity 4 samples

	r.Write([]float32{1, 2, 3, 4, 5, 6})
	got := r.ReadLast(0)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	want := []float32{3, 4, 5, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got = %v, want %v", got, want)
		}
	}
}

func TestRing_ClearEmpties(t *testing.T) {
	r := NewRing(16000, 1000)
	r.Write(make([]float32, 100))
	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Len = %d after Clear, want 0", r.Len())
	}
	if got := r.ReadLast(0); len(got) != 0 {
		t.Errorf("ReadLast returned %d samples after Clear", len(got))
	}
}

func TestRing_ReadShorterThanRequested(t *testing.T) {
	r := NewRing(1000, 100)
	r.Write([]float32{1, 2})
	got := r.ReadLast(50) // 50 samples requested, 2 available
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}
