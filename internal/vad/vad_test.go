package vad

import (
	"math"
	"math/rand"
	"testing"
)

// toneTail returns a window that is silent except for a sine tone over the
// trailing tailMs milliseconds.
func toneTail(sampleRate, totalMs, tailMs int, amplitude float32) []float32 {
	n := sampleRate * totalMs / 1000
	tail := sampleRate * tailMs / 1000
	w := make([]float32, n)
	for i := n - tail; i < n; i++ {
		w[i] = amplitude * float32(math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}
	return w
}

func TestDetect_SpeechInTail(t *testing.T) {
	w := toneTail(16000, 3000, 1000, 0.8)
	if !Detect(w, 16000, 1000, 0.6, 100) {
		t.Error("Detect = false for loud tail, want true")
	}
}

func TestDetect_UniformNoiseIsNotSpeech(t *testing.T) {
	// Tail energy roughly equals whole-window energy, so it cannot exceed
	// threshold times the whole at threshold > 1 equivalents; with uniform
	// content the ratio hovers around 1 and stays below 0.6 only for quiet
	// tails, so use a tail quieter than the head.
	n := 16000 * 3
	w := make([]float32, n)
	rng := rand.New(rand.NewSource(1))
	for i := range w {
		amp := float32(0.5)
		if i >= n-16000 {
			amp = 0.05
		}
		w[i] = amp * (rng.Float32()*2 - 1)
	}
	if Detect(w, 16000, 1000, 0.6, 100) {
		t.Error("Detect = true for quiet tail, want false")
	}
}

func TestDetect_WindowShorterThanSpan(t *testing.T) {
	w := make([]float32, 100)
	if Detect(w, 16000, 1000, 0.6, 100) {
		t.Error("Detect = true for window shorter than the trailing span")
	}
}

func TestDetect_DoesNotModifyInput(t *testing.T) {
	w := toneTail(16000, 2000, 500, 0.5)
	before := make([]float32, len(w))
	copy(before, w)
	Detect(w, 16000, 250, 0.6, 100)
	for i := range w {
		if w[i] != before[i] {
			t.Fatalf("sample %d modified by Detect", i)
		}
	}
}

func TestEnergy(t *testing.T) {
	if got := Energy(nil); got != 0 {
		t.Errorf("Energy(nil) = %v, want 0", got)
	}
	if got := Energy([]float32{0.5, -0.5}); math.Abs(float64(got)-0.25) > 1e-6 {
		t.Errorf("Energy = %v, want 0.25", got)
	}
}

func TestAdaptive_ThresholdStaysBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	a := NewAdaptive(0.6)

	for i := 0; i < 500; i++ {
		// Wildly varying energies, including spikes.
		amp := rng.Float32() * 2
		w := make([]float32, 16000)
		for j := range w {
			w[j] = amp * (rng.Float32()*2 - 1)
		}
		a.Detect(w, 16000, 100, 100, 1e-4)

		th := a.Threshold()
		if th < 0.3 || th > 0.8 {
			t.Fatalf("threshold = %v after %d windows, want within [0.3, 0.8]", th, i+1)
		}
	}
}

func TestAdaptive_NoRetuneBelowMinHistory(t *testing.T) {
	a := NewAdaptive(0.6)
	w := make([]float32, 1600)
	for i := range w {
		w[i] = 0.7
	}
	for i := 0; i < minHistoryForRetune-1; i++ {
		a.Detect(w, 16000, 50, 0, 1e-4)
	}
	if got := a.Threshold(); got != 0.6 {
		t.Errorf("threshold = %v before enough history, want unchanged 0.6", got)
	}
}

func TestAdaptive_FloorExcludesDeadAir(t *testing.T) {
	a := NewAdaptive(0.6)
	quiet := make([]float32, 1600) // all zeros, energy 0
	for i := 0; i < 100; i++ {
		a.Detect(quiet, 16000, 50, 0, 1e-4)
	}
	if got := a.Threshold(); got != 0.6 {
		t.Errorf("threshold = %v after silent windows, want unchanged 0.6", got)
	}
}

func TestAdaptive_DefaultInitialThreshold(t *testing.T) {
	a := NewAdaptive(0)
	if got := a.Threshold(); got != defaultInitialThreshold {
		t.Errorf("Threshold = %v, want %v", got, defaultInitialThreshold)
	}
}
