package vad

import "slices"

const (
	defaultInitialThreshold = 0.6
	defaultMinThreshold     = 0.3
	defaultMaxThreshold     = 0.8
	defaultHistorySize      = 50
	defaultAdaptationRate   = 0.1

	// minHistoryForRetune is the number of recorded energies required before
	// the threshold starts adapting. Below this the quartile estimate is too
	// noisy to be useful.
	minHistoryForRetune = 10

	// quartileEpsilon keeps the interquartile normalization finite when all
	// recorded energies are identical.
	quartileEpsilon = 1e-4
)

// AdaptiveOption is a functional option for configuring an Adaptive detector.
type AdaptiveOption func(*Adaptive)

// WithBounds sets the clamp range for the adapted threshold. Defaults to
// [0.3, 0.8].
func WithBounds(minThreshold, maxThreshold float32) AdaptiveOption {
	return func(a *Adaptive) {
		a.minThreshold = minThreshold
		a.maxThreshold = maxThreshold
	}
}

// WithHistorySize sets the capacity of the rolling energy history. Defaults
// to 50.
func WithHistorySize(n int) AdaptiveOption {
	return func(a *Adaptive) { a.historySize = n }
}

// WithAdaptationRate sets the EMA rate applied when moving the threshold
// toward its retuned target. Defaults to 0.1.
func WithAdaptationRate(rate float32) AdaptiveOption {
	return func(a *Adaptive) { a.adaptationRate = rate }
}

// Adaptive is a voice activity detector whose threshold self-tunes from the
// energy statistics of recent windows. It is not safe for concurrent use;
// the streaming layer calls Detect from a single goroutine.
type Adaptive struct {
	threshold      float32
	minThreshold   float32
	maxThreshold   float32
	history        []float32
	historySize    int
	adaptationRate float32
}

// NewAdaptive creates an Adaptive detector starting at initialThreshold.
// A non-positive initialThreshold selects the default of 0.6.
func NewAdaptive(initialThreshold float32, opts ...AdaptiveOption) *Adaptive {
	if initialThreshold <= 0 {
		initialThreshold = defaultInitialThreshold
	}
	a := &Adaptive{
		threshold:      initialThreshold,
		minThreshold:   defaultMinThreshold,
		maxThreshold:   defaultMaxThreshold,
		historySize:    defaultHistorySize,
		adaptationRate: defaultAdaptationRate,
	}
	for _, o := range opts {
		o(a)
	}
	a.history = make([]float32, 0, a.historySize)
	return a
}

// Detect classifies the trailing msWindow of window as speech or silence
// using the current threshold, then records the window's energy and retunes
// the threshold for subsequent calls. Windows whose energy does not exceed
// energyFloor are treated as dead air and excluded from adaptation.
func (a *Adaptive) Detect(window []float32, sampleRate, msWindow int, freqCutoff, energyFloor float32) bool {
	isSpeech := Detect(window, sampleRate, msWindow, a.threshold, freqCutoff)

	if energy := Energy(window); energy > energyFloor {
		a.history = append(a.history, energy)
		if len(a.history) > a.historySize {
			a.history = a.history[1:]
		}
		a.retune()
	}

	return isSpeech
}

// Threshold returns the current decision threshold.
func (a *Adaptive) Threshold() float32 { return a.threshold }

// retune moves the threshold toward a target derived from the quartile
// spread of the recent energy history. A wide spread between the first
// quartile and the median indicates volatile ambient noise and pushes the
// threshold up; a narrow spread relaxes it.
func (a *Adaptive) retune() {
	if len(a.history) < minHistoryForRetune {
		return
	}

	sorted := slices.Clone(a.history)
	slices.Sort(sorted)

	n := len(sorted)
	median := sorted[n/2]
	q1 := sorted[n/4]
	q3 := sorted[3*n/4]

	target := 0.5 + (median-q1)/(q3-q1+quartileEpsilon)*0.3

	a.threshold = a.threshold*(1-a.adaptationRate) + target*a.adaptationRate
	a.threshold = max(a.minThreshold, min(a.maxThreshold, a.threshold))
}
