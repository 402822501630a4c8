// Package vad implements energy-based voice activity detection for float32
// PCM windows, with an optional adaptive threshold that tracks recent
// ambient-noise conditions.
package vad

import "math"

// Detect reports whether the trailing lastMs of window contains speech.
//
// The decision compares the mean absolute amplitude of the trailing lastMs
// against the mean of the whole window scaled by threshold. When freqCutoff
// is positive, a single-pole high-pass filter at that frequency is applied
// first so low-frequency rumble does not dominate the energy estimate. The
// input window is never modified.
//
// Returns false when the window is shorter than lastMs; such a window cannot
// be judged against its own trailing span.
func Detect(window []float32, sampleRate, lastMs int, threshold, freqCutoff float32) bool {
	nSamples := len(window)
	nLast := sampleRate * lastMs / 1000
	if nSamples == 0 || nLast <= 0 || nLast >= nSamples {
		return false
	}

	samples := window
	if freqCutoff > 0 {
		samples = make([]float32, nSamples)
		copy(samples, window)
		highPass(samples, freqCutoff, sampleRate)
	}

	var energyAll, energyLast float32
	for i, s := range samples {
		a := abs32(s)
		energyAll += a
		if i >= nSamples-nLast {
			energyLast += a
		}
	}
	energyAll /= float32(nSamples)
	energyLast /= float32(nLast)

	return energyLast > threshold*energyAll
}

// Energy returns the mean squared amplitude of window. Returns 0 for an
// empty window.
func Energy(window []float32) float32 {
	if len(window) == 0 {
		return 0
	}
	var sum float32
	for _, s := range window {
		sum += s * s
	}
	return sum / float32(len(window))
}

// highPass applies a single-pole high-pass filter in place.
func highPass(samples []float32, cutoff float32, sampleRate int) {
	rc := 1.0 / (2.0 * math.Pi * float64(cutoff))
	dt := 1.0 / float64(sampleRate)
	alpha := float32(dt / (rc + dt))

	y := samples[0]
	for i := 1; i < len(samples); i++ {
		y = alpha * (y + samples[i] - samples[i-1])
		samples[i] = y
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
