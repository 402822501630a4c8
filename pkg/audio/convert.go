package audio

import (
	"encoding/binary"
	"math"
)

// BytesToSamples reinterprets little-endian 32-bit float PCM bytes as a
// []float32 sample slice. Trailing bytes that do not form a whole sample are
// dropped.
func BytesToSamples(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// SamplesToBytes encodes float32 samples as little-endian 32-bit float PCM
// bytes, the wire format of an F32 audio device.
func SamplesToBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], math.Float32bits(s))
	}
	return out
}

// PCM16ToSamples converts little-endian signed 16-bit PCM bytes to float32
// samples in [-1, 1]. Used for synthesizers that emit 16-bit output.
func PCM16ToSamples(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
		out[i] = float32(v) / 32768.0
	}
	return out
}

// NormalizePeak scales samples in place so that the loudest sample reaches
// peak (e.g. 0.95). Silent input is left untouched. Returns the same slice for
// chaining.
func NormalizePeak(samples []float32, peak float32) []float32 {
	var max float32
	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > max {
			max = a
		}
	}
	if max == 0 {
		return samples
	}
	scale := peak / max
	for i := range samples {
		samples[i] *= scale
	}
	return samples
}
