package audio

import (
	"math"
	"testing"
)

func TestBytesToSamplesRoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 1, -1, 0.123}
	got := BytesToSamples(SamplesToBytes(in))
	if len(got) != len(in) {
		t.Fatalf("len = %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], in[i])
		}
	}
}

func TestBytesToSamplesTruncatesPartial(t *testing.T) {
	b := SamplesToBytes([]float32{1, 2})
	got := BytesToSamples(b[:len(b)-1])
	if len(got) != 1 {
		t.Errorf("len = %d, want 1", len(got))
	}
}

func TestPCM16ToSamples(t *testing.T) {
	// int16 LE: 0, 32767, -32768
	b := []byte{0, 0, 0xFF, 0x7F, 0x00, 0x80}
	got := PCM16ToSamples(b)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0] != 0 {
		t.Errorf("got[0] = %v, want 0", got[0])
	}
	if math.Abs(float64(got[1])-32767.0/32768.0) > 1e-6 {
		t.Errorf("got[1] = %v, want ~0.99997", got[1])
	}
	if got[2] != -1 {
		t.Errorf("got[2] = %v, want -1", got[2])
	}
}

func TestNormalizePeak(t *testing.T) {
	s := []float32{0.1, -0.5, 0.25}
	NormalizePeak(s, 0.95)
	if math.Abs(float64(s[1])+0.95) > 1e-6 {
		t.Errorf("peak = %v, want -0.95", s[1])
	}
	if math.Abs(float64(s[0])-0.19) > 1e-6 {
		t.Errorf("s[0] = %v, want 0.19", s[0])
	}
}

func TestNormalizePeakSilence(t *testing.T) {
	s := []float32{0, 0, 0}
	NormalizePeak(s, 0.95)
	for i, v := range s {
		if v != 0 {
			t.Errorf("s[%d] = %v, want 0", i, v)
		}
	}
}
