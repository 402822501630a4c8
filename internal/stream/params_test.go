package stream

import "testing"

func TestNormalize_ClampsKeepAndLength(t *testing.T) {
	p := DefaultParameters()
	p.StepMs = 3000
	p.KeepMs = 5000
	p.LengthMs = 1000

	if err := p.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p.KeepMs != 3000 {
		t.Errorf("KeepMs = %d, want clamped to 3000", p.KeepMs)
	}
	if p.LengthMs != 3000 {
		t.Errorf("LengthMs = %d, want raised to 3000", p.LengthMs)
	}
}

func TestNormalize_RejectsNonPositiveLength(t *testing.T) {
	p := DefaultParameters()
	p.LengthMs = 0
	if err := p.Normalize(); err == nil {
		t.Error("Normalize accepted LengthMs = 0")
	}
}

func TestNormalize_DefaultsRetriesAndLanguage(t *testing.T) {
	p := DefaultParameters()
	p.MaxRetries = 0
	p.Language = ""
	if err := p.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p.MaxRetries != defaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", p.MaxRetries, defaultMaxRetries)
	}
	if p.Language != "en" {
		t.Errorf("Language = %q, want en", p.Language)
	}
}

func TestUseVAD(t *testing.T) {
	p := DefaultParameters()
	if p.UseVAD() {
		t.Error("UseVAD = true with positive StepMs")
	}
	if p.Mode() != "fixed-step" {
		t.Errorf("Mode = %q, want fixed-step", p.Mode())
	}

	p.StepMs = 0
	if !p.UseVAD() {
		t.Error("UseVAD = false with StepMs = 0")
	}
	if p.Mode() != "vad" {
		t.Errorf("Mode = %q, want vad", p.Mode())
	}
}

func TestNewLineEvery(t *testing.T) {
	cases := []struct {
		step, length, want int
	}{
		{3000, 10000, 2},  // 10000/3000 − 1 = 2
		{100, 300, 2},     // 300/100 − 1 = 2
		{3000, 3000, 1},   // floor at 1
		{5000, 5000, 1},   // floor at 1
		{1000, 10000, 9},
	}
	for _, tc := range cases {
		p := Parameters{StepMs: tc.step, LengthMs: tc.length}
		if got := p.newLineEvery(); got != tc.want {
			t.Errorf("newLineEvery(step=%d, length=%d) = %d, want %d",
				tc.step, tc.length, got, tc.want)
		}
	}
}

func TestSampleConversions(t *testing.T) {
	p := Parameters{StepMs: 3000, LengthMs: 10000, KeepMs: 200}
	if got := p.stepSamples(); got != 48000 {
		t.Errorf("stepSamples = %d, want 48000", got)
	}
	if got := p.lengthSamples(); got != 160000 {
		t.Errorf("lengthSamples = %d, want 160000", got)
	}
	if got := p.keepSamples(); got != 3200 {
		t.Errorf("keepSamples = %d, want 3200", got)
	}
}
