package config

import (
	"strings"
	"testing"
)

func TestLogLevelIsValid(t *testing.T) {
	valid := []LogLevel{LogDebug, LogInfo, LogWarn, LogError}
	for _, l := range valid {
		if !l.IsValid() {
			t.Errorf("LogLevel(%q).IsValid() = false, want true", l)
		}
	}
	if LogLevel("verbose").IsValid() {
		t.Error(`LogLevel("verbose").IsValid() = true, want false`)
	}
}

func TestActionIsValid(t *testing.T) {
	if !ActionSpeak.IsValid() || !ActionExit.IsValid() {
		t.Error("built-in actions reported invalid")
	}
	if Action("reboot").IsValid() {
		t.Error(`Action("reboot").IsValid() = true, want false`)
	}
}

func TestMatchingIsValid(t *testing.T) {
	if !MatchingSubstring.IsValid() || !MatchingPhonetic.IsValid() {
		t.Error("built-in matching strategies reported invalid")
	}
	if Matching("fuzzy").IsValid() {
		t.Error(`Matching("fuzzy").IsValid() = true, want false`)
	}
}

func TestStreamParameters_Defaults(t *testing.T) {
	cfg := &Config{}
	p := cfg.StreamParameters()
	if p.StepMs != 3000 {
		t.Errorf("StepMs = %d, want default 3000", p.StepMs)
	}
	if p.LengthMs != 10000 {
		t.Errorf("LengthMs = %d, want default 10000", p.LengthMs)
	}
	if p.Language != "en" {
		t.Errorf("Language = %q, want default en", p.Language)
	}
	if p.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", p.MaxRetries)
	}
}

func TestStreamParameters_Overrides(t *testing.T) {
	cfg := &Config{
		Stream: StreamConfig{
			StepMs:   5000,
			LengthMs: 15000,
			KeepMs:   400,
			Language: "de",
		},
		VAD: VADConfig{
			Adaptive:  true,
			Threshold: 0.4,
		},
		Audio: AudioConfig{CaptureDevice: 2},
	}
	p := cfg.StreamParameters()
	if p.StepMs != 5000 || p.LengthMs != 15000 || p.KeepMs != 400 {
		t.Errorf("window fields = %d/%d/%d, want 5000/15000/400", p.StepMs, p.LengthMs, p.KeepMs)
	}
	if p.Language != "de" {
		t.Errorf("Language = %q, want de", p.Language)
	}
	if !p.AdaptiveVAD {
		t.Error("AdaptiveVAD = false, want true")
	}
	if p.VADThreshold != 0.4 {
		t.Errorf("VADThreshold = %v, want 0.4", p.VADThreshold)
	}
	if p.CaptureDevice != 2 {
		t.Errorf("CaptureDevice = %d, want 2", p.CaptureDevice)
	}
}

func TestStreamParameters_SentinelSelectsVADMode(t *testing.T) {
	cfg := &Config{Stream: StreamConfig{StepMs: -1}}
	p := cfg.StreamParameters()
	if !p.UseVAD() {
		t.Error("UseVAD = false with step_ms: -1, want VAD-gated mode")
	}
}

func TestStreamParameters_SentinelDisablesContext(t *testing.T) {
	cfg := &Config{Stream: StreamConfig{MaxContextTokens: -1}}
	p := cfg.StreamParameters()
	if p.MaxContextTokens != 0 {
		t.Errorf("MaxContextTokens = %d with max_context_tokens: -1, want 0", p.MaxContextTokens)
	}
}

func TestTriggerFor(t *testing.T) {
	cfg := &Config{Triggers: []TriggerConfig{
		{Phrase: "Start Navigation", Response: "Starting.", Action: ActionSpeak},
		{Phrase: "goodbye", Action: ActionExit},
	}}

	got, ok := cfg.TriggerFor("start navigation")
	if !ok {
		t.Fatal("TriggerFor did not find a case-insensitive match")
	}
	if got.Response != "Starting." {
		t.Errorf("Response = %q, want %q", got.Response, "Starting.")
	}

	if _, ok := cfg.TriggerFor("unknown phrase"); ok {
		t.Error("TriggerFor matched an unconfigured phrase")
	}
}

func TestTriggerPhrases(t *testing.T) {
	cfg := &Config{Triggers: []TriggerConfig{
		{Phrase: "one"}, {Phrase: "two"},
	}}
	got := cfg.TriggerPhrases()
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("TriggerPhrases() = %v, want [one two] in declaration order", got)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{LogLevel: "loud"},
		Stream:   StreamConfig{MaxRetries: -1},
		VAD:      VADConfig{Threshold: 1.5},
		Matching: "fuzzy",
		Triggers: []TriggerConfig{
			{Phrase: ""},
			{Phrase: "stop", Action: "reboot"},
			{Phrase: "Stop"},
		},
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate = nil, want joined errors")
	}
	msg := err.Error()
	for _, want := range []string{
		"server.log_level",
		"stream.max_retries",
		"vad.threshold",
		`matching "fuzzy"`,
		"triggers[0].phrase is required",
		`triggers[1].action "reboot"`,
		"duplicate of triggers[1]",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("Validate error missing %q in:\n%s", want, msg)
		}
	}
}

func TestValidate_RequiresASRModel(t *testing.T) {
	cfg := &Config{ASR: ProviderEntry{Name: "whisper"}}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "asr.model is required") {
		t.Errorf("Validate = %v, want asr.model error", err)
	}
}

func TestValidate_EmptyConfigIsValid(t *testing.T) {
	if err := Validate(&Config{}); err != nil {
		t.Errorf("Validate(empty) = %v, want nil", err)
	}
}
