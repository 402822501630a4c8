// Package trigger matches decoded transcript text against configured command
// phrases.
//
// The default mode is a plain case-insensitive substring test: the moment any
// decoded segment contains the phrase, the cycle ends. This favors trigger
// latency over word-boundary precision; "please Start Navigation now"
// matches the phrase "start navigation". An optional phonetic mode tolerates
// recognition misspellings by comparing Double Metaphone codes with a
// Jaro-Winkler fallback, useful for proper nouns the model rarely spells
// consistently.
package trigger

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
)

// Mode selects the matching strategy.
type Mode string

const (
	// ModeSubstring matches with a case-insensitive substring test.
	// This is the default.
	ModeSubstring Mode = "substring"

	// ModePhonetic matches word-by-word on Double Metaphone codes, falling
	// back to Jaro-Winkler similarity for words without a code overlap.
	ModePhonetic Mode = "phonetic"
)

// defaultJWThreshold is the Jaro-Winkler score above which two words are
// considered the same in phonetic mode.
const defaultJWThreshold = 0.85

// Matcher tests transcript text against a fixed set of trigger phrases.
// It is immutable after construction and safe for concurrent use.
type Matcher struct {
	mode        Mode
	phrases     []string
	jwThreshold float64
}

// Option is a functional option for configuring a Matcher.
type Option func(*Matcher)

// WithMode selects the matching strategy. Defaults to ModeSubstring.
func WithMode(m Mode) Option {
	return func(mt *Matcher) { mt.mode = m }
}

// WithSimilarityThreshold sets the Jaro-Winkler score required for a word
// match in phonetic mode. Defaults to 0.85.
func WithSimilarityThreshold(t float64) Option {
	return func(mt *Matcher) { mt.jwThreshold = t }
}

// New creates a Matcher for the given trigger phrases. Phrases are
// normalized to lower case; empty phrases are rejected.
func New(phrases []string, opts ...Option) (*Matcher, error) {
	m := &Matcher{
		mode:        ModeSubstring,
		jwThreshold: defaultJWThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	if m.mode != ModeSubstring && m.mode != ModePhonetic {
		return nil, fmt.Errorf("trigger: unknown mode %q", m.mode)
	}

	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			return nil, fmt.Errorf("trigger: empty phrase")
		}
		m.phrases = append(m.phrases, p)
	}
	return m, nil
}

// Phrases returns the normalized trigger phrases.
func (m *Matcher) Phrases() []string {
	out := make([]string, len(m.phrases))
	copy(out, m.phrases)
	return out
}

// Match tests text against every configured phrase and returns the first
// phrase that matches, or ("", false) when none do.
func (m *Matcher) Match(text string) (string, bool) {
	if text == "" || len(m.phrases) == 0 {
		return "", false
	}
	lower := strings.ToLower(text)

	for _, phrase := range m.phrases {
		switch m.mode {
		case ModePhonetic:
			if m.phoneticMatch(lower, phrase) {
				return phrase, true
			}
		default:
			if strings.Contains(lower, phrase) {
				return phrase, true
			}
		}
	}
	return "", false
}

// phoneticMatch reports whether every word of phrase has a phonetically
// equivalent word somewhere in text.
func (m *Matcher) phoneticMatch(text, phrase string) bool {
	textWords := strings.Fields(text)
	if len(textWords) == 0 {
		return false
	}
	for _, pw := range strings.Fields(phrase) {
		if !m.wordMatches(pw, textWords) {
			return false
		}
	}
	return true
}

func (m *Matcher) wordMatches(word string, candidates []string) bool {
	p1, s1 := matchr.DoubleMetaphone(word)
	for _, c := range candidates {
		p2, s2 := matchr.DoubleMetaphone(c)
		if p1 != "" && (p1 == p2 || p1 == s2) {
			return true
		}
		if s1 != "" && (s1 == p2 || s1 == s2) {
			return true
		}
		if matchr.JaroWinkler(word, c, false) >= m.jwThreshold {
			return true
		}
	}
	return false
}
