package core

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"
)

func TestClassifyScenarios(t *testing.T) {
	reg := testRegistry(t)

	tests := []struct {
		text string
		want []string
	}{
		{"The Lakers won", []string{"sports"}},
		{"Lakers and Rust news", []string{"sports", "tech"}},
		{"a new compiler release", []string{"tech"}},
		{"nothing to see here", nil},
		{"Celtic music", nil},
	}
	for _, tt := range tests {
		got := Classify(Event{Text: tt.text}, reg)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Classify(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestClassifyDoesNotMutateEvent(t *testing.T) {
	reg := testRegistry(t)
	ev := Event{ID: 7, Text: "Lakers", Author: Author{ID: 1, DisplayName: "fan"}}
	before := ev

	Classify(ev, reg)
	if !reflect.DeepEqual(ev, before) {
		t.Fatalf("event mutated: %+v", ev)
	}
}

// containsWord is a naive reference for the whole-word rule.
func containsWord(text, topic string) bool {
	text, topic = strings.ToLower(text), strings.ToLower(topic)
	isWord := func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' }

	for offset := 0; offset <= len(text); {
		i := strings.Index(text[offset:], topic)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(topic)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || !isWord(before)) && (end == len(text) || !isWord(after)) {
			return true
		}
		offset = start + 1
	}
	return false
}

func TestClassifyMatchesReferenceRule(t *testing.T) {
	rooms := map[string][]string{
		"sports": {"Lakers", "Celtics"},
		"tech":   {"Rust", "compiler", "C++"},
		"misc":   {"#NBA", "a.b"},
	}
	specs := []RoomSpec{
		{ID: "sports", RawTopics: strings.Join(rooms["sports"], "\n")},
		{ID: "tech", RawTopics: strings.Join(rooms["tech"], "\n")},
		{ID: "misc", RawTopics: strings.Join(rooms["misc"], "\n")},
	}
	reg, err := BuildRegistry(specs, MatchOptions{})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	vocab := []string{"Lakers", "lakers", "Celtics", "Rust", "Rustacean", "trust", "compiler", "C++", "C",
		"#NBA", "NBA", "a.b", "axb", "news", "x", "_", "9"}
	seps := []string{" ", "", ",", ".", "!", "_", "-", "#", "\n"}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		var b strings.Builder
		n := 1 + rng.Intn(6)
		for j := 0; j < n; j++ {
			b.WriteString(vocab[rng.Intn(len(vocab))])
			b.WriteString(seps[rng.Intn(len(seps))])
		}
		text := b.String()

		got := Classify(Event{Text: text}, reg)
		var want []string
		for _, spec := range specs {
			for _, topic := range rooms[spec.ID] {
				if containsWord(text, topic) {
					want = append(want, spec.ID)
					break
				}
			}
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Classify(%q) = %v, reference says %v", text, got, want)
		}
	}
}
