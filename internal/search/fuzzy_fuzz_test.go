//go:build go1.18

package search

import (
	"testing"
)

// FuzzFuzzyScore fuzzes the subsequence scorer: it must never panic and the
// score must stay inside [0,1] for arbitrary pattern/text pairs, including
// multi-byte runes and whitespace-only patterns.
func FuzzFuzzyScore(f *testing.F) {
	f.Add("jonh smth", "john_smith senior engineer")
	f.Add("", "")
	f.Add("   ", "text")
	f.Add("héllo", "hëllo wörld")
	f.Fuzz(func(t *testing.T, pattern, text string) {
		score, ok := fuzzyScore(pattern, text)
		if score < 0 || score > 1 {
			t.Fatalf("score %v out of [0,1] for (%q, %q)", score, pattern, text)
		}
		if !ok && score != 0 {
			t.Fatalf("non-match must score 0, got %v for (%q, %q)", score, pattern, text)
		}
	})
}

// FuzzTokenize checks the full-text tokenizer never produces empty tokens or
// tokens containing separator characters.
func FuzzTokenize(f *testing.F) {
	f.Add("John_Smith-42!")
	f.Add("")
	f.Add("日本語 text mixed")
	f.Fuzz(func(t *testing.T, s string) {
		for _, tok := range tokenize(s) {
			if tok == "" {
				t.Fatal("empty token")
			}
			for _, r := range tok {
				if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
					t.Fatalf("token %q contains separator rune %q", tok, r)
				}
			}
		}
	})
}
