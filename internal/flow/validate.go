package flow

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Minimum answer sizes per step
const (
	MinClimateWords  = 10
	MinSoilChars     = 30
	MinFreeTextChars = 16
)

// greetings are answers to the opening question that are not a commune.
var greetings = map[string]struct{}{
	"bonjour": {},
	"salut":   {},
	"hello":   {},
	"bonsoir": {},
	"coucou":  {},
}

// ChallengeKeywords are the recognised soil challenges, accent-folded.
var ChallengeKeywords = []string{"erosion", "fertilite", "compaction", "drainage", "acidite", "salinite"}

// IsGreeting reports whether input is a bare salutation.
func IsGreeting(input string) bool {
	s := strings.Trim(strings.ToLower(strings.TrimSpace(input)), " !.?,;")
	_, ok := greetings[s]
	return ok
}

func minWords(n int) func(string) bool {
	return func(s string) bool {
		return len(strings.Fields(s)) >= n
	}
}

func minChars(n int) func(string) bool {
	return func(s string) bool {
		return utf8.RuneCountInString(strings.TrimSpace(s)) >= n
	}
}

// foldAccents lower-cases s and strips combining marks.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}

// matchChallenges returns the recognised keywords in order of first appearance.
func matchChallenges(s string) []string {
	tokens := strings.FieldsFunc(foldAccents(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	known := make(map[string]bool, len(ChallengeKeywords))
	for _, k := range ChallengeKeywords {
		known[k] = true
	}
	var found []string
	seen := make(map[string]bool)
	for _, tok := range tokens {
		if known[tok] && !seen[tok] {
			seen[tok] = true
			found = append(found, tok)
		}
	}
	return found
}
