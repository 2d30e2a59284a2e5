package booking

import (
	"strings"
	"unicode"
)

// Answer is the outcome of a yes/no match.
type Answer int

const (
	Neither Answer = iota
	Yes
	No
)

var affirmatives = []string{
	"yes", "yeah", "yep", "sure", "ok", "okay", "fine", "go ahead", "book it", "confirm", "no problem",
	"sim", "pode", "beleza", "claro", "isso", "confirmo", "perfeito", "fechado", "sem problema",
}

// negators turn a following affirmative around: "não pode", "not ok".
var negators = []string{"not", "não", "nao", "don't", "never", "nunca"}

var negatives = []string{
	"no", "nope", "don't", "doesn't work", "não", "nao", "nops", "não serve",
}

// MatchYesNo checks a short reply against the affirmative and negative
// vocabularies. Single words match whole words; phrases match as substrings.
// A negated affirmative is a no; otherwise affirmatives win, so "yes, no
// rush" is a yes.
func MatchYesNo(text string) Answer {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Neither
	}
	if negatedAffirmative(lower) {
		return No
	}
	if matchesAny(lower, affirmatives) {
		return Yes
	}
	if matchesAny(lower, negatives) {
		return No
	}
	return Neither
}

func negatedAffirmative(lower string) bool {
	for _, n := range negators {
		for _, a := range affirmatives {
			if ContainsWord(lower, n+" "+a) {
				return true
			}
		}
	}
	return false
}

func matchesAny(lower string, vocabulary []string) bool {
	for _, token := range vocabulary {
		if strings.Contains(token, " ") {
			if strings.Contains(lower, token) {
				return true
			}
			continue
		}
		if ContainsWord(lower, token) {
			return true
		}
	}
	return false
}

// ContainsWord reports whether word appears in s delimited by non-letters.
func ContainsWord(s, word string) bool {
	for start := 0; start <= len(s); {
		i := strings.Index(s[start:], word)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(word)
		if boundary(s, i-1, true) && boundary(s, end, false) {
			return true
		}
		start = i + 1
	}
	return false
}

func boundary(s string, i int, before bool) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	var r rune
	if before {
		r = lastRune(s[:i+1])
	} else {
		r = []rune(s[i:])[0]
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func lastRune(s string) rune {
	runes := []rune(s)
	return runes[len(runes)-1]
}
