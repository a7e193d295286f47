package evaluator

import (
	"regexp"
	"strings"
)

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]`)

// significantPhrases splits text into sentences and keeps those long enough
// to be meaningful for repetition checks.
func significantPhrases(text string) []string {
	var phrases []string
	for _, raw := range sentenceRe.FindAllString(text, -1) {
		p := strings.TrimSpace(raw)
		if len(strings.Fields(p)) > 5 {
			phrases = append(phrases, p)
		}
	}
	return phrases
}

// phraseSimilarity is the Jaccard index over the word sets of two phrases.
func phraseSimilarity(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}
