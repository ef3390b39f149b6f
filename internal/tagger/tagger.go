// Package tagger derives a bounded set of semantic tags from document
// text. Implementations are treated as pure and deterministic so results
// can be cached by content hash.
package tagger

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// Tagger derives up to a bounded number of tags from text.
type Tagger interface {
	DeriveTags(ctx context.Context, text string) ([]string, error)
}

// Keyword is a deterministic frequency-based tagger: tokenize, drop
// stopwords and short tokens, rank by occurrence count (ties broken
// lexicographically), keep the top K.
type Keyword struct {
	TopK int
}

// NewKeyword creates a Keyword tagger returning at most topK tags.
func NewKeyword(topK int) *Keyword {
	if topK <= 0 {
		topK = 5
	}
	return &Keyword{TopK: topK}
}

// DeriveTags implements Tagger. It never returns an error.
func (k *Keyword) DeriveTags(_ context.Context, text string) ([]string, error) {
	counts := make(map[string]int)
	for _, tok := range Tokenize(text) {
		counts[tok]++
	}

	ranked := make([]string, 0, len(counts))
	for w := range counts {
		ranked = append(ranked, w)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	if len(ranked) > k.TopK {
		ranked = ranked[:k.TopK]
	}
	return ranked, nil
}

// Tokenize lowercases text and splits it into candidate tag tokens,
// dropping stopwords, digits-only tokens, and tokens shorter than three
// runes.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if isDigits(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "her": {}, "was": {}, "one": {},
	"our": {}, "out": {}, "has": {}, "have": {}, "had": {}, "his": {},
	"this": {}, "that": {}, "with": {}, "they": {}, "them": {}, "then": {},
	"than": {}, "from": {}, "into": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "there": {}, "their": {}, "these": {}, "those": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "while": {},
	"about": {}, "after": {}, "before": {}, "because": {}, "been": {},
	"being": {}, "between": {}, "both": {}, "each": {}, "more": {},
	"most": {}, "other": {}, "some": {}, "such": {}, "only": {},
	"over": {}, "same": {}, "very": {}, "just": {}, "also": {},
	"here": {}, "does": {}, "done": {}, "were": {}, "your": {},
	"its": {}, "any": {}, "how": {}, "why": {}, "who": {},
}
