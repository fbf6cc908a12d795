package services

import (
	"math"
	"strings"
	"unicode/utf8"

	"agentarena/models"
)

// computeMatchScore grades a guess against the target owner's trait
// tags. Both sides are tokenized the same way; each guess token that
// overlaps any tag token counts once, and the match ratio is the share
// of guess tokens that found a match. Matching is worth 70 points, the
// agent's own confidence the remaining 30. With no tags to check
// against there is nothing to match, so the score falls back to
// confidence alone at half weight.
func computeMatchScore(guess *models.Guess, targetTags []string) int {
	confidence := clamp(guess.Confidence, 0, 1)

	if len(targetTags) == 0 {
		return int(math.Round(confidence * 50))
	}

	guessTokens := tokenize(strings.Join([]string{
		guess.Personality, guess.Profession, guess.Values, guess.Interests,
	}, " "))
	tagTokens := tokenize(strings.Join(targetTags, " "))

	matched := 0
	for _, gt := range guessTokens {
		for _, tt := range tagTokens {
			if strings.Contains(gt, tt) || strings.Contains(tt, gt) {
				matched++
				break
			}
		}
	}

	ratio := 0.0
	if len(guessTokens) > 0 {
		ratio = float64(matched) / float64(len(guessTokens))
	}
	score := math.Round(ratio*70 + confidence*30)
	return int(clamp(score, 0, 100))
}

// tokenize lowercases and splits on whitespace plus the comma and
// semicolon forms common in mixed-language tag text. Single-rune tokens
// match too aggressively via substring checks, so they are dropped.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		switch r {
		case ',', '，', '、', ';', '；':
			return true
		}
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
