// Package sentiment classifies the mood of an utterance from lexical cues.
// Analysis is a pure function of the input text: a weighted sum of phrase
// hits per mood plus punctuation-based intensity boosts, capped.
package sentiment

import (
	"strings"
	"unicode"

	"parley/internal/logging"
	"parley/internal/types"
)

// maxIntensity caps the reported intensity so stacked punctuation cannot
// drown out the lexical signal downstream.
const maxIntensity = 3.0

// moodLexicon maps each mood to weighted indicator phrases. Matching is
// case-insensitive substring search, multi-word phrases included.
var moodLexicon = map[types.Mood][]weightedPhrase{
	types.MoodFrustrated: {
		{"not working", 1.0},
		{"doesn't work", 1.0},
		{"broken", 0.8},
		{"ugh", 0.9},
		{"annoying", 0.9},
		{"frustrat", 1.0},
		{"again?", 0.6},
		{"why won't", 0.8},
		{"useless", 1.0},
		{"stupid", 0.8},
	},
	types.MoodConfident: {
		{"definitely", 0.8},
		{"absolutely", 0.8},
		{"of course", 0.7},
		{"i'm sure", 0.9},
		{"certain", 0.7},
		{"no doubt", 0.8},
	},
	types.MoodExcited: {
		{"awesome", 0.9},
		{"amazing", 0.9},
		{"love it", 1.0},
		{"can't wait", 1.0},
		{"great", 0.6},
		{"fantastic", 0.9},
		{"wow", 0.8},
	},
	types.MoodCurious: {
		{"i wonder", 1.0},
		{"curious", 0.9},
		{"how does", 0.7},
		{"what if", 0.7},
		{"why does", 0.7},
		{"interesting", 0.6},
	},
	types.MoodBored: {
		{"whatever", 0.8},
		{"boring", 1.0},
		{"meh", 0.9},
		{"i guess", 0.5},
		{"don't care", 0.9},
	},
}

type weightedPhrase struct {
	phrase string
	weight float64
}

// Analyze classifies the mood and intensity of text. It never fails; text
// with no indicators is neutral with intensity 0.
func Analyze(text string) types.Sentiment {
	lower := strings.ToLower(text)

	scores := make(map[types.Mood]float64, len(moodLexicon))
	var indicators []string

	for mood, phrases := range moodLexicon {
		for _, wp := range phrases {
			if strings.Contains(lower, wp.phrase) {
				scores[mood] += wp.weight
				indicators = append(indicators, wp.phrase)
			}
		}
	}

	best := types.MoodNeutral
	var bestScore float64
	// Deterministic winner: iterate in a fixed order so equal scores always
	// resolve the same way.
	for _, mood := range []types.Mood{
		types.MoodFrustrated, types.MoodExcited, types.MoodConfident,
		types.MoodCurious, types.MoodBored,
	} {
		if scores[mood] > bestScore {
			best = mood
			bestScore = scores[mood]
		}
	}

	intensity := bestScore

	// Repeated exclamation marks amplify whatever mood is present.
	if bangs := strings.Count(text, "!"); bangs > 1 {
		intensity += 0.25 * float64(bangs-1)
		indicators = append(indicators, "repeated !")
	}

	// Shouting in all caps amplifies too. Single-letter words ("I", "a")
	// don't count.
	if capsWords(text) > 0 {
		intensity += 0.5
		indicators = append(indicators, "all caps")
	}

	if intensity > maxIntensity {
		intensity = maxIntensity
	}
	if best == types.MoodNeutral && bestScore == 0 {
		// Punctuation alone doesn't make a mood; neutral stays calm unless
		// something lexical fired.
		if len(indicators) == 0 {
			intensity = 0
		}
	}

	logging.Get(logging.CategorySentiment).Debug("Analyzed mood=%s intensity=%.2f indicators=%d",
		best, intensity, len(indicators))

	return types.Sentiment{
		Mood:       best,
		Intensity:  intensity,
		Indicators: indicators,
	}
}

// capsWords counts fully-uppercase words of length >= 2.
func capsWords(text string) int {
	count := 0
	for _, word := range strings.Fields(text) {
		letters := 0
		upper := 0
		for _, r := range word {
			if unicode.IsLetter(r) {
				letters++
				if unicode.IsUpper(r) {
					upper++
				}
			}
		}
		if letters >= 2 && letters == upper {
			count++
		}
	}
	return count
}
